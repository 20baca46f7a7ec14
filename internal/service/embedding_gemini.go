package service

import (
	"context"
	"edtech_eval_backend/internal/config"
	"edtech_eval_backend/internal/util"
	"errors"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"
)

// GeminiEmbeddingProvider 通过 BatchEmbedContents 一次请求整批文本
type GeminiEmbeddingProvider struct {
	APIKey string
	Model  string
}

func NewGeminiEmbeddingProvider(cfg config.EmbeddingConfig) *GeminiEmbeddingProvider {
	model := strings.TrimSpace(cfg.Model)
	if model == "" || strings.HasPrefix(model, "text-embedding-3") {
		model = "text-embedding-004"
	}
	return &GeminiEmbeddingProvider{
		APIKey: strings.TrimSpace(cfg.APIKey),
		Model:  model,
	}
}

func (p *GeminiEmbeddingProvider) Name() string {
	return util.ProviderGemini
}

func (p *GeminiEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if p.APIKey == "" {
		return nil, errors.New("gemini api key is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(p.APIKey))
	if err != nil {
		return nil, err
	}
	defer cl.Close()

	em := cl.EmbeddingModel(p.Model)
	b := em.NewBatch()
	for _, t := range texts {
		b.AddContent(genai.Text(t))
	}

	res, err := em.BatchEmbedContents(ctx, b)
	if err != nil {
		return nil, err
	}

	out := make([][]float64, len(res.Embeddings))
	for i, e := range res.Embeddings {
		if e == nil {
			continue
		}
		vec := make([]float64, len(e.Values))
		for j, v := range e.Values {
			vec[j] = float64(v)
		}
		out[i] = vec
	}
	return out, nil
}

package service

import (
	"context"
	"edtech_eval_backend/internal/config"
	"edtech_eval_backend/internal/util"
	"edtech_eval_backend/pkg/logger"
	"edtech_eval_backend/pkg/monitoring"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Embedding 文本向量，nil 表示该文本未能向量化
type Embedding []float64

// EmbeddingProvider 外部向量服务，一次调用处理一整批文本
type EmbeddingProvider interface {
	Name() string
	Embed(ctx context.Context, texts []string) ([][]float64, error)
}

// NewEmbeddingProvider 按配置选择向量服务
func NewEmbeddingProvider(cfg config.EmbeddingConfig) EmbeddingProvider {
	if cfg.Provider == util.ProviderGemini {
		return NewGeminiEmbeddingProvider(cfg)
	}
	return NewOpenAIEmbeddingProvider(cfg)
}

// SimilarityClient 批量向量化，失败时返回等长的 nil 列表而不是错误
type SimilarityClient struct {
	provider    EmbeddingProvider
	baseTimeout time.Duration
	perText     time.Duration
	maxTimeout  time.Duration
}

func NewSimilarityClient(provider EmbeddingProvider, cfg config.EmbeddingConfig) *SimilarityClient {
	return &SimilarityClient{
		provider:    provider,
		baseTimeout: time.Duration(cfg.BaseTimeoutSeconds) * time.Second,
		perText:     time.Duration(cfg.PerTextSeconds) * time.Second,
		maxTimeout:  time.Duration(cfg.MaxTimeoutSeconds) * time.Second,
	}
}

func (c *SimilarityClient) Name() string {
	return c.provider.Name()
}

// Timeout min(max, base + perText × count)
func (c *SimilarityClient) Timeout(count int) time.Duration {
	t := c.baseTimeout + time.Duration(count)*c.perText
	if c.maxTimeout > 0 && t > c.maxTimeout {
		return c.maxTimeout
	}
	return t
}

// EmbedBatch 返回与 texts 等长、同序的结果，空白文本不发送，对应位置为 nil
func (c *SimilarityClient) EmbedBatch(ctx context.Context, texts []string) []Embedding {
	out := make([]Embedding, len(texts))

	sent := make([]string, 0, len(texts))
	slots := make([]int, 0, len(texts))
	for i, t := range texts {
		if strings.TrimSpace(t) == "" {
			continue
		}
		sent = append(sent, t)
		slots = append(slots, i)
	}
	if len(sent) == 0 {
		return out
	}

	name := c.provider.Name()
	ctx, cancel := context.WithTimeout(ctx, c.Timeout(len(sent)))
	defer cancel()

	start := time.Now()
	vectors, err := c.provider.Embed(ctx, sent)
	elapsed := time.Since(start)
	monitoring.EmbeddingDuration.WithLabelValues(name).Observe(elapsed.Seconds())

	if err != nil {
		reason := "error"
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			reason = "timeout"
			err = util.NewUpstreamTimeoutError("embedding provider timed out", err)
		}
		monitoring.EmbeddingFailures.WithLabelValues(name, reason).Inc()
		logger.Log.Warn("Embedding batch failed",
			zap.String("provider", name),
			zap.Int("texts", len(sent)),
			zap.Duration("elapsed", elapsed),
			zap.String("kind", string(util.KindOf(err))),
			zap.Error(err),
		)
		return out
	}

	// 返回条数不足视为整批失败
	if len(vectors) < len(sent) {
		monitoring.EmbeddingFailures.WithLabelValues(name, "short_response").Inc()
		logger.Log.Warn("Embedding batch returned fewer vectors than requested",
			zap.String("provider", name),
			zap.Int("texts", len(sent)),
			zap.Int("vectors", len(vectors)),
		)
		return out
	}

	for j, slot := range slots {
		if len(vectors[j]) == 0 {
			continue
		}
		out[slot] = Embedding(vectors[j])
	}

	logger.Log.Debug("Embedding batch completed",
		zap.String("provider", name),
		zap.Int("texts", len(sent)),
		zap.Duration("elapsed", elapsed),
	)
	return out
}

// CosineSimilarity 任一向量模为 0 或维度不一致时返回 0
func CosineSimilarity(a, b Embedding) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	sim := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if math.IsNaN(sim) {
		return 0
	}
	return math.Max(-1, math.Min(1, sim))
}

func providerError(provider string, status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	if len(msg) > 512 {
		msg = msg[:512]
	}
	return fmt.Errorf("%s embedding API error (status %d): %s", provider, status, msg)
}

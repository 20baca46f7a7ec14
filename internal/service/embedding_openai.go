package service

import (
	"bytes"
	"context"
	"edtech_eval_backend/internal/config"
	"edtech_eval_backend/internal/util"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// OpenAIEmbeddingProvider 兼容 OpenAI /embeddings 接口的服务
type OpenAIEmbeddingProvider struct {
	BaseURL string
	APIKey  string
	Model   string
	httpc   *http.Client
}

func NewOpenAIEmbeddingProvider(cfg config.EmbeddingConfig) *OpenAIEmbeddingProvider {
	tr := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
	}

	return &OpenAIEmbeddingProvider{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
		// 超时由调用方 context 控制
		httpc: &http.Client{Transport: tr},
	}
}

// WithHTTPClient 替换内部 http.Client，测试时指向 httptest.Server
func (p *OpenAIEmbeddingProvider) WithHTTPClient(c *http.Client) *OpenAIEmbeddingProvider {
	if c != nil {
		p.httpc = c
	}
	return p
}

func (p *OpenAIEmbeddingProvider) Name() string {
	return util.ProviderOpenAI
}

type embeddingRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embeddingResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float64 `json:"embedding"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *OpenAIEmbeddingProvider) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	jsonData, err := json.Marshal(embeddingRequest{Model: p.Model, Input: texts})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/embeddings", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if p.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.APIKey)
	}

	resp, err := p.httpc.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		return nil, providerError(p.Name(), resp.StatusCode, body)
	}

	var result embeddingResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("decode embedding response: %w", err)
	}
	if result.Error != nil {
		return nil, fmt.Errorf("openai embedding error: %s", result.Error.Message)
	}

	// data 按 index 归位，缺失的位置留空
	out := make([][]float64, len(result.Data))
	for i, d := range result.Data {
		idx := d.Index
		if idx < 0 || idx >= len(out) {
			idx = i
		}
		out[idx] = d.Embedding
	}
	return out, nil
}

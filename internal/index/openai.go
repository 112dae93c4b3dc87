package index

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/trustbutverify/internal/cache"
)

// OpenAIConfig configures the OpenAI-compatible embedding client
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	Model      string
	Cache      cache.Cache // optional; vectors are cached per (model, text)
	CacheTTL   time.Duration
	MaxRetries int
	BatchSize  int
}

// OpenAIEmbedder embeds text through an OpenAI-compatible /embeddings endpoint
type OpenAIEmbedder struct {
	client *openai.Client
	config OpenAIConfig
}

// NewOpenAIEmbedder creates a new embedding client
func NewOpenAIEmbedder(config OpenAIConfig) (*OpenAIEmbedder, error) {
	if config.APIKey == "" {
		return nil, fmt.Errorf("embedding API key is required")
	}
	if config.Model == "" {
		config.Model = string(openai.SmallEmbedding3)
	}
	if config.BatchSize <= 0 {
		config.BatchSize = 64
	}
	if config.MaxRetries < 0 {
		config.MaxRetries = 0
	}

	clientConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		clientConfig.BaseURL = config.BaseURL
	}

	return &OpenAIEmbedder{
		client: openai.NewClientWithConfig(clientConfig),
		config: config,
	}, nil
}

// Name returns the embedder name
func (e *OpenAIEmbedder) Name() string { return "openai:" + e.config.Model }

// Prepare is a no-op; remote models need no corpus statistics
func (e *OpenAIEmbedder) Prepare(ctx context.Context, corpus []string) error { return nil }

// Embed returns the embedding of a single text
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch embeds texts in request-sized batches, serving cached vectors
// without a network round trip
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float64, error) {
	out := make([][]float64, len(texts))
	var missing []int
	for i, text := range texts {
		if v, ok := e.cached(text); ok {
			out[i] = v
			continue
		}
		missing = append(missing, i)
	}

	for start := 0; start < len(missing); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(missing) {
			end = len(missing)
		}
		batch := make([]string, 0, end-start)
		for _, idx := range missing[start:end] {
			batch = append(batch, texts[idx])
		}

		vecs, err := e.request(ctx, batch)
		if err != nil {
			return nil, err
		}
		for j, idx := range missing[start:end] {
			out[idx] = vecs[j]
			e.store(texts[idx], vecs[j])
		}
	}
	return out, nil
}

func (e *OpenAIEmbedder) request(ctx context.Context, batch []string) ([][]float64, error) {
	req := openai.EmbeddingRequestStrings{
		Input: batch,
		Model: openai.EmbeddingModel(e.config.Model),
	}

	var lastErr error
	for attempt := 0; attempt <= e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(1<<uint(attempt-1)) * 500 * time.Millisecond
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		resp, err := e.client.CreateEmbeddings(ctx, req)
		if err != nil {
			lastErr = err
			if !retryableEmbeddingError(err) {
				break
			}
			continue
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("embedding response has %d vectors for %d inputs", len(resp.Data), len(batch))
		}

		vecs := make([][]float64, len(batch))
		for _, item := range resp.Data {
			if item.Index < 0 || item.Index >= len(batch) {
				return nil, fmt.Errorf("embedding response index %d out of range", item.Index)
			}
			v := make([]float64, len(item.Embedding))
			for k, f := range item.Embedding {
				v[k] = float64(f)
			}
			vecs[item.Index] = v
		}
		return vecs, nil
	}
	return nil, fmt.Errorf("embedding request failed: %w", lastErr)
}

func (e *OpenAIEmbedder) cached(text string) ([]float64, bool) {
	if e.config.Cache == nil {
		return nil, false
	}
	raw, ok := e.config.Cache.Get(cache.CacheKey("embedding", e.config.Model, text))
	if !ok {
		return nil, false
	}
	v, err := cache.DecodeVector(raw)
	if err != nil {
		return nil, false
	}
	return v, true
}

func (e *OpenAIEmbedder) store(text string, v []float64) {
	if e.config.Cache == nil {
		return
	}
	_ = e.config.Cache.Set(cache.CacheKey("embedding", e.config.Model, text), cache.EncodeVector(v), e.config.CacheTTL)
}

// retryableEmbeddingError reports rate limiting, server faults and transport errors
func retryableEmbeddingError(err error) bool {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == http.StatusTooManyRequests || apiErr.HTTPStatusCode >= 500
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == http.StatusTooManyRequests || reqErr.HTTPStatusCode >= 500
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

// GeminiProvider embeds text via the Gemini embedContent API.
// Note: Gemini uses per-model endpoints: /models/{model}:embedContent and
// /models/{model}:batchEmbedContents.
type GeminiProvider struct {
	cfg     GeminiConfig
	client  *http.Client
	limiter *rate.Limiter
}

// GeminiConfig configures the Gemini embedding provider.
type GeminiConfig struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"` // gemini-embedding-001
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// RequestsPerSecond caps the request rate against the embed API.
	// Zero disables client-side limiting.
	RequestsPerSecond float64 `json:"requests_per_second,omitempty" yaml:"requests_per_second,omitempty"`
}

// DefaultGeminiConfig returns the default Gemini embedding configuration.
func DefaultGeminiConfig() GeminiConfig {
	return GeminiConfig{
		BaseURL:           "https://generativelanguage.googleapis.com",
		Model:             "gemini-embedding-001",
		Timeout:           30 * time.Second,
		RequestsPerSecond: 2,
	}
}

// NewGeminiProvider creates a new Gemini embedding provider.
func NewGeminiProvider(cfg GeminiConfig) *GeminiProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if cfg.Model == "" {
		cfg.Model = "gemini-embedding-001"
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	return &GeminiProvider{
		cfg:     cfg,
		client:  &http.Client{Timeout: timeout},
		limiter: limiter,
	}
}

func (p *GeminiProvider) Name() string    { return "gemini-embedding" }
func (p *GeminiProvider) Dimensions() int { return 3072 }

// MaxBatchSize returns the largest batch accepted by batchEmbedContents.
func (p *GeminiProvider) MaxBatchSize() int { return 100 }

type geminiTaskType string

const (
	taskRetrievalQuery    geminiTaskType = "RETRIEVAL_QUERY"
	taskRetrievalDocument geminiTaskType = "RETRIEVAL_DOCUMENT"
)

type embedRequest struct {
	Model    string         `json:"model"`
	Content  embedContent   `json:"content"`
	TaskType geminiTaskType `json:"taskType,omitempty"`
}

type batchEmbedRequest struct {
	Requests []embedRequest `json:"requests"`
}

type embedContent struct {
	Parts []embedPart `json:"parts"`
}

type embedPart struct {
	Text string `json:"text"`
}

type contentEmbedding struct {
	Values []float64 `json:"values"`
}

type embedResponse struct {
	Embedding contentEmbedding `json:"embedding"`
}

type batchEmbedResponse struct {
	Embeddings []contentEmbedding `json:"embeddings"`
}

// EmbedQuery embeds a single search query.
func (p *GeminiProvider) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	body := embedRequest{
		Model:    "models/" + p.cfg.Model,
		Content:  embedContent{Parts: []embedPart{{Text: query}}},
		TaskType: taskRetrievalQuery,
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:embedContent",
		strings.TrimRight(p.cfg.BaseURL, "/"), p.cfg.Model)

	var resp embedResponse
	if err := p.post(ctx, endpoint, body, &resp); err != nil {
		return nil, err
	}
	return resp.Embedding.Values, nil
}

// EmbedDocuments embeds document chunks in batches.
func (p *GeminiProvider) EmbedDocuments(ctx context.Context, documents []string) ([][]float64, error) {
	if len(documents) == 0 {
		return nil, nil
	}

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:batchEmbedContents",
		strings.TrimRight(p.cfg.BaseURL, "/"), p.cfg.Model)

	vectors := make([][]float64, 0, len(documents))
	for start := 0; start < len(documents); start += p.MaxBatchSize() {
		end := start + p.MaxBatchSize()
		if end > len(documents) {
			end = len(documents)
		}

		batch := batchEmbedRequest{}
		for _, doc := range documents[start:end] {
			batch.Requests = append(batch.Requests, embedRequest{
				Model:    "models/" + p.cfg.Model,
				Content:  embedContent{Parts: []embedPart{{Text: doc}}},
				TaskType: taskRetrievalDocument,
			})
		}

		var resp batchEmbedResponse
		if err := p.post(ctx, endpoint, batch, &resp); err != nil {
			return nil, err
		}
		if len(resp.Embeddings) != end-start {
			return nil, fmt.Errorf("embedding: batch returned %d vectors for %d inputs",
				len(resp.Embeddings), end-start)
		}
		for _, e := range resp.Embeddings {
			vectors = append(vectors, e.Values)
		}
	}

	return vectors, nil
}

func (p *GeminiProvider) post(ctx context.Context, endpoint string, body any, out any) error {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			return err
		}
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("embedding: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("embedding: build request: %w", err)
	}
	req.Header.Set("x-goog-api-key", p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("embedding: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("embedding: status %d: %s", resp.StatusCode, string(data))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("embedding: decode response: %w", err)
	}
	return nil
}

// Package gemini implements backend.Backend against the Google Gemini
// generateContent REST API. Authentication uses the x-goog-api-key header.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Odysseus24/neolatin-chatbot-api/backend"
	"github.com/Odysseus24/neolatin-chatbot-api/types"
)

const defaultBaseURL = "https://generativelanguage.googleapis.com"

// Backend calls a single Gemini model. Build one per entry in the fallback
// chain; the model name doubles as the backend identifier.
type Backend struct {
	cfg    backend.Config
	client *http.Client
	logger *zap.Logger
}

// New creates a Gemini backend for the model named in cfg.Model.
func New(cfg backend.Config, logger *zap.Logger) *Backend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Backend{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger.With(zap.String("backend", cfg.Model)),
	}
}

func (b *Backend) Name() string { return b.cfg.Model }

// Gemini wire structures.

type geminiContent struct {
	Role  string       `json:"role,omitempty"` // user, model
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text       string            `json:"text,omitempty"`
	InlineData *geminiInlineData `json:"inlineData,omitempty"`
}

type geminiInlineData struct {
	MimeType string `json:"mimeType"`
	Data     string `json:"data"` // base64 encoded
}

type geminiRequest struct {
	Contents          []geminiContent `json:"contents"`
	SystemInstruction *geminiContent  `json:"systemInstruction,omitempty"`
}

type geminiCandidate struct {
	Content      geminiContent `json:"content"`
	FinishReason string        `json:"finishReason,omitempty"`
}

type geminiResponse struct {
	Candidates []geminiCandidate `json:"candidates"`
}

type geminiErrorResp struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
}

func (b *Backend) buildHeaders(req *http.Request) {
	req.Header.Set("x-goog-api-key", b.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
}

// convertContents maps unified messages to Gemini format. The system message
// becomes systemInstruction; the assistant role is renamed to "model".
func convertContents(msgs []types.Message) (*geminiContent, []geminiContent) {
	var systemInstruction *geminiContent
	var contents []geminiContent

	for _, m := range msgs {
		if m.Role == types.RoleSystem {
			systemInstruction = &geminiContent{
				Parts: []geminiPart{{Text: m.Content}},
			}
			continue
		}

		role := string(m.Role)
		if role == "assistant" {
			role = "model"
		}

		content := geminiContent{Role: role}
		if m.Content != "" {
			content.Parts = append(content.Parts, geminiPart{Text: m.Content})
		}
		for _, img := range m.Images {
			content.Parts = append(content.Parts, geminiPart{
				InlineData: &geminiInlineData{
					MimeType: img.MimeType,
					Data:     img.Data,
				},
			})
		}

		if len(content.Parts) > 0 {
			contents = append(contents, content)
		}
	}

	return systemInstruction, contents
}

// Invoke implements backend.Backend.
func (b *Backend) Invoke(ctx context.Context, msgs []types.Message) (string, error) {
	systemInstruction, contents := convertContents(msgs)

	payload, _ := json.Marshal(geminiRequest{
		Contents:          contents,
		SystemInstruction: systemInstruction,
	})

	endpoint := fmt.Sprintf("%s/v1beta/models/%s:generateContent",
		strings.TrimRight(b.cfg.BaseURL, "/"), b.cfg.Model)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", types.NewError(types.ErrInvalidRequest, "build request").
			WithCause(err).WithBackend(b.Name())
	}
	b.buildHeaders(httpReq)

	resp, err := b.client.Do(httpReq)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", types.NewError(types.ErrUpstreamError, err.Error()).
			WithHTTPStatus(http.StatusBadGateway).
			WithRetryable(true).
			WithBackend(b.Name())
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return "", mapError(resp.StatusCode, readErrMsg(resp.Body), b.Name())
	}

	var gr geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&gr); err != nil {
		return "", types.NewError(types.ErrUpstreamError, "decode response").
			WithCause(err).
			WithHTTPStatus(http.StatusBadGateway).
			WithRetryable(true).
			WithBackend(b.Name())
	}

	text := extractText(gr)
	if text == "" {
		return "", types.NewError(types.ErrUpstreamError, "empty completion").
			WithHTTPStatus(http.StatusBadGateway).
			WithBackend(b.Name())
	}

	b.logger.Debug("completion received", zap.Int("chars", len(text)))
	return text, nil
}

// HealthCheck implements backend.HealthChecker via the models listing
// endpoint.
func (b *Backend) HealthCheck(ctx context.Context) (*backend.HealthStatus, error) {
	start := time.Now()
	endpoint := fmt.Sprintf("%s/v1beta/models", strings.TrimRight(b.cfg.BaseURL, "/"))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	b.buildHeaders(httpReq)

	resp, err := b.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &backend.HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := readErrMsg(resp.Body)
		return &backend.HealthStatus{Healthy: false, Latency: latency},
			fmt.Errorf("gemini health check failed: status=%d msg=%s", resp.StatusCode, msg)
	}
	return &backend.HealthStatus{Healthy: true, Latency: latency}, nil
}

func extractText(gr geminiResponse) string {
	var sb strings.Builder
	for _, candidate := range gr.Candidates {
		for _, part := range candidate.Content.Parts {
			sb.WriteString(part.Text)
		}
		break // first candidate only
	}
	return sb.String()
}

func readErrMsg(body io.Reader) string {
	data, _ := io.ReadAll(body)
	var errResp geminiErrorResp
	if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
		return fmt.Sprintf("%s (status: %s)", errResp.Error.Message, errResp.Error.Status)
	}
	return string(data)
}

// mapError classifies an HTTP failure into the service error taxonomy.
// 429 is the rate-limit class the fallback cascade always advances past.
func mapError(status int, msg string, name string) *types.Error {
	switch status {
	case http.StatusUnauthorized:
		return types.NewError(types.ErrUnauthorized, msg).WithHTTPStatus(status).WithBackend(name)
	case http.StatusForbidden:
		return types.NewError(types.ErrForbidden, msg).WithHTTPStatus(status).WithBackend(name)
	case http.StatusTooManyRequests:
		return types.NewError(types.ErrRateLimited, msg).WithHTTPStatus(status).WithRetryable(true).WithBackend(name)
	case http.StatusBadRequest:
		if strings.Contains(msg, "quota") || strings.Contains(msg, "limit") {
			return types.NewError(types.ErrQuotaExceeded, msg).WithHTTPStatus(status).WithBackend(name)
		}
		return types.NewError(types.ErrInvalidRequest, msg).WithHTTPStatus(status).WithBackend(name)
	case http.StatusGatewayTimeout:
		return types.NewError(types.ErrUpstreamTimeout, msg).WithHTTPStatus(status).WithRetryable(true).WithBackend(name)
	case http.StatusServiceUnavailable, http.StatusBadGateway:
		return types.NewError(types.ErrUpstreamError, msg).WithHTTPStatus(status).WithRetryable(true).WithBackend(name)
	default:
		return types.NewError(types.ErrUpstreamError, msg).WithHTTPStatus(status).WithRetryable(status >= 500).WithBackend(name)
	}
}

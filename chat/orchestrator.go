package chat

import (
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/Odysseus24/neolatin-chatbot-api/backend"
	"github.com/Odysseus24/neolatin-chatbot-api/internal/metrics"
	"github.com/Odysseus24/neolatin-chatbot-api/types"
)

// Orchestrator walks a prioritized list of backends until one produces a
// completion. Every backend failure is contained: rate limits and other
// upstream errors alike advance to the next backend. A backend is never
// retried within one request.
type Orchestrator struct {
	backends []backend.Backend
	logger   *zap.Logger
	metrics  *metrics.Collector
}

// NewOrchestrator creates an orchestrator over the given backends, tried in
// order. At least one backend is required.
func NewOrchestrator(backends []backend.Backend, logger *zap.Logger, collector *metrics.Collector) (*Orchestrator, error) {
	if len(backends) == 0 {
		return nil, fmt.Errorf("orchestrator requires at least one backend")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{backends: backends, logger: logger, metrics: collector}, nil
}

// Complete runs the fallback sequence for one request. On success it
// returns the first backend's answer and stops; if every backend fails it
// returns an ALL_BACKENDS_FAILED error carrying the last failure as cause.
// Context cancellation aborts the sequence without a partial answer.
func (o *Orchestrator) Complete(ctx context.Context, msgs []types.Message) (*types.AnswerResult, error) {
	var lastErr error
	for _, b := range o.backends {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text, err := b.Invoke(ctx, msgs)
		if err == nil {
			o.metrics.ObserveBackendAttempt(b.Name(), "success")
			o.logger.Debug("backend answered",
				zap.String("backend", b.Name()),
			)
			return &types.AnswerResult{Text: text, Backend: b.Name()}, nil
		}

		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		lastErr = err
		outcome := "error"
		if types.IsRateLimited(err) {
			outcome = "rate_limited"
		}
		o.metrics.ObserveBackendAttempt(b.Name(), outcome)
		o.logger.Warn("backend failed, advancing",
			zap.String("backend", b.Name()),
			zap.String("outcome", outcome),
			zap.Error(err),
		)
	}

	o.metrics.ObserveFallbackExhausted()
	o.logger.Error("all backends failed",
		zap.Int("backends", len(o.backends)),
		zap.Error(lastErr),
	)
	return nil, types.NewError(types.ErrAllBackendsFailed, "all configured backends failed").
		WithCause(lastErr).
		WithHTTPStatus(http.StatusBadGateway)
}

// Backends lists the configured backend names in fallback order.
func (o *Orchestrator) Backends() []string {
	names := make([]string, len(o.backends))
	for i, b := range o.backends {
		names[i] = b.Name()
	}
	return names
}

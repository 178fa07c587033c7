// Package backend defines the contract for interchangeable answer-generation
// backends. A backend is a specific hosted model; the fallback cascade in the
// chat package is polymorphic over this interface.
package backend

import (
	"context"
	"time"

	"github.com/Odysseus24/neolatin-chatbot-api/types"
)

// Backend is a single answer-generation capability. Implementations must
// classify failures into structured *types.Error values at this boundary;
// callers never inspect raw upstream messages.
type Backend interface {
	// Invoke sends the composed prompt and returns the generated text.
	Invoke(ctx context.Context, msgs []types.Message) (string, error)

	// Name returns the backend's unique identifier (typically the model name).
	Name() string
}

// HealthStatus reports the result of a backend health probe.
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
}

// HealthChecker is an optional interface for backends that support a
// lightweight liveness probe. Use type assertion to check support:
//
//	if h, ok := b.(HealthChecker); ok { h.HealthCheck(ctx) }
type HealthChecker interface {
	HealthCheck(ctx context.Context) (*HealthStatus, error)
}

// Config holds per-backend connection settings.
type Config struct {
	APIKey  string        `json:"api_key" yaml:"api_key"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

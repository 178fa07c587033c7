// Package metrics provides internal Prometheus collectors.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector aggregates the service's Prometheus metrics.
type Collector struct {
	backendAttemptsTotal   *prometheus.CounterVec
	fallbackExhaustedTotal prometheus.Counter
	retrievalDuration      *prometheus.HistogramVec
	ingestTotal            *prometheus.CounterVec
}

// NewCollector registers the service metrics on the given registerer.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		backendAttemptsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "backend_attempts_total",
				Help:      "Backend invocations by backend name and outcome",
			},
			[]string{"backend", "outcome"},
		),
		fallbackExhaustedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "fallback_exhausted_total",
				Help:      "Requests for which every backend in the cascade failed",
			},
		),
		retrievalDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "retrieval_duration_seconds",
				Help:      "Vector search latency by retrieval scope",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"scope"},
		),
		ingestTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingest_total",
				Help:      "Document ingestions by document type and outcome",
			},
			[]string{"type", "outcome"},
		),
	}
}

// ObserveBackendAttempt records one backend invocation.
// Collector methods are nil-safe so callers can run unmetered.
func (c *Collector) ObserveBackendAttempt(backend, outcome string) {
	if c == nil {
		return
	}
	c.backendAttemptsTotal.WithLabelValues(backend, outcome).Inc()
}

// ObserveFallbackExhausted records a request that exhausted the cascade.
func (c *Collector) ObserveFallbackExhausted() {
	if c == nil {
		return
	}
	c.fallbackExhaustedTotal.Inc()
}

// ObserveRetrieval records one vector search.
func (c *Collector) ObserveRetrieval(scope string, d time.Duration) {
	if c == nil {
		return
	}
	c.retrievalDuration.WithLabelValues(scope).Observe(d.Seconds())
}

// ObserveIngest records one ingestion attempt.
func (c *Collector) ObserveIngest(docType, outcome string) {
	if c == nil {
		return
	}
	c.ingestTotal.WithLabelValues(docType, outcome).Inc()
}

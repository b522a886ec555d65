package scoreboardservice

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records score-retrieval activity.
type Metrics interface {
	RecordOperationAttempt(ctx context.Context, operation, service string)
	RecordOperationSuccess(ctx context.Context, operation, service string)
	RecordOperationFailure(ctx context.Context, operation, service string)
	RecordOperationDuration(ctx context.Context, operation, service string, duration time.Duration)
	RecordCacheHit(ctx context.Context, cache string)
	RecordCacheMiss(ctx context.Context, cache string)
	RecordCacheEviction(ctx context.Context, reason string, count int)
	RecordBackendResolution(ctx context.Context, outcome string)
}

// NoOpMetrics discards everything.
type NoOpMetrics struct{}

// NewNoop returns a Metrics implementation that records nothing.
func NewNoop() Metrics { return NoOpMetrics{} }

func (NoOpMetrics) RecordOperationAttempt(context.Context, string, string)                 {}
func (NoOpMetrics) RecordOperationSuccess(context.Context, string, string)                 {}
func (NoOpMetrics) RecordOperationFailure(context.Context, string, string)                 {}
func (NoOpMetrics) RecordOperationDuration(context.Context, string, string, time.Duration) {}
func (NoOpMetrics) RecordCacheHit(context.Context, string)                                 {}
func (NoOpMetrics) RecordCacheMiss(context.Context, string)                                {}
func (NoOpMetrics) RecordCacheEviction(context.Context, string, int)                       {}
func (NoOpMetrics) RecordBackendResolution(context.Context, string)                        {}

// PrometheusMetrics exports score-retrieval metrics to a Prometheus registry.
type PrometheusMetrics struct {
	attempts    *prometheus.CounterVec
	successes   *prometheus.CounterVec
	failures    *prometheus.CounterVec
	durations   *prometheus.HistogramVec
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec
	evictions   *prometheus.CounterVec
	resolutions *prometheus.CounterVec
}

// NewPrometheusMetrics creates the collectors and registers them with reg.
func NewPrometheusMetrics(reg prometheus.Registerer, namespace string) *PrometheusMetrics {
	m := &PrometheusMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scoreboard", Name: "operation_attempts_total",
			Help: "Score retrieval operations started.",
		}, []string{"operation", "service"}),
		successes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scoreboard", Name: "operation_success_total",
			Help: "Score retrieval operations that completed without error.",
		}, []string{"operation", "service"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scoreboard", Name: "operation_failures_total",
			Help: "Score retrieval operations that returned an error or panicked.",
		}, []string{"operation", "service"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "scoreboard", Name: "operation_duration_seconds",
			Help:    "Score retrieval operation latency.",
			Buckets: prometheus.DefBuckets,
		}, []string{"operation", "service"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scoreboard", Name: "cache_hits_total",
			Help: "Cache lookups served without calling the backend.",
		}, []string{"cache"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scoreboard", Name: "cache_misses_total",
			Help: "Cache lookups that called through to the backend.",
		}, []string{"cache"}),
		evictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scoreboard", Name: "cache_evictions_total",
			Help: "Team detail entries removed from the cache.",
		}, []string{"reason"}),
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "scoreboard", Name: "backend_resolutions_total",
			Help: "Backend resolution attempts by outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.attempts, m.successes, m.failures, m.durations,
			m.cacheHits, m.cacheMisses, m.evictions, m.resolutions)
	}
	return m
}

func (m *PrometheusMetrics) RecordOperationAttempt(_ context.Context, operation, service string) {
	m.attempts.WithLabelValues(operation, service).Inc()
}

func (m *PrometheusMetrics) RecordOperationSuccess(_ context.Context, operation, service string) {
	m.successes.WithLabelValues(operation, service).Inc()
}

func (m *PrometheusMetrics) RecordOperationFailure(_ context.Context, operation, service string) {
	m.failures.WithLabelValues(operation, service).Inc()
}

func (m *PrometheusMetrics) RecordOperationDuration(_ context.Context, operation, service string, duration time.Duration) {
	m.durations.WithLabelValues(operation, service).Observe(duration.Seconds())
}

func (m *PrometheusMetrics) RecordCacheHit(_ context.Context, cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

func (m *PrometheusMetrics) RecordCacheMiss(_ context.Context, cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

func (m *PrometheusMetrics) RecordCacheEviction(_ context.Context, reason string, count int) {
	m.evictions.WithLabelValues(reason).Add(float64(count))
}

func (m *PrometheusMetrics) RecordBackendResolution(_ context.Context, outcome string) {
	m.resolutions.WithLabelValues(outcome).Inc()
}

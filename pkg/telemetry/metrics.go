package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for the rule-key subsystem.
type Metrics struct {
	config MetricsConfig

	// Rule key metrics
	ruleKeysComputed prometheus.Counter
	ruleKeyDuration  prometheus.Histogram

	// Cache metrics
	ruleCacheHits        prometheus.Counter
	ruleCacheMisses      prometheus.Counter
	appendableCacheHits  prometheus.Counter
	appendableCacheMisses prometheus.Counter

	// Coercion metrics
	coerceFailures *prometheus.CounterVec

	// File hashing metrics
	filesHashed prometheus.Counter

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
// A disabled configuration yields a no-op instance whose recorders are safe
// to call.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		ruleKeysComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rulekeys_computed_total",
			Help:      "Total number of rule keys computed",
		}),
		ruleKeyDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rulekey_build_seconds",
			Help:      "Duration of individual rule key computations in seconds",
			Buckets:   buckets,
		}),
		ruleCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rulekey_cache_hits_total",
			Help:      "Rule key cache hits",
		}),
		ruleCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rulekey_cache_misses_total",
			Help:      "Rule key cache misses",
		}),
		appendableCacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appendable_cache_hits_total",
			Help:      "Appendable fingerprint cache hits",
		}),
		appendableCacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "appendable_cache_misses_total",
			Help:      "Appendable fingerprint cache misses",
		}),
		coerceFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "coerce_failures_total",
			Help:      "Attribute coercion failures",
		}, []string{"rule_type"}),
		filesHashed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "files_hashed_total",
			Help:      "Files hashed for rule key computation",
		}),
	}

	registry.MustRegister(
		m.ruleKeysComputed,
		m.ruleKeyDuration,
		m.ruleCacheHits,
		m.ruleCacheMisses,
		m.appendableCacheHits,
		m.appendableCacheMisses,
		m.coerceFailures,
		m.filesHashed,
	)

	return m, nil
}

// Handler returns the HTTP handler serving the metrics endpoint, or nil when
// metrics are disabled.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordRuleKeyComputed records one completed rule key computation.
func (m *Metrics) RecordRuleKeyComputed(seconds float64) {
	if m.registry == nil {
		return
	}
	m.ruleKeysComputed.Inc()
	m.ruleKeyDuration.Observe(seconds)
}

// RecordRuleCacheLookup records a rule cache hit or miss.
func (m *Metrics) RecordRuleCacheLookup(hit bool) {
	if m.registry == nil {
		return
	}
	if hit {
		m.ruleCacheHits.Inc()
	} else {
		m.ruleCacheMisses.Inc()
	}
}

// RecordAppendableCacheLookup records an appendable cache hit or miss.
func (m *Metrics) RecordAppendableCacheLookup(hit bool) {
	if m.registry == nil {
		return
	}
	if hit {
		m.appendableCacheHits.Inc()
	} else {
		m.appendableCacheMisses.Inc()
	}
}

// RecordCoerceFailure records a coercion failure for the given rule type.
func (m *Metrics) RecordCoerceFailure(ruleType string) {
	if m.registry == nil {
		return
	}
	m.coerceFailures.WithLabelValues(ruleType).Inc()
}

// RecordFileHashed records one file content hash.
func (m *Metrics) RecordFileHashed() {
	if m.registry == nil {
		return
	}
	m.filesHashed.Inc()
}

// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gapradar"

// Metrics owns a private registry and every gapradar collector. It
// implements cache.Observer.
type Metrics struct {
	registry *prometheus.Registry

	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	cacheEvictions *prometheus.CounterVec

	unifiedScore    prometheus.Histogram
	signalScore     *prometheus.HistogramVec
	analyses        *prometheus.CounterVec
	analyzeDuration prometheus.Histogram
	sourceErrors    *prometheus.CounterVec
	httpRequests    *prometheus.CounterVec
}

// New registers all collectors on a fresh registry. withRuntime adds the Go
// and process collectors.
func New(withRuntime bool) *Metrics {
	reg := prometheus.NewRegistry()
	if withRuntime {
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
		)
	}

	scoreBuckets := prometheus.LinearBuckets(10, 10, 10)
	m := &Metrics{
		registry: reg,
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "hits_total",
			Help: "Cache lookups that found a live entry.",
		}, []string{"cache"}),
		cacheMisses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "misses_total",
			Help: "Cache lookups that found nothing or an expired entry.",
		}, []string{"cache"}),
		cacheEvictions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "evictions_total",
			Help: "Expired entries removed from a cache.",
		}, []string{"cache"}),
		unifiedScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "scoring", Name: "unified_score",
			Help:    "Distribution of unified demand scores.",
			Buckets: scoreBuckets,
		}),
		signalScore: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "scoring", Name: "signal_score",
			Help:    "Distribution of per-signal scores.",
			Buckets: scoreBuckets,
		}, []string{"kind"}),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "demand", Name: "analyses_total",
			Help: "Niche analyses by outcome.",
		}, []string{"outcome"}),
		analyzeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "demand", Name: "analyze_duration_seconds",
			Help:    "Wall time of uncached niche analyses.",
			Buckets: prometheus.DefBuckets,
		}),
		sourceErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "source", Name: "errors_total",
			Help: "Collector failures by source.",
		}, []string{"source"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "code"}),
	}
	reg.MustRegister(
		m.cacheHits, m.cacheMisses, m.cacheEvictions,
		m.unifiedScore, m.signalScore,
		m.analyses, m.analyzeDuration,
		m.sourceErrors, m.httpRequests,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Hit(cache string)  { m.cacheHits.WithLabelValues(cache).Inc() }
func (m *Metrics) Miss(cache string) { m.cacheMisses.WithLabelValues(cache).Inc() }

func (m *Metrics) Evict(cache string, n int) {
	m.cacheEvictions.WithLabelValues(cache).Add(float64(n))
}

// ObserveScore records a unified score and its per-signal values.
func (m *Metrics) ObserveScore(unified int, signals map[string]float64) {
	m.unifiedScore.Observe(float64(unified))
	for kind, v := range signals {
		m.signalScore.WithLabelValues(kind).Observe(v)
	}
}

// ObserveAnalysis records one analysis outcome ("ok" or "error").
func (m *Metrics) ObserveAnalysis(outcome string, took time.Duration) {
	m.analyses.WithLabelValues(outcome).Inc()
	if outcome == "ok" {
		m.analyzeDuration.Observe(took.Seconds())
	}
}

// SourceError counts a collector failure.
func (m *Metrics) SourceError(source string) {
	m.sourceErrors.WithLabelValues(source).Inc()
}

// HTTPRequest counts one served request.
func (m *Metrics) HTTPRequest(route string, code int) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
}

// Package metrics exposes reconciliation and HTTP metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"invoice-reconciliation-service/internal/models"
)

// Outcome labels for reconciliations
const (
	OutcomeSuccess     = "success"
	OutcomeClientError = "client_error"
	OutcomeStoreError  = "store_error"
	OutcomeError       = "error"
)

// Metrics holds every collector on a private registry. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	reconciliations     *prometheus.CounterVec
	reconcileDuration   prometheus.Histogram
	findings            *prometheus.CounterVec
	duplicates          *prometheus.CounterVec
	narrativeFailures   prometheus.Counter
	narrativeCacheHits  *prometheus.CounterVec
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// New creates and registers the collectors under namespace
func New(namespace string) *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.reconciliations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "reconciliations_total",
		Help:      "Total number of reconciliations by outcome.",
	}, []string{"outcome"})

	m.reconcileDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "reconciliation_duration_seconds",
		Help:      "Duration of a single reconciliation in seconds.",
		Buckets:   prometheus.DefBuckets,
	})

	m.findings = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "findings_total",
		Help:      "Total number of findings by kind and severity.",
	}, []string{"kind", "severity"})

	m.duplicates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "duplicates_total",
		Help:      "Total number of duplicate submissions by heuristic.",
	}, []string{"heuristic"})

	m.narrativeFailures = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "narrative_failures_total",
		Help:      "Total number of narrative summaries that failed or timed out.",
	})

	m.narrativeCacheHits = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "narrative_cache_lookups_total",
		Help:      "Narrative cache lookups by result.",
	}, []string{"result"})

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total number of HTTP requests by route and status.",
	}, []string{"method", "route", "status"})

	m.httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "Duration of HTTP requests in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	m.registry.MustRegister(
		m.reconciliations,
		m.reconcileDuration,
		m.findings,
		m.duplicates,
		m.narrativeFailures,
		m.narrativeCacheHits,
		m.httpRequests,
		m.httpRequestDuration,
	)
	return m
}

// Registry returns the registry backing m
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveReconciliation records one finished reconciliation
func (m *Metrics) ObserveReconciliation(result *models.ReconciliationResult, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.reconciliations.WithLabelValues(outcome).Inc()
	m.reconcileDuration.Observe(elapsed.Seconds())

	if result == nil {
		return
	}
	for _, f := range result.Findings() {
		m.findings.WithLabelValues(string(f.Kind), string(f.Severity)).Inc()
		if f.Kind == models.KindDuplicateInvoice {
			heuristic, _ := f.Details["heuristic"].(string)
			m.duplicates.WithLabelValues(heuristic).Inc()
		}
	}
}

// NarrativeFailed records a failed narrative summary
func (m *Metrics) NarrativeFailed() {
	if m == nil {
		return
	}
	m.narrativeFailures.Inc()
}

// NarrativeCacheLookup records a narrative cache hit, miss or error
func (m *Metrics) NarrativeCacheLookup(result string) {
	if m == nil {
		return
	}
	m.narrativeCacheHits.WithLabelValues(result).Inc()
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

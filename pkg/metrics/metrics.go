// Package metrics defines the Prometheus collectors for the query compiler
// services. Recording methods accept a nil *Metrics so components can run
// without instrumentation.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "classicq"

type Metrics struct {
	HTTPRequestsTotal    *prometheus.CounterVec
	HTTPRequestDuration  *prometheus.HistogramVec
	HTTPRequestsInFlight prometheus.Gauge

	CompilesTotal        *prometheus.CounterVec
	CompileStageDuration *prometheus.HistogramVec
	EmptyMatchesTotal    *prometheus.CounterVec

	SearchLatency      *prometheus.HistogramVec
	SearchResultsCount prometheus.Histogram
	CacheLookupsTotal  *prometheus.CounterVec
	PapersIndexedTotal prometheus.Counter
	IndexDocCount      prometheus.Gauge

	AnalyticsEventsTotal *prometheus.CounterVec
	CircuitBreakerState  *prometheus.GaugeVec
}

// New creates every collector on reg. A nil reg uses the process-wide
// default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_total",
			Help: "HTTP requests by method, normalized path and status code.",
		}, []string{"method", "path", "code"}),
		HTTPRequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "http", Name: "request_duration_seconds",
			Help:    "HTTP request latency.",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2.5, 10),
		}, []string{"method", "path"}),
		HTTPRequestsInFlight: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "http", Name: "requests_in_flight",
			Help: "HTTP requests currently being served.",
		}),

		CompilesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "compiler", Name: "compiles_total",
			Help: "Compilations by outcome: compiled, empty, or the syntax error kind.",
		}, []string{"outcome"}),
		CompileStageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "compiler", Name: "stage_duration_seconds",
			Help:    "Time spent in each compiler stage.",
			Buckets: prometheus.ExponentialBuckets(0.000005, 4, 8),
		}, []string{"stage"}),
		EmptyMatchesTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "compiler", Name: "empty_matches_total",
			Help: "Queries that compiled to an empty match, by reason.",
		}, []string{"reason"}),

		SearchLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "search", Name: "latency_seconds",
			Help:    "Compile plus execution latency against the reference index.",
			Buckets: prometheus.ExponentialBuckets(0.001, 2.5, 8),
		}, []string{"cache"}),
		SearchResultsCount: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "search", Name: "hits",
			Help:    "Total hits matched per search.",
			Buckets: []float64{0, 1, 5, 10, 50, 100, 1000, 10000},
		}),
		CacheLookupsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "lookups_total",
			Help: "Compiled-query cache lookups by result (hit, miss).",
		}, []string{"result"}),
		PapersIndexedTotal: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "index", Name: "papers_indexed_total",
			Help: "Paper versions written to the reference index.",
		}),
		IndexDocCount: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "index", Name: "documents",
			Help: "Documents currently in the reference index.",
		}),

		AnalyticsEventsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "analytics", Name: "events_total",
			Help: "Compile events by delivery status (published, failed, dropped).",
		}, []string{"status"}),
		CircuitBreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open).",
		}, []string{"name"}),
	}
}

// ObserveStage records one compiler stage duration.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.CompileStageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// ObserveCompile counts a compilation outcome. emptyReason is set only for
// queries that compiled to an empty match.
func (m *Metrics) ObserveCompile(outcome, emptyReason string) {
	if m == nil {
		return
	}
	m.CompilesTotal.WithLabelValues(outcome).Inc()
	if emptyReason != "" {
		m.EmptyMatchesTotal.WithLabelValues(emptyReason).Inc()
	}
}

func (m *Metrics) ObserveSearch(cached bool, latency time.Duration, hits uint64) {
	if m == nil {
		return
	}
	m.SearchLatency.WithLabelValues(hitLabel(cached)).Observe(latency.Seconds())
	m.SearchResultsCount.Observe(float64(hits))
}

func (m *Metrics) ObserveCacheLookup(hit bool) {
	if m == nil {
		return
	}
	m.CacheLookupsTotal.WithLabelValues(hitLabel(hit)).Inc()
}

func (m *Metrics) ObserveIndexed(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.PapersIndexedTotal.Add(float64(n))
}

func (m *Metrics) SetIndexSize(docs uint64) {
	if m == nil {
		return
	}
	m.IndexDocCount.Set(float64(docs))
}

func (m *Metrics) SetBreakerState(name string, state int) {
	if m == nil {
		return
	}
	m.CircuitBreakerState.WithLabelValues(name).Set(float64(state))
}

func (m *Metrics) CountEvents(status string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.AnalyticsEventsTotal.WithLabelValues(status).Add(float64(n))
}

func hitLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}

// Handler returns the scrape handler for the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

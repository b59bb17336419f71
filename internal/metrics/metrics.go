package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder holds the engine's Prometheus collectors.
// A nil *Recorder is valid and records nothing.
type Recorder struct {
	gatherer prometheus.Gatherer

	cacheEvents      *prometheus.CounterVec
	providerFetches  *prometheus.CounterVec
	providerLatency  *prometheus.HistogramVec
	categoryFailures *prometheus.CounterVec
	recommendations  *prometheus.CounterVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

// New registers the collectors on reg
func New(reg *prometheus.Registry) *Recorder {
	factory := promauto.With(reg)

	return &Recorder{
		gatherer: reg,
		cacheEvents: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "longterm_cache_events_total",
				Help: "Result cache events (hit, miss, fetch, failure, cooldown, l2_hit)",
			},
			[]string{"event"},
		),
		providerFetches: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "longterm_provider_fetches_total",
				Help: "Screening provider calls by category and outcome",
			},
			[]string{"category", "outcome"},
		),
		providerLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "longterm_provider_fetch_duration_seconds",
				Help:    "Screening provider call duration in seconds",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"category"},
		),
		categoryFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "longterm_category_failures_total",
				Help: "Categories skipped after retries, by failure kind",
			},
			[]string{"category", "kind"},
		),
		recommendations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "longterm_recommendations_total",
				Help: "Recommendation requests by outcome",
			},
			[]string{"outcome"},
		),
		httpRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "longterm_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"route", "method", "status"},
		),
		httpDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "longterm_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"route", "method"},
		),
	}
}

// CacheEvent records one result cache event
func (r *Recorder) CacheEvent(event string) {
	if r == nil {
		return
	}
	r.cacheEvents.WithLabelValues(event).Inc()
}

// ProviderFetch records one screening call
func (r *Recorder) ProviderFetch(category, outcome string, seconds float64) {
	if r == nil {
		return
	}
	r.providerFetches.WithLabelValues(category, outcome).Inc()
	r.providerLatency.WithLabelValues(category).Observe(seconds)
}

// CategoryFailure records a category skipped by the aggregator
func (r *Recorder) CategoryFailure(category, kind string) {
	if r == nil {
		return
	}
	r.categoryFailures.WithLabelValues(category, kind).Inc()
}

// Recommendation records a request outcome (ok, degraded, unavailable, rejected)
func (r *Recorder) Recommendation(outcome string) {
	if r == nil {
		return
	}
	r.recommendations.WithLabelValues(outcome).Inc()
}

// HTTPRequest records one served request
func (r *Recorder) HTTPRequest(route, method, status string, seconds float64) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, method, status).Inc()
	r.httpDuration.WithLabelValues(route, method).Observe(seconds)
}

// Handler exposes the registry in Prometheus text format
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// Package metrics exposes Prometheus collectors for the crawl service.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	usersProcessedTotal       *prometheus.CounterVec
	pagesFetchedTotal         prometheus.Counter
	tokenRotationsTotal       prometheus.Counter
	rateLimitWaitsSeconds     prometheus.Histogram
	githubRequestsTotal       *prometheus.CounterVec
	locationLookupsTotal      *prometheus.CounterVec
	httpRequestsTotal         *prometheus.CounterVec
	httpRequestDurationSecond *prometheus.HistogramVec
	activeEnrichments         prometheus.Gauge

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		usersProcessedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_users_processed_total",
				Help: "Total users processed, labeled by outcome (saved, duplicate, skipped_no_email, error).",
			},
			[]string{"outcome"},
		)

		pagesFetchedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawl_pages_fetched_total",
				Help: "Total directory listing pages fetched.",
			},
		)

		tokenRotationsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "crawl_token_rotations_total",
				Help: "Total credential rotations triggered by rate limiting.",
			},
		)

		rateLimitWaitsSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawl_rate_limit_waits_seconds",
				Help:    "Histogram of waits spent blocked on rate limit resets.",
				Buckets: []float64{1, 5, 15, 60, 300, 900, 3600},
			},
		)

		githubRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_github_requests_total",
				Help: "Total upstream API requests, labeled by status code.",
			},
			[]string{"code"},
		)

		locationLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawl_location_lookups_total",
				Help: "Total location resolutions, labeled by source (gazetteer, provider, unresolved).",
			},
			[]string{"source"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSecond = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)

		activeEnrichments = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawl_active_enrichments",
				Help: "Number of entities currently being enriched.",
			},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveUser increments the processed-user counter for the given outcome.
func ObserveUser(outcome string) {
	usersProcessedTotal.WithLabelValues(outcome).Inc()
}

// ObservePageFetched increments the fetched-page counter.
func ObservePageFetched() {
	pagesFetchedTotal.Inc()
}

// ObserveTokenRotation increments the credential rotation counter.
func ObserveTokenRotation() {
	tokenRotationsTotal.Inc()
}

// ObserveRateLimitWait records the duration of a rate limit wait.
func ObserveRateLimitWait(duration time.Duration) {
	rateLimitWaitsSeconds.Observe(duration.Seconds())
}

// ObserveGitHubRequest increments the upstream request counter for a status code.
func ObserveGitHubRequest(code int) {
	githubRequestsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

// ObserveLocationLookup increments the location resolution counter for a source.
func ObserveLocationLookup(source string) {
	locationLookupsTotal.WithLabelValues(source).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSecond.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveEnrichments increments the active enrichment gauge.
func IncActiveEnrichments() {
	activeEnrichments.Inc()
}

// DecActiveEnrichments decrements the active enrichment gauge.
func DecActiveEnrichments() {
	activeEnrichments.Dec()
}

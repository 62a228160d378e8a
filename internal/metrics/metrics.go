// Package metrics exposes Prometheus collectors for the discovery service.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	discoveryCitationsTotal      *prometheus.CounterVec
	discoveryPagesTotal          *prometheus.CounterVec
	discoveryDecisionsTotal      *prometheus.CounterVec
	discoveryDuplicatesTotal     prometheus.Counter
	discoveryErrorsTotal         *prometheus.CounterVec
	discoveryOracleScores        prometheus.Histogram
	discoveryStepDurationSeconds *prometheus.HistogramVec
	discoveryRateDeferralsTotal  *prometheus.CounterVec
	httpRequestsTotal            *prometheus.CounterVec
	httpRequestDurationSeconds   *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		discoveryCitationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discovery_citations_total",
				Help: "Total citations processed, labeled by site and verification status.",
			},
			[]string{"site", "status"},
		)

		discoveryPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discovery_pages_total",
				Help: "Total monitored pages processed, labeled by status.",
			},
			[]string{"status"},
		)

		discoveryDecisionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discovery_decisions_total",
				Help: "Total vetting decisions, labeled by outcome.",
			},
			[]string{"decision"},
		)

		discoveryDuplicatesTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "discovery_duplicates_total",
				Help: "Total citations short-circuited by the seen-URL ledger.",
			},
		)

		discoveryErrorsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discovery_errors_total",
				Help: "Total pipeline errors, labeled by kind and step.",
			},
			[]string{"kind", "step"},
		)

		discoveryOracleScores = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "discovery_oracle_scores",
				Help:    "Distribution of oracle relevance scores.",
				Buckets: []float64{10, 20, 30, 40, 50, 60, 70, 80, 90, 100},
			},
		)

		discoveryStepDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "discovery_step_duration_seconds",
				Help:    "Latency of pipeline steps.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"step"},
		)

		discoveryRateDeferralsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "discovery_rate_deferrals_total",
				Help: "Total citations deferred by the per-domain rate limiter.",
			},
			[]string{"domain"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveCitation increments the citation counter for a site and status.
func ObserveCitation(site, status string) {
	discoveryCitationsTotal.WithLabelValues(SanitizeSite(site), status).Inc()
}

// ObservePage increments the monitored-page counter for a status.
func ObservePage(status string) {
	discoveryPagesTotal.WithLabelValues(status).Inc()
}

// ObserveDecision records one vetting outcome and, for scored decisions,
// the oracle score.
func ObserveDecision(decision string, score int) {
	discoveryDecisionsTotal.WithLabelValues(decision).Inc()
	if score > 0 {
		discoveryOracleScores.Observe(float64(score))
	}
}

// ObserveDuplicate increments the seen-ledger short-circuit counter.
func ObserveDuplicate() {
	discoveryDuplicatesTotal.Inc()
}

// ObserveError increments the error counter for a kind and step.
func ObserveError(kind, step string) {
	discoveryErrorsTotal.WithLabelValues(kind, step).Inc()
}

// ObserveStep records the duration of one pipeline step.
func ObserveStep(step string, duration time.Duration) {
	discoveryStepDurationSeconds.WithLabelValues(step).Observe(duration.Seconds())
}

// ObserveRateDeferral counts a citation deferred by the domain limiter.
func ObserveRateDeferral(domain string) {
	discoveryRateDeferralsTotal.WithLabelValues(domain).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

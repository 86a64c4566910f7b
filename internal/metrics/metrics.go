package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "missiontle_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"path", "method", "code"},
	)

	httpDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "missiontle_http_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method"},
	)

	upstreamRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "missiontle_upstream_requests_total",
			Help: "Upstream provider requests by provider and outcome.",
		},
		[]string{"provider", "outcome"},
	)

	upstreamDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "missiontle_upstream_duration_seconds",
			Help:    "Upstream provider request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	aggregationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "missiontle_aggregations_total",
			Help: "Mission TLE aggregations by outcome (found, not_found, error).",
		},
		[]string{"outcome"},
	)

	aggregationTransactions = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "missiontle_aggregation_transactions",
			Help:    "Upstream transactions spent per aggregation.",
			Buckets: prometheus.LinearBuckets(1, 1, 10),
		},
	)

	truncatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "missiontle_aggregation_truncated_total",
			Help: "Aggregations that stopped early because the transaction budget ran out.",
		},
	)
)

func init() {
	prometheus.MustRegister(httpRequestsTotal)
	prometheus.MustRegister(httpDurationSeconds)
	prometheus.MustRegister(upstreamRequestsTotal)
	prometheus.MustRegister(upstreamDurationSeconds)
	prometheus.MustRegister(aggregationsTotal)
	prometheus.MustRegister(aggregationTransactions)
	prometheus.MustRegister(truncatedTotal)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveUpstream records one upstream call.
func ObserveUpstream(provider, outcome string, d time.Duration) {
	upstreamRequestsTotal.WithLabelValues(provider, outcome).Inc()
	upstreamDurationSeconds.WithLabelValues(provider).Observe(d.Seconds())
}

// ObserveAggregation records the outcome of one mission aggregation and
// the transactions it spent.
func ObserveAggregation(outcome string, spent int, truncated bool) {
	aggregationsTotal.WithLabelValues(outcome).Inc()
	aggregationTransactions.Observe(float64(spent))
	if truncated {
		truncatedTotal.Inc()
	}
}

// normalizeRoute collapses request paths into a bounded set of labels so
// that mission IDs and bot probes do not explode metric cardinality.
func normalizeRoute(path string) string {
	switch path {
	case "/healthz", "/readyz", "/metrics":
		return path
	}
	if rest, ok := strings.CutPrefix(path, "/tle/"); ok && rest != "" && !strings.Contains(rest, "/") {
		return "/tle/{mission_id}"
	}
	return "other"
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// Middleware records request count and duration for each request.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(rw, r)

		duration := time.Since(start).Seconds()
		code := strconv.Itoa(rw.statusCode)
		route := normalizeRoute(r.URL.Path)

		httpRequestsTotal.WithLabelValues(route, r.Method, code).Inc()
		httpDurationSeconds.WithLabelValues(route, r.Method).Observe(duration)
	})
}

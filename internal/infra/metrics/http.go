package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(httpRequestDuration, rateLimitedTotal) }

var (
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mentalspace_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern and status code.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "code"},
	)

	rateLimitedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mentalspace_rate_limited_total",
			Help: "Requests rejected by the rate limiter, by bucket.",
		},
		[]string{"bucket"},
	)
)

func ObserveHTTP(method, route string, code int, seconds float64) {
	if route == "" {
		route = "unmatched"
	}
	httpRequestDuration.WithLabelValues(method, route, strconv.Itoa(code)).Observe(seconds)
}

func IncRateLimited(bucket string) {
	rateLimitedTotal.WithLabelValues(norm(bucket)).Inc()
}

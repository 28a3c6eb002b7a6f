package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// UnmatchedRoute is the route label for requests that matched no route.
// Raw request paths are never used as label values.
const UnmatchedRoute = "unmatched"

var (
	// HTTPRequestsTotal counts API requests by method, route template and status.
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"method", "route", "status"},
	)

	// HTTPRequestDuration measures API request latency.
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		},
		[]string{"method", "route"},
	)

	// HTTPResponseSize measures response body size.
	HTTPResponseSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "response_size_bytes",
			Help:      "API response body size in bytes",
			Buckets:   prometheus.ExponentialBuckets(64, 4, 8),
		},
		[]string{"method", "route"},
	)

	// HTTPRequestsInFlight is the number of requests being served.
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of API requests currently being served",
		},
	)
)

// RouteLabel maps a gin route template to a label value.
func RouteLabel(route string) string {
	if route == "" {
		return UnmatchedRoute
	}
	return route
}

// ObserveHTTPRequest records one finished request. A negative size means
// nothing was written and is not observed.
func ObserveHTTPRequest(method, route string, status int, elapsed time.Duration, size int) {
	route = RouteLabel(route)
	HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
	if size >= 0 {
		HTTPResponseSize.WithLabelValues(method, route).Observe(float64(size))
	}
}

func registerHTTPMetrics() error {
	return register(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		HTTPResponseSize,
		HTTPRequestsInFlight,
	)
}

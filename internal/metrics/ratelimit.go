package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RateLimitChecks counts rate limit checks by type and result.
	RateLimitChecks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "operator_ratelimit_checks_total",
			Help: "Total number of rate limit checks",
		},
		[]string{"limit_type", "allowed"},
	)

	// RateLimitBlocks counts rejected requests by limit type. Client keys are
	// not used as labels to keep cardinality bounded.
	RateLimitBlocks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "operator_ratelimit_blocks_total",
			Help: "Total number of rate limit blocks",
		},
		[]string{"limit_type"},
	)

	// RateLimitBuckets tracks how many client buckets are held.
	RateLimitBuckets = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "operator_ratelimit_buckets",
			Help: "Number of rate limit buckets currently held",
		},
	)

	// RateLimitBucketCapacity tracks the maximum capacity of rate limit buckets.
	RateLimitBucketCapacity = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "operator_ratelimit_bucket_capacity",
			Help: "Maximum capacity of rate limit buckets",
		},
		[]string{"limit_type"},
	)
)

// registerRateLimitMetrics registers all rate limiting metrics.
func registerRateLimitMetrics() error {
	return register(
		RateLimitChecks,
		RateLimitBlocks,
		RateLimitBuckets,
		RateLimitBucketCapacity,
	)
}

// RecordRateLimit counts one rate limit check and, when denied, one block.
func RecordRateLimit(limitType string, allowed bool) {
	if allowed {
		RateLimitChecks.WithLabelValues(limitType, "true").Inc()
		return
	}
	RateLimitChecks.WithLabelValues(limitType, "false").Inc()
	RateLimitBlocks.WithLabelValues(limitType).Inc()
}

// Package ratelimit provides keyed token-bucket limits for the API.
package ratelimit

import (
	"fmt"
	"math"
	"time"

	"golang.org/x/time/rate"

	"blackroad.io/operator/internal/metrics"
)

// LimitType represents the type of rate limit to apply.
type LimitType string

const (
	// LimitTypeAuthFailure is for failed admin token checks per IP.
	LimitTypeAuthFailure LimitType = "auth_failure"

	// LimitTypeEvaluation is for policy evaluations per IP.
	LimitTypeEvaluation LimitType = "evaluation"

	// LimitTypeTaskMutation is for scaffold task mutations per IP.
	LimitTypeTaskMutation LimitType = "task_mutation"

	// LimitTypeHealthCheck is for unauthenticated health check requests per IP.
	LimitTypeHealthCheck LimitType = "health_check"
)

// Config holds the per-minute limits. Each limit is also its burst size.
type Config struct {
	AuthFailuresPerMin  int
	EvaluationsPerMin   int
	TaskMutationsPerMin int
	HealthChecksPerMin  int

	// Burst overrides the bucket size of every limit type when positive.
	Burst int

	// IdleTTL is how long an unused bucket is kept. Zero means one hour.
	IdleTTL time.Duration
}

// DefaultConfig returns the default rate limiting configuration.
func DefaultConfig() Config {
	return Config{
		AuthFailuresPerMin:  10,
		EvaluationsPerMin:   600,
		TaskMutationsPerMin: 120,
		HealthChecksPerMin:  60,
		IdleTTL:             time.Hour,
	}
}

// Limiter keeps one token bucket per key.
type Limiter struct {
	storage *Storage
	config  Config
	now     func() time.Time
}

// NewLimiter creates a new rate limiter with the given configuration.
func NewLimiter(config Config) *Limiter {
	if config.IdleTTL <= 0 {
		config.IdleTTL = time.Hour
	}
	return &Limiter{
		storage: NewStorage(config.IdleTTL),
		config:  config,
		now:     time.Now,
	}
}

// Allow takes one token from key's bucket. When the bucket is empty it
// returns false and the number of seconds until a token is available.
func (l *Limiter) Allow(key string, limitType LimitType) (allowed bool, retryAfter int) {
	now := l.now()
	bucket := l.storage.GetOrCreate(key, func() *Bucket {
		return l.createBucket(limitType, now)
	})
	bucket.Touch(now)

	defer func() { metrics.RecordRateLimit(string(limitType), allowed) }()

	r := bucket.Limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, 60
	}
	delay := r.DelayFrom(now)
	if delay == 0 {
		return true, 0
	}
	r.CancelAt(now)

	retrySeconds := int(math.Ceil(delay.Seconds()))
	if retrySeconds < 1 {
		retrySeconds = 1
	}
	return false, retrySeconds
}

// Blocked reports whether key's bucket is empty without taking a token.
// A key with no bucket yet is never blocked.
func (l *Limiter) Blocked(key string) (blocked bool, retryAfter int) {
	bucket := l.storage.Get(key)
	if bucket == nil {
		return false, 0
	}
	now := l.now()
	tokens := bucket.Limiter.TokensAt(now)
	if tokens >= 1 {
		return false, 0
	}
	limit := float64(bucket.Limiter.Limit())
	if limit <= 0 {
		return true, 60
	}
	retrySeconds := int(math.Ceil((1 - tokens) / limit))
	if retrySeconds < 1 {
		retrySeconds = 1
	}
	return true, retrySeconds
}

func (l *Limiter) perMinute(limitType LimitType) int {
	switch limitType {
	case LimitTypeAuthFailure:
		return l.config.AuthFailuresPerMin
	case LimitTypeEvaluation:
		return l.config.EvaluationsPerMin
	case LimitTypeTaskMutation:
		return l.config.TaskMutationsPerMin
	case LimitTypeHealthCheck:
		return l.config.HealthChecksPerMin
	default:
		return l.config.EvaluationsPerMin
	}
}

func (l *Limiter) createBucket(limitType LimitType, now time.Time) *Bucket {
	perMin := l.perMinute(limitType)
	if perMin < 0 {
		perMin = 0
	}
	metrics.RateLimitBucketCapacity.WithLabelValues(string(limitType)).Set(float64(perMin))
	burst := perMin
	if l.config.Burst > 0 {
		burst = l.config.Burst
	}
	b := &Bucket{Limiter: rate.NewLimiter(rate.Limit(float64(perMin)/60.0), burst)}
	b.Touch(now)
	return b
}

// BuildKey creates a rate limit key from identifier and limit type.
func BuildKey(identifier string, limitType LimitType) string {
	return fmt.Sprintf("%s:%s", limitType, identifier)
}

// Stop gracefully stops the limiter and cleans up resources.
func (l *Limiter) Stop() {
	l.storage.Stop()
}

// GetStorage returns the underlying storage (for testing).
func (l *Limiter) GetStorage() *Storage {
	return l.storage
}

package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"blackroad.io/operator/internal/ratelimit"
)

// limitTypeGlobal labels the global per-IP limit in metrics.
const limitTypeGlobal ratelimit.LimitType = "global"

// RateLimits applies keyed per-IP limits with Retry-After headers.
type RateLimits struct {
	limiter *ratelimit.Limiter
	global  *ratelimit.Limiter
}

// NewRateLimits creates the limit middleware.
//
// Parameters:
//   - config: Per-minute limits for each limit type
//   - requestsPerSecond: Global per-IP rate; zero or less disables it
//   - burst: Global per-IP burst size
func NewRateLimits(config ratelimit.Config, requestsPerSecond float64, burst int) *RateLimits {
	m := &RateLimits{limiter: ratelimit.NewLimiter(config)}
	if requestsPerSecond > 0 {
		m.global = ratelimit.NewLimiter(ratelimit.Config{
			EvaluationsPerMin: int(requestsPerSecond * 60),
			Burst:             burst,
			IdleTTL:           config.IdleTTL,
		})
	}
	return m
}

// Global limits every request by client IP.
func (m *RateLimits) Global() gin.HandlerFunc {
	return func(c *gin.Context) {
		if m.global == nil {
			c.Next()
			return
		}
		key := ratelimit.BuildKey(c.ClientIP(), limitTypeGlobal)
		if allowed, retryAfter := m.global.Allow(key, limitTypeGlobal); !allowed {
			respondRateLimited(c, retryAfter)
			return
		}
		c.Next()
	}
}

// Limit applies limitType's per-minute limit by client IP.
func (m *RateLimits) Limit(limitType ratelimit.LimitType) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := ratelimit.BuildKey(c.ClientIP(), limitType)
		if allowed, retryAfter := m.limiter.Allow(key, limitType); !allowed {
			respondRateLimited(c, retryAfter)
			return
		}
		c.Next()
	}
}

// AuthBlocked reports whether the client IP has used up its auth failures.
func (m *RateLimits) AuthBlocked(c *gin.Context) (blocked bool, retryAfter int) {
	return m.limiter.Blocked(ratelimit.BuildKey(c.ClientIP(), ratelimit.LimitTypeAuthFailure))
}

// RecordAuthFailure spends one of the client IP's auth failures.
func (m *RateLimits) RecordAuthFailure(c *gin.Context) (allowed bool, retryAfter int) {
	key := ratelimit.BuildKey(c.ClientIP(), ratelimit.LimitTypeAuthFailure)
	return m.limiter.Allow(key, ratelimit.LimitTypeAuthFailure)
}

// Stop stops the limiters' cleanup goroutines.
func (m *RateLimits) Stop() {
	m.limiter.Stop()
	if m.global != nil {
		m.global.Stop()
	}
}

func respondRateLimited(c *gin.Context, retryAfter int) {
	c.Header("Retry-After", strconv.Itoa(retryAfter))
	c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
		"error":       "rate_limit_exceeded",
		"message":     "Rate limit exceeded",
		"retry_after": retryAfter,
		"request_id":  GetRequestID(c),
	})
}

package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLimiter_Allow(t *testing.T) {
	limiter := NewLimiter(DefaultConfig())
	defer limiter.Stop()

	key := BuildKey("test-client", LimitTypeEvaluation)

	allowed, retryAfter := limiter.Allow(key, LimitTypeEvaluation)
	assert.True(t, allowed)
	assert.Zero(t, retryAfter)
}

func TestLimiter_RateLimitEnforcement(t *testing.T) {
	limiter := NewLimiter(Config{TaskMutationsPerMin: 5})
	defer limiter.Stop()

	key := BuildKey("test-client", LimitTypeTaskMutation)

	for i := 0; i < 5; i++ {
		allowed, _ := limiter.Allow(key, LimitTypeTaskMutation)
		assert.True(t, allowed, "request %d", i+1)
	}

	allowed, retryAfter := limiter.Allow(key, LimitTypeTaskMutation)
	assert.False(t, allowed)
	assert.Positive(t, retryAfter)
}

func TestLimiter_TokenRefill(t *testing.T) {
	limiter := NewLimiter(Config{EvaluationsPerMin: 60})
	defer limiter.Stop()

	now := time.Now()
	limiter.now = func() time.Time { return now }
	key := BuildKey("test-client", LimitTypeEvaluation)

	for i := 0; i < 60; i++ {
		allowed, _ := limiter.Allow(key, LimitTypeEvaluation)
		require.True(t, allowed)
	}
	allowed, _ := limiter.Allow(key, LimitTypeEvaluation)
	require.False(t, allowed)

	// 60 per minute refills one token per second.
	now = now.Add(1100 * time.Millisecond)
	allowed, retryAfter := limiter.Allow(key, LimitTypeEvaluation)
	assert.True(t, allowed, "retryAfter=%d", retryAfter)
}

func TestLimiter_DifferentLimitTypes(t *testing.T) {
	limiter := NewLimiter(Config{
		AuthFailuresPerMin:  5,
		EvaluationsPerMin:   10,
		TaskMutationsPerMin: 3,
		HealthChecksPerMin:  20,
	})
	defer limiter.Stop()

	tests := []struct {
		name      string
		limitType LimitType
		limit     int
	}{
		{"auth failures", LimitTypeAuthFailure, 5},
		{"evaluations", LimitTypeEvaluation, 10},
		{"task mutations", LimitTypeTaskMutation, 3},
		{"health checks", LimitTypeHealthCheck, 20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			key := BuildKey("test-"+tt.name, tt.limitType)

			for i := 0; i < tt.limit; i++ {
				allowed, _ := limiter.Allow(key, tt.limitType)
				assert.True(t, allowed, "request %d/%d", i+1, tt.limit)
			}

			allowed, retryAfter := limiter.Allow(key, tt.limitType)
			assert.False(t, allowed)
			assert.Positive(t, retryAfter)
		})
	}
}

func TestLimiter_ZeroLimitAlwaysBlocks(t *testing.T) {
	limiter := NewLimiter(Config{})
	defer limiter.Stop()

	allowed, retryAfter := limiter.Allow(BuildKey("x", LimitTypeAuthFailure), LimitTypeAuthFailure)
	assert.False(t, allowed)
	assert.Equal(t, 60, retryAfter)
}

func TestLimiter_IndependentKeys(t *testing.T) {
	limiter := NewLimiter(Config{EvaluationsPerMin: 2})
	defer limiter.Stop()

	key1 := BuildKey("client-1", LimitTypeEvaluation)
	key2 := BuildKey("client-2", LimitTypeEvaluation)

	limiter.Allow(key1, LimitTypeEvaluation)
	limiter.Allow(key1, LimitTypeEvaluation)

	allowed, _ := limiter.Allow(key1, LimitTypeEvaluation)
	assert.False(t, allowed)

	allowed, _ = limiter.Allow(key2, LimitTypeEvaluation)
	assert.True(t, allowed)
	assert.Equal(t, 2, limiter.GetStorage().Count())
}

func TestBuildKey(t *testing.T) {
	tests := []struct {
		identifier string
		limitType  LimitType
		want       string
	}{
		{"192.168.1.1", LimitTypeAuthFailure, "auth_failure:192.168.1.1"},
		{"10.0.0.2", LimitTypeEvaluation, "evaluation:10.0.0.2"},
		{"10.0.0.3", LimitTypeTaskMutation, "task_mutation:10.0.0.3"},
		{"10.0.0.1", LimitTypeHealthCheck, "health_check:10.0.0.1"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildKey(tt.identifier, tt.limitType))
		})
	}
}

func TestLimiter_RetryAfterCalculation(t *testing.T) {
	limiter := NewLimiter(Config{EvaluationsPerMin: 60})
	defer limiter.Stop()

	now := time.Now()
	limiter.now = func() time.Time { return now }
	key := BuildKey("test-retry", LimitTypeEvaluation)

	for i := 0; i < 60; i++ {
		limiter.Allow(key, LimitTypeEvaluation)
	}

	allowed, retryAfter := limiter.Allow(key, LimitTypeEvaluation)
	assert.False(t, allowed)
	assert.Equal(t, 1, retryAfter)
}

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	assert.Equal(t, 10, config.AuthFailuresPerMin)
	assert.Equal(t, 600, config.EvaluationsPerMin)
	assert.Equal(t, 120, config.TaskMutationsPerMin)
	assert.Equal(t, 60, config.HealthChecksPerMin)
	assert.Equal(t, time.Hour, config.IdleTTL)
}

func TestLimiter_Blocked(t *testing.T) {
	limiter := NewLimiter(Config{AuthFailuresPerMin: 2})
	defer limiter.Stop()

	now := time.Now()
	limiter.now = func() time.Time { return now }
	key := BuildKey("10.0.0.9", LimitTypeAuthFailure)

	blocked, _ := limiter.Blocked(key)
	assert.False(t, blocked, "unknown keys are not blocked")

	limiter.Allow(key, LimitTypeAuthFailure)
	blocked, _ = limiter.Blocked(key)
	assert.False(t, blocked)

	limiter.Allow(key, LimitTypeAuthFailure)
	blocked, retryAfter := limiter.Blocked(key)
	assert.True(t, blocked)
	assert.InDelta(t, 30, retryAfter, 1)

	now = now.Add(31 * time.Second)
	blocked, _ = limiter.Blocked(key)
	assert.False(t, blocked)
}

func TestLimiter_BurstOverride(t *testing.T) {
	limiter := NewLimiter(Config{EvaluationsPerMin: 600, Burst: 3})
	defer limiter.Stop()

	now := time.Now()
	limiter.now = func() time.Time { return now }
	key := BuildKey("burst", LimitTypeEvaluation)

	for i := 0; i < 3; i++ {
		allowed, _ := limiter.Allow(key, LimitTypeEvaluation)
		require.True(t, allowed)
	}
	allowed, _ := limiter.Allow(key, LimitTypeEvaluation)
	assert.False(t, allowed)
}

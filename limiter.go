package authcore

import (
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/workhub/authcore/internal/rate"
)

// RateLimiter counts hits per key in fixed windows. Construct one per
// budget and inject it; limiters hold no package-level state.
type RateLimiter = rate.Limiter

// RateDecision is the outcome of one RateLimiter.Allow call.
type RateDecision = rate.Decision

// NewMemoryRateLimiter returns a process-local limiter. Counters are not
// shared between replicas.
func NewMemoryRateLimiter(max int, window time.Duration, prefix string) (RateLimiter, error) {
	return rate.NewMemoryLimiter(rate.Config{Max: max, Window: window, Prefix: prefix})
}

// NewRedisRateLimiter returns a limiter whose counters live in Redis.
func NewRedisRateLimiter(client redis.UniversalClient, max int, window time.Duration, prefix string) (RateLimiter, error) {
	return rate.NewRedisLimiter(client, rate.Config{Max: max, Window: window, Prefix: prefix})
}

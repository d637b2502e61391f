package rate

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter is a fixed-window limiter whose counters live in Redis, so
// every replica behind a load balancer sees the same budget.
type RedisLimiter struct {
	redis  redis.UniversalClient
	config Config
	now    func() time.Time
}

// NewRedisLimiter creates a [RedisLimiter] backed by the given Redis client.
func NewRedisLimiter(redisClient redis.UniversalClient, cfg Config) (*RedisLimiter, error) {
	if redisClient == nil {
		return nil, fmt.Errorf("%w: redis client is nil", ErrInvalidConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &RedisLimiter{redis: redisClient, config: cfg, now: time.Now}, nil
}

// Allow implements Limiter. Redis failures are wrapped in ErrRedisUnavailable
// and the Decision is zero.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Decision, error) {
	key = l.config.Prefix + key

	count, err := l.redis.Incr(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}

	// Fixed-window semantics: set TTL only for the first hit in the window.
	if count == 1 {
		if err := l.redis.PExpire(ctx, key, l.config.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
	}

	ttl, err := l.redis.PTTL(ctx, key).Result()
	if err != nil {
		return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
	}
	// A key without a TTL would never reset. This happens when the process
	// died between INCR and PEXPIRE.
	if ttl < 0 {
		if err := l.redis.PExpire(ctx, key, l.config.Window).Err(); err != nil {
			return Decision{}, fmt.Errorf("%w: %v", ErrRedisUnavailable, err)
		}
		ttl = l.config.Window
	}

	now := l.now()
	return decide(l.config, int(count), now.Add(ttl), now), nil
}

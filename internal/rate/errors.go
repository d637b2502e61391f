package rate

import "errors"

var (
	// ErrRateLimited is returned by helpers that turn a rejected Decision into an error.
	ErrRateLimited = errors.New("rate limited")
	// ErrRedisUnavailable wraps every Redis failure seen by RedisLimiter.
	ErrRedisUnavailable = errors.New("redis unavailable")
	// ErrInvalidConfig reports a limiter built with a non-positive Max or Window.
	ErrInvalidConfig = errors.New("invalid rate limit config")
)

package rate

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Config holds the window size and the number of hits allowed per window.
type Config struct {
	Max    int
	Window time.Duration
	// Prefix namespaces keys so several limiters can share one backend.
	Prefix string
}

// Validate reports whether cfg describes a usable window. Windows must be
// whole seconds so Retry-After never exceeds the window it reports on.
func (c Config) Validate() error {
	if c.Max <= 0 {
		return fmt.Errorf("%w: max must be > 0", ErrInvalidConfig)
	}
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be > 0", ErrInvalidConfig)
	}
	if c.Window%time.Second != 0 {
		return fmt.Errorf("%w: window must be whole seconds, got %s", ErrInvalidConfig, c.Window)
	}
	return nil
}

// Decision is the outcome of one Allow call.
type Decision struct {
	Allowed    bool
	Count      int
	Limit      int
	Remaining  int
	RetryAfter time.Duration
	ResetAt    time.Time
}

// RetryAfterSeconds rounds RetryAfter up to whole seconds, minimum 1, for
// the Retry-After header.
func (d Decision) RetryAfterSeconds() int {
	if d.RetryAfter <= 0 {
		return 1
	}
	secs := int(math.Ceil(d.RetryAfter.Seconds()))
	if secs < 1 {
		return 1
	}
	return secs
}

// Limiter counts one hit for key and reports whether it is within budget.
type Limiter interface {
	Allow(ctx context.Context, key string) (Decision, error)
}

func decide(cfg Config, count int, resetAt time.Time, now time.Time) Decision {
	d := Decision{
		Allowed: count <= cfg.Max,
		Count:   count,
		Limit:   cfg.Max,
		ResetAt: resetAt,
	}
	if d.Allowed {
		d.Remaining = cfg.Max - count
		return d
	}
	d.RetryAfter = resetAt.Sub(now)
	if d.RetryAfter < 0 {
		d.RetryAfter = 0
	}
	if d.RetryAfter > cfg.Window {
		d.RetryAfter = cfg.Window
	}
	return d
}

package rate

import (
	"context"
	"sync"
	"time"

	xrate "golang.org/x/time/rate"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryLimiter is a process-local fixed-window limiter. Counters are not
// shared between processes; use RedisLimiter for multi-instance deployments.
type MemoryLimiter struct {
	config Config
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*window
	sweep   xrate.Sometimes
}

// MemoryOption customizes a MemoryLimiter.
type MemoryOption func(*MemoryLimiter)

// WithClock replaces time.Now. Used by tests.
func WithClock(now func() time.Time) MemoryOption {
	return func(l *MemoryLimiter) {
		if now != nil {
			l.now = now
		}
	}
}

// NewMemoryLimiter validates cfg and returns an empty limiter.
func NewMemoryLimiter(cfg Config, opts ...MemoryOption) (*MemoryLimiter, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	l := &MemoryLimiter{
		config:  cfg,
		now:     time.Now,
		windows: make(map[string]*window),
		sweep:   xrate.Sometimes{Interval: cfg.Window},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Allow implements Limiter. It never returns an error.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Decision, error) {
	key = l.config.Prefix + key
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	l.sweep.Do(func() { l.evictExpired(now) })

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		w = &window{resetAt: now.Add(l.config.Window)}
		l.windows[key] = w
	}
	w.count++

	return decide(l.config, w.count, w.resetAt, now), nil
}

// Len returns the number of tracked windows, expired or not.
func (l *MemoryLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}

// evictExpired must be called with mu held.
func (l *MemoryLimiter) evictExpired(now time.Time) {
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
}

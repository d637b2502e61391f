package rate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestMemoryLimiter(t *testing.T, max int, window time.Duration) (*MemoryLimiter, *testClock) {
	t.Helper()
	clock := &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	l, err := NewMemoryLimiter(Config{Max: max, Window: window}, WithClock(clock.Now))
	require.NoError(t, err)
	return l, clock
}

func TestMemoryLimiterRejectsAfterMax(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestMemoryLimiter(t, 5, time.Minute)

	for i := 1; i <= 5; i++ {
		d, err := l.Allow(ctx, "10.0.0.1")
		require.NoError(t, err)
		assert.True(t, d.Allowed, "hit %d", i)
		assert.Equal(t, 5-i, d.Remaining)
	}

	d, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 6, d.Count)
	assert.Equal(t, time.Minute, d.RetryAfter)
	assert.Equal(t, 60, d.RetryAfterSeconds())
}

func TestMemoryLimiterRetryAfterShrinksWithinWindow(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestMemoryLimiter(t, 1, time.Minute)

	_, err := l.Allow(ctx, "k")
	require.NoError(t, err)

	clock.Advance(45 * time.Second)
	d, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.Equal(t, 15*time.Second, d.RetryAfter)
	assert.LessOrEqual(t, d.RetryAfter, time.Minute)
}

func TestMemoryLimiterFreshWindowAfterExpiry(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestMemoryLimiter(t, 2, time.Minute)

	for i := 0; i < 3; i++ {
		_, err := l.Allow(ctx, "k")
		require.NoError(t, err)
	}

	clock.Advance(time.Minute)
	d, err := l.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, d.Allowed)
	assert.Equal(t, 1, d.Count)
}

func TestMemoryLimiterKeysAreIndependent(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestMemoryLimiter(t, 1, time.Minute)

	d, _ := l.Allow(ctx, "a")
	assert.True(t, d.Allowed)
	d, _ = l.Allow(ctx, "a")
	assert.False(t, d.Allowed)
	d, _ = l.Allow(ctx, "b")
	assert.True(t, d.Allowed)
}

func TestMemoryLimiterConcurrentHitsAreCounted(t *testing.T) {
	ctx := context.Background()
	l, _ := newTestMemoryLimiter(t, 50, time.Minute)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			d, err := l.Allow(ctx, "shared")
			if err == nil && d.Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 50, allowed)
}

func TestNewMemoryLimiterValidatesConfig(t *testing.T) {
	_, err := NewMemoryLimiter(Config{Max: 0, Window: time.Minute})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewMemoryLimiter(Config{Max: 1})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewMemoryLimiter(Config{Max: 1, Window: 1500 * time.Millisecond})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestRetryAfterNeverExceedsOneSecondWindow(t *testing.T) {
	ctx := context.Background()
	l, clock := newTestMemoryLimiter(t, 1, time.Second)

	_, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	clock.Advance(300 * time.Millisecond)

	d, err := l.Allow(ctx, "10.0.0.1")
	require.NoError(t, err)
	assert.False(t, d.Allowed)
	assert.LessOrEqual(t, d.RetryAfterSeconds(), 1)
}

func TestRetryAfterSecondsRoundsUp(t *testing.T) {
	assert.Equal(t, 1, Decision{}.RetryAfterSeconds())
	assert.Equal(t, 1, Decision{RetryAfter: 200 * time.Millisecond}.RetryAfterSeconds())
	assert.Equal(t, 3, Decision{RetryAfter: 2100 * time.Millisecond}.RetryAfterSeconds())
}

package limiters

import (
	"context"
	"errors"
	"time"

	"github.com/workhub/authcore/internal/rate"
)

const (
	defaultMFAMaxAttempts = 5
	defaultMFAWindow      = time.Minute
)

// ErrMFARateLimited is returned when a user exhausts the verify budget.
var ErrMFARateLimited = errors.New("mfa verification rate limited")

// MFALimiter counts TOTP verification attempts per user.
type MFALimiter struct {
	limiter rate.Limiter
}

// NewMFALimiter wraps limiter. A nil limiter gets a process-local one with
// the default budget of 5 attempts per 60 s.
func NewMFALimiter(limiter rate.Limiter) (*MFALimiter, error) {
	if limiter == nil {
		mem, err := rate.NewMemoryLimiter(rate.Config{Max: defaultMFAMaxAttempts, Window: defaultMFAWindow})
		if err != nil {
			return nil, err
		}
		limiter = mem
	}
	return &MFALimiter{limiter: limiter}, nil
}

// Check counts one attempt for userID. A rejected attempt returns the
// Decision alongside ErrMFARateLimited so the caller can surface RetryAfter.
func (l *MFALimiter) Check(ctx context.Context, userID string) (rate.Decision, error) {
	if l == nil {
		return rate.Decision{Allowed: true}, nil
	}
	d, err := l.limiter.Allow(ctx, "mfa:"+userID)
	if err != nil {
		return d, err
	}
	if !d.Allowed {
		return d, ErrMFARateLimited
	}
	return d, nil
}

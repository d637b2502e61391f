package limiters

import (
	"errors"
	"time"
)

// LockoutConfig holds configuration for account lockout.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

// Validate reports whether cfg can drive a LockoutPolicy.
func (c LockoutConfig) Validate() error {
	if c.Threshold <= 0 {
		return errors.New("lockout threshold must be > 0")
	}
	if c.Duration <= 0 {
		return errors.New("lockout duration must be > 0")
	}
	return nil
}

// LockoutState mirrors the lockout columns of a user row.
type LockoutState struct {
	FailedAttempts int
	LockedUntil    *time.Time
}

// IsZero reports whether the state has no failures and no lock.
func (s LockoutState) IsZero() bool {
	return s.FailedAttempts == 0 && s.LockedUntil == nil
}

// LockoutPolicy locks an account for Duration once Threshold consecutive
// failures are recorded. Expiry is lazy: an elapsed lock is cleared by
// Normalize the next time the account is touched.
type LockoutPolicy struct {
	config LockoutConfig
}

// NewLockoutPolicy returns a policy for cfg.
func NewLockoutPolicy(cfg LockoutConfig) (LockoutPolicy, error) {
	if err := cfg.Validate(); err != nil {
		return LockoutPolicy{}, err
	}
	return LockoutPolicy{config: cfg}, nil
}

// Normalize clears an elapsed lock together with its failure count. changed
// tells the caller whether the state must be persisted.
func (p LockoutPolicy) Normalize(s LockoutState, now time.Time) (LockoutState, bool) {
	if s.LockedUntil == nil || s.LockedUntil.After(now) {
		return s, false
	}
	return LockoutState{}, true
}

// Locked reports whether s forbids a login at now.
func (p LockoutPolicy) Locked(s LockoutState, now time.Time) bool {
	return s.LockedUntil != nil && s.LockedUntil.After(now)
}

// RecordFailure adds one failure. When the count reaches the threshold the
// account is locked until now+Duration and lockedNow is true.
func (p LockoutPolicy) RecordFailure(s LockoutState, now time.Time) (next LockoutState, lockedNow bool) {
	next = LockoutState{FailedAttempts: s.FailedAttempts + 1, LockedUntil: s.LockedUntil}
	if next.FailedAttempts >= p.config.Threshold && !p.Locked(s, now) {
		until := now.Add(p.config.Duration)
		next.LockedUntil = &until
		lockedNow = true
	}
	return next, lockedNow
}

// RecordSuccess returns the cleared state.
func (p LockoutPolicy) RecordSuccess() LockoutState {
	return LockoutState{}
}

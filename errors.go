package authcore

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrUnauthorized is returned for every authentication failure: bad
	// credentials, locked accounts, wrong TOTP codes, and invalid, expired or
	// revoked tokens. Callers must not distinguish between these.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrValidation is an exported constant or variable used by the authentication engine.
	ErrValidation = errors.New("validation failed")
	// ErrConflict is an exported constant or variable used by the authentication engine.
	ErrConflict = errors.New("conflict")
	// ErrRateLimited is an exported constant or variable used by the authentication engine.
	ErrRateLimited = errors.New("rate limited")
	// ErrInternal marks infrastructure failures (store, crypto, backend outages).
	ErrInternal = errors.New("internal error")

	// ErrMFAAlreadyEnabled is a conflict returned by SetupMFA.
	ErrMFAAlreadyEnabled = fmt.Errorf("%w: mfa already enabled", ErrConflict)
	// ErrPasswordPolicy is a validation failure for passwords outside the length bounds.
	ErrPasswordPolicy = fmt.Errorf("%w: password policy violation", ErrValidation)
	// ErrEngineNotReady is returned by a nil or closed Engine.
	ErrEngineNotReady = fmt.Errorf("%w: engine not initialized", ErrInternal)
)

// Store contract errors. Implementations of UserStore, RefreshTokenStore and
// ResetTokenStore return these so the engine can tell a miss from an outage.
var (
	ErrRecordNotFound  = errors.New("record not found")
	ErrDuplicateRecord = errors.New("duplicate record")
)

// authError is an authentication failure with a reason for logs and audit.
// It prints as "unauthorized" so the reason never reaches a client.
type authError struct {
	reason string
}

func unauthorized(reason string) error {
	return &authError{reason: reason}
}

func (e *authError) Error() string { return ErrUnauthorized.Error() }

func (e *authError) Is(target error) bool { return target == ErrUnauthorized }

// failureReason extracts the internal reason of an authentication failure.
func failureReason(err error) string {
	var ae *authError
	if errors.As(err, &ae) {
		return ae.reason
	}
	return ""
}

// RateLimitedError carries how long the caller must wait.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// Is makes errors.Is(err, ErrRateLimited) true.
func (e *RateLimitedError) Is(target error) bool { return target == ErrRateLimited }

// RetryAfterSeconds rounds RetryAfter up to whole seconds, minimum 1.
func (e *RateLimitedError) RetryAfterSeconds() int {
	secs := int((e.RetryAfter + time.Second - 1) / time.Second)
	if secs < 1 {
		return 1
	}
	return secs
}

func internalError(err error) error {
	return fmt.Errorf("%w: %v", ErrInternal, err)
}

// ErrorKind classifies an error for a transport layer.
type ErrorKind int

const (
	KindInternal ErrorKind = iota
	KindUnauthorized
	KindValidation
	KindConflict
	KindRateLimited
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "conflict"
	case KindRateLimited:
		return "rate_limited"
	default:
		return "internal"
	}
}

// KindOf maps err onto the taxonomy. Unknown errors are KindInternal so an
// unexpected failure is never reported as bad credentials.
func KindOf(err error) ErrorKind {
	switch {
	case err == nil:
		return KindInternal
	case errors.Is(err, ErrInternal):
		return KindInternal
	case errors.Is(err, ErrRateLimited):
		return KindRateLimited
	case errors.Is(err, ErrUnauthorized):
		return KindUnauthorized
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrConflict):
		return KindConflict
	default:
		return KindInternal
	}
}

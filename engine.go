package authcore

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/workhub/authcore/internal/limiters"
	"github.com/workhub/authcore/password"
	"github.com/workhub/authcore/vault"
)

// Engine defines a public type used by authcore APIs.
//
// Engine instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Engine struct {
	config     Config
	users      UserStore
	tokens     *TokenIssuer
	resets     *PasswordResetService
	passwords  *password.Authenticator
	vault      *vault.Vault
	lockout    limiters.LockoutPolicy
	mfaLimiter *limiters.MFALimiter
	notifier   ResetNotifier
	audit      *auditDispatcher
	metrics    *Metrics
	logger     *slog.Logger
	now        func() time.Time
	dummyHash  string
}

// Close flushes pending audit events. The Engine must not be used afterwards.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// AuditDropped describes the auditdropped operation and its observable behavior.
//
// AuditDropped returns the number of audit events discarded because the
// dispatcher buffer was full.
func (e *Engine) AuditDropped() uint64 {
	if e == nil || e.audit == nil {
		return 0
	}
	return e.audit.Dropped()
}

// MetricsSnapshot describes the metricssnapshot operation and its observable behavior.
//
// MetricsSnapshot does not mutate shared global state and can be used concurrently.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	if e == nil {
		return (*Metrics)(nil).Snapshot()
	}
	return e.metrics.Snapshot()
}

// RecordRateLimitHit counts a request rejected by a transport limiter.
func (e *Engine) RecordRateLimitHit() {
	e.metricInc(MetricRateLimitHit)
}

func (e *Engine) metricInc(id MetricID) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Inc(id)
}

func (e *Engine) observeSince(id MetricID, start time.Time) {
	if e == nil || e.metrics == nil {
		return
	}
	e.metrics.Observe(id, time.Since(start))
}

// ValidateAccess verifies an access token and returns its principal. It
// performs no store round-trip.
func (e *Engine) ValidateAccess(_ context.Context, token string) (Principal, error) {
	if e == nil || e.tokens == nil {
		return Principal{}, ErrEngineNotReady
	}
	start := time.Now()
	defer e.observeSince(MetricValidateLatency, start)

	return e.tokens.VerifyAccess(token)
}

// Me returns the client view of userID. Deleted and unknown users are
// unauthorized.
func (e *Engine) Me(ctx context.Context, userID string) (UserView, error) {
	if e == nil || e.users == nil {
		return UserView{}, ErrEngineNotReady
	}
	user, err := e.activeUser(ctx, userID)
	if err != nil {
		return UserView{}, err
	}
	return user.View(), nil
}

// activeUser loads a non-deleted user by ID. A miss is an authentication
// failure; a store error is internal.
func (e *Engine) activeUser(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, unauthorized("missing_subject")
	}
	user, err := e.users.GetUserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, unauthorized("unknown_user")
		}
		return nil, internalError(err)
	}
	if user.Deleted() {
		return nil, unauthorized("deleted_user")
	}
	return user, nil
}

// userFromMFAToken resolves the subject of an MFA token.
func (e *Engine) userFromMFAToken(ctx context.Context, mfaToken string) (*User, error) {
	userID, err := e.tokens.VerifyMFA(mfaToken)
	if err != nil {
		return nil, err
	}
	return e.activeUser(ctx, userID)
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func lockoutState(u *User) limiters.LockoutState {
	return limiters.LockoutState{
		FailedAttempts: u.FailedLoginAttempts,
		LockedUntil:    u.LockedUntil,
	}
}

// nextStep decides what a user must do after proving their password.
func nextStep(u *User) LoginStep {
	switch {
	case u.PasswordTemporal:
		return StepPasswordChangeRequired
	case !u.MFAEnabled:
		return StepMFASetupRequired
	default:
		return StepMFARequired
	}
}

package authcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/workhub/authcore/internal"
)

// Login describes the login operation and its observable behavior.
//
// Login verifies email and password and returns the next step with an MFA
// token. Every credential failure, including a locked account, returns an
// error matching ErrUnauthorized. Store failures match ErrInternal. When no
// users exist yet the first login creates an ADMIN account.
func (e *Engine) Login(ctx context.Context, email, pw string) (LoginResult, error) {
	if e == nil || e.users == nil {
		return LoginResult{}, ErrEngineNotReady
	}
	start := time.Now()
	defer e.observeSince(MetricLoginLatency, start)

	email = normalizeEmail(email)
	if email == "" || pw == "" {
		return LoginResult{}, fmt.Errorf("%w: email and password are required", ErrValidation)
	}

	user, err := e.users.GetUserByEmail(ctx, email)
	switch {
	case errors.Is(err, ErrRecordNotFound):
		return e.loginUnknown(ctx, email, pw)
	case err != nil:
		return LoginResult{}, internalError(err)
	case user.Deleted():
		e.passwords.Verify(pw, e.dummyHash)
		return LoginResult{}, e.loginFailed(ctx, user.ID, unauthorized("deleted_user"))
	}

	return e.loginExisting(ctx, user, pw)
}

// loginUnknown handles an email with no account. An empty user table means
// the caller is bootstrapping the first administrator.
func (e *Engine) loginUnknown(ctx context.Context, email, pw string) (LoginResult, error) {
	count, err := e.users.CountUsers(ctx)
	if err != nil {
		return LoginResult{}, internalError(err)
	}
	if count > 0 {
		e.passwords.Verify(pw, e.dummyHash)
		return LoginResult{}, e.loginFailed(ctx, "", unauthorized("unknown_user"))
	}

	// Rejected exactly like an unknown email on a populated table.
	if err := checkPasswordPolicy(pw, e.config.Password.MinLength); err != nil {
		e.passwords.Verify(pw, e.dummyHash)
		e.logger.WarnContext(ctx, "bootstrap login rejected by password policy")
		return LoginResult{}, e.loginFailed(ctx, "", unauthorized("bootstrap_password_policy"))
	}
	hash, err := e.passwords.Hash(pw)
	if err != nil {
		return LoginResult{}, internalError(err)
	}

	user, err := e.users.CreateUser(ctx, CreateUserInput{
		ID:           internal.NewUserID(),
		Email:        email,
		Role:         RoleAdmin,
		PasswordHash: hash,
	})
	if errors.Is(err, ErrDuplicateRecord) {
		// Lost a bootstrap race for the same email; log in against the winner.
		existing, lookupErr := e.users.GetUserByEmail(ctx, email)
		if lookupErr != nil {
			return LoginResult{}, internalError(lookupErr)
		}
		return e.loginExisting(ctx, existing, pw)
	}
	if err != nil {
		return LoginResult{}, internalError(err)
	}

	e.metricInc(MetricBootstrapAdmin)
	e.emitAudit(ctx, AuditBootstrapAdmin, true, user.ID, nil, nil)
	e.logger.InfoContext(ctx, "bootstrap administrator created", slog.String("user_id", user.ID))

	return e.loginSucceeded(ctx, user)
}

func (e *Engine) loginExisting(ctx context.Context, user *User, pw string) (LoginResult, error) {
	now := e.now()

	state, changed := e.lockout.Normalize(lockoutState(user), now)
	if changed {
		if err := e.users.UpdateLockoutState(ctx, user.ID, state.FailedAttempts, state.LockedUntil); err != nil {
			return LoginResult{}, internalError(err)
		}
	}

	if e.lockout.Locked(state, now) {
		// Spend the same work as a real check before rejecting.
		e.passwords.Verify(pw, user.PasswordHash)
		e.metricInc(MetricLoginLocked)
		return LoginResult{}, e.loginFailed(ctx, user.ID, unauthorized("account_locked"))
	}

	if !e.passwords.Verify(pw, user.PasswordHash) {
		next, lockedNow := e.lockout.RecordFailure(state, now)
		if err := e.users.UpdateLockoutState(ctx, user.ID, next.FailedAttempts, next.LockedUntil); err != nil {
			return LoginResult{}, internalError(err)
		}
		if lockedNow {
			e.metricInc(MetricAccountLocked)
			e.emitAudit(ctx, AuditAccountLocked, true, user.ID, nil, func() map[string]string {
				return map[string]string{"locked_until": next.LockedUntil.UTC().Format(time.RFC3339)}
			})
			e.logger.WarnContext(ctx, "account locked after repeated login failures",
				slog.String("user_id", user.ID),
				slog.Int("failed_attempts", next.FailedAttempts),
			)
		}
		return LoginResult{}, e.loginFailed(ctx, user.ID, unauthorized("bad_password"))
	}

	if !state.IsZero() {
		cleared := e.lockout.RecordSuccess()
		if err := e.users.UpdateLockoutState(ctx, user.ID, cleared.FailedAttempts, cleared.LockedUntil); err != nil {
			return LoginResult{}, internalError(err)
		}
	}

	if e.config.Password.UpgradeOnLogin && e.passwords.NeedsRehash(user.PasswordHash) {
		e.upgradePasswordHash(ctx, user, pw)
	}

	return e.loginSucceeded(ctx, user)
}

func (e *Engine) loginSucceeded(ctx context.Context, user *User) (LoginResult, error) {
	token, err := e.tokens.IssueMFA(user.ID)
	if err != nil {
		return LoginResult{}, err
	}
	step := nextStep(user)

	e.metricInc(MetricLoginSuccess)
	e.emitAudit(ctx, AuditLoginSuccess, true, user.ID, nil, func() map[string]string {
		return map[string]string{"step": string(step)}
	})
	return LoginResult{Step: step, MFAToken: token}, nil
}

func (e *Engine) loginFailed(ctx context.Context, userID string, err error) error {
	e.metricInc(MetricLoginFailure)
	e.emitAudit(ctx, AuditLoginFailure, false, userID, err, nil)
	e.logger.DebugContext(ctx, "login rejected",
		slog.String("user_id", userID),
		slog.String("reason", failureReason(err)),
	)
	return err
}

// upgradePasswordHash re-hashes a legacy or under-cost hash. Failures are
// logged and never fail the login.
func (e *Engine) upgradePasswordHash(ctx context.Context, user *User, pw string) {
	hash, err := e.passwords.Hash(pw)
	if err != nil {
		e.logger.WarnContext(ctx, "password hash upgrade failed", slog.String("user_id", user.ID), slog.Any("error", err))
		return
	}
	if err := e.users.SetPassword(ctx, user.ID, hash, user.PasswordTemporal); err != nil {
		e.logger.WarnContext(ctx, "password hash upgrade failed", slog.String("user_id", user.ID), slog.Any("error", err))
		return
	}
	e.metricInc(MetricPasswordRehashed)
}

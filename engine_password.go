package authcore

import (
	"context"
	"errors"
	"log/slog"
)

// ChangeTemporaryPassword describes the changetemporarypassword operation and its observable behavior.
//
// ChangeTemporaryPassword replaces an administrator-issued temporary
// password. It is only accepted while the subject of mfaToken has
// PasswordTemporal set. All refresh tokens are revoked. The returned result
// carries the next step and the same MFA token.
func (e *Engine) ChangeTemporaryPassword(ctx context.Context, mfaToken, newPassword string) (LoginResult, error) {
	if e == nil || e.tokens == nil {
		return LoginResult{}, ErrEngineNotReady
	}

	user, err := e.userFromMFAToken(ctx, mfaToken)
	if err != nil {
		return LoginResult{}, err
	}
	if !user.PasswordTemporal {
		return LoginResult{}, unauthorized("password_not_temporal")
	}
	if err := checkPasswordPolicy(newPassword, e.config.Password.MinLength); err != nil {
		return LoginResult{}, err
	}

	hash, err := e.passwords.Hash(newPassword)
	if err != nil {
		return LoginResult{}, internalError(err)
	}
	if err := e.users.SetPassword(ctx, user.ID, hash, false); err != nil {
		return LoginResult{}, internalError(err)
	}
	if _, err := e.tokens.RevokeAll(ctx, user.ID); err != nil {
		return LoginResult{}, err
	}

	user.PasswordTemporal = false
	e.metricInc(MetricPasswordChangeSuccess)
	e.emitAudit(ctx, AuditPasswordChanged, true, user.ID, nil, nil)

	return LoginResult{Step: nextStep(user), MFAToken: mfaToken}, nil
}

// ForgotPassword describes the forgotpassword operation and its observable behavior.
//
// ForgotPassword issues a reset token for an existing account and hands it
// to the ResetNotifier. The plaintext token is also returned so callers
// without a notifier (tests, admin tooling) can deliver it. Unknown and
// deleted emails return an empty token and no error, so the result never
// reveals whether an account exists.
func (e *Engine) ForgotPassword(ctx context.Context, email string) (string, error) {
	if e == nil || e.resets == nil {
		return "", ErrEngineNotReady
	}
	e.metricInc(MetricPasswordResetRequest)

	email = normalizeEmail(email)
	if email == "" {
		return "", nil
	}

	user, err := e.users.GetUserByEmail(ctx, email)
	if errors.Is(err, ErrRecordNotFound) {
		e.emitAudit(ctx, AuditPasswordResetRequest, false, "", unauthorized("unknown_user"), nil)
		return "", nil
	}
	if err != nil {
		return "", internalError(err)
	}
	if user.Deleted() {
		e.emitAudit(ctx, AuditPasswordResetRequest, false, user.ID, unauthorized("deleted_user"), nil)
		return "", nil
	}

	token, expiresAt, err := e.resets.Issue(ctx, user.ID)
	if err != nil {
		return "", err
	}
	if err := e.notifier.NotifyPasswordReset(ctx, user.View(), token, expiresAt); err != nil {
		e.logger.ErrorContext(ctx, "password reset notification failed", slog.String("user_id", user.ID), slog.Any("error", err))
	}

	e.emitAudit(ctx, AuditPasswordResetRequest, true, user.ID, nil, nil)
	return token, nil
}

// ResetPassword describes the resetpassword operation and its observable behavior.
//
// ResetPassword consumes a reset token and sets newPassword. It clears the
// temporary-password flag and any lockout, and revokes all refresh tokens.
// Missing, used and expired tokens return the same ErrUnauthorized.
func (e *Engine) ResetPassword(ctx context.Context, token, newPassword string) error {
	if e == nil || e.resets == nil {
		return ErrEngineNotReady
	}

	userID, err := e.resets.Consume(ctx, token, newPassword)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			e.metricInc(MetricPasswordResetConfirmFailure)
			e.emitAudit(ctx, AuditPasswordResetConfirm, false, "", err, nil)
		}
		return err
	}

	if err := e.users.UpdateLockoutState(ctx, userID, 0, nil); err != nil {
		return internalError(err)
	}
	if _, err := e.tokens.RevokeAll(ctx, userID); err != nil {
		return err
	}

	e.metricInc(MetricPasswordResetConfirmSuccess)
	e.emitAudit(ctx, AuditPasswordResetConfirm, true, userID, nil, nil)
	return nil
}

package authcore

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/workhub/authcore/internal/limiters"
	"github.com/workhub/authcore/totp"
	"github.com/workhub/authcore/vault"
)

// SetupMFA describes the setupmfa operation and its observable behavior.
//
// SetupMFA generates a TOTP secret for the subject of mfaToken and stores
// it encrypted as the pending secret. MFA stays disabled until the first
// successful VerifyMFA. Calling SetupMFA again replaces the pending secret.
// It returns ErrMFAAlreadyEnabled once enrollment is complete and rejects
// users who still hold a temporary password.
func (e *Engine) SetupMFA(ctx context.Context, mfaToken string) (MFASetup, error) {
	if e == nil || e.tokens == nil {
		return MFASetup{}, ErrEngineNotReady
	}

	user, err := e.userFromMFAToken(ctx, mfaToken)
	if err != nil {
		return MFASetup{}, err
	}
	if user.MFAEnabled {
		return MFASetup{}, ErrMFAAlreadyEnabled
	}
	if user.PasswordTemporal {
		return MFASetup{}, unauthorized("password_change_required")
	}

	secret, err := totp.GenerateSecret()
	if err != nil {
		return MFASetup{}, internalError(err)
	}
	envelope, err := e.vault.Encrypt(secret)
	if err != nil {
		return MFASetup{}, internalError(err)
	}
	url, err := totp.ProvisionURL(e.config.TOTP.Issuer, user.Email, secret)
	if err != nil {
		return MFASetup{}, internalError(err)
	}
	if err := e.users.SaveMFASecret(ctx, user.ID, envelope); err != nil {
		return MFASetup{}, internalError(err)
	}

	e.metricInc(MetricMFASetup)
	e.emitAudit(ctx, AuditMFASetup, true, user.ID, nil, nil)

	return MFASetup{Secret: secret, OTPAuthURL: url}, nil
}

// VerifyMFA describes the verifymfa operation and its observable behavior.
//
// VerifyMFA checks a TOTP code for the subject of mfaToken. The first
// success enables MFA. Every success returns an access token and a
// refresh token. Attempts are throttled per user; exceeding the budget
// returns a *RateLimitedError. A temporary password blocks enrollment but
// not the code check of an already enrolled user.
func (e *Engine) VerifyMFA(ctx context.Context, mfaToken, code string) (Session, error) {
	if e == nil || e.tokens == nil {
		return Session{}, ErrEngineNotReady
	}

	userID, err := e.tokens.VerifyMFA(mfaToken)
	if err != nil {
		return Session{}, e.mfaFailed(ctx, "", err)
	}

	if d, err := e.mfaLimiter.Check(ctx, userID); err != nil {
		if errors.Is(err, limiters.ErrMFARateLimited) {
			e.metricInc(MetricMFARateLimited)
			return Session{}, &RateLimitedError{RetryAfter: d.RetryAfter}
		}
		return Session{}, internalError(err)
	}

	user, err := e.activeUser(ctx, userID)
	if err != nil {
		return Session{}, e.mfaFailed(ctx, userID, err)
	}
	if user.MFASecret == nil || *user.MFASecret == "" {
		return Session{}, e.mfaFailed(ctx, user.ID, unauthorized("mfa_not_configured"))
	}
	if user.PasswordTemporal && !user.MFAEnabled {
		return Session{}, e.mfaFailed(ctx, user.ID, unauthorized("password_change_required"))
	}

	secret, err := e.vault.Decrypt(*user.MFASecret)
	if err != nil {
		e.logger.ErrorContext(ctx, "mfa secret could not be decrypted", slog.String("user_id", user.ID), slog.Any("error", err))
		return Session{}, internalError(fmt.Errorf("decrypt mfa secret: %w", err))
	}
	if !totp.Verify(secret, code, e.now()) {
		return Session{}, e.mfaFailed(ctx, user.ID, unauthorized("bad_totp_code"))
	}

	if vault.NeedsReencrypt(*user.MFASecret) {
		e.reencryptSecret(ctx, user.ID, secret)
	}

	if !user.MFAEnabled {
		if err := e.users.EnableMFA(ctx, user.ID); err != nil {
			return Session{}, internalError(err)
		}
		user.MFAEnabled = true
	}

	pair, err := e.tokens.IssuePair(ctx, user)
	if err != nil {
		return Session{}, err
	}

	e.metricInc(MetricMFAVerifySuccess)
	e.emitAudit(ctx, AuditMFAVerifySuccess, true, user.ID, nil, nil)

	return Session{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		User:         user.View(),
	}, nil
}

func (e *Engine) mfaFailed(ctx context.Context, userID string, err error) error {
	if errors.Is(err, ErrUnauthorized) {
		e.metricInc(MetricMFAVerifyFailure)
		e.emitAudit(ctx, AuditMFAVerifyFailure, false, userID, err, nil)
	}
	return err
}

// reencryptSecret moves a legacy envelope to the current format. Failures
// are logged; the legacy envelope keeps working.
func (e *Engine) reencryptSecret(ctx context.Context, userID, secret string) {
	envelope, err := e.vault.Encrypt(secret)
	if err == nil {
		err = e.users.SaveMFASecret(ctx, userID, envelope)
	}
	if err != nil {
		e.logger.WarnContext(ctx, "mfa secret re-encryption failed", slog.String("user_id", userID), slog.Any("error", err))
		return
	}
	e.logger.InfoContext(ctx, "mfa secret re-encrypted to current envelope format", slog.String("user_id", userID))
}

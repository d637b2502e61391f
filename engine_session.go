package authcore

import (
	"context"
	"errors"
)

// Refresh describes the refresh operation and its observable behavior.
//
// Refresh rotates refreshToken: the presented token is revoked and a new
// access and refresh token are returned. A token can be rotated once;
// replaying it returns ErrUnauthorized.
func (e *Engine) Refresh(ctx context.Context, refreshToken string) (TokenPair, error) {
	if e == nil || e.tokens == nil {
		return TokenPair{}, ErrEngineNotReady
	}
	if refreshToken == "" {
		return TokenPair{}, unauthorized("missing_refresh_token")
	}

	pair, err := e.tokens.Rotate(ctx, refreshToken)
	if err != nil {
		if errors.Is(err, errRefreshReuse) {
			e.metricInc(MetricRefreshReuseDetected)
		}
		e.metricInc(MetricRefreshFailure)
		e.emitAudit(ctx, AuditRefreshFailure, false, "", err, nil)
		return TokenPair{}, err
	}

	e.metricInc(MetricRefreshSuccess)
	e.emitAudit(ctx, AuditRefreshSuccess, true, pair.UserID, nil, nil)
	return pair, nil
}

// Logout describes the logout operation and its observable behavior.
//
// With a refresh token, Logout revokes that session if it belongs to
// userID. Without one it revokes every session of userID. Logout is
// idempotent: unknown or already revoked tokens are not an error.
func (e *Engine) Logout(ctx context.Context, userID, refreshToken string) error {
	if e == nil || e.tokens == nil {
		return ErrEngineNotReady
	}
	if userID == "" {
		return unauthorized("missing_subject")
	}

	if refreshToken != "" {
		if _, err := e.tokens.RevokeOne(ctx, userID, refreshToken); err != nil {
			return err
		}
		e.metricInc(MetricLogout)
		e.emitAudit(ctx, AuditLogout, true, userID, nil, nil)
		return nil
	}

	if _, err := e.tokens.RevokeAll(ctx, userID); err != nil {
		return err
	}
	e.metricInc(MetricLogoutAll)
	e.emitAudit(ctx, AuditLogoutAll, true, userID, nil, nil)
	return nil
}

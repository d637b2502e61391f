package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/workhub/authcore/internal"
	"github.com/workhub/authcore/jwt"
)

// errRefreshReuse marks a rotation of a token that was already revoked.
var errRefreshReuse = unauthorized("refresh_reuse")

// TokenIssuer mints signed tokens and owns the refresh token lifecycle:
// persistence by hash, one-time rotation and revocation.
type TokenIssuer struct {
	jwt     *jwt.Manager
	refresh RefreshTokenStore
	users   UserStore
	now     func() time.Time
}

// NewTokenIssuer wires a TokenIssuer. now defaults to time.Now.
func NewTokenIssuer(manager *jwt.Manager, refresh RefreshTokenStore, users UserStore, now func() time.Time) (*TokenIssuer, error) {
	if manager == nil {
		return nil, errors.New("jwt manager required")
	}
	if refresh == nil {
		return nil, errors.New("refresh token store required")
	}
	if users == nil {
		return nil, errors.New("user store required")
	}
	if now == nil {
		now = time.Now
	}
	return &TokenIssuer{jwt: manager, refresh: refresh, users: users, now: now}, nil
}

// IssueAccess signs an access token for user.
func (t *TokenIssuer) IssueAccess(user *User) (string, error) {
	token, _, err := t.jwt.IssueAccess(user.ID, string(user.Role))
	if err != nil {
		return "", internalError(err)
	}
	return token, nil
}

// IssueMFA signs the short-lived token that bridges login and MFA steps.
func (t *TokenIssuer) IssueMFA(userID string) (string, error) {
	token, _, err := t.jwt.IssueMFA(userID)
	if err != nil {
		return "", internalError(err)
	}
	return token, nil
}

// VerifyAccess returns the principal of a valid access token. Any other
// token kind is rejected.
func (t *TokenIssuer) VerifyAccess(token string) (Principal, error) {
	claims, err := t.jwt.ParseAccess(token)
	if err != nil {
		return Principal{}, unauthorized("invalid_access_token")
	}
	return Principal{UserID: claims.UserID, Role: Role(claims.Role)}, nil
}

// VerifyMFA returns the user ID of a valid MFA token.
func (t *TokenIssuer) VerifyMFA(token string) (string, error) {
	claims, err := t.jwt.ParseMFA(token)
	if err != nil {
		return "", unauthorized("invalid_mfa_token")
	}
	return claims.UserID, nil
}

// IssueRefresh signs a refresh token and stores its hash.
func (t *TokenIssuer) IssueRefresh(ctx context.Context, userID string) (string, error) {
	token, expiresAt, err := t.jwt.IssueRefresh(userID, internal.NewJTI())
	if err != nil {
		return "", internalError(err)
	}

	rec := RefreshTokenRecord{
		ID:        internal.NewTokenID(),
		UserID:    userID,
		TokenHash: internal.HashToken(token),
		ExpiresAt: expiresAt,
		CreatedAt: t.now(),
	}
	if err := t.refresh.CreateRefreshToken(ctx, rec); err != nil {
		return "", internalError(err)
	}
	return token, nil
}

// IssuePair mints an access token and a persisted refresh token for user.
func (t *TokenIssuer) IssuePair(ctx context.Context, user *User) (TokenPair, error) {
	access, err := t.IssueAccess(user)
	if err != nil {
		return TokenPair{}, err
	}
	refresh, err := t.IssueRefresh(ctx, user.ID)
	if err != nil {
		return TokenPair{}, err
	}
	return TokenPair{AccessToken: access, RefreshToken: refresh, UserID: user.ID}, nil
}

// Rotate consumes a refresh token and returns a new pair. The presented
// token is revoked with a conditional update, so of two concurrent
// rotations of the same token exactly one succeeds.
func (t *TokenIssuer) Rotate(ctx context.Context, token string) (TokenPair, error) {
	claims, err := t.jwt.ParseRefresh(token)
	if err != nil {
		return TokenPair{}, unauthorized("invalid_refresh_token")
	}

	rec, err := t.refresh.FindRefreshToken(ctx, internal.HashToken(token))
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return TokenPair{}, unauthorized("unknown_refresh_token")
		}
		return TokenPair{}, internalError(err)
	}

	now := t.now()
	switch {
	case rec.UserID != claims.UserID:
		return TokenPair{}, unauthorized("refresh_subject_mismatch")
	case rec.RevokedAt != nil:
		return TokenPair{}, errRefreshReuse
	case !now.Before(rec.ExpiresAt):
		return TokenPair{}, unauthorized("refresh_expired")
	}

	revoked, err := t.refresh.RevokeRefreshToken(ctx, rec.ID, now)
	if err != nil {
		return TokenPair{}, internalError(err)
	}
	if !revoked {
		return TokenPair{}, errRefreshReuse
	}

	user, err := t.users.GetUserByID(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return TokenPair{}, unauthorized("unknown_user")
		}
		return TokenPair{}, internalError(err)
	}
	if user.Deleted() {
		return TokenPair{}, unauthorized("deleted_user")
	}

	return t.IssuePair(ctx, user)
}

// RevokeOne revokes token if it belongs to userID. Unknown, foreign and
// already revoked tokens are ignored.
func (t *TokenIssuer) RevokeOne(ctx context.Context, userID, token string) (bool, error) {
	rec, err := t.refresh.FindRefreshToken(ctx, internal.HashToken(token))
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return false, nil
		}
		return false, internalError(err)
	}
	if rec.UserID != userID || rec.RevokedAt != nil {
		return false, nil
	}
	revoked, err := t.refresh.RevokeRefreshToken(ctx, rec.ID, t.now())
	if err != nil {
		return false, internalError(err)
	}
	return revoked, nil
}

// RevokeAll revokes every live refresh token of userID.
func (t *TokenIssuer) RevokeAll(ctx context.Context, userID string) (int, error) {
	n, err := t.refresh.RevokeUserRefreshTokens(ctx, userID, t.now())
	if err != nil {
		return 0, internalError(err)
	}
	return n, nil
}

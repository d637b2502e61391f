package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/workhub/authcore/internal"
	"github.com/workhub/authcore/password"
)

// PasswordResetService issues and consumes one-time password-reset tokens.
// Only the SHA-256 of a token is stored.
type PasswordResetService struct {
	store     ResetTokenStore
	users     UserStore
	passwords *password.Authenticator
	ttl       time.Duration
	minLength int
	now       func() time.Time
}

// NewPasswordResetService wires a PasswordResetService.
func NewPasswordResetService(store ResetTokenStore, users UserStore, passwords *password.Authenticator, ttl time.Duration, minLength int, now func() time.Time) (*PasswordResetService, error) {
	if store == nil {
		return nil, errors.New("reset token store required")
	}
	if users == nil {
		return nil, errors.New("user store required")
	}
	if passwords == nil {
		return nil, errors.New("password authenticator required")
	}
	if ttl <= 0 {
		return nil, errors.New("reset token TTL must be > 0")
	}
	if now == nil {
		now = time.Now
	}
	return &PasswordResetService{
		store:     store,
		users:     users,
		passwords: passwords,
		ttl:       ttl,
		minLength: minLength,
		now:       now,
	}, nil
}

// Issue creates a reset token for userID and returns the plaintext with its
// expiry. The plaintext is never persisted.
func (s *PasswordResetService) Issue(ctx context.Context, userID string) (string, time.Time, error) {
	token, err := internal.NewResetToken()
	if err != nil {
		return "", time.Time{}, internalError(err)
	}

	now := s.now()
	rec := ResetTokenRecord{
		ID:        internal.NewTokenID(),
		UserID:    userID,
		TokenHash: internal.HashToken(token),
		ExpiresAt: now.Add(s.ttl),
		CreatedAt: now,
	}
	if err := s.store.CreateResetToken(ctx, rec); err != nil {
		return "", time.Time{}, internalError(err)
	}
	return token, rec.ExpiresAt, nil
}

// Consume validates token, marks it used and stores newPassword for its
// owner. Missing, used and expired tokens fail identically. The returned
// user ID lets the caller revoke sessions.
func (s *PasswordResetService) Consume(ctx context.Context, token, newPassword string) (string, error) {
	if err := checkPasswordPolicy(newPassword, s.minLength); err != nil {
		return "", err
	}
	if token == "" {
		return "", unauthorized("missing_reset_token")
	}

	rec, err := s.store.FindResetToken(ctx, internal.HashToken(token))
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return "", unauthorized("unknown_reset_token")
		}
		return "", internalError(err)
	}

	now := s.now()
	if rec.UsedAt != nil || !now.Before(rec.ExpiresAt) {
		return "", unauthorized("reset_token_spent")
	}

	// Hash before claiming the token so a hashing failure leaves it usable.
	hash, err := s.passwords.Hash(newPassword)
	if err != nil {
		return "", internalError(err)
	}

	claimed, err := s.store.MarkResetTokenUsed(ctx, rec.ID, now)
	if err != nil {
		return "", internalError(err)
	}
	if !claimed {
		return "", unauthorized("reset_token_spent")
	}

	if err := s.users.SetPassword(ctx, rec.UserID, hash, false); err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return "", unauthorized("unknown_user")
		}
		return "", internalError(err)
	}
	return rec.UserID, nil
}

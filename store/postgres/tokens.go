package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/workhub/authcore"
)

/* ==== REFRESH TOKENS ==== */

func (s *Store) CreateRefreshToken(ctx context.Context, rec authcore.RefreshTokenRecord) error {
	query := `
		INSERT INTO refresh_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query, rec.ID, rec.UserID, rec.TokenHash, rec.ExpiresAt.UTC(), rec.CreatedAt.UTC())
	return mapError(err)
}

func (s *Store) FindRefreshToken(ctx context.Context, tokenHash string) (*authcore.RefreshTokenRecord, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, revoked_at, created_at
		FROM refresh_tokens
		WHERE token_hash = $1
	`
	var (
		rec       authcore.RefreshTokenRecord
		revokedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, tokenHash).
		Scan(&rec.ID, &rec.UserID, &rec.TokenHash, &rec.ExpiresAt, &revokedAt, &rec.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	rec.RevokedAt = timePtr(revokedAt)
	return &rec, nil
}

func (s *Store) RevokeRefreshToken(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL
	`
	return s.execConditional(ctx, query, id, at.UTC())
}

func (s *Store) RevokeUserRefreshTokens(ctx context.Context, userID string, at time.Time) (int, error) {
	query := `
		UPDATE refresh_tokens
		SET revoked_at = $2
		WHERE user_id = $1 AND revoked_at IS NULL
	`
	res, err := s.db.ExecContext(ctx, query, userID, at.UTC())
	if err != nil {
		return 0, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, mapError(err)
	}
	return int(n), nil
}

/* ==== RESET TOKENS ==== */

func (s *Store) CreateResetToken(ctx context.Context, rec authcore.ResetTokenRecord) error {
	query := `
		INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	_, err := s.db.ExecContext(ctx, query, rec.ID, rec.UserID, rec.TokenHash, rec.ExpiresAt.UTC(), rec.CreatedAt.UTC())
	return mapError(err)
}

func (s *Store) FindResetToken(ctx context.Context, tokenHash string) (*authcore.ResetTokenRecord, error) {
	query := `
		SELECT id, user_id, token_hash, expires_at, used_at, created_at
		FROM password_reset_tokens
		WHERE token_hash = $1
	`
	var (
		rec    authcore.ResetTokenRecord
		usedAt sql.NullTime
	)
	err := s.db.QueryRowContext(ctx, query, tokenHash).
		Scan(&rec.ID, &rec.UserID, &rec.TokenHash, &rec.ExpiresAt, &usedAt, &rec.CreatedAt)
	if err != nil {
		return nil, mapError(err)
	}
	rec.UsedAt = timePtr(usedAt)
	return &rec, nil
}

func (s *Store) MarkResetTokenUsed(ctx context.Context, id string, at time.Time) (bool, error) {
	query := `
		UPDATE password_reset_tokens
		SET used_at = $2
		WHERE id = $1 AND used_at IS NULL
	`
	return s.execConditional(ctx, query, id, at.UTC())
}

// execConditional reports whether a guarded UPDATE touched exactly one row.
func (s *Store) execConditional(ctx context.Context, query string, args ...any) (bool, error) {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return false, mapError(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, mapError(err)
	}
	return n == 1, nil
}

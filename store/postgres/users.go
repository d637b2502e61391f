package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/workhub/authcore"
)

const userColumns = `id, email, role, password_hash, mfa_enabled, mfa_secret,
		failed_login_attempts, locked_until, password_temporal, deleted_at,
		created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*authcore.User, error) {
	var (
		u           authcore.User
		role        string
		secret      sql.NullString
		lockedUntil sql.NullTime
		deletedAt   sql.NullTime
	)
	if err := row.Scan(
		&u.ID, &u.Email, &role, &u.PasswordHash, &u.MFAEnabled, &secret,
		&u.FailedLoginAttempts, &lockedUntil, &u.PasswordTemporal, &deletedAt,
		&u.CreatedAt, &u.UpdatedAt,
	); err != nil {
		return nil, mapError(err)
	}
	u.Role = authcore.Role(role)
	if secret.Valid {
		u.MFASecret = &secret.String
	}
	u.LockedUntil = timePtr(lockedUntil)
	u.DeletedAt = timePtr(deletedAt)
	return &u, nil
}

func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
		return 0, mapError(err)
	}
	return n, nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*authcore.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE email = $1`
	return scanUser(s.db.QueryRowContext(ctx, query, email))
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*authcore.User, error) {
	query := `SELECT ` + userColumns + `
		FROM users
		WHERE id = $1`
	return scanUser(s.db.QueryRowContext(ctx, query, id))
}

func (s *Store) CreateUser(ctx context.Context, in authcore.CreateUserInput) (*authcore.User, error) {
	query := `
		INSERT INTO users (id, email, role, password_hash, password_temporal, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
	`
	now := s.now().UTC()
	if _, err := s.db.ExecContext(ctx, query, in.ID, in.Email, string(in.Role), in.PasswordHash, in.PasswordTemporal, now); err != nil {
		return nil, mapError(err)
	}
	return &authcore.User{
		ID:               in.ID,
		Email:            in.Email,
		Role:             in.Role,
		PasswordHash:     in.PasswordHash,
		PasswordTemporal: in.PasswordTemporal,
		CreatedAt:        now,
		UpdatedAt:        now,
	}, nil
}

func (s *Store) UpdateLockoutState(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error {
	query := `
		UPDATE users
		SET failed_login_attempts = $2, locked_until = $3, updated_at = $4
		WHERE id = $1
	`
	return s.execUserUpdate(ctx, query, userID, failedAttempts, nullTime(lockedUntil), s.now().UTC())
}

func (s *Store) SetPassword(ctx context.Context, userID, passwordHash string, temporal bool) error {
	query := `
		UPDATE users
		SET password_hash = $2, password_temporal = $3, updated_at = $4
		WHERE id = $1
	`
	return s.execUserUpdate(ctx, query, userID, passwordHash, temporal, s.now().UTC())
}

func (s *Store) SaveMFASecret(ctx context.Context, userID, envelope string) error {
	query := `
		UPDATE users
		SET mfa_secret = $2, updated_at = $3
		WHERE id = $1
	`
	return s.execUserUpdate(ctx, query, userID, envelope, s.now().UTC())
}

func (s *Store) EnableMFA(ctx context.Context, userID string) error {
	query := `
		UPDATE users
		SET mfa_enabled = TRUE, updated_at = $2
		WHERE id = $1 AND mfa_secret IS NOT NULL
	`
	return s.execUserUpdate(ctx, query, userID, s.now().UTC())
}

func (s *Store) execUserUpdate(ctx context.Context, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return mapError(err)
	}
	if err := requireRow(res); err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return nil
}

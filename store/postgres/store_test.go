package postgres

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pressly/goose/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/workhub/authcore"
)

var fixedNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func newStoreWithMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		_ = db.Close()
	})
	return New(db).WithClock(func() time.Time { return fixedNow }), mock
}

var userRowColumns = []string{
	"id", "email", "role", "password_hash", "mfa_enabled", "mfa_secret",
	"failed_login_attempts", "locked_until", "password_temporal", "deleted_at",
	"created_at", "updated_at",
}

func TestGetUserByEmail(t *testing.T) {
	s, mock := newStoreWithMock(t)
	locked := fixedNow.Add(30 * time.Minute)

	rows := sqlmock.NewRows(userRowColumns).
		AddRow("u1", "a@example.com", "ADMIN", "$2a$hash", true, "salt:iv:tag:ct", 3, locked, false, nil, fixedNow, fixedNow)
	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*email.*FROM\s+users\s+WHERE\s+email\s*=\s*\$1$`).
		WithArgs("a@example.com").
		WillReturnRows(rows)

	u, err := s.GetUserByEmail(context.Background(), "a@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u1", u.ID)
	assert.Equal(t, authcore.RoleAdmin, u.Role)
	assert.True(t, u.MFAEnabled)
	require.NotNil(t, u.MFASecret)
	assert.Equal(t, "salt:iv:tag:ct", *u.MFASecret)
	assert.Equal(t, 3, u.FailedLoginAttempts)
	require.NotNil(t, u.LockedUntil)
	assert.True(t, u.LockedUntil.Equal(locked))
	assert.Nil(t, u.DeletedAt)
}

func TestGetUserByIDNotFound(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`(?s)^SELECT\s+id,\s*email.*FROM\s+users\s+WHERE\s+id\s*=\s*\$1$`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := s.GetUserByID(context.Background(), "missing")
	assert.ErrorIs(t, err, authcore.ErrRecordNotFound)
}

func TestCountUsers(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectQuery(`^SELECT COUNT\(\*\) FROM users$`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))

	n, err := s.CountUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestCreateUserDuplicateEmail(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+users\b.*VALUES\s*\(\$1,\s*\$2,\s*\$3,\s*\$4,\s*\$5,\s*\$6,\s*\$6\)\s*$`).
		WithArgs("u2", "a@example.com", "ADMIN", "hash", false, fixedNow).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	_, err := s.CreateUser(context.Background(), authcore.CreateUserInput{
		ID: "u2", Email: "a@example.com", Role: authcore.RoleAdmin, PasswordHash: "hash",
	})
	assert.ErrorIs(t, err, authcore.ErrDuplicateRecord)
}

func TestCreateUser(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`(?s)^\s*INSERT\s+INTO\s+users\b`).
		WithArgs("u1", "a@example.com", "EMPLOYEE", "hash", true, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	u, err := s.CreateUser(context.Background(), authcore.CreateUserInput{
		ID: "u1", Email: "a@example.com", Role: authcore.RoleEmployee, PasswordHash: "hash", PasswordTemporal: true,
	})
	require.NoError(t, err)
	assert.True(t, u.PasswordTemporal)
	assert.Equal(t, fixedNow, u.CreatedAt)
}

func TestUpdateLockoutState(t *testing.T) {
	s, mock := newStoreWithMock(t)
	until := fixedNow.Add(time.Hour)

	mock.ExpectExec(`(?s)UPDATE\s+users\s+SET\s+failed_login_attempts\s*=\s*\$2,\s*locked_until\s*=\s*\$3`).
		WithArgs("u1", 3, sql.NullTime{Time: until, Valid: true}, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)UPDATE\s+users\s+SET\s+failed_login_attempts`).
		WithArgs("u1", 0, sql.NullTime{}, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.UpdateLockoutState(context.Background(), "u1", 3, &until))
	require.NoError(t, s.UpdateLockoutState(context.Background(), "u1", 0, nil))
}

func TestUserUpdateMissingRow(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`(?s)UPDATE\s+users\s+SET\s+password_hash`).
		WithArgs("ghost", "hash", false, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.SetPassword(context.Background(), "ghost", "hash", false)
	assert.ErrorIs(t, err, authcore.ErrRecordNotFound)
}

func TestSaveSecretAndEnableMFA(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`(?s)UPDATE\s+users\s+SET\s+mfa_secret\s*=\s*\$2`).
		WithArgs("u1", "env", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`(?s)UPDATE\s+users\s+SET\s+mfa_enabled\s*=\s*TRUE.*mfa_secret\s+IS\s+NOT\s+NULL`).
		WithArgs("u1", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, s.SaveMFASecret(context.Background(), "u1", "env"))
	require.NoError(t, s.EnableMFA(context.Background(), "u1"))
}

func TestFindRefreshToken(t *testing.T) {
	s, mock := newStoreWithMock(t)
	expires := fixedNow.Add(24 * time.Hour)

	mock.ExpectQuery(`(?s)SELECT\s+id,\s*user_id,\s*token_hash,\s*expires_at,\s*revoked_at.*FROM\s+refresh_tokens\s+WHERE\s+token_hash\s*=\s*\$1`).
		WithArgs("h1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "revoked_at", "created_at"}).
			AddRow("r1", "u1", "h1", expires, nil, fixedNow))

	rec, err := s.FindRefreshToken(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, "r1", rec.ID)
	assert.True(t, rec.ExpiresAt.Equal(expires))
	assert.Nil(t, rec.RevokedAt)
}

func TestRevokeRefreshTokenIsConditional(t *testing.T) {
	s, mock := newStoreWithMock(t)

	q := `(?s)UPDATE\s+refresh_tokens\s+SET\s+revoked_at\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1\s+AND\s+revoked_at\s+IS\s+NULL`
	mock.ExpectExec(q).WithArgs("r1", fixedNow).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(q).WithArgs("r1", fixedNow).WillReturnResult(sqlmock.NewResult(0, 0))

	ok, err := s.RevokeRefreshToken(context.Background(), "r1", fixedNow)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.RevokeRefreshToken(context.Background(), "r1", fixedNow)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRevokeUserRefreshTokens(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`(?s)UPDATE\s+refresh_tokens\s+SET\s+revoked_at\s*=\s*\$2\s+WHERE\s+user_id\s*=\s*\$1`).
		WithArgs("u1", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 4))

	n, err := s.RevokeUserRefreshTokens(context.Background(), "u1", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestCreateRefreshTokenDBError(t *testing.T) {
	s, mock := newStoreWithMock(t)

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+refresh_tokens`).
		WithArgs("r1", "u1", "h1", fixedNow, fixedNow).
		WillReturnError(errors.New("db down"))

	err := s.CreateRefreshToken(context.Background(), authcore.RefreshTokenRecord{
		ID: "r1", UserID: "u1", TokenHash: "h1", ExpiresAt: fixedNow, CreatedAt: fixedNow,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.NotErrorIs(t, err, authcore.ErrRecordNotFound)
}

func TestResetTokenLifecycle(t *testing.T) {
	s, mock := newStoreWithMock(t)
	ctx := context.Background()
	expires := fixedNow.Add(time.Hour)

	mock.ExpectExec(`(?s)INSERT\s+INTO\s+password_reset_tokens`).
		WithArgs("t1", "u1", "h1", expires, fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`(?s)FROM\s+password_reset_tokens\s+WHERE\s+token_hash\s*=\s*\$1`).
		WithArgs("h1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "token_hash", "expires_at", "used_at", "created_at"}).
			AddRow("t1", "u1", "h1", expires, nil, fixedNow))
	mock.ExpectExec(`(?s)UPDATE\s+password_reset_tokens\s+SET\s+used_at\s*=\s*\$2\s+WHERE\s+id\s*=\s*\$1\s+AND\s+used_at\s+IS\s+NULL`).
		WithArgs("t1", fixedNow).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`(?s)FROM\s+password_reset_tokens`).
		WithArgs("nope").
		WillReturnError(sql.ErrNoRows)

	require.NoError(t, s.CreateResetToken(ctx, authcore.ResetTokenRecord{
		ID: "t1", UserID: "u1", TokenHash: "h1", ExpiresAt: expires, CreatedAt: fixedNow,
	}))

	rec, err := s.FindResetToken(ctx, "h1")
	require.NoError(t, err)
	assert.Nil(t, rec.UsedAt)

	ok, err := s.MarkResetTokenUsed(ctx, "t1", fixedNow)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = s.FindResetToken(ctx, "nope")
	assert.ErrorIs(t, err, authcore.ErrRecordNotFound)
}

func TestMigrateUsesEmbeddedDir(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	orig := gooseUpContext
	defer func() { gooseUpContext = orig }()

	var gotDir string
	gooseUpContext = func(_ context.Context, _ *sql.DB, dir string, _ ...goose.OptionsFunc) error {
		gotDir = dir
		return nil
	}
	require.NoError(t, Migrate(context.Background(), db))
	assert.Equal(t, "migrations", gotDir)

	gooseUpContext = func(context.Context, *sql.DB, string, ...goose.OptionsFunc) error {
		return errors.New("boom")
	}
	err = Migrate(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "migration error")
}

func TestEmbeddedMigrationPresent(t *testing.T) {
	data, err := migrations.ReadFile("migrations/00001_auth_schema.sql")
	require.NoError(t, err)
	assert.Contains(t, string(data), "-- +goose Up")
	assert.Contains(t, string(data), "CREATE TABLE IF NOT EXISTS password_reset_tokens")
}

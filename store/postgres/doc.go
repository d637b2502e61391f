// Package postgres stores users, refresh tokens and password-reset tokens in
// PostgreSQL through database/sql and the pgx driver.
//
// The schema ships as embedded goose migrations; call Migrate once at start
// up. Conditional updates (revocation, reset token consumption) are single
// guarded UPDATE statements, so concurrent callers get at-most-once
// semantics without explicit transactions.
//
// # What this package must NOT do
//
//   - Store plaintext tokens. Only hashes reach the database.
//   - Interpret authentication rules. It persists what the engine decides.
package postgres

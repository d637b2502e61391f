package authcore

import (
	"context"
	"time"
)

// Role is the coarse role stored on a user and carried in access tokens.
type Role string

const (
	// RoleAdmin is given to the bootstrap account.
	RoleAdmin Role = "ADMIN"
	// RoleEmployee is an exported constant or variable used by the authentication engine.
	RoleEmployee Role = "EMPLOYEE"
)

// User is the persisted account row. MFASecret holds a vault envelope, never
// a plaintext secret. MFAEnabled implies MFASecret is set.
type User struct {
	ID                  string
	Email               string
	Role                Role
	PasswordHash        string
	MFAEnabled          bool
	MFASecret           *string
	FailedLoginAttempts int
	LockedUntil         *time.Time
	PasswordTemporal    bool
	DeletedAt           *time.Time
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// Deleted reports whether the account is soft-deleted.
func (u *User) Deleted() bool {
	return u.DeletedAt != nil
}

// View returns the client-facing projection of u.
func (u *User) View() UserView {
	return UserView{
		ID:         u.ID,
		Email:      u.Email,
		Role:       u.Role,
		MFAEnabled: u.MFAEnabled,
	}
}

// UserView is the user as returned to clients. It never carries hashes,
// secrets or lockout counters.
type UserView struct {
	ID         string `json:"id"`
	Email      string `json:"email"`
	Role       Role   `json:"rol"`
	MFAEnabled bool   `json:"mfaEnabled"`
}

// CreateUserInput carries the fields needed to insert a user.
type CreateUserInput struct {
	ID               string
	Email            string
	Role             Role
	PasswordHash     string
	PasswordTemporal bool
}

// RefreshTokenRecord is a persisted refresh token. Only the hash of the
// signed token is stored.
type RefreshTokenRecord struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// ResetTokenRecord is a persisted password-reset token. Only the hash of
// the plaintext token is stored.
type ResetTokenRecord struct {
	ID        string
	UserID    string
	TokenHash string
	ExpiresAt time.Time
	UsedAt    *time.Time
	CreatedAt time.Time
}

// UserStore persists accounts. Lookups return ErrRecordNotFound on a miss;
// CreateUser returns ErrDuplicateRecord when the email is taken.
type UserStore interface {
	CountUsers(ctx context.Context) (int, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByID(ctx context.Context, id string) (*User, error)
	CreateUser(ctx context.Context, input CreateUserInput) (*User, error)
	UpdateLockoutState(ctx context.Context, userID string, failedAttempts int, lockedUntil *time.Time) error
	SetPassword(ctx context.Context, userID, passwordHash string, temporal bool) error
	// SaveMFASecret replaces the stored envelope without touching MFAEnabled.
	SaveMFASecret(ctx context.Context, userID, envelope string) error
	EnableMFA(ctx context.Context, userID string) error
}

// RefreshTokenStore persists refresh tokens by hash.
type RefreshTokenStore interface {
	CreateRefreshToken(ctx context.Context, rec RefreshTokenRecord) error
	FindRefreshToken(ctx context.Context, tokenHash string) (*RefreshTokenRecord, error)
	// RevokeRefreshToken sets RevokedAt only if it is unset and reports
	// whether this call revoked the row.
	RevokeRefreshToken(ctx context.Context, id string, at time.Time) (bool, error)
	RevokeUserRefreshTokens(ctx context.Context, userID string, at time.Time) (int, error)
}

// ResetTokenStore persists password-reset tokens by hash.
type ResetTokenStore interface {
	CreateResetToken(ctx context.Context, rec ResetTokenRecord) error
	FindResetToken(ctx context.Context, tokenHash string) (*ResetTokenRecord, error)
	// MarkResetTokenUsed sets UsedAt only if it is unset and reports whether
	// this call consumed the token.
	MarkResetTokenUsed(ctx context.Context, id string, at time.Time) (bool, error)
}

// ResetNotifier delivers a plaintext reset token to the account owner,
// typically by email.
type ResetNotifier interface {
	NotifyPasswordReset(ctx context.Context, user UserView, token string, expiresAt time.Time) error
}

// LoginStep tells the client what to do after a successful password check.
type LoginStep string

const (
	StepMFARequired            LoginStep = "mfaRequired"
	StepMFASetupRequired       LoginStep = "mfaSetupRequired"
	StepPasswordChangeRequired LoginStep = "passwordChangeRequired"
)

// LoginResult is returned by Engine.Login and Engine.ChangeTemporaryPassword.
type LoginResult struct {
	Step     LoginStep `json:"step"`
	MFAToken string    `json:"mfaToken"`
}

// MFASetup is returned by Engine.SetupMFA.
type MFASetup struct {
	Secret     string `json:"secret"`
	OTPAuthURL string `json:"otpauthUrl"`
}

// TokenPair is a freshly minted access and refresh token.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	UserID       string `json:"-"`
}

// Session is returned by Engine.VerifyMFA.
type Session struct {
	AccessToken  string   `json:"accessToken"`
	RefreshToken string   `json:"refreshToken"`
	User         UserView `json:"user"`
}

// Principal is the identity carried by a verified access token.
type Principal struct {
	UserID string
	Role   Role
}

package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenType is the value of the "type" claim.
type TokenType string

const (
	TypeAccess  TokenType = "access"
	TypeRefresh TokenType = "refresh"
	TypeMFA     TokenType = "mfa"
)

// Claims is implemented by AccessClaims, RefreshClaims and MFAClaims only.
type Claims interface {
	Type() TokenType
	sealed()
}

// AccessClaims authenticate API requests.
type AccessClaims struct {
	UserID    string
	Role      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// RefreshClaims identify one persisted refresh token.
type RefreshClaims struct {
	UserID    string
	JTI       string
	ExpiresAt time.Time
}

// MFAClaims bridge the password step and the TOTP step of a login.
type MFAClaims struct {
	UserID    string
	ExpiresAt time.Time
}

func (*AccessClaims) Type() TokenType  { return TypeAccess }
func (*RefreshClaims) Type() TokenType { return TypeRefresh }
func (*MFAClaims) Type() TokenType     { return TypeMFA }

func (*AccessClaims) sealed()  {}
func (*RefreshClaims) sealed() {}
func (*MFAClaims) sealed()     {}

// wireClaims is the signed JSON payload shared by all token kinds.
type wireClaims struct {
	Type TokenType `json:"type"`
	Role string    `json:"role,omitempty"`
	jwt.RegisteredClaims
}

func (w *wireClaims) decode() (Claims, error) {
	var expires time.Time
	if w.ExpiresAt != nil {
		expires = w.ExpiresAt.Time
	}
	if w.Subject == "" {
		return nil, ErrMissingSubject
	}

	switch w.Type {
	case TypeAccess:
		var issued time.Time
		if w.IssuedAt != nil {
			issued = w.IssuedAt.Time
		}
		return &AccessClaims{UserID: w.Subject, Role: w.Role, IssuedAt: issued, ExpiresAt: expires}, nil
	case TypeRefresh:
		if w.ID == "" {
			return nil, ErrMissingJTI
		}
		return &RefreshClaims{UserID: w.Subject, JTI: w.ID, ExpiresAt: expires}, nil
	case TypeMFA:
		return &MFAClaims{UserID: w.Subject, ExpiresAt: expires}, nil
	default:
		return nil, ErrUnknownType
	}
}

package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest accepted HMAC secret.
const MinSecretLength = 32

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrWrongType      = errors.New("unexpected token type")
	ErrUnknownType    = errors.New("unknown token type")
	ErrMissingSubject = errors.New("token has no subject")
	ErrMissingJTI     = errors.New("refresh token has no jti")
)

// Config configures a Manager.
type Config struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	MFATTL        time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
	// Now overrides the clock for issuance and expiry checks.
	Now func() time.Time
}

// Manager issues and parses signed tokens. It is immutable after
// construction.
type Manager struct {
	config Config
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.AccessSecret) < MinSecretLength {
		return nil, fmt.Errorf("access secret must be at least %d bytes", MinSecretLength)
	}
	if len(cfg.RefreshSecret) < MinSecretLength {
		return nil, fmt.Errorf("refresh secret must be at least %d bytes", MinSecretLength)
	}
	if string(cfg.AccessSecret) == string(cfg.RefreshSecret) {
		return nil, errors.New("access and refresh secrets must differ")
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 || cfg.MFATTL <= 0 {
		return nil, errors.New("invalid TTL configuration")
	}
	if cfg.Leeway < 0 || cfg.Leeway > 2*time.Minute {
		return nil, errors.New("invalid leeway configuration")
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Manager{config: cfg}, nil
}

// IssueAccess signs an access token for userID with role.
func (m *Manager) IssueAccess(userID, role string) (string, time.Time, error) {
	return m.sign(wireClaims{Type: TypeAccess, Role: role}, userID, "", m.config.AccessTTL, m.config.AccessSecret)
}

// IssueMFA signs an MFA bridge token for userID.
func (m *Manager) IssueMFA(userID string) (string, time.Time, error) {
	return m.sign(wireClaims{Type: TypeMFA}, userID, "", m.config.MFATTL, m.config.AccessSecret)
}

// IssueRefresh signs a refresh token carrying jti.
func (m *Manager) IssueRefresh(userID, jti string) (string, time.Time, error) {
	if jti == "" {
		return "", time.Time{}, ErrMissingJTI
	}
	return m.sign(wireClaims{Type: TypeRefresh}, userID, jti, m.config.RefreshTTL, m.config.RefreshSecret)
}

// ParseAccess accepts only access tokens.
func (m *Manager) ParseAccess(token string) (*AccessClaims, error) {
	claims, err := m.parse(token, m.config.AccessSecret)
	if err != nil {
		return nil, err
	}
	switch c := claims.(type) {
	case *AccessClaims:
		return c, nil
	case *MFAClaims, *RefreshClaims:
		return nil, ErrWrongType
	default:
		return nil, ErrUnknownType
	}
}

// ParseMFA accepts only MFA bridge tokens.
func (m *Manager) ParseMFA(token string) (*MFAClaims, error) {
	claims, err := m.parse(token, m.config.AccessSecret)
	if err != nil {
		return nil, err
	}
	switch c := claims.(type) {
	case *MFAClaims:
		return c, nil
	case *AccessClaims, *RefreshClaims:
		return nil, ErrWrongType
	default:
		return nil, ErrUnknownType
	}
}

// ParseRefresh accepts only refresh tokens.
func (m *Manager) ParseRefresh(token string) (*RefreshClaims, error) {
	claims, err := m.parse(token, m.config.RefreshSecret)
	if err != nil {
		return nil, err
	}
	switch c := claims.(type) {
	case *RefreshClaims:
		return c, nil
	case *AccessClaims, *MFAClaims:
		return nil, ErrWrongType
	default:
		return nil, ErrUnknownType
	}
}

func (m *Manager) sign(claims wireClaims, subject, jti string, ttl time.Duration, key []byte) (string, time.Time, error) {
	if subject == "" {
		return "", time.Time{}, ErrMissingSubject
	}
	now := m.config.Now()
	expires := now.Add(ttl)

	claims.RegisteredClaims = jwt.RegisteredClaims{
		Subject:   subject,
		ID:        jti,
		Issuer:    m.config.Issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expires),
	}
	if m.config.Audience != "" {
		claims.Audience = jwt.ClaimStrings{m.config.Audience}
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(key)
	if err != nil {
		return "", time.Time{}, err
	}
	// NumericDate truncates to seconds; report what the token actually says.
	return signed, claims.ExpiresAt.Time, nil
}

func (m *Manager) parse(token string, key []byte) (Claims, error) {
	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(m.config.Now),
	}
	if m.config.Leeway > 0 {
		options = append(options, jwt.WithLeeway(m.config.Leeway))
	}
	if m.config.Issuer != "" {
		options = append(options, jwt.WithIssuer(m.config.Issuer))
	}
	if m.config.Audience != "" {
		options = append(options, jwt.WithAudience(m.config.Audience))
	}

	var wire wireClaims
	parsed, err := jwt.NewParser(options...).ParseWithClaims(token, &wire, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	return wire.decode()
}

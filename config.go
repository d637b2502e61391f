package authcore

import (
	"errors"
	"time"

	"github.com/workhub/authcore/jwt"
	"github.com/workhub/authcore/password"
	"github.com/workhub/authcore/vault"
)

// Config defines a public type used by authcore APIs.
//
// Config instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type Config struct {
	JWT           JWTConfig
	Password      PasswordConfig
	TOTP          TOTPConfig
	Vault         VaultConfig
	Lockout       LockoutConfig
	RateLimit     RateLimitConfig
	PasswordReset PasswordResetConfig
	Audit         AuditConfig
	Metrics       MetricsConfig
	Security      SecurityConfig
}

/*
====================================
JWT CONFIG
====================================
*/

// JWTConfig holds signing secrets and token lifetimes. AccessSecret signs
// access and MFA tokens; RefreshSecret signs refresh tokens.
type JWTConfig struct {
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	MFATTL        time.Duration
	Issuer        string
	Audience      string
	Leeway        time.Duration
}

/*
====================================
PASSWORD CONFIG
====================================
*/

// PasswordConfig defines a public type used by authcore APIs.
//
// PasswordConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type PasswordConfig struct {
	Cost           int // bcrypt work factor
	MinLength      int // bytes
	UpgradeOnLogin bool
}

/*
====================================
TOTP CONFIG
====================================
*/

// TOTPConfig controls enrollment labels and the verify throttle.
type TOTPConfig struct {
	Issuer            string
	VerifyMaxAttempts int
	VerifyWindow      time.Duration
}

/*
====================================
VAULT CONFIG
====================================
*/

// VaultConfig holds the MFA secret master key and the argon2id parameters
// used to derive a per-secret key from it.
type VaultConfig struct {
	MasterKey   []byte
	KDFTime     uint32
	KDFMemoryKB uint32
	KDFThreads  uint8
}

/*
====================================
LOCKOUT CONFIG
====================================
*/

// LockoutConfig defines a public type used by authcore APIs.
//
// LockoutConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig sizes the HTTP limiters. Login traffic gets a tighter
// budget than everything else.
type RateLimitConfig struct {
	LoginMax      int
	LoginWindow   time.Duration
	GeneralMax    int
	GeneralWindow time.Duration
	RedisPrefix   string
}

/*
====================================
PASSWORD RESET CONFIG
====================================
*/

// PasswordResetConfig defines a public type used by authcore APIs.
type PasswordResetConfig struct {
	TTL time.Duration
}

// AuditConfig defines a public type used by authcore APIs.
//
// AuditConfig instances are intended to be configured during initialization and then treated as immutable unless documented otherwise.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig defines a public type used by authcore APIs.
type MetricsConfig struct {
	Enabled                 bool
	EnableLatencyHistograms bool
}

/*
====================================
SECURITY CONFIG
====================================
*/

// SecurityConfig holds deployment-level switches.
type SecurityConfig struct {
	// ProductionMode rejects settings that are only acceptable in tests.
	ProductionMode bool
}

/*
====================================
DEFAULTS
====================================
*/

// DefaultConfig returns the production defaults. Secrets and the vault
// master key are empty and must be supplied by the caller.
func DefaultConfig() Config {
	return Config{
		JWT: JWTConfig{
			AccessTTL:  15 * time.Minute,
			RefreshTTL: 30 * 24 * time.Hour,
			MFATTL:     5 * time.Minute,
			Issuer:     "authcore",
		},
		Password: PasswordConfig{
			Cost:           password.DefaultCost,
			MinLength:      8,
			UpgradeOnLogin: true,
		},
		TOTP: TOTPConfig{
			Issuer:            "authcore",
			VerifyMaxAttempts: 5,
			VerifyWindow:      time.Minute,
		},
		Vault: VaultConfig{
			KDFTime:     vault.DefaultKDFParams.Time,
			KDFMemoryKB: vault.DefaultKDFParams.MemoryKB,
			KDFThreads:  vault.DefaultKDFParams.Threads,
		},
		Lockout: LockoutConfig{
			Threshold: 3,
			Duration:  30 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			LoginMax:      5,
			LoginWindow:   time.Minute,
			GeneralMax:    100,
			GeneralWindow: time.Minute,
			RedisPrefix:   "authcore:rl:",
		},
		PasswordReset: PasswordResetConfig{
			TTL: time.Hour,
		},
		Audit: AuditConfig{
			Enabled:    false,
			BufferSize: 1024,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled:                 true,
			EnableLatencyHistograms: true,
		},
	}
}

func cloneConfig(cfg Config) Config {
	out := cfg
	out.JWT.AccessSecret = cloneBytes(cfg.JWT.AccessSecret)
	out.JWT.RefreshSecret = cloneBytes(cfg.JWT.RefreshSecret)
	out.Vault.MasterKey = cloneBytes(cfg.Vault.MasterKey)
	return out
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

func (c *Config) kdfParams() vault.KDFParams {
	return vault.KDFParams{
		Time:     c.Vault.KDFTime,
		MemoryKB: c.Vault.KDFMemoryKB,
		Threads:  c.Vault.KDFThreads,
	}
}

/*
====================================
VALIDATION
====================================
*/

// Validate describes the validate operation and its observable behavior.
//
// Validate may return an error when a field is out of range. It does not
// mutate the receiver.
func (c *Config) Validate() error {
	// JWT
	if len(c.JWT.AccessSecret) < jwt.MinSecretLength {
		return errors.New("JWT AccessSecret must be >= 32 bytes")
	}
	if len(c.JWT.RefreshSecret) < jwt.MinSecretLength {
		return errors.New("JWT RefreshSecret must be >= 32 bytes")
	}
	if string(c.JWT.AccessSecret) == string(c.JWT.RefreshSecret) {
		return errors.New("JWT AccessSecret and RefreshSecret must differ")
	}
	if c.JWT.AccessTTL <= 0 {
		return errors.New("JWT AccessTTL must be > 0")
	}
	if c.JWT.RefreshTTL <= 0 {
		return errors.New("JWT RefreshTTL must be > 0")
	}
	if c.JWT.MFATTL <= 0 {
		return errors.New("JWT MFATTL must be > 0")
	}
	if c.JWT.Leeway < 0 || c.JWT.Leeway > 2*time.Minute {
		return errors.New("JWT Leeway must be between 0 and 2m")
	}

	// Password
	if c.Password.Cost < 4 || c.Password.Cost > 31 {
		return errors.New("Password Cost must be between 4 and 31")
	}
	if c.Password.MinLength < 1 {
		return errors.New("Password MinLength must be > 0")
	}
	if c.Password.MinLength > password.MaxPasswordBytes {
		return errors.New("Password MinLength must be <= 72")
	}

	// TOTP
	if c.TOTP.Issuer == "" {
		return errors.New("TOTP Issuer is required")
	}
	if c.TOTP.VerifyMaxAttempts <= 0 {
		return errors.New("TOTP VerifyMaxAttempts must be > 0")
	}
	if c.TOTP.VerifyWindow <= 0 || c.TOTP.VerifyWindow%time.Second != 0 {
		return errors.New("TOTP VerifyWindow must be a positive whole number of seconds")
	}

	// Vault
	if len(c.Vault.MasterKey) < vault.MinMasterKeyLen {
		return errors.New("Vault MasterKey must be >= 32 bytes")
	}
	if c.Vault.KDFTime < 1 || c.Vault.KDFMemoryKB < 1024 || c.Vault.KDFThreads < 1 {
		return errors.New("Vault KDF parameters out of range")
	}

	// Lockout
	if c.Lockout.Threshold <= 0 {
		return errors.New("Lockout Threshold must be > 0")
	}
	if c.Lockout.Duration <= 0 {
		return errors.New("Lockout Duration must be > 0")
	}

	// Rate limits
	if c.RateLimit.LoginMax <= 0 || c.RateLimit.LoginWindow <= 0 {
		return errors.New("RateLimit login budget must be > 0")
	}
	if c.RateLimit.GeneralMax <= 0 || c.RateLimit.GeneralWindow <= 0 {
		return errors.New("RateLimit general budget must be > 0")
	}
	if c.RateLimit.LoginWindow%time.Second != 0 || c.RateLimit.GeneralWindow%time.Second != 0 {
		return errors.New("RateLimit windows must be whole seconds")
	}

	if c.PasswordReset.TTL <= 0 {
		return errors.New("PasswordReset TTL must be > 0")
	}

	if c.Audit.Enabled && c.Audit.BufferSize <= 0 {
		return errors.New("Audit BufferSize must be > 0 when audit is enabled")
	}

	if c.Security.ProductionMode {
		if c.Password.Cost < 10 {
			return errors.New("ProductionMode requires Password Cost >= 10")
		}
		if c.JWT.AccessTTL > 15*time.Minute {
			return errors.New("ProductionMode requires JWT AccessTTL <= 15m")
		}
		if c.JWT.RefreshTTL > 30*24*time.Hour {
			return errors.New("ProductionMode requires JWT RefreshTTL <= 30d")
		}
		if c.Vault.KDFMemoryKB < 19*1024 {
			return errors.New("ProductionMode requires Vault KDFMemoryKB >= 19456")
		}
	}

	return nil
}

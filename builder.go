package authcore

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/workhub/authcore/internal/limiters"
	"github.com/workhub/authcore/internal/rate"
	"github.com/workhub/authcore/jwt"
	"github.com/workhub/authcore/password"
	"github.com/workhub/authcore/vault"
)

// dummyPassword is hashed at build time. Logins for unknown accounts verify
// against it so they cost the same as real ones.
const dummyPassword = "authcore-timing-equalizer"

// Builder assembles an Engine. A Builder is single-use.
type Builder struct {
	config Config

	users    UserStore
	refresh  RefreshTokenStore
	resets   ResetTokenStore
	redis    redis.UniversalClient
	limiter  RateLimiter
	logger   *slog.Logger
	audit    AuditSink
	notifier ResetNotifier
	now      func() time.Time

	built bool
}

// New describes the new operation and its observable behavior.
//
// New starts from DefaultConfig; secrets must still be supplied through
// WithConfig before Build succeeds.
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration. cfg is copied.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

func (b *Builder) WithUserStore(s UserStore) *Builder {
	b.users = s
	return b
}

func (b *Builder) WithRefreshTokenStore(s RefreshTokenStore) *Builder {
	b.refresh = s
	return b
}

func (b *Builder) WithResetTokenStore(s ResetTokenStore) *Builder {
	b.resets = s
	return b
}

// WithRedis describes the withredis operation and its observable behavior.
//
// WithRedis backs the MFA verify throttle with Redis so every replica shares
// one budget per user. It is ignored when WithMFALimiter is also used.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithMFALimiter supplies the limiter behind the MFA verify throttle.
func (b *Builder) WithMFALimiter(l RateLimiter) *Builder {
	b.limiter = l
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithAuditSink describes the withauditsink operation and its observable behavior.
//
// WithAuditSink only takes effect when Config.Audit.Enabled is true.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.audit = sink
	return b
}

func (b *Builder) WithResetNotifier(n ResetNotifier) *Builder {
	b.notifier = n
	return b
}

// WithClock replaces time.Now for every time-dependent decision.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

// Build describes the build operation and its observable behavior.
//
// Build validates the configuration and dependencies and returns a ready
// Engine. Callers must Close the Engine to flush audit events.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if b.users == nil {
		return nil, errors.New("user store required")
	}
	if b.refresh == nil {
		return nil, errors.New("refresh token store required")
	}
	if b.resets == nil {
		return nil, errors.New("reset token store required")
	}

	now := b.now
	if now == nil {
		now = time.Now
	}
	logger := b.logger
	if logger == nil {
		logger = slog.Default()
	}

	// -------- CRYPTO --------
	passwords, err := password.New(cfg.Password.Cost)
	if err != nil {
		return nil, err
	}
	dummyHash, err := passwords.Hash(dummyPassword)
	if err != nil {
		return nil, err
	}

	secrets, err := vault.New(cfg.Vault.MasterKey, cfg.kdfParams())
	if err != nil {
		return nil, err
	}

	jm, err := jwt.NewManager(jwt.Config{
		AccessSecret:  cloneBytes(cfg.JWT.AccessSecret),
		RefreshSecret: cloneBytes(cfg.JWT.RefreshSecret),
		AccessTTL:     cfg.JWT.AccessTTL,
		RefreshTTL:    cfg.JWT.RefreshTTL,
		MFATTL:        cfg.JWT.MFATTL,
		Issuer:        cfg.JWT.Issuer,
		Audience:      cfg.JWT.Audience,
		Leeway:        cfg.JWT.Leeway,
		Now:           now,
	})
	if err != nil {
		return nil, err
	}

	// -------- SERVICES --------
	tokens, err := NewTokenIssuer(jm, b.refresh, b.users, now)
	if err != nil {
		return nil, err
	}
	resets, err := NewPasswordResetService(b.resets, b.users, passwords, cfg.PasswordReset.TTL, cfg.Password.MinLength, now)
	if err != nil {
		return nil, err
	}
	lockout, err := limiters.NewLockoutPolicy(limiters.LockoutConfig{
		Threshold: cfg.Lockout.Threshold,
		Duration:  cfg.Lockout.Duration,
	})
	if err != nil {
		return nil, err
	}

	// -------- MFA THROTTLE --------
	limiter := b.limiter
	if limiter == nil {
		limitCfg := rate.Config{Max: cfg.TOTP.VerifyMaxAttempts, Window: cfg.TOTP.VerifyWindow}
		if b.redis != nil {
			limitCfg.Prefix = cfg.RateLimit.RedisPrefix
			limiter, err = rate.NewRedisLimiter(b.redis, limitCfg)
		} else {
			limiter, err = rate.NewMemoryLimiter(limitCfg, rate.WithClock(now))
		}
		if err != nil {
			return nil, err
		}
	}
	mfaLimiter, err := limiters.NewMFALimiter(limiter)
	if err != nil {
		return nil, err
	}

	notifier := b.notifier
	if notifier == nil {
		notifier = logNotifier{logger: logger}
	}

	engine := &Engine{
		config:     cfg,
		users:      b.users,
		tokens:     tokens,
		resets:     resets,
		passwords:  passwords,
		vault:      secrets,
		lockout:    lockout,
		mfaLimiter: mfaLimiter,
		notifier:   notifier,
		audit:      newAuditDispatcher(cfg.Audit, b.audit),
		metrics:    NewMetrics(cfg.Metrics),
		logger:     logger,
		now:        now,
		dummyHash:  dummyHash,
	}

	b.built = true

	return engine, nil
}

// logNotifier records that a reset token was issued without the token.
type logNotifier struct {
	logger *slog.Logger
}

func (n logNotifier) NotifyPasswordReset(ctx context.Context, user UserView, _ string, expiresAt time.Time) error {
	n.logger.InfoContext(ctx, "password reset token issued",
		slog.String("user_id", user.ID),
		slog.Time("expires_at", expiresAt),
	)
	return nil
}

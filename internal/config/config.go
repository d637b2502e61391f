// Package config loads authd settings from defaults, an optional TOML file,
// an optional .env file and the process environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/workhub/authcore"
)

// Duration lets TOML files spell durations as "15m" or "720h".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Database DatabaseConfig `toml:"database"`
	Redis    RedisConfig    `toml:"redis"`
	Auth     AuthConfig     `toml:"auth"`
	Log      LogConfig      `toml:"log"`
}

type ServerConfig struct {
	Addr            string   `toml:"addr"`
	TrustProxy      bool     `toml:"trust_proxy"`
	AllowedOrigins  []string `toml:"allowed_origins"`
	ShutdownTimeout Duration `toml:"shutdown_timeout"`
	ProductionMode  bool     `toml:"production"`
}

// DatabaseConfig selects the store. An empty DSN runs on the in-memory store.
type DatabaseConfig struct {
	DSN     string `toml:"dsn"`
	Migrate bool   `toml:"migrate"`
}

// RedisConfig selects the limiter backend. An empty Addr keeps the limiters
// in process memory.
type RedisConfig struct {
	Addr     string `toml:"addr"`
	Password string `toml:"password"`
	DB       int    `toml:"db"`
}

type AuthConfig struct {
	AccessSecret     string   `toml:"access_secret"`
	RefreshSecret    string   `toml:"refresh_secret"`
	MFAMasterKey     string   `toml:"mfa_master_key"`
	Issuer           string   `toml:"issuer"`
	AccessTTL        Duration `toml:"access_ttl"`
	RefreshTTL       Duration `toml:"refresh_ttl"`
	MFATTL           Duration `toml:"mfa_ttl"`
	BcryptCost       int      `toml:"bcrypt_cost"`
	LockoutThreshold int      `toml:"lockout_threshold"`
	LockoutDuration  Duration `toml:"lockout_duration"`
	ResetTTL         Duration `toml:"reset_ttl"`
	LoginMax         int      `toml:"login_max"`
	LoginWindow      Duration `toml:"login_window"`
	GeneralMax       int      `toml:"general_max"`
	GeneralWindow    Duration `toml:"general_window"`
	Audit            bool     `toml:"audit"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// Default mirrors authcore.DefaultConfig for the auth section. Secrets are
// left empty.
func Default() *Config {
	core := authcore.DefaultConfig()
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: Duration{10 * time.Second},
		},
		Database: DatabaseConfig{Migrate: true},
		Auth: AuthConfig{
			Issuer:           core.JWT.Issuer,
			AccessTTL:        Duration{core.JWT.AccessTTL},
			RefreshTTL:       Duration{core.JWT.RefreshTTL},
			MFATTL:           Duration{core.JWT.MFATTL},
			BcryptCost:       core.Password.Cost,
			LockoutThreshold: core.Lockout.Threshold,
			LockoutDuration:  Duration{core.Lockout.Duration},
			ResetTTL:         Duration{core.PasswordReset.TTL},
			LoginMax:         core.RateLimit.LoginMax,
			LoginWindow:      Duration{core.RateLimit.LoginWindow},
			GeneralMax:       core.RateLimit.GeneralMax,
			GeneralWindow:    Duration{core.RateLimit.GeneralWindow},
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load builds the settings. path may be empty; envFile may be empty or
// missing.
func Load(path, envFile string) (*Config, error) {
	cfg := Default()
	if path != "" {
		if err := LoadTOML(cfg, path); err != nil {
			return nil, err
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load env file: %w", err)
		}
	}
	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func LoadTOML(cfg *Config, path string) error {
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("parse TOML config: %w", err)
	}
	return nil
}

// ApplyEnvOverrides reads AUTHCORE_* variables. DATABASE_URL is honored when
// AUTHCORE_DATABASE_URL is unset.
func (c *Config) ApplyEnvOverrides() error {
	setString(&c.Server.Addr, "AUTHCORE_ADDR")
	setString(&c.Database.DSN, "DATABASE_URL")
	setString(&c.Database.DSN, "AUTHCORE_DATABASE_URL")
	setString(&c.Redis.Addr, "AUTHCORE_REDIS_ADDR")
	setString(&c.Redis.Password, "AUTHCORE_REDIS_PASSWORD")
	setString(&c.Auth.AccessSecret, "AUTHCORE_JWT_ACCESS_SECRET")
	setString(&c.Auth.RefreshSecret, "AUTHCORE_JWT_REFRESH_SECRET")
	setString(&c.Auth.MFAMasterKey, "AUTHCORE_MFA_MASTER_KEY")
	setString(&c.Auth.Issuer, "AUTHCORE_ISSUER")
	setString(&c.Log.Level, "AUTHCORE_LOG_LEVEL")
	setString(&c.Log.Format, "AUTHCORE_LOG_FORMAT")

	if v, ok := lookup("AUTHCORE_ALLOWED_ORIGINS"); ok {
		c.Server.AllowedOrigins = splitList(v)
	}

	var errs []error
	errs = append(errs,
		setBool(&c.Server.TrustProxy, "AUTHCORE_TRUST_PROXY"),
		setBool(&c.Server.ProductionMode, "AUTHCORE_PRODUCTION"),
		setBool(&c.Database.Migrate, "AUTHCORE_MIGRATE"),
		setBool(&c.Auth.Audit, "AUTHCORE_AUDIT"),
		setInt(&c.Redis.DB, "AUTHCORE_REDIS_DB"),
		setInt(&c.Auth.BcryptCost, "AUTHCORE_BCRYPT_COST"),
		setInt(&c.Auth.LockoutThreshold, "AUTHCORE_LOCKOUT_THRESHOLD"),
		setInt(&c.Auth.LoginMax, "AUTHCORE_LOGIN_MAX"),
		setInt(&c.Auth.GeneralMax, "AUTHCORE_GENERAL_MAX"),
		setDuration(&c.Auth.AccessTTL, "AUTHCORE_ACCESS_TTL"),
		setDuration(&c.Auth.RefreshTTL, "AUTHCORE_REFRESH_TTL"),
		setDuration(&c.Auth.LockoutDuration, "AUTHCORE_LOCKOUT_DURATION"),
		setDuration(&c.Auth.LoginWindow, "AUTHCORE_LOGIN_WINDOW"),
		setDuration(&c.Auth.GeneralWindow, "AUTHCORE_GENERAL_WINDOW"),
	)
	return errors.Join(errs...)
}

// Core maps the auth section onto an authcore.Config. The result is
// validated by the engine builder.
func (c *Config) Core() authcore.Config {
	core := authcore.DefaultConfig()
	core.JWT.AccessSecret = []byte(c.Auth.AccessSecret)
	core.JWT.RefreshSecret = []byte(c.Auth.RefreshSecret)
	core.JWT.AccessTTL = c.Auth.AccessTTL.Duration
	core.JWT.RefreshTTL = c.Auth.RefreshTTL.Duration
	core.JWT.MFATTL = c.Auth.MFATTL.Duration
	core.JWT.Issuer = c.Auth.Issuer
	core.TOTP.Issuer = c.Auth.Issuer
	core.Vault.MasterKey = []byte(c.Auth.MFAMasterKey)
	core.Password.Cost = c.Auth.BcryptCost
	core.Lockout.Threshold = c.Auth.LockoutThreshold
	core.Lockout.Duration = c.Auth.LockoutDuration.Duration
	core.PasswordReset.TTL = c.Auth.ResetTTL.Duration
	core.RateLimit.LoginMax = c.Auth.LoginMax
	core.RateLimit.LoginWindow = c.Auth.LoginWindow.Duration
	core.RateLimit.GeneralMax = c.Auth.GeneralMax
	core.RateLimit.GeneralWindow = c.Auth.GeneralWindow.Duration
	core.Audit.Enabled = c.Auth.Audit
	core.Security.ProductionMode = c.Server.ProductionMode
	return core
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	v = strings.TrimSpace(v)
	return v, v != ""
}

func setString(dst *string, key string) {
	if v, ok := lookup(key); ok {
		*dst = v
	}
}

func setBool(dst *bool, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func setInt(dst *int, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *Duration, key string) error {
	v, ok := lookup(key)
	if !ok {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	dst.Duration = d
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

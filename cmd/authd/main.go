// Command authd serves the authcore HTTP API.
//
//	authd -config /etc/authd/authd.toml -env .env
//
// Without a database DSN it runs on the in-memory store; without a Redis
// address the rate limiters stay in process memory.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/workhub/authcore"
	"github.com/workhub/authcore/httpapi"
	"github.com/workhub/authcore/internal/config"
	"github.com/workhub/authcore/metrics/export/prometheus"
	"github.com/workhub/authcore/store/memory"
	"github.com/workhub/authcore/store/postgres"
)

type stores interface {
	authcore.UserStore
	authcore.RefreshTokenStore
	authcore.ResetTokenStore
}

func main() {
	var (
		configPath = flag.String("config", os.Getenv("AUTHCORE_CONFIG"), "path to a TOML config file")
		envFile    = flag.String("env", ".env", "path to an optional .env file")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, *configPath, *envFile); err != nil {
		fmt.Fprintf(os.Stderr, "authd: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, configPath, envFile string) error {
	cfg, err := config.Load(configPath, envFile)
	if err != nil {
		return err
	}

	logger := newLogger(cfg.Log)
	slog.SetDefault(logger)

	// -------- STORE --------
	var store stores
	if cfg.Database.DSN == "" {
		logger.Warn("no database configured, using in-memory store")
		store = memory.New()
	} else {
		db, err := postgres.Open(ctx, cfg.Database.DSN)
		if err != nil {
			return err
		}
		defer db.Close()
		if cfg.Database.Migrate {
			if err := postgres.Migrate(ctx, db); err != nil {
				return err
			}
		}
		store = postgres.New(db)
	}

	// -------- LIMITERS --------
	core := cfg.Core()
	var rdb redis.UniversalClient
	if cfg.Redis.Addr != "" {
		rdb = redis.NewUniversalClient(&redis.UniversalOptions{
			Addrs:    []string{cfg.Redis.Addr},
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis ping: %w", err)
		}
	}
	loginLimiter, err := newLimiter(rdb, core.RateLimit.LoginMax, core.RateLimit.LoginWindow, core.RateLimit.RedisPrefix+"login:")
	if err != nil {
		return err
	}
	generalLimiter, err := newLimiter(rdb, core.RateLimit.GeneralMax, core.RateLimit.GeneralWindow, core.RateLimit.RedisPrefix+"general:")
	if err != nil {
		return err
	}

	// -------- ENGINE --------
	builder := authcore.New().
		WithConfig(core).
		WithUserStore(store).
		WithRefreshTokenStore(store).
		WithResetTokenStore(store).
		WithLogger(logger)
	if rdb != nil {
		builder = builder.WithRedis(rdb)
	}
	if core.Audit.Enabled {
		builder = builder.WithAuditSink(authcore.NewJSONWriterSink(os.Stderr))
	}
	engine, err := builder.Build()
	if err != nil {
		return fmt.Errorf("build engine: %w", err)
	}
	defer engine.Close()

	exporter, err := prometheus.NewExporter(engine)
	if err != nil {
		return err
	}

	// -------- HTTP --------
	if core.Security.ProductionMode {
		gin.SetMode(gin.ReleaseMode)
	}
	router := httpapi.NewRouter(engine, httpapi.Options{
		Logger:         logger,
		LoginLimiter:   loginLimiter,
		GeneralLimiter: generalLimiter,
		TrustProxy:     cfg.Server.TrustProxy,
		AllowedOrigins: cfg.Server.AllowedOrigins,
		MetricsHandler: exporter.Handler(),
	})

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func newLimiter(rdb redis.UniversalClient, limit int, window time.Duration, prefix string) (authcore.RateLimiter, error) {
	if rdb != nil {
		return authcore.NewRedisRateLimiter(rdb, limit, window, prefix)
	}
	return authcore.NewMemoryRateLimiter(limit, window, prefix)
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

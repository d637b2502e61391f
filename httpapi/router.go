package httpapi

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/workhub/authcore"
	"github.com/workhub/authcore/middleware"
)

// Options configures NewRouter. Nil limiters disable the matching budget.
type Options struct {
	Logger         *slog.Logger
	LoginLimiter   authcore.RateLimiter
	GeneralLimiter authcore.RateLimiter
	// TrustProxy honours X-Forwarded-For when resolving client addresses.
	TrustProxy     bool
	AllowedOrigins []string
	// MetricsHandler is mounted at GET /metrics when set.
	MetricsHandler http.Handler
}

// NewRouter returns a gin engine serving the /auth routes plus /healthz.
func NewRouter(engine *authcore.Engine, opts Options) *gin.Engine {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := gin.New()
	r.Use(gin.Recovery())
	if len(opts.AllowedOrigins) > 0 {
		r.Use(corsMiddleware(opts.AllowedOrigins))
	}
	r.Use(middleware.ClientIP(opts.TrustProxy))
	r.Use(middleware.RequestLogger(logger))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if opts.MetricsHandler != nil {
		r.GET("/metrics", gin.WrapH(opts.MetricsHandler))
	}

	h := &handlers{engine: engine, logger: logger}
	onReject := func(*gin.Context) { engine.RecordRateLimitHit() }

	auth := r.Group("/auth")
	auth.Use(middleware.RateLimit(opts.GeneralLimiter, middleware.ByClientIP("general"), onReject))
	{
		auth.POST("/login", middleware.RateLimit(opts.LoginLimiter, middleware.ByClientIP("login"), onReject), h.login)
		auth.POST("/mfa/setup", h.setupMFA)
		auth.POST("/mfa/verify", h.verifyMFA)
		auth.POST("/refresh", h.refresh)
		auth.POST("/change-password", h.changePassword)
		auth.POST("/forgot-password", h.forgotPassword)
		auth.POST("/reset-password", h.resetPassword)

		guarded := auth.Group("")
		guarded.Use(middleware.RequireAccess(engine))
		guarded.POST("/logout", h.logout)
		guarded.GET("/me", h.me)
	}

	return r
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			return allowed[origin]
		},
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	})
}

package middleware

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/workhub/authcore"
)

// KeyFunc derives the limiter key for a request.
type KeyFunc func(c *gin.Context) string

// ByClientIP keys requests by scope and caller address.
func ByClientIP(scope string) KeyFunc {
	return func(c *gin.Context) string {
		return scope + ":" + ClientIPFrom(c)
	}
}

// RateLimit spends one unit of limiter budget per request. When the budget
// is exhausted it answers 429 with Retry-After and calls onReject. A limiter
// backend failure is attached to the gin context and the request proceeds.
func RateLimit(limiter authcore.RateLimiter, key KeyFunc, onReject func(*gin.Context)) gin.HandlerFunc {
	return func(c *gin.Context) {
		if limiter == nil {
			c.Next()
			return
		}

		d, err := limiter.Allow(c.Request.Context(), key(c))
		if err != nil {
			_ = c.Error(err)
			c.Next()
			return
		}
		if !d.Allowed {
			if onReject != nil {
				onReject(c)
			}
			secs := d.RetryAfterSeconds()
			c.Header("Retry-After", strconv.Itoa(secs))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":      "rate limited",
				"retryAfter": secs,
			})
			return
		}

		c.Next()
	}
}

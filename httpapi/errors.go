package httpapi

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/workhub/authcore"
)

// writeError maps err onto a status code and a body that leaks nothing
// beyond the error kind.
func (h *handlers) writeError(c *gin.Context, err error) {
	_ = c.Error(err)

	switch authcore.KindOf(err) {
	case authcore.KindUnauthorized:
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
	case authcore.KindValidation:
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":  "invalid request",
			"detail": err.Error(),
		})
	case authcore.KindConflict:
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{
			"error":  "conflict",
			"detail": err.Error(),
		})
	case authcore.KindRateLimited:
		secs := 1
		var rle *authcore.RateLimitedError
		if errors.As(err, &rle) {
			secs = rle.RetryAfterSeconds()
		}
		c.Header("Retry-After", strconv.Itoa(secs))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
			"error":      "rate limited",
			"retryAfter": secs,
		})
	default:
		h.logger.ErrorContext(c.Request.Context(), "request failed",
			slog.String("route", c.FullPath()),
			slog.Any("error", err),
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

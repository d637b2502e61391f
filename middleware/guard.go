package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/workhub/authcore"
)

const principalKey = "authcore.principal"

// AccessValidator is satisfied by *authcore.Engine.
type AccessValidator interface {
	ValidateAccess(ctx context.Context, token string) (authcore.Principal, error)
}

// PrincipalFrom returns the principal stored by RequireAccess.
func PrincipalFrom(c *gin.Context) (authcore.Principal, bool) {
	v, ok := c.Get(principalKey)
	if !ok {
		return authcore.Principal{}, false
	}
	p, ok := v.(authcore.Principal)
	return p, ok
}

// RequireAccess rejects requests without a valid access token. Every
// failure gets the same 401 body.
func RequireAccess(validator AccessValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if validator == nil {
			abortUnauthorized(c)
			return
		}

		token, ok := BearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortUnauthorized(c)
			return
		}

		principal, err := validator.ValidateAccess(c.Request.Context(), token)
		if err != nil {
			abortUnauthorized(c)
			return
		}

		c.Set(principalKey, principal)
		c.Next()
	}
}

// BearerToken extracts the token from an Authorization header value.
func BearerToken(value string) (string, bool) {
	const bearer = "Bearer "
	if len(value) < len(bearer) || !strings.EqualFold(value[:len(bearer)], bearer) {
		return "", false
	}

	token := strings.TrimSpace(value[len(bearer):])
	if token == "" {
		return "", false
	}

	return token, true
}

func abortUnauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
}

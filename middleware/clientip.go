package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/workhub/authcore"
)

const clientIPKey = "authcore.client_ip"

// ClientIP resolves the caller address once per request. X-Forwarded-For is
// only honoured when trustProxy is set, since any client can send it.
func ClientIP(trustProxy bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		ip := remoteIP(c.Request.RemoteAddr)
		if trustProxy {
			if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
				first, _, _ := strings.Cut(xff, ",")
				if first = strings.TrimSpace(first); first != "" {
					ip = first
				}
			}
		}

		c.Set(clientIPKey, ip)
		ctx := authcore.WithClientIP(c.Request.Context(), ip)
		ctx = authcore.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// ClientIPFrom returns the address stored by ClientIP, falling back to the
// connection's remote address.
func ClientIPFrom(c *gin.Context) string {
	if v, ok := c.Get(clientIPKey); ok {
		if ip, ok := v.(string); ok {
			return ip
		}
	}
	return remoteIP(c.Request.RemoteAddr)
}

func remoteIP(addr string) string {
	host, _, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return host
}

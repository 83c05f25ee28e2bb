package middleware

import (
	"net"
	"strings"

	"github.com/gin-gonic/gin"
)

// RealIP sets the best-effort client identifier into Gin context
// (key: "real_ip"). Priority:
// 1) X-Forwarded-For (left-most)
// 2) direct connection address
// 3) the literal "unknown"
// The value is used only as a rate-limit key, never for authorization.
func RealIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
			parts := strings.Split(xff, ",")
			if len(parts) > 0 {
				first := strings.TrimSpace(parts[0])
				if ip := net.ParseIP(first); ip != nil {
					c.Set("real_ip", ip.String())
					c.Next()
					return
				}
			}
		}
		if ip := c.ClientIP(); ip != "" {
			c.Set("real_ip", ip)
		} else {
			c.Set("real_ip", "unknown")
		}
		c.Next()
	}
}

// ClientID returns the identifier stored by RealIP, falling back to the
// connection address and finally "unknown".
func ClientID(c *gin.Context) string {
	if ip := c.GetString("real_ip"); ip != "" {
		return ip
	}
	if ip := c.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}

package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/florelle/auth-service/internal/session"
	"github.com/florelle/auth-service/pkg/helpers"
	"github.com/florelle/auth-service/pkg/response"
)

const (
	CtxUserIDKey    = "userID"
	CtxUserEmailKey = "userEmail"
	CtxUserNameKey  = "userName"
	CtxSessionKey   = "sessionArtifact"
)

// Auth validates the session cookie and injects the claims into the Gin
// context. A missing, tampered, or expired session gets the same generic
// response.
func Auth(issuer *session.Issuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		artifact, err := c.Cookie(helpers.SessionCookieName)
		if err != nil || artifact == "" {
			response.Error[any](c, http.StatusUnauthorized, "invalid session", response.CodeInvalidSession, nil)
			c.Abort()
			return
		}
		claims, err := issuer.Validate(artifact)
		if err != nil {
			response.Error[any](c, http.StatusUnauthorized, "invalid session", response.CodeInvalidSession, nil)
			c.Abort()
			return
		}
		c.Set(CtxUserIDKey, claims.Subject)
		c.Set(CtxUserEmailKey, claims.Email)
		c.Set(CtxUserNameKey, claims.Name)
		c.Set(CtxSessionKey, artifact)
		c.Next()
	}
}

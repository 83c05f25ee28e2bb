package modules

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/florelle/auth-service/config"
	"github.com/florelle/auth-service/internal/application"
	handlers "github.com/florelle/auth-service/internal/interface/http"
)

// AuthModule wires the public credential flows. Rate limiting happens inside
// the flows themselves (keyed by IP or email per flow), not in middleware.
type AuthModule struct {
	Handler *handlers.AuthHandler
}

func NewAuthModule(svc *application.AuthService, logger *logrus.Logger, cfg *config.Config) *AuthModule {
	return &AuthModule{Handler: handlers.NewAuthHandler(svc, logger, cfg.CookieDomain, cfg.CookieSecure)}
}

func (m *AuthModule) Register(rg *gin.RouterGroup) {
	rg.POST("/register", m.Handler.Register)
	rg.POST("/login", m.Handler.Login)
	rg.POST("/logout", m.Handler.Logout)

	rg.POST("/auth/verify/confirm", m.Handler.VerifyConfirm)
	rg.POST("/auth/verify/resend", m.Handler.VerifyResend)
	rg.POST("/auth/reset/init", m.Handler.ResetInit)
	rg.POST("/auth/reset/confirm", m.Handler.ResetConfirm)
}

package modules

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/florelle/auth-service/config"
	"github.com/florelle/auth-service/internal/application"
	handlers "github.com/florelle/auth-service/internal/interface/http"
	"github.com/florelle/auth-service/internal/interface/middleware"
	"github.com/florelle/auth-service/internal/session"
)

// UserModule wires the session-protected profile routes.
type UserModule struct {
	Handler *handlers.UserHandler
	Issuer  *session.Issuer
}

func NewUserModule(svc *application.AuthService, issuer *session.Issuer, logger *logrus.Logger, cfg *config.Config) *UserModule {
	return &UserModule{
		Handler: handlers.NewUserHandler(svc, issuer, logger, cfg.CookieDomain, cfg.CookieSecure),
		Issuer:  issuer,
	}
}

func (m *UserModule) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/")
	auth.Use(middleware.Auth(m.Issuer))
	{
		auth.GET("/profile", m.Handler.GetProfile)
		auth.PUT("/profile", m.Handler.UpdateProfile)
	}
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/florelle/auth-service/internal/application"
	"github.com/florelle/auth-service/internal/interface/middleware"
	"github.com/florelle/auth-service/internal/session"
	"github.com/florelle/auth-service/pkg/helpers"
	"github.com/florelle/auth-service/pkg/response"
	"github.com/florelle/auth-service/pkg/validation"
)

type UserHandler struct {
	Svc     *application.AuthService
	Issuer  *session.Issuer
	Logger  *logrus.Logger
	Cookies *helpers.CookieManager
}

func NewUserHandler(svc *application.AuthService, issuer *session.Issuer, logger *logrus.Logger, cookieDomain string, cookieSecure bool) *UserHandler {
	return &UserHandler{Svc: svc, Issuer: issuer, Logger: logger, Cookies: helpers.NewCookie(cookieDomain, cookieSecure)}
}

type updateProfileRequest struct {
	Name        string `json:"name"`
	PhoneNumber string `json:"phone_number"`
	CompanyName string `json:"company_name"`
}

// GetProfile GET /api/profile
func (h *UserHandler) GetProfile(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserIDKey)
	u, err := h.Svc.GetProfile(c.Request.Context(), uid)
	if err != nil {
		response.Error[any](c, http.StatusNotFound, "user not found", response.CodeUserNotFound, nil)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"id":           u.ID,
		"email":        u.Email,
		"name":         u.Name,
		"phone_number": u.PhoneNumber,
		"company_name": u.CompanyName,
		"verified":     u.Verified(),
		"created_at":   u.CreatedAt,
		"updated_at":   u.UpdatedAt,
	}, "profile")
}

// UpdateProfile PUT /api/profile
// A display-name change re-signs the session claims; the original expiry is
// kept, so this never extends the session.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	uid := c.GetString(middleware.CtxUserIDKey)
	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", response.CodeValidation, validation.ToDetails(err))
		return
	}

	u, err := h.Svc.UpdateProfile(c.Request.Context(), uid, application.UpdateProfileInput{
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		CompanyName: req.CompanyName,
	})
	if err != nil {
		response.Error[any](c, http.StatusBadRequest, "failed to update profile", response.CodeValidation, nil)
		return
	}

	if req.Name != "" {
		artifact := c.GetString(middleware.CtxSessionKey)
		refreshed, exp, rErr := h.Issuer.RefreshClaims(artifact, session.ProfileUpdate{Name: &u.Name})
		if rErr != nil {
			h.Logger.WithError(rErr).WithField("user_id", uid).Warn("session claim refresh failed")
		} else {
			h.Cookies.SetSession(c, refreshed, exp)
		}
	}

	response.Success(c, http.StatusOK, gin.H{
		"id":           u.ID,
		"email":        u.Email,
		"name":         u.Name,
		"phone_number": u.PhoneNumber,
		"company_name": u.CompanyName,
		"verified":     u.Verified(),
		"updated_at":   u.UpdatedAt,
	}, "profile updated")
}

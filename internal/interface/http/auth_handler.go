package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/florelle/auth-service/internal/application"
	"github.com/florelle/auth-service/internal/interface/middleware"
	"github.com/florelle/auth-service/internal/token"
	"github.com/florelle/auth-service/pkg/helpers"
	"github.com/florelle/auth-service/pkg/response"
	"github.com/florelle/auth-service/pkg/validation"
)

type AuthHandler struct {
	Svc     *application.AuthService
	Logger  *logrus.Logger
	Cookies *helpers.CookieManager
}

func NewAuthHandler(svc *application.AuthService, logger *logrus.Logger, cookieDomain string, cookieSecure bool) *AuthHandler {
	return &AuthHandler{Svc: svc, Logger: logger, Cookies: helpers.NewCookie(cookieDomain, cookieSecure)}
}

type registerRequest struct {
	Email       string `json:"email" binding:"required,email"`
	Password    string `json:"password" binding:"required,pwd"`
	Name        string `json:"name" binding:"required"`
	PhoneNumber string `json:"phone_number" binding:"required"`
	CompanyName string `json:"company_name"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type emailRequest struct {
	Email string `json:"email" binding:"required,email"`
}

type tokenRequest struct {
	Token string `json:"token" binding:"required"`
}

type resetConfirmRequest struct {
	Token       string `json:"token" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,pwd"`
}

// Register POST /api/register
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", response.CodeValidation, validation.ToDetails(err))
		return
	}

	u, err := h.Svc.Register(c.Request.Context(), application.RegisterInput{
		Email:       req.Email,
		Password:    req.Password,
		Name:        req.Name,
		PhoneNumber: req.PhoneNumber,
		CompanyName: req.CompanyName,
	}, middleware.ClientID(c))
	if err != nil {
		h.writeFlowError(c, err)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"id":       u.ID,
		"email":    u.Email,
		"name":     u.Name,
		"verified": u.Verified(),
	}, "account created, check your inbox to verify your email")
}

// Login POST /api/login
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", response.CodeValidation, validation.ToDetails(err))
		return
	}

	u, artifact, exp, err := h.Svc.Login(c.Request.Context(), req.Email, req.Password, middleware.ClientID(c))
	if err != nil {
		h.writeFlowError(c, err)
		return
	}

	h.Cookies.SetSession(c, artifact, exp)
	response.Success(c, http.StatusOK, gin.H{
		"id":    u.ID,
		"email": u.Email,
		"name":  u.Name,
	}, "login successful")
}

// Logout POST /api/logout
func (h *AuthHandler) Logout(c *gin.Context) {
	h.Cookies.Clear(c)
	response.Success(c, http.StatusOK, gin.H{"logged_out": true}, "logged out")
}

// ResetInit POST /api/auth/reset/init {email}
// The response is identical whether or not the email is registered.
func (h *AuthHandler) ResetInit(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", response.CodeValidation, validation.ToDetails(err))
		return
	}

	if err := h.Svc.RequestPasswordReset(c.Request.Context(), req.Email); err != nil {
		h.writeFlowError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sent": true}, "if an account exists, an email was sent")
}

// ResetConfirm POST /api/auth/reset/confirm {token, new_password}
func (h *AuthHandler) ResetConfirm(c *gin.Context) {
	var req resetConfirmRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", response.CodeValidation, validation.ToDetails(err))
		return
	}

	if err := h.Svc.ConfirmPasswordReset(c.Request.Context(), req.Token, req.NewPassword); err != nil {
		h.writeFlowError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"reset": true}, "password updated")
}

// VerifyConfirm POST /api/auth/verify/confirm {token}
func (h *AuthHandler) VerifyConfirm(c *gin.Context) {
	var req tokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", response.CodeValidation, validation.ToDetails(err))
		return
	}

	u, err := h.Svc.VerifyEmail(c.Request.Context(), req.Token)
	if err != nil {
		h.writeFlowError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{
		"verified": true,
		"email":    u.Email,
	}, "email verified")
}

// VerifyResend POST /api/auth/verify/resend {email}
func (h *AuthHandler) VerifyResend(c *gin.Context) {
	var req emailRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error[any](c, http.StatusBadRequest, "invalid payload", response.CodeValidation, validation.ToDetails(err))
		return
	}

	if err := h.Svc.ResendVerification(c.Request.Context(), req.Email); err != nil {
		h.writeFlowError(c, err)
		return
	}
	response.Success(c, http.StatusOK, gin.H{"sent": true}, "if an account exists, an email was sent")
}

// writeFlowError maps application errors onto the HTTP response contract.
func (h *AuthHandler) writeFlowError(c *gin.Context, err error) {
	var rl *application.RateLimitedError
	switch {
	case errors.As(err, &rl):
		response.RateLimited(c, rl.RetryAfter)
	case errors.Is(err, application.ErrInvalidCredentials):
		response.Error[any](c, http.StatusUnauthorized, "invalid credentials", response.CodeInvalidCredentials, nil)
	case errors.Is(err, application.ErrEmailTaken):
		response.Error[any](c, http.StatusConflict, "email already registered", response.CodeEmailTaken, nil)
	case errors.Is(err, application.ErrAlreadyVerified):
		response.Error[any](c, http.StatusConflict, "email already verified", response.CodeAlreadyVerified, nil)
	case errors.Is(err, token.ErrExpired):
		response.Error[any](c, http.StatusBadRequest, "link expired, request a new one", response.CodeTokenExpired, nil)
	case errors.Is(err, token.ErrNotFound):
		response.Error[any](c, http.StatusBadRequest, "invalid link, request a new one", response.CodeTokenNotFound, nil)
	case errors.Is(err, application.ErrUserNotFound):
		response.Error[any](c, http.StatusNotFound, "user not found", response.CodeUserNotFound, nil)
	default:
		response.Error[any](c, http.StatusInternalServerError, "something went wrong", response.CodeDependencyUnavailable, nil)
	}
}

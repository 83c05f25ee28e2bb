package response

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// Error codes surfaced in the flow response contract.
const (
	CodeValidation            = "validation_error"
	CodeRateLimited           = "rate_limited"
	CodeEmailTaken            = "email_taken"
	CodeInvalidCredentials    = "invalid_credentials"
	CodeTokenNotFound         = "token_not_found"
	CodeTokenExpired          = "token_expired"
	CodeAlreadyVerified       = "already_verified"
	CodeUserNotFound          = "user_not_found"
	CodeInvalidSession        = "invalid_session"
	CodeDependencyUnavailable = "dependency_unavailable"
)

type APIResponse[T any] struct {
	Status            int         `json:"status"`
	Timestamp         time.Time   `json:"timestamp"`
	RequestID         string      `json:"request_id"`
	Success           bool        `json:"success"`
	Message           string      `json:"message"`
	Data              T           `json:"data,omitempty"`
	Error             interface{} `json:"error,omitempty"`
	ErrorCode         string      `json:"error_code,omitempty"`
	RetryAfterSeconds int         `json:"retry_after_seconds,omitempty"`
}

func Success[T any](ctx *gin.Context, status int, data T, message string) APIResponse[T] {
	if status == 0 {
		status = http.StatusOK
	}
	r := APIResponse[T]{
		Status:    status,
		Timestamp: time.Now(),
		RequestID: ctx.GetString("request_id"),
		Success:   true,
		Message:   message,
		Data:      data,
	}
	ctx.JSON(status, r)
	return r
}

func Error[T any](ctx *gin.Context, status int, message, code string, details interface{}) APIResponse[T] {
	if status == 0 {
		status = http.StatusBadRequest
	}
	r := APIResponse[T]{
		Status:    status,
		Timestamp: time.Now(),
		RequestID: ctx.GetString("request_id"),
		Success:   false,
		Message:   message,
		Error:     details,
		ErrorCode: code,
	}
	ctx.JSON(status, r)
	return r
}

// RateLimited writes a 429 with both the Retry-After header and the
// retry_after_seconds body field.
func RateLimited(ctx *gin.Context, retryAfter time.Duration) APIResponse[any] {
	sec := int(retryAfter.Seconds())
	if sec < 1 {
		sec = 1
	}
	ctx.Header("Retry-After", strconv.Itoa(sec))
	r := APIResponse[any]{
		Status:            http.StatusTooManyRequests,
		Timestamp:         time.Now(),
		RequestID:         ctx.GetString("request_id"),
		Success:           false,
		Message:           "too many attempts, try again later",
		ErrorCode:         CodeRateLimited,
		RetryAfterSeconds: sec,
	}
	ctx.JSON(r.Status, r)
	return r
}

package application

import (
	"errors"
	"fmt"
	"time"
)

// Flow errors returned to callers. Authentication-adjacent failures are
// deliberately flattened: wrong email and wrong password both surface as
// ErrInvalidCredentials so responses cannot be used to enumerate accounts.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrEmailTaken         = errors.New("email already registered")
	ErrAlreadyVerified    = errors.New("email already verified")
	// ErrUserNotFound is only reachable after a valid token was consumed
	// for an account that has since vanished.
	ErrUserNotFound = errors.New("user not found")
	// ErrDependencyUnavailable replaces unexpected storage or transport
	// errors; the real cause is logged internally.
	ErrDependencyUnavailable = errors.New("service unavailable")
)

// RateLimitedError tells the caller how long to wait before retrying.
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limited, retry in %s", e.RetryAfter)
}

package ratelimit

import (
	"context"
	"time"

	"github.com/florelle/auth-service/config"
)

// Result is the outcome of a single attempt against a limiter.
// When Allowed is false, ResetAt is when the caller may try again: the end
// of the current window, or the end of the block once the ceiling was crossed.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// Limiter counts attempts per key inside a fixed window and escalates to a
// longer block once the window's attempt ceiling is crossed. Both backends
// implement the same policy; the redis one is safe across server instances.
//
// Check counts the attempt it is called for: the check and the increment are
// a single atomic step per key, so two concurrent requests cannot both take
// the last slot.
type Limiter interface {
	Check(ctx context.Context, key string) (Result, error)
	// Reset clears the counter for key. The orchestrator calls it on a
	// definitively successful operation so a legitimate user is not
	// penalized for earlier failed attempts.
	Reset(ctx context.Context, key string) error
}

// Key builds a limiter key from a flow name and a client identifier,
// e.g. "login:203.0.113.5" or "password-reset:user@example.com".
func Key(flow, id string) string {
	return flow + ":" + id
}

// RetryAfter converts a denied result into a whole-second wait, never below 1s.
func RetryAfter(res Result, now time.Time) time.Duration {
	d := res.ResetAt.Sub(now)
	if d < time.Second {
		return time.Second
	}
	return d.Round(time.Second)
}

// Policy is re-exported from config so limiter backends do not pull the whole
// application configuration.
type Policy = config.RateLimitPolicy

package helpers

import "time"

// Clock is the single source of "now" for everything time-sensitive
// (token expiry, rate-limit windows, session lifetimes). Injecting it lets
// tests simulate expiry deterministically.
type Clock interface {
	Now() time.Time
}

// SystemClock reads the wall clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

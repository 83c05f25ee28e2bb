package entity

import "time"

// TokenPurpose distinguishes the two kinds of one-time links we mail out.
type TokenPurpose string

const (
	PurposeVerifyEmail   TokenPurpose = "verify-email"
	PurposeResetPassword TokenPurpose = "reset-password"
)

// AuthToken is a single-use, expiring token bound to an email address.
// It is keyed by email rather than user id so a verification token can be
// issued in the same transaction that creates the user, and a reset token
// can be issued without revealing whether the account exists.
type AuthToken struct {
	Identifier string // lower-cased email address
	Token      string // high-entropy random value, the lookup key
	Purpose    TokenPurpose
	ExpiresAt  time.Time
	CreatedAt  time.Time
}

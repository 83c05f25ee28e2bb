package entity

import (
	"time"
)

// User is the aggregate root for the credential domain.
// Password holds a bcrypt hash, never the plaintext.
// Email is stored lower-cased; the database enforces case-insensitive uniqueness.
type User struct {
	ID              string
	Email           string
	Password        string
	Name            string
	PhoneNumber     string
	CompanyName     string
	EmailVerifiedAt *time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Verified reports whether the user's email address has been confirmed.
func (u *User) Verified() bool {
	return u.EmailVerifiedAt != nil
}

package repository

import (
	"context"
	"errors"

	"github.com/florelle/auth-service/internal/domain/entity"
)

// Storage-layer sentinel errors. Implementations must return these typed
// values rather than leaking driver errors or matching on message text.
var (
	// ErrDuplicateEmail is returned by Create when the case-insensitive
	// unique constraint on email fires, including the race where two
	// registrations pass the pre-check concurrently.
	ErrDuplicateEmail = errors.New("email already registered")

	// ErrNotFound is returned when no row matches.
	ErrNotFound = errors.New("not found")
)

// UserRepository defines the interface for user-related database operations.
// Email arguments are expected lower-cased by callers; implementations must
// still compare case-insensitively so storage is the source of truth.
type UserRepository interface {
	Create(ctx context.Context, u *entity.User) error
	GetByID(ctx context.Context, id string) (*entity.User, error)
	GetByEmail(ctx context.Context, email string) (*entity.User, error)
	Update(ctx context.Context, u *entity.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	SetEmailVerified(ctx context.Context, id string) error
}

package repository

import (
	"context"

	"github.com/florelle/auth-service/internal/domain/entity"
)

// TokenRepository stores one-time auth tokens. Token values are globally
// unique; lookups are by token value only.
type TokenRepository interface {
	Create(ctx context.Context, t *entity.AuthToken) error
	GetByToken(ctx context.Context, token string) (*entity.AuthToken, error)
	Delete(ctx context.Context, token string) error
	// DeleteByIdentifier removes every outstanding token for the given
	// identifier and purpose, so issuing a new link supersedes old ones.
	DeleteByIdentifier(ctx context.Context, identifier string, purpose entity.TokenPurpose) error
}

package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/florelle/auth-service/internal/domain/entity"
	"github.com/florelle/auth-service/internal/domain/repository"
)

type TokenRepository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

func NewTokenRepository(pool *pgxpool.Pool, timeout time.Duration) *TokenRepository {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &TokenRepository{pool: pool, timeout: timeout}
}

func (r *TokenRepository) Create(ctx context.Context, t *entity.AuthToken) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	row := r.pool.QueryRow(ctx, `
		INSERT INTO auth_tokens (identifier, token, purpose, expires_at)
		VALUES ($1, $2, $3, $4)
		RETURNING created_at
	`, t.Identifier, t.Token, string(t.Purpose), t.ExpiresAt)
	return row.Scan(&t.CreatedAt)
}

func (r *TokenRepository) GetByToken(ctx context.Context, token string) (*entity.AuthToken, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	t := &entity.AuthToken{}
	var purpose string
	row := r.pool.QueryRow(ctx, `
		SELECT identifier, token, purpose, expires_at, created_at
		FROM auth_tokens
		WHERE token = $1
	`, token)
	if err := row.Scan(&t.Identifier, &t.Token, &purpose, &t.ExpiresAt, &t.CreatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, err
	}
	t.Purpose = entity.TokenPurpose(purpose)
	return t, nil
}

func (r *TokenRepository) Delete(ctx context.Context, token string) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `DELETE FROM auth_tokens WHERE token = $1`, token)
	return err
}

func (r *TokenRepository) DeleteByIdentifier(ctx context.Context, identifier string, purpose entity.TokenPurpose) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	_, err := r.pool.Exec(ctx, `
		DELETE FROM auth_tokens WHERE lower(identifier) = lower($1) AND purpose = $2
	`, identifier, string(purpose))
	return err
}

var _ repository.TokenRepository = (*TokenRepository)(nil)

// Package token issues and consumes the one-time, expiring tokens behind
// email verification and password reset links.
package token

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/florelle/auth-service/internal/domain/entity"
	"github.com/florelle/auth-service/internal/domain/repository"
	"github.com/florelle/auth-service/pkg/helpers"
)

var (
	ErrNotFound = errors.New("token not found")
	ErrExpired  = errors.New("token expired")
)

// tokenBytes yields 256 bits of randomness, hex-encoded to 64 characters.
const tokenBytes = 32

// Consumed identifies who a consumed token belonged to and why it was issued.
type Consumed struct {
	Identifier string
	Purpose    entity.TokenPurpose
}

type Manager struct {
	repo  repository.TokenRepository
	clock helpers.Clock
}

func NewManager(repo repository.TokenRepository, clock helpers.Clock) *Manager {
	if clock == nil {
		clock = helpers.SystemClock{}
	}
	return &Manager{repo: repo, clock: clock}
}

// Issue creates a fresh token for the identifier, invalidating every prior
// token for the same identifier and purpose first. A user who requests two
// reset emails in a row can only use the most recent link.
func (m *Manager) Issue(ctx context.Context, identifier string, purpose entity.TokenPurpose, ttl time.Duration) (string, error) {
	identifier = strings.ToLower(strings.TrimSpace(identifier))

	if err := m.repo.DeleteByIdentifier(ctx, identifier, purpose); err != nil {
		return "", err
	}

	value, err := generate()
	if err != nil {
		return "", err
	}
	t := &entity.AuthToken{
		Identifier: identifier,
		Token:      value,
		Purpose:    purpose,
		ExpiresAt:  m.clock.Now().Add(ttl),
	}
	if err := m.repo.Create(ctx, t); err != nil {
		return "", err
	}
	return value, nil
}

// Consume looks up and deletes the token in one logical step. Tokens are
// strictly single-use: a second Consume of the same value reports ErrNotFound.
// An expired token is deleted as a side effect of the failed lookup, so it
// cannot be resurrected later.
func (m *Manager) Consume(ctx context.Context, value string) (Consumed, error) {
	t, err := m.repo.GetByToken(ctx, value)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return Consumed{}, ErrNotFound
		}
		return Consumed{}, err
	}
	if !m.clock.Now().Before(t.ExpiresAt) {
		_ = m.repo.Delete(ctx, value)
		return Consumed{}, ErrExpired
	}
	if err := m.repo.Delete(ctx, value); err != nil {
		return Consumed{}, err
	}
	return Consumed{Identifier: t.Identifier, Purpose: t.Purpose}, nil
}

func generate() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

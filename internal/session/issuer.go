// Package session turns verified credentials into signed, time-bounded
// session artifacts.
package session

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/florelle/auth-service/internal/domain/entity"
	"github.com/florelle/auth-service/pkg/helpers"
)

// ErrInvalid covers every validation failure: bad signature, malformed
// artifact, or expiry. Callers get no hint which check failed.
var ErrInvalid = errors.New("invalid session")

// Claims carried by the signed session artifact.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	jwt.RegisteredClaims
}

// ProfileUpdate lists the claim fields a profile change may touch.
// Nil fields are left as they were.
type ProfileUpdate struct {
	Name  *string
	Email *string
}

// Issuer signs session artifacts with a server-held secret. Sessions have a
// fixed absolute lifetime; there is no sliding extension.
type Issuer struct {
	secret []byte
	ttl    time.Duration
	clock  helpers.Clock
}

func NewIssuer(secret string, ttl time.Duration, clock helpers.Clock) *Issuer {
	if clock == nil {
		clock = helpers.SystemClock{}
	}
	return &Issuer{secret: []byte(secret), ttl: ttl, clock: clock}
}

// Issue mints a session for the user.
func (i *Issuer) Issue(u *entity.User) (string, time.Time, error) {
	now := i.clock.Now()
	exp := now.Add(i.ttl)
	claims := &Claims{
		Email: u.Email,
		Name:  u.Name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.ID,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	return signed, exp, err
}

// RefreshClaims re-signs a session with updated profile claims. The subject
// and expiry are carried over unchanged: a profile change never extends the
// original expiry window.
func (i *Issuer) RefreshClaims(artifact string, upd ProfileUpdate) (string, time.Time, error) {
	claims, err := i.Validate(artifact)
	if err != nil {
		return "", time.Time{}, err
	}
	if upd.Name != nil {
		claims.Name = *upd.Name
	}
	if upd.Email != nil {
		claims.Email = strings.ToLower(strings.TrimSpace(*upd.Email))
	}
	claims.ID = uuid.NewString()
	claims.IssuedAt = jwt.NewNumericDate(i.clock.Now())

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, claims.ExpiresAt.Time, nil
}

// Validate parses and verifies a session artifact.
func (i *Issuer) Validate(artifact string) (*Claims, error) {
	claims := &Claims{}
	tkn, err := jwt.ParseWithClaims(artifact, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalid
		}
		return i.secret, nil
	}, jwt.WithTimeFunc(i.clock.Now))
	if err != nil || !tkn.Valid {
		return nil, ErrInvalid
	}
	return claims, nil
}

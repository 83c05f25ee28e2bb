package application

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/florelle/auth-service/config"
	"github.com/florelle/auth-service/internal/domain/entity"
	"github.com/florelle/auth-service/internal/domain/repository"
	"github.com/florelle/auth-service/internal/ratelimit"
	"github.com/florelle/auth-service/internal/session"
	"github.com/florelle/auth-service/internal/token"
	"github.com/florelle/auth-service/pkg/helpers"
	"github.com/florelle/auth-service/pkg/mailer"
)

// Rate-limit flow names; combined with a client identifier they form the
// limiter key, e.g. "login:203.0.113.5".
const (
	FlowLogin        = "login"
	FlowRegistration = "registration"
	FlowReset        = "password-reset"
	FlowResend       = "verification-resend"
)

// Limiters holds one limiter per flow, each with its own policy. The backend
// (memory or redis) is chosen at wiring time.
type Limiters struct {
	Login        ratelimit.Limiter
	Register     ratelimit.Limiter
	Reset        ratelimit.Limiter
	VerifyResend ratelimit.Limiter
}

// EmailDispatcher queues an outbound message. Dispatch is best-effort from
// the flows' point of view: a failure is logged, never propagated.
type EmailDispatcher interface {
	Dispatch(ctx context.Context, job mailer.EmailJob) error
}

// AuthService composes the credential store, token manager, session issuer,
// and rate limiters into the registration, login, password-reset, and
// email-verification flows.
type AuthService struct {
	Users    repository.UserRepository
	Tokens   *token.Manager
	Sessions *session.Issuer
	Hasher   *helpers.Hasher
	Limits   Limiters
	Mail     EmailDispatcher
	Logger   *logrus.Logger
	Clock    helpers.Clock
	Cfg      *config.Config
}

func NewAuthService(users repository.UserRepository, tokens *token.Manager, sessions *session.Issuer,
	hasher *helpers.Hasher, limits Limiters, mail EmailDispatcher, logger *logrus.Logger,
	clock helpers.Clock, cfg *config.Config) *AuthService {
	if clock == nil {
		clock = helpers.SystemClock{}
	}
	return &AuthService{
		Users:    users,
		Tokens:   tokens,
		Sessions: sessions,
		Hasher:   hasher,
		Limits:   limits,
		Mail:     mail,
		Logger:   logger,
		Clock:    clock,
		Cfg:      cfg,
	}
}

type RegisterInput struct {
	Email       string
	Password    string
	Name        string
	PhoneNumber string
	CompanyName string
}

// Register creates an unverified user and mails a verification link.
// A failure past user creation (token issue, mail dispatch) does not roll the
// user back; the resend flow covers it.
func (s *AuthService) Register(ctx context.Context, in RegisterInput, clientIP string) (*entity.User, error) {
	if err := s.allow(ctx, s.Limits.Register, ratelimit.Key(FlowRegistration, clientIP)); err != nil {
		return nil, err
	}

	email := normalizeEmail(in.Email)
	if _, err := s.Users.GetByEmail(ctx, email); err == nil {
		return nil, ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, s.failDependency(err, "user lookup")
	}

	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return nil, s.failDependency(err, "password hash")
	}

	u := &entity.User{
		Email:       email,
		Password:    hash,
		Name:        in.Name,
		PhoneNumber: in.PhoneNumber,
		CompanyName: in.CompanyName,
	}
	if err := s.Users.Create(ctx, u); err != nil {
		// The unique constraint is the source of truth; the pre-check
		// above can lose the race.
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, ErrEmailTaken
		}
		return nil, s.failDependency(err, "user create")
	}

	value, err := s.Tokens.Issue(ctx, email, entity.PurposeVerifyEmail, s.Cfg.VerifyTokenTTL)
	if err != nil {
		s.Logger.WithError(err).WithField("email", email).Warn("verification token issue failed")
		return u, nil
	}
	s.dispatchVerifyMail(ctx, u, value)
	return u, nil
}

// Login validates credentials and mints a session. On success the login
// limiter is reset so earlier failed attempts no longer count.
func (s *AuthService) Login(ctx context.Context, email, password, clientIP string) (*entity.User, string, time.Time, error) {
	key := ratelimit.Key(FlowLogin, clientIP)
	if err := s.allow(ctx, s.Limits.Login, key); err != nil {
		return nil, "", time.Time{}, err
	}

	u, err := s.Users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, "", time.Time{}, ErrInvalidCredentials
		}
		return nil, "", time.Time{}, s.failDependency(err, "user lookup")
	}
	if !s.Hasher.Verify(password, u.Password) {
		return nil, "", time.Time{}, ErrInvalidCredentials
	}

	if err := s.Limits.Login.Reset(ctx, key); err != nil {
		s.Logger.WithError(err).WithField("key", key).Warn("rate limit reset failed")
	}

	artifact, exp, err := s.Sessions.Issue(u)
	if err != nil {
		return nil, "", time.Time{}, s.failDependency(err, "session issue")
	}
	return u, artifact, exp, nil
}

// RequestPasswordReset issues a reset token and mails the link. Whether or
// not the account exists, the outcome is identical: nil. Internal failures
// past the limiter are logged but also return nil, so the response cannot be
// used to probe for registered emails.
func (s *AuthService) RequestPasswordReset(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := s.allow(ctx, s.Limits.Reset, ratelimit.Key(FlowReset, email)); err != nil {
		return err
	}

	u, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.Logger.WithError(err).WithField("email", email).Error("user lookup failed")
		}
		return nil
	}

	value, err := s.Tokens.Issue(ctx, email, entity.PurposeResetPassword, s.Cfg.ResetTokenTTL)
	if err != nil {
		s.Logger.WithError(err).WithField("email", email).Error("reset token issue failed")
		return nil
	}
	s.dispatchResetMail(ctx, u, value)
	return nil
}

// ConfirmPasswordReset consumes a reset token and sets the new password.
// token.ErrNotFound and token.ErrExpired pass through so the caller can tell
// the user to request a new link.
func (s *AuthService) ConfirmPasswordReset(ctx context.Context, value, newPassword string) error {
	consumed, err := s.Tokens.Consume(ctx, value)
	if err != nil {
		if errors.Is(err, token.ErrNotFound) || errors.Is(err, token.ErrExpired) {
			return err
		}
		return s.failDependency(err, "token consume")
	}
	if consumed.Purpose != entity.PurposeResetPassword {
		return token.ErrNotFound
	}

	u, err := s.Users.GetByEmail(ctx, consumed.Identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrUserNotFound
		}
		return s.failDependency(err, "user lookup")
	}

	hash, err := s.Hasher.Hash(newPassword)
	if err != nil {
		return s.failDependency(err, "password hash")
	}
	if err := s.Users.UpdatePassword(ctx, u.ID, hash); err != nil {
		return s.failDependency(err, "password update")
	}
	return nil
}

// VerifyEmail consumes a verification token and marks the account verified.
func (s *AuthService) VerifyEmail(ctx context.Context, value string) (*entity.User, error) {
	consumed, err := s.Tokens.Consume(ctx, value)
	if err != nil {
		if errors.Is(err, token.ErrNotFound) || errors.Is(err, token.ErrExpired) {
			return nil, err
		}
		return nil, s.failDependency(err, "token consume")
	}
	if consumed.Purpose != entity.PurposeVerifyEmail {
		return nil, token.ErrNotFound
	}

	u, err := s.Users.GetByEmail(ctx, consumed.Identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, s.failDependency(err, "user lookup")
	}
	if err := s.Users.SetEmailVerified(ctx, u.ID); err != nil {
		return nil, s.failDependency(err, "set verified")
	}
	now := s.Clock.Now()
	u.EmailVerifiedAt = &now
	return u, nil
}

// ResendVerification re-issues a verification link. An unknown email gets the
// same generic success as the reset-request flow; an already verified account
// gets ErrAlreadyVerified, since this flow requires knowing the email anyway.
func (s *AuthService) ResendVerification(ctx context.Context, email string) error {
	email = normalizeEmail(email)
	if err := s.allow(ctx, s.Limits.VerifyResend, ratelimit.Key(FlowResend, email)); err != nil {
		return err
	}

	u, err := s.Users.GetByEmail(ctx, email)
	if err != nil {
		if !errors.Is(err, repository.ErrNotFound) {
			s.Logger.WithError(err).WithField("email", email).Error("user lookup failed")
		}
		return nil
	}
	if u.Verified() {
		return ErrAlreadyVerified
	}

	value, err := s.Tokens.Issue(ctx, email, entity.PurposeVerifyEmail, s.Cfg.VerifyTokenTTL)
	if err != nil {
		s.Logger.WithError(err).WithField("email", email).Error("verification token issue failed")
		return nil
	}
	s.dispatchVerifyMail(ctx, u, value)
	return nil
}

func (s *AuthService) GetProfile(ctx context.Context, id string) (*entity.User, error) {
	u, err := s.Users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, s.failDependency(err, "user lookup")
	}
	return u, nil
}

type UpdateProfileInput struct {
	Name        string
	PhoneNumber string
	CompanyName string
}

// UpdateProfile applies non-empty fields to the user record. The handler
// re-signs the session claims afterwards when the display name changed.
func (s *AuthService) UpdateProfile(ctx context.Context, id string, in UpdateProfileInput) (*entity.User, error) {
	u, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != "" {
		u.Name = in.Name
	}
	if in.PhoneNumber != "" {
		u.PhoneNumber = in.PhoneNumber
	}
	if in.CompanyName != "" {
		u.CompanyName = in.CompanyName
	}
	if err := s.Users.Update(ctx, u); err != nil {
		return nil, s.failDependency(err, "user update")
	}
	return u, nil
}

func (s *AuthService) allow(ctx context.Context, l ratelimit.Limiter, key string) error {
	res, err := l.Check(ctx, key)
	if err != nil {
		return s.failDependency(err, "rate limit check")
	}
	if !res.Allowed {
		return &RateLimitedError{RetryAfter: ratelimit.RetryAfter(res, s.Clock.Now())}
	}
	return nil
}

func (s *AuthService) failDependency(err error, op string) error {
	s.Logger.WithError(err).Error(op + " failed")
	return ErrDependencyUnavailable
}

func (s *AuthService) dispatchVerifyMail(ctx context.Context, u *entity.User, value string) {
	s.dispatch(ctx, mailer.EmailJob{
		To:       u.Email,
		Template: mailer.TemplateVerifyEmail,
		Data: map[string]any{
			"Name":      u.Name,
			"Link":      s.Cfg.VerifyEmailURL + "?token=" + value,
			"ExpiresIn": s.Cfg.VerifyTokenTTL.String(),
		},
	})
}

func (s *AuthService) dispatchResetMail(ctx context.Context, u *entity.User, value string) {
	s.dispatch(ctx, mailer.EmailJob{
		To:       u.Email,
		Template: mailer.TemplateResetPassword,
		Data: map[string]any{
			"Name":      u.Name,
			"Link":      s.Cfg.ResetPasswordURL + "?token=" + value,
			"ExpiresIn": s.Cfg.ResetTokenTTL.String(),
		},
	})
}

func (s *AuthService) dispatch(ctx context.Context, job mailer.EmailJob) {
	if s.Mail == nil || (s.Cfg != nil && !s.Cfg.MailSendEnabled) {
		return
	}
	if err := s.Mail.Dispatch(ctx, job); err != nil {
		s.Logger.WithError(err).WithField("to", job.To).Warn("email dispatch failed")
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

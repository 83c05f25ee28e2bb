package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/florelle/auth-service/config"
	"github.com/florelle/auth-service/internal/application"
	"github.com/florelle/auth-service/internal/domain/entity"
	"github.com/florelle/auth-service/internal/domain/repository"
	"github.com/florelle/auth-service/internal/interface/middleware"
	"github.com/florelle/auth-service/internal/ratelimit"
	"github.com/florelle/auth-service/internal/session"
	"github.com/florelle/auth-service/internal/token"
	"github.com/florelle/auth-service/pkg/helpers"
	"github.com/florelle/auth-service/pkg/mailer"
	"github.com/florelle/auth-service/pkg/validation"
)

type stubUsers struct {
	mu      sync.Mutex
	byEmail map[string]*entity.User
}

func newStubUsers() *stubUsers {
	return &stubUsers{byEmail: make(map[string]*entity.User)}
}

func (r *stubUsers) Create(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(u.Email)
	if _, ok := r.byEmail[key]; ok {
		return repository.ErrDuplicateEmail
	}
	u.ID = uuid.NewString()
	cp := *u
	r.byEmail[key] = &cp
	return nil
}

func (r *stubUsers) GetByID(_ context.Context, id string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byEmail {
		if u.ID == id {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *stubUsers) GetByEmail(_ context.Context, email string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *stubUsers) Update(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *u
	r.byEmail[strings.ToLower(u.Email)] = &cp
	return nil
}

func (r *stubUsers) UpdatePassword(_ context.Context, id, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byEmail {
		if u.ID == id {
			u.Password = passwordHash
			return nil
		}
	}
	return repository.ErrNotFound
}

func (r *stubUsers) SetEmailVerified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byEmail {
		if u.ID == id {
			now := time.Now()
			u.EmailVerifiedAt = &now
			return nil
		}
	}
	return repository.ErrNotFound
}

type stubTokens struct {
	mu     sync.Mutex
	tokens map[string]*entity.AuthToken
}

func newStubTokens() *stubTokens {
	return &stubTokens{tokens: make(map[string]*entity.AuthToken)}
}

func (r *stubTokens) Create(_ context.Context, t *entity.AuthToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tokens[t.Token] = t
	return nil
}

func (r *stubTokens) GetByToken(_ context.Context, value string) (*entity.AuthToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tokens[value]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *stubTokens) Delete(_ context.Context, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.tokens, value)
	return nil
}

func (r *stubTokens) DeleteByIdentifier(_ context.Context, identifier string, purpose entity.TokenPurpose) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, t := range r.tokens {
		if t.Identifier == identifier && t.Purpose == purpose {
			delete(r.tokens, k)
		}
	}
	return nil
}

type dropMail struct{}

func (dropMail) Dispatch(context.Context, mailer.EmailJob) error { return nil }

func newTestRouter(t *testing.T) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validation.Init()

	cfg := config.Load()
	users := newStubUsers()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	svc := application.NewAuthService(
		users,
		token.NewManager(newStubTokens(), helpers.SystemClock{}),
		session.NewIssuer("test-secret", cfg.SessionTTL, helpers.SystemClock{}),
		helpers.NewHasher(bcrypt.MinCost),
		application.Limiters{
			Login:        ratelimit.NewMemoryLimiter(cfg.Login, helpers.SystemClock{}),
			Register:     ratelimit.NewMemoryLimiter(cfg.Register, helpers.SystemClock{}),
			Reset:        ratelimit.NewMemoryLimiter(cfg.PasswordReset, helpers.SystemClock{}),
			VerifyResend: ratelimit.NewMemoryLimiter(cfg.VerifyResend, helpers.SystemClock{}),
		},
		dropMail{},
		logger,
		helpers.SystemClock{},
		cfg,
	)
	h := NewAuthHandler(svc, logger, cfg.CookieDomain, cfg.CookieSecure)

	r := gin.New()
	r.Use(middleware.RealIP())
	api := r.Group("/api")
	api.POST("/register", h.Register)
	api.POST("/login", h.Login)
	api.POST("/auth/reset/init", h.ResetInit)
	api.POST("/auth/verify/resend", h.VerifyResend)
	return r
}

func doJSON(t *testing.T, r *gin.Engine, path string, body gin.H, clientIP string) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	if clientIP != "" {
		req.Header.Set("X-Forwarded-For", clientIP)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// stripVolatile drops per-request fields so two response bodies can be
// compared for distinguishable content.
func stripVolatile(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal(body, &m))
	delete(m, "timestamp")
	delete(m, "request_id")
	return m
}

func registerUser(t *testing.T, r *gin.Engine, email, password string) {
	t.Helper()
	w := doJSON(t, r, "/api/register", gin.H{
		"email":        email,
		"password":     password,
		"name":         "Alice",
		"phone_number": "+15550100100",
	}, "203.0.113.10")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
}

func TestResetInit_ResponsesIndistinguishable(t *testing.T) {
	r := newTestRouter(t)
	registerUser(t, r, "alice@example.com", "s3cret-pass")

	known := doJSON(t, r, "/api/auth/reset/init", gin.H{"email": "alice@example.com"}, "203.0.113.1")
	unknown := doJSON(t, r, "/api/auth/reset/init", gin.H{"email": "nobody@example.com"}, "203.0.113.1")

	require.Equal(t, http.StatusOK, known.Code)
	require.Equal(t, http.StatusOK, unknown.Code)
	assert.Equal(t, stripVolatile(t, known.Body.Bytes()), stripVolatile(t, unknown.Body.Bytes()))
}

func TestVerifyResend_ResponsesIndistinguishable(t *testing.T) {
	r := newTestRouter(t)
	registerUser(t, r, "alice@example.com", "s3cret-pass")

	known := doJSON(t, r, "/api/auth/verify/resend", gin.H{"email": "alice@example.com"}, "203.0.113.1")
	unknown := doJSON(t, r, "/api/auth/verify/resend", gin.H{"email": "nobody@example.com"}, "203.0.113.1")

	require.Equal(t, http.StatusOK, known.Code)
	require.Equal(t, http.StatusOK, unknown.Code)
	assert.Equal(t, stripVolatile(t, known.Body.Bytes()), stripVolatile(t, unknown.Body.Bytes()))
}

func TestLogin_ErrorResponsesIndistinguishable(t *testing.T) {
	r := newTestRouter(t)
	registerUser(t, r, "alice@example.com", "s3cret-pass")

	wrongPassword := doJSON(t, r, "/api/login", gin.H{"email": "alice@example.com", "password": "wrong-pass"}, "203.0.113.1")
	unknownEmail := doJSON(t, r, "/api/login", gin.H{"email": "nobody@example.com", "password": "wrong-pass"}, "203.0.113.1")

	require.Equal(t, http.StatusUnauthorized, wrongPassword.Code)
	require.Equal(t, http.StatusUnauthorized, unknownEmail.Code)
	assert.Equal(t, stripVolatile(t, wrongPassword.Body.Bytes()), stripVolatile(t, unknownEmail.Body.Bytes()))
	assert.Empty(t, wrongPassword.Header().Get("Set-Cookie"))
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	r := newTestRouter(t)
	registerUser(t, r, "alice@example.com", "s3cret-pass")

	w := doJSON(t, r, "/api/login", gin.H{"email": "alice@example.com", "password": "s3cret-pass"}, "203.0.113.1")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	res := w.Result()
	var found *http.Cookie
	for _, c := range res.Cookies() {
		if c.Name == helpers.SessionCookieName {
			found = c
		}
	}
	require.NotNil(t, found, "session cookie missing")
	assert.True(t, found.HttpOnly)
	assert.NotEmpty(t, found.Value)
}

func TestLogin_RateLimitedResponse(t *testing.T) {
	r := newTestRouter(t)
	registerUser(t, r, "alice@example.com", "s3cret-pass")

	for i := 0; i < 5; i++ {
		w := doJSON(t, r, "/api/login", gin.H{"email": "alice@example.com", "password": "wrong-pass"}, "203.0.113.2")
		require.Equal(t, http.StatusUnauthorized, w.Code)
	}

	w := doJSON(t, r, "/api/login", gin.H{"email": "alice@example.com", "password": "s3cret-pass"}, "203.0.113.2")
	require.Equal(t, http.StatusTooManyRequests, w.Code)

	retryAfter, err := strconv.Atoi(w.Header().Get("Retry-After"))
	require.NoError(t, err, "Retry-After header must be a whole number of seconds")
	assert.GreaterOrEqual(t, retryAfter, 1)

	body := stripVolatile(t, w.Body.Bytes())
	assert.Equal(t, "rate_limited", body["error_code"])
	assert.EqualValues(t, retryAfter, body["retry_after_seconds"])
}

func TestRegister_ValidationError(t *testing.T) {
	r := newTestRouter(t)

	w := doJSON(t, r, "/api/register", gin.H{
		"email":        "not-an-email",
		"password":     "short",
		"name":         "Alice",
		"phone_number": "+15550100100",
	}, "203.0.113.3")
	require.Equal(t, http.StatusBadRequest, w.Code)

	body := stripVolatile(t, w.Body.Bytes())
	assert.Equal(t, "validation_error", body["error_code"])
	details, ok := body["error"].(map[string]any)
	require.True(t, ok, "expected field details")
	assert.Contains(t, details, "email")
	assert.Contains(t, details, "password")
}

func TestRegister_DuplicateEmail(t *testing.T) {
	r := newTestRouter(t)
	registerUser(t, r, "alice@example.com", "s3cret-pass")

	w := doJSON(t, r, "/api/register", gin.H{
		"email":        "ALICE@example.com",
		"password":     "other-pass",
		"name":         "Impostor",
		"phone_number": "+15550100199",
	}, "198.51.100.9")
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "email_taken", stripVolatile(t, w.Body.Bytes())["error_code"])
}

package router

import (
	"github.com/florelle/auth-service/internal/application"
	"github.com/florelle/auth-service/internal/container"
	pginfra "github.com/florelle/auth-service/internal/infrastructure/postgres"
	"github.com/florelle/auth-service/internal/ratelimit"
	"github.com/florelle/auth-service/internal/router/modules"
	"github.com/florelle/auth-service/internal/token"
	"github.com/florelle/auth-service/pkg/helpers"
	"github.com/florelle/auth-service/pkg/mailer"
)

// InitModules initializes all application modules and registers them with the
// router registry. It returns a stop function that shuts down background
// limiter sweepers.
func InitModules(r *Registry) (stop func()) {
	cfg := container.GetConfig()
	clock := container.GetClock()

	users := pginfra.NewUserRepository(container.GetPGPool(), cfg.DBTimeout)
	tokens := pginfra.NewTokenRepository(container.GetPGPool(), cfg.DBTimeout)

	limits, stop := buildLimiters()

	var dispatcher application.EmailDispatcher
	if pub := container.GetRabbitPub(); pub != nil {
		dispatcher = mailer.NewQueueSender(pub)
	}

	svc := application.NewAuthService(
		users,
		token.NewManager(tokens, clock),
		container.GetIssuer(),
		helpers.NewHasher(cfg.BcryptCost),
		limits,
		dispatcher,
		container.GetLogger(),
		clock,
		cfg,
	)

	r.Add(modules.NewAuthModule(svc, container.GetLogger(), cfg))
	r.Add(modules.NewUserModule(svc, container.GetIssuer(), container.GetLogger(), cfg))
	return stop
}

// buildLimiters constructs one limiter per flow on the configured backend.
// The in-memory backend needs a periodic sweep; redis keys expire on their own.
func buildLimiters() (application.Limiters, func()) {
	cfg := container.GetConfig()
	clock := container.GetClock()

	if cfg.RateLimitBackend == "redis" {
		rdb := container.GetRedis()
		return application.Limiters{
			Login:        ratelimit.NewRedisLimiter(rdb, cfg.Login, clock),
			Register:     ratelimit.NewRedisLimiter(rdb, cfg.Register, clock),
			Reset:        ratelimit.NewRedisLimiter(rdb, cfg.PasswordReset, clock),
			VerifyResend: ratelimit.NewRedisLimiter(rdb, cfg.VerifyResend, clock),
		}, func() {}
	}

	login := ratelimit.NewMemoryLimiter(cfg.Login, clock)
	register := ratelimit.NewMemoryLimiter(cfg.Register, clock)
	reset := ratelimit.NewMemoryLimiter(cfg.PasswordReset, clock)
	resend := ratelimit.NewMemoryLimiter(cfg.VerifyResend, clock)

	done := make(chan struct{})
	for _, l := range []*ratelimit.MemoryLimiter{login, register, reset, resend} {
		l.StartSweeper(cfg.SweepInterval, done)
	}

	return application.Limiters{
		Login:        login,
		Register:     register,
		Reset:        reset,
		VerifyResend: resend,
	}, func() { close(done) }
}

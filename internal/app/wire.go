package app

import (
	"log/slog"
	"time"

	"github.com/attaboy/siteadmin/internal/auth"
	"github.com/attaboy/siteadmin/internal/guard"
	"github.com/attaboy/siteadmin/internal/handler"
	"github.com/attaboy/siteadmin/internal/repository"
	"github.com/attaboy/siteadmin/internal/secret"
	"github.com/attaboy/siteadmin/internal/service"
	"github.com/go-chi/chi/v5"
)

// RouterDeps holds all dependencies needed by NewRouter.
type RouterDeps struct {
	Admins      repository.AdminRepository
	JWTMgr      *auth.JWTManager
	Hasher      *secret.Hasher
	Invalidator service.Invalidator
	Logger      *slog.Logger

	SuperActionCodeHash string
	ChallengeTTL        time.Duration
	CORSAllowedOrigins  string
	HealthChecks        map[string]handler.HealthCheck

	// LoginLimiter throttles the unauthenticated login routes per client IP. Nil disables it.
	LoginLimiter   *guard.RateLimiter
	TrustedProxies handler.TrustedProxies
}

// NewRouter assembles the chi.Router with all routes and middleware.
func NewRouter(deps RouterDeps) chi.Router {
	logger := deps.Logger

	// Services
	adminSvc := service.NewAdminService(deps.Admins, deps.Hasher, deps.Invalidator, logger)
	twoFactorSvc := service.NewTwoFactorService(deps.Admins, deps.Hasher, deps.SuperActionCodeHash, deps.Invalidator, logger)
	loginSvc := service.NewLoginService(adminSvc, twoFactorSvc, guard.NewChallengeRegistry(), deps.JWTMgr, deps.ChallengeTTL, logger)

	// Handlers
	adminHandler := handler.NewAdminHandler(adminSvc, twoFactorSvc, loginSvc)

	// Router
	r := chi.NewRouter()

	// Global middleware (order matters)
	r.Use(handler.Recovery(logger))
	r.Use(handler.RequestID)
	r.Use(handler.RequestLogger(logger))
	r.Use(handler.CORSWithOrigins(deps.CORSAllowedOrigins))
	r.Use(handler.JSONContentType)

	// Health (no auth)
	r.Get("/health", handler.HealthHandler(deps.HealthChecks))

	r.Route("/admin", func(r chi.Router) {
		// Account bootstrap and login (no auth)
		r.Get("/exists", adminHandler.Exists)
		r.Post("/account", adminHandler.CreateAccount)
		r.Route("/login", func(r chi.Router) {
			r.Use(handler.RateLimit(deps.LoginLimiter, deps.TrustedProxies, logger))
			r.Post("/", adminHandler.Login)
			r.Post("/pin", adminHandler.VerifyPIN)
			r.Post("/recover", adminHandler.Recover)
			r.Get("/{challengeId}", adminHandler.ChallengeStatus)
		})

		// Admin-authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(auth.AuthenticateAdmin(deps.JWTMgr))

			r.Get("/profile", adminHandler.GetProfile)
			r.Put("/profile", adminHandler.UpdateProfile)

			r.Route("/2fa", func(r chi.Router) {
				r.Get("/", adminHandler.TwoFactorStatus)
				r.Post("/enable", adminHandler.EnableTwoFactor)
				r.Post("/pin", adminHandler.ChangePIN)
				r.Post("/disable", adminHandler.DisableTwoFactor)
			})
		})
	})

	return r
}

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/attaboy/siteadmin/internal/app"
	"github.com/attaboy/siteadmin/internal/auth"
	"github.com/attaboy/siteadmin/internal/guard"
	"github.com/attaboy/siteadmin/internal/handler"
	"github.com/attaboy/siteadmin/internal/infra"
	"github.com/attaboy/siteadmin/internal/secret"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load config
	cfg, err := infra.LoadConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	trusted, err := handler.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("invalid config: TRUSTED_PROXIES: %w", err)
	}

	// Admin record backend
	storage, err := app.OpenStorage(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer storage.Close()

	// Revalidation
	producer := infra.NewKafkaProducer(cfg.KafkaBrokers, cfg.KafkaRevalidateTopic, cfg.KafkaEnabled, logger)
	defer producer.Close()

	router := app.NewRouter(app.RouterDeps{
		Admins:              storage.Admins,
		JWTMgr:              auth.NewJWTManager(cfg.JWTSecret, cfg.JWTAdminExpiry),
		Hasher:              secret.NewHasher(cfg.BcryptCost),
		Invalidator:         infra.NewInvalidator(cfg, producer, logger),
		Logger:              logger,
		SuperActionCodeHash: cfg.SuperActionCodeHash,
		ChallengeTTL:        cfg.LoginChallengeTTL,
		CORSAllowedOrigins:  cfg.CORSAllowedOrigins,
		HealthChecks:        storage.Health,
		LoginLimiter:        loginLimiter(cfg),
		TrustedProxies:      trusted,
	})

	// Start server
	addr := fmt.Sprintf(":%d", cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Graceful shutdown
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		return fmt.Errorf("server error: %w", err)
	}

	// Shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}

	logger.Info("server stopped gracefully")
	return nil
}

func loginLimiter(cfg *infra.Config) *guard.RateLimiter {
	if cfg.LoginRateLimit <= 0 {
		return nil
	}
	return guard.NewRateLimiter(cfg.LoginRateLimit, cfg.LoginRateWindow)
}

package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/attaboy/siteadmin/internal/handler"
	"github.com/attaboy/siteadmin/internal/infra"
	"github.com/attaboy/siteadmin/internal/repository"
)

// Storage is the admin repository chosen by STORE_DRIVER plus what it needs at shutdown.
type Storage struct {
	Admins repository.AdminRepository
	Health map[string]handler.HealthCheck
	close  func()
}

// Close releases the backend's resources.
func (s *Storage) Close() {
	if s.close != nil {
		s.close()
	}
}

// OpenStorage opens the admin record backend configured in cfg. For Postgres it
// connects and, when enabled, applies migrations first.
func OpenStorage(ctx context.Context, cfg *infra.Config, logger *slog.Logger) (*Storage, error) {
	switch cfg.StoreDriver {
	case infra.StoreDriverPostgres:
		if cfg.RunMigrations {
			if err := infra.RunMigrations(cfg.DSN(), cfg.MigrationsDir, logger); err != nil {
				return nil, fmt.Errorf("run migrations: %w", err)
			}
		}
		pool, err := infra.NewPostgresPool(ctx, cfg)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		logger.Info("admin record stored in postgres")
		return &Storage{
			Admins: repository.NewPgAdminRepository(pool),
			Health: map[string]handler.HealthCheck{
				"postgres": func(ctx context.Context) error { return infra.HealthCheck(ctx, pool) },
			},
			close: pool.Close,
		}, nil

	case infra.StoreDriverSQLite:
		repo, err := repository.NewSqliteAdminRepository(cfg.SQLitePath())
		if err != nil {
			return nil, err
		}
		logger.Info("admin record stored in sqlite", "path", repo.Path())
		return &Storage{
			Admins: repo,
			Health: map[string]handler.HealthCheck{"sqlite": repo.Ping},
			close:  func() { _ = repo.Close() },
		}, nil

	case infra.StoreDriverFile:
		repo, err := repository.NewFileAdminRepository(cfg.AdminPath(), cfg.StoreStrict, logger)
		if err != nil {
			return nil, err
		}
		logger.Info("admin record stored in file", "path", repo.Path(), "strict", cfg.StoreStrict)
		return &Storage{
			Admins: repo,
			Health: map[string]handler.HealthCheck{
				"store": func(ctx context.Context) error {
					_, err := repo.Get(ctx)
					return err
				},
			},
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

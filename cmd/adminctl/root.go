package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/attaboy/siteadmin/internal/app"
	"github.com/attaboy/siteadmin/internal/infra"
	"github.com/attaboy/siteadmin/internal/secret"
	"github.com/attaboy/siteadmin/internal/service"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	dataDir string
	driver  string
	verbose bool
	noColor bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "adminctl",
		Short: "Manage the site admin account",
		Long: `adminctl works directly on the admin record, using the same environment
configuration as the API server (DATA_DIR, STORE_DRIVER, DATABASE_URL, ...).

Use it to bootstrap the account, inspect it, generate the recovery code hash
and recover from a lost PIN.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if opts.noColor {
				color.NoColor = true
			}
		},
	}

	cmd.PersistentFlags().StringVar(&opts.dataDir, "data-dir", "", "directory of JSON collections (overrides DATA_DIR)")
	cmd.PersistentFlags().StringVar(&opts.driver, "driver", "", "store driver: file, sqlite or postgres (overrides STORE_DRIVER)")
	cmd.PersistentFlags().BoolVarP(&opts.verbose, "verbose", "v", false, "log storage activity to stderr")
	cmd.PersistentFlags().BoolVar(&opts.noColor, "no-color", false, "disable colored output")

	cmd.AddCommand(newStatusCmd(opts))
	cmd.AddCommand(newInitCmd(opts))
	cmd.AddCommand(newHashSecretCmd(opts))
	cmd.AddCommand(newRecoverCmd(opts))

	return cmd
}

// session is what every subcommand that touches the admin record needs.
type session struct {
	cfg       *infra.Config
	storage   *app.Storage
	admins    *service.AdminService
	twoFactor *service.TwoFactorService
}

func (s *session) Close() { s.storage.Close() }

func loadConfig(opts *rootOptions) (*infra.Config, error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, err
	}
	if opts.dataDir != "" {
		cfg.DataDir = opts.dataDir
	}
	if opts.driver != "" {
		cfg.StoreDriver = opts.driver
	}
	return cfg, nil
}

func logger(cmd *cobra.Command, opts *rootOptions) *slog.Logger {
	level := slog.LevelWarn
	if opts.verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
}

func openSession(ctx context.Context, cmd *cobra.Command, opts *rootOptions) (*session, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	if err := cfg.ValidateStorage(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	log := logger(cmd, opts)

	storage, err := app.OpenStorage(ctx, cfg, log)
	if err != nil {
		return nil, fmt.Errorf("open admin store: %w", err)
	}

	hasher := secret.NewHasher(cfg.BcryptCost)
	inv := infra.NewInvalidator(cfg, nil, log)
	return &session{
		cfg:       cfg,
		storage:   storage,
		admins:    service.NewAdminService(storage.Admins, hasher, inv, log),
		twoFactor: service.NewTwoFactorService(storage.Admins, hasher, cfg.SuperActionCodeHash, inv, log),
	}, nil
}

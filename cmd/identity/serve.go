// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/identity/internal/auth"
	"github.com/holomush/identity/internal/auth/postgres"
	"github.com/holomush/identity/internal/config"
	"github.com/holomush/identity/internal/httpapi"
	"github.com/holomush/identity/internal/logging"
	"github.com/holomush/identity/internal/observability"
	"github.com/holomush/identity/internal/store"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication HTTP API",
		Long: `Start the authentication service: connect to PostgreSQL, optionally
apply pending migrations, and serve the HTTP API plus metrics/health
endpoints until interrupted.`,
		RunE: runServe,
	}

	config.RegisterFlags(cmd.Flags())

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configFile, cmd.Flags())
	if err != nil {
		return err
	}

	logging.SetDefault("identity", version, cfg.LogFormat)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	pool, err := store.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return oops.Code("DB_CONNECT_FAILED").With("operation", "connect to database").Wrap(err)
	}
	defer pool.Close()

	if cfg.AutoMigrate {
		migrator, err := store.NewMigrator(cfg.DatabaseURL)
		if err != nil {
			return oops.Code("MIGRATION_FAILED").Wrap(err)
		}
		err = migrator.Up()
		if closeErr := migrator.Close(); closeErr != nil {
			slog.Warn("migrator close failed", "error", closeErr)
		}
		if err != nil {
			return oops.Code("MIGRATION_FAILED").With("operation", "auto-migrate").Wrap(err)
		}
		slog.Info("schema migrations applied")
	}

	svc, err := auth.NewService(postgres.NewUserRepository(pool), auth.NewArgon2idHasher())
	if err != nil {
		return oops.Code("SERVICE_INIT_FAILED").Wrap(err)
	}

	var metrics *observability.Metrics
	var obsSrv *observability.Server
	var obsErrCh <-chan error

	if cfg.MetricsAddr != "" {
		obsSrv = observability.NewServer(cfg.MetricsAddr, func() bool {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			defer cancel()
			return pool.Ping(pingCtx) == nil
		})
		obsErrCh, err = obsSrv.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").Wrap(err)
		}
		metrics = obsSrv.Metrics()
	}

	apiSrv, err := httpapi.NewServer(cfg.HTTPAddr, svc, metrics)
	if err != nil {
		return oops.Code("API_INIT_FAILED").Wrap(err)
	}
	apiErrCh, err := apiSrv.Start()
	if err != nil {
		return oops.Code("API_START_FAILED").Wrap(err)
	}

	slog.Info("identity service ready",
		"http_addr", apiSrv.Addr(),
		"metrics_addr", cfg.MetricsAddr,
	)

	var runErr error
	select {
	case <-ctx.Done():
		slog.Info("shutdown signal received")
	case err := <-apiErrCh:
		runErr = oops.Code("API_SERVER_FAILED").Wrap(err)
	case err := <-obsErrCh:
		runErr = oops.Code("OBSERVABILITY_SERVER_FAILED").Wrap(err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := apiSrv.Stop(shutdownCtx); err != nil {
		slog.Error("api server shutdown failed", "error", err)
	}
	if obsSrv != nil {
		if err := obsSrv.Stop(shutdownCtx); err != nil {
			slog.Error("observability server shutdown failed", "error", err)
		}
	}

	return runErr
}

// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"os"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/identity/internal/store"
)

// NewMigrateCmd creates the migrate subcommand.
func NewMigrateCmd() *cobra.Command {
	var (
		down  bool
		steps int
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Apply pending database migrations against the PostgreSQL database.
Use --down to roll back all migrations, or --steps to apply a relative
number of migrations (negative rolls back).`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runMigrate(cmd, down, steps)
		},
	}

	cmd.Flags().BoolVar(&down, "down", false, "roll back all migrations")
	cmd.Flags().IntVar(&steps, "steps", 0, "apply a relative number of migrations")

	return cmd
}

func runMigrate(cmd *cobra.Command, down bool, steps int) error {
	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return oops.Code("CONFIG_INVALID").Errorf("DATABASE_URL environment variable is required")
	}

	if down && steps != 0 {
		return oops.Code("CONFIG_INVALID").Errorf("--down and --steps are mutually exclusive")
	}

	migrator, err := store.NewMigrator(databaseURL)
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "open migrator").Wrap(err)
	}
	defer func() {
		if closeErr := migrator.Close(); closeErr != nil {
			cmd.PrintErrln("warning: migrator close failed:", closeErr)
		}
	}()

	switch {
	case down:
		cmd.Println("Rolling back migrations...")
		err = migrator.Down()
	case steps != 0:
		cmd.Printf("Applying %d migration step(s)...\n", steps)
		err = migrator.Steps(steps)
	default:
		cmd.Println("Running migrations...")
		err = migrator.Up()
	}
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "run migrations").Wrap(err)
	}

	version, dirty, err := migrator.Version()
	if err != nil {
		return oops.Code("MIGRATION_FAILED").With("operation", "read version").Wrap(err)
	}

	cmd.Printf("Migrations completed successfully (version %d, dirty=%v)\n", version, dirty)
	return nil
}

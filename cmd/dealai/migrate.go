package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/storage"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		Long: `Initialize or update the database schema to the latest version.

Every other command migrates on startup too; this one only migrates.`,
		RunE: runMigrate,
	}
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	slog.Info("Starting database migration",
		"driver", cfg.Database.Driver,
		"database", cfg.Database.Path,
		"target_version", storage.ExpectedSchemaVersion)

	store, err := initStorage(cmd.Context(), cfg)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	closeStorage(store)

	slog.Info("✅ Database migrations completed successfully!")
	return nil
}

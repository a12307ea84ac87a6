package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
)

// ExpectedSchemaVersion is the latest schema version that the application expects.
// If the database cannot be migrated to this version, it's a fatal error.
const ExpectedSchemaVersion = 2

// Migration represents a database schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var migrations = []Migration{
	{
		Version:     1,
		Description: "Initial schema",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS profiles (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					name TEXT UNIQUE NOT NULL,
					keywords TEXT NOT NULL DEFAULT '',
					price_min_cents INTEGER,
					price_max_cents INTEGER,
					min_score REAL NOT NULL DEFAULT 0.6,
					chat_id TEXT
				)`,

				`CREATE TABLE IF NOT EXISTS listings (
					id INTEGER PRIMARY KEY AUTOINCREMENT,
					profile TEXT NOT NULL,
					url TEXT NOT NULL,
					title TEXT NOT NULL DEFAULT '',
					price_cents INTEGER NOT NULL DEFAULT 0,
					created_at DATETIME NOT NULL,
					score REAL NOT NULL DEFAULT 0,
					reason TEXT NOT NULL DEFAULT '',
					status TEXT NOT NULL,
					security_score INTEGER NOT NULL DEFAULT 0,
					ai_model TEXT NOT NULL DEFAULT '',
					ai_reasons TEXT NOT NULL DEFAULT '',
					UNIQUE(url, profile)
				)`,
				`CREATE INDEX idx_listings_created_at ON listings(created_at)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
	{
		Version:     2,
		Description: "Keep listing details for display",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`ALTER TABLE listings ADD COLUMN description TEXT NOT NULL DEFAULT ''`,
				`ALTER TABLE listings ADD COLUMN photo_count INTEGER NOT NULL DEFAULT 0`,
				`ALTER TABLE listings ADD COLUMN seller_signals TEXT NOT NULL DEFAULT ''`,
				`CREATE INDEX idx_listings_profile_status ON listings(profile, status)`,
			}

			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query '%s': %w", query, err)
				}
			}
			return nil
		},
	},
}

// Migrate brings the schema up to ExpectedSchemaVersion.
func (s *SQLiteStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	// Get current version
	var currentVersion int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	// Apply migrations
	for _, migration := range migrations {
		if migration.Version <= currentVersion {
			continue
		}

		tx, txErr := s.db.BeginTx(ctx, nil)
		if txErr != nil {
			return fmt.Errorf("failed to begin transaction: %w", txErr)
		}

		if upErr := migration.Up(tx); upErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", migration.Version, upErr)
		}

		// PRAGMA does not accept bound parameters.
		if _, execErr := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", migration.Version)); execErr != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", execErr)
		}

		if commitErr := tx.Commit(); commitErr != nil {
			return fmt.Errorf("failed to commit migration %d: %w", migration.Version, commitErr)
		}

		slog.Info("Applied migration",
			"version", migration.Version,
			"description", migration.Description)
	}

	var finalVersion int
	err = s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&finalVersion)
	if err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}

	if finalVersion != ExpectedSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", ExpectedSchemaVersion, finalVersion)
	}

	return nil
}

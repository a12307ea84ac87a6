package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mattn/go-sqlite3"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/common"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/model"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/service"
)

var _ service.Storage = (*SQLiteStorage)(nil)

// SQLiteStorage implements the Storage interface using SQLite.
type SQLiteStorage struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStorage creates a new SQLite storage instance.
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	// Validate input
	if err := validateString(dbPath, "dbPath"); err != nil {
		return nil, err
	}

	// Ensure directory exists
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// Open database
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteStorage{
		db:     db,
		dbPath: dbPath,
	}, nil
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// UpsertListing inserts the listing or, when (url, profile) already exists,
// overwrites its mutable fields. The returned id is stable across calls.
func (s *SQLiteStorage) UpsertListing(ctx context.Context, listing *model.Listing, profileName string) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateListing(listing, profileName); err != nil {
		return 0, err
	}

	args, err := upsertArgs(listing, profileName)
	if err != nil {
		return 0, err
	}

	var id int64
	if err := s.db.QueryRowContext(ctx, upsertListingQuery, args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to upsert listing: %w", err)
	}

	listing.ID = id
	listing.Profile = profileName
	return id, nil
}

// ListListings returns listings matching filter, newest first.
func (s *SQLiteStorage) ListListings(ctx context.Context, filter service.ListingFilter) ([]model.Listing, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query, args := buildListingQuery(filter, questionPlaceholder)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var listings []model.Listing
	for rows.Next() {
		listing, err := scanListing(rows)
		if err != nil {
			return nil, err
		}
		listings = append(listings, *listing)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating listings: %w", err)
	}
	return listings, nil
}

// GetListing returns one listing or common.ErrNotFound.
func (s *SQLiteStorage) GetListing(ctx context.Context, id int64) (*model.Listing, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	listing, err := scanListing(s.db.QueryRowContext(ctx, getListingQuery+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("listing %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// ListProfiles returns every profile, most recently created first.
func (s *SQLiteStorage) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx, listProfilesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var profiles []model.Profile
	for rows.Next() {
		profile, err := scanProfile(rows)
		if err != nil {
			return nil, err
		}
		profiles = append(profiles, *profile)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating profiles: %w", err)
	}
	return profiles, nil
}

// GetProfile returns one profile or common.ErrNotFound.
func (s *SQLiteStorage) GetProfile(ctx context.Context, id int64) (*model.Profile, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	profile, err := scanProfile(s.db.QueryRowContext(ctx, getProfileQuery+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("profile %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// CreateProfile stores a new profile and sets its ID.
func (s *SQLiteStorage) CreateProfile(ctx context.Context, profile *model.Profile) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateProfile(profile); err != nil {
		return 0, err
	}

	var id int64
	err := s.db.QueryRowContext(ctx, createProfileQuery, profileArgs(profile)...).Scan(&id)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return 0, fmt.Errorf("profile %q: %w", profile.Name, common.ErrDuplicateEntry)
		}
		return 0, fmt.Errorf("failed to create profile: %w", err)
	}

	profile.ID = id
	return id, nil
}

// UpdateProfile overwrites the stored profile with the same ID.
func (s *SQLiteStorage) UpdateProfile(ctx context.Context, profile *model.Profile) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateProfile(profile); err != nil {
		return err
	}

	args := append(profileArgs(profile), profile.ID)
	result, err := s.db.ExecContext(ctx, updateProfileQuery, args...)
	if err != nil {
		if isSQLiteUniqueViolation(err) {
			return fmt.Errorf("profile %q: %w", profile.Name, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}

	return requireAffected(result, "profile", profile.ID)
}

// DeleteProfile removes a profile. Listings stored under it are kept.
func (s *SQLiteStorage) DeleteProfile(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, "DELETE FROM profiles WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}

	return requireAffected(result, "profile", id)
}

func requireAffected(result sql.Result, what string, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %d: %w", what, id, common.ErrNotFound)
	}
	return nil
}

func isSQLiteUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	return errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
}

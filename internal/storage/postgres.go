package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/common"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/model"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/service"
)

var _ service.Storage = (*PostgresStorage)(nil)

const (
	pgUniqueViolation = "23505"
	pingAttempts      = 5
)

// PostgresStorage implements the Storage interface on a pgx connection pool.
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage connects to dsn and verifies the connection.
func NewPostgresStorage(ctx context.Context, dsn string) (*PostgresStorage, error) {
	if err := validateString(dsn, "dsn"); err != nil {
		return nil, err
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("pgxpool.New: %w", err)
	}

	// The database often starts alongside us, so give it a moment.
	err = common.WithRetry(ctx, func(ctx context.Context) error {
		return pool.Ping(ctx)
	}, common.RetryOptions{MaxAttempts: pingAttempts, InitialDelay: 500 * time.Millisecond, MaxDelay: 5 * time.Second})
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres ping failed: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

// Close releases every pooled connection.
func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS profiles (
		id BIGSERIAL PRIMARY KEY,
		name TEXT UNIQUE NOT NULL,
		keywords TEXT NOT NULL DEFAULT '',
		price_min_cents BIGINT,
		price_max_cents BIGINT,
		min_score DOUBLE PRECISION NOT NULL DEFAULT 0.6,
		chat_id TEXT
	)`,
	`CREATE TABLE IF NOT EXISTS listings (
		id BIGSERIAL PRIMARY KEY,
		profile TEXT NOT NULL,
		url TEXT NOT NULL,
		title TEXT NOT NULL DEFAULT '',
		price_cents BIGINT NOT NULL DEFAULT 0,
		description TEXT NOT NULL DEFAULT '',
		photo_count INTEGER NOT NULL DEFAULT 0,
		seller_signals TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL,
		score DOUBLE PRECISION NOT NULL DEFAULT 0,
		reason TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		security_score INTEGER NOT NULL DEFAULT 0,
		ai_model TEXT NOT NULL DEFAULT '',
		ai_reasons TEXT NOT NULL DEFAULT '',
		UNIQUE (url, profile)
	)`,
	`CREATE INDEX IF NOT EXISTS idx_listings_created_at ON listings (created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_listings_profile_status ON listings (profile, status)`,
}

// Migrate creates the schema. Every statement is idempotent.
func (s *PostgresStorage) Migrate(ctx context.Context) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	for _, query := range postgresSchema {
		if _, err := s.pool.Exec(ctx, query); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	slog.Info("Applied postgres schema", "statements", len(postgresSchema))
	return nil
}

// UpsertListing inserts the listing or, when (url, profile) already exists,
// overwrites its mutable fields. The returned id is stable across calls.
func (s *PostgresStorage) UpsertListing(ctx context.Context, listing *model.Listing, profileName string) (int64, error) {
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
	if err := s.pool.QueryRow(ctx, rebind(upsertListingQuery), args...).Scan(&id); err != nil {
		return 0, fmt.Errorf("failed to upsert listing: %w", err)
	}

	listing.ID = id
	listing.Profile = profileName
	return id, nil
}

// ListListings returns listings matching filter, newest first.
func (s *PostgresStorage) ListListings(ctx context.Context, filter service.ListingFilter) ([]model.Listing, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	query, args := buildListingQuery(filter, dollarPlaceholder)
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query listings: %w", err)
	}
	defer rows.Close()

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
func (s *PostgresStorage) GetListing(ctx context.Context, id int64) (*model.Listing, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	listing, err := scanListing(s.pool.QueryRow(ctx, getListingQuery+" WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("listing %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return listing, nil
}

// ListProfiles returns every profile, most recently created first.
func (s *PostgresStorage) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, listProfilesQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to query profiles: %w", err)
	}
	defer rows.Close()

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
func (s *PostgresStorage) GetProfile(ctx context.Context, id int64) (*model.Profile, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}

	profile, err := scanProfile(s.pool.QueryRow(ctx, getProfileQuery+" WHERE id = $1", id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("profile %d: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return profile, nil
}

// CreateProfile stores a new profile and sets its ID.
func (s *PostgresStorage) CreateProfile(ctx context.Context, profile *model.Profile) (int64, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	if err := validateProfile(profile); err != nil {
		return 0, err
	}

	var id int64
	err := s.pool.QueryRow(ctx, rebind(createProfileQuery), profileArgs(profile)...).Scan(&id)
	if err != nil {
		if isPgUniqueViolation(err) {
			return 0, fmt.Errorf("profile %q: %w", profile.Name, common.ErrDuplicateEntry)
		}
		return 0, fmt.Errorf("failed to create profile: %w", err)
	}

	profile.ID = id
	return id, nil
}

// UpdateProfile overwrites the stored profile with the same ID.
func (s *PostgresStorage) UpdateProfile(ctx context.Context, profile *model.Profile) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateProfile(profile); err != nil {
		return err
	}

	args := append(profileArgs(profile), profile.ID)
	tag, err := s.pool.Exec(ctx, rebind(updateProfileQuery), args...)
	if err != nil {
		if isPgUniqueViolation(err) {
			return fmt.Errorf("profile %q: %w", profile.Name, common.ErrDuplicateEntry)
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile %d: %w", profile.ID, common.ErrNotFound)
	}
	return nil
}

// DeleteProfile removes a profile. Listings stored under it are kept.
func (s *PostgresStorage) DeleteProfile(ctx context.Context, id int64) error {
	if err := validateContext(ctx); err != nil {
		return err
	}

	tag, err := s.pool.Exec(ctx, "DELETE FROM profiles WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("profile %d: %w", id, common.ErrNotFound)
	}
	return nil
}

func isPgUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation
}

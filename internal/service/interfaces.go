// Package service defines the interfaces for all application services.
package service

import (
	"context"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/model"
)

// ListingPageSize bounds every listing query.
const ListingPageSize = 500

// ListingFilter defines filtering options for listing queries. Zero values
// disable a predicate, except MinScore which always applies.
type ListingFilter struct {
	SecurityMin *int
	Profile     string
	Status      model.ListingStatus
	MinScore    float64
}

// ProfileStore persists matching profiles.
type ProfileStore interface {
	ListProfiles(ctx context.Context) ([]model.Profile, error)
	GetProfile(ctx context.Context, id int64) (*model.Profile, error)
	CreateProfile(ctx context.Context, profile *model.Profile) (int64, error)
	UpdateProfile(ctx context.Context, profile *model.Profile) error
	DeleteProfile(ctx context.Context, id int64) error
}

// ListingStore persists evaluated listings, one row per (url, profile).
type ListingStore interface {
	UpsertListing(ctx context.Context, listing *model.Listing, profileName string) (int64, error)
	ListListings(ctx context.Context, filter ListingFilter) ([]model.Listing, error)
	GetListing(ctx context.Context, id int64) (*model.Listing, error)
}

// Storage defines the contract for our persistence layer.
type Storage interface {
	ProfileStore
	ListingStore

	Migrate(ctx context.Context) error
	Close() error
}

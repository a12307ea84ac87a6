// Package storage provides the data persistence layer for profiles and
// evaluated listings, backed by SQLite or PostgreSQL.
package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/model"
)

// Validation errors.
var (
	ErrNilContext     = errors.New("context cannot be nil")
	ErrEmptyString    = errors.New("string parameter cannot be empty")
	ErrNilParameter   = errors.New("parameter cannot be nil")
	ErrInvalidStatus  = errors.New("invalid listing status")
	ErrInvalidListing = errors.New("invalid listing")
	ErrInvalidProfile = errors.New("invalid profile")
)

// validateContext ensures the context is not nil.
func validateContext(ctx context.Context) error {
	if ctx == nil {
		return ErrNilContext
	}
	return nil
}

// validateString ensures a string parameter is not empty.
func validateString(s string, paramName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s", ErrEmptyString, paramName)
	}
	return nil
}

// validateListing validates a listing about to be stored under profileName.
func validateListing(listing *model.Listing, profileName string) error {
	if listing == nil {
		return fmt.Errorf("%w: listing", ErrNilParameter)
	}
	if err := validateString(profileName, "profileName"); err != nil {
		return err
	}
	if strings.TrimSpace(listing.URL) == "" {
		return fmt.Errorf("%w: missing URL", ErrInvalidListing)
	}

	switch listing.Status {
	case model.StatusAccepted, model.StatusRejected:
		// Valid status
	default:
		return fmt.Errorf("%w: %q", ErrInvalidStatus, listing.Status)
	}

	if listing.Score < 0 || listing.Score > 1 {
		return fmt.Errorf("%w: score must be between 0 and 1", ErrInvalidListing)
	}
	return nil
}

// validateProfile validates a profile before create or update.
func validateProfile(profile *model.Profile) error {
	if profile == nil {
		return fmt.Errorf("%w: profile", ErrNilParameter)
	}
	if strings.TrimSpace(profile.Name) == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidProfile)
	}
	if profile.PriceMinCents != nil && *profile.PriceMinCents < 0 {
		return fmt.Errorf("%w: negative minimum price", ErrInvalidProfile)
	}
	if profile.PriceMaxCents != nil && *profile.PriceMaxCents < 0 {
		return fmt.Errorf("%w: negative maximum price", ErrInvalidProfile)
	}
	if profile.PriceMinCents != nil && profile.PriceMaxCents != nil && *profile.PriceMinCents > *profile.PriceMaxCents {
		return fmt.Errorf("%w: minimum price exceeds maximum", ErrInvalidProfile)
	}
	if profile.MinScore < 0 || profile.MinScore > 1 {
		return fmt.Errorf("%w: min score must be between 0 and 1", ErrInvalidProfile)
	}
	return nil
}

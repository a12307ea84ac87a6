// Package model defines the core domain models used throughout the application.
package model

import "time"

// ListingStatus is the persisted accept/reject outcome for a listing.
type ListingStatus string

// Listing status constants.
const (
	StatusAccepted ListingStatus = "accepted"
	StatusRejected ListingStatus = "rejected"
)

// CandidateListing is one marketplace item fetched for evaluation in a run.
type CandidateListing struct {
	ObservedAt    time.Time         `json:"observed_at" yaml:"observed_at"`
	SellerSignals map[string]string `json:"seller_signals,omitempty" yaml:"seller_signals,omitempty"`
	Title         string            `json:"title" yaml:"title"`
	URL           string            `json:"url" yaml:"url"`
	Description   string            `json:"description,omitempty" yaml:"description,omitempty"`
	PriceCents    int64             `json:"price_cents" yaml:"price_cents"` // Zero when the source recorded no price
	PhotoCount    int               `json:"photo_count,omitempty" yaml:"photo_count,omitempty"`
}

// Listing is the working record built for a (profile, candidate) pair during a
// run and, once stored, the persisted row keyed by (URL, Profile).
type Listing struct {
	CreatedAt     time.Time     `json:"created_at"`
	Profile       string        `json:"profile"`
	Reason        string        `json:"reason"`
	Status        ListingStatus `json:"status"`
	AIModel       string        `json:"ai_model"`
	AIReasons     string        `json:"ai_reasons"`
	CandidateListing
	ID            int64   `json:"id"`
	Score         float64 `json:"score"`
	SecurityScore int     `json:"security_score"`
}

// NewListing starts a working record for candidate under the given profile.
func NewListing(candidate CandidateListing, profile string) Listing {
	return Listing{
		CandidateListing: candidate,
		Profile:          profile,
		CreatedAt:        candidate.ObservedAt,
	}
}

// IsAccepted reports whether the listing cleared the acceptance gates.
func (l Listing) IsAccepted() bool {
	return l.Status == StatusAccepted
}

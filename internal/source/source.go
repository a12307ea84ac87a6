// Package source provides the candidate listings a run evaluates.
package source

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/model"
)

// Source produces the ordered candidate listings for one run.
type Source interface {
	Fetch(ctx context.Context) ([]model.CandidateListing, error)
}

// MockSource returns a fixed set of sample marketplace listings stamped with
// the current time.
type MockSource struct {
	now func() time.Time
}

// NewMockSource creates a mock source using the wall clock.
func NewMockSource() *MockSource {
	return &MockSource{now: time.Now}
}

// Fetch implements Source.
func (m *MockSource) Fetch(_ context.Context) ([]model.CandidateListing, error) {
	now := m.now().UTC()
	return []model.CandidateListing{
		{
			Title:      "Apple iPhone 13 128GB — Great condition",
			PriceCents: 25000,
			URL:        "https://www.facebook.com/marketplace/item/mock-iphone-13-128",
			ObservedAt: now,
		},
		{
			Title:      "Samsung Galaxy S21 256GB — Mint",
			PriceCents: 23000,
			URL:        "https://www.facebook.com/marketplace/item/mock-s21-256",
			ObservedAt: now,
		},
		{
			Title:      "iPhone 12 64GB — OK battery",
			PriceCents: 18000,
			URL:        "https://www.facebook.com/marketplace/item/mock-iphone-12",
			ObservedAt: now,
		},
		{
			Title:      "PlayStation 5 Disc Edition — New Sealed",
			PriceCents: 40000,
			URL:        "https://www.facebook.com/marketplace/item/mock-ps5",
			ObservedAt: now,
		},
	}, nil
}

// FileSource reads listings from a YAML or JSON file on every fetch.
//
// Example:
//
//	listings:
//	  - title: Apple iPhone 13 128GB
//	    price_cents: 25000
//	    url: https://example.com/item/1
//	    photo_count: 4
//	    seller_signals:
//	      rating: "4.9"
type FileSource struct {
	now  func() time.Time
	path string
}

// NewFileSource creates a source backed by path.
func NewFileSource(path string) *FileSource {
	return &FileSource{path: path, now: time.Now}
}

type listingFile struct {
	Listings []model.CandidateListing `yaml:"listings"`
}

// Fetch implements Source. Listings without an observed_at are stamped with
// the current time.
func (f *FileSource) Fetch(ctx context.Context) ([]model.CandidateListing, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("failed to read listings file: %w", err)
	}

	// JSON is valid YAML, so one decoder handles both formats.
	var file listingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse listings file %s: %w", f.path, err)
	}

	now := f.now().UTC()
	for i := range file.Listings {
		l := &file.Listings[i]
		l.URL = strings.TrimSpace(l.URL)
		if l.URL == "" {
			return nil, fmt.Errorf("listing %d in %s: missing url", i, f.path)
		}
		if l.ObservedAt.IsZero() {
			l.ObservedAt = now
		}
	}

	return file.Listings, nil
}

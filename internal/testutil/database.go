// Package testutil provides shared fixtures for tests that need a real
// database.
package testutil

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/model"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/service"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/storage"
)

// TestDB represents a migrated test database seeded with profiles.
type TestDB struct {
	Storage  service.Storage
	t        *testing.T
	Profiles []model.Profile
}

// SetupTestDB creates a SQLite database in a temporary directory, migrates
// it and seeds the given profiles. Cleanup is registered on t.
//
// Example:
//
//	db := testutil.SetupTestDB(t, testutil.PhoneProfile())
//	profile := db.MustProfile("iPhone deals")
func SetupTestDB(t *testing.T, profiles ...model.Profile) *TestDB {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})

	ctx := context.Background()
	if err := store.Migrate(ctx); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	seeded := make([]model.Profile, 0, len(profiles))
	for _, p := range profiles {
		id, err := store.CreateProfile(ctx, &p)
		if err != nil {
			t.Fatalf("failed to seed profile %q: %v", p.Name, err)
		}
		p.ID = id
		seeded = append(seeded, p)
	}

	return &TestDB{
		Storage:  store,
		Profiles: seeded,
		t:        t,
	}
}

// MustProfile returns the seeded profile with the given name or fails the test.
func (db *TestDB) MustProfile(name string) model.Profile {
	db.t.Helper()
	for _, p := range db.Profiles {
		if p.Name == name {
			return p
		}
	}
	db.t.Fatalf("profile %q was not seeded", name)
	return model.Profile{}
}

// PhoneProfile is a profile that matches the iPhone sample listings within a
// £200 to £300 budget.
func PhoneProfile() model.Profile {
	return model.Profile{
		Name:          "iPhone deals",
		Keywords:      "iphone,128gb",
		PriceMinCents: model.Int64Ptr(20000),
		PriceMaxCents: model.Int64Ptr(30000),
		MinScore:      model.DefaultMinScore,
	}
}

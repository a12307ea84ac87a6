package storage

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/common"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/model"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/service"
)

// testStorageContract exercises behavior every backend must share. newStore
// returns an empty, migrated store.
func testStorageContract(t *testing.T, newStore func(t *testing.T) service.Storage) {
	t.Helper()

	t.Run("upsert is idempotent per url and profile", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		first := testListing("https://example.com/item/1", "iPhone 13 128GB", base)
		first.Status = model.StatusRejected
		first.SecurityScore = 40
		id1, err := store.UpsertListing(ctx, &first, "phones")
		require.NoError(t, err)
		assert.Positive(t, id1)
		assert.Equal(t, id1, first.ID)

		second := testListing("https://example.com/item/1", "iPhone 13 128GB (price drop)", base.Add(time.Hour))
		second.PriceCents = 23000
		second.Score = 0.5
		second.Reason = "1/2 keywords matched"
		second.AIModel = "gpt-4o-mini"
		second.AIReasons = "looks fine; seller verified"
		id2, err := store.UpsertListing(ctx, &second, "phones")
		require.NoError(t, err)
		assert.Equal(t, id1, id2)

		listings, err := store.ListListings(ctx, service.ListingFilter{})
		require.NoError(t, err)
		require.Len(t, listings, 1)

		got := listings[0]
		assert.Equal(t, id1, got.ID)
		assert.Equal(t, "phones", got.Profile)
		assert.Equal(t, "iPhone 13 128GB (price drop)", got.Title)
		assert.Equal(t, int64(23000), got.PriceCents)
		assert.InDelta(t, 0.5, got.Score, 1e-9)
		assert.Equal(t, "1/2 keywords matched", got.Reason)
		assert.Equal(t, model.StatusAccepted, got.Status)
		assert.Equal(t, 100, got.SecurityScore)
		assert.Equal(t, "gpt-4o-mini", got.AIModel)
		assert.Equal(t, "looks fine; seller verified", got.AIReasons)
		assert.True(t, got.CreatedAt.Equal(base.Add(time.Hour)), "created_at %v", got.CreatedAt)
		assert.Equal(t, map[string]string{"rating": "4.8"}, got.SellerSignals)
	})

	t.Run("same url under another profile is a separate row", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		a := testListing("https://example.com/item/1", "PS5", base)
		b := testListing("https://example.com/item/1", "PS5", base)
		idA, err := store.UpsertListing(ctx, &a, "consoles")
		require.NoError(t, err)
		idB, err := store.UpsertListing(ctx, &b, "bargains")
		require.NoError(t, err)
		assert.NotEqual(t, idA, idB)
	})

	t.Run("list filters and ordering", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		rows := []struct {
			url      string
			profile  string
			status   model.ListingStatus
			created  time.Time
			score    float64
			security int
		}{
			{"u1", "phones", model.StatusAccepted, base, 1.0, 100},
			{"u2", "phones", model.StatusRejected, base.Add(2 * time.Hour), 0.0, 70},
			{"u3", "consoles", model.StatusAccepted, base.Add(time.Hour), 0.5, 88},
			{"u4", "phones", model.StatusAccepted, base.Add(time.Hour), 0.5, 94},
		}
		for _, r := range rows {
			l := testListing(r.url, "t", r.created)
			l.Status = r.status
			l.Score = r.score
			l.SecurityScore = r.security
			_, err := store.UpsertListing(ctx, &l, r.profile)
			require.NoError(t, err)
		}

		urls := func(ls []model.Listing) []string {
			out := make([]string, 0, len(ls))
			for _, l := range ls {
				out = append(out, l.URL)
			}
			return out
		}

		all, err := store.ListListings(ctx, service.ListingFilter{})
		require.NoError(t, err)
		// Ties on created_at fall back to the newer id.
		assert.Equal(t, []string{"u2", "u4", "u3", "u1"}, urls(all))

		scored, err := store.ListListings(ctx, service.ListingFilter{MinScore: 0.5})
		require.NoError(t, err)
		assert.Equal(t, []string{"u4", "u3", "u1"}, urls(scored))

		phonesAccepted, err := store.ListListings(ctx, service.ListingFilter{Profile: "phones", Status: model.StatusAccepted})
		require.NoError(t, err)
		assert.Equal(t, []string{"u4", "u1"}, urls(phonesAccepted))

		secMin := 90
		secure, err := store.ListListings(ctx, service.ListingFilter{SecurityMin: &secMin})
		require.NoError(t, err)
		assert.Equal(t, []string{"u4", "u1"}, urls(secure))

		none, err := store.ListListings(ctx, service.ListingFilter{Profile: "cameras"})
		require.NoError(t, err)
		assert.Empty(t, none)
	})

	t.Run("get listing", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		l := testListing("https://example.com/item/9", "Galaxy S21 256GB", base)
		id, err := store.UpsertListing(ctx, &l, "phones")
		require.NoError(t, err)

		got, err := store.GetListing(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, "Galaxy S21 256GB", got.Title)
		assert.Equal(t, "https://example.com/item/9", got.URL)
		assert.Equal(t, 3, got.PhotoCount)
		assert.Equal(t, "Unlocked, boxed", got.Description)

		_, err = store.GetListing(ctx, id+1000)
		require.ErrorIs(t, err, common.ErrNotFound)
	})

	t.Run("upsert rejects invalid listings", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.UpsertListing(ctx, nil, "phones")
		require.ErrorIs(t, err, ErrNilParameter)

		l := testListing("", "x", base)
		_, err = store.UpsertListing(ctx, &l, "phones")
		require.ErrorIs(t, err, ErrInvalidListing)

		l = testListing("u", "x", base)
		_, err = store.UpsertListing(ctx, &l, "  ")
		require.ErrorIs(t, err, ErrEmptyString)

		l.Status = "pending"
		_, err = store.UpsertListing(ctx, &l, "phones")
		require.ErrorIs(t, err, ErrInvalidStatus)
	})

	t.Run("profile CRUD", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		first := &model.Profile{
			Name:          "iPhone deals",
			Keywords:      "iphone,128gb",
			PriceMinCents: model.Int64Ptr(20000),
			PriceMaxCents: model.Int64Ptr(30000),
			MinScore:      model.DefaultMinScore,
			ChatID:        "12345",
		}
		id1, err := store.CreateProfile(ctx, first)
		require.NoError(t, err)
		assert.Equal(t, id1, first.ID)

		second := &model.Profile{Name: "Anything", MinScore: model.DefaultMinScore}
		id2, err := store.CreateProfile(ctx, second)
		require.NoError(t, err)

		_, err = store.CreateProfile(ctx, &model.Profile{Name: "Anything"})
		require.ErrorIs(t, err, common.ErrDuplicateEntry)

		profiles, err := store.ListProfiles(ctx)
		require.NoError(t, err)
		require.Len(t, profiles, 2)
		assert.Equal(t, id2, profiles[0].ID)
		assert.Equal(t, id1, profiles[1].ID)
		assert.Nil(t, profiles[0].PriceMinCents)
		assert.Nil(t, profiles[0].PriceMaxCents)
		assert.Empty(t, profiles[0].ChatID)

		got, err := store.GetProfile(ctx, id1)
		require.NoError(t, err)
		assert.Equal(t, *first, *got)

		got.Keywords = "iphone,256gb"
		got.PriceMaxCents = nil
		got.ChatID = ""
		require.NoError(t, store.UpdateProfile(ctx, got))

		updated, err := store.GetProfile(ctx, id1)
		require.NoError(t, err)
		assert.Equal(t, "iphone,256gb", updated.Keywords)
		assert.Nil(t, updated.PriceMaxCents)
		assert.Empty(t, updated.ChatID)

		require.NoError(t, store.DeleteProfile(ctx, id2))
		require.ErrorIs(t, store.DeleteProfile(ctx, id2), common.ErrNotFound)
		_, err = store.GetProfile(ctx, id2)
		require.ErrorIs(t, err, common.ErrNotFound)

		missing := &model.Profile{ID: id2, Name: "ghost"}
		require.ErrorIs(t, store.UpdateProfile(ctx, missing), common.ErrNotFound)
	})

	t.Run("profile validation", func(t *testing.T) {
		store := newStore(t)
		ctx := context.Background()

		_, err := store.CreateProfile(ctx, &model.Profile{Name: ""})
		require.ErrorIs(t, err, ErrInvalidProfile)

		_, err = store.CreateProfile(ctx, &model.Profile{
			Name:          "backwards",
			PriceMinCents: model.Int64Ptr(500),
			PriceMaxCents: model.Int64Ptr(100),
		})
		require.ErrorIs(t, err, ErrInvalidProfile)

		_, err = store.CreateProfile(ctx, &model.Profile{Name: "greedy", MinScore: 1.5})
		require.ErrorIs(t, err, ErrInvalidProfile)
	})
}

var base = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func testListing(url, title string, created time.Time) model.Listing {
	l := model.NewListing(model.CandidateListing{
		Title:         title,
		URL:           url,
		PriceCents:    25000,
		Description:   "Unlocked, boxed",
		PhotoCount:    3,
		SellerSignals: map[string]string{"rating": "4.8"},
		ObservedAt:    created,
	}, "")
	l.Score = 1.0
	l.Reason = "2/2 keywords matched"
	l.Status = model.StatusAccepted
	l.SecurityScore = 100
	l.AIModel = "heuristic"
	l.AIReasons = "2/2 keywords matched; price within desired range"
	return l
}

package storage

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/model"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/service"
)

// Statements shared by both backends are written with ? placeholders and
// rewritten with rebind for PostgreSQL.

const listingColumns = `id, profile, url, title, price_cents, description, photo_count,
	seller_signals, created_at, score, reason, status, security_score, ai_model, ai_reasons`

const getListingQuery = `SELECT ` + listingColumns + ` FROM listings`

const upsertListingQuery = `
	INSERT INTO listings (
		profile, url, title, price_cents, description, photo_count, seller_signals,
		created_at, score, reason, status, security_score, ai_model, ai_reasons
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT (url, profile) DO UPDATE SET
		title = excluded.title,
		price_cents = excluded.price_cents,
		description = excluded.description,
		photo_count = excluded.photo_count,
		seller_signals = excluded.seller_signals,
		created_at = excluded.created_at,
		score = excluded.score,
		reason = excluded.reason,
		status = excluded.status,
		security_score = excluded.security_score,
		ai_model = excluded.ai_model,
		ai_reasons = excluded.ai_reasons
	RETURNING id`

const profileColumns = `id, name, keywords, price_min_cents, price_max_cents, min_score, chat_id`

const getProfileQuery = `SELECT ` + profileColumns + ` FROM profiles`

const listProfilesQuery = getProfileQuery + ` ORDER BY id DESC`

const createProfileQuery = `
	INSERT INTO profiles (name, keywords, price_min_cents, price_max_cents, min_score, chat_id)
	VALUES (?, ?, ?, ?, ?, ?)
	RETURNING id`

const updateProfileQuery = `
	UPDATE profiles
	SET name = ?, keywords = ?, price_min_cents = ?, price_max_cents = ?, min_score = ?, chat_id = ?
	WHERE id = ?`

// rowScanner is satisfied by database/sql and pgx rows alike.
type rowScanner interface {
	Scan(dest ...any) error
}

type placeholderFunc func(n int) string

func questionPlaceholder(int) string { return "?" }

func dollarPlaceholder(n int) string { return "$" + strconv.Itoa(n) }

// rebind rewrites ? placeholders into $1, $2, ... form.
func rebind(query string) string {
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString(dollarPlaceholder(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// buildListingQuery AND-combines the filter predicates.
func buildListingQuery(filter service.ListingFilter, placeholder placeholderFunc) (string, []any) {
	var b strings.Builder
	args := []any{filter.MinScore}

	b.WriteString(getListingQuery)
	b.WriteString(" WHERE score >= " + placeholder(len(args)))

	if filter.Profile != "" {
		args = append(args, filter.Profile)
		b.WriteString(" AND profile = " + placeholder(len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		b.WriteString(" AND status = " + placeholder(len(args)))
	}
	if filter.SecurityMin != nil {
		args = append(args, *filter.SecurityMin)
		b.WriteString(" AND security_score >= " + placeholder(len(args)))
	}

	b.WriteString(fmt.Sprintf(" ORDER BY created_at DESC, id DESC LIMIT %d", service.ListingPageSize))
	return b.String(), args
}

func upsertArgs(listing *model.Listing, profileName string) ([]any, error) {
	signals := ""
	if len(listing.SellerSignals) > 0 {
		b, err := json.Marshal(listing.SellerSignals)
		if err != nil {
			return nil, fmt.Errorf("failed to encode seller signals: %w", err)
		}
		signals = string(b)
	}

	createdAt := listing.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	return []any{
		profileName,
		listing.URL,
		listing.Title,
		listing.PriceCents,
		listing.Description,
		listing.PhotoCount,
		signals,
		createdAt.UTC(),
		listing.Score,
		listing.Reason,
		string(listing.Status),
		listing.SecurityScore,
		listing.AIModel,
		listing.AIReasons,
	}, nil
}

func scanListing(row rowScanner) (*model.Listing, error) {
	var (
		listing model.Listing
		status  string
		signals string
	)

	err := row.Scan(
		&listing.ID,
		&listing.Profile,
		&listing.URL,
		&listing.Title,
		&listing.PriceCents,
		&listing.Description,
		&listing.PhotoCount,
		&signals,
		&listing.CreatedAt,
		&listing.Score,
		&listing.Reason,
		&status,
		&listing.SecurityScore,
		&listing.AIModel,
		&listing.AIReasons,
	)
	if err != nil {
		return nil, wrapScanErr(err, "listing")
	}

	listing.Status = model.ListingStatus(status)
	listing.ObservedAt = listing.CreatedAt
	if signals != "" {
		if err := json.Unmarshal([]byte(signals), &listing.SellerSignals); err != nil {
			return nil, fmt.Errorf("failed to decode seller signals for listing %d: %w", listing.ID, err)
		}
	}
	return &listing, nil
}

// wrapScanErr keeps the driver's no-rows sentinel reachable through errors.Is.
func wrapScanErr(err error, what string) error {
	return fmt.Errorf("failed to scan %s: %w", what, err)
}

func profileArgs(profile *model.Profile) []any {
	var chatID any
	if profile.ChatID != "" {
		chatID = profile.ChatID
	}
	return []any{
		profile.Name,
		profile.Keywords,
		profile.PriceMinCents,
		profile.PriceMaxCents,
		profile.MinScore,
		chatID,
	}
}

func scanProfile(row rowScanner) (*model.Profile, error) {
	var (
		profile model.Profile
		chatID  *string
	)

	err := row.Scan(
		&profile.ID,
		&profile.Name,
		&profile.Keywords,
		&profile.PriceMinCents,
		&profile.PriceMaxCents,
		&profile.MinScore,
		&chatID,
	)
	if err != nil {
		return nil, wrapScanErr(err, "profile")
	}

	if chatID != nil {
		profile.ChatID = *chatID
	}
	return &profile, nil
}

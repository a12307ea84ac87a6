// Package notify sends best-effort alerts for accepted listings.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/model"
)

// Outcome is the result of one notification attempt.
type Outcome int

// Notification outcomes.
const (
	NotConfigured Outcome = iota
	Sent
	Failed
)

func (o Outcome) String() string {
	switch o {
	case NotConfigured:
		return "not_configured"
	case Sent:
		return "sent"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("outcome(%d)", int(o))
	}
}

// Notifier delivers an alert for an accepted listing. Implementations never
// return errors; every failure maps to Failed.
type Notifier interface {
	Notify(ctx context.Context, listing model.Listing, profile model.Profile) Outcome
}

// FormatMessage renders the alert text. The deep link is added only when
// both a public base URL and a stored listing id are known.
func FormatMessage(listing model.Listing, profile model.Profile, publicBaseURL string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "✅ [%s] Match\n", profile.Name)
	fmt.Fprintf(&b, "%s\n", listing.Title)
	fmt.Fprintf(&b, "Price: £%s\n", model.FormatCents(listing.PriceCents))
	fmt.Fprintf(&b, "Score: %.2f — %s\n", listing.Score, listing.Reason)
	fmt.Fprintf(&b, "[%s — %d/100]\n", model.Badge(listing.SecurityScore), listing.SecurityScore)
	b.WriteString(listing.URL)
	if publicBaseURL != "" && listing.ID > 0 {
		fmt.Fprintf(&b, "\n%s/item/%d", strings.TrimRight(publicBaseURL, "/"), listing.ID)
	}
	return b.String()
}

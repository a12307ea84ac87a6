// Package matcher scores candidate listings against a profile's keyword and
// price-range rules.
package matcher

import (
	"fmt"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/model"
)

// Match returns a relevance score in [0, 1] and a human-readable reason.
//
// The score is the share of profile keywords found in the title. A listing
// priced outside a configured bound scores 0 regardless of keyword hits, and
// the reason names the violated bound. Profiles without keywords score 0.
func Match(listing model.CandidateListing, profile model.Profile) (float64, string) {
	keywords := profile.KeywordList()
	hits := model.CountKeywordHits(listing.Title, keywords)

	scoreKW := 0.0
	if len(keywords) > 0 {
		scoreKW = float64(hits) / float64(len(keywords))
	}

	reason := fmt.Sprintf("%d/%d keywords matched", hits, len(keywords))

	if violation := priceViolation(listing.PriceCents, profile); violation != "" {
		return 0.0, reason + "; " + violation
	}
	return scoreKW, reason
}

// priceViolation returns the clause describing a failed price gate, or ""
// when the price is acceptable. The maximum check wins when both fail.
func priceViolation(price int64, profile model.Profile) string {
	violation := ""
	if profile.PriceMinCents != nil && price < *profile.PriceMinCents {
		violation = fmt.Sprintf("price %s < min %s", model.FormatCents(price), model.FormatCents(*profile.PriceMinCents))
	}
	if profile.PriceMaxCents != nil && price > *profile.PriceMaxCents {
		violation = fmt.Sprintf("price %s > max %s", model.FormatCents(price), model.FormatCents(*profile.PriceMaxCents))
	}
	return violation
}

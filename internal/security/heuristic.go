package security

import (
	"fmt"
	"math"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/model"
)

// heuristicMaxPriceCents stands in for a missing upper price bound.
const heuristicMaxPriceCents int64 = 1_000_000_000

// HeuristicModelTag identifies results produced without an oracle.
const HeuristicModelTag = "heuristic"

// Heuristic scores a listing without any external call. The score starts at
// the acceptance threshold and adds up to 30 points for being in the price
// range and matching the profile keywords, so it never falls below 70.
func Heuristic(profile model.Profile, listing model.CandidateListing) model.EvaluationResult {
	keywords := profile.KeywordList()
	hits := model.CountKeywordHits(listing.Title, keywords)

	hitRatio := 0.0
	if len(keywords) > 0 {
		hitRatio = float64(hits) / float64(len(keywords))
	}

	minPrice := int64(0)
	if profile.PriceMinCents != nil {
		minPrice = *profile.PriceMinCents
	}
	// A zero upper bound counts as unbounded here.
	maxPrice := heuristicMaxPriceCents
	if profile.PriceMaxCents != nil && *profile.PriceMaxCents > 0 {
		maxPrice = *profile.PriceMaxCents
	}

	inRange := 0.0
	if listing.PriceCents >= minPrice && listing.PriceCents <= maxPrice {
		inRange = 1.0
	}

	blend := float64(0.6*inRange) + float64(0.4*hitRatio)
	score := model.ClampSecurityScore(int(math.RoundToEven(float64(blend*30) + 70)))

	decision := model.DecisionReject
	if score >= model.SecurityThreshold {
		decision = model.DecisionAccept
	}

	keywordReason := "no keywords configured"
	if len(keywords) > 0 {
		keywordReason = fmt.Sprintf("%d/%d keywords matched", hits, len(keywords))
	}
	priceReason := "price outside range"
	if inRange == 1.0 {
		priceReason = "price within desired range"
	}

	return model.EvaluationResult{
		SecurityScore: score,
		Relevant:      hitRatio > 0,
		Reasons:       []string{keywordReason, priceReason},
		FinalDecision: decision,
	}
}

// Package security assigns a trust score and accept/reject decision to
// candidate listings, using an LLM oracle when one is configured and a
// deterministic heuristic otherwise.
package security

import (
	"context"
	"log/slog"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/model"
)

// Evaluator produces security evaluations. Oracle failures fall back to the
// heuristic for the affected pair and are only logged.
type Evaluator struct {
	oracle Oracle
	logger *slog.Logger
}

// NewEvaluator creates an evaluator. A nil oracle selects the heuristic path
// for every listing.
func NewEvaluator(oracle Oracle, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		oracle: oracle,
		logger: logger,
	}
}

// Evaluate scores listing for profile.
func (e *Evaluator) Evaluate(ctx context.Context, profile model.Profile, listing model.Listing) model.EvaluationResult {
	if e.oracle == nil {
		return Heuristic(profile, listing.CandidateListing)
	}

	res := e.oracle.Assess(ctx, profile, listing)
	if !res.OK() {
		e.logger.Warn("oracle unavailable, using heuristic",
			"profile", profile.Name,
			"url", listing.URL,
			"reason", res.Reason)
		return Heuristic(profile, listing.CandidateListing)
	}

	return Reconcile(res.Result)
}

// ModelTag names the configured evaluation path. It reflects configuration,
// not which path scored a given listing.
func (e *Evaluator) ModelTag() string {
	if e.oracle == nil {
		return HeuristicModelTag
	}
	return e.oracle.Model()
}

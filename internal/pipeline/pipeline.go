// Package pipeline runs the evaluation pass: every profile against every
// candidate listing, scored, evaluated, stored and, when accepted, announced.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/matcher"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/model"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/notify"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/service"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/source"
)

// Evaluator assigns the security verdict for one (profile, listing) pair.
type Evaluator interface {
	Evaluate(ctx context.Context, profile model.Profile, listing model.Listing) model.EvaluationResult
	ModelTag() string
}

// Summary contains statistics about one run.
type Summary struct {
	RunID         string        `json:"run_id"`
	Processed     int           `json:"processed"`
	Sent          int           `json:"sent"`
	Accepted      int           `json:"accepted"`
	Rejected      int           `json:"rejected"`
	Failed        int           `json:"failed"`
	NotConfigured int           `json:"not_configured"`
	Duration      time.Duration `json:"duration"`
}

// ProgressFunc is called after each processed pair.
type ProgressFunc func(done, total int)

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithProgress registers a progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(p *Pipeline) {
		p.progress = fn
	}
}

// Pipeline orchestrates runs. Runs are serialized; a second Run waits for
// the first to finish.
type Pipeline struct {
	profiles  service.ProfileStore
	listings  service.ListingStore
	source    source.Source
	evaluator Evaluator
	notifier  notify.Notifier
	logger    *slog.Logger
	progress  ProgressFunc
	mu        sync.Mutex
}

// New creates a pipeline from its collaborators.
func New(
	profiles service.ProfileStore,
	listings service.ListingStore,
	src source.Source,
	evaluator Evaluator,
	notifier notify.Notifier,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		profiles:  profiles,
		listings:  listings,
		source:    src,
		evaluator: evaluator,
		notifier:  notifier,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run performs one pass. Oracle and notification failures only affect the
// pair being processed. Failing to load inputs or to persist a listing ends
// the run; the summary gathered so far is returned with the error.
func (p *Pipeline) Run(ctx context.Context) (summary Summary, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	startTime := time.Now()
	summary.RunID = uuid.NewString()
	logger := p.logger.With("run_id", summary.RunID)

	defer func() {
		summary.Duration = time.Since(startTime)
	}()

	profiles, err := p.profiles.ListProfiles(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to load profiles: %w", err)
	}
	if len(profiles) == 0 {
		logger.Info("No profiles configured, nothing to do")
		return summary, nil
	}

	candidates, err := p.source.Fetch(ctx)
	if err != nil {
		return summary, fmt.Errorf("failed to fetch listings: %w", err)
	}

	modelTag := p.evaluator.ModelTag()
	total := len(profiles) * len(candidates)

	logger.Info("Starting run",
		"profiles", len(profiles),
		"listings", len(candidates),
		"ai_model", modelTag)

	for _, profile := range profiles {
		logger.Debug("Processing profile", "profile", profile.Name)

		for _, candidate := range candidates {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return summary, fmt.Errorf("run interrupted: %w", ctxErr)
			}

			summary.Processed++
			if pairErr := p.processPair(ctx, logger, profile, candidate, modelTag, &summary); pairErr != nil {
				return summary, pairErr
			}

			if p.progress != nil {
				p.progress(summary.Processed, total)
			}
		}
	}

	logger.Info("Run complete",
		"processed", summary.Processed,
		"sent", summary.Sent,
		"accepted", summary.Accepted,
		"rejected", summary.Rejected,
		"duration", time.Since(startTime))

	return summary, nil
}

func (p *Pipeline) processPair(
	ctx context.Context,
	logger *slog.Logger,
	profile model.Profile,
	candidate model.CandidateListing,
	modelTag string,
	summary *Summary,
) error {
	listing := model.NewListing(candidate, profile.Name)
	listing.Score, listing.Reason = matcher.Match(candidate, profile)

	result := p.evaluator.Evaluate(ctx, profile, listing)
	listing.SecurityScore = result.SecurityScore
	listing.AIModel = modelTag
	listing.AIReasons = model.JoinReasons(result.Reasons)
	listing.Status = model.StatusFor(result)

	id, err := p.listings.UpsertListing(ctx, &listing, profile.Name)
	if err != nil {
		return fmt.Errorf("failed to store listing %s for profile %q: %w", listing.URL, profile.Name, err)
	}
	listing.ID = id

	if !listing.IsAccepted() {
		summary.Rejected++
		logger.Info("Rejected listing",
			"profile", profile.Name,
			"title", listing.Title,
			"security_score", listing.SecurityScore)
		return nil
	}

	summary.Accepted++
	outcome := p.notifier.Notify(ctx, listing, profile)

	attrs := []any{
		"profile", profile.Name,
		"title", listing.Title,
		"score", fmt.Sprintf("%.2f", listing.Score),
		"security_score", listing.SecurityScore,
	}
	switch outcome {
	case notify.Sent:
		summary.Sent++
		logger.Info("Sent notification", attrs...)
	case notify.NotConfigured:
		summary.NotConfigured++
		logger.Info("Skipped notification, channel not configured", attrs...)
	default:
		summary.Failed++
		logger.Warn("Failed to send notification", attrs...)
	}
	return nil
}

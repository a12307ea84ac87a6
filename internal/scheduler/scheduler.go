// Package scheduler wires up the cron job that periodically triggers a
// pipeline run.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/robfig/cron/v3"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/pipeline"
)

// Runner performs one pipeline pass.
type Runner interface {
	Run(ctx context.Context) (pipeline.Summary, error)
}

// Scheduler wraps robfig/cron and manages the run loop.
type Scheduler struct {
	cron   *cron.Cron
	runner Runner
	logger *slog.Logger
	spec   string // cron spec, e.g. "@every 6h"
}

// New creates a Scheduler firing on spec. The spec is validated up front.
func New(runner Runner, spec string, logger *slog.Logger) (*Scheduler, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if _, err := cron.ParseStandard(spec); err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	cronLogger := slogCronLogger{logger: logger}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(cronLogger),
			cron.WithChain(cron.Recover(cronLogger), cron.SkipIfStillRunning(cronLogger)),
		),
		runner: runner,
		logger: logger,
		spec:   spec,
	}, nil
}

// Start registers the job and starts the scheduler. Also runs one pass
// immediately so results show up without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.runOnce(ctx)
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}

	s.cron.Start()
	s.logger.Info("Scheduler started", "spec", s.spec)

	// Run immediately on startup (non-blocking)
	go s.runOnce(ctx)

	return nil
}

// Stop halts the scheduler and waits for a running job to finish or ctx to
// expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
	s.logger.Info("Scheduler stopped")
}

func (s *Scheduler) runOnce(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}

	summary, err := s.runner.Run(ctx)
	if err != nil {
		s.logger.Error("Scheduled run failed",
			"run_id", summary.RunID,
			"processed", summary.Processed,
			"error", err)
		return
	}
	s.logger.Debug("Scheduled run finished", "run_id", summary.RunID)
}

// slogCronLogger adapts slog to cron.Logger.
type slogCronLogger struct {
	logger *slog.Logger
}

func (l slogCronLogger) Info(msg string, keysAndValues ...any) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l slogCronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}

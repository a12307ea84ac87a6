package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/scheduler"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/server"
)

const schedulerStopTimeout = 30 * time.Second

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the trigger endpoint and run on a schedule",
		Long: `Start the HTTP server (POST /run-worker, GET /api/listings, GET /health)
and, unless --no-schedule is given, a scheduler that runs the pipeline
immediately and then on every tick of the configured schedule.`,
		RunE: runServe,
	}

	cmd.Flags().String("addr", "", "Listen address (default from config, :8000)")
	cmd.Flags().String("schedule", "", `Cron spec for scheduled runs (default "@every 6h")`)
	cmd.Flags().Bool("no-schedule", false, "Only run when triggered over HTTP")
	cmd.Flags().String("listings", "", "YAML or JSON file with candidate listings")

	return cmd
}

func runServe(cmd *cobra.Command, _ []string) error {
	addr, _ := cmd.Flags().GetString("addr")
	schedule, _ := cmd.Flags().GetString("schedule")
	noSchedule, _ := cmd.Flags().GetBool("no-schedule")
	listingsPath, _ := cmd.Flags().GetString("listings")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if addr != "" {
		cfg.Server.Addr = addr
	}
	if schedule != "" {
		cfg.Schedule = schedule
	}

	logger := slog.Default()
	if cfg.TriggerSecret == "" {
		logger.Warn("TRIGGER_SECRET is not set, /run-worker will reject every request")
	}

	store, err := initStorage(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	p, err := buildPipeline(cfg, store, listingsPath, logger)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(cmd.Context())

	if !noSchedule {
		sched, err := scheduler.New(p, cfg.Schedule, logger)
		if err != nil {
			return err
		}
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("failed to start scheduler: %w", err)
		}
		g.Go(func() error {
			<-ctx.Done()
			stopCtx, cancel := context.WithTimeout(context.Background(), schedulerStopTimeout)
			defer cancel()
			sched.Stop(stopCtx)
			return nil
		})
	}

	srv := server.New(p, store, cfg.TriggerSecret, logger)
	g.Go(func() error {
		return srv.ListenAndServe(ctx, cfg.Server.Addr)
	})

	return g.Wait()
}

package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/cli"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/pipeline"
)

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Evaluate listings once",
		Long: `Run a single pass: every profile is matched against every listing,
each pair gets a security verdict, results are stored and accepted
listings are announced.

Without --listings the built-in sample listings are used.`,
		RunE: runOnce,
	}

	cmd.Flags().String("listings", "", "YAML or JSON file with candidate listings")
	cmd.Flags().Bool("json", false, "Print the run summary as JSON")
	cmd.Flags().Bool("quiet", false, "Hide the progress bar")

	return cmd
}

func runOnce(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	listingsPath, _ := cmd.Flags().GetString("listings")
	asJSON, _ := cmd.Flags().GetBool("json")
	quiet, _ := cmd.Flags().GetBool("quiet")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := initStorage(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStorage(store)

	var opts []pipeline.Option
	if !quiet && !asJSON {
		opts = append(opts, pipeline.WithProgress(cli.NewRunProgress(os.Stderr).Func()))
	}

	p, err := buildPipeline(cfg, store, listingsPath, slog.Default(), opts...)
	if err != nil {
		return err
	}

	summary, runErr := p.Run(ctx)

	if asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(summary); err != nil {
			return fmt.Errorf("failed to encode summary: %w", err)
		}
	} else if err := cli.WriteSummary(os.Stdout, summary); err != nil {
		slog.Warn("Failed to write summary", "error", err)
	}

	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}
	return nil
}

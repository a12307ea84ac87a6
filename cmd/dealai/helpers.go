package main

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/spf13/viper"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/config"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/llm"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/notify"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/pipeline"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/security"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/service"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/source"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/storage"
)

// oracleTemperature and oracleMaxTokens keep oracle answers short and stable.
const (
	oracleTemperature = 0
	oracleMaxTokens   = 120
)

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}
	return cfg, nil
}

// initStorage opens the configured backend and brings its schema up to date.
func initStorage(ctx context.Context, cfg *config.Config) (service.Storage, error) {
	store, err := storage.Open(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}

	if err := store.Migrate(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return store, nil
}

func closeStorage(store service.Storage) {
	if err := store.Close(); err != nil {
		slog.Error("failed to close storage", "error", err)
	}
}

// buildEvaluator returns an oracle-backed evaluator when a credential is
// configured, and the heuristic-only evaluator otherwise.
func buildEvaluator(cfg config.OracleConfig, logger *slog.Logger) (*security.Evaluator, error) {
	if !cfg.Enabled() {
		logger.Info("No oracle credential configured, using heuristic evaluation")
		return security.NewEvaluator(nil, logger), nil
	}

	client, err := llm.NewClient(llm.Config{
		Provider:    cfg.Provider,
		APIKey:      cfg.Credential,
		Model:       cfg.ModelName,
		BaseURL:     cfg.BaseURL,
		Timeout:     cfg.Timeout,
		Temperature: oracleTemperature,
		MaxTokens:   oracleMaxTokens,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oracle client: %w", err)
	}

	return security.NewEvaluator(security.NewLLMOracle(client), logger), nil
}

// buildSource picks the listing source: a file when given, the built-in
// sample listings otherwise.
func buildSource(listingsPath string) source.Source {
	if listingsPath != "" {
		return source.NewFileSource(config.ExpandPath(listingsPath))
	}
	return source.NewMockSource()
}

func buildPipeline(
	cfg *config.Config,
	store service.Storage,
	listingsPath string,
	logger *slog.Logger,
	opts ...pipeline.Option,
) (*pipeline.Pipeline, error) {
	evaluator, err := buildEvaluator(cfg.Oracle, logger)
	if err != nil {
		return nil, err
	}

	notifier := notify.NewTelegramNotifier(cfg.Notification, cfg.PublicBaseURL, logger)

	opts = append([]pipeline.Option{pipeline.WithLogger(logger)}, opts...)
	return pipeline.New(store, store, buildSource(listingsPath), evaluator, notifier, opts...), nil
}

// parsePrice converts a user-entered amount like "350" or "349.99" into minor
// units. An empty string means no bound.
func parsePrice(raw string) (*int64, error) {
	raw = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(raw), "£"))
	if raw == "" {
		return nil, nil
	}

	amount, err := decimal.NewFromString(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid price %q: %w", raw, err)
	}
	if amount.IsNegative() {
		return nil, fmt.Errorf("invalid price %q: must not be negative", raw)
	}

	cents := amount.Shift(2)
	if !cents.IsInteger() {
		return nil, fmt.Errorf("invalid price %q: at most two decimal places", raw)
	}

	v := cents.IntPart()
	return &v, nil
}

func parseID(raw string) (int64, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return id, nil
}

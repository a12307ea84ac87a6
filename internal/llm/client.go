package llm

import (
	"context"
	"time"
)

// Client defines the interface for LLM providers.
type Client interface {
	// Analyze sends prompt with the given system instruction and returns the
	// raw completion text.
	Analyze(ctx context.Context, prompt string, systemPrompt string) (string, error)
	// Model names the model the client talks to.
	Model() string
}

// Config holds configuration for an LLM client.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string // Empty selects the provider's public endpoint
	Timeout     time.Duration
	Temperature float64
	MaxTokens   int
}

const (
	defaultMaxTokens = 120
	defaultTimeout   = 30 * time.Second
)

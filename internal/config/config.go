// Package config provides configuration utilities for the application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/common"
)

// Defaults applied when neither the config file nor the environment set a value.
const (
	DefaultDatabasePath    = "$HOME/.local/share/dealai/dealai.db"
	DefaultServerAddr      = ":8000"
	DefaultPublicBaseURL   = "http://127.0.0.1:8000"
	DefaultSchedule        = "@every 6h"
	DefaultOpenAIModel     = "gpt-4o-mini"
	DefaultAnthropicModel  = "claude-3-5-haiku-latest"
	DefaultOracleTimeout   = 30 * time.Second
	DefaultNotifierTimeout = 20 * time.Second
)

// Config is the fully resolved runtime configuration. It is built once at
// startup and injected into the components that need it.
type Config struct {
	Database      DatabaseConfig
	Server        ServerConfig
	PublicBaseURL string
	TriggerSecret string
	Schedule      string
	Notification  NotificationConfig
	Oracle        OracleConfig
}

// OracleConfig configures the external security scoring oracle.
type OracleConfig struct {
	Provider   string // openai or anthropic
	Credential string // Empty disables the oracle path
	ModelName  string
	BaseURL    string // Overrides the provider endpoint, mostly for tests and proxies
	Timeout    time.Duration
}

// Enabled reports whether the oracle path is configured.
func (o OracleConfig) Enabled() bool {
	return o.Credential != ""
}

// NotificationConfig configures the outbound alert channel.
type NotificationConfig struct {
	Token          string
	DefaultChannel string
	APIBaseURL     string
	Timeout        time.Duration
}

// DatabaseConfig selects and locates the listing store.
type DatabaseConfig struct {
	Driver string // sqlite or postgres
	Path   string // SQLite file path
	DSN    string // PostgreSQL connection string
}

// ServerConfig configures the HTTP trigger surface.
type ServerConfig struct {
	Addr string
}

// Load resolves configuration with this precedence:
// 1. Viper configuration (config file or DEALAI_ env vars)
// 2. Direct environment variables (OPENAI_API_KEY, TELEGRAM_BOT_TOKEN, ...)
// 3. Default values
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{
		Oracle: OracleConfig{
			Provider:   strings.ToLower(firstNonEmpty(v.GetString("oracle.provider"), "openai")),
			Credential: v.GetString("oracle.credential"),
			ModelName:  v.GetString("oracle.model_name"),
			BaseURL:    v.GetString("oracle.base_url"),
			Timeout:    v.GetDuration("oracle.timeout"),
		},
		Notification: NotificationConfig{
			Token:          v.GetString("notification.token"),
			DefaultChannel: v.GetString("notification.default_channel"),
			APIBaseURL:     v.GetString("notification.api_base_url"),
			Timeout:        v.GetDuration("notification.timeout"),
		},
		PublicBaseURL: v.GetString("public_base_url"),
		TriggerSecret: v.GetString("trigger_secret"),
		Schedule:      v.GetString("schedule"),
		Database: DatabaseConfig{
			Driver: strings.ToLower(firstNonEmpty(v.GetString("database.driver"), "sqlite")),
			Path:   v.GetString("database.path"),
			DSN:    v.GetString("database.dsn"),
		},
		Server: ServerConfig{
			Addr: v.GetString("server.addr"),
		},
	}

	// Override with direct environment variables if not set
	switch cfg.Oracle.Provider {
	case "openai":
		cfg.Oracle.Credential = firstNonEmpty(cfg.Oracle.Credential, os.Getenv("OPENAI_API_KEY"))
		cfg.Oracle.ModelName = firstNonEmpty(cfg.Oracle.ModelName, os.Getenv("OPENAI_MODEL"), DefaultOpenAIModel)
	case "anthropic":
		cfg.Oracle.Credential = firstNonEmpty(cfg.Oracle.Credential, os.Getenv("ANTHROPIC_API_KEY"))
		cfg.Oracle.ModelName = firstNonEmpty(cfg.Oracle.ModelName, os.Getenv("ANTHROPIC_MODEL"), DefaultAnthropicModel)
	default:
		return nil, fmt.Errorf("%w: unsupported oracle provider %q", common.ErrInvalidConfig, cfg.Oracle.Provider)
	}

	cfg.Notification.Token = firstNonEmpty(cfg.Notification.Token, os.Getenv("TELEGRAM_BOT_TOKEN"))
	cfg.Notification.DefaultChannel = firstNonEmpty(cfg.Notification.DefaultChannel, os.Getenv("TELEGRAM_CHAT_ID"))
	cfg.PublicBaseURL = strings.TrimRight(firstNonEmpty(cfg.PublicBaseURL, os.Getenv("PUBLIC_BASE_URL"), DefaultPublicBaseURL), "/")
	cfg.TriggerSecret = firstNonEmpty(cfg.TriggerSecret, os.Getenv("TRIGGER_SECRET"))
	cfg.Schedule = firstNonEmpty(cfg.Schedule, DefaultSchedule)
	cfg.Server.Addr = firstNonEmpty(cfg.Server.Addr, DefaultServerAddr)
	cfg.Database.Path = ExpandPath(firstNonEmpty(cfg.Database.Path, DefaultDatabasePath))
	cfg.Database.DSN = firstNonEmpty(cfg.Database.DSN, os.Getenv("DATABASE_URL"))

	if cfg.Oracle.Timeout <= 0 {
		cfg.Oracle.Timeout = DefaultOracleTimeout
	}
	if cfg.Notification.Timeout <= 0 {
		cfg.Notification.Timeout = DefaultNotifierTimeout
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the resolved configuration for contradictions.
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return fmt.Errorf("%w: database.path", common.ErrMissingConfig)
		}
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("%w: database.dsn (or DATABASE_URL) is required for postgres", common.ErrMissingConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported database driver %q", common.ErrInvalidConfig, c.Database.Driver)
	}
	return nil
}

// ExpandPath expands ~ and environment variables in a file path.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	} else if path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			path = home
		}
	}

	return os.ExpandEnv(path)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

package storage

import (
	"context"
	"fmt"

	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/common"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/config"
	"github.com/TOKENGOOD/marketplace-ai-monitor/internal/service"
)

// Open connects to the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.DatabaseConfig) (service.Storage, error) {
	switch cfg.Driver {
	case "sqlite", "":
		store, err := NewSQLiteStorage(cfg.Path)
		if err != nil {
			return nil, err
		}
		return store, nil
	case "postgres":
		store, err := NewPostgresStorage(ctx, cfg.DSN)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("%w: unsupported database driver %q", common.ErrInvalidConfig, cfg.Driver)
	}
}

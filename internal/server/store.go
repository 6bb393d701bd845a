package server

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sakif/creator-outliers/internal/config"
	"github.com/sakif/creator-outliers/internal/repository"
	"github.com/sakif/creator-outliers/internal/repository/postgres"
	sqliteRepo "github.com/sakif/creator-outliers/internal/repository/sqlite"
)

// OpenStore opens the backend named by cfg.Driver.
//
// SQLite is the default: one file, no server, good for a single operator.
// Postgres is for deployments where the API and a cron runner share a
// database. Both run their migrations on open.
func OpenStore(ctx context.Context, cfg config.StorageConfig) (repository.Store, error) {
	switch cfg.Driver {
	case "", "sqlite":
		if cfg.DBPath != ":memory:" {
			if dir := filepath.Dir(cfg.DBPath); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return nil, fmt.Errorf("creating database directory %s: %w", dir, err)
				}
			}
		}
		return sqliteRepo.New(cfg.DBPath)
	case "postgres":
		return postgres.New(ctx, cfg.DatabaseURL, int32(cfg.MaxConns))
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}

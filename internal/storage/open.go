package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/lueurxax/idea-aggregator/internal/platform/config"
)

const (
	backupPrefix     = "backup_ideas_"
	backupDateLayout = "20060102"
	backupExt        = ".db"
)

// Open returns the backend selected by cfg.DBType. The hosted backend falls
// back to SQLite when it is not configured or cannot be reached; an unknown
// type also selects SQLite. An error is returned only if SQLite fails to open.
func Open(ctx context.Context, cfg *config.Config, logger *zerolog.Logger) (Store, error) {
	switch cfg.DBType {
	case config.DBTypeSupabase:
		if cfg.SupabaseDBURL == "" {
			logger.Warn().Msg("SUPABASE_DB_URL is not set, falling back to SQLite")

			break
		}

		store, err := NewPostgres(ctx, cfg.SupabaseDBURL, PoolOptions{MaxConns: cfg.DBMaxConnections}, logger)
		if err == nil {
			return store, nil
		}

		if ctx.Err() != nil {
			return nil, fmt.Errorf("open hosted store: %w", ctx.Err())
		}

		logger.Warn().Err(err).Msg("hosted database unavailable, falling back to SQLite")
	case config.DBTypeSQLite:
	default:
		logger.Warn().Str("db_type", cfg.DBType).Msg("unknown database type, using SQLite")
	}

	store, err := NewSQLite(ctx, cfg.SQLiteFile(), logger)
	if err != nil {
		return nil, fmt.Errorf("open sqlite store: %w", err)
	}

	return store, nil
}

// BackupPath names the daily snapshot file inside dir.
func BackupPath(dir string, now time.Time) string {
	return filepath.Join(dir, backupPrefix+now.Format(backupDateLayout)+backupExt)
}

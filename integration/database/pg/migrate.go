package pg

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
)

// Migrate applies pending goose migrations from cfg.MigrationsPath.
// Goose has no native pgx support, so the pool config is converted to a
// database/sql handle for the duration of the migration run.
// Returns ErrMigrationsDirNotFound when the directory does not exist,
// letting callers decide whether a missing directory is fatal.
func Migrate(ctx context.Context, pool *pgxpool.Pool, cfg Config, logger *slog.Logger) error {
	if _, err := os.Stat(cfg.MigrationsPath); os.IsNotExist(err) {
		return ErrMigrationsDirNotFound
	}

	db := stdlib.OpenDBFromPool(pool)
	defer func() {
		_ = db.Close()
	}()

	if cfg.MigrationsTable != "" {
		goose.SetTableName(cfg.MigrationsTable)
	}
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	logger.InfoContext(ctx, "applying database migrations", "path", cfg.MigrationsPath)

	if err := goose.UpContext(ctx, db, cfg.MigrationsPath); err != nil {
		return fmt.Errorf("%w: %w", ErrMigrationFailed, err)
	}

	return nil
}

package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ftpledger/ledger-api/internal/config"
	"github.com/ftpledger/ledger-api/internal/platform/postgres"
)

// handleMigrations runs one goose command against the configured database.
// The memory backend has no schema, so migrations require Postgres.
func handleMigrations(ctx context.Context, cfg *config.Config, command string, logger *slog.Logger) error {
	if cfg.Database.Driver != "postgres" {
		return fmt.Errorf("migrations require the postgres driver, configured driver is %q", cfg.Database.Driver)
	}

	db, err := postgres.Open(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("Error closing database connection", slog.String("error", err.Error()))
		}
	}()

	logger.Info("Executing migrations", slog.String("command", command))
	return postgres.Migrate(ctx, db, command, logger)
}

package main

import (
	"fmt"
	"log/slog"

	"github.com/ftpledger/ledger-api/internal/config"
)

// loadAppConfig loads the application configuration from environment variables or config file.
func loadAppConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	slog.Info("Server configuration loaded",
		slog.Int("port", cfg.Server.Port),
		slog.String("log_level", cfg.Server.LogLevel),
		slog.String("database_driver", cfg.Database.Driver),
		slog.String("lock_strategy", cfg.Transfer.LockStrategy))

	if cfg.Database.URL != "" {
		slog.Debug("Database configuration", slog.Bool("url_present", true))
	}
	if cfg.Redis.Enabled() {
		slog.Debug("Redis configuration", slog.Bool("addr_present", true))
	}

	return cfg, nil
}

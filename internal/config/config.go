package config

import (
	"fmt"
	"time"

	"github.com/ftpledger/ledger-api/internal/domain"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration.
// It organizes settings into logical groups for better maintainability.
type Config struct {
	Server   ServerConfig   `mapstructure:"server" validate:"required"`
	Database DatabaseConfig `mapstructure:"database" validate:"required"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Auth     AuthConfig     `mapstructure:"auth" validate:"required"`
	Transfer TransferConfig `mapstructure:"transfer" validate:"required"`
}

// ServerConfig contains all server-related configuration settings.
type ServerConfig struct {
	Port                   int    `mapstructure:"port" validate:"required,gt=0,lt=65536"`
	LogLevel               string `mapstructure:"log_level" validate:"required,oneof=debug info warn error"`
	ShutdownTimeoutSeconds int    `mapstructure:"shutdown_timeout_seconds" validate:"gt=0"`
}

// DatabaseConfig selects the storage backend. Only backends that can run a
// transfer in a single transaction are accepted.
type DatabaseConfig struct {
	Driver                 string `mapstructure:"driver" validate:"required,oneof=postgres memory"`
	URL                    string `mapstructure:"url" validate:"required_if=Driver postgres"`
	MaxOpenConns           int    `mapstructure:"max_open_conns" validate:"gte=1"`
	MaxIdleConns           int    `mapstructure:"max_idle_conns" validate:"gte=0"`
	ConnMaxLifetimeMinutes int    `mapstructure:"conn_max_lifetime_minutes" validate:"gte=0"`
}

// RedisConfig enables idempotent transfer submission and event streaming.
// An empty Addr disables both.
type RedisConfig struct {
	Addr                  string `mapstructure:"addr"`
	Password              string `mapstructure:"password"`
	DB                    int    `mapstructure:"db" validate:"gte=0"`
	IdempotencyTTLMinutes int    `mapstructure:"idempotency_ttl_minutes" validate:"gt=0"`
	EventStream           string `mapstructure:"event_stream" validate:"required"`
}

// Enabled reports whether a Redis server is configured.
func (c RedisConfig) Enabled() bool {
	return c.Addr != ""
}

// AuthConfig contains all authentication and authorization settings.
type AuthConfig struct {
	JWTSecret            string `mapstructure:"jwt_secret" validate:"required,min=32"`
	TokenLifetimeMinutes int    `mapstructure:"token_lifetime_minutes" validate:"gt=0"`
}

// TransferConfig tunes the transfer orchestrator.
type TransferConfig struct {
	// LockStrategy is read once at startup.
	LockStrategy string `mapstructure:"lock_strategy" validate:"required,oneof=in_process store_level IN_PROCESS STORE_LEVEL memory db MEMORY DB"`
	MinAmount    string `mapstructure:"min_amount" validate:"required"`
	MaxAmount    string `mapstructure:"max_amount" validate:"required"`
	// LockWaitTimeoutSeconds bounds row lock waits. Zero waits until the
	// request context is done.
	LockWaitTimeoutSeconds int `mapstructure:"lock_wait_timeout_seconds" validate:"gte=0"`
}

// AmountLimits parses the configured bounds.
func (c TransferConfig) AmountLimits() (domain.AmountLimits, error) {
	minAmount, err := decimal.NewFromString(c.MinAmount)
	if err != nil {
		return domain.AmountLimits{}, fmt.Errorf("invalid min_amount %q: %w", c.MinAmount, err)
	}
	maxAmount, err := decimal.NewFromString(c.MaxAmount)
	if err != nil {
		return domain.AmountLimits{}, fmt.Errorf("invalid max_amount %q: %w", c.MaxAmount, err)
	}
	if !minAmount.IsPositive() {
		return domain.AmountLimits{}, fmt.Errorf("min_amount must be positive, got %s", minAmount)
	}
	if minAmount.GreaterThan(maxAmount) {
		return domain.AmountLimits{}, fmt.Errorf("min_amount %s exceeds max_amount %s", minAmount, maxAmount)
	}
	return domain.AmountLimits{Min: minAmount, Max: maxAmount}, nil
}

// LockWaitTimeout returns the configured timeout as a duration; zero means unbounded.
func (c TransferConfig) LockWaitTimeout() time.Duration {
	return time.Duration(c.LockWaitTimeoutSeconds) * time.Second
}

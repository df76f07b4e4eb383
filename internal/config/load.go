package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable, e.g. LEDGER_SERVER_PORT.
const EnvPrefix = "LEDGER"

var defaults = map[string]any{
	"server.port":                        8080,
	"server.log_level":                   "info",
	"server.shutdown_timeout_seconds":    10,
	"database.driver":                    "memory",
	"database.url":                       "",
	"database.max_open_conns":            25,
	"database.max_idle_conns":            5,
	"database.conn_max_lifetime_minutes": 5,
	"redis.addr":                         "",
	"redis.password":                     "",
	"redis.db":                           0,
	"redis.idempotency_ttl_minutes":      60 * 24,
	"redis.event_stream":                 "ledger:transfers",
	"auth.jwt_secret":                    "",
	"auth.token_lifetime_minutes":        60,
	"transfer.lock_strategy":             "store_level",
	"transfer.min_amount":                "1.00",
	"transfer.max_amount":                "10000.00",
	"transfer.lock_wait_timeout_seconds": 0,
}

// Load configuration from environment variables and optionally a config.yaml
// in the working directory. Environment variables take precedence over values
// from the config file. Returns a populated Config or an error if
// loading or validation fails.
func Load() (*Config, error) {
	v := viper.New()

	// Every key needs a default, otherwise AutomaticEnv values are invisible
	// to Unmarshal.
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks struct tags and the cross-field rules tags cannot express.
func Validate(cfg *Config) error {
	if err := validator.New().Struct(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	if _, err := cfg.Transfer.AmountLimits(); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

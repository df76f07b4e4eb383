// Package config handles configuration loading, parsing, and validation
// from environment variables (prefix LEDGER_) and an optional config.yaml.
// It provides type-safe access to settings such as the storage backend and
// the transfer lock strategy, which is read once at startup.
package config

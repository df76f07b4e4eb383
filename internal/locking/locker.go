// Package locking provides the account lock strategies used by the transfer
// orchestrator. A strategy is chosen once at startup and never switched while
// the process runs.
package locking

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/ftpledger/ledger-api/internal/store"
	"github.com/google/uuid"
)

// Strategy names a lock implementation.
type Strategy string

// Available strategies.
const (
	// StrategyInProcess serialises same-account transfers with mutexes held in
	// this process. It is only correct when a single instance serves an account.
	StrategyInProcess Strategy = "in_process"
	// StrategyStoreLevel takes a pessimistic row lock in the store, valid
	// across any number of instances sharing the database.
	StrategyStoreLevel Strategy = "store_level"
)

// ParseStrategy accepts the canonical names plus the MEMORY and DB aliases,
// case-insensitively.
func ParseStrategy(s string) (Strategy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "in_process", "memory":
		return StrategyInProcess, nil
	case "store_level", "db":
		return StrategyStoreLevel, nil
	default:
		return "", fmt.Errorf("unknown lock strategy %q", s)
	}
}

// Handle releases a lock obtained from a Locker. Unlock is idempotent and
// safe to call after a failed transfer or a cancelled context.
type Handle interface {
	Unlock(ctx context.Context)
}

// Locker grants exclusive access to one account for the duration of a
// transfer. accounts must be bound to the transaction the transfer runs in;
// the in-process strategy ignores it.
type Locker interface {
	Lock(ctx context.Context, accounts store.AccountStore, accountID uuid.UUID) (Handle, error)
	Strategy() Strategy
}

// New builds the Locker for strategy.
func New(strategy Strategy, logger *slog.Logger) (Locker, error) {
	switch strategy {
	case StrategyInProcess:
		return NewMutexLocker(logger), nil
	case StrategyStoreLevel:
		return NewRowLocker(logger), nil
	default:
		return nil, fmt.Errorf("unknown lock strategy %q", strategy)
	}
}

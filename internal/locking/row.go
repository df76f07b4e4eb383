package locking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/ftpledger/ledger-api/internal/domain"
	"github.com/ftpledger/ledger-api/internal/platform/logger"
	"github.com/ftpledger/ledger-api/internal/store"
	"github.com/google/uuid"
)

// RowLocker takes a pessimistic write lock on the account row through the
// transaction-bound store. The lock lives as long as the transaction.
type RowLocker struct {
	logger *slog.Logger
}

// NewRowLocker creates a store-level locker.
func NewRowLocker(l *slog.Logger) *RowLocker {
	if l == nil {
		l = slog.Default()
	}
	return &RowLocker{logger: l.With(slog.String("component", "row_locker"))}
}

var _ Locker = (*RowLocker)(nil)

// Strategy implements Locker.
func (r *RowLocker) Strategy() Strategy {
	return StrategyStoreLevel
}

// Lock reads the account FOR UPDATE. A missing account fails immediately
// with domain.ErrAccountNotFound.
func (r *RowLocker) Lock(
	ctx context.Context,
	accounts store.AccountStore,
	accountID uuid.UUID,
) (Handle, error) {
	if accounts == nil {
		return nil, errors.New("row locker requires a transaction-bound account store")
	}

	if _, err := accounts.GetForUpdate(ctx, accountID); err != nil {
		if errors.Is(err, store.ErrAccountNotFound) {
			return nil, fmt.Errorf("lock account %s: %w", accountID, domain.ErrAccountNotFound)
		}
		return nil, fmt.Errorf("lock account %s: %w", accountID, err)
	}

	logger.FromContextOrDefault(ctx, r.logger).Debug("account row locked",
		slog.String("account_id", accountID.String()))
	return rowHandle{accountID: accountID, logger: r.logger}, nil
}

type rowHandle struct {
	accountID uuid.UUID
	logger    *slog.Logger
}

// Unlock is a hint only: the row lock is released when the transaction
// commits or rolls back.
func (h rowHandle) Unlock(ctx context.Context) {
	logger.FromContextOrDefault(ctx, h.logger).Debug("row lock release deferred to transaction end",
		slog.String("account_id", h.accountID.String()))
}

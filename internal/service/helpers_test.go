package service

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"

	"github.com/ftpledger/ledger-api/internal/domain"
	"github.com/ftpledger/ledger-api/internal/locking"
	"github.com/ftpledger/ledger-api/internal/platform/memory"
	"github.com/ftpledger/ledger-api/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// spyLocker counts lock and unlock calls around a real Locker.
type spyLocker struct {
	inner   locking.Locker
	locks   atomic.Int32
	unlocks atomic.Int32
}

func (s *spyLocker) Lock(ctx context.Context, accounts store.AccountStore, id uuid.UUID) (locking.Handle, error) {
	s.locks.Add(1)
	h, err := s.inner.Lock(ctx, accounts, id)
	if err != nil {
		return nil, err
	}
	return &spyHandle{inner: h, spy: s}, nil
}

func (s *spyLocker) Strategy() locking.Strategy { return s.inner.Strategy() }

type spyHandle struct {
	inner locking.Handle
	spy   *spyLocker
	once  atomic.Bool
}

func (h *spyHandle) Unlock(ctx context.Context) {
	if h.once.CompareAndSwap(false, true) {
		h.spy.unlocks.Add(1)
	}
	h.inner.Unlock(ctx)
}

type fixture struct {
	db        *memory.DB
	stores    store.Stores
	locker    *spyLocker
	transfers TransferService
	accounts  AccountService
}

func newFixture(t *testing.T, strategy locking.Strategy) *fixture {
	t.Helper()

	db := memory.New(discardLogger())
	stores := db.Stores()
	inner, err := locking.New(strategy, discardLogger())
	require.NoError(t, err)
	spy := &spyLocker{inner: inner}

	transfers, err := NewTransferService(stores, spy, domain.DefaultAmountLimits(), nil, discardLogger())
	require.NoError(t, err)
	accounts, err := NewAccountService(stores.Accounts, discardLogger())
	require.NoError(t, err)

	return &fixture{db: db, stores: stores, locker: spy, transfers: transfers, accounts: accounts}
}

func (f *fixture) account(t *testing.T, balance string) *domain.Account {
	t.Helper()
	a, err := f.accounts.CreateAccount(context.Background(), uuid.New(), dec(balance))
	require.NoError(t, err)
	return a
}

func (f *fixture) balance(t *testing.T, id uuid.UUID) decimal.Decimal {
	t.Helper()
	a, err := f.stores.Accounts.GetByID(context.Background(), id)
	require.NoError(t, err)
	return a.Balance
}

func (f *fixture) ledger(t *testing.T) []*domain.Transfer {
	t.Helper()
	all, err := f.transfers.ListTransfers(context.Background())
	require.NoError(t, err)
	return all
}

var strategies = []locking.Strategy{locking.StrategyInProcess, locking.StrategyStoreLevel}

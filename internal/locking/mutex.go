package locking

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ftpledger/ledger-api/internal/platform/logger"
	"github.com/ftpledger/ledger-api/internal/store"
	"github.com/google/uuid"
)

// MutexLocker keeps one lock per account id in memory.
//
// Entries are created on first use and never evicted, so memory grows with
// the number of distinct senders seen by the process.
type MutexLocker struct {
	mu     sync.Mutex
	locks  map[uuid.UUID]chan struct{}
	logger *slog.Logger
}

// NewMutexLocker creates an empty in-process locker.
func NewMutexLocker(l *slog.Logger) *MutexLocker {
	if l == nil {
		l = slog.Default()
	}
	return &MutexLocker{
		locks:  make(map[uuid.UUID]chan struct{}),
		logger: l.With(slog.String("component", "mutex_locker")),
	}
}

var _ Locker = (*MutexLocker)(nil)

// Strategy implements Locker.
func (m *MutexLocker) Strategy() Strategy {
	return StrategyInProcess
}

// slot returns the lock for id, creating it under m.mu so that two callers
// can never end up holding different lock objects for the same account.
func (m *MutexLocker) slot(id uuid.UUID) chan struct{} {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, ok := m.locks[id]
	if !ok {
		ch = make(chan struct{}, 1)
		m.locks[id] = ch
	}
	return ch
}

// Lock blocks until the account is free or ctx is done. The store is not
// consulted, so a missing account is only detected by the caller's reload.
func (m *MutexLocker) Lock(
	ctx context.Context,
	_ store.AccountStore,
	accountID uuid.UUID,
) (Handle, error) {
	log := logger.FromContextOrDefault(ctx, m.logger)
	ch := m.slot(accountID)

	select {
	case ch <- struct{}{}:
	default:
		log.Debug("waiting for account lock", slog.String("account_id", accountID.String()))
		select {
		case ch <- struct{}{}:
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire lock for account %s: %w", accountID, ctx.Err())
		}
	}

	log.Debug("account lock acquired", slog.String("account_id", accountID.String()))
	return &mutexHandle{ch: ch, accountID: accountID, logger: m.logger}, nil
}

// size reports how many accounts have a lock entry.
func (m *MutexLocker) size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

type mutexHandle struct {
	once      sync.Once
	ch        chan struct{}
	accountID uuid.UUID
	logger    *slog.Logger
}

// Unlock releases the slot exactly once; later calls are no-ops.
func (h *mutexHandle) Unlock(ctx context.Context) {
	h.once.Do(func() {
		<-h.ch
		logger.FromContextOrDefault(ctx, h.logger).Debug("account lock released",
			slog.String("account_id", h.accountID.String()))
	})
}

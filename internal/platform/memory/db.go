// Package memory is a single-process transactional backend for accounts and
// the transfer ledger. Writes are staged per transaction and applied on
// commit; rows touched for update are write-locked until the transaction ends,
// mirroring how the Postgres backend behaves under READ COMMITTED. A lock
// request that would close a wait cycle fails with store.ErrConflict, the way
// Postgres reports a deadlock.
package memory

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/ftpledger/ledger-api/internal/domain"
	"github.com/ftpledger/ledger-api/internal/platform/logger"
	"github.com/ftpledger/ledger-api/internal/store"
	"github.com/google/uuid"
)

// DefaultLockWait is zero: a transaction waits for a row lock until its
// context is done.
const DefaultLockWait time.Duration = 0

// DB holds committed state and the per-row write locks.
type DB struct {
	mu        sync.RWMutex
	accounts  map[uuid.UUID]domain.Account
	transfers []domain.Transfer

	// locksMu guards locks and the wait state of every memTx.
	locksMu sync.Mutex
	locks   map[uuid.UUID]*rowLock

	lockWait time.Duration
	logger   *slog.Logger
}

// Option configures a DB.
type Option func(*DB)

// WithLockWait bounds how long a transaction waits for a row lock. Zero
// waits until the context is done.
func WithLockWait(d time.Duration) Option {
	return func(db *DB) {
		if d >= 0 {
			db.lockWait = d
		}
	}
}

// New creates an empty database.
func New(l *slog.Logger, opts ...Option) *DB {
	if l == nil {
		l = slog.Default()
	}
	db := &DB{
		accounts: make(map[uuid.UUID]domain.Account),
		locks:    make(map[uuid.UUID]*rowLock),
		lockWait: DefaultLockWait,
		logger:   l.With(slog.String("component", "memory_db")),
	}
	for _, opt := range opts {
		opt(db)
	}
	return db
}

// Stores returns auto-committing store views plus the unit of work.
func (db *DB) Stores() store.Stores {
	return store.Stores{
		Accounts:  &AccountStore{db: db},
		Transfers: &TransferStore{db: db},
		UoW:       db,
	}
}

var _ store.UnitOfWork = (*DB)(nil)

// Do implements store.UnitOfWork.
func (db *DB) Do(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) (err error) {
	log := logger.FromContextOrDefault(ctx, db.logger)
	t := db.begin()

	defer func() {
		if p := recover(); p != nil {
			t.rollback()
			log.Error("rolled back transaction after panic", slog.Any("panic", p))
			// ALLOW-PANIC: propagating caught panic from transaction
			panic(p)
		}
	}()

	if err = fn(ctx, t); err != nil {
		t.rollback()
		log.Debug("rolled back transaction due to error", slog.String("error", err.Error()))
		return err
	}

	t.commit()
	log.Debug("transaction committed")
	return nil
}

// run executes fn in its own transaction; used by the auto-commit views.
func (db *DB) run(ctx context.Context, fn func(t *memTx) error) error {
	return db.Do(ctx, func(_ context.Context, tx store.Tx) error {
		return fn(tx.(*memTx))
	})
}

func (db *DB) begin() *memTx {
	return &memTx{
		db:      db,
		staged:  make(map[uuid.UUID]domain.Account),
		deleted: make(map[uuid.UUID]bool),
		held:    make(map[uuid.UUID]bool),
	}
}

// rowLock is a write lock owned by at most one transaction. free is closed
// and replaced on every release to wake the waiters.
type rowLock struct {
	owner *memTx
	free  chan struct{}
}

// acquire grants id to t, or returns the channel to wait on. It fails with
// store.ErrConflict when waiting would deadlock.
func (db *DB) acquire(t *memTx, id uuid.UUID) (<-chan struct{}, error) {
	db.locksMu.Lock()
	defer db.locksMu.Unlock()

	l, ok := db.locks[id]
	if !ok {
		l = &rowLock{free: make(chan struct{})}
		db.locks[id] = l
	}
	if l.owner == nil || l.owner == t {
		l.owner = t
		t.waiting = false
		return nil, nil
	}

	// Follow owner -> the row it waits for -> that row's owner. Reaching t
	// means t would wait on itself.
	for cur, hops := l.owner, 0; cur != nil && hops <= len(db.locks); hops++ {
		if cur == t {
			t.waiting = false
			return nil, fmt.Errorf("row %s: deadlock detected: %w", id, store.ErrConflict)
		}
		if !cur.waiting {
			break
		}
		next, ok := db.locks[cur.waitingFor]
		if !ok {
			break
		}
		cur = next.owner
	}

	t.waiting = true
	t.waitingFor = id
	return l.free, nil
}

func (db *DB) stopWaiting(t *memTx) {
	db.locksMu.Lock()
	t.waiting = false
	db.locksMu.Unlock()
}

func (db *DB) releaseAll(t *memTx, ids map[uuid.UUID]bool) {
	db.locksMu.Lock()
	defer db.locksMu.Unlock()
	for id := range ids {
		l, ok := db.locks[id]
		if !ok || l.owner != t {
			continue
		}
		l.owner = nil
		close(l.free)
		l.free = make(chan struct{})
	}
}

// memTx is one transaction. It is used by a single goroutine.
type memTx struct {
	db        *DB
	staged    map[uuid.UUID]domain.Account
	deleted   map[uuid.UUID]bool
	transfers []domain.Transfer
	held      map[uuid.UUID]bool
	done      bool

	waiting    bool
	waitingFor uuid.UUID
}

var _ store.Tx = (*memTx)(nil)

func (t *memTx) Accounts() store.AccountStore {
	return &AccountStore{db: t.db, tx: t}
}

func (t *memTx) Transfers() store.TransferStore {
	return &TransferStore{db: t.db, tx: t}
}

// lockRow takes the write lock on id for the rest of the transaction.
func (t *memTx) lockRow(ctx context.Context, id uuid.UUID) error {
	if t.held[id] {
		return nil
	}

	var expired <-chan time.Time
	if t.db.lockWait > 0 {
		timer := time.NewTimer(t.db.lockWait)
		defer timer.Stop()
		expired = timer.C
	}

	for {
		free, err := t.db.acquire(t, id)
		if err != nil {
			return err
		}
		if free == nil {
			t.held[id] = true
			return nil
		}

		select {
		case <-free:
		case <-expired:
			t.db.stopWaiting(t)
			return fmt.Errorf("row %s: %w", id, store.ErrLockTimeout)
		case <-ctx.Done():
			t.db.stopWaiting(t)
			return fmt.Errorf("row %s: %w", id, ctx.Err())
		}
	}
}

// account returns the row as seen by this transaction.
func (t *memTx) account(id uuid.UUID) (domain.Account, bool) {
	if t.deleted[id] {
		return domain.Account{}, false
	}
	if a, ok := t.staged[id]; ok {
		return a, true
	}
	t.db.mu.RLock()
	defer t.db.mu.RUnlock()
	a, ok := t.db.accounts[id]
	return a, ok
}

func (t *memTx) commit() {
	if t.done {
		return
	}
	t.db.mu.Lock()
	for id, a := range t.staged {
		t.db.accounts[id] = a
	}
	for id := range t.deleted {
		delete(t.db.accounts, id)
	}
	t.db.transfers = append(t.db.transfers, t.transfers...)
	t.db.mu.Unlock()

	t.release()
}

func (t *memTx) rollback() {
	if t.done {
		return
	}
	t.release()
}

func (t *memTx) release() {
	t.done = true
	t.db.releaseAll(t, t.held)
	t.held = nil
}

func sortAccounts(accounts []*domain.Account) {
	sort.Slice(accounts, func(i, j int) bool {
		if accounts[i].CreatedAt.Equal(accounts[j].CreatedAt) {
			return accounts[i].ID.String() < accounts[j].ID.String()
		}
		return accounts[i].CreatedAt.Before(accounts[j].CreatedAt)
	})
}

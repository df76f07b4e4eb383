package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/ftpledger/ledger-api/internal/store"
)

// UnitOfWork implements store.UnitOfWork with one database transaction per call.
type UnitOfWork struct {
	db          *sql.DB
	lockTimeout time.Duration
	logger      *slog.Logger
}

// NewUnitOfWork creates a unit of work. A positive lockTimeout bounds how long
// statements in the transaction wait for row locks; expiry surfaces as
// store.ErrLockTimeout. Zero leaves waits bounded by ctx, and deadlocks are
// still reported by the server as store.ErrConflict.
func NewUnitOfWork(db *sql.DB, lockTimeout time.Duration, logger *slog.Logger) *UnitOfWork {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &UnitOfWork{db: db, lockTimeout: lockTimeout, logger: logger}
}

var _ store.UnitOfWork = (*UnitOfWork)(nil)

// Do implements store.UnitOfWork.
func (u *UnitOfWork) Do(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	return store.RunInTransaction(ctx, u.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		if u.lockTimeout > 0 {
			stmt := fmt.Sprintf("SET LOCAL lock_timeout = '%dms'", u.lockTimeout.Milliseconds())
			if _, err := tx.ExecContext(ctx, stmt); err != nil {
				return wrapError("transaction", "set_lock_timeout", err)
			}
		}
		return fn(ctx, &pgTx{
			accounts:  NewPostgresAccountStore(tx, u.logger),
			transfers: NewPostgresTransferStore(tx, u.logger),
		})
	})
}

type pgTx struct {
	accounts  *PostgresAccountStore
	transfers *PostgresTransferStore
}

func (t *pgTx) Accounts() store.AccountStore   { return t.accounts }
func (t *pgTx) Transfers() store.TransferStore { return t.transfers }

// NewStores wires the Postgres backend.
func NewStores(db *sql.DB, lockTimeout time.Duration, logger *slog.Logger) store.Stores {
	return store.Stores{
		Accounts:  NewPostgresAccountStore(db, logger),
		Transfers: NewPostgresTransferStore(db, logger),
		UoW:       NewUnitOfWork(db, lockTimeout, logger),
	}
}

package store

import (
	"context"

	"github.com/ftpledger/ledger-api/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountStore defines persistence for accounts.
// Implementations give no cross-call concurrency guarantee on their own;
// callers that read-then-write must hold a lock or run inside a UnitOfWork.
type AccountStore interface {
	// Create saves a new account.
	// Returns validation errors from the domain Account if data is invalid.
	// Returns ErrDuplicate if an account with the same ID exists.
	Create(ctx context.Context, account *domain.Account) error

	// GetByID retrieves an account without locking it.
	// Returns ErrAccountNotFound if the account does not exist.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error)

	// GetForUpdate retrieves an account and holds a write lock on its row
	// until the surrounding transaction ends.
	// Returns ErrAccountNotFound if the account does not exist.
	GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error)

	// List returns every account ordered by creation time.
	List(ctx context.Context) ([]*domain.Account, error)

	// Update persists the account's current balance.
	// Returns domain.ErrNegativeBalance for a negative balance and
	// ErrAccountNotFound if the account does not exist.
	Update(ctx context.Context, account *domain.Account) error

	// AdjustBalance adds delta (which may be negative) to the stored balance
	// in one statement and returns the updated account. The row stays
	// write-locked until the transaction ends.
	// Returns domain.ErrNegativeBalance when the result would be negative and
	// ErrAccountNotFound if the account does not exist.
	AdjustBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal) (*domain.Account, error)

	// Delete removes an account.
	// Returns ErrAccountNotFound if it does not exist and ErrAccountInUse if
	// ledger entries reference it.
	Delete(ctx context.Context, id uuid.UUID) error
}

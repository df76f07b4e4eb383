package store

import (
	"context"

	"github.com/ftpledger/ledger-api/internal/domain"
	"github.com/google/uuid"
)

// TransferStore is the append-only ledger. There is no update or delete.
type TransferStore interface {
	// Create appends a transfer and returns the persisted entry.
	// Returns ErrInvalidEntity if either account does not exist.
	Create(ctx context.Context, transfer *domain.Transfer) (*domain.Transfer, error)

	// GetByID returns one entry or ErrTransferNotFound.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error)

	// List returns all entries ordered by creation time, then id.
	// An empty ledger yields an empty, non-nil slice.
	List(ctx context.Context) ([]*domain.Transfer, error)

	// ListByAccount returns entries where the account is sender or receiver.
	ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Transfer, error)
}

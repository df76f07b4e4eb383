package memory

import (
	"context"
	"fmt"
	"sort"

	"github.com/ftpledger/ledger-api/internal/domain"
	"github.com/ftpledger/ledger-api/internal/store"
	"github.com/google/uuid"
)

// TransferStore implements store.TransferStore as an append-only slice.
type TransferStore struct {
	db *DB
	tx *memTx
}

var _ store.TransferStore = (*TransferStore)(nil)

func (s *TransferStore) within(ctx context.Context, fn func(t *memTx) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	return s.db.run(ctx, fn)
}

// Create implements store.TransferStore.Create.
func (s *TransferStore) Create(ctx context.Context, transfer *domain.Transfer) (*domain.Transfer, error) {
	if err := transfer.Validate(); err != nil {
		return nil, err
	}
	err := s.within(ctx, func(t *memTx) error {
		for _, id := range []uuid.UUID{transfer.SenderID, transfer.ReceiverID} {
			if _, ok := t.account(id); !ok {
				return fmt.Errorf("%w: account %s does not exist", store.ErrInvalidEntity, id)
			}
		}
		for _, existing := range t.visibleTransfers() {
			if existing.ID == transfer.ID {
				return fmt.Errorf("%w: transfer %s", store.ErrDuplicate, transfer.ID)
			}
		}
		t.transfers = append(t.transfers, *transfer)
		return nil
	})
	if err != nil {
		return nil, err
	}
	persisted := *transfer
	return &persisted, nil
}

// GetByID implements store.TransferStore.GetByID.
func (s *TransferStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Transfer, error) {
	var out *domain.Transfer
	err := s.within(ctx, func(t *memTx) error {
		for _, tr := range t.visibleTransfers() {
			if tr.ID == id {
				found := tr
				out = &found
				return nil
			}
		}
		return store.ErrTransferNotFound
	})
	return out, err
}

// List implements store.TransferStore.List.
func (s *TransferStore) List(ctx context.Context) ([]*domain.Transfer, error) {
	return s.filter(ctx, func(domain.Transfer) bool { return true })
}

// ListByAccount implements store.TransferStore.ListByAccount.
func (s *TransferStore) ListByAccount(ctx context.Context, accountID uuid.UUID) ([]*domain.Transfer, error) {
	return s.filter(ctx, func(tr domain.Transfer) bool {
		return tr.SenderID == accountID || tr.ReceiverID == accountID
	})
}

func (s *TransferStore) filter(ctx context.Context, keep func(domain.Transfer) bool) ([]*domain.Transfer, error) {
	out := make([]*domain.Transfer, 0)
	err := s.within(ctx, func(t *memTx) error {
		for _, tr := range t.visibleTransfers() {
			if keep(tr) {
				entry := tr
				out = append(out, &entry)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sortTransfers(out)
	return out, nil
}

// sortTransfers orders entries by creation time, then id, like the Postgres
// backend. Commit order is not preserved.
func sortTransfers(transfers []*domain.Transfer) {
	sort.SliceStable(transfers, func(i, j int) bool {
		if transfers[i].CreatedAt.Equal(transfers[j].CreatedAt) {
			return transfers[i].ID.String() < transfers[j].ID.String()
		}
		return transfers[i].CreatedAt.Before(transfers[j].CreatedAt)
	})
}

// visibleTransfers returns committed entries followed by this transaction's own.
func (t *memTx) visibleTransfers() []domain.Transfer {
	t.db.mu.RLock()
	all := make([]domain.Transfer, 0, len(t.db.transfers)+len(t.transfers))
	all = append(all, t.db.transfers...)
	t.db.mu.RUnlock()
	return append(all, t.transfers...)
}

func (t *memTx) referenced(accountID uuid.UUID) bool {
	for _, tr := range t.visibleTransfers() {
		if tr.SenderID == accountID || tr.ReceiverID == accountID {
			return true
		}
	}
	return false
}

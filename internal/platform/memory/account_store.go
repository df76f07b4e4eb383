package memory

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ftpledger/ledger-api/internal/domain"
	"github.com/ftpledger/ledger-api/internal/platform/logger"
	"github.com/ftpledger/ledger-api/internal/store"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// AccountStore implements store.AccountStore. Without a transaction every
// call commits on its own.
type AccountStore struct {
	db *DB
	tx *memTx
}

var _ store.AccountStore = (*AccountStore)(nil)

func (s *AccountStore) within(ctx context.Context, fn func(t *memTx) error) error {
	if s.tx != nil {
		return fn(s.tx)
	}
	return s.db.run(ctx, fn)
}

// Create implements store.AccountStore.Create.
func (s *AccountStore) Create(ctx context.Context, account *domain.Account) error {
	if err := account.Validate(); err != nil {
		return err
	}
	return s.within(ctx, func(t *memTx) error {
		if _, exists := t.account(account.ID); exists {
			return fmt.Errorf("%w: account %s", store.ErrDuplicate, account.ID)
		}
		// A fresh row is locked by its creator until commit.
		if err := t.lockRow(ctx, account.ID); err != nil {
			return err
		}
		// A concurrent creator of the same id may have committed while we waited.
		if _, exists := t.account(account.ID); exists {
			return fmt.Errorf("%w: account %s", store.ErrDuplicate, account.ID)
		}
		delete(t.deleted, account.ID)
		t.staged[account.ID] = *account
		logger.FromContextOrDefault(ctx, s.db.logger).Debug("account staged for create",
			slog.String("account_id", account.ID.String()))
		return nil
	})
}

// GetByID implements store.AccountStore.GetByID.
func (s *AccountStore) GetByID(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var out *domain.Account
	err := s.within(ctx, func(t *memTx) error {
		a, ok := t.account(id)
		if !ok {
			return store.ErrAccountNotFound
		}
		out = &a
		return nil
	})
	return out, err
}

// GetForUpdate implements store.AccountStore.GetForUpdate.
func (s *AccountStore) GetForUpdate(ctx context.Context, id uuid.UUID) (*domain.Account, error) {
	var out *domain.Account
	err := s.within(ctx, func(t *memTx) error {
		if _, ok := t.account(id); !ok {
			return store.ErrAccountNotFound
		}
		if err := t.lockRow(ctx, id); err != nil {
			return err
		}
		// Re-read: the previous holder may have committed a new balance or
		// deleted the row while we waited.
		a, ok := t.account(id)
		if !ok {
			return store.ErrAccountNotFound
		}
		out = &a
		return nil
	})
	return out, err
}

// List implements store.AccountStore.List.
func (s *AccountStore) List(ctx context.Context) ([]*domain.Account, error) {
	var out []*domain.Account
	err := s.within(ctx, func(t *memTx) error {
		s.db.mu.RLock()
		ids := make([]uuid.UUID, 0, len(s.db.accounts)+len(t.staged))
		for id := range s.db.accounts {
			ids = append(ids, id)
		}
		s.db.mu.RUnlock()
		for id := range t.staged {
			ids = append(ids, id)
		}

		seen := make(map[uuid.UUID]bool, len(ids))
		out = make([]*domain.Account, 0, len(ids))
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			if a, ok := t.account(id); ok {
				out = append(out, &a)
			}
		}
		sortAccounts(out)
		return nil
	})
	return out, err
}

// Update implements store.AccountStore.Update.
func (s *AccountStore) Update(ctx context.Context, account *domain.Account) error {
	if account.Balance.IsNegative() {
		return domain.ErrNegativeBalance
	}
	return s.within(ctx, func(t *memTx) error {
		if _, ok := t.account(account.ID); !ok {
			return store.ErrAccountNotFound
		}
		if err := t.lockRow(ctx, account.ID); err != nil {
			return err
		}
		current, ok := t.account(account.ID)
		if !ok {
			return store.ErrAccountNotFound
		}
		current.Balance = account.Balance.Round(domain.MoneyScale)
		current.UpdatedAt = time.Now().UTC()
		t.staged[account.ID] = current
		return nil
	})
}

// AdjustBalance implements store.AccountStore.AdjustBalance.
func (s *AccountStore) AdjustBalance(
	ctx context.Context,
	id uuid.UUID,
	delta decimal.Decimal,
) (*domain.Account, error) {
	var out *domain.Account
	err := s.within(ctx, func(t *memTx) error {
		if _, ok := t.account(id); !ok {
			return store.ErrAccountNotFound
		}
		if err := t.lockRow(ctx, id); err != nil {
			return err
		}
		current, ok := t.account(id)
		if !ok {
			return store.ErrAccountNotFound
		}
		next := current.Balance.Add(delta)
		if next.IsNegative() {
			return domain.ErrNegativeBalance
		}
		current.Balance = next.Round(domain.MoneyScale)
		current.UpdatedAt = time.Now().UTC()
		t.staged[id] = current
		out = &current
		return nil
	})
	if err != nil {
		return nil, err
	}
	copied := *out
	return &copied, nil
}

// Delete implements store.AccountStore.Delete.
func (s *AccountStore) Delete(ctx context.Context, id uuid.UUID) error {
	return s.within(ctx, func(t *memTx) error {
		if _, ok := t.account(id); !ok {
			return store.ErrAccountNotFound
		}
		if err := t.lockRow(ctx, id); err != nil {
			return err
		}
		if _, ok := t.account(id); !ok {
			return store.ErrAccountNotFound
		}
		if t.referenced(id) {
			return store.ErrAccountInUse
		}
		delete(t.staged, id)
		t.deleted[id] = true
		return nil
	})
}

package store

import "context"

// Tx exposes stores bound to a single transaction.
type Tx interface {
	Accounts() AccountStore
	Transfers() TransferStore
}

// UnitOfWork runs fn atomically. Everything fn writes through tx is
// committed when fn returns nil and rolled back otherwise, including on panic.
type UnitOfWork interface {
	Do(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error
}

// Stores bundles the non-transactional views and the unit of work of one backend.
type Stores struct {
	Accounts  AccountStore
	Transfers TransferStore
	UoW       UnitOfWork
}

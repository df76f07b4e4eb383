package store

import (
	"errors"
	"fmt"

	"github.com/ftpledger/ledger-api/internal/domain"
)

// Common store errors used across all store implementations.
var (
	// ErrNotFound is returned when a requested entity does not exist in the store.
	ErrNotFound = errors.New("entity not found")

	// ErrDuplicate is returned when an operation would create a duplicate
	// of a unique entity.
	ErrDuplicate = errors.New("entity already exists")

	// ErrInvalidEntity is returned when an entity fails validation or a
	// constraint before being stored.
	ErrInvalidEntity = errors.New("invalid entity")

	// ErrTransactionFailed is returned when a transaction fails to begin or commit.
	ErrTransactionFailed = fmt.Errorf("transaction failed: %w", domain.ErrStoreUnavailable)

	// ErrLockTimeout is returned when a row lock could not be acquired in time.
	ErrLockTimeout = fmt.Errorf("lock wait timeout: %w", domain.ErrConflict)

	// ErrConflict is returned when the backend aborted the operation because
	// of a deadlock or serialization failure.
	ErrConflict = fmt.Errorf("store conflict: %w", domain.ErrConflict)

	// ErrAccountNotFound indicates that the requested account does not exist.
	ErrAccountNotFound = fmt.Errorf("%w: %w", ErrNotFound, domain.ErrAccountNotFound)

	// ErrTransferNotFound indicates that the requested ledger entry does not exist.
	ErrTransferNotFound = fmt.Errorf("%w: %w", ErrNotFound, domain.ErrTransferNotFound)

	// ErrAccountInUse indicates that an account cannot be removed because
	// ledger entries reference it.
	ErrAccountInUse = fmt.Errorf("%w: %w", ErrInvalidEntity, domain.ErrAccountInUse)
)

// IsNotFoundError checks if the error is any kind of "not found" error.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// StoreError is a custom error type for store-specific errors with additional context.
type StoreError struct {
	Entity    string // The entity type (e.g., "account", "transfer")
	Operation string // The operation that failed (e.g., "create", "adjust_balance")
	Message   string
	Err       error
}

// Error implements the error interface for StoreError.
func (e *StoreError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf(
			"%s operation on %s failed: %s: %v",
			e.Operation,
			e.Entity,
			e.Message,
			e.Err,
		)
	}
	return fmt.Sprintf("%s operation on %s failed: %s", e.Operation, e.Entity, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *StoreError) Unwrap() error {
	return e.Err
}

// NewStoreError creates a new StoreError with the given entity, operation, message, and wrapped error.
func NewStoreError(entity, operation, message string, err error) *StoreError {
	return &StoreError{
		Entity:    entity,
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}

// Unavailable wraps err as domain.ErrStoreUnavailable unless it already
// carries a more specific kind.
func Unavailable(entity, operation string, err error) error {
	if err == nil {
		return nil
	}
	if domain.CodeOf(err) != domain.CodeInternal {
		return err
	}
	return NewStoreError(entity, operation, domain.ErrStoreUnavailable.Error(),
		fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err))
}

package domain

import (
	"context"
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// This is often wrapped with a more specific error message.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidID is returned when an ID is malformed or empty.
	ErrInvalidID = errors.New("invalid ID")

	// ErrInvalidAmount is returned when a transfer amount falls outside the
	// configured bounds or is not a positive money value.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrInvalidCurrency is returned for currency codes outside the supported set.
	ErrInvalidCurrency = errors.New("invalid currency")

	// ErrSameAccount is returned when sender and receiver are the same account.
	ErrSameAccount = errors.New("sender and receiver must differ")

	// ErrNegativeBalance is returned by any mutation that would leave an
	// account below zero.
	ErrNegativeBalance = errors.New("balance cannot be negative")

	// ErrAccountNotFound is returned when a referenced account does not exist.
	ErrAccountNotFound = errors.New("account not found")

	// ErrTransferNotFound is returned when a ledger entry does not exist.
	ErrTransferNotFound = errors.New("transfer not found")

	// ErrInsufficientBalance is returned when the sender cannot cover a transfer.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrAccountInUse is returned when deleting an account that ledger entries reference.
	ErrAccountInUse = errors.New("account is referenced by transfers")

	// ErrConflict is returned when the store aborted an operation because of
	// concurrent access (deadlock, serialization failure, lock wait timeout).
	// The caller may retry.
	ErrConflict = errors.New("concurrent update conflict")

	// ErrStoreUnavailable is returned when persistence failed for reasons
	// unrelated to the request itself.
	ErrStoreUnavailable = errors.New("store unavailable")

	// ErrUnauthorized is returned when an operation is not permitted.
	ErrUnauthorized = errors.New("unauthorized operation")
)

// ValidationError carries the field that failed validation.
type ValidationError struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrValidation, e.Message)
	}
	return fmt.Sprintf("%s: %s: %s", ErrValidation, e.Field, e.Message)
}

// Unwrap exposes the specific cause, falling back to ErrValidation.
func (e *ValidationError) Unwrap() []error {
	if e.Err != nil {
		return []error{ErrValidation, e.Err}
	}
	return []error{ErrValidation}
}

// NewValidationError builds a ValidationError. err may be nil.
func NewValidationError(field, message string, err error) *ValidationError {
	return &ValidationError{Field: field, Message: message, Err: err}
}

// ErrorCode is the stable, machine-readable identifier of an error kind.
type ErrorCode string

// Error codes exposed to API clients. Values never change once published.
const (
	CodeInvalidAmount         ErrorCode = "INVALID_AMOUNT"
	CodeInvalidCurrency       ErrorCode = "INVALID_CURRENCY"
	CodeSameAccount           ErrorCode = "SAME_ACCOUNT"
	CodeValidationFailed      ErrorCode = "VALIDATION_FAILED"
	CodeAccountNotFound       ErrorCode = "ACCOUNT_NOT_FOUND"
	CodeTransferNotFound      ErrorCode = "TRANSFER_NOT_FOUND"
	CodeInsufficientBalance   ErrorCode = "INSUFFICIENT_BALANCE"
	CodeAccountInUse          ErrorCode = "ACCOUNT_IN_USE"
	CodeConflict              ErrorCode = "CONCURRENT_CONFLICT"
	CodeStoreUnavailable      ErrorCode = "STORE_UNAVAILABLE"
	CodeUnauthorized          ErrorCode = "UNAUTHORIZED"
	CodeIdempotencyInProgress ErrorCode = "IDEMPOTENCY_IN_PROGRESS"
	CodeIdempotencyKeyReused  ErrorCode = "IDEMPOTENCY_KEY_REUSED"
	CodeRequestCancelled      ErrorCode = "REQUEST_CANCELLED"
	CodeInternal              ErrorCode = "INTERNAL_ERROR"
)

// codeTable is ordered: more specific kinds come first.
var codeTable = []struct {
	err  error
	code ErrorCode
}{
	{ErrInvalidAmount, CodeInvalidAmount},
	{ErrInvalidCurrency, CodeInvalidCurrency},
	{ErrSameAccount, CodeSameAccount},
	{ErrAccountNotFound, CodeAccountNotFound},
	{ErrTransferNotFound, CodeTransferNotFound},
	{ErrInsufficientBalance, CodeInsufficientBalance},
	{ErrNegativeBalance, CodeInsufficientBalance},
	{ErrAccountInUse, CodeAccountInUse},
	{ErrConflict, CodeConflict},
	{ErrStoreUnavailable, CodeStoreUnavailable},
	{ErrUnauthorized, CodeUnauthorized},
	{context.Canceled, CodeRequestCancelled},
	{context.DeadlineExceeded, CodeRequestCancelled},
	{ErrInvalidID, CodeValidationFailed},
	{ErrValidation, CodeValidationFailed},
}

// CodeOf returns the stable code for err, or CodeInternal when err is of no
// known kind.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return ""
	}
	for _, entry := range codeTable {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return CodeInternal
}

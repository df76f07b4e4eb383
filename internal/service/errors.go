package service

import "fmt"

// Error handling principles:
//  1. Expected conditions are domain sentinel errors (domain.ErrInvalidAmount,
//     domain.ErrAccountNotFound, ...), checked with errors.Is.
//  2. Service methods wrap failures in a service error type that records the
//     operation, so logs show where a failure surfaced.
//  3. The API layer maps the sentinel, via domain.CodeOf, to a status code.

// TransferServiceError is returned by TransferService methods.
type TransferServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for TransferServiceError.
func (e *TransferServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transfer service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("transfer service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *TransferServiceError) Unwrap() error {
	return e.Err
}

// NewTransferServiceError creates a new TransferServiceError.
func NewTransferServiceError(operation, message string, err error) *TransferServiceError {
	return &TransferServiceError{Operation: operation, Message: message, Err: err}
}

// AccountServiceError is returned by AccountService methods.
type AccountServiceError struct {
	Operation string
	Message   string
	Err       error
}

// Error implements the error interface for AccountServiceError.
func (e *AccountServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("account service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("account service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *AccountServiceError) Unwrap() error {
	return e.Err
}

// NewAccountServiceError creates a new AccountServiceError.
func NewAccountServiceError(operation, message string, err error) *AccountServiceError {
	return &AccountServiceError{Operation: operation, Message: message, Err: err}
}

package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// MoneyScale is the number of fractional digits kept for balances and amounts.
const MoneyScale = 2

// Account is a balance holder. Balance is never negative.
type Account struct {
	ID        uuid.UUID       `json:"id"`
	OwnerID   uuid.UUID       `json:"owner_id"`
	Balance   decimal.Decimal `json:"balance"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewAccount creates an account for owner with the given opening balance.
func NewAccount(ownerID uuid.UUID, initial decimal.Decimal) (*Account, error) {
	now := time.Now().UTC()
	account := &Account{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Balance:   initial.Round(MoneyScale),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := account.Validate(); err != nil {
		return nil, err
	}
	return account, nil
}

// Validate checks that the account is well formed.
func (a *Account) Validate() error {
	if a.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if a.OwnerID == uuid.Nil {
		return NewValidationError("owner_id", "cannot be empty", ErrInvalidID)
	}
	if a.Balance.IsNegative() {
		return ErrNegativeBalance
	}
	return nil
}

// SetBalance replaces the balance, rejecting negative values.
func (a *Account) SetBalance(balance decimal.Decimal) error {
	if balance.IsNegative() {
		return ErrNegativeBalance
	}
	a.Balance = balance.Round(MoneyScale)
	a.UpdatedAt = time.Now().UTC()
	return nil
}

// Debit removes amount from the balance. The account is left untouched when
// the result would be negative.
func (a *Account) Debit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: debit must be positive", ErrInvalidAmount)
	}
	if a.Balance.LessThan(amount) {
		return ErrInsufficientBalance
	}
	return a.SetBalance(a.Balance.Sub(amount))
}

// Credit adds amount to the balance.
func (a *Account) Credit(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return fmt.Errorf("%w: credit must be positive", ErrInvalidAmount)
	}
	return a.SetBalance(a.Balance.Add(amount))
}

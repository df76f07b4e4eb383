package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Currency is an ISO 4217 code from the supported set.
type Currency string

// Supported currencies.
const (
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
	CurrencyGBP Currency = "GBP"
	CurrencyJPY Currency = "JPY"
	CurrencyCHF Currency = "CHF"
	CurrencyCAD Currency = "CAD"
	CurrencyAUD Currency = "AUD"
	CurrencyTZS Currency = "TZS"
)

var supportedCurrencies = map[Currency]struct{}{
	CurrencyUSD: {},
	CurrencyEUR: {},
	CurrencyGBP: {},
	CurrencyJPY: {},
	CurrencyCHF: {},
	CurrencyCAD: {},
	CurrencyAUD: {},
	CurrencyTZS: {},
}

// ParseCurrency normalises s and checks it against the supported set.
func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.IsValid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidCurrency, s)
	}
	return c, nil
}

// IsValid reports whether c is a supported currency.
func (c Currency) IsValid() bool {
	_, ok := supportedCurrencies[c]
	return ok
}

// TransferStatus is the terminal outcome recorded in the ledger.
type TransferStatus string

// Transfer statuses. Only completed transfers are written today.
const (
	TransferStatusCompleted TransferStatus = "COMPLETED"
	TransferStatusFailed    TransferStatus = "FAILED"
)

// IsValid reports whether s is a known status.
func (s TransferStatus) IsValid() bool {
	return s == TransferStatusCompleted || s == TransferStatusFailed
}

// Transfer is an immutable ledger entry.
type Transfer struct {
	ID         uuid.UUID       `json:"id"`
	SenderID   uuid.UUID       `json:"sender_id"`
	ReceiverID uuid.UUID       `json:"receiver_id"`
	Amount     decimal.Decimal `json:"amount"`
	Currency   Currency        `json:"currency"`
	Status     TransferStatus  `json:"status"`
	CreatedAt  time.Time       `json:"created_at"`
}

// NewTransfer builds a completed ledger entry with a fresh id and timestamp.
func NewTransfer(
	senderID, receiverID uuid.UUID,
	amount decimal.Decimal,
	currency Currency,
) (*Transfer, error) {
	transfer := &Transfer{
		ID:         uuid.New(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Amount:     amount.Round(MoneyScale),
		Currency:   currency,
		Status:     TransferStatusCompleted,
		CreatedAt:  time.Now().UTC(),
	}

	if err := transfer.Validate(); err != nil {
		return nil, err
	}
	return transfer, nil
}

// Validate checks that the transfer is well formed.
func (t *Transfer) Validate() error {
	if t.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrInvalidID)
	}
	if t.SenderID == uuid.Nil {
		return NewValidationError("sender_id", "cannot be empty", ErrInvalidID)
	}
	if t.ReceiverID == uuid.Nil {
		return NewValidationError("receiver_id", "cannot be empty", ErrInvalidID)
	}
	if t.SenderID == t.ReceiverID {
		return ErrSameAccount
	}
	if !t.Amount.IsPositive() {
		return fmt.Errorf("%w: must be positive", ErrInvalidAmount)
	}
	if !t.Currency.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidCurrency, t.Currency)
	}
	if !t.Status.IsValid() {
		return NewValidationError("status", "unknown status", nil)
	}
	return nil
}

// AmountLimits bounds a single transfer, both ends inclusive.
type AmountLimits struct {
	Min decimal.Decimal
	Max decimal.Decimal
}

// DefaultAmountLimits returns the 1.00 to 10000.00 window.
func DefaultAmountLimits() AmountLimits {
	return AmountLimits{
		Min: decimal.RequireFromString("1.00"),
		Max: decimal.RequireFromString("10000.00"),
	}
}

// Check returns ErrInvalidAmount when amount is outside the limits or has
// more precision than MoneyScale.
func (l AmountLimits) Check(amount decimal.Decimal) error {
	if !amount.Equal(amount.Round(MoneyScale)) {
		return fmt.Errorf("%w: at most %d decimal places", ErrInvalidAmount, MoneyScale)
	}
	if amount.LessThan(l.Min) || amount.GreaterThan(l.Max) {
		return fmt.Errorf("%w: %s is outside [%s, %s]",
			ErrInvalidAmount, amount.StringFixed(MoneyScale),
			l.Min.StringFixed(MoneyScale), l.Max.StringFixed(MoneyScale))
	}
	return nil
}

package api

import (
	"time"

	"github.com/ftpledger/ledger-api/internal/domain"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Amounts are JSON strings ("100.00") so no precision is lost in transit.

// CreateTransferRequest is the body of POST /api/transfers.
type CreateTransferRequest struct {
	SenderID   uuid.UUID `json:"sender_id"   validate:"required"`
	ReceiverID uuid.UUID `json:"receiver_id" validate:"required"`
	Amount     string    `json:"amount"      validate:"required"`
	Currency   string    `json:"currency"    validate:"required"`
}

// TransferResponse is one ledger entry.
type TransferResponse struct {
	ID         uuid.UUID `json:"id"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
}

// CreateAccountRequest is the body of POST /api/accounts.
type CreateAccountRequest struct {
	OwnerID uuid.UUID `json:"owner_id" validate:"required"`
	Balance string    `json:"balance"`
}

// AccountResponse describes an account.
type AccountResponse struct {
	ID        uuid.UUID `json:"id"`
	OwnerID   uuid.UUID `json:"owner_id"`
	Balance   string    `json:"balance"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func formatMoney(d decimal.Decimal) string {
	return d.StringFixed(domain.MoneyScale)
}

func transferToResponse(t *domain.Transfer) TransferResponse {
	return TransferResponse{
		ID:         t.ID,
		SenderID:   t.SenderID,
		ReceiverID: t.ReceiverID,
		Amount:     formatMoney(t.Amount),
		Currency:   string(t.Currency),
		Status:     string(t.Status),
		CreatedAt:  t.CreatedAt,
	}
}

func transfersToResponse(ts []*domain.Transfer) []TransferResponse {
	out := make([]TransferResponse, 0, len(ts))
	for _, t := range ts {
		out = append(out, transferToResponse(t))
	}
	return out
}

func accountToResponse(a *domain.Account) AccountResponse {
	return AccountResponse{
		ID:        a.ID,
		OwnerID:   a.OwnerID,
		Balance:   formatMoney(a.Balance),
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
}

package events

import (
	"context"
	"encoding/json"
	"time"

	"github.com/ftpledger/ledger-api/internal/domain"
	"github.com/google/uuid"
)

// Event types.
const (
	TypeTransferCompleted = "transfer.completed"
)

// Event is an envelope around a JSON payload.
type Event struct {
	ID        uuid.UUID       `json:"id"`
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// UnmarshalPayload decodes the event payload into v.
func (e *Event) UnmarshalPayload(v any) error {
	return json.Unmarshal(e.Payload, v)
}

// NewEvent serializes payload into a new event of the given type.
func NewEvent(eventType string, payload any) (*Event, error) {
	payloadBytes, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	return &Event{
		ID:        uuid.New(),
		Type:      eventType,
		Payload:   payloadBytes,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// TransferCompleted is the payload of TypeTransferCompleted.
// Amounts are strings to keep their exact decimal form.
type TransferCompleted struct {
	TransferID uuid.UUID `json:"transfer_id"`
	SenderID   uuid.UUID `json:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id"`
	Amount     string    `json:"amount"`
	Currency   string    `json:"currency"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewTransferCompletedEvent builds the event announcing a committed transfer.
func NewTransferCompletedEvent(t *domain.Transfer) (*Event, error) {
	return NewEvent(TypeTransferCompleted, TransferCompleted{
		TransferID: t.ID,
		SenderID:   t.SenderID,
		ReceiverID: t.ReceiverID,
		Amount:     t.Amount.StringFixed(domain.MoneyScale),
		Currency:   string(t.Currency),
		CreatedAt:  t.CreatedAt,
	})
}

// EventHandler processes events.
type EventHandler interface {
	HandleEvent(ctx context.Context, event *Event) error
}

// EventEmitter publishes events to whatever handlers are registered.
type EventEmitter interface {
	EmitEvent(ctx context.Context, event *Event) error
}

// HandlerFunc adapts a function to EventHandler.
type HandlerFunc func(ctx context.Context, event *Event) error

// HandleEvent implements EventHandler.
func (f HandlerFunc) HandleEvent(ctx context.Context, event *Event) error {
	return f(ctx, event)
}

package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/ftpledger/ledger-api/internal/api/shared"
	"github.com/ftpledger/ledger-api/internal/domain"
	"github.com/ftpledger/ledger-api/internal/platform/logger"
	"github.com/ftpledger/ledger-api/internal/service"
	"github.com/shopspring/decimal"
)

// TransferHandler serves the transfer ledger.
type TransferHandler struct {
	transfers service.TransferService
	logger    *slog.Logger
}

// NewTransferHandler creates a TransferHandler.
func NewTransferHandler(transfers service.TransferService, logger *slog.Logger) *TransferHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for TransferHandler")
	}
	return &TransferHandler{
		transfers: transfers,
		logger:    logger.With(slog.String("component", "transfer_handler")),
	}
}

// CreateTransfer handles POST /api/transfers.
func (h *TransferHandler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	log := logger.FromContextOrDefault(r.Context(), h.logger)

	var req CreateTransferRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		HandleAPIError(w, r, err, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		HandleAPIError(w, r, domain.ErrInvalidAmount, "")
		return
	}
	currency, err := domain.ParseCurrency(req.Currency)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	transfer, err := h.transfers.CreateTransfer(r.Context(), service.CreateTransferInput{
		SenderID:   req.SenderID,
		ReceiverID: req.ReceiverID,
		Amount:     amount,
		Currency:   currency,
	})
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	log.Debug("transfer created", slog.String("transfer_id", transfer.ID.String()))
	shared.RespondWithJSON(w, r, http.StatusCreated, transferToResponse(transfer))
}

// GetTransfer handles GET /api/transfers/{id}.
func (h *TransferHandler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	transfer, err := h.transfers.GetTransfer(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, transferToResponse(transfer))
}

// ListTransfers handles GET /api/transfers.
func (h *TransferHandler) ListTransfers(w http.ResponseWriter, r *http.Request) {
	transfers, err := h.transfers.ListTransfers(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, transfersToResponse(transfers))
}

// ListAccountTransfers handles GET /api/accounts/{id}/transfers.
func (h *TransferHandler) ListAccountTransfers(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	transfers, err := h.transfers.ListAccountTransfers(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, transfersToResponse(transfers))
}

package api

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/ftpledger/ledger-api/internal/api/shared"
	"github.com/ftpledger/ledger-api/internal/domain"
	"github.com/ftpledger/ledger-api/internal/service"
	"github.com/shopspring/decimal"
)

// AccountHandler serves account provisioning.
type AccountHandler struct {
	accounts service.AccountService
	logger   *slog.Logger
}

// NewAccountHandler creates an AccountHandler.
func NewAccountHandler(accounts service.AccountService, logger *slog.Logger) *AccountHandler {
	if logger == nil {
		// ALLOW-PANIC: Constructor enforcing required dependency
		panic("logger cannot be nil for AccountHandler")
	}
	return &AccountHandler{
		accounts: accounts,
		logger:   logger.With(slog.String("component", "account_handler")),
	}
}

// CreateAccount handles POST /api/accounts. An omitted balance opens at zero.
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		HandleAPIError(w, r, err, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(&req); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	balance := decimal.Zero
	if s := strings.TrimSpace(req.Balance); s != "" {
		var err error
		if balance, err = decimal.NewFromString(s); err != nil {
			HandleAPIError(w, r, domain.NewValidationError("balance", "must be a decimal string", err), "")
			return
		}
	}

	account, err := h.accounts.CreateAccount(r.Context(), req.OwnerID, balance)
	if err != nil {
		if domain.CodeOf(err) == domain.CodeInsufficientBalance {
			// A negative opening balance is a bad request, not a failed debit.
			err = domain.NewValidationError("balance", "cannot be negative", nil)
		}
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusCreated, accountToResponse(account))
}

// GetAccount handles GET /api/accounts/{id}.
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	account, err := h.accounts.GetAccount(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	shared.RespondWithJSON(w, r, http.StatusOK, accountToResponse(account))
}

// ListAccounts handles GET /api/accounts.
func (h *AccountHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accounts.ListAccounts(r.Context())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	out := make([]AccountResponse, 0, len(accounts))
	for _, a := range accounts {
		out = append(out, accountToResponse(a))
	}
	shared.RespondWithJSON(w, r, http.StatusOK, out)
}

// DeleteAccount handles DELETE /api/accounts/{id}.
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, err := getPathUUID(r, "id")
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	if err := h.accounts.DeleteAccount(r.Context(), id); err != nil {
		HandleAPIError(w, r, err, "")
		return
	}
	h.logger.Debug("account deleted", slog.String("account_id", id.String()))
	w.WriteHeader(http.StatusNoContent)
}

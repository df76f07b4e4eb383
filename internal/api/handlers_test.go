package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/ftpledger/ledger-api/internal/api/shared"
	"github.com/ftpledger/ledger-api/internal/domain"
	"github.com/ftpledger/ledger-api/internal/locking"
	"github.com/ftpledger/ledger-api/internal/platform/memory"
	"github.com/ftpledger/ledger-api/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testAPI struct {
	router   http.Handler
	accounts service.AccountService
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))

	stores := memory.New(log).Stores()
	locker, err := locking.New(locking.StrategyStoreLevel, log)
	require.NoError(t, err)
	transfers, err := service.NewTransferService(stores, locker, domain.DefaultAmountLimits(), nil, log)
	require.NoError(t, err)
	accounts, err := service.NewAccountService(stores.Accounts, log)
	require.NoError(t, err)

	th := NewTransferHandler(transfers, log)
	ah := NewAccountHandler(accounts, log)

	r := chi.NewRouter()
	r.Post("/api/transfers", th.CreateTransfer)
	r.Get("/api/transfers", th.ListTransfers)
	r.Get("/api/transfers/{id}", th.GetTransfer)
	r.Post("/api/accounts", ah.CreateAccount)
	r.Get("/api/accounts", ah.ListAccounts)
	r.Get("/api/accounts/{id}", ah.GetAccount)
	r.Delete("/api/accounts/{id}", ah.DeleteAccount)
	r.Get("/api/accounts/{id}/transfers", th.ListAccountTransfers)

	return &testAPI{router: r, accounts: accounts}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	req = req.WithContext(shared.SetTraceID(req.Context()))
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func (a *testAPI) account(t *testing.T, balance string) uuid.UUID {
	t.Helper()
	acc, err := a.accounts.CreateAccount(context.Background(), uuid.New(), decimal.RequireFromString(balance))
	require.NoError(t, err)
	return acc.ID
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) shared.ErrorResponse {
	t.Helper()
	var resp shared.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestCreateTransferEndpoint(t *testing.T) {
	api := newTestAPI(t)
	a := api.account(t, "200.00")
	b := api.account(t, "0.00")

	rec := api.do(t, http.MethodPost, "/api/transfers", CreateTransferRequest{
		SenderID: a, ReceiverID: b, Amount: "100.00", Currency: "usd",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var created TransferResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "100.00", created.Amount)
	assert.Equal(t, "USD", created.Currency)
	assert.Equal(t, "COMPLETED", created.Status)

	rec = api.do(t, http.MethodGet, "/api/transfers/"+created.ID.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/accounts/"+a.String(), nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var sender AccountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sender))
	assert.Equal(t, "100.00", sender.Balance)

	rec = api.do(t, http.MethodGet, "/api/accounts/"+b.String()+"/transfers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var forB []TransferResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &forB))
	assert.Len(t, forB, 1)
}

func TestCreateTransferEndpoint_Errors(t *testing.T) {
	api := newTestAPI(t)
	a := api.account(t, "30.00")
	b := api.account(t, "0.00")

	tests := []struct {
		name       string
		body       interface{}
		wantStatus int
		wantCode   domain.ErrorCode
	}{
		{
			name:       "insufficient balance",
			body:       CreateTransferRequest{SenderID: a, ReceiverID: b, Amount: "100.00", Currency: "USD"},
			wantStatus: http.StatusUnprocessableEntity,
			wantCode:   domain.CodeInsufficientBalance,
		},
		{
			name:       "negative amount",
			body:       CreateTransferRequest{SenderID: a, ReceiverID: b, Amount: "-10.00", Currency: "USD"},
			wantStatus: http.StatusBadRequest,
			wantCode:   domain.CodeInvalidAmount,
		},
		{
			name:       "non-numeric amount",
			body:       CreateTransferRequest{SenderID: a, ReceiverID: b, Amount: "ten", Currency: "USD"},
			wantStatus: http.StatusBadRequest,
			wantCode:   domain.CodeInvalidAmount,
		},
		{
			name:       "unsupported currency",
			body:       CreateTransferRequest{SenderID: a, ReceiverID: b, Amount: "10.00", Currency: "XYZ"},
			wantStatus: http.StatusBadRequest,
			wantCode:   domain.CodeInvalidCurrency,
		},
		{
			name:       "same account",
			body:       CreateTransferRequest{SenderID: a, ReceiverID: a, Amount: "10.00", Currency: "USD"},
			wantStatus: http.StatusBadRequest,
			wantCode:   domain.CodeSameAccount,
		},
		{
			name:       "unknown receiver",
			body:       CreateTransferRequest{SenderID: a, ReceiverID: uuid.New(), Amount: "10.00", Currency: "USD"},
			wantStatus: http.StatusNotFound,
			wantCode:   domain.CodeAccountNotFound,
		},
		{
			name:       "missing sender",
			body:       map[string]string{"receiver_id": b.String(), "amount": "10.00", "currency": "USD"},
			wantStatus: http.StatusBadRequest,
			wantCode:   domain.CodeValidationFailed,
		},
		{
			name:       "malformed json",
			body:       `{"sender_id":`,
			wantStatus: http.StatusBadRequest,
			wantCode:   domain.CodeValidationFailed,
		},
		{
			name:       "unknown field",
			body:       `{"sender_id":"` + a.String() + `","bogus":1}`,
			wantStatus: http.StatusBadRequest,
			wantCode:   domain.CodeValidationFailed,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := api.do(t, http.MethodPost, "/api/transfers", tc.body)
			require.Equal(t, tc.wantStatus, rec.Code, rec.Body.String())

			resp := decodeError(t, rec)
			assert.Equal(t, tc.wantCode, resp.Code)
			assert.NotEmpty(t, resp.Error)
			assert.NotEmpty(t, resp.TraceID)
		})
	}

	rec := api.do(t, http.MethodGet, "/api/transfers", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String(), "failed transfers leave no ledger rows")
}

func TestGetTransferEndpoint_Errors(t *testing.T) {
	api := newTestAPI(t)

	rec := api.do(t, http.MethodGet, "/api/transfers/not-a-uuid", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.CodeValidationFailed, decodeError(t, rec).Code)

	rec = api.do(t, http.MethodGet, "/api/transfers/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.CodeTransferNotFound, decodeError(t, rec).Code)
}

func TestAccountEndpoints(t *testing.T) {
	api := newTestAPI(t)
	owner := uuid.New()

	rec := api.do(t, http.MethodPost, "/api/accounts", CreateAccountRequest{OwnerID: owner, Balance: "50.5"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var created AccountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	assert.Equal(t, "50.50", created.Balance)
	assert.Equal(t, owner, created.OwnerID)

	rec = api.do(t, http.MethodPost, "/api/accounts", CreateAccountRequest{OwnerID: uuid.New()})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/accounts", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var all []AccountResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &all))
	assert.Len(t, all, 2)

	rec = api.do(t, http.MethodPost, "/api/accounts", CreateAccountRequest{OwnerID: owner, Balance: "-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, domain.CodeValidationFailed, decodeError(t, rec).Code)

	rec = api.do(t, http.MethodDelete, "/api/accounts/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = api.do(t, http.MethodGet, "/api/accounts/"+created.ID.String(), nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, domain.CodeAccountNotFound, decodeError(t, rec).Code)
}

func TestDeleteAccountEndpoint_InUse(t *testing.T) {
	api := newTestAPI(t)
	a := api.account(t, "20.00")
	b := api.account(t, "0.00")

	rec := api.do(t, http.MethodPost, "/api/transfers", CreateTransferRequest{
		SenderID: a, ReceiverID: b, Amount: "10.00", Currency: "EUR",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = api.do(t, http.MethodDelete, "/api/accounts/"+a.String(), nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, domain.CodeAccountInUse, decodeError(t, rec).Code)
}

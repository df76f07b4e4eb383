package api

import (
	"errors"
	"net/http"

	"github.com/ftpledger/ledger-api/internal/api/shared"
	"github.com/ftpledger/ledger-api/internal/domain"
)

// statusByCode maps error codes to HTTP status. Codes not listed are 500.
var statusByCode = map[domain.ErrorCode]int{
	domain.CodeInvalidAmount:         http.StatusBadRequest,
	domain.CodeInvalidCurrency:       http.StatusBadRequest,
	domain.CodeSameAccount:           http.StatusBadRequest,
	domain.CodeValidationFailed:      http.StatusBadRequest,
	domain.CodeAccountNotFound:       http.StatusNotFound,
	domain.CodeTransferNotFound:      http.StatusNotFound,
	domain.CodeInsufficientBalance:   http.StatusUnprocessableEntity,
	domain.CodeAccountInUse:          http.StatusConflict,
	domain.CodeConflict:              http.StatusConflict,
	domain.CodeIdempotencyInProgress: http.StatusConflict,
	domain.CodeIdempotencyKeyReused:  http.StatusUnprocessableEntity,
	domain.CodeStoreUnavailable:      http.StatusServiceUnavailable,
	domain.CodeUnauthorized:          http.StatusUnauthorized,
	domain.CodeRequestCancelled:      http.StatusRequestTimeout,
}

// safeMessages are the only error texts clients ever see.
var safeMessages = map[domain.ErrorCode]string{
	domain.CodeInvalidAmount:       "Invalid amount",
	domain.CodeInvalidCurrency:     "Unsupported currency",
	domain.CodeSameAccount:         "Sender and receiver must differ",
	domain.CodeValidationFailed:    "Validation error",
	domain.CodeAccountNotFound:     "Account not found",
	domain.CodeTransferNotFound:    "Transfer not found",
	domain.CodeInsufficientBalance: "Insufficient balance",
	domain.CodeAccountInUse:        "Account has ledger entries",
	domain.CodeConflict:            "Concurrent update, please retry",
	domain.CodeStoreUnavailable:    "Service temporarily unavailable",
	domain.CodeUnauthorized:        "Unauthorized",
	domain.CodeRequestCancelled:    "Request cancelled before completion",
}

// MapErrorToStatusCode returns the HTTP status for err.
func MapErrorToStatusCode(err error) int {
	if status, ok := statusByCode[domain.CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// GetSafeErrorMessage returns a client-safe message for err.
func GetSafeErrorMessage(err error) string {
	if msg, ok := safeMessages[domain.CodeOf(err)]; ok {
		return msg
	}
	return "An unexpected error occurred"
}

// safeValidationMessage names the offending field without echoing input.
func safeValidationMessage(err error) string {
	var ve *domain.ValidationError
	if errors.As(err, &ve) && ve.Field != "" {
		return "Invalid " + ve.Field + ": " + ve.Message
	}
	return GetSafeErrorMessage(err)
}

// HandleAPIError writes the error response for err. A non-empty message
// overrides the default safe message.
func HandleAPIError(w http.ResponseWriter, r *http.Request, err error, message string) {
	code := domain.CodeOf(err)
	if message == "" {
		if code == domain.CodeValidationFailed {
			message = safeValidationMessage(err)
		} else {
			message = GetSafeErrorMessage(err)
		}
	}
	shared.RespondWithErrorAndLog(w, r, MapErrorToStatusCode(err), code, message, err)
}

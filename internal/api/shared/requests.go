package shared

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ftpledger/ledger-api/internal/domain"
	"github.com/go-playground/validator/v10"
)

// maxBodyBytes caps request bodies; ledger payloads are tiny.
const maxBodyBytes = 1 << 20

// Global validator instance for reuse
var validate = validator.New()

// DecodeJSON decodes the request body into v, rejecting unknown fields and
// trailing data. Failures are domain.ErrValidation.
func DecodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return domain.NewValidationError("body", "invalid JSON", err)
	}
	if dec.More() {
		return domain.NewValidationError("body", "unexpected data after JSON object", nil)
	}
	return nil
}

// ValidateRequest runs struct validation tags on v. Failures are
// domain.ErrValidation naming the first offending field.
func ValidateRequest(v interface{}) error {
	if err := validate.Struct(v); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok && len(fieldErrs) > 0 {
			fe := fieldErrs[0]
			return domain.NewValidationError(fe.Field(), fmt.Sprintf("failed on the '%s' rule", fe.Tag()), nil)
		}
		return domain.NewValidationError("body", "invalid request", err)
	}
	return nil
}

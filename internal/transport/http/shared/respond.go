// Package shared holds the JSON response helpers used by every handler.
package shared

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "expensio/pkg/domain-errors"
)

type errorBody struct {
	Error       string `json:"error"`
	Description string `json:"error_description"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error code onto an HTTP status and writes the
// standard error body. Unknown errors collapse to a plain 500 so internals
// never leak to clients.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if !errors.As(err, &domainErr) {
		WriteJSON(w, http.StatusInternalServerError, errorBody{
			Error:       string(dErrors.CodeInternal),
			Description: "internal server error",
		})
		return
	}

	status := http.StatusInternalServerError
	switch domainErr.Code() {
	case dErrors.CodeInvalidInput:
		status = http.StatusBadRequest
	case dErrors.CodeUnauthorized:
		status = http.StatusUnauthorized
	case dErrors.CodeForbidden:
		status = http.StatusForbidden
	case dErrors.CodeNotFound:
		status = http.StatusNotFound
	case dErrors.CodeConflict:
		status = http.StatusConflict
	}

	description := domainErr.Message()
	if status == http.StatusInternalServerError {
		description = "internal server error"
	}
	WriteJSON(w, status, errorBody{
		Error:       string(domainErr.Code()),
		Description: description,
	})
}

// Package httputil translates domain errors into JSON HTTP responses so
// handlers never hand-roll status codes.
package httputil

import (
	"encoding/json"
	"errors"
	"net/http"

	dErrors "vigil/pkg/domain-errors"
)

var statusByCode = map[dErrors.Code]int{
	dErrors.CodeBadRequest:   http.StatusBadRequest,
	dErrors.CodeInvalidInput: http.StatusBadRequest,
	dErrors.CodeUnauthorized: http.StatusUnauthorized,
	dErrors.CodeForbidden:    http.StatusForbidden,
	dErrors.CodeNotFound:     http.StatusNotFound,
	dErrors.CodeConflict:     http.StatusConflict,
	dErrors.CodeTimeout:      http.StatusGatewayTimeout,
	dErrors.CodeInternal:     http.StatusInternalServerError,
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteError maps a domain error onto an HTTP status and JSON envelope.
// Internal errors never leak their description to the client.
func WriteError(w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	status, ok := statusByCode[code]
	if !ok {
		code = dErrors.CodeInternal
		status = http.StatusInternalServerError
	}

	body := map[string]string{"error": string(code)}
	var domainErr *dErrors.Error
	if code != dErrors.CodeInternal && errors.As(err, &domainErr) {
		body["error_description"] = domainErr.Message
	}
	WriteJSON(w, status, body)
}

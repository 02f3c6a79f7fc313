package httputil

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "vigil/pkg/domain-errors"
)

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		code       dErrors.Code
		wantStatus int
	}{
		{dErrors.CodeBadRequest, http.StatusBadRequest},
		{dErrors.CodeInvalidInput, http.StatusBadRequest},
		{dErrors.CodeUnauthorized, http.StatusUnauthorized},
		{dErrors.CodeNotFound, http.StatusNotFound},
		{dErrors.CodeConflict, http.StatusConflict},
		{dErrors.CodeTimeout, http.StatusGatewayTimeout},
	}

	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, dErrors.New(tt.code, "detail"))

			assert.Equal(t, tt.wantStatus, w.Code)
			body := decodeBody(t, w)
			assert.Equal(t, string(tt.code), body["error"])
			assert.Equal(t, "detail", body["error_description"])
		})
	}
}

func TestWriteError_InternalHidesDetail(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, dErrors.New(dErrors.CodeInternal, "pg: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "internal_error", body["error"])
	assert.NotContains(t, body, "error_description")
}

func TestWriteError_PlainErrorFallsBackToInternal(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, errors.New("boom"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, "internal_error", body["error"])
	assert.NotContains(t, body, "error_description")
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusCreated, map[string]int{"n": 3})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"n":3}`, w.Body.String())
}

package response

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bookshelf/internal/types"
)

func TestRespondErrorStatuses(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
	}{
		{"validation", fmt.Errorf("%w: year must be a number", types.ErrValidation), http.StatusBadRequest},
		{"not found", fmt.Errorf("%w: book 7", types.ErrNotFound), http.StatusNotFound},
		{"malformed", fmt.Errorf("%w: eof", types.ErrMalformedPayload), http.StatusUnprocessableEntity},
		{"upstream", fmt.Errorf("%w: status 503", types.ErrUpstream), http.StatusBadGateway},
		{"timeout", fmt.Errorf("searching: %w", context.DeadlineExceeded), http.StatusGatewayTimeout},
		{"storage", fmt.Errorf("%w: connection reset", types.ErrStorage), http.StatusInternalServerError},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			(&Responder{}).RespondError(w, context.Background(), tt.err)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))

			var body map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			assert.NotEmpty(t, body["err_id"])
		})
	}
}

func TestServerErrorsHiddenOutsideDebug(t *testing.T) {
	err := errors.New("secret dsn leaked")

	w := httptest.NewRecorder()
	(&Responder{}).RespondError(w, context.Background(), err)
	assert.NotContains(t, w.Body.String(), "secret")

	w = httptest.NewRecorder()
	(&Responder{DebugMode: true}).RespondError(w, context.Background(), err)
	assert.Contains(t, w.Body.String(), "Secret dsn leaked")
}

func TestClientErrorsShown(t *testing.T) {
	w := httptest.NewRecorder()
	(&Responder{}).RespondError(w, context.Background(), fmt.Errorf("%w: book 7", types.ErrNotFound))

	assert.Contains(t, w.Body.String(), "Not found: book 7")
}

func TestSendJsonStatus(t *testing.T) {
	w := httptest.NewRecorder()
	(&Responder{}).SendJsonStatus(w, context.Background(), http.StatusCreated, map[string]int{"id": 1})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"id": 1}`, w.Body.String())
}

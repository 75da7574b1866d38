package httputil

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLog() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestFailWritesDetailBody(t *testing.T) {
	w := httptest.NewRecorder()
	Fail(discardLog(), w, "patient not found", assert.AnError, http.StatusNotFound)

	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "patient not found", body["detail"])
}

func TestFailDefaultsToInternalError(t *testing.T) {
	w := httptest.NewRecorder()
	Fail(discardLog(), w, "boom", nil, 0)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestValidationErrorNamesField(t *testing.T) {
	type payload struct {
		Message string `validate:"required"`
	}
	err := Validator.Struct(payload{})
	require.Error(t, err)

	w := httptest.NewRecorder()
	ValidationError(discardLog(), w, err)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Contains(t, body["detail"], "Message")
	assert.Contains(t, body["detail"], "required")
}

func TestRecovererTurnsPanicInto500(t *testing.T) {
	h := Recoverer(discardLog())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.NotEmpty(t, body["detail"])
}

func TestHealthHandler(t *testing.T) {
	w := httptest.NewRecorder()
	HealthHandler(discardLog())(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", w.Body.String())
}

package httputil

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dErrors "vouch/pkg/domain-errors"
)

func TestWriteError(t *testing.T) {
	t.Run("internal error omits description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInternal, "db failed"))

		require.Equal(t, http.StatusInternalServerError, w.Code)
		var body map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "internal_error", body["error"])
		_, ok := body["error_description"]
		assert.False(t, ok, "expected error_description to be omitted for internal errors")
	})

	t.Run("uncoded errors are treated as internal", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, errors.New("pq: connection refused"))
		assert.Equal(t, http.StatusInternalServerError, w.Code)
		assert.NotContains(t, w.Body.String(), "connection refused")
	})

	t.Run("bad request includes description", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, dErrors.New(dErrors.CodeInvalidInput, "file is required"))

		require.Equal(t, http.StatusBadRequest, w.Code)
		var body map[string]any
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "invalid_input", body["error"])
		assert.Equal(t, "file is required", body["error_description"])
	})

	t.Run("guard errors carry details", func(t *testing.T) {
		w := httptest.NewRecorder()
		err := dErrors.New(dErrors.CodeEvidenceStale, "evidence is stale").
			WithDetails(map[string]any{"age_seconds": 7200, "ttl_seconds": 3600})
		WriteError(w, err)

		require.Equal(t, http.StatusUnprocessableEntity, w.Code)
		var body ErrorResponse
		require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
		assert.Equal(t, "evidence_stale", body.Error)
		assert.EqualValues(t, 7200, body.Details["age_seconds"])
	})
}

func TestStatusFor(t *testing.T) {
	cases := map[dErrors.Code]int{
		dErrors.CodeNotFound:             http.StatusNotFound,
		dErrors.CodeConflict:             http.StatusConflict,
		dErrors.CodeUnsupportedMediaType: http.StatusUnsupportedMediaType,
		dErrors.CodeEvidenceRequired:     http.StatusUnprocessableEntity,
		dErrors.CodeUnauthorized:         http.StatusUnauthorized,
	}
	for code, want := range cases {
		assert.Equal(t, want, StatusFor(code), code)
	}
}

type reasonBody struct {
	Reason string `json:"reason"`
}

func (b *reasonBody) Validate() error {
	b.Reason = strings.TrimSpace(b.Reason)
	if b.Reason == "" {
		return dErrors.New(dErrors.CodeValidation, "reason is required")
	}
	return nil
}

func TestDecodeAndPrepare(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	t.Run("valid body is normalized", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"  missing signature "}`))
		w := httptest.NewRecorder()
		body, ok := DecodeAndPrepare[reasonBody](w, r, logger, r.Context(), "req-1")
		require.True(t, ok)
		assert.Equal(t, "missing signature", body.Reason)
	})

	t.Run("unknown fields are rejected", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"x","extra":1}`))
		w := httptest.NewRecorder()
		_, ok := DecodeAndPrepare[reasonBody](w, r, logger, r.Context(), "req-1")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("validation failure is written", func(t *testing.T) {
		r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"reason":"   "}`))
		w := httptest.NewRecorder()
		_, ok := DecodeAndPrepare[reasonBody](w, r, logger, r.Context(), "req-1")
		assert.False(t, ok)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "reason is required")
	})
}

package utils

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/poofware/backoffice-service/internal/models"
)

func TestKindOf(t *testing.T) {
	cases := []struct {
		err  error
		want ErrorKind
	}{
		{nil, KindNone},
		{errors.New("disk on fire"), KindNone},
		{NewValidationError("situacion", "is required"), KindValidation},
		{fmt.Errorf("%w: 101", ErrOutOfRange), KindValidation},
		{fmt.Errorf("%w: x", ErrWorkOrderNotFound), KindNotFound},
		{fmt.Errorf("%w: x", ErrInvalidPlan), KindNotFound},
		{&TransitionError{From: models.WorkOrderStatePendiente, To: models.WorkOrderStateFinalizada}, KindConflict},
		{NewRowVersionConflictError(nil), KindConflict},
		{fmt.Errorf("wrapped: %w", ErrRowVersionConflict), KindConflict},
		{fmt.Errorf("%w: crew offline", ErrCrewUnavailable), KindUnavailable},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, KindOf(tc.err), "%v", tc.err)
	}
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) Envelope {
	t.Helper()
	var env Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	return env
}

func TestHandleAppError(t *testing.T) {
	t.Run("domain error answers 400 with its code", func(t *testing.T) {
		rec := httptest.NewRecorder()
		HandleAppError(rec, &TransitionError{From: models.WorkOrderStateCancelada, To: models.WorkOrderStateAsignada})

		assert.Equal(t, http.StatusBadRequest, rec.Code)
		env := decodeEnvelope(t, rec)
		assert.False(t, env.Success)
		require.NotNil(t, env.Error)
		assert.Equal(t, "invalid_transition", env.Error.Code)
		assert.Contains(t, env.Error.Message, "CANCELADA")
	})

	t.Run("conflict carries the current entity", func(t *testing.T) {
		rec := httptest.NewRecorder()
		HandleAppError(rec, NewRowVersionConflictError(map[string]int{"row_version": 4}))

		env := decodeEnvelope(t, rec)
		assert.Equal(t, "conflict", env.Error.Code)
		assert.Equal(t, map[string]any{"row_version": float64(4)}, env.Error.Details)
	})

	t.Run("explicit app error", func(t *testing.T) {
		rec := httptest.NewRecorder()
		HandleAppError(rec, &AppError{StatusCode: http.StatusUnauthorized, Code: ErrCodeUnauthorized, Message: "nope"})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
		assert.Equal(t, ErrCodeUnauthorized, decodeEnvelope(t, rec).Error.Code)
	})

	t.Run("unknown error is a 500 without internals", func(t *testing.T) {
		rec := httptest.NewRecorder()
		HandleAppError(rec, errors.New("pq: connection refused"))
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		env := decodeEnvelope(t, rec)
		assert.Equal(t, ErrCodeInternal, env.Error.Code)
		assert.NotContains(t, env.Error.Message, "pq")
	})
}

func TestRespondWithJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	RespondWithJSON(rec, http.StatusCreated, map[string]string{"id": "abc"})
	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	env := decodeEnvelope(t, rec)
	assert.True(t, env.Success)
	assert.Equal(t, map[string]any{"id": "abc"}, env.Data)
}

package responses

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/types"
)

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&out))
	return out
}

func TestWriteSuccessStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"withdrawalId": "w-1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	body := decode[types.SuccessEnvelope](t, w)
	assert.True(t, body.Success)
	assert.Equal(t, map[string]any{"withdrawalId": "w-1"}, body.Data)
}

func TestWriteError(t *testing.T) {
	mismatch := pkgerrors.New(pkgerrors.CodeAmountMismatch, "amount exceeds the cash owed to the platform").
		WithDetails(map[string]any{"expected": "460.00", "given": "500.00"})
	deadlock := fmt.Errorf("debit wallet: %w", &pgconn.PgError{Code: "40P01"})

	cases := []struct {
		name        string
		err         error
		status      int
		code        pkgerrors.Code
		message     string
		retryable   bool
		withDetails bool
	}{
		{
			name:        "typed client error keeps message and details",
			err:         mismatch,
			status:      http.StatusBadRequest,
			code:        pkgerrors.CodeAmountMismatch,
			message:     "amount exceeds the cash owed to the platform",
			withDetails: true,
		},
		{
			name:      "aborted transaction hides the cause",
			err:       pkgerrors.Wrap(pkgerrors.CodeTransactionAborted, errors.New("deadlock detected"), "transaction aborted"),
			status:    http.StatusConflict,
			code:      pkgerrors.CodeTransactionAborted,
			message:   pkgerrors.MetadataFor(pkgerrors.CodeTransactionAborted).PublicMessage,
			retryable: true,
		},
		{
			name:      "lock contention makes a conflict retryable",
			err:       pkgerrors.Wrap(pkgerrors.CodeConflict, deadlock, "wallet is busy"),
			status:    http.StatusConflict,
			code:      pkgerrors.CodeConflict,
			message:   "wallet is busy",
			retryable: true,
		},
		{
			name:      "untyped error is internal",
			err:       errors.New("boom"),
			status:    http.StatusInternalServerError,
			code:      pkgerrors.CodeInternal,
			message:   pkgerrors.MetadataFor(pkgerrors.CodeInternal).PublicMessage,
			retryable: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			w.Header().Set(requestIDHeader, "req-9")
			WriteError(context.Background(), nil, w, tc.err)

			assert.Equal(t, tc.status, w.Code)
			body := decode[types.ErrorEnvelope](t, w)
			assert.False(t, body.Success)
			assert.Equal(t, "req-9", body.RequestID)
			assert.Equal(t, string(tc.code), body.Error.Code)
			assert.Equal(t, tc.message, body.Error.Message)
			assert.Equal(t, tc.retryable, body.Error.Retryable)
			if tc.withDetails {
				assert.Equal(t, map[string]any{"expected": "460.00", "given": "500.00"}, body.Error.Details)
			} else {
				assert.Nil(t, body.Error.Details)
			}
		})
	}
}

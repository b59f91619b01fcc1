package db

import (
	"context"

	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"gorm.io/gorm"
)

// Tx is the transaction context every ledger mutation requires. Only
// Client.WithTx hands out a usable value.
type Tx struct {
	conn        *gorm.DB
	operationID string
	logg        *logger.Logger
}

// DB returns the transaction-bound GORM handle.
func (t Tx) DB() *gorm.DB {
	return t.conn
}

// OperationID correlates every log line and side effect of one unit of work.
func (t Tx) OperationID() string {
	return t.operationID
}

// Valid reports whether the value came from WithTx.
func (t Tx) Valid() bool {
	return t.conn != nil
}

// BestEffort runs fn inside a savepoint. A failure rolls back to the
// savepoint, is logged against the parent operation and does not abort the
// surrounding transaction. The error is returned for callers that report it.
func (t Tx) BestEffort(ctx context.Context, step string, fn func(tx Tx) error) error {
	err := t.conn.Transaction(func(nested *gorm.DB) error {
		return fn(Tx{conn: nested, operationID: t.operationID, logg: t.logg})
	})
	if err != nil && t.logg != nil {
		logCtx := t.logg.WithFields(ctx, map[string]any{
			"operation_id": t.operationID,
			"step":         step,
		})
		t.logg.Error(logCtx, "best-effort step failed", err)
	}
	return err
}

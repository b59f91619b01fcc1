package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"testing"

	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type testModel struct {
	ID   int
	Name string `gorm:"uniqueIndex"`
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		SkipDefaultTransaction: true,
	})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	require.NoError(t, conn.AutoMigrate(&testModel{}))

	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	return NewFromConn(conn, logg)
}

func countRows(t *testing.T, c *Client) int64 {
	t.Helper()
	var count int64
	require.NoError(t, c.DB().Model(&testModel{}).Count(&count).Error)
	return count
}

func TestWithTx_CommitsAndRollsBack(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	err := client.WithTx(ctx, func(tx Tx) error {
		assert.True(t, tx.Valid())
		assert.NotEmpty(t, tx.OperationID())
		return tx.DB().Create(&testModel{Name: "committed"}).Error
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, countRows(t, client))

	err = client.WithTx(ctx, func(tx Tx) error {
		if err := tx.DB().Create(&testModel{Name: "rolled"}).Error; err != nil {
			return err
		}
		return errors.New("boom")
	})
	require.Error(t, err)
	assert.EqualValues(t, 1, countRows(t, client))
}

func TestWithTx_ErrorMapping(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	err := client.WithTx(ctx, func(Tx) error {
		return errors.New("driver exploded")
	})
	require.Error(t, err)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeTransactionAborted))
	assert.Equal(t, "failed to process", pkgerrors.As(err).Message())

	err = client.WithTx(ctx, func(Tx) error {
		return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))
}

func TestWithTx_RetriesContention(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	var opIDs []string
	err := client.WithTx(ctx, func(tx Tx) error {
		opIDs = append(opIDs, tx.OperationID())
		if err := tx.DB().Create(&testModel{Name: fmt.Sprintf("try-%d", len(opIDs))}).Error; err != nil {
			return err
		}
		if len(opIDs) < 2 {
			return &pgconn.PgError{Code: "40001", Message: "could not serialize access"}
		}
		return nil
	})
	require.NoError(t, err)
	require.Len(t, opIDs, 2)
	assert.NotEqual(t, opIDs[0], opIDs[1])
	assert.EqualValues(t, 1, countRows(t, client))

	calls := 0
	err = client.WithTx(ctx, func(Tx) error {
		calls++
		return &pgconn.PgError{Code: "40P01", Message: "deadlock detected"}
	})
	assert.Equal(t, defaultTxAttempts, calls)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeTransactionAborted))
	assert.True(t, IsContention(err))
}

func TestWithTx_RollsBackOnPanic(t *testing.T) {
	client := newTestClient(t)

	assert.Panics(t, func() {
		_ = client.WithTx(context.Background(), func(tx Tx) error {
			require.NoError(t, tx.DB().Create(&testModel{Name: "panicky"}).Error)
			panic("kaboom")
		})
	})
	assert.EqualValues(t, 0, countRows(t, client))
}

func TestBestEffortKeepsParentTransaction(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	err := client.WithTx(ctx, func(tx Tx) error {
		if err := tx.DB().Create(&testModel{Name: "core"}).Error; err != nil {
			return err
		}
		stepErr := tx.BestEffort(ctx, "duplicate", func(inner Tx) error {
			assert.Equal(t, tx.OperationID(), inner.OperationID())
			return inner.DB().Create(&testModel{Name: "core"}).Error
		})
		assert.Error(t, stepErr)
		assert.True(t, IsUniqueViolation(stepErr, ""))
		return nil
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, countRows(t, client))
}

func TestPing(t *testing.T) {
	client := newTestClient(t)
	require.NoError(t, client.Ping(context.Background()))
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, IsNotFound(gorm.ErrRecordNotFound))
	assert.False(t, IsNotFound(errors.New("other")))
}

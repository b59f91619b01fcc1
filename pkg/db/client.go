package db

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"

	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/angelmondragon/settlement-backend/pkg/config"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

const defaultTxAttempts = 3

// Client is the shared connection pool plus the transaction runner every
// ledger mutation goes through.
type Client struct {
	conn       *gorm.DB
	logg       *logger.Logger
	txAttempts int
}

// Pinger exposes the health check surface.
type Pinger interface {
	Ping(ctx context.Context) error
}

// New opens Postgres, or SQLite when the dev flag is set, and sizes the pool.
func New(ctx context.Context, cfg config.DBConfig, logg *logger.Logger) (*Client, error) {
	dialector, err := dialectorFor(cfg)
	if err != nil {
		return nil, err
	}

	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger:                 gormlogger.New(log.New(io.Discard, "", 0), gormlogger.Config{LogLevel: gormlogger.Silent}),
		SkipDefaultTransaction: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening db connection: %w", err)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql db handle: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}
	if cfg.ConnMaxIdleTime > 0 {
		sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
	}

	client := NewFromConn(conn, logg)
	if cfg.TxAttempts > 0 {
		client.txAttempts = cfg.TxAttempts
	}
	if logg != nil {
		ctx = logg.WithFields(ctx, map[string]any{"sqlite": cfg.UseSQLite, "tx_attempts": client.txAttempts})
		logg.Info(ctx, "db.connected")
	}
	return client, nil
}

func dialectorFor(cfg config.DBConfig) (gorm.Dialector, error) {
	if cfg.UseSQLite {
		return sqlite.Open(cfg.SQLitePath), nil
	}
	if cfg.DSN == "" {
		return nil, errors.New("database DSN is required")
	}
	return postgres.New(postgres.Config{DSN: cfg.DSN, PreferSimpleProtocol: true}), nil
}

// NewFromConn wraps an already opened connection, mainly for SQLite-backed tests.
func NewFromConn(conn *gorm.DB, logg *logger.Logger) *Client {
	return &Client{conn: conn, logg: logg, txAttempts: defaultTxAttempts}
}

func (c *Client) DB() *gorm.DB {
	return c.conn
}

func (c *Client) Ping(ctx context.Context) error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (c *Client) Close() error {
	sqlDB, err := c.conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// WithTx runs fn in a transaction and commits when it returns nil.
//
// A run that loses a serialization or deadlock race is retried from the top
// with a fresh operation id, up to the configured attempts. Typed errors from
// fn are returned unchanged so callers still see NotFound or validation
// failures. Anything else is reported as TRANSACTION_ABORTED.
func (c *Client) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	var err error
	for attempt := 1; attempt <= c.txAttempts; attempt++ {
		err = c.runTx(ctx, fn)
		if err == nil || !IsContention(err) || ctx.Err() != nil {
			break
		}
		if c.logg != nil {
			c.logg.Warn(c.logg.WithField(ctx, "attempt", attempt), "db.tx_contention")
		}
	}
	if err == nil || pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeTransactionAborted, err, "failed to process")
}

func (c *Client) runTx(ctx context.Context, fn func(tx Tx) error) (err error) {
	operationID := uuid.NewString()
	if c.logg != nil {
		ctx = c.logg.WithOperationID(ctx, operationID)
	}

	gtx := c.conn.WithContext(ctx).Begin()
	if gtx.Error != nil {
		return gtx.Error
	}
	defer func() {
		if r := recover(); r != nil {
			gtx.Rollback()
			panic(r)
		}
	}()

	if err := fn(Tx{conn: gtx, operationID: operationID, logg: c.logg}); err != nil {
		gtx.Rollback()
		return err
	}
	return gtx.Commit().Error
}

package cron

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

const (
	day                 = 24 * time.Hour
	outboxRetentionDays = 30
	outboxDeadAttempts  = 10
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx db.Tx) error) error
}

type outboxPruner interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time, deadAttempts int) (int64, error)
}

// OutboxRetentionJobParams configure the ledger event cleanup. Zero values
// fall back to 30 days and 10 attempts.
type OutboxRetentionJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Repository    outboxPruner
	RetentionDays int
	// DeadAttempts must equal the publisher's max attempts so parked rows
	// are recognised.
	DeadAttempts int
}

// NewOutboxRetentionJob deletes ledger events that were published, or parked
// by the publisher, before the retention window.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	return &outboxRetentionJob{
		logg:         params.Logger,
		db:           params.DB,
		pruner:       params.Repository,
		keep:         time.Duration(cmp.Or(max(params.RetentionDays, 0), outboxRetentionDays)) * day,
		deadAttempts: cmp.Or(max(params.DeadAttempts, 0), outboxDeadAttempts),
		now:          time.Now,
	}, nil
}

type outboxRetentionJob struct {
	logg         *logger.Logger
	db           txRunner
	pruner       outboxPruner
	keep         time.Duration
	deadAttempts int
	now          func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox_retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.keep)

	var deleted int64
	if err := j.db.WithTx(ctx, func(tx db.Tx) (err error) {
		deleted, err = j.pruner.DeletePublishedBefore(tx.DB(), cutoff, j.deadAttempts)
		return err
	}); err != nil {
		return fmt.Errorf("prune outbox before %s: %w", cutoff.Format(time.DateOnly), err)
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":        cutoff,
		"dead_attempts": j.deadAttempts,
		"rows_deleted":  deleted,
	}), "cron.outbox_pruned")
	return nil
}

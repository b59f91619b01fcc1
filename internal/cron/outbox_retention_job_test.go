package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/db/dbtest"
)

type pruneCall struct {
	cutoff       time.Time
	deadAttempts int
}

type stubPruner struct {
	calls []pruneCall
	err   error
}

func (s *stubPruner) DeletePublishedBefore(_ *gorm.DB, cutoff time.Time, deadAttempts int) (int64, error) {
	s.calls = append(s.calls, pruneCall{cutoff: cutoff, deadAttempts: deadAttempts})
	return 7, s.err
}

func retentionJob(t *testing.T, pruner *stubPruner, params OutboxRetentionJobParams) *outboxRetentionJob {
	t.Helper()
	logg := dbtest.Logger()
	params.Logger = logg
	params.DB = db.NewFromConn(dbtest.Open(t), logg)
	params.Repository = pruner
	job, err := NewOutboxRetentionJob(params)
	require.NoError(t, err)
	return job.(*outboxRetentionJob)
}

func TestOutboxRetentionJobCutoff(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	cases := map[string]struct {
		params       OutboxRetentionJobParams
		wantCutoff   time.Time
		wantAttempts int
	}{
		"defaults":   {OutboxRetentionJobParams{}, now.AddDate(0, 0, -outboxRetentionDays), outboxDeadAttempts},
		"configured": {OutboxRetentionJobParams{RetentionDays: 7, DeadAttempts: 4}, now.AddDate(0, 0, -7), 4},
		"negative":   {OutboxRetentionJobParams{RetentionDays: -1, DeadAttempts: -1}, now.AddDate(0, 0, -outboxRetentionDays), outboxDeadAttempts},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			pruner := &stubPruner{}
			job := retentionJob(t, pruner, tc.params)
			job.now = func() time.Time { return now }

			require.NoError(t, job.Run(context.Background()))
			require.Len(t, pruner.calls, 1)
			assert.True(t, pruner.calls[0].cutoff.Equal(tc.wantCutoff))
			assert.Equal(t, tc.wantAttempts, pruner.calls[0].deadAttempts)
		})
	}
}

func TestOutboxRetentionJobWrapsError(t *testing.T) {
	boom := errors.New("boom")
	job := retentionJob(t, &stubPruner{err: boom}, OutboxRetentionJobParams{})

	err := job.Run(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestNewOutboxRetentionJobRequiresDependencies(t *testing.T) {
	_, err := NewOutboxRetentionJob(OutboxRetentionJobParams{})
	assert.Error(t, err)
}

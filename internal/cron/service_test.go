package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/settlement-backend/pkg/db/dbtest"
	"github.com/angelmondragon/settlement-backend/pkg/metrics"
)

type fakeLock struct {
	held     bool
	ttl      time.Duration
	released int
}

func (f *fakeLock) Acquire(_ context.Context, ttl time.Duration) (func(), bool, error) {
	if f.held {
		return func() {}, false, nil
	}
	f.ttl = ttl
	return func() { f.released++ }, true, nil
}

type testJob struct {
	name string
	err  error
	runs int
}

func (t *testJob) Name() string { return t.name }

func (t *testJob) Run(context.Context) error {
	t.runs++
	return t.err
}

func TestRunOnceRunsAllJobsEvenOnFailure(t *testing.T) {
	success := &testJob{name: "success"}
	failure := &testJob{name: "fail", err: errors.New("boom")}
	lock := &fakeLock{}
	registry := prometheus.NewRegistry()
	service, err := NewService(ServiceParams{
		Logger:   dbtest.Logger(),
		Jobs:     []Job{success, nil, failure},
		Lock:     lock,
		Metrics:  metrics.NewSettlementMetrics(registry),
		Interval: 10 * time.Minute,
	})
	require.NoError(t, err)

	err = service.RunOnce(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "fail: boom")
	assert.Equal(t, 1, success.runs)
	assert.Equal(t, 1, failure.runs)
	assert.Equal(t, 1, lock.released)
	assert.Equal(t, 10*time.Minute, lock.ttl)

	outcomes := map[string]string{}
	families, err := registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "settlement_operations_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			labels := map[string]string{}
			for _, label := range metric.GetLabel() {
				labels[label.GetName()] = label.GetValue()
			}
			outcomes[labels["operation"]] = labels["outcome"]
		}
	}
	assert.Equal(t, metrics.OutcomeSuccess, outcomes["cron_success"])
	assert.Equal(t, metrics.OutcomeFailure, outcomes["cron_fail"])
}

func TestRunOnceSkipsWhenLockHeld(t *testing.T) {
	job := &testJob{name: "job"}
	service, err := NewService(ServiceParams{
		Logger: dbtest.Logger(),
		Jobs:   []Job{job},
		Lock:   &fakeLock{held: true},
	})
	require.NoError(t, err)

	require.NoError(t, service.RunOnce(context.Background()))
	assert.Zero(t, job.runs)
	assert.Equal(t, defaultInterval, service.interval)
}

func TestNewServiceRequiresLock(t *testing.T) {
	_, err := NewService(ServiceParams{Logger: dbtest.Logger()})
	assert.Error(t, err)
}

type slowJob struct{ deadline bool }

func (s *slowJob) Name() string { return "slow" }

func (s *slowJob) Run(ctx context.Context) error {
	_, s.deadline = ctx.Deadline()
	return nil
}

func TestRunOnceBoundsJobsByInterval(t *testing.T) {
	job := &slowJob{}
	service, err := NewService(ServiceParams{
		Logger:   dbtest.Logger(),
		Jobs:     []Job{job},
		Lock:     &fakeLock{},
		Interval: time.Minute,
	})
	require.NoError(t, err)

	require.NoError(t, service.RunOnce(context.Background()))
	assert.True(t, job.deadline)
}

func TestRunStopsOnCancel(t *testing.T) {
	job := &testJob{name: "job"}
	service, err := NewService(ServiceParams{
		Logger:   dbtest.Logger(),
		Jobs:     []Job{job},
		Lock:     &fakeLock{},
		Interval: time.Hour,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, service.Run(ctx), context.Canceled)
	assert.Equal(t, 1, job.runs)
}

package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/config"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/metrics"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
	"github.com/angelmondragon/settlement-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/settlement-backend/pkg/outbox/registry"
)

var errTransient = errors.New("transient")

// rig wires a Service to in-memory fakes.
type rig struct {
	svc      *Service
	store    *memOutbox
	topic    *recordingTopic
	resolver *stubResolver
	registry *prometheus.Registry
	builds   int
}

func newRig(t *testing.T, cfg config.OutboxConfig, rows ...models.OutboxEvent) *rig {
	t.Helper()
	r := &rig{
		store:    &memOutbox{rows: rows},
		topic:    &recordingTopic{},
		resolver: &stubResolver{topic: "ledger-topic"},
		registry: prometheus.NewRegistry(),
	}
	svc, err := NewService(ServiceParams{
		Outbox:     cfg,
		Logger:     logger.New(logger.Options{ServiceName: "outbox-publisher-test", Output: io.Discard}),
		Metrics:    metrics.NewSettlementMetrics(r.registry),
		DB:         pingTx{},
		PubSub:     pingTopics{},
		Repository: r.store,
		Registry:   r.resolver,
		PublisherFactory: func(string) publisher {
			r.builds++
			return r.topic
		},
	})
	require.NoError(t, err)
	r.svc = svc
	return r
}

func (r *rig) drain(t *testing.T) bool {
	t.Helper()
	processed, err := r.svc.processBatch(context.Background())
	require.NoError(t, err)
	return processed
}

func (r *rig) outcomes(t *testing.T, outcome string) float64 {
	t.Helper()
	families, err := r.registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "settlement_operations_total" {
			continue
		}
		for _, m := range family.GetMetric() {
			labels := map[string]string{}
			for _, pair := range m.GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			if labels["operation"] == opPublish && labels["outcome"] == outcome {
				return m.GetCounter().GetValue()
			}
		}
	}
	return 0
}

func ledgerRow(t *testing.T, attempts int) models.OutboxEvent {
	t.Helper()
	payload, err := json.Marshal(outbox.PayloadEnvelope{
		Version:    outbox.CurrentVersion,
		EventID:    uuid.NewString(),
		OccurredAt: time.Now(),
		Data:       json.RawMessage(`{}`),
	})
	require.NoError(t, err)
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderDistributed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       payload,
		AttemptCount:  attempts,
	}
}

func TestProcessBatchIdle(t *testing.T) {
	r := newRig(t, config.OutboxConfig{})
	assert.False(t, r.drain(t))
	assert.Zero(t, r.builds)
}

func TestProcessBatchIsolatesPublishFailures(t *testing.T) {
	failing, healthy := ledgerRow(t, 0), ledgerRow(t, 0)
	r := newRig(t, config.OutboxConfig{BatchSize: 2}, failing, healthy)
	r.topic.errs = []error{errTransient}

	assert.True(t, r.drain(t))
	assert.Equal(t, []uuid.UUID{failing.ID}, r.store.failed)
	assert.Equal(t, []uuid.UUID{healthy.ID}, r.store.published)

	require.Len(t, r.topic.sent, 2)
	attrs := r.topic.sent[1].Attributes
	assert.Equal(t, string(enums.EventOrderDistributed), attrs["event_type"])
	assert.Equal(t, healthy.AggregateID.String(), attrs["aggregate_id"])
	assert.Equal(t, 1.0, r.outcomes(t, metrics.OutcomeSuccess))
	assert.Equal(t, 1.0, r.outcomes(t, metrics.OutcomeFailure))
}

func TestProcessBatchKeepsAggregateOrder(t *testing.T) {
	created := ledgerRow(t, 0)
	distributed := ledgerRow(t, 0)
	distributed.AggregateID = created.AggregateID
	unrelated := ledgerRow(t, 0)

	r := newRig(t, config.OutboxConfig{BatchSize: 3}, created, distributed, unrelated)
	r.topic.errs = []error{errTransient}
	r.drain(t)

	require.Len(t, r.topic.sent, 2, "the later event of the failed order waits for the next batch")
	assert.Equal(t, "order:"+created.AggregateID.String(), r.topic.sent[0].OrderingKey)
	assert.Equal(t, []uuid.UUID{created.ID}, r.store.failed)
	assert.Equal(t, []uuid.UUID{unrelated.ID}, r.store.published)
	assert.Equal(t, 1.0, r.outcomes(t, metrics.OutcomeSkipped))
	assert.Equal(t, 1, r.builds, "one publisher per topic")

	r.svc.stopPublishers()
	assert.Equal(t, 1, r.topic.stops)
	assert.Empty(t, r.svc.publishers)
}

func TestProcessBatchParksEvents(t *testing.T) {
	t.Run("unresolvable", func(t *testing.T) {
		row := ledgerRow(t, 0)
		r := newRig(t, config.OutboxConfig{MaxAttempts: 5}, row)
		r.resolver.err = registry.NewNonRetryableError(errors.New("invalid payload"))

		r.drain(t)
		assert.Equal(t, []uuid.UUID{row.ID}, r.store.terminal)
		assert.Equal(t, 5, r.store.parkedAt)
		assert.Empty(t, r.topic.sent)
		assert.Empty(t, r.store.published)
	})

	t.Run("out of attempts", func(t *testing.T) {
		row := ledgerRow(t, 1)
		r := newRig(t, config.OutboxConfig{BatchSize: 1, MaxAttempts: 2}, row)
		r.topic.errs = []error{errTransient}

		r.drain(t)
		assert.Equal(t, []uuid.UUID{row.ID}, r.store.terminal)
		assert.Empty(t, r.store.failed)
	})
}

func TestNextBackoff(t *testing.T) {
	base := 100 * time.Millisecond
	assert.Equal(t, 200*time.Millisecond, nextBackoff(0, base, time.Second))
	assert.Equal(t, time.Second, nextBackoff(800*time.Millisecond, base, time.Second))

	got := withJitter(base)
	assert.GreaterOrEqual(t, got, base)
	assert.Less(t, got, base+jitterWindow)
}

type memOutbox struct {
	rows      []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	terminal  []uuid.UUID
	parkedAt  int
}

func (m *memOutbox) FetchUnpublishedForPublish(_ *gorm.DB, limit, _ int) ([]models.OutboxEvent, error) {
	return m.rows[:min(limit, len(m.rows))], nil
}

func (m *memOutbox) MarkPublishedTx(_ *gorm.DB, id uuid.UUID) error {
	m.published = append(m.published, id)
	return nil
}

func (m *memOutbox) MarkFailedTx(_ *gorm.DB, id uuid.UUID, _ error) error {
	m.failed = append(m.failed, id)
	return nil
}

func (m *memOutbox) MarkTerminalTx(_ *gorm.DB, id uuid.UUID, _ error, attempts int) error {
	m.terminal = append(m.terminal, id)
	m.parkedAt = attempts
	return nil
}

type pingTx struct{}

func (pingTx) Ping(context.Context) error { return nil }

func (pingTx) WithTx(_ context.Context, fn func(db.Tx) error) error { return fn(db.Tx{}) }

type pingTopics struct{}

func (pingTopics) Ping(context.Context) error { return nil }

func (pingTopics) Publisher(string) *gcppubsub.Publisher { return nil }

// recordingTopic fails publishes in the order errs lists, then succeeds.
type recordingTopic struct {
	errs  []error
	sent  []*gcppubsub.Message
	stops int
}

func (p *recordingTopic) Publish(_ context.Context, msg *gcppubsub.Message) publishResult {
	p.sent = append(p.sent, msg)
	var err error
	if len(p.errs) > 0 {
		err, p.errs = p.errs[0], p.errs[1:]
	}
	return settled{err: err}
}

func (p *recordingTopic) Stop() { p.stops++ }

type settled struct{ err error }

func (s settled) Get(context.Context) (string, error) { return "server-id", s.err }

type stubResolver struct {
	topic string
	err   error
}

func (s *stubResolver) Resolve(event models.OutboxEvent) (*registry.ResolvedEvent, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &registry.ResolvedEvent{
		Descriptor: registry.EventDescriptor{Topic: s.topic, AggregateType: event.AggregateType},
		Envelope: outbox.PayloadEnvelope{
			Version:    outbox.CurrentVersion,
			EventID:    event.ID.String(),
			OccurredAt: time.Now(),
		},
		Payload: &payloads.OrderDistributedEvent{},
	}, nil
}

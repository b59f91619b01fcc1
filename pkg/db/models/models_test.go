package models

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

func TestOutboxEventOrderingAndExhaustion(t *testing.T) {
	orderID := uuid.New()
	event := OutboxEvent{AggregateType: enums.AggregateOrder, AggregateID: orderID, AttemptCount: 9}

	assert.Equal(t, "order:"+orderID.String(), event.OrderingKey())
	assert.False(t, event.Exhausted(10))

	event.AttemptCount = 10
	assert.True(t, event.Exhausted(10))
	assert.False(t, event.Exhausted(0))

	now := time.Now()
	event.PublishedAt = &now
	assert.False(t, event.Exhausted(10))
}

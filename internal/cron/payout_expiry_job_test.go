package cron

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/settlement-backend/internal/payouts"
	"github.com/angelmondragon/settlement-backend/pkg/db/dbtest"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

func TestPayoutExpiryJobFailsOnlyStaleCreatedPayouts(t *testing.T) {
	conn := dbtest.Open(t)
	partner := dbtest.DeliveryPartner(t, conn, "0")
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	insert := func(status enums.PayoutStatus, age time.Duration, reference string) *models.PayoutPayment {
		payout := &models.PayoutPayment{
			DeliveryPartnerID: partner.ID,
			Amount:            dbtest.D("100"),
			Status:            status,
			Reference:         reference,
			CreatedAt:         now.Add(-age),
		}
		require.NoError(t, conn.Create(payout).Error)
		return payout
	}
	stale := insert(enums.PayoutStatusCreated, 30*time.Hour, "PAY-stale")
	fresh := insert(enums.PayoutStatusCreated, time.Hour, "PAY-fresh")
	captured := insert(enums.PayoutStatusCaptured, 72*time.Hour, "PAY-captured")

	job, err := NewPayoutExpiryJob(PayoutExpiryJobParams{
		Logger:     dbtest.Logger(),
		Repository: payouts.NewRepository(conn),
	})
	require.NoError(t, err)
	job.(*payoutExpiryJob).now = func() time.Time { return now }

	require.NoError(t, job.Run(context.Background()))

	status := func(payout *models.PayoutPayment) enums.PayoutStatus {
		var row models.PayoutPayment
		require.NoError(t, conn.First(&row, "id = ?", payout.ID).Error)
		return row.Status
	}
	assert.Equal(t, enums.PayoutStatusFailed, status(stale))
	assert.Equal(t, enums.PayoutStatusCreated, status(fresh))
	assert.Equal(t, enums.PayoutStatusCaptured, status(captured))

	require.NoError(t, job.Run(context.Background()))
	assert.Equal(t, enums.PayoutStatusFailed, status(stale))
}

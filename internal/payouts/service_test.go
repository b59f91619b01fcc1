package payouts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/internal/catalog"
	"github.com/angelmondragon/settlement-backend/internal/settlement"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/db/dbtest"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/metrics"
	"github.com/angelmondragon/settlement-backend/pkg/square"
)

type fakePayments struct {
	getFn func(ctx context.Context, paymentID string) (*square.CapturedPayment, error)
	calls int
}

func (f *fakePayments) GetPayment(ctx context.Context, paymentID string) (*square.CapturedPayment, error) {
	f.calls++
	return f.getFn(ctx, paymentID)
}

type fakeReconciler struct {
	reconcileFn func(ctx context.Context, tx db.Tx, remittance settlement.Remittance) (*settlement.Reconciliation, error)
	calls       int
}

func (f *fakeReconciler) ReconcileCODPayout(ctx context.Context, tx db.Tx, remittance settlement.Remittance) (*settlement.Reconciliation, error) {
	f.calls++
	return f.reconcileFn(ctx, tx, remittance)
}

type fakeLocker struct {
	held     bool
	released int
}

func (f *fakeLocker) Acquire(context.Context, string, time.Duration) (func(), bool, error) {
	if f.held {
		return func() {}, false, nil
	}
	return func() { f.released++ }, true, nil
}

type harness struct {
	conn       *gorm.DB
	svc        Service
	payments   *fakePayments
	reconciler *fakeReconciler
	locker     *fakeLocker
	registry   *prometheus.Registry
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	logg := dbtest.Logger()
	h := &harness{
		conn:     conn,
		payments: &fakePayments{},
		locker:   &fakeLocker{},
		registry: prometheus.NewRegistry(),
	}
	h.reconciler = &fakeReconciler{
		reconcileFn: func(_ context.Context, _ db.Tx, remittance settlement.Remittance) (*settlement.Reconciliation, error) {
			orderID := uuid.New()
			return &settlement.Reconciliation{
				PartnerID:       remittance.PartnerID,
				Amount:          remittance.Amount,
				OrdersProcessed: 1,
				SettledOrderIDs: []uuid.UUID{orderID},
				Remaining:       dbtest.D("40"),
			}, nil
		},
	}
	svc, err := NewService(Deps{
		DB:         db.NewFromConn(conn, logg),
		Repo:       NewRepository(conn),
		Delivery:   catalog.NewDeliveryRepository(conn),
		Payments:   h.payments,
		Reconciler: h.reconciler,
		Locker:     h.locker,
		Metrics:    metrics.NewSettlementMetrics(h.registry),
		Logger:     logg,
		Currency:   "inr",
	})
	require.NoError(t, err)
	h.svc = svc
	return h
}

func (h *harness) partnerOwing(t *testing.T, owed string) *models.DeliveryPartner {
	t.Helper()
	partner := dbtest.DeliveryPartner(t, h.conn, "0")
	require.NoError(t, h.conn.Model(&models.DeliveryPartner{}).
		Where("id = ?", partner.ID).
		Update("pending_admin_payout", dbtest.D(owed)).Error)
	return partner
}

func (h *harness) completed(payout *models.PayoutPayment, cents int64) {
	h.payments.getFn = func(_ context.Context, paymentID string) (*square.CapturedPayment, error) {
		return &square.CapturedPayment{
			ID:          paymentID,
			Status:      square.PaymentStatusCompleted,
			AmountCents: cents,
			Currency:    "INR",
			ReferenceID: payout.Reference,
		}, nil
	}
}

func TestCreateValidatesAgainstOwedCash(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	partner := h.partnerOwing(t, "460")

	_, err := h.svc.Create(ctx, partner.ID, dbtest.D("0"))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	_, err = h.svc.Create(ctx, uuid.New(), dbtest.D("10"))
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = h.svc.Create(ctx, partner.ID, dbtest.D("460.02"))
	require.True(t, pkgerrors.Is(err, pkgerrors.CodeAmountMismatch))
	details := pkgerrors.As(err).Details().(map[string]any)
	assert.Equal(t, "460.00", details["expected"])
	assert.Equal(t, "460.02", details["given"])

	intent, err := h.svc.Create(ctx, partner.ID, dbtest.D("460.01"))
	require.NoError(t, err)
	assert.Equal(t, int64(46001), intent.AmountCents)
	assert.Equal(t, "INR", intent.Currency)
	assert.Equal(t, enums.PayoutStatusCreated, intent.Payout.Status)
	assert.Regexp(t, `^PAY-[0-9a-f]{32}$`, intent.Payout.Reference)
}

func TestVerifyCapturesOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	partner := h.partnerOwing(t, "500")
	intent, err := h.svc.Create(ctx, partner.ID, dbtest.D("500"))
	require.NoError(t, err)
	h.completed(intent.Payout, 50000)

	input := VerifyInput{PartnerID: partner.ID, PayoutID: intent.Payout.ID, ProviderPaymentID: "sq_pay_1"}
	result, err := h.svc.Verify(ctx, input)
	require.NoError(t, err)
	assert.False(t, result.AlreadyProcessed)
	require.NotNil(t, result.Reconciliation)
	assert.Equal(t, 1, h.locker.released)

	var stored models.PayoutPayment
	require.NoError(t, h.conn.First(&stored, "id = ?", intent.Payout.ID).Error)
	assert.Equal(t, enums.PayoutStatusCaptured, stored.Status)
	require.NotNil(t, stored.ProviderPaymentID)
	assert.Equal(t, "sq_pay_1", *stored.ProviderPaymentID)
	assert.Equal(t, 1, stored.OrdersSettled)
	assert.Len(t, stored.SettledOrderIDs, 1)
	assert.Equal(t, "40.00", stored.Leftover.Round(2).StringFixed(2))

	again, err := h.svc.Verify(ctx, input)
	require.NoError(t, err)
	assert.True(t, again.AlreadyProcessed)
	assert.Nil(t, again.Reconciliation)
	assert.Equal(t, 1, h.reconciler.calls)
	assert.Equal(t, 1, h.payments.calls)

	_, err = h.svc.Verify(ctx, VerifyInput{PartnerID: partner.ID, PayoutID: intent.Payout.ID, ProviderPaymentID: "sq_pay_2"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))

	assert.Equal(t, 500.0, h.amountTotal(t, opVerify))
}

func (h *harness) amountTotal(t *testing.T, operation string) float64 {
	t.Helper()
	families, err := h.registry.Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() != "settlement_amount_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "operation" && label.GetValue() == operation {
					return metric.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func TestVerifyRejectsBadPayments(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	partner := h.partnerOwing(t, "300")
	intent, err := h.svc.Create(ctx, partner.ID, dbtest.D("300"))
	require.NoError(t, err)
	input := VerifyInput{PartnerID: partner.ID, PayoutID: intent.Payout.ID, ProviderPaymentID: "sq_pay_9"}

	h.payments.getFn = func(context.Context, string) (*square.CapturedPayment, error) {
		return &square.CapturedPayment{Status: "APPROVED", AmountCents: 30000, ReferenceID: intent.Payout.Reference}, nil
	}
	_, err = h.svc.Verify(ctx, input)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	h.completed(intent.Payout, 29000)
	_, err = h.svc.Verify(ctx, input)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeAmountMismatch))

	h.payments.getFn = func(context.Context, string) (*square.CapturedPayment, error) {
		return &square.CapturedPayment{Status: square.PaymentStatusCompleted, AmountCents: 30000, ReferenceID: "PAY-other"}, nil
	}
	_, err = h.svc.Verify(ctx, input)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))

	h.payments.getFn = func(context.Context, string) (*square.CapturedPayment, error) {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "square get payment failed")
	}
	_, err = h.svc.Verify(ctx, input)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeDependency))

	_, err = h.svc.Verify(ctx, VerifyInput{PartnerID: uuid.New(), PayoutID: intent.Payout.ID, ProviderPaymentID: "sq_pay_9"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	assert.Zero(t, h.reconciler.calls)
	var stored models.PayoutPayment
	require.NoError(t, h.conn.First(&stored, "id = ?", intent.Payout.ID).Error)
	assert.Equal(t, enums.PayoutStatusCreated, stored.Status)
}

func TestVerifyHonoursPartnerLock(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	partner := h.partnerOwing(t, "100")
	intent, err := h.svc.Create(ctx, partner.ID, dbtest.D("100"))
	require.NoError(t, err)
	h.completed(intent.Payout, 10000)
	h.locker.held = true

	_, err = h.svc.Verify(ctx, VerifyInput{PartnerID: partner.ID, PayoutID: intent.Payout.ID, ProviderPaymentID: "sq_pay_3"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))
	assert.Zero(t, h.payments.calls)
}

func TestVerifyRollsBackWhenReconcileFails(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	partner := h.partnerOwing(t, "100")
	intent, err := h.svc.Create(ctx, partner.ID, dbtest.D("100"))
	require.NoError(t, err)
	h.completed(intent.Payout, 10000)
	h.reconciler.reconcileFn = func(context.Context, db.Tx, settlement.Remittance) (*settlement.Reconciliation, error) {
		return nil, errors.New("boom")
	}

	_, err = h.svc.Verify(ctx, VerifyInput{PartnerID: partner.ID, PayoutID: intent.Payout.ID, ProviderPaymentID: "sq_pay_4"})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeTransactionAborted))

	var stored models.PayoutPayment
	require.NoError(t, h.conn.First(&stored, "id = ?", intent.Payout.ID).Error)
	assert.Equal(t, enums.PayoutStatusCreated, stored.Status)
	assert.Nil(t, stored.ProviderPaymentID)
}

package ledger

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/internal/catalog"
	"github.com/angelmondragon/settlement-backend/internal/commission"
	"github.com/angelmondragon/settlement-backend/internal/orders"
	"github.com/angelmondragon/settlement-backend/internal/platformwallet"
	"github.com/angelmondragon/settlement-backend/internal/wallet"
	"github.com/angelmondragon/settlement-backend/pkg/config"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/db/dbtest"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
	"github.com/angelmondragon/settlement-backend/pkg/pagination"
)

type harness struct {
	conn     *gorm.DB
	client   *db.Client
	svc      Service
	platform platformwallet.Service
	calc     commission.Calculator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	conn := dbtest.Open(t)
	logg := dbtest.Logger()

	sellers := catalog.NewSellerRepository(conn)
	delivery := catalog.NewDeliveryRepository(conn)
	resolver, err := commission.NewRateResolver(commission.Lookups{
		Products:   catalog.NewProductRepository(conn),
		Categories: catalog.NewCategoryRepository(conn),
		Sellers:    sellers,
		Delivery:   delivery,
		Settings:   catalog.NewSettingsProvider(conn),
	}, config.SettlementConfig{FallbackCommissionPercent: 10, FallbackDeliveryPercent: 5, EpsilonCents: 1}, logg)
	require.NoError(t, err)
	calc, err := commission.NewCalculator(resolver)
	require.NoError(t, err)
	wallets, err := wallet.NewService(wallet.NewRepository(conn), sellers, delivery, logg)
	require.NoError(t, err)
	platform, err := platformwallet.NewService(platformwallet.NewRepository(conn), logg)
	require.NoError(t, err)

	svc, err := NewService(Deps{
		Repo:       NewRepository(conn),
		Orders:     orders.NewRepository(conn),
		Calculator: calc,
		Wallets:    wallets,
		Platform:   platform,
		Outbox:     outbox.NewService(outbox.NewRepository(conn), logg),
		Logger:     logg,
	})
	require.NoError(t, err)
	return &harness{conn: conn, client: db.NewFromConn(conn, logg), svc: svc, platform: platform, calc: calc}
}

func (h *harness) balance(t *testing.T, seller *models.Seller) string {
	t.Helper()
	var row models.Seller
	require.NoError(t, h.conn.First(&row, "id = ?", seller.ID).Error)
	return row.Balance.Round(2).StringFixed(2)
}

func (h *harness) events(t *testing.T, eventType enums.OutboxEventType) int64 {
	t.Helper()
	var count int64
	require.NoError(t, h.conn.Model(&models.OutboxEvent{}).Where("event_type = ?", eventType).Count(&count).Error)
	return count
}

func TestCreateOrderCommissionsCreditsPaidOnlineOrder(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seller := dbtest.Seller(t, h.conn, "0")
	product := dbtest.Product(t, h.conn, seller.ID, nil, nil, nil)
	order := dbtest.Order(t, h.conn, dbtest.OrderFixture{
		PaymentStatus: enums.PaymentStatusPaid,
		PlatformFee:   "5",
		Items:         []dbtest.Item{{Product: product, Total: "100"}, {Product: product, Total: "50", Rate: "20"}},
	})

	var created []models.Commission
	err := h.client.WithTx(ctx, func(tx db.Tx) error {
		var err error
		created, err = h.svc.CreateOrderCommissions(ctx, tx, order)
		return err
	})
	require.NoError(t, err)
	require.Len(t, created, 2)
	for _, leg := range created {
		assert.Equal(t, enums.CommissionStatusPaid, leg.Status)
		assert.NotNil(t, leg.PaidAt)
	}

	// 100 at the 10% fallback nets 90, 50 at the frozen 20% nets 40.
	assert.Equal(t, "130.00", h.balance(t, seller))

	var items []models.OrderItem
	require.NoError(t, h.conn.Where("order_id = ?", order.ID).Order("created_at ASC, id ASC").Find(&items).Error)
	for _, item := range items {
		require.NotNil(t, item.CommissionRate)
	}

	pw, err := h.platform.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "155.00", pw.TotalPlatformEarning.Round(2).StringFixed(2))
	assert.Equal(t, "155.00", pw.CurrentPlatformBalance.Round(2).StringFixed(2))
	assert.Equal(t, "130.00", pw.SellerPendingPayouts.Round(2).StringFixed(2))
	assert.EqualValues(t, 1, h.events(t, enums.EventCommissionsCreated))

	// A second run finds the legs and changes nothing.
	err = h.client.WithTx(ctx, func(tx db.Tx) error {
		again, err := h.svc.CreateOrderCommissions(ctx, tx, order)
		assert.Nil(t, again)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, "130.00", h.balance(t, seller))
	assert.EqualValues(t, 1, h.events(t, enums.EventCommissionsCreated))
}

func TestCreateOrderCommissionsCreditsPaidOnlineSeller(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seller := dbtest.Seller(t, h.conn, "10")
	product := dbtest.Product(t, h.conn, seller.ID, nil, nil, nil)
	order := dbtest.Order(t, h.conn, dbtest.OrderFixture{
		PaymentStatus: enums.PaymentStatusPaid,
		Items:         []dbtest.Item{{Product: product, Total: "100"}},
	})

	require.NoError(t, h.client.WithTx(ctx, func(tx db.Tx) error {
		created, err := h.svc.CreateOrderCommissions(ctx, tx, order)
		require.NoError(t, err)
		require.Len(t, created, 1)
		assert.Equal(t, "10.00", created[0].CommissionAmount.StringFixed(2))
		return nil
	}))
	assert.Equal(t, "90.00", h.balance(t, seller))
}

func TestCreateOrderCommissionsSkipsCODAndRejectsUnpaid(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seller := dbtest.Seller(t, h.conn, "0")
	product := dbtest.Product(t, h.conn, seller.ID, nil, nil, nil)
	cod := dbtest.Order(t, h.conn, dbtest.OrderFixture{
		Method: enums.PaymentMethodCOD,
		Items:  []dbtest.Item{{Product: product, Total: "100"}},
	})
	unpaid := dbtest.Order(t, h.conn, dbtest.OrderFixture{Items: []dbtest.Item{{Product: product, Total: "100"}}})

	require.NoError(t, h.client.WithTx(ctx, func(tx db.Tx) error {
		created, err := h.svc.CreateOrderCommissions(ctx, tx, cod)
		assert.Empty(t, created)
		return err
	}))

	err := h.client.WithTx(ctx, func(tx db.Tx) error {
		_, err := h.svc.CreateOrderCommissions(ctx, tx, unpaid)
		return err
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeInvalidTransition))

	var count int64
	require.NoError(t, h.conn.Model(&models.Commission{}).Count(&count).Error)
	assert.Zero(t, count)
	assert.Equal(t, "0.00", h.balance(t, seller))
}

func TestReverseOrderCommissionsDebitsPaidLegsOnly(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seller := dbtest.Seller(t, h.conn, "10")
	other := dbtest.Seller(t, h.conn, "10")
	product := dbtest.Product(t, h.conn, seller.ID, nil, nil, nil)
	otherProduct := dbtest.Product(t, h.conn, other.ID, nil, nil, nil)
	order := dbtest.Order(t, h.conn, dbtest.OrderFixture{
		PaymentStatus: enums.PaymentStatusPaid,
		Items:         []dbtest.Item{{Product: product, Total: "100"}},
	})

	require.NoError(t, h.client.WithTx(ctx, func(tx db.Tx) error {
		if _, err := h.svc.CreateOrderCommissions(ctx, tx, order); err != nil {
			return err
		}
		breakdown, err := h.calc.WithTx(tx.DB()).Breakdown(ctx, &models.Order{
			ID:    order.ID,
			Items: []models.OrderItem{{ID: uuid.New(), ProductID: otherProduct.ID, SellerID: other.ID, Total: dbtest.D("40")}},
		})
		if err != nil {
			return err
		}
		_, err = h.svc.CreatePendingSellerLegs(ctx, tx, breakdown)
		return err
	}))
	assert.Equal(t, "90.00", h.balance(t, seller))

	order.Status = enums.OrderStatusCancelled
	var reversal *Reversal
	require.NoError(t, h.client.WithTx(ctx, func(tx db.Tx) error {
		var err error
		reversal, err = h.svc.ReverseOrderCommissions(ctx, tx, order)
		return err
	}))
	require.Len(t, reversal.CommissionIDs, 1)
	require.Len(t, reversal.Debits, 1)
	assert.Equal(t, "90.00", reversal.Debits[0].Amount.StringFixed(2))
	assert.Equal(t, "0.00", h.balance(t, seller))
	assert.Equal(t, "0.00", h.balance(t, other))

	var pending int64
	require.NoError(t, h.conn.Model(&models.Commission{}).
		Where("order_id = ? AND status = ?", order.ID, enums.CommissionStatusPending).
		Count(&pending).Error)
	assert.EqualValues(t, 1, pending)

	pw, err := h.platform.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "0.00", pw.SellerPendingPayouts.Round(2).StringFixed(2))
	assert.EqualValues(t, 1, h.events(t, enums.EventCommissionsReversed))

	// Cancelled legs never reverse again.
	require.NoError(t, h.client.WithTx(ctx, func(tx db.Tx) error {
		again, err := h.svc.ReverseOrderCommissions(ctx, tx, order)
		assert.Empty(t, again.CommissionIDs)
		return err
	}))
	assert.Equal(t, "0.00", h.balance(t, seller))
}

func TestReverseOrderCommissionsMayOverdraw(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seller := dbtest.Seller(t, h.conn, "10")
	product := dbtest.Product(t, h.conn, seller.ID, nil, nil, nil)
	order := dbtest.Order(t, h.conn, dbtest.OrderFixture{
		PaymentStatus: enums.PaymentStatusPaid,
		Items:         []dbtest.Item{{Product: product, Total: "100"}},
	})

	require.NoError(t, h.client.WithTx(ctx, func(tx db.Tx) error {
		_, err := h.svc.CreateOrderCommissions(ctx, tx, order)
		return err
	}))
	require.NoError(t, h.conn.Model(&models.Seller{}).Where("id = ?", seller.ID).Update("balance", dbtest.D("30")).Error)

	order.Status = enums.OrderStatusCancelled
	require.NoError(t, h.client.WithTx(ctx, func(tx db.Tx) error {
		reversal, err := h.svc.ReverseOrderCommissions(ctx, tx, order)
		if err != nil {
			return err
		}
		assert.Len(t, reversal.Debits, 1)
		return nil
	}))
	assert.Equal(t, "-60.00", h.balance(t, seller))
}

func TestCreateDeliveryLegEnforcesSingleActiveLeg(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	partner := dbtest.DeliveryPartner(t, h.conn, "0")
	orderID := uuid.New()
	split := commission.DeliverySplit{
		PartnerID:  &partner.ID,
		Base:       dbtest.D("8"),
		Rate:       dbtest.D("5"),
		PartnerCut: dbtest.D("40"),
	}

	require.NoError(t, h.client.WithTx(ctx, func(tx db.Tx) error {
		leg, err := h.svc.CreateDeliveryLeg(ctx, tx, orderID, split, enums.CommissionStatusPaid)
		require.NoError(t, err)
		assert.NotNil(t, leg.PaidAt)
		return nil
	}))

	err := h.client.WithTx(ctx, func(tx db.Tx) error {
		_, err := h.svc.CreateDeliveryLeg(ctx, tx, orderID, split, enums.CommissionStatusPending)
		return err
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeConflict))

	err = h.client.WithTx(ctx, func(tx db.Tx) error {
		_, err := h.svc.CreateDeliveryLeg(ctx, tx, orderID, commission.DeliverySplit{}, enums.CommissionStatusPaid)
		return err
	})
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestRepositoryPendingCODLegsAreFIFO(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	seller := dbtest.Seller(t, h.conn, "0")
	partner := dbtest.DeliveryPartner(t, h.conn, "0")
	product := dbtest.Product(t, h.conn, seller.ID, nil, nil, nil)
	r := NewRepository(h.conn)

	newer := dbtest.Order(t, h.conn, dbtest.OrderFixture{
		Method: enums.PaymentMethodCOD, Status: enums.OrderStatusDelivered, Partner: partner,
		CreatedAt: dbtest.Time("2026-03-02T10:00:00Z"),
		Items:     []dbtest.Item{{Product: product, Total: "100"}},
	})
	older := dbtest.Order(t, h.conn, dbtest.OrderFixture{
		Method: enums.PaymentMethodCOD, Status: enums.OrderStatusDelivered, Partner: partner,
		CreatedAt: dbtest.Time("2026-03-01T10:00:00Z"),
		Items:     []dbtest.Item{{Product: product, Total: "100"}},
	})
	online := dbtest.Order(t, h.conn, dbtest.OrderFixture{
		Status: enums.OrderStatusDelivered, Partner: partner,
		Items: []dbtest.Item{{Product: product, Total: "100"}},
	})
	for _, o := range []*models.Order{newer, older, online} {
		require.NoError(t, r.Create(ctx, &models.Commission{
			OrderID:     o.ID,
			Type:        enums.CommissionTypeSeller,
			SellerID:    &seller.ID,
			OrderAmount: dbtest.D("100"),
			Status:      enums.CommissionStatusPending,
		}))
	}

	legs, err := r.ListPendingCODSellerLegs(ctx, partner.ID)
	require.NoError(t, err)
	require.Len(t, legs, 2)
	assert.Equal(t, older.ID, legs[0].OrderID)
	assert.Equal(t, newer.ID, legs[1].OrderID)

	ok, err := r.Transition(ctx, legs[0].ID, enums.CommissionStatusPending, enums.CommissionStatusPaid, dbtest.Time("2026-03-03T10:00:00Z"))
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = r.Transition(ctx, legs[0].ID, enums.CommissionStatusPending, enums.CommissionStatusPaid, dbtest.Time("2026-03-03T10:00:00Z"))
	require.NoError(t, err)
	assert.False(t, ok)

	page, total, err := h.svc.ListPartyCommissions(ctx, enums.PartySeller, seller.ID, pagination.Params{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	assert.Len(t, page, 2)
}

package commission

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/db/dbtest"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

type fakeResolver struct {
	productFn  func(productID uuid.UUID) ProductRate
	deliveryFn func(partnerID *uuid.UUID) DeliveryRate
}

func (f *fakeResolver) WithTx(*gorm.DB) RateResolver { return f }

func (f *fakeResolver) ProductRate(_ context.Context, productID uuid.UUID, _ *uuid.UUID) ProductRate {
	if f.productFn != nil {
		return f.productFn(productID)
	}
	return ProductRate{Percent: decimal.NewFromInt(10), Source: SourceFallback}
}

func (f *fakeResolver) DeliveryRate(_ context.Context, partnerID *uuid.UUID) DeliveryRate {
	if f.deliveryFn != nil {
		return f.deliveryFn(partnerID)
	}
	return DeliveryRate{Percent: decimal.NewFromInt(5), Source: SourceFallback}
}

func distanceRate(perKm string) func(*uuid.UUID) DeliveryRate {
	return func(*uuid.UUID) DeliveryRate {
		return DeliveryRate{Distance: true, PerKm: dbtest.D(perKm), Percent: dbtest.D("5")}
	}
}

func newCalculator(t *testing.T, resolver RateResolver) Calculator {
	t.Helper()
	calc, err := NewCalculator(resolver)
	require.NoError(t, err)
	return calc
}

func item(seller uuid.UUID, total string, rate string) models.OrderItem {
	it := models.OrderItem{ID: uuid.New(), ProductID: uuid.New(), SellerID: seller, Quantity: 1, Total: dbtest.D(total)}
	if rate != "" {
		r := dbtest.D(rate)
		it.CommissionRate = &r
	}
	return it
}

func order(method enums.PaymentMethod, fee, charge string, items ...models.OrderItem) *models.Order {
	subtotal := decimal.Zero
	for _, it := range items {
		subtotal = subtotal.Add(it.Total)
	}
	o := &models.Order{
		ID:             uuid.New(),
		OrderNumber:    "1001",
		PaymentMethod:  method,
		Subtotal:       subtotal,
		PlatformFee:    dbtest.D(fee),
		DeliveryCharge: dbtest.D(charge),
		Items:          items,
	}
	o.Total = subtotal.Add(o.PlatformFee).Add(o.DeliveryCharge)
	return o
}

func TestBreakdownSellerSplit(t *testing.T) {
	calc := newCalculator(t, &fakeResolver{})
	seller := uuid.New()

	got, err := calc.Breakdown(context.Background(), order(enums.PaymentMethodOnline, "0", "0", item(seller, "100", "")))
	require.NoError(t, err)

	require.Len(t, got.Items, 1)
	assert.Equal(t, "10.00", got.Items[0].Commission.StringFixed(2))
	assert.Equal(t, "90.00", got.Items[0].SellerNet.StringFixed(2))
	assert.Equal(t, "90.00", got.SellerEarnings()[seller].StringFixed(2))
	assert.Equal(t, "10.00", got.AdminProductCommission.StringFixed(2))
}

func TestBreakdownReusesFrozenRates(t *testing.T) {
	calls := 0
	calc := newCalculator(t, &fakeResolver{productFn: func(uuid.UUID) ProductRate {
		calls++
		return ProductRate{Percent: dbtest.D("20"), Source: SourceCategory}
	}})
	seller := uuid.New()
	o := order(enums.PaymentMethodOnline, "0", "0", item(seller, "100", "12"), item(seller, "50", ""))

	got, err := calc.Breakdown(context.Background(), o)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, "12.00", got.Items[0].Commission.StringFixed(2))
	assert.True(t, got.Items[0].Frozen)
	assert.Equal(t, "10.00", got.Items[1].Commission.StringFixed(2))

	frozen := got.FrozenRates()
	assert.Len(t, frozen, 1)
	assert.True(t, frozen[o.Items[1].ID].Equal(dbtest.D("20")))

	require.Len(t, got.Sellers, 1)
	assert.Equal(t, "128.00", got.Sellers[0].Net.StringFixed(2))
	assert.Equal(t, "14.67", got.Sellers[0].EffectiveRate().StringFixed(2))
}

func TestBreakdownSellerEarningsPlusCommissionEqualsSubtotal(t *testing.T) {
	rates := []string{"7.5", "12.25", "3.33", "10"}
	calc := newCalculator(t, &fakeResolver{})
	sellers := []uuid.UUID{uuid.New(), uuid.New()}

	totals := []string{"19.99", "0.03", "1234.57", "99.95", "10.01", "333.33"}
	var items []models.OrderItem
	for i, total := range totals {
		items = append(items, item(sellers[i%2], total, rates[i%len(rates)]))
	}
	got, err := calc.Breakdown(context.Background(), order(enums.PaymentMethodOnline, "0", "0", items...))
	require.NoError(t, err)

	sum := got.AdminProductCommission
	for _, net := range got.SellerEarnings() {
		sum = sum.Add(net)
	}
	assert.True(t, sum.Sub(got.Subtotal).Abs().LessThanOrEqual(dbtest.D("0.01")), "sum %s subtotal %s", sum, got.Subtotal)
}

func TestBreakdownCODDistanceBased(t *testing.T) {
	calc := newCalculator(t, &fakeResolver{
		productFn:  func(uuid.UUID) ProductRate { return ProductRate{Percent: dbtest.D("10")} },
		deliveryFn: distanceRate("5"),
	})
	partner := uuid.New()
	o := order(enums.PaymentMethodCOD, "10", "50", item(uuid.New(), "440", ""))
	o.DeliveryPartnerID = &partner
	km := dbtest.D("8")
	o.DeliveryDistanceKm = &km

	got, err := calc.Breakdown(context.Background(), o)
	require.NoError(t, err)
	assert.Equal(t, "500.00", got.Total.StringFixed(2))
	assert.True(t, got.Delivery.DistanceBased)
	assert.Equal(t, "40.00", got.Delivery.PartnerCut.StringFixed(2))
	assert.Equal(t, "10.00", got.Delivery.AdminShare.StringFixed(2))
	assert.True(t, got.Delivery.PartnerCut.Add(got.Delivery.AdminShare).Equal(got.DeliveryCharge))
	assert.Equal(t, "460.00", got.AmountDeliveryBoyOwesAdmin.StringFixed(2))
	// 44 product commission + 10 platform fee + 10 delivery share
	assert.Equal(t, "64.00", got.TotalAdminEarning.StringFixed(2))
}

func TestBreakdownDistanceCutCappedAtCharge(t *testing.T) {
	calc := newCalculator(t, &fakeResolver{deliveryFn: distanceRate("5")})
	o := order(enums.PaymentMethodOnline, "0", "30", item(uuid.New(), "100", ""))
	km := dbtest.D("12")
	o.DeliveryDistanceKm = &km

	got, err := calc.Breakdown(context.Background(), o)
	require.NoError(t, err)
	assert.Equal(t, "30.00", got.Delivery.PartnerCut.StringFixed(2))
	assert.True(t, got.Delivery.AdminShare.IsZero())
}

func TestBreakdownPercentFallbackKeepsWholeCharge(t *testing.T) {
	calc := newCalculator(t, &fakeResolver{deliveryFn: distanceRate("5")})
	// distance pricing is on but the order carries no distance or coordinates
	o := order(enums.PaymentMethodOnline, "5", "40", item(uuid.New(), "200", ""))

	got, err := calc.Breakdown(context.Background(), o)
	require.NoError(t, err)
	assert.False(t, got.Delivery.DistanceBased)
	assert.Equal(t, "10.00", got.Delivery.PartnerCut.StringFixed(2))
	assert.Equal(t, "40.00", got.Delivery.AdminShare.StringFixed(2))
	assert.Equal(t, "65.00", got.TotalAdminEarning.StringFixed(2))
	assert.Equal(t, "235.00", got.AmountDeliveryBoyOwesAdmin.StringFixed(2))
}

func TestBreakdownUsesCoordinatesWhenDistanceMissing(t *testing.T) {
	calc := newCalculator(t, &fakeResolver{deliveryFn: distanceRate("10")})
	o := order(enums.PaymentMethodOnline, "0", "500", item(uuid.New(), "100", ""))
	pickupLat, pickupLng, dropLat, dropLng := 12.9716, 77.5946, 13.0358, 77.5970
	o.PickupLat, o.PickupLng, o.DropLat, o.DropLng = &pickupLat, &pickupLng, &dropLat, &dropLng

	got, err := calc.Breakdown(context.Background(), o)
	require.NoError(t, err)
	assert.True(t, got.Delivery.DistanceBased)
	assert.InDelta(t, 7.14, got.Delivery.Base.InexactFloat64(), 0.05)
	assert.True(t, got.Delivery.PartnerCut.Add(got.Delivery.AdminShare).Equal(got.DeliveryCharge))
}

func TestPreviewProjectsParties(t *testing.T) {
	calc := newCalculator(t, &fakeResolver{})
	a, b := uuid.New(), uuid.New()
	o := order(enums.PaymentMethodOnline, "0", "20", item(a, "100", ""), item(b, "60", ""), item(a, "40", ""))

	preview, err := calc.Preview(context.Background(), o)
	require.NoError(t, err)
	require.Len(t, preview.Sellers, 2)
	assert.Equal(t, a, preview.Sellers[0].SellerID)
	assert.Equal(t, "14.00", preview.Sellers[0].Commission.StringFixed(2))
	assert.Equal(t, "6.00", preview.Sellers[1].Commission.StringFixed(2))
	assert.Equal(t, "10.00", preview.Delivery.PartnerCut.StringFixed(2))
}

func TestBreakdownRequiresOrder(t *testing.T) {
	calc := newCalculator(t, &fakeResolver{})
	_, err := calc.Breakdown(context.Background(), nil)
	assert.Error(t, err)
}

func TestHaversineKm(t *testing.T) {
	assert.InDelta(t, 0, haversineKm(10, 10, 10, 10), 1e-9)
	assert.InDelta(t, 111.19, haversineKm(0, 0, 1, 0), 0.01)
}

package commission

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/money"
)

// ItemSplit is the commission on one order line.
type ItemSplit struct {
	OrderItemID uuid.UUID       `json:"orderItemId"`
	ProductID   uuid.UUID       `json:"productId"`
	SellerID    uuid.UUID       `json:"sellerId"`
	ItemTotal   decimal.Decimal `json:"itemTotal"`
	Rate        decimal.Decimal `json:"commissionRate"`
	RateSource  string          `json:"rateSource"`
	Frozen      bool            `json:"frozen"`
	Commission  decimal.Decimal `json:"commission"`
	SellerNet   decimal.Decimal `json:"sellerNet"`
}

// SellerSplit sums the items of one seller.
type SellerSplit struct {
	SellerID   uuid.UUID       `json:"sellerId"`
	ItemsTotal decimal.Decimal `json:"itemsTotal"`
	Commission decimal.Decimal `json:"commission"`
	Net        decimal.Decimal `json:"net"`
}

// EffectiveRate is the blended percentage of the seller's items.
func (s SellerSplit) EffectiveRate() decimal.Decimal {
	if !s.ItemsTotal.IsPositive() {
		return decimal.Zero
	}
	return money.Round2(s.Commission.Mul(decimal.NewFromInt(100)).Div(s.ItemsTotal))
}

// DeliverySplit divides the delivery charge between partner and platform.
// Base is the distance in km when DistanceBased, else the order subtotal.
type DeliverySplit struct {
	PartnerID     *uuid.UUID      `json:"partnerId,omitempty"`
	DistanceBased bool            `json:"distanceBased"`
	Base          decimal.Decimal `json:"base"`
	Rate          decimal.Decimal `json:"rate"`
	RateSource    string          `json:"rateSource"`
	PartnerCut    decimal.Decimal `json:"deliveryBoyCommission"`
	AdminShare    decimal.Decimal `json:"adminDeliveryCommission"`
}

// Breakdown is the full monetary split of one order.
type Breakdown struct {
	OrderID                    uuid.UUID       `json:"orderId"`
	OrderNumber                string          `json:"orderNumber"`
	Subtotal                   decimal.Decimal `json:"subtotal"`
	PlatformFee                decimal.Decimal `json:"platformFee"`
	DeliveryCharge             decimal.Decimal `json:"totalDeliveryCharge"`
	Total                      decimal.Decimal `json:"total"`
	Items                      []ItemSplit     `json:"items"`
	Sellers                    []SellerSplit   `json:"sellers"`
	AdminProductCommission     decimal.Decimal `json:"adminProductCommission"`
	Delivery                   DeliverySplit   `json:"delivery"`
	TotalAdminEarning          decimal.Decimal `json:"totalAdminEarning"`
	AmountDeliveryBoyOwesAdmin decimal.Decimal `json:"amountDeliveryBoyOwesAdmin"`
}

// SellerEarnings maps each seller to their net earning.
func (b *Breakdown) SellerEarnings() map[uuid.UUID]decimal.Decimal {
	out := make(map[uuid.UUID]decimal.Decimal, len(b.Sellers))
	for _, s := range b.Sellers {
		out[s.SellerID] = s.Net
	}
	return out
}

// FrozenRates returns the rate per order item, for persisting on first billing.
func (b *Breakdown) FrozenRates() map[uuid.UUID]decimal.Decimal {
	out := make(map[uuid.UUID]decimal.Decimal, len(b.Items))
	for _, item := range b.Items {
		if !item.Frozen {
			out[item.OrderItemID] = item.Rate
		}
	}
	return out
}

// Preview is the per-party commission projection of an order.
type Preview struct {
	OrderID  uuid.UUID     `json:"orderId"`
	Sellers  []SellerSplit `json:"sellers"`
	Delivery DeliverySplit `json:"delivery"`
}

// Calculator computes order splits without persisting anything.
type Calculator interface {
	WithTx(tx *gorm.DB) Calculator
	Breakdown(ctx context.Context, order *models.Order) (*Breakdown, error)
	Preview(ctx context.Context, order *models.Order) (*Preview, error)
	DeliverySplit(ctx context.Context, order *models.Order) (DeliverySplit, error)
}

type calculator struct {
	rates RateResolver
}

// NewCalculator wires a calculator over the rate resolver.
func NewCalculator(rates RateResolver) (Calculator, error) {
	if rates == nil {
		return nil, fmt.Errorf("rate resolver required")
	}
	return &calculator{rates: rates}, nil
}

func (c *calculator) WithTx(tx *gorm.DB) Calculator {
	if tx == nil {
		return c
	}
	return &calculator{rates: c.rates.WithTx(tx)}
}

// Breakdown expects order.Items to be loaded. Rates frozen on items are reused.
func (c *calculator) Breakdown(ctx context.Context, order *models.Order) (*Breakdown, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}

	out := &Breakdown{
		OrderID:        order.ID,
		OrderNumber:    order.OrderNumber,
		Subtotal:       money.Round2(order.Subtotal),
		PlatformFee:    money.Round2(order.PlatformFee),
		DeliveryCharge: money.Round2(order.DeliveryCharge),
		Total:          money.Round2(order.Total),
		Items:          make([]ItemSplit, 0, len(order.Items)),
	}

	sellerIndex := map[uuid.UUID]int{}
	adminProduct := decimal.Zero
	for _, item := range order.Items {
		split := ItemSplit{
			OrderItemID: item.ID,
			ProductID:   item.ProductID,
			SellerID:    item.SellerID,
			ItemTotal:   money.Round2(item.Total),
		}
		if item.CommissionRate != nil {
			split.Rate = *item.CommissionRate
			split.RateSource = "frozen"
			split.Frozen = true
		} else {
			sellerID := item.SellerID
			resolved := c.rates.ProductRate(ctx, item.ProductID, &sellerID)
			split.Rate = resolved.Percent
			split.RateSource = resolved.Source
		}
		split.Commission = money.Percent(split.ItemTotal, split.Rate)
		split.SellerNet = split.ItemTotal.Sub(split.Commission)
		out.Items = append(out.Items, split)
		adminProduct = adminProduct.Add(split.Commission)

		idx, ok := sellerIndex[item.SellerID]
		if !ok {
			idx = len(out.Sellers)
			sellerIndex[item.SellerID] = idx
			out.Sellers = append(out.Sellers, SellerSplit{SellerID: item.SellerID})
		}
		s := &out.Sellers[idx]
		s.ItemsTotal = s.ItemsTotal.Add(split.ItemTotal)
		s.Commission = s.Commission.Add(split.Commission)
		s.Net = s.Net.Add(split.SellerNet)
	}
	out.AdminProductCommission = adminProduct

	delivery, err := c.DeliverySplit(ctx, order)
	if err != nil {
		return nil, err
	}
	out.Delivery = delivery
	out.TotalAdminEarning = money.Round2(adminProduct.Add(out.PlatformFee).Add(delivery.AdminShare))
	out.AmountDeliveryBoyOwesAdmin = money.ClampZero(out.Total.Sub(delivery.PartnerCut))
	return out, nil
}

// DeliverySplit prices the partner's cut. Distance pricing caps the cut at the
// delivery charge and hands the platform the remainder. The percentage
// fallback takes the cut from the subtotal and leaves the whole charge to the
// platform.
func (c *calculator) DeliverySplit(ctx context.Context, order *models.Order) (DeliverySplit, error) {
	if order == nil {
		return DeliverySplit{}, pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	charge := money.Round2(order.DeliveryCharge)
	rate := c.rates.DeliveryRate(ctx, order.DeliveryPartnerID)
	split := DeliverySplit{PartnerID: order.DeliveryPartnerID}

	if rate.Distance {
		if km, ok := deliveryDistance(order); ok {
			cut := money.Round2(km.Mul(rate.PerKm))
			if cut.GreaterThan(charge) {
				cut = charge
			}
			split.DistanceBased = true
			split.Base = km
			split.Rate = rate.PerKm
			split.RateSource = SourceDistance
			split.PartnerCut = cut
			split.AdminShare = charge.Sub(cut)
			return split, nil
		}
	}

	split.Base = money.Round2(order.Subtotal)
	split.Rate = rate.Percent
	split.RateSource = rate.Source
	split.PartnerCut = money.Percent(split.Base, rate.Percent)
	split.AdminShare = charge
	return split, nil
}

func (c *calculator) Preview(ctx context.Context, order *models.Order) (*Preview, error) {
	breakdown, err := c.Breakdown(ctx, order)
	if err != nil {
		return nil, err
	}
	return &Preview{
		OrderID:  breakdown.OrderID,
		Sellers:  breakdown.Sellers,
		Delivery: breakdown.Delivery,
	}, nil
}

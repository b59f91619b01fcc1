package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// Commission is one party's leg of an order. OrderAmount is the base the rate
// was applied to: item total for sellers, distance in km or subtotal for the
// delivery partner.
//
// At most one non-cancelled delivery_boy leg exists per order
// (ux_commissions_delivery_active).
type Commission struct {
	ID                uuid.UUID              `gorm:"column:id;type:uuid;primaryKey"`
	OrderID           uuid.UUID              `gorm:"column:order_id;type:uuid;not null;index;uniqueIndex:ux_commissions_delivery_active,where:type = 'delivery_boy' AND status <> 'cancelled'"`
	OrderItemID       *uuid.UUID             `gorm:"column:order_item_id;type:uuid"`
	Type              enums.CommissionType   `gorm:"column:type;type:text;not null"`
	SellerID          *uuid.UUID             `gorm:"column:seller_id;type:uuid;index"`
	DeliveryPartnerID *uuid.UUID             `gorm:"column:delivery_partner_id;type:uuid;index"`
	OrderAmount       decimal.Decimal        `gorm:"column:order_amount;type:numeric(14,2);not null"`
	CommissionRate    decimal.Decimal        `gorm:"column:commission_rate;type:numeric(10,2);not null"`
	CommissionAmount  decimal.Decimal        `gorm:"column:commission_amount;type:numeric(14,2);not null"`
	Status            enums.CommissionStatus `gorm:"column:status;type:text;not null;index"`
	PaidAt            *time.Time             `gorm:"column:paid_at"`
	CancelledAt       *time.Time             `gorm:"column:cancelled_at"`
	CreatedAt         time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Commission) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// PartyID returns the seller or delivery partner the leg belongs to.
func (c *Commission) PartyID() uuid.UUID {
	if c.Type == enums.CommissionTypeDeliveryBoy && c.DeliveryPartnerID != nil {
		return *c.DeliveryPartnerID
	}
	if c.SellerID != nil {
		return *c.SellerID
	}
	return uuid.Nil
}

// WalletAmount is what a Paid leg credits to its party: the seller's net
// earning or the delivery partner's cut.
func (c *Commission) WalletAmount() decimal.Decimal {
	if c.Type == enums.CommissionTypeDeliveryBoy {
		return c.CommissionAmount
	}
	return c.OrderAmount.Sub(c.CommissionAmount)
}

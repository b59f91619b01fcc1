package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// Order is the customer order the settlement engine splits. Total is
// Subtotal + PlatformFee + DeliveryCharge.
type Order struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber        string              `gorm:"column:order_number;not null;uniqueIndex:ux_orders_order_number"`
	CustomerID         uuid.UUID           `gorm:"column:customer_id;type:uuid;not null"`
	DeliveryPartnerID  *uuid.UUID          `gorm:"column:delivery_partner_id;type:uuid;index"`
	PaymentMethod      enums.PaymentMethod `gorm:"column:payment_method;type:text;not null"`
	PaymentStatus      enums.PaymentStatus `gorm:"column:payment_status;type:text;not null;default:'pending'"`
	Status             enums.OrderStatus   `gorm:"column:status;type:text;not null;default:'pending'"`
	Subtotal           decimal.Decimal     `gorm:"column:subtotal;type:numeric(14,2);not null"`
	PlatformFee        decimal.Decimal     `gorm:"column:platform_fee;type:numeric(14,2);not null;default:0"`
	DeliveryCharge     decimal.Decimal     `gorm:"column:delivery_charge;type:numeric(14,2);not null;default:0"`
	Total              decimal.Decimal     `gorm:"column:total;type:numeric(14,2);not null"`
	DeliveryDistanceKm *decimal.Decimal    `gorm:"column:delivery_distance_km;type:numeric(8,2)"`
	PickupLat          *float64            `gorm:"column:pickup_lat"`
	PickupLng          *float64            `gorm:"column:pickup_lng"`
	DropLat            *float64            `gorm:"column:drop_lat"`
	DropLng            *float64            `gorm:"column:drop_lng"`
	PaidAt             *time.Time          `gorm:"column:paid_at"`
	DeliveredAt        *time.Time          `gorm:"column:delivered_at"`
	CancelledAt        *time.Time          `gorm:"column:cancelled_at"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime;index"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`
	Items              []OrderItem         `gorm:"foreignKey:OrderID;references:ID"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	assignID(&o.ID)
	return nil
}

// IsCOD reports whether the delivery partner collects payment in person.
func (o *Order) IsCOD() bool {
	return o.PaymentMethod.CollectsCash()
}

// OrderItem is one billed line. CommissionRate is frozen the first time the
// item is billed and reused by every later computation.
type OrderItem struct {
	ID             uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID        `gorm:"column:order_id;type:uuid;not null;index"`
	ProductID      uuid.UUID        `gorm:"column:product_id;type:uuid;not null"`
	SellerID       uuid.UUID        `gorm:"column:seller_id;type:uuid;not null"`
	Quantity       int              `gorm:"column:quantity;not null"`
	UnitPrice      decimal.Decimal  `gorm:"column:unit_price;type:numeric(14,2);not null"`
	Total          decimal.Decimal  `gorm:"column:total;type:numeric(14,2);not null"`
	CommissionRate *decimal.Decimal `gorm:"column:commission_rate;type:numeric(5,2)"`
	CreatedAt      time.Time        `gorm:"column:created_at;autoCreateTime"`
}

func (i *OrderItem) BeforeCreate(*gorm.DB) error {
	assignID(&i.ID)
	return nil
}

package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	dbtypes "github.com/angelmondragon/settlement-backend/pkg/db/types"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	"github.com/angelmondragon/settlement-backend/pkg/types"
)

// WithdrawRequest is a party's request to cash out wallet balance.
type WithdrawRequest struct {
	ID                   uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	UserID               uuid.UUID                   `gorm:"column:user_id;type:uuid;not null;index"`
	UserType             enums.PartyType             `gorm:"column:user_type;type:text;not null"`
	Amount               decimal.Decimal             `gorm:"column:amount;type:numeric(14,2);not null"`
	Status               enums.WithdrawStatus        `gorm:"column:status;type:text;not null;index"`
	PaymentMethod        enums.WithdrawPaymentMethod `gorm:"column:payment_method;type:text;not null"`
	AccountDetails       types.AccountDetails        `gorm:"column:account_details;type:jsonb"`
	Remarks              *string                     `gorm:"column:remarks"`
	TransactionReference *string                     `gorm:"column:transaction_reference"`
	ProcessedBy          *uuid.UUID                  `gorm:"column:processed_by;type:uuid"`
	ProcessedAt          *time.Time                  `gorm:"column:processed_at"`
	CreatedAt            time.Time                   `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time                   `gorm:"column:updated_at;autoUpdateTime"`
}

func (w *WithdrawRequest) BeforeCreate(*gorm.DB) error {
	assignID(&w.ID)
	return nil
}

// PayoutPayment records a delivery partner's remittance of collected COD cash.
// ProviderPaymentID is unique so one captured payment settles orders once.
type PayoutPayment struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	DeliveryPartnerID uuid.UUID          `gorm:"column:delivery_partner_id;type:uuid;not null;index"`
	Amount            decimal.Decimal    `gorm:"column:amount;type:numeric(14,2);not null"`
	Status            enums.PayoutStatus `gorm:"column:status;type:text;not null"`
	Reference         string             `gorm:"column:reference;not null;uniqueIndex:ux_payout_payments_reference"`
	ProviderPaymentID *string            `gorm:"column:provider_payment_id;uniqueIndex:ux_payout_payments_provider_payment"`
	OrdersSettled     int                `gorm:"column:orders_settled;not null;default:0"`
	SettledOrderIDs   dbtypes.UUIDArray  `gorm:"column:settled_order_ids;type:text"`
	Leftover          decimal.Decimal    `gorm:"column:leftover;type:numeric(14,2);not null;default:0"`
	CapturedAt        *time.Time         `gorm:"column:captured_at"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *PayoutPayment) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

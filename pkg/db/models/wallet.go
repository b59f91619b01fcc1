package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// WalletTransaction is an append-only entry of a party's wallet ledger.
type WalletTransaction struct {
	ID                  uuid.UUID                   `gorm:"column:id;type:uuid;primaryKey"`
	UserID              uuid.UUID                   `gorm:"column:user_id;type:uuid;not null;index:ix_wallet_transactions_party,priority:1"`
	UserType            enums.PartyType             `gorm:"column:user_type;type:text;not null;index:ix_wallet_transactions_party,priority:2"`
	Amount              decimal.Decimal             `gorm:"column:amount;type:numeric(14,2);not null"`
	Type                enums.WalletTransactionType `gorm:"column:type;type:text;not null"`
	Description         string                      `gorm:"column:description;not null"`
	Status              string                      `gorm:"column:status;type:text;not null;default:'completed'"`
	Reference           string                      `gorm:"column:reference;not null;uniqueIndex:ux_wallet_transactions_reference"`
	RelatedOrderID      *uuid.UUID                  `gorm:"column:related_order_id;type:uuid;index"`
	RelatedCommissionID *uuid.UUID                  `gorm:"column:related_commission_id;type:uuid"`
	BalanceAfter        decimal.Decimal             `gorm:"column:balance_after;type:numeric(14,2);not null"`
	CreatedAt           time.Time                   `gorm:"column:created_at;autoCreateTime"`
}

func (w *WalletTransaction) BeforeCreate(*gorm.DB) error {
	assignID(&w.ID)
	return nil
}

// SingletonKey is the fixed key of process-wide singleton rows.
const SingletonKey = "platform"

// PlatformWallet is the single running-totals row of the marketplace money
// position. All counters are non-negative.
type PlatformWallet struct {
	ID                        uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SingletonKey              string          `gorm:"column:singleton_key;not null;uniqueIndex:ux_platform_wallet_singleton"`
	TotalPlatformEarning      decimal.Decimal `gorm:"column:total_platform_earning;type:numeric(16,2);not null;default:0"`
	CurrentPlatformBalance    decimal.Decimal `gorm:"column:current_platform_balance;type:numeric(16,2);not null;default:0"`
	TotalAdminEarning         decimal.Decimal `gorm:"column:total_admin_earning;type:numeric(16,2);not null;default:0"`
	PendingFromDeliveryBoy    decimal.Decimal `gorm:"column:pending_from_delivery_boy;type:numeric(16,2);not null;default:0"`
	SellerPendingPayouts      decimal.Decimal `gorm:"column:seller_pending_payouts;type:numeric(16,2);not null;default:0"`
	DeliveryBoyPendingPayouts decimal.Decimal `gorm:"column:delivery_boy_pending_payouts;type:numeric(16,2);not null;default:0"`
	CreatedAt                 time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                 time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (PlatformWallet) TableName() string { return "platform_wallet" }

func (p *PlatformWallet) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	if p.SingletonKey == "" {
		p.SingletonKey = SingletonKey
	}
	return nil
}

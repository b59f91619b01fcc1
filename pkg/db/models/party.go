package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Seller is a wallet-owning merchant. CommissionRate overrides category rates
// when positive.
type Seller struct {
	ID             uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name           string          `gorm:"column:name;not null"`
	Email          string          `gorm:"column:email"`
	CommissionRate decimal.Decimal `gorm:"column:commission_rate;type:numeric(5,2);not null;default:0"`
	Balance        decimal.Decimal `gorm:"column:balance;type:numeric(14,2);not null;default:0"`
	CreatedAt      time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Seller) BeforeCreate(*gorm.DB) error {
	assignID(&s.ID)
	return nil
}

// DeliveryPartner carries the partner's wallet balance and COD exposure.
// PendingAdminPayout is cash the partner still owes the platform.
type DeliveryPartner struct {
	ID                 uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Name               string          `gorm:"column:name;not null"`
	Phone              string          `gorm:"column:phone"`
	CommissionRate     decimal.Decimal `gorm:"column:commission_rate;type:numeric(5,2);not null;default:0"`
	Balance            decimal.Decimal `gorm:"column:balance;type:numeric(14,2);not null;default:0"`
	PendingAdminPayout decimal.Decimal `gorm:"column:pending_admin_payout;type:numeric(14,2);not null;default:0"`
	CashCollected      decimal.Decimal `gorm:"column:cash_collected;type:numeric(14,2);not null;default:0"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (d *DeliveryPartner) BeforeCreate(*gorm.DB) error {
	assignID(&d.ID)
	return nil
}

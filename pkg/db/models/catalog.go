package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// Category is one node of the three-level category tree. A commission rate of
// zero means "not configured".
type Category struct {
	ID             uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	ParentID       *uuid.UUID          `gorm:"column:parent_id;type:uuid"`
	Name           string              `gorm:"column:name;not null"`
	Level          enums.CategoryLevel `gorm:"column:level;type:text;not null"`
	CommissionRate decimal.Decimal     `gorm:"column:commission_rate;type:numeric(5,2);not null;default:0"`
	CreatedAt      time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (c *Category) BeforeCreate(*gorm.DB) error {
	assignID(&c.ID)
	return nil
}

// Product links a catalog item to its seller and category path.
type Product struct {
	ID               uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SellerID         uuid.UUID       `gorm:"column:seller_id;type:uuid;not null;index"`
	Name             string          `gorm:"column:name;not null"`
	Price            decimal.Decimal `gorm:"column:price;type:numeric(14,2);not null;default:0"`
	CategoryID       *uuid.UUID      `gorm:"column:category_id;type:uuid"`
	SubCategoryID    *uuid.UUID      `gorm:"column:sub_category_id;type:uuid"`
	SubSubCategoryID *uuid.UUID      `gorm:"column:sub_sub_category_id;type:uuid"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt        time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	assignID(&p.ID)
	return nil
}

// AppSetting is the single row of marketplace-wide settlement configuration.
type AppSetting struct {
	ID                       uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	SingletonKey             string          `gorm:"column:singleton_key;not null;uniqueIndex:ux_app_settings_singleton"`
	DefaultCommissionPercent decimal.Decimal `gorm:"column:default_commission_percent;type:numeric(5,2);not null;default:0"`
	DeliveryDistanceBased    bool            `gorm:"column:delivery_distance_based;not null;default:false"`
	DeliveryPerKmRate        decimal.Decimal `gorm:"column:delivery_per_km_rate;type:numeric(10,2);not null;default:0"`
	UpdatedAt                time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (AppSetting) TableName() string { return "app_settings" }

func (a *AppSetting) BeforeCreate(*gorm.DB) error {
	assignID(&a.ID)
	if a.SingletonKey == "" {
		a.SingletonKey = SingletonKey
	}
	return nil
}

package catalog

import (
	"context"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/internal/repo"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
)

// Settings is the marketplace-wide settlement configuration.
type Settings struct {
	DefaultCommissionPercent decimal.Decimal `json:"defaultCommissionPercent"`
	DistanceBased            bool            `json:"isDistanceBased"`
	PerKmRate                decimal.Decimal `json:"deliveryBoyPerKmRate"`
}

// DistancePricing reports whether partner cuts are priced per kilometer.
func (s Settings) DistancePricing() bool {
	return s.DistanceBased && s.PerKmRate.IsPositive()
}

// SettingsProvider exposes the current settlement settings.
type SettingsProvider interface {
	WithTx(tx *gorm.DB) SettingsProvider
	Settings(ctx context.Context) (Settings, error)
}

type settingsProvider struct {
	base repo.Base
}

// NewSettingsProvider reads settings from the app_settings singleton row.
func NewSettingsProvider(conn *gorm.DB) SettingsProvider {
	return &settingsProvider{base: repo.NewBase(conn)}
}

func (p *settingsProvider) WithTx(tx *gorm.DB) SettingsProvider {
	return &settingsProvider{base: p.base.Bind(tx)}
}

// Settings returns zero values when the row was never written; callers apply
// their own fallbacks.
func (p *settingsProvider) Settings(ctx context.Context) (Settings, error) {
	var row models.AppSetting
	err := p.base.DB(ctx).Where("singleton_key = ?", models.SingletonKey).First(&row).Error
	if db.IsNotFound(err) {
		return Settings{}, nil
	}
	if err != nil {
		return Settings{}, err
	}
	return Settings{
		DefaultCommissionPercent: row.DefaultCommissionPercent,
		DistanceBased:            row.DeliveryDistanceBased,
		PerKmRate:                row.DeliveryPerKmRate,
	}, nil
}

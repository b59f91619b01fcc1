package platformwallet

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/settlement-backend/internal/repo"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/money"
)

// Repository owns the platform wallet singleton row.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	GetOrCreateSingleton(ctx context.Context) (*models.PlatformWallet, error)
	Increment(ctx context.Context, delta Delta) error
}

type repository struct {
	base repo.Base
}

// NewRepository returns a platform wallet repository bound to conn.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{base: repo.NewBase(conn)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{base: r.base.Bind(tx)}
}

// GetOrCreateSingleton inserts the row if missing and reads it back. The
// unique singleton_key makes concurrent bootstraps converge on one row.
func (r *repository) GetOrCreateSingleton(ctx context.Context) (*models.PlatformWallet, error) {
	seed := models.PlatformWallet{SingletonKey: models.SingletonKey}
	if err := r.base.DB(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "singleton_key"}}, DoNothing: true}).
		Create(&seed).Error; err != nil {
		return nil, err
	}
	var row models.PlatformWallet
	if err := r.base.DB(ctx).Where("singleton_key = ?", models.SingletonKey).First(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// Increment applies every non-zero counter of delta in one UPDATE. Decrements
// floor at zero.
func (r *repository) Increment(ctx context.Context, delta Delta) error {
	updates := map[string]any{}
	for column, value := range delta.columns() {
		value = money.Round2(value)
		if value.IsZero() {
			continue
		}
		updates[column] = db.IncrementClamped(column, value)
	}
	if len(updates) == 0 {
		return nil
	}
	return r.base.DB(ctx).
		Model(&models.PlatformWallet{}).
		Where("singleton_key = ?", models.SingletonKey).
		UpdateColumns(updates).Error
}

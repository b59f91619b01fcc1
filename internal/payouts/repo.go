package payouts

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/internal/repo"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// Repository persists COD remittance records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, payout *models.PayoutPayment) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.PayoutPayment, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PayoutPayment, error)
	// Transition applies updates only while the payout is still in from.
	Transition(ctx context.Context, id uuid.UUID, from enums.PayoutStatus, updates map[string]any) (bool, error)
	Update(ctx context.Context, id uuid.UUID, updates map[string]any) error
	// ListStaleCreated returns payouts still awaiting capture that were opened
	// before cutoff, oldest first.
	ListStaleCreated(ctx context.Context, cutoff time.Time, limit int) ([]models.PayoutPayment, error)
}

type repository struct {
	base repo.Base
}

// NewRepository binds a payout repository to conn.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{base: repo.NewBase(conn)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{base: r.base.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, payout *models.PayoutPayment) error {
	return r.base.DB(ctx).Create(payout).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.PayoutPayment, error) {
	var payout models.PayoutPayment
	if err := r.base.DB(ctx).Where("id = ?", id).First(&payout).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.PayoutPayment, error) {
	var payout models.PayoutPayment
	if err := r.base.ForUpdate(ctx).Where("id = ?", id).First(&payout).Error; err != nil {
		return nil, err
	}
	return &payout, nil
}

func (r *repository) Transition(ctx context.Context, id uuid.UUID, from enums.PayoutStatus, updates map[string]any) (bool, error) {
	res := r.base.DB(ctx).
		Model(&models.PayoutPayment{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) Update(ctx context.Context, id uuid.UUID, updates map[string]any) error {
	return r.base.DB(ctx).
		Model(&models.PayoutPayment{}).
		Where("id = ?", id).
		Updates(updates).Error
}

func (r *repository) ListStaleCreated(ctx context.Context, cutoff time.Time, limit int) ([]models.PayoutPayment, error) {
	var rows []models.PayoutPayment
	err := r.base.DB(ctx).
		Where("status = ? AND created_at < ?", enums.PayoutStatusCreated, cutoff).
		Order("created_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/internal/repo"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	"github.com/angelmondragon/settlement-backend/pkg/pagination"
)

// Repository manages persistence for commission legs.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, row *models.Commission) error
	CreateBatch(ctx context.Context, rows []*models.Commission) error
	CountByOrder(ctx context.Context, orderID uuid.UUID) (int64, error)
	ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Commission, error)
	ListByOrderAndStatus(ctx context.Context, orderID uuid.UUID, status enums.CommissionStatus) ([]models.Commission, error)
	// FindActiveDeliveryLeg returns nil when the order has no non-cancelled delivery leg.
	FindActiveDeliveryLeg(ctx context.Context, orderID uuid.UUID) (*models.Commission, error)
	// Transition moves a leg from one status to another. It reports false when
	// the leg was no longer in the from status.
	Transition(ctx context.Context, id uuid.UUID, from, to enums.CommissionStatus, at time.Time) (bool, error)
	// ListPendingCODSellerLegs returns the pending seller legs of COD orders
	// delivered by partnerID, oldest order first.
	ListPendingCODSellerLegs(ctx context.Context, partnerID uuid.UUID) ([]models.Commission, error)
	ListByParty(ctx context.Context, partyType enums.PartyType, partyID uuid.UUID, page pagination.Params) ([]models.Commission, int64, error)
}

type repository struct {
	base repo.Base
}

// NewRepository returns a commission repository bound to the provided database.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{base: repo.NewBase(conn)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{base: r.base.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, row *models.Commission) error {
	return r.base.DB(ctx).Create(row).Error
}

func (r *repository) CreateBatch(ctx context.Context, rows []*models.Commission) error {
	if len(rows) == 0 {
		return nil
	}
	return r.base.DB(ctx).Create(rows).Error
}

func (r *repository) CountByOrder(ctx context.Context, orderID uuid.UUID) (int64, error) {
	var count int64
	err := r.base.DB(ctx).Model(&models.Commission{}).Where("order_id = ?", orderID).Count(&count).Error
	return count, err
}

func (r *repository) ListByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Commission, error) {
	var rows []models.Commission
	if err := r.base.DB(ctx).
		Where("order_id = ?", orderID).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByOrderAndStatus(ctx context.Context, orderID uuid.UUID, status enums.CommissionStatus) ([]models.Commission, error) {
	var rows []models.Commission
	if err := r.base.DB(ctx).
		Where("order_id = ? AND status = ?", orderID, status).
		Order("created_at ASC, id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) FindActiveDeliveryLeg(ctx context.Context, orderID uuid.UUID) (*models.Commission, error) {
	var rows []models.Commission
	if err := r.base.DB(ctx).
		Where("order_id = ? AND type = ? AND status <> ?", orderID, enums.CommissionTypeDeliveryBoy, enums.CommissionStatusCancelled).
		Limit(1).
		Find(&rows).Error; err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return &rows[0], nil
}

func (r *repository) Transition(ctx context.Context, id uuid.UUID, from, to enums.CommissionStatus, at time.Time) (bool, error) {
	updates := map[string]any{"status": to}
	switch to {
	case enums.CommissionStatusPaid:
		updates["paid_at"] = at
	case enums.CommissionStatusCancelled:
		updates["cancelled_at"] = at
	}
	res := r.base.DB(ctx).
		Model(&models.Commission{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) ListPendingCODSellerLegs(ctx context.Context, partnerID uuid.UUID) ([]models.Commission, error) {
	var rows []models.Commission
	if err := r.base.DB(ctx).
		Model(&models.Commission{}).
		Select("commissions.*").
		Joins("JOIN orders ON orders.id = commissions.order_id").
		Where("commissions.type = ? AND commissions.status = ?", enums.CommissionTypeSeller, enums.CommissionStatusPending).
		Where("orders.payment_method = ? AND orders.status = ? AND orders.delivery_partner_id = ?",
			enums.PaymentMethodCOD, enums.OrderStatusDelivered, partnerID).
		Order("orders.created_at ASC, orders.id ASC, commissions.created_at ASC, commissions.id ASC").
		Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *repository) ListByParty(ctx context.Context, partyType enums.PartyType, partyID uuid.UUID, page pagination.Params) ([]models.Commission, int64, error) {
	page = page.Normalize()
	query := r.base.DB(ctx).Model(&models.Commission{})
	switch partyType {
	case enums.PartyDeliveryBoy:
		query = query.Where("type = ? AND delivery_partner_id = ?", enums.CommissionTypeDeliveryBoy, partyID)
	default:
		query = query.Where("type = ? AND seller_id = ?", enums.CommissionTypeSeller, partyID)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.Commission
	if err := query.Session(&gorm.Session{}).
		Order("created_at DESC, id DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

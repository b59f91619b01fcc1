package withdrawals

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/internal/repo"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	"github.com/angelmondragon/settlement-backend/pkg/pagination"
)

// Filter narrows a withdrawal listing. Zero values match everything.
type Filter struct {
	Status   enums.WithdrawStatus
	UserType enums.PartyType
	UserID   *uuid.UUID
}

// WithdrawalView is a withdrawal request with the requesting party's name.
type WithdrawalView struct {
	models.WithdrawRequest
	PartyName string `gorm:"column:party_name"`
}

// Repository persists withdrawal requests.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, request *models.WithdrawRequest) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.WithdrawRequest, error)
	FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.WithdrawRequest, error)
	// Transition applies updates only while the request is still in from.
	Transition(ctx context.Context, id uuid.UUID, from enums.WithdrawStatus, updates map[string]any) (bool, error)
	List(ctx context.Context, filter Filter, page pagination.Params) ([]WithdrawalView, int64, error)
}

type repository struct {
	base repo.Base
}

// NewRepository binds a withdrawal repository to conn.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{base: repo.NewBase(conn)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{base: r.base.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, request *models.WithdrawRequest) error {
	return r.base.DB(ctx).Create(request).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.WithdrawRequest, error) {
	var request models.WithdrawRequest
	if err := r.base.DB(ctx).Where("id = ?", id).First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.WithdrawRequest, error) {
	var request models.WithdrawRequest
	if err := r.base.ForUpdate(ctx).Where("id = ?", id).First(&request).Error; err != nil {
		return nil, err
	}
	return &request, nil
}

func (r *repository) Transition(ctx context.Context, id uuid.UUID, from enums.WithdrawStatus, updates map[string]any) (bool, error) {
	res := r.base.DB(ctx).
		Model(&models.WithdrawRequest{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) List(ctx context.Context, filter Filter, page pagination.Params) ([]WithdrawalView, int64, error) {
	page = page.Normalize()
	query := r.base.DB(ctx).Table("withdraw_requests")
	if filter.Status != "" {
		query = query.Where("withdraw_requests.status = ?", filter.Status)
	}
	if filter.UserType != "" {
		query = query.Where("withdraw_requests.user_type = ?", filter.UserType)
	}
	if filter.UserID != nil {
		query = query.Where("withdraw_requests.user_id = ?", *filter.UserID)
	}

	var total int64
	if err := query.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []WithdrawalView
	err := query.Session(&gorm.Session{}).
		Select("withdraw_requests.*, COALESCE(sellers.name, delivery_partners.name, '') AS party_name").
		Joins("LEFT JOIN sellers ON withdraw_requests.user_type = ? AND sellers.id = withdraw_requests.user_id", enums.PartySeller).
		Joins("LEFT JOIN delivery_partners ON withdraw_requests.user_type = ? AND delivery_partners.id = withdraw_requests.user_id", enums.PartyDeliveryBoy).
		Order("withdraw_requests.created_at DESC, withdraw_requests.id DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

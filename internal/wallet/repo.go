package wallet

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/internal/repo"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	"github.com/angelmondragon/settlement-backend/pkg/pagination"
)

// EntryQuery matches earlier ledger entries of one party.
type EntryQuery struct {
	PartyID        uuid.UUID
	PartyType      enums.PartyType
	RelatedOrderID *uuid.UUID
	Description    string
	Type           enums.WalletTransactionType
}

// Repository persists wallet transactions. Rows are never updated.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, entry *models.WalletTransaction) error
	Exists(ctx context.Context, query EntryQuery) (bool, error)
	ListByParty(ctx context.Context, partyType enums.PartyType, partyID uuid.UUID, page pagination.Params) ([]models.WalletTransaction, int64, error)
}

type repository struct {
	base repo.Base
}

// NewRepository returns a wallet transaction repository bound to conn.
func NewRepository(conn *gorm.DB) Repository {
	return &repository{base: repo.NewBase(conn)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	return &repository{base: r.base.Bind(tx)}
}

func (r *repository) Create(ctx context.Context, entry *models.WalletTransaction) error {
	return r.base.DB(ctx).Create(entry).Error
}

func (r *repository) Exists(ctx context.Context, query EntryQuery) (bool, error) {
	q := r.base.DB(ctx).
		Model(&models.WalletTransaction{}).
		Where("user_id = ? AND user_type = ?", query.PartyID, query.PartyType)
	if query.RelatedOrderID != nil {
		q = q.Where("related_order_id = ?", *query.RelatedOrderID)
	}
	if query.Description != "" {
		q = q.Where("description = ?", query.Description)
	}
	if query.Type != "" {
		q = q.Where("type = ?", query.Type)
	}
	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *repository) ListByParty(ctx context.Context, partyType enums.PartyType, partyID uuid.UUID, page pagination.Params) ([]models.WalletTransaction, int64, error) {
	page = page.Normalize()
	base := r.base.DB(ctx).
		Model(&models.WalletTransaction{}).
		Where("user_id = ? AND user_type = ?", partyID, partyType).
		Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	var rows []models.WalletTransaction
	if err := base.
		Order("created_at DESC").
		Order("id DESC").
		Limit(page.Limit).
		Offset(page.Offset()).
		Find(&rows).Error; err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

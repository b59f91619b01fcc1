package catalog

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/internal/repo"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/money"
)

// ProductRepository reads products for commission-rate lookup.
type ProductRepository interface {
	WithTx(tx *gorm.DB) ProductRepository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error)
}

// CategoryRepository reads category nodes.
type CategoryRepository interface {
	WithTx(tx *gorm.DB) CategoryRepository
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Category, error)
}

// SellerRepository reads sellers and moves their wallet balance.
type SellerRepository interface {
	WithTx(tx *gorm.DB) SellerRepository
	FindByID(ctx context.Context, id uuid.UUID) (*models.Seller, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Seller, error)
	AdjustBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal, requireFunds bool) (decimal.Decimal, error)
}

// DeliveryRepository reads delivery partners and moves their balance and
// cash-on-delivery position.
type DeliveryRepository interface {
	WithTx(tx *gorm.DB) DeliveryRepository
	FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryPartner, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.DeliveryPartner, error)
	AdjustBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal, requireFunds bool) (decimal.Decimal, error)
	AdjustCODPosition(ctx context.Context, id uuid.UUID, pendingDelta, cashDelta decimal.Decimal) error
}

type productRepository struct{ base repo.Base }

// NewProductRepository binds a product repository to conn.
func NewProductRepository(conn *gorm.DB) ProductRepository {
	return &productRepository{base: repo.NewBase(conn)}
}

func (r *productRepository) WithTx(tx *gorm.DB) ProductRepository {
	return &productRepository{base: r.base.Bind(tx)}
}

func (r *productRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var product models.Product
	if err := r.base.DB(ctx).Where("id = ?", id).First(&product).Error; err != nil {
		return nil, err
	}
	return &product, nil
}

type categoryRepository struct{ base repo.Base }

// NewCategoryRepository binds a category repository to conn.
func NewCategoryRepository(conn *gorm.DB) CategoryRepository {
	return &categoryRepository{base: repo.NewBase(conn)}
}

func (r *categoryRepository) WithTx(tx *gorm.DB) CategoryRepository {
	return &categoryRepository{base: r.base.Bind(tx)}
}

func (r *categoryRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Category, error) {
	out := make(map[uuid.UUID]models.Category, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Category
	if err := r.base.DB(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

type sellerRepository struct{ base repo.Base }

// NewSellerRepository binds a seller repository to conn.
func NewSellerRepository(conn *gorm.DB) SellerRepository {
	return &sellerRepository{base: repo.NewBase(conn)}
}

func (r *sellerRepository) WithTx(tx *gorm.DB) SellerRepository {
	return &sellerRepository{base: r.base.Bind(tx)}
}

func (r *sellerRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Seller, error) {
	var seller models.Seller
	if err := r.base.DB(ctx).Where("id = ?", id).First(&seller).Error; err != nil {
		return nil, err
	}
	return &seller, nil
}

func (r *sellerRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.Seller, error) {
	out := make(map[uuid.UUID]models.Seller, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.Seller
	if err := r.base.DB(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (r *sellerRepository) AdjustBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal, requireFunds bool) (decimal.Decimal, error) {
	return adjustBalance(r.base.DB(ctx), &models.Seller{}, "seller", id, delta, requireFunds)
}

type deliveryRepository struct{ base repo.Base }

// NewDeliveryRepository binds a delivery partner repository to conn.
func NewDeliveryRepository(conn *gorm.DB) DeliveryRepository {
	return &deliveryRepository{base: repo.NewBase(conn)}
}

func (r *deliveryRepository) WithTx(tx *gorm.DB) DeliveryRepository {
	return &deliveryRepository{base: r.base.Bind(tx)}
}

func (r *deliveryRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.DeliveryPartner, error) {
	var partner models.DeliveryPartner
	if err := r.base.DB(ctx).Where("id = ?", id).First(&partner).Error; err != nil {
		return nil, err
	}
	return &partner, nil
}

func (r *deliveryRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]models.DeliveryPartner, error) {
	out := make(map[uuid.UUID]models.DeliveryPartner, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.DeliveryPartner
	if err := r.base.DB(ctx).Where("id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		out[row.ID] = row
	}
	return out, nil
}

func (r *deliveryRepository) AdjustBalance(ctx context.Context, id uuid.UUID, delta decimal.Decimal, requireFunds bool) (decimal.Decimal, error) {
	return adjustBalance(r.base.DB(ctx), &models.DeliveryPartner{}, "delivery partner", id, delta, requireFunds)
}

// AdjustCODPosition moves what the partner owes the platform and the cash they
// hold. Both columns floor at zero.
func (r *deliveryRepository) AdjustCODPosition(ctx context.Context, id uuid.UUID, pendingDelta, cashDelta decimal.Decimal) error {
	res := r.base.DB(ctx).
		Model(&models.DeliveryPartner{}).
		Where("id = ?", id).
		UpdateColumns(map[string]any{
			"pending_admin_payout": db.IncrementClamped("pending_admin_payout", money.Round2(pendingDelta)),
			"cash_collected":       db.IncrementClamped("cash_collected", money.Round2(cashDelta)),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "delivery partner not found")
	}
	return nil
}

type balanceRow struct {
	Balance decimal.Decimal
}

// adjustBalance applies delta with a single UPDATE and returns the new
// balance. With requireFunds a debit that would overdraw matches no row.
func adjustBalance(conn *gorm.DB, model any, entity string, id uuid.UUID, delta decimal.Decimal, requireFunds bool) (decimal.Decimal, error) {
	delta = money.Round2(delta)
	query := conn.Model(model).Where("id = ?", id)
	if requireFunds && delta.IsNegative() {
		query = query.Where("balance + ? >= 0", delta)
	}
	res := query.UpdateColumn("balance", db.Increment("balance", delta))
	if res.Error != nil {
		return decimal.Zero, res.Error
	}
	if res.RowsAffected == 0 {
		var count int64
		if err := conn.Model(model).Where("id = ?", id).Count(&count).Error; err != nil {
			return decimal.Zero, err
		}
		if count == 0 {
			return decimal.Zero, pkgerrors.New(pkgerrors.CodeNotFound, entity+" not found")
		}
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeInsufficientFunds, "insufficient wallet balance").
			WithDetails(map[string]any{"requested": delta.Neg().StringFixed(2)})
	}

	var row balanceRow
	if err := conn.Model(model).Select("balance").Where("id = ?", id).Scan(&row).Error; err != nil {
		return decimal.Zero, err
	}
	return money.Round2(row.Balance), nil
}

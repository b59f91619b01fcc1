package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/angelmondragon/settlement-backend/internal/commission"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
)

type fakeRepository struct {
	findFn func(ctx context.Context, id uuid.UUID) (*models.Order, error)
}

func (f *fakeRepository) WithTx(*gorm.DB) Repository { return f }

func (f *fakeRepository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	if f.findFn != nil {
		return f.findFn(ctx, id)
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeRepository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	return f.FindByID(ctx, id)
}

func (f *fakeRepository) FindByIDs(context.Context, []uuid.UUID) (map[uuid.UUID]models.Order, error) {
	return nil, nil
}

func (f *fakeRepository) Update(context.Context, uuid.UUID, map[string]any) error { return nil }

func (f *fakeRepository) FreezeItemRates(context.Context, map[uuid.UUID]decimal.Decimal) error {
	return nil
}

type fakeCalculator struct {
	breakdownFn func(order *models.Order) (*commission.Breakdown, error)
}

func (f *fakeCalculator) WithTx(*gorm.DB) commission.Calculator { return f }

func (f *fakeCalculator) Breakdown(_ context.Context, order *models.Order) (*commission.Breakdown, error) {
	return f.breakdownFn(order)
}

func (f *fakeCalculator) Preview(_ context.Context, order *models.Order) (*commission.Preview, error) {
	b, err := f.breakdownFn(order)
	if err != nil {
		return nil, err
	}
	return &commission.Preview{OrderID: b.OrderID, Sellers: b.Sellers, Delivery: b.Delivery}, nil
}

func (f *fakeCalculator) DeliverySplit(context.Context, *models.Order) (commission.DeliverySplit, error) {
	return commission.DeliverySplit{}, nil
}

func TestServiceBreakdown(t *testing.T) {
	orderID := uuid.New()
	repo := &fakeRepository{findFn: func(_ context.Context, id uuid.UUID) (*models.Order, error) {
		return &models.Order{ID: id, OrderNumber: "1001"}, nil
	}}
	calc := &fakeCalculator{breakdownFn: func(order *models.Order) (*commission.Breakdown, error) {
		return &commission.Breakdown{OrderID: order.ID, OrderNumber: order.OrderNumber}, nil
	}}
	svc, err := NewService(repo, calc)
	require.NoError(t, err)

	got, err := svc.Breakdown(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, orderID, got.OrderID)

	preview, err := svc.Preview(context.Background(), orderID)
	require.NoError(t, err)
	assert.Equal(t, orderID, preview.OrderID)
}

func TestServiceMissingOrder(t *testing.T) {
	svc, err := NewService(&fakeRepository{}, &fakeCalculator{})
	require.NoError(t, err)

	_, err = svc.Breakdown(context.Background(), uuid.New())
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeNotFound))

	_, err = svc.Get(context.Background(), uuid.Nil)
	assert.True(t, pkgerrors.Is(err, pkgerrors.CodeValidation))
}

func TestNewServiceRequiresDeps(t *testing.T) {
	_, err := NewService(nil, &fakeCalculator{})
	assert.Error(t, err)
	_, err = NewService(&fakeRepository{}, nil)
	assert.Error(t, err)
}

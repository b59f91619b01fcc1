package orders

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/internal/commission"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
)

// Service exposes the read-only money views of an order.
type Service interface {
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Breakdown(ctx context.Context, orderID uuid.UUID) (*commission.Breakdown, error)
	Preview(ctx context.Context, orderID uuid.UUID) (*commission.Preview, error)
}

type service struct {
	repo       Repository
	calculator commission.Calculator
}

// NewService wires the order read service.
func NewService(repo Repository, calculator commission.Calculator) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if calculator == nil {
		return nil, fmt.Errorf("commission calculator required")
	}
	return &service{repo: repo, calculator: calculator}, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "order not found")
		}
		return nil, err
	}
	return order, nil
}

func (s *service) Breakdown(ctx context.Context, orderID uuid.UUID) (*commission.Breakdown, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.calculator.Breakdown(ctx, order)
}

func (s *service) Preview(ctx context.Context, orderID uuid.UUID) (*commission.Preview, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.calculator.Preview(ctx, order)
}

package platformwallet

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

// Delta is an additive change to the platform wallet counters.
type Delta struct {
	TotalPlatformEarning      decimal.Decimal
	CurrentPlatformBalance    decimal.Decimal
	TotalAdminEarning         decimal.Decimal
	PendingFromDeliveryBoy    decimal.Decimal
	SellerPendingPayouts      decimal.Decimal
	DeliveryBoyPendingPayouts decimal.Decimal
}

func (d Delta) columns() map[string]decimal.Decimal {
	return map[string]decimal.Decimal{
		"total_platform_earning":       d.TotalPlatformEarning,
		"current_platform_balance":     d.CurrentPlatformBalance,
		"total_admin_earning":          d.TotalAdminEarning,
		"pending_from_delivery_boy":    d.PendingFromDeliveryBoy,
		"seller_pending_payouts":       d.SellerPendingPayouts,
		"delivery_boy_pending_payouts": d.DeliveryBoyPendingPayouts,
	}
}

// IsZero reports whether applying d changes nothing.
func (d Delta) IsZero() bool {
	for _, v := range d.columns() {
		if !v.IsZero() {
			return false
		}
	}
	return true
}

// Add sums two deltas.
func (d Delta) Add(o Delta) Delta {
	return Delta{
		TotalPlatformEarning:      d.TotalPlatformEarning.Add(o.TotalPlatformEarning),
		CurrentPlatformBalance:    d.CurrentPlatformBalance.Add(o.CurrentPlatformBalance),
		TotalAdminEarning:         d.TotalAdminEarning.Add(o.TotalAdminEarning),
		PendingFromDeliveryBoy:    d.PendingFromDeliveryBoy.Add(o.PendingFromDeliveryBoy),
		SellerPendingPayouts:      d.SellerPendingPayouts.Add(o.SellerPendingPayouts),
		DeliveryBoyPendingPayouts: d.DeliveryBoyPendingPayouts.Add(o.DeliveryBoyPendingPayouts),
	}
}

// Service maintains the platform money position.
type Service interface {
	Get(ctx context.Context) (*models.PlatformWallet, error)
	// Apply changes the counters as part of tx; a failure aborts tx.
	Apply(ctx context.Context, tx db.Tx, delta Delta) error
	// ApplyBestEffort changes the counters inside a savepoint of tx; a failure
	// is logged against the operation and leaves tx usable.
	ApplyBestEffort(ctx context.Context, tx db.Tx, step string, delta Delta)
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires the platform wallet service.
func NewService(repo Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("platform wallet repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, logg: logg}, nil
}

func (s *service) Get(ctx context.Context) (*models.PlatformWallet, error) {
	return s.repo.GetOrCreateSingleton(ctx)
}

func (s *service) Apply(ctx context.Context, tx db.Tx, delta Delta) error {
	if !tx.Valid() {
		return fmt.Errorf("platform wallet update requires a transaction")
	}
	if delta.IsZero() {
		return nil
	}
	r := s.repo.WithTx(tx.DB())
	if _, err := r.GetOrCreateSingleton(ctx); err != nil {
		return fmt.Errorf("bootstrap platform wallet: %w", err)
	}
	if err := r.Increment(ctx, delta); err != nil {
		return fmt.Errorf("update platform wallet: %w", err)
	}
	return nil
}

func (s *service) ApplyBestEffort(ctx context.Context, tx db.Tx, step string, delta Delta) {
	if !tx.Valid() || delta.IsZero() {
		return
	}
	_ = tx.BestEffort(ctx, step, func(inner db.Tx) error {
		return s.Apply(ctx, inner, delta)
	})
}

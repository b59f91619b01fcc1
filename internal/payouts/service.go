package payouts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/settlement-backend/internal/catalog"
	"github.com/angelmondragon/settlement-backend/internal/settlement"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	dbtypes "github.com/angelmondragon/settlement-backend/pkg/db/types"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/metrics"
	"github.com/angelmondragon/settlement-backend/pkg/money"
	pkgredis "github.com/angelmondragon/settlement-backend/pkg/redis"
	"github.com/angelmondragon/settlement-backend/pkg/square"
)

const (
	opVerify = "payout_verify"
	lockTTL  = 30 * time.Second
)

// PaymentReader reads a captured payment from the provider.
type PaymentReader interface {
	GetPayment(ctx context.Context, paymentID string) (*square.CapturedPayment, error)
}

// Reconciler applies a captured remittance to the partner's COD orders.
type Reconciler interface {
	ReconcileCODPayout(ctx context.Context, tx db.Tx, remittance settlement.Remittance) (*settlement.Reconciliation, error)
}

// Intent is what the partner's client needs to collect the remittance.
type Intent struct {
	Payout      *models.PayoutPayment `json:"payout"`
	AmountCents int64                 `json:"amountCents"`
	Currency    string                `json:"currency"`
	LocationID  string                `json:"locationId,omitempty"`
}

// VerifyInput identifies a provider payment made for a payout.
type VerifyInput struct {
	PartnerID         uuid.UUID
	PayoutID          uuid.UUID
	ProviderPaymentID string
}

// VerifyResult is the captured payout and the orders it settled. Reconciliation
// is nil when the payout had already been applied.
type VerifyResult struct {
	Payout           *models.PayoutPayment      `json:"payout"`
	Reconciliation   *settlement.Reconciliation `json:"reconciliation,omitempty"`
	AlreadyProcessed bool                       `json:"alreadyProcessed"`
}

// Service opens and verifies delivery partner COD remittances.
type Service interface {
	Create(ctx context.Context, partnerID uuid.UUID, amount decimal.Decimal) (*Intent, error)
	Verify(ctx context.Context, input VerifyInput) (*VerifyResult, error)
}

// Deps groups the collaborators of the payout service. Locker may be nil, in
// which case only the payout row lock serializes verification.
type Deps struct {
	DB         *db.Client
	Repo       Repository
	Delivery   catalog.DeliveryRepository
	Payments   PaymentReader
	Reconciler Reconciler
	Locker     pkgredis.Locker
	Metrics    *metrics.SettlementMetrics
	Logger     *logger.Logger
	Epsilon    decimal.Decimal
	Currency   string
	LocationID string
}

type service struct {
	db         *db.Client
	repo       Repository
	delivery   catalog.DeliveryRepository
	payments   PaymentReader
	reconciler Reconciler
	locker     pkgredis.Locker
	metrics    *metrics.SettlementMetrics
	logg       *logger.Logger
	epsilon    decimal.Decimal
	currency   string
	locationID string
	now        func() time.Time
}

// NewService wires the payout service.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.DB == nil:
		return nil, fmt.Errorf("db client required")
	case deps.Repo == nil:
		return nil, fmt.Errorf("payout repository required")
	case deps.Delivery == nil:
		return nil, fmt.Errorf("delivery repository required")
	case deps.Payments == nil:
		return nil, fmt.Errorf("payment reader required")
	case deps.Reconciler == nil:
		return nil, fmt.Errorf("reconciler required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	epsilon := deps.Epsilon
	if !epsilon.IsPositive() {
		epsilon = money.Epsilon
	}
	currency := strings.ToUpper(strings.TrimSpace(deps.Currency))
	if currency == "" {
		currency = "INR"
	}
	return &service{
		db:         deps.DB,
		repo:       deps.Repo,
		delivery:   deps.Delivery,
		payments:   deps.Payments,
		reconciler: deps.Reconciler,
		locker:     deps.Locker,
		metrics:    deps.Metrics,
		logg:       deps.Logger,
		epsilon:    epsilon,
		currency:   currency,
		locationID: strings.TrimSpace(deps.LocationID),
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Create(ctx context.Context, partnerID uuid.UUID, amount decimal.Decimal) (*Intent, error) {
	amount = money.Round2(amount)
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	partner, err := s.delivery.FindByID(ctx, partnerID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "delivery partner not found")
		}
		return nil, err
	}
	owed := money.Round2(partner.PendingAdminPayout)
	if amount.GreaterThan(owed.Add(s.epsilon)) {
		return nil, pkgerrors.AmountMismatch("amount exceeds the cash owed to the platform", owed, amount)
	}

	id := uuid.New()
	payout := &models.PayoutPayment{
		ID:                id,
		DeliveryPartnerID: partnerID,
		Amount:            amount,
		Status:            enums.PayoutStatusCreated,
		Reference:         "PAY-" + strings.ReplaceAll(id.String(), "-", ""),
	}
	if err := s.repo.Create(ctx, payout); err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"payout_id":  payout.ID.String(),
		"partner_id": partnerID.String(),
		"amount":     amount.StringFixed(2),
	})
	s.logg.Info(logCtx, "cod payout created")
	return &Intent{
		Payout:      payout,
		AmountCents: money.ToMinorUnits(amount),
		Currency:    s.currency,
		LocationID:  s.locationID,
	}, nil
}

func (s *service) Verify(ctx context.Context, input VerifyInput) (result *VerifyResult, err error) {
	defer s.metrics.Track(opVerify, &err)()

	paymentID := strings.TrimSpace(input.ProviderPaymentID)
	switch {
	case input.PayoutID == uuid.Nil:
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id is required")
	case paymentID == "":
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment id is required")
	}

	payout, err := s.owned(ctx, input.PartnerID, input.PayoutID)
	if err != nil {
		return nil, err
	}
	if done, err := s.alreadyCaptured(payout, paymentID); done || err != nil {
		if err != nil {
			return nil, err
		}
		return &VerifyResult{Payout: payout, AlreadyProcessed: true}, nil
	}

	if s.locker != nil {
		release, ok, err := s.locker.Acquire(ctx, "payout:"+payout.DeliveryPartnerID.String(), lockTTL)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "acquire payout lock")
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "another payout for this partner is being verified")
		}
		defer release()
	}

	payment, err := s.payments.GetPayment(ctx, paymentID)
	if err != nil {
		return nil, err
	}
	if err := s.checkPayment(payout, payment); err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"payout_id":  payout.ID.String(),
		"partner_id": payout.DeliveryPartnerID.String(),
		"payment_id": paymentID,
	})

	err = s.db.WithTx(ctx, func(tx db.Tx) error {
		repo := s.repo.WithTx(tx.DB())
		locked, err := repo.FindByIDForUpdate(ctx, payout.ID)
		if err != nil {
			return err
		}
		if done, err := s.alreadyCaptured(locked, paymentID); done || err != nil {
			if err != nil {
				return err
			}
			result = &VerifyResult{Payout: locked, AlreadyProcessed: true}
			return nil
		}
		if locked.Status != enums.PayoutStatusCreated {
			return pkgerrors.InvalidTransition("payout", locked.Status, "verify")
		}

		now := s.now()
		ok, err := repo.Transition(ctx, locked.ID, enums.PayoutStatusCreated, map[string]any{
			"status":              enums.PayoutStatusCaptured,
			"provider_payment_id": paymentID,
			"captured_at":         now,
		})
		if err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "payment already applied to another payout")
			}
			return err
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "payout changed while verifying")
		}

		reconciliation, err := s.reconciler.ReconcileCODPayout(ctx, tx, settlement.Remittance{
			PartnerID: locked.DeliveryPartnerID,
			Amount:    locked.Amount,
			PayoutID:  &locked.ID,
		})
		if err != nil {
			return err
		}
		settled := dbtypes.UUIDArray(reconciliation.SettledOrderIDs)
		if err := repo.Update(ctx, locked.ID, map[string]any{
			"orders_settled":    reconciliation.OrdersProcessed,
			"settled_order_ids": settled,
			"leftover":          reconciliation.Remaining,
		}); err != nil {
			return err
		}

		locked.Status = enums.PayoutStatusCaptured
		locked.ProviderPaymentID = &paymentID
		locked.CapturedAt = &now
		locked.OrdersSettled = reconciliation.OrdersProcessed
		locked.SettledOrderIDs = settled
		locked.Leftover = reconciliation.Remaining
		result = &VerifyResult{Payout: locked, Reconciliation: reconciliation}
		return nil
	})
	if err != nil {
		s.logg.Error(logCtx, "cod payout verification failed", err)
		return nil, err
	}

	if result.AlreadyProcessed {
		s.logg.Info(logCtx, "cod payout already captured")
		return result, nil
	}
	s.metrics.AddAmount(opVerify, "platform", result.Payout.Amount)
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"orders_settled": result.Payout.OrdersSettled,
		"leftover":       result.Payout.Leftover.StringFixed(2),
	})
	s.logg.Info(logCtx, "cod payout captured")
	return result, nil
}

func (s *service) owned(ctx context.Context, partnerID, payoutID uuid.UUID) (*models.PayoutPayment, error) {
	payout, err := s.repo.FindByID(ctx, payoutID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "payout not found")
		}
		return nil, err
	}
	if partnerID != uuid.Nil && payout.DeliveryPartnerID != partnerID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "payout not found")
	}
	return payout, nil
}

// alreadyCaptured reports a replay of the same provider payment. A captured
// payout claimed by a different payment is a conflict.
func (s *service) alreadyCaptured(payout *models.PayoutPayment, paymentID string) (bool, error) {
	if payout.Status != enums.PayoutStatusCaptured {
		return false, nil
	}
	if payout.ProviderPaymentID != nil && *payout.ProviderPaymentID == paymentID {
		return true, nil
	}
	return false, pkgerrors.New(pkgerrors.CodeConflict, "payout already captured with a different payment")
}

func (s *service) checkPayment(payout *models.PayoutPayment, payment *square.CapturedPayment) error {
	if payment == nil {
		return pkgerrors.New(pkgerrors.CodeNotFound, "payment not found")
	}
	if !payment.Completed() {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment is not completed").
			WithDetails(map[string]any{"status": payment.Status})
	}
	if payment.ReferenceID != payout.Reference {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment reference does not match payout")
	}
	paid := money.FromMinorUnits(payment.AmountCents)
	expected := money.Round2(payout.Amount)
	if !money.Negligible(paid.Sub(expected).Abs(), s.epsilon) {
		return pkgerrors.AmountMismatch("payment amount does not match payout", expected, paid)
	}
	return nil
}

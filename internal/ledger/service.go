package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/settlement-backend/internal/commission"
	"github.com/angelmondragon/settlement-backend/internal/orders"
	"github.com/angelmondragon/settlement-backend/internal/platformwallet"
	"github.com/angelmondragon/settlement-backend/internal/wallet"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/money"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
	"github.com/angelmondragon/settlement-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/settlement-backend/pkg/pagination"
)

// Service owns the commission leg state machine: pending, paid, cancelled.
type Service interface {
	// CreateOrderCommissions bills an online-paid order: one Paid seller leg
	// per item and an immediate wallet credit of each item's net. It does
	// nothing when the order already has legs or is COD.
	CreateOrderCommissions(ctx context.Context, tx db.Tx, order *models.Order) ([]models.Commission, error)
	// CreatePendingSellerLegs records one Pending leg per seller of the
	// breakdown without moving money.
	CreatePendingSellerLegs(ctx context.Context, tx db.Tx, breakdown *commission.Breakdown) ([]models.Commission, error)
	// CreateDeliveryLeg records the delivery partner's leg of the order.
	CreateDeliveryLeg(ctx context.Context, tx db.Tx, orderID uuid.UUID, split commission.DeliverySplit, status enums.CommissionStatus) (*models.Commission, error)
	// ReverseOrderCommissions cancels every Paid leg of the order and debits
	// what each one had credited. Pending legs are left alone.
	ReverseOrderCommissions(ctx context.Context, tx db.Tx, order *models.Order) (*Reversal, error)
	ListPartyCommissions(ctx context.Context, partyType enums.PartyType, partyID uuid.UUID, page pagination.Params) ([]models.Commission, int64, error)
}

// Reversal lists the legs a reversal cancelled and the amounts debited.
type Reversal struct {
	CommissionIDs []uuid.UUID            `json:"commissionIds"`
	Debits        []payloads.PartyAmount `json:"debits"`
}

// Deps groups the collaborators of the ledger service.
type Deps struct {
	Repo       Repository
	Orders     orders.Repository
	Calculator commission.Calculator
	Wallets    wallet.Ledger
	Platform   platformwallet.Service
	Outbox     outbox.Emitter
	Logger     *logger.Logger
}

type service struct {
	repo       Repository
	orders     orders.Repository
	calculator commission.Calculator
	wallets    wallet.Ledger
	platform   platformwallet.Service
	outbox     outbox.Emitter
	logg       *logger.Logger
	now        func() time.Time
}

// NewService wires a ledger service with the provided collaborators.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.Repo == nil:
		return nil, fmt.Errorf("commission repository required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case deps.Calculator == nil:
		return nil, fmt.Errorf("commission calculator required")
	case deps.Wallets == nil:
		return nil, fmt.Errorf("wallet ledger required")
	case deps.Platform == nil:
		return nil, fmt.Errorf("platform wallet required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:       deps.Repo,
		orders:     deps.Orders,
		calculator: deps.Calculator,
		wallets:    deps.Wallets,
		platform:   deps.Platform,
		outbox:     deps.Outbox,
		logg:       deps.Logger,
		now:        func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) CreateOrderCommissions(ctx context.Context, tx db.Tx, order *models.Order) ([]models.Commission, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"operation_id": tx.OperationID(),
		"order_id":     order.ID.String(),
	})

	repo := s.repo.WithTx(tx.DB())
	existing, err := repo.CountByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("count order commissions: %w", err)
	}
	if existing > 0 {
		s.logg.Info(logCtx, "order already billed; skipping commission creation")
		return nil, nil
	}
	if order.IsCOD() {
		return nil, nil
	}
	if order.PaymentStatus != enums.PaymentStatusPaid {
		return nil, pkgerrors.InvalidTransition("order", order.PaymentStatus, "create commissions for")
	}

	breakdown, err := s.calculator.WithTx(tx.DB()).Breakdown(ctx, order)
	if err != nil {
		return nil, err
	}

	now := s.now()
	rows := make([]*models.Commission, 0, len(breakdown.Items))
	for i := range breakdown.Items {
		item := breakdown.Items[i]
		sellerID := item.SellerID
		itemID := item.OrderItemID
		rows = append(rows, &models.Commission{
			OrderID:          order.ID,
			OrderItemID:      &itemID,
			Type:             enums.CommissionTypeSeller,
			SellerID:         &sellerID,
			OrderAmount:      item.ItemTotal,
			CommissionRate:   item.Rate,
			CommissionAmount: item.Commission,
			Status:           enums.CommissionStatusPaid,
			PaidAt:           &now,
		})
	}
	if err := repo.CreateBatch(ctx, rows); err != nil {
		return nil, fmt.Errorf("create order commissions: %w", err)
	}

	event := payloads.CommissionsCreatedEvent{OrderID: order.ID, OrderNumber: order.OrderNumber}
	netTotal := decimal.Zero
	created := make([]models.Commission, 0, len(rows))
	for _, row := range rows {
		created = append(created, *row)
		event.CommissionIDs = append(event.CommissionIDs, row.ID)
		net := money.Round2(row.WalletAmount())
		if !net.IsPositive() {
			continue
		}
		if _, err := s.wallets.Credit(ctx, tx, wallet.Entry{
			PartyID:             *row.SellerID,
			PartyType:           enums.PartySeller,
			Amount:              net,
			Description:         "Commission for order #" + order.OrderNumber,
			RelatedOrderID:      &order.ID,
			RelatedCommissionID: &row.ID,
			Reference:           "CMS-" + row.ID.String(),
		}); err != nil {
			return nil, err
		}
		netTotal = netTotal.Add(net)
		event.SellerCredits = append(event.SellerCredits, payloads.PartyAmount{
			PartyID:   *row.SellerID,
			PartyType: enums.PartySeller,
			Amount:    net,
		})
	}

	if err := s.orders.WithTx(tx.DB()).FreezeItemRates(ctx, breakdown.FrozenRates()); err != nil {
		return nil, fmt.Errorf("freeze item rates: %w", err)
	}
	if err := s.platform.Apply(ctx, tx, platformwallet.Delta{
		TotalPlatformEarning:   order.Total,
		CurrentPlatformBalance: order.Total,
		SellerPendingPayouts:   netTotal,
	}); err != nil {
		return nil, err
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCommissionsCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data:          event,
	}); err != nil {
		return nil, fmt.Errorf("emit commissions created: %w", err)
	}

	s.logg.Info(s.logg.WithField(logCtx, "commissions", len(created)), "order commissions created")
	return created, nil
}

func (s *service) CreatePendingSellerLegs(ctx context.Context, tx db.Tx, breakdown *commission.Breakdown) ([]models.Commission, error) {
	if breakdown == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "breakdown is required")
	}
	rows := make([]*models.Commission, 0, len(breakdown.Sellers))
	for _, seller := range breakdown.Sellers {
		sellerID := seller.SellerID
		rows = append(rows, &models.Commission{
			OrderID:          breakdown.OrderID,
			Type:             enums.CommissionTypeSeller,
			SellerID:         &sellerID,
			OrderAmount:      seller.ItemsTotal,
			CommissionRate:   seller.EffectiveRate(),
			CommissionAmount: seller.Commission,
			Status:           enums.CommissionStatusPending,
		})
	}
	if err := s.repo.WithTx(tx.DB()).CreateBatch(ctx, rows); err != nil {
		return nil, fmt.Errorf("create pending seller commissions: %w", err)
	}
	out := make([]models.Commission, 0, len(rows))
	for _, row := range rows {
		out = append(out, *row)
	}
	return out, nil
}

func (s *service) CreateDeliveryLeg(ctx context.Context, tx db.Tx, orderID uuid.UUID, split commission.DeliverySplit, status enums.CommissionStatus) (*models.Commission, error) {
	if split.PartnerID == nil || *split.PartnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order has no delivery partner")
	}
	if status != enums.CommissionStatusPending && status != enums.CommissionStatusPaid {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("cannot create a %s delivery commission", status))
	}
	partnerID := *split.PartnerID
	row := &models.Commission{
		OrderID:           orderID,
		Type:              enums.CommissionTypeDeliveryBoy,
		DeliveryPartnerID: &partnerID,
		OrderAmount:       split.Base,
		CommissionRate:    split.Rate,
		CommissionAmount:  split.PartnerCut,
		Status:            status,
	}
	if status == enums.CommissionStatusPaid {
		now := s.now()
		row.PaidAt = &now
	}
	if err := s.repo.WithTx(tx.DB()).Create(ctx, row); err != nil {
		if db.IsUniqueViolation(err, "") {
			return nil, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "order already has a delivery commission")
		}
		return nil, fmt.Errorf("create delivery commission: %w", err)
	}
	return row, nil
}

func (s *service) ReverseOrderCommissions(ctx context.Context, tx db.Tx, order *models.Order) (*Reversal, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	legs, err := s.repo.WithTx(tx.DB()).ListByOrderAndStatus(ctx, order.ID, enums.CommissionStatusPaid)
	if err != nil {
		return nil, fmt.Errorf("list paid commissions: %w", err)
	}
	out := &Reversal{}
	for i := range legs {
		if err := s.reverse(ctx, tx, &legs[i], order, out); err != nil {
			return nil, err
		}
	}
	if err := s.emitReversal(ctx, tx, order, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *service) reverse(ctx context.Context, tx db.Tx, leg *models.Commission, order *models.Order, out *Reversal) error {
	if leg.Status != enums.CommissionStatusPaid {
		return nil
	}
	ok, err := s.repo.WithTx(tx.DB()).Transition(ctx, leg.ID, enums.CommissionStatusPaid, enums.CommissionStatusCancelled, s.now())
	if err != nil {
		return fmt.Errorf("cancel commission: %w", err)
	}
	if !ok {
		return nil
	}
	leg.Status = enums.CommissionStatusCancelled
	out.CommissionIDs = append(out.CommissionIDs, leg.ID)

	amount := money.Round2(leg.WalletAmount())
	if !amount.IsPositive() {
		return nil
	}
	partyType := leg.Type.PartyType()
	if _, err := s.wallets.Debit(ctx, tx, wallet.Entry{
		PartyID:             leg.PartyID(),
		PartyType:           partyType,
		Amount:              amount,
		Description:         "Commission reversal for order #" + order.OrderNumber,
		RelatedOrderID:      &order.ID,
		RelatedCommissionID: &leg.ID,
		Reference:           "REV-" + leg.ID.String(),
	}); err != nil {
		return err
	}
	delta := platformwallet.Delta{SellerPendingPayouts: amount.Neg()}
	if partyType == enums.PartyDeliveryBoy {
		delta = platformwallet.Delta{DeliveryBoyPendingPayouts: amount.Neg()}
	}
	if err := s.platform.Apply(ctx, tx, delta); err != nil {
		return err
	}
	out.Debits = append(out.Debits, payloads.PartyAmount{
		PartyID:   leg.PartyID(),
		PartyType: partyType,
		Amount:    amount,
	})
	return nil
}

func (s *service) emitReversal(ctx context.Context, tx db.Tx, order *models.Order, out *Reversal) error {
	if len(out.CommissionIDs) == 0 {
		return nil
	}
	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCommissionsReversed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.CommissionsReversedEvent{
			OrderID:       order.ID,
			OrderNumber:   order.OrderNumber,
			Status:        order.Status,
			CommissionIDs: out.CommissionIDs,
			Debits:        out.Debits,
		},
	}); err != nil {
		return fmt.Errorf("emit commissions reversed: %w", err)
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"operation_id": tx.OperationID(),
		"order_id":     order.ID.String(),
		"reversed":     len(out.CommissionIDs),
	})
	s.logg.Info(logCtx, "order commissions reversed")
	return nil
}

func (s *service) ListPartyCommissions(ctx context.Context, partyType enums.PartyType, partyID uuid.UUID, page pagination.Params) ([]models.Commission, int64, error) {
	if !partyType.IsValid() {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid party type %q", partyType))
	}
	if partyID == uuid.Nil {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, "party id is required")
	}
	return s.repo.ListByParty(ctx, partyType, partyID, page)
}

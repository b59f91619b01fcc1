package settlement

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/settlement-backend/internal/catalog"
	"github.com/angelmondragon/settlement-backend/internal/commission"
	"github.com/angelmondragon/settlement-backend/internal/ledger"
	"github.com/angelmondragon/settlement-backend/internal/orders"
	"github.com/angelmondragon/settlement-backend/internal/platformwallet"
	"github.com/angelmondragon/settlement-backend/internal/wallet"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/metrics"
	"github.com/angelmondragon/settlement-backend/pkg/money"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
	"github.com/angelmondragon/settlement-backend/pkg/outbox/payloads"
)

const (
	opDistribute    = "distribute_order"
	opMarkPaid      = "mark_paid"
	opMarkDelivered = "mark_delivered"
	opReverse       = "reverse_order"
)

// Service settles delivered orders and reconciles COD remittances.
type Service interface {
	// DistributeOrder runs Distribute in its own transaction.
	DistributeOrder(ctx context.Context, orderID uuid.UUID) (*Distribution, error)
	// Distribute pays out the pending legs of a delivered order and makes sure
	// it has exactly one delivery leg. COD orders go to ProcessCODDelivery.
	Distribute(ctx context.Context, tx db.Tx, orderID uuid.UUID) (*Distribution, error)
	ProcessCODDelivery(ctx context.Context, tx db.Tx, order *models.Order) (*CODDelivery, error)
	ReconcileCODPayout(ctx context.Context, tx db.Tx, remittance Remittance) (*Reconciliation, error)

	MarkPaid(ctx context.Context, orderID uuid.UUID) (*PaymentResult, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID, partnerID *uuid.UUID) (*Distribution, error)
	Reverse(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*ledger.Reversal, error)
}

// Distribution is the outcome of settling one delivered order.
type Distribution struct {
	OrderID           uuid.UUID              `json:"orderId"`
	OrderNumber       string                 `json:"orderNumber"`
	PaymentMethod     enums.PaymentMethod    `json:"paymentMethod"`
	SellerCredits     []payloads.PartyAmount `json:"sellerCredits"`
	DeliveryCredit    *payloads.PartyAmount  `json:"deliveryCredit,omitempty"`
	DeliveryLegID     *uuid.UUID             `json:"deliveryCommissionId,omitempty"`
	TotalAdminEarning decimal.Decimal        `json:"totalAdminEarning"`
	COD               *CODDelivery           `json:"cod,omitempty"`
	changed           bool
}

// Changed reports whether the run moved any money.
func (d *Distribution) Changed() bool {
	if d == nil {
		return false
	}
	if d.COD != nil {
		return d.COD.Processed
	}
	return d.changed
}

// Deps groups the collaborators of the settlement service.
type Deps struct {
	DB          *db.Client
	Orders      orders.Repository
	Commissions ledger.Repository
	Ledger      ledger.Service
	Calculator  commission.Calculator
	Wallets     wallet.Ledger
	Delivery    catalog.DeliveryRepository
	Platform    platformwallet.Service
	Outbox      outbox.Emitter
	Metrics     *metrics.SettlementMetrics
	Logger      *logger.Logger
	Epsilon     decimal.Decimal
}

type service struct {
	db          *db.Client
	orders      orders.Repository
	commissions ledger.Repository
	ledger      ledger.Service
	calculator  commission.Calculator
	wallets     wallet.Ledger
	delivery    catalog.DeliveryRepository
	platform    platformwallet.Service
	outbox      outbox.Emitter
	metrics     *metrics.SettlementMetrics
	logg        *logger.Logger
	epsilon     decimal.Decimal
	now         func() time.Time
}

// NewService wires the settlement service. A zero Epsilon uses money.Epsilon.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.DB == nil:
		return nil, fmt.Errorf("db client required")
	case deps.Orders == nil:
		return nil, fmt.Errorf("orders repository required")
	case deps.Commissions == nil:
		return nil, fmt.Errorf("commission repository required")
	case deps.Ledger == nil:
		return nil, fmt.Errorf("commission ledger required")
	case deps.Calculator == nil:
		return nil, fmt.Errorf("commission calculator required")
	case deps.Wallets == nil:
		return nil, fmt.Errorf("wallet ledger required")
	case deps.Delivery == nil:
		return nil, fmt.Errorf("delivery repository required")
	case deps.Platform == nil:
		return nil, fmt.Errorf("platform wallet required")
	case deps.Outbox == nil:
		return nil, fmt.Errorf("outbox emitter required")
	case deps.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	epsilon := deps.Epsilon
	if !epsilon.IsPositive() {
		epsilon = money.Epsilon
	}
	return &service{
		db:          deps.DB,
		orders:      deps.Orders,
		commissions: deps.Commissions,
		ledger:      deps.Ledger,
		calculator:  deps.Calculator,
		wallets:     deps.Wallets,
		delivery:    deps.Delivery,
		platform:    deps.Platform,
		outbox:      deps.Outbox,
		metrics:     deps.Metrics,
		logg:        deps.Logger,
		epsilon:     epsilon,
		now:         func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) DistributeOrder(ctx context.Context, orderID uuid.UUID) (result *Distribution, err error) {
	start := time.Now()
	defer func() { s.observeDistribution(opDistribute, start, result, err) }()

	err = s.db.WithTx(ctx, func(tx db.Tx) error {
		var txErr error
		result, txErr = s.Distribute(ctx, tx, orderID)
		return txErr
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Distribute(ctx context.Context, tx db.Tx, orderID uuid.UUID) (*Distribution, error) {
	order, err := s.lockOrder(ctx, tx, orderID)
	if err != nil {
		return nil, err
	}
	return s.distribute(ctx, tx, order)
}

func (s *service) distribute(ctx context.Context, tx db.Tx, order *models.Order) (*Distribution, error) {
	if order.Status != enums.OrderStatusDelivered {
		return nil, pkgerrors.InvalidTransition("order", order.Status, "distribute commissions for")
	}
	// Online seller legs must exist before the delivery leg.
	if !order.IsCOD() && !order.PaymentStatus.Captured() {
		return nil, pkgerrors.InvalidTransition("order", order.PaymentStatus, "distribute commissions for")
	}
	result := &Distribution{
		OrderID:       order.ID,
		OrderNumber:   order.OrderNumber,
		PaymentMethod: order.PaymentMethod,
	}
	if order.IsCOD() {
		cod, err := s.ProcessCODDelivery(ctx, tx, order)
		if err != nil {
			return nil, err
		}
		result.COD = cod
		return result, nil
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"operation_id": tx.OperationID(),
		"order_id":     order.ID.String(),
	})
	s.logg.Info(logCtx, "distributing order commissions")

	if _, err := s.ledger.CreateOrderCommissions(ctx, tx, order); err != nil {
		return nil, err
	}

	commissions := s.commissions.WithTx(tx.DB())
	pending, err := commissions.ListByOrderAndStatus(ctx, order.ID, enums.CommissionStatusPending)
	if err != nil {
		return nil, fmt.Errorf("list pending commissions: %w", err)
	}
	var sellerLegs []models.Commission
	var deliveryLeg *models.Commission
	for i := range pending {
		if pending[i].Type == enums.CommissionTypeDeliveryBoy {
			deliveryLeg = &pending[i]
			continue
		}
		sellerLegs = append(sellerLegs, pending[i])
	}

	credits, err := s.settleSellerLegs(ctx, tx, order, sellerLegs, "DST-", "Commission for order #"+order.OrderNumber)
	if err != nil {
		return nil, err
	}
	sellerNet := decimal.Zero
	for _, credit := range credits {
		sellerNet = sellerNet.Add(credit.Amount)
	}
	result.SellerCredits = credits
	result.changed = len(credits) > 0

	cut, leg, created, err := s.ensureDeliveryLeg(ctx, tx, order, deliveryLeg)
	if err != nil {
		return nil, err
	}
	if leg != nil {
		result.DeliveryLegID = &leg.ID
	}
	if created {
		result.changed = true
		if cut.IsPositive() {
			result.DeliveryCredit = &payloads.PartyAmount{
				PartyID:   leg.PartyID(),
				PartyType: enums.PartyDeliveryBoy,
				Amount:    cut,
			}
		}
	}

	if !result.changed {
		s.logg.Info(logCtx, "order already distributed; nothing to settle")
		return result, nil
	}

	if err := s.platform.Apply(ctx, tx, platformwallet.Delta{
		SellerPendingPayouts:      sellerNet,
		DeliveryBoyPendingPayouts: cut,
	}); err != nil {
		return nil, err
	}
	breakdown, err := s.calculator.WithTx(tx.DB()).Breakdown(ctx, order)
	if err != nil {
		return nil, err
	}
	result.TotalAdminEarning = breakdown.TotalAdminEarning
	s.platform.ApplyBestEffort(ctx, tx, "distribute.admin_earning", platformwallet.Delta{
		TotalAdminEarning: breakdown.TotalAdminEarning,
	})

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventOrderDistributed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.OrderDistributedEvent{
			OrderID:        order.ID,
			OrderNumber:    order.OrderNumber,
			SellerCredits:  result.SellerCredits,
			DeliveryCredit: result.DeliveryCredit,
		},
	}); err != nil {
		return nil, fmt.Errorf("emit order distributed: %w", err)
	}

	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"seller_credits":      len(result.SellerCredits),
		"total_admin_earning": result.TotalAdminEarning.StringFixed(2),
	}), "order commissions distributed")
	return result, nil
}

// settleSellerLegs flips the legs to Paid and credits each seller once with
// the sum of their flipped legs. The first leg of a seller tags the credit.
func (s *service) settleSellerLegs(ctx context.Context, tx db.Tx, order *models.Order, legs []models.Commission, refPrefix, description string) ([]payloads.PartyAmount, error) {
	type group struct {
		first uuid.UUID
		net   decimal.Decimal
	}
	commissions := s.commissions.WithTx(tx.DB())
	now := s.now()
	var sellers []uuid.UUID
	groups := make(map[uuid.UUID]*group)
	for i := range legs {
		leg := legs[i]
		ok, err := commissions.Transition(ctx, leg.ID, enums.CommissionStatusPending, enums.CommissionStatusPaid, now)
		if err != nil {
			return nil, fmt.Errorf("settle commission: %w", err)
		}
		if !ok {
			continue
		}
		sellerID := leg.PartyID()
		g, seen := groups[sellerID]
		if !seen {
			g = &group{first: leg.ID}
			groups[sellerID] = g
			sellers = append(sellers, sellerID)
		}
		g.net = g.net.Add(leg.WalletAmount())
	}

	credits := make([]payloads.PartyAmount, 0, len(sellers))
	for _, sellerID := range sellers {
		g := groups[sellerID]
		net := money.Round2(g.net)
		if !net.IsPositive() {
			continue
		}
		first := g.first
		if _, err := s.wallets.Credit(ctx, tx, wallet.Entry{
			PartyID:             sellerID,
			PartyType:           enums.PartySeller,
			Amount:              net,
			Description:         description,
			RelatedOrderID:      &order.ID,
			RelatedCommissionID: &first,
			Reference:           refPrefix + first.String(),
		}); err != nil {
			return nil, err
		}
		credits = append(credits, payloads.PartyAmount{PartyID: sellerID, PartyType: enums.PartySeller, Amount: net})
	}
	return credits, nil
}

// ensureDeliveryLeg leaves the order with one Paid delivery leg when it has a
// partner. created reports whether this call paid the leg.
func (s *service) ensureDeliveryLeg(ctx context.Context, tx db.Tx, order *models.Order, pending *models.Commission) (decimal.Decimal, *models.Commission, bool, error) {
	commissions := s.commissions.WithTx(tx.DB())
	leg := pending
	if leg == nil {
		active, err := commissions.FindActiveDeliveryLeg(ctx, order.ID)
		if err != nil {
			return decimal.Zero, nil, false, fmt.Errorf("find delivery commission: %w", err)
		}
		leg = active
	}

	switch {
	case leg == nil:
		if order.DeliveryPartnerID == nil {
			return decimal.Zero, nil, false, nil
		}
		split, err := s.calculator.WithTx(tx.DB()).DeliverySplit(ctx, order)
		if err != nil {
			return decimal.Zero, nil, false, err
		}
		created, err := s.ledger.CreateDeliveryLeg(ctx, tx, order.ID, split, enums.CommissionStatusPaid)
		if err != nil {
			return decimal.Zero, nil, false, err
		}
		leg = created
	case leg.Status == enums.CommissionStatusPending:
		ok, err := commissions.Transition(ctx, leg.ID, enums.CommissionStatusPending, enums.CommissionStatusPaid, s.now())
		if err != nil {
			return decimal.Zero, nil, false, fmt.Errorf("settle delivery commission: %w", err)
		}
		if !ok {
			return decimal.Zero, leg, false, nil
		}
	default:
		return decimal.Zero, leg, false, nil
	}

	cut := money.Round2(leg.CommissionAmount)
	if cut.IsPositive() {
		if _, err := s.wallets.Credit(ctx, tx, wallet.Entry{
			PartyID:             leg.PartyID(),
			PartyType:           enums.PartyDeliveryBoy,
			Amount:              cut,
			Description:         "Delivery earning for order #" + order.OrderNumber,
			RelatedOrderID:      &order.ID,
			RelatedCommissionID: &leg.ID,
			Reference:           "DLV-" + leg.ID.String(),
		}); err != nil {
			return decimal.Zero, nil, false, err
		}
	}
	return cut, leg, true, nil
}

func (s *service) lockOrder(ctx context.Context, tx db.Tx, orderID uuid.UUID) (*models.Order, error) {
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id is required")
	}
	order, err := s.orders.WithTx(tx.DB()).FindByIDForUpdate(ctx, orderID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "order not found")
		}
		return nil, err
	}
	return order, nil
}

func (s *service) observeDistribution(operation string, start time.Time, result *Distribution, err error) {
	took := time.Since(start)
	switch {
	case err != nil:
		s.metrics.Observe(operation, metrics.OutcomeFailure, took)
	case !result.Changed():
		s.metrics.Observe(operation, metrics.OutcomeSkipped, took)
	default:
		s.metrics.Observe(operation, metrics.OutcomeSuccess, took)
		for _, credit := range result.SellerCredits {
			s.metrics.AddAmount(operation, string(enums.PartySeller), credit.Amount)
		}
		if result.DeliveryCredit != nil {
			s.metrics.AddAmount(operation, string(enums.PartyDeliveryBoy), result.DeliveryCredit.Amount)
		}
		if result.COD != nil {
			s.metrics.AddAmount(operation, string(enums.PartyDeliveryBoy), result.COD.PartnerCut)
		}
	}
}

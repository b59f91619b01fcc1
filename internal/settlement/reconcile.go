package settlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/settlement-backend/internal/platformwallet"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/money"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
	"github.com/angelmondragon/settlement-backend/pkg/outbox/payloads"
)

// Remittance is cash a delivery partner handed over to the platform.
type Remittance struct {
	PartnerID uuid.UUID
	Amount    decimal.Decimal
	// PayoutID links the remittance to the captured payout record, if any.
	PayoutID *uuid.UUID
}

// Reconciliation reports which COD orders a remittance settled.
type Reconciliation struct {
	PartnerID       uuid.UUID              `json:"deliveryPartnerId"`
	Amount          decimal.Decimal        `json:"amountPaid"`
	OrdersProcessed int                    `json:"ordersProcessed"`
	SettledOrderIDs []uuid.UUID            `json:"settledOrderIds"`
	SellerCredits   []payloads.PartyAmount `json:"sellerCredits"`
	Remaining       decimal.Decimal        `json:"remainingAmount"`
}

// ReconcileCODPayout books the remittance against the partner's cash position
// and settles their pending COD orders oldest first. An order is settled whole
// or not at all; one that does not fit the remaining amount is skipped and a
// later, smaller order may still settle.
func (s *service) ReconcileCODPayout(ctx context.Context, tx db.Tx, remittance Remittance) (*Reconciliation, error) {
	amount := money.Round2(remittance.Amount)
	if !amount.IsPositive() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	if remittance.PartnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "delivery partner id is required")
	}
	delivery := s.delivery.WithTx(tx.DB())
	if _, err := delivery.FindByID(ctx, remittance.PartnerID); err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "delivery partner not found")
		}
		return nil, err
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"operation_id": tx.OperationID(),
		"partner_id":   remittance.PartnerID.String(),
		"amount":       amount.StringFixed(2),
	})
	s.logg.Info(logCtx, "reconciling COD remittance")

	if err := delivery.AdjustCODPosition(ctx, remittance.PartnerID, amount.Neg(), decimal.Zero); err != nil {
		return nil, err
	}
	if err := s.platform.Apply(ctx, tx, platformwallet.Delta{
		CurrentPlatformBalance: amount,
		PendingFromDeliveryBoy: amount.Neg(),
	}); err != nil {
		return nil, err
	}

	commissions := s.commissions.WithTx(tx.DB())
	legs, err := commissions.ListPendingCODSellerLegs(ctx, remittance.PartnerID)
	if err != nil {
		return nil, fmt.Errorf("list pending COD commissions: %w", err)
	}
	var orderIDs []uuid.UUID
	byOrder := make(map[uuid.UUID][]models.Commission)
	for _, leg := range legs {
		if _, seen := byOrder[leg.OrderID]; !seen {
			orderIDs = append(orderIDs, leg.OrderID)
		}
		byOrder[leg.OrderID] = append(byOrder[leg.OrderID], leg)
	}
	orderRows, err := s.orders.WithTx(tx.DB()).FindByIDs(ctx, orderIDs)
	if err != nil {
		return nil, fmt.Errorf("load COD orders: %w", err)
	}

	result := &Reconciliation{PartnerID: remittance.PartnerID, Amount: amount}
	remaining := amount
	for _, orderID := range orderIDs {
		if money.Negligible(remaining, s.epsilon) {
			break
		}
		order, ok := orderRows[orderID]
		if !ok {
			continue
		}
		portion, err := s.adminPortion(ctx, tx, &order)
		if err != nil {
			return nil, err
		}
		if !money.AtLeast(remaining, portion, s.epsilon) {
			continue
		}

		credits, err := s.settleSellerLegs(ctx, tx, &order, byOrder[orderID], "CODS-", "COD settlement for order #"+order.OrderNumber)
		if err != nil {
			return nil, err
		}
		net := decimal.Zero
		for _, credit := range credits {
			net = net.Add(credit.Amount)
		}
		if err := s.platform.Apply(ctx, tx, platformwallet.Delta{SellerPendingPayouts: net}); err != nil {
			return nil, err
		}
		breakdown, err := s.calculator.WithTx(tx.DB()).Breakdown(ctx, &order)
		if err != nil {
			return nil, err
		}
		s.platform.ApplyBestEffort(ctx, tx, "cod_reconcile.admin_earning", platformwallet.Delta{
			TotalAdminEarning: breakdown.TotalAdminEarning,
		})

		remaining = remaining.Sub(portion)
		result.SettledOrderIDs = append(result.SettledOrderIDs, orderID)
		result.SellerCredits = append(result.SellerCredits, credits...)
	}
	result.OrdersProcessed = len(result.SettledOrderIDs)
	result.Remaining = money.ClampZero(money.Round2(remaining))

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCODPayoutReconciled,
		AggregateType: enums.AggregateDeliveryPartner,
		AggregateID:   remittance.PartnerID,
		Data: payloads.CODPayoutReconciledEvent{
			DeliveryPartnerID: remittance.PartnerID,
			PayoutID:          remittance.PayoutID,
			Amount:            amount,
			OrdersProcessed:   result.OrdersProcessed,
			SettledOrderIDs:   result.SettledOrderIDs,
			RemainingAmount:   result.Remaining,
		},
	}); err != nil {
		return nil, fmt.Errorf("emit COD payout reconciled: %w", err)
	}

	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"orders_processed": result.OrdersProcessed,
		"remaining":        result.Remaining.StringFixed(2),
	}), "COD remittance reconciled")
	return result, nil
}

// adminPortion is what the partner owes the platform for one order: the
// order total less their own delivery commission.
func (s *service) adminPortion(ctx context.Context, tx db.Tx, order *models.Order) (decimal.Decimal, error) {
	leg, err := s.commissions.WithTx(tx.DB()).FindActiveDeliveryLeg(ctx, order.ID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("find delivery commission: %w", err)
	}
	cut := decimal.Zero
	if leg != nil {
		cut = leg.CommissionAmount
	}
	return money.Round2(order.Total.Sub(cut)), nil
}

package settlement

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/settlement-backend/internal/platformwallet"
	"github.com/angelmondragon/settlement-backend/internal/wallet"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/money"
	"github.com/angelmondragon/settlement-backend/pkg/outbox"
	"github.com/angelmondragon/settlement-backend/pkg/outbox/payloads"
)

// CODDelivery is the cash position recorded for a delivered COD order.
// Processed is false when the order had already been handled.
type CODDelivery struct {
	OrderID           uuid.UUID       `json:"orderId"`
	DeliveryPartnerID uuid.UUID       `json:"deliveryPartnerId"`
	Processed         bool            `json:"processed"`
	CashCollected     decimal.Decimal `json:"cashCollected"`
	PartnerCut        decimal.Decimal `json:"deliveryBoyCommission"`
	OwedToPlatform    decimal.Decimal `json:"amountDeliveryBoyOwesAdmin"`
	PendingSellerLegs int             `json:"pendingSellerCommissions"`
}

func codEarningDescription(order *models.Order) string {
	return "Delivery earning for COD order #" + order.OrderNumber
}

func (s *service) ProcessCODDelivery(ctx context.Context, tx db.Tx, order *models.Order) (*CODDelivery, error) {
	if order == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is required")
	}
	if !order.IsCOD() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order is not cash on delivery")
	}
	if order.DeliveryPartnerID == nil || *order.DeliveryPartnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "COD order has no delivery partner")
	}
	partnerID := *order.DeliveryPartnerID
	result := &CODDelivery{OrderID: order.ID, DeliveryPartnerID: partnerID}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"operation_id": tx.OperationID(),
		"order_id":     order.ID.String(),
		"partner_id":   partnerID.String(),
	})

	description := codEarningDescription(order)
	done, err := s.wallets.HasEntry(ctx, tx, wallet.EntryQuery{
		PartyID:        partnerID,
		PartyType:      enums.PartyDeliveryBoy,
		RelatedOrderID: &order.ID,
		Description:    description,
	})
	if err != nil {
		return nil, fmt.Errorf("check COD earning: %w", err)
	}
	commissions := s.commissions.WithTx(tx.DB())
	leg, err := commissions.FindActiveDeliveryLeg(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("find delivery commission: %w", err)
	}
	if done || (leg != nil && leg.Status == enums.CommissionStatusPaid) {
		s.logg.Info(logCtx, "COD delivery already processed")
		return result, nil
	}

	breakdown, err := s.calculator.WithTx(tx.DB()).Breakdown(ctx, order)
	if err != nil {
		return nil, err
	}
	// An existing leg fixes the partner's cut; the cash position follows it.
	total := breakdown.Total
	cut := breakdown.Delivery.PartnerCut
	if leg != nil {
		cut = leg.CommissionAmount
	}
	owed := money.ClampZero(total.Sub(cut))

	if err := s.delivery.WithTx(tx.DB()).AdjustCODPosition(ctx, partnerID, owed, total); err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "delivery partner not found")
		}
		return nil, err
	}

	if leg == nil {
		leg, err = s.ledger.CreateDeliveryLeg(ctx, tx, order.ID, breakdown.Delivery, enums.CommissionStatusPaid)
		if err != nil {
			return nil, err
		}
	} else {
		ok, err := commissions.Transition(ctx, leg.ID, enums.CommissionStatusPending, enums.CommissionStatusPaid, s.now())
		if err != nil {
			return nil, fmt.Errorf("settle delivery commission: %w", err)
		}
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeConflict, "delivery commission changed concurrently")
		}
	}
	if cut.IsPositive() {
		if _, err := s.wallets.Credit(ctx, tx, wallet.Entry{
			PartyID:             partnerID,
			PartyType:           enums.PartyDeliveryBoy,
			Amount:              cut,
			Description:         description,
			RelatedOrderID:      &order.ID,
			RelatedCommissionID: &leg.ID,
			Reference:           "COD-" + order.ID.String(),
		}); err != nil {
			return nil, err
		}
	}

	if err := s.platform.Apply(ctx, tx, platformwallet.Delta{
		PendingFromDeliveryBoy:    owed,
		DeliveryBoyPendingPayouts: cut,
	}); err != nil {
		return nil, err
	}
	s.platform.ApplyBestEffort(ctx, tx, "cod_delivery.platform_earning", platformwallet.Delta{
		TotalPlatformEarning: total,
	})

	existing, err := commissions.ListByOrder(ctx, order.ID)
	if err != nil {
		return nil, fmt.Errorf("list order commissions: %w", err)
	}
	hasSellerLegs := false
	for _, row := range existing {
		if row.Type == enums.CommissionTypeSeller {
			hasSellerLegs = true
			break
		}
	}
	if !hasSellerLegs {
		created, err := s.ledger.CreatePendingSellerLegs(ctx, tx, breakdown)
		if err != nil {
			return nil, err
		}
		result.PendingSellerLegs = len(created)
	}
	if err := s.orders.WithTx(tx.DB()).FreezeItemRates(ctx, breakdown.FrozenRates()); err != nil {
		return nil, fmt.Errorf("freeze item rates: %w", err)
	}

	if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     enums.EventCODDeliveryProcessed,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.CODDeliveryProcessedEvent{
			OrderID:           order.ID,
			OrderNumber:       order.OrderNumber,
			DeliveryPartnerID: partnerID,
			CashCollected:     total,
			PartnerCut:        cut,
			OwedToPlatform:    owed,
		},
	}); err != nil {
		return nil, fmt.Errorf("emit COD delivery processed: %w", err)
	}

	result.Processed = true
	result.CashCollected = total
	result.PartnerCut = cut
	result.OwedToPlatform = owed
	s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
		"cash_collected": total.StringFixed(2),
		"owed":           owed.StringFixed(2),
	}), "COD delivery processed")
	return result, nil
}

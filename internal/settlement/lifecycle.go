package settlement

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/internal/ledger"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
)

// PaymentResult is the order after payment and the legs billed for it.
type PaymentResult struct {
	Order       *models.Order       `json:"order"`
	Commissions []models.Commission `json:"commissions"`
}

func closed(status enums.OrderStatus) bool {
	return status == enums.OrderStatusCancelled || status == enums.OrderStatusReturned
}

func (s *service) MarkPaid(ctx context.Context, orderID uuid.UUID) (result *PaymentResult, err error) {
	defer s.metrics.Track(opMarkPaid, &err)()

	err = s.db.WithTx(ctx, func(tx db.Tx) error {
		order, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if closed(order.Status) {
			return pkgerrors.InvalidTransition("order", order.Status, "mark paid")
		}
		if order.PaymentStatus != enums.PaymentStatusPaid {
			now := s.now()
			if err := s.orders.WithTx(tx.DB()).Update(ctx, order.ID, map[string]any{
				"payment_status": enums.PaymentStatusPaid,
				"paid_at":        now,
			}); err != nil {
				return err
			}
			order.PaymentStatus = enums.PaymentStatusPaid
			order.PaidAt = &now
		}
		created, err := s.ledger.CreateOrderCommissions(ctx, tx, order)
		if err != nil {
			return err
		}
		result = &PaymentResult{Order: order, Commissions: created}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) MarkDelivered(ctx context.Context, orderID uuid.UUID, partnerID *uuid.UUID) (result *Distribution, err error) {
	start := time.Now()
	defer func() { s.observeDistribution(opMarkDelivered, start, result, err) }()

	err = s.db.WithTx(ctx, func(tx db.Tx) error {
		order, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if closed(order.Status) {
			return pkgerrors.InvalidTransition("order", order.Status, "deliver")
		}
		if !order.IsCOD() && !order.PaymentStatus.Captured() {
			return pkgerrors.InvalidTransition("order", order.PaymentStatus, "deliver")
		}
		if partnerID != nil && *partnerID != uuid.Nil {
			if _, err := s.delivery.WithTx(tx.DB()).FindByID(ctx, *partnerID); err != nil {
				if db.IsNotFound(err) {
					return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "delivery partner not found")
				}
				return err
			}
			order.DeliveryPartnerID = partnerID
		}
		if order.IsCOD() && order.DeliveryPartnerID == nil {
			return pkgerrors.New(pkgerrors.CodeValidation, "delivery partner is required for COD orders")
		}

		now := s.now()
		updates := map[string]any{
			"status":              enums.OrderStatusDelivered,
			"delivery_partner_id": order.DeliveryPartnerID,
		}
		if order.DeliveredAt == nil {
			updates["delivered_at"] = now
			order.DeliveredAt = &now
		}
		if order.IsCOD() && order.PaymentStatus != enums.PaymentStatusPaid {
			updates["payment_status"] = enums.PaymentStatusPaid
			updates["paid_at"] = now
			order.PaymentStatus = enums.PaymentStatusPaid
			order.PaidAt = &now
		}
		if err := s.orders.WithTx(tx.DB()).Update(ctx, order.ID, updates); err != nil {
			return err
		}
		order.Status = enums.OrderStatusDelivered

		result, err = s.distribute(ctx, tx, order)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (s *service) Reverse(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (result *ledger.Reversal, err error) {
	defer s.metrics.Track(opReverse, &err)()

	if !closed(status) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "status must be cancelled or returned")
	}
	err = s.db.WithTx(ctx, func(tx db.Tx) error {
		order, err := s.lockOrder(ctx, tx, orderID)
		if err != nil {
			return err
		}
		action := "cancel"
		if status == enums.OrderStatusReturned {
			action = "return"
		}
		if closed(order.Status) {
			return pkgerrors.InvalidTransition("order", order.Status, action)
		}
		if status == enums.OrderStatusReturned && order.Status != enums.OrderStatusDelivered {
			return pkgerrors.InvalidTransition("order", order.Status, action)
		}
		now := s.now()
		if err := s.orders.WithTx(tx.DB()).Update(ctx, order.ID, map[string]any{
			"status":       status,
			"cancelled_at": now,
		}); err != nil {
			return err
		}
		order.Status = status
		order.CancelledAt = &now

		result, err = s.ledger.ReverseOrderCommissions(ctx, tx, order)
		return err
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

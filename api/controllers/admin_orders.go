package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/settlement-backend/api/responses"
	"github.com/angelmondragon/settlement-backend/api/validators"
	"github.com/angelmondragon/settlement-backend/internal/commission"
	"github.com/angelmondragon/settlement-backend/internal/ledger"
	"github.com/angelmondragon/settlement-backend/internal/settlement"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

type orderReader interface {
	Breakdown(ctx context.Context, orderID uuid.UUID) (*commission.Breakdown, error)
	Preview(ctx context.Context, orderID uuid.UUID) (*commission.Preview, error)
}

type orderLifecycle interface {
	DistributeOrder(ctx context.Context, orderID uuid.UUID) (*settlement.Distribution, error)
	MarkPaid(ctx context.Context, orderID uuid.UUID) (*settlement.PaymentResult, error)
	MarkDelivered(ctx context.Context, orderID uuid.UUID, partnerID *uuid.UUID) (*settlement.Distribution, error)
	Reverse(ctx context.Context, orderID uuid.UUID, status enums.OrderStatus) (*ledger.Reversal, error)
}

type deliverRequest struct {
	DeliveryPartnerID *uuid.UUID `json:"deliveryPartnerId"`
}

type reverseRequest struct {
	Status string `json:"status" validate:"required,oneof=cancelled returned"`
}

// orderHandler parses the {orderId} route param, runs fn and writes its
// result in the success envelope.
func orderHandler[T any](logg *logger.Logger, fn func(r *http.Request, orderID uuid.UUID) (T, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := validators.ParseUUIDParam(r, "orderId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := fn(r, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// AdminOrderBreakdown returns the full commission breakdown of an order.
func AdminOrderBreakdown(svc orderReader, logg *logger.Logger) http.HandlerFunc {
	return orderHandler(logg, func(r *http.Request, orderID uuid.UUID) (*commission.Breakdown, error) {
		return svc.Breakdown(r.Context(), orderID)
	})
}

// AdminCommissionPreview returns the per-seller and delivery split of an order.
func AdminCommissionPreview(svc orderReader, logg *logger.Logger) http.HandlerFunc {
	return orderHandler(logg, func(r *http.Request, orderID uuid.UUID) (*commission.Preview, error) {
		return svc.Preview(r.Context(), orderID)
	})
}

func AdminMarkOrderPaid(svc orderLifecycle, logg *logger.Logger) http.HandlerFunc {
	return orderHandler(logg, func(r *http.Request, orderID uuid.UUID) (*settlement.PaymentResult, error) {
		return svc.MarkPaid(r.Context(), orderID)
	})
}

// AdminMarkOrderDelivered records delivery and distributes the order in the
// same unit of work. The body is optional.
func AdminMarkOrderDelivered(svc orderLifecycle, logg *logger.Logger) http.HandlerFunc {
	return orderHandler(logg, func(r *http.Request, orderID uuid.UUID) (*settlement.Distribution, error) {
		var body deliverRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				return nil, err
			}
		}
		return svc.MarkDelivered(r.Context(), orderID, body.DeliveryPartnerID)
	})
}

// AdminDistributeOrder re-runs distribution for an already delivered order.
func AdminDistributeOrder(svc orderLifecycle, logg *logger.Logger) http.HandlerFunc {
	return orderHandler(logg, func(r *http.Request, orderID uuid.UUID) (*settlement.Distribution, error) {
		return svc.DistributeOrder(r.Context(), orderID)
	})
}

func AdminReverseOrder(svc orderLifecycle, logg *logger.Logger) http.HandlerFunc {
	return orderHandler(logg, func(r *http.Request, orderID uuid.UUID) (*ledger.Reversal, error) {
		var body reverseRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			return nil, err
		}
		status, err := enums.ParseOrderStatus(body.Status)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status")
		}
		return svc.Reverse(r.Context(), orderID, status)
	})
}

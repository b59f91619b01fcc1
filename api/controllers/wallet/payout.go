package wallet

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/settlement-backend/api/responses"
	"github.com/angelmondragon/settlement-backend/api/validators"
	"github.com/angelmondragon/settlement-backend/internal/payouts"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
)

type payoutService interface {
	Create(ctx context.Context, partnerID uuid.UUID, amount decimal.Decimal) (*payouts.Intent, error)
	Verify(ctx context.Context, input payouts.VerifyInput) (*payouts.VerifyResult, error)
}

type payoutCreateRequest struct {
	Amount decimal.Decimal `json:"amount" validate:"money"`
}

type payoutVerifyRequest struct {
	PayoutID  uuid.UUID `json:"payoutId" validate:"required"`
	PaymentID string    `json:"paymentId" validate:"required,max=128"`
}

// PayoutCreate opens a remittance of COD cash from the delivery partner to
// the platform.
func PayoutCreate(svc payoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partnerID, err := party(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body payoutCreateRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		intent, err := svc.Create(r.Context(), partnerID, body.Amount)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, intent)
	}
}

// PayoutVerify confirms the provider captured the remittance and reconciles
// it against the partner's COD orders.
func PayoutVerify(svc payoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partnerID, err := party(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body payoutVerifyRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		result, err := svc.Verify(r.Context(), payouts.VerifyInput{
			PartnerID:         partnerID,
			PayoutID:          body.PayoutID,
			ProviderPaymentID: strings.TrimSpace(body.PaymentID),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

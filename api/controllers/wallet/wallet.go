// Package wallet serves the seller and delivery partner wallet endpoints.
// Every handler reads the party id from the bearer token; the party type is
// fixed by the route group.
package wallet

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/settlement-backend/api/middleware"
	"github.com/angelmondragon/settlement-backend/api/responses"
	"github.com/angelmondragon/settlement-backend/api/validators"
	walletsvc "github.com/angelmondragon/settlement-backend/internal/wallet"
	"github.com/angelmondragon/settlement-backend/internal/withdrawals"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/pagination"
	"github.com/angelmondragon/settlement-backend/pkg/types"
)

const maxRemarksLen = 500

type walletReader interface {
	Summary(ctx context.Context, partyType enums.PartyType, partyID uuid.UUID) (*walletsvc.Summary, error)
	ListTransactions(ctx context.Context, partyType enums.PartyType, partyID uuid.UUID, page pagination.Params) ([]models.WalletTransaction, int64, error)
}

type commissionLister interface {
	ListPartyCommissions(ctx context.Context, partyType enums.PartyType, partyID uuid.UUID, page pagination.Params) ([]models.Commission, int64, error)
}

type withdrawalService interface {
	Request(ctx context.Context, input withdrawals.RequestInput) (*models.WithdrawRequest, error)
	List(ctx context.Context, filter withdrawals.Filter, page pagination.Params) (*withdrawals.ListResult, error)
}

// Page is one page of a party listing.
type Page[T any] struct {
	Items      []T            `json:"items"`
	Pagination types.PageMeta `json:"pagination"`
}

func newPage[T any](items []T, total int64, page pagination.Params) Page[T] {
	page = page.Normalize()
	if items == nil {
		items = []T{}
	}
	return Page[T]{
		Items: items,
		Pagination: types.PageMeta{
			Page:       page.Page,
			Limit:      page.Limit,
			Total:      total,
			TotalPages: pagination.TotalPages(total, page.Limit),
		},
	}
}

type withdrawRequest struct {
	Amount         decimal.Decimal      `json:"amount" validate:"money"`
	PaymentMethod  string               `json:"paymentMethod" validate:"required,oneof='Bank Transfer' UPI"`
	AccountDetails types.AccountDetails `json:"accountDetails"`
	Remarks        *string              `json:"remarks" validate:"omitempty,max=500"`
}

func party(r *http.Request) (uuid.UUID, error) {
	partyID, ok := middleware.PartyIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "party id missing from token")
	}
	return partyID, nil
}

// Balance returns the caller's wallet position.
func Balance(svc walletReader, partyType enums.PartyType, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partyID, err := party(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		summary, err := svc.Summary(r.Context(), partyType, partyID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, summary)
	}
}

// Transactions lists the caller's wallet entries, newest first.
func Transactions(svc walletReader, partyType enums.PartyType, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partyID, err := party(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, total, err := svc.ListTransactions(r.Context(), partyType, partyID, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPage(rows, total, page))
	}
}

// Commissions lists the commission legs paid or owed to the caller.
func Commissions(svc commissionLister, partyType enums.PartyType, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partyID, err := party(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		rows, total, err := svc.ListPartyCommissions(r.Context(), partyType, partyID, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, newPage(rows, total, page))
	}
}

func Withdrawals(svc withdrawalService, partyType enums.PartyType, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partyID, err := party(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		filter := withdrawals.Filter{
			Status:   enums.WithdrawStatus(strings.TrimSpace(r.URL.Query().Get("status"))),
			UserType: partyType,
			UserID:   &partyID,
		}
		result, err := svc.List(r.Context(), filter, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// Withdraw opens a pending cash-out request against the caller's balance.
func Withdraw(svc withdrawalService, partyType enums.PartyType, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		partyID, err := party(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var body withdrawRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParseWithdrawPaymentMethod(body.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}
		if body.Remarks != nil {
			remarks := validators.SanitizeString(*body.Remarks, maxRemarksLen)
			body.Remarks = &remarks
		}
		request, err := svc.Request(r.Context(), withdrawals.RequestInput{
			UserID:         partyID,
			UserType:       partyType,
			Amount:         body.Amount,
			PaymentMethod:  method,
			AccountDetails: body.AccountDetails,
			Remarks:        body.Remarks,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, request)
	}
}

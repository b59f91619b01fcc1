package controllers

import (
	"context"
	"net/http"
	"strings"

	"github.com/angelmondragon/settlement-backend/api/middleware"
	"github.com/angelmondragon/settlement-backend/api/responses"
	"github.com/angelmondragon/settlement-backend/api/validators"
	"github.com/angelmondragon/settlement-backend/internal/withdrawals"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/pagination"
)

const maxRemarksLen = 500

type withdrawalAdmin interface {
	Approve(ctx context.Context, decision withdrawals.Decision) (*models.WithdrawRequest, error)
	Reject(ctx context.Context, decision withdrawals.Decision) (*models.WithdrawRequest, error)
	Complete(ctx context.Context, decision withdrawals.Decision) (*models.WithdrawRequest, error)
	List(ctx context.Context, filter withdrawals.Filter, page pagination.Params) (*withdrawals.ListResult, error)
}

type decisionRequest struct {
	Remarks              *string `json:"remarks" validate:"omitempty,max=500"`
	TransactionReference string  `json:"transactionReference" validate:"omitempty,max=128"`
}

// AdminWithdrawals lists withdrawal requests with the requesting party's name.
func AdminWithdrawals(svc withdrawalAdmin, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page, err := validators.ParsePage(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		query := r.URL.Query()
		filter := withdrawals.Filter{
			Status:   enums.WithdrawStatus(strings.TrimSpace(query.Get("status"))),
			UserType: enums.PartyType(strings.TrimSpace(query.Get("userType"))),
		}
		result, err := svc.List(r.Context(), filter, page)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

func AdminApproveWithdrawal(svc withdrawalAdmin, logg *logger.Logger) http.HandlerFunc {
	return adminDecision(svc.Approve, logg)
}

func AdminRejectWithdrawal(svc withdrawalAdmin, logg *logger.Logger) http.HandlerFunc {
	return adminDecision(svc.Reject, logg)
}

// AdminCompleteWithdrawal marks an approved request paid out. The body must
// carry the bank or UPI transaction reference.
func AdminCompleteWithdrawal(svc withdrawalAdmin, logg *logger.Logger) http.HandlerFunc {
	return adminDecision(svc.Complete, logg)
}

func adminDecision(apply func(context.Context, withdrawals.Decision) (*models.WithdrawRequest, error), logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		requestID, err := validators.ParseUUIDParam(r, "id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		adminID, ok := middleware.PartyIDFromContext(r.Context())
		if !ok {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "admin id missing from token"))
			return
		}
		var body decisionRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &body); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}
		if body.Remarks != nil {
			remarks := validators.SanitizeString(*body.Remarks, maxRemarksLen)
			body.Remarks = &remarks
		}
		result, err := apply(r.Context(), withdrawals.Decision{
			RequestID:            requestID,
			AdminID:              adminID,
			Remarks:              body.Remarks,
			TransactionReference: body.TransactionReference,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

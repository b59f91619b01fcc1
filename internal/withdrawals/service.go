package withdrawals

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

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
	"github.com/angelmondragon/settlement-backend/pkg/pagination"
	"github.com/angelmondragon/settlement-backend/pkg/types"
)

const opComplete = "withdrawal_complete"

var minimumWithdrawal = decimal.NewFromInt(1)

// RequestInput is a party's cash-out request.
type RequestInput struct {
	UserID         uuid.UUID
	UserType       enums.PartyType
	Amount         decimal.Decimal
	PaymentMethod  enums.WithdrawPaymentMethod
	AccountDetails types.AccountDetails
	Remarks        *string
}

// Decision is an admin action on a request.
type Decision struct {
	RequestID            uuid.UUID
	AdminID              uuid.UUID
	Remarks              *string
	TransactionReference string
}

// ListResult is one page of withdrawal requests.
type ListResult struct {
	Items      []WithdrawalView `json:"items"`
	Pagination types.PageMeta   `json:"pagination"`
}

// Service runs the withdrawal lifecycle: pending, then approved or rejected,
// then completed. Only completion moves money.
type Service interface {
	Request(ctx context.Context, input RequestInput) (*models.WithdrawRequest, error)
	Approve(ctx context.Context, decision Decision) (*models.WithdrawRequest, error)
	Reject(ctx context.Context, decision Decision) (*models.WithdrawRequest, error)
	Complete(ctx context.Context, decision Decision) (*models.WithdrawRequest, error)
	List(ctx context.Context, filter Filter, page pagination.Params) (*ListResult, error)
}

// Deps groups the collaborators of the withdrawal service.
type Deps struct {
	DB       *db.Client
	Repo     Repository
	Wallets  wallet.Ledger
	Platform platformwallet.Service
	Outbox   outbox.Emitter
	Metrics  *metrics.SettlementMetrics
	Logger   *logger.Logger
}

type service struct {
	db       *db.Client
	repo     Repository
	wallets  wallet.Ledger
	platform platformwallet.Service
	outbox   outbox.Emitter
	metrics  *metrics.SettlementMetrics
	logg     *logger.Logger
	now      func() time.Time
}

// NewService wires the withdrawal lifecycle manager.
func NewService(deps Deps) (Service, error) {
	switch {
	case deps.DB == nil:
		return nil, fmt.Errorf("db client required")
	case deps.Repo == nil:
		return nil, fmt.Errorf("withdrawal repository required")
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
		db:       deps.DB,
		repo:     deps.Repo,
		wallets:  deps.Wallets,
		platform: deps.Platform,
		outbox:   deps.Outbox,
		metrics:  deps.Metrics,
		logg:     deps.Logger,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *service) Request(ctx context.Context, input RequestInput) (*models.WithdrawRequest, error) {
	if input.UserID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	if !input.UserType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid user type %q", input.UserType))
	}
	amount := money.Round2(input.Amount)
	if amount.LessThan(minimumWithdrawal) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "minimum withdrawal amount is 1")
	}
	if err := validateDestination(input.PaymentMethod, input.AccountDetails); err != nil {
		return nil, err
	}

	balance, err := s.wallets.Balance(ctx, input.UserType, input.UserID)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(balance) {
		return nil, pkgerrors.InsufficientFunds(balance, amount)
	}

	request := &models.WithdrawRequest{
		UserID:         input.UserID,
		UserType:       input.UserType,
		Amount:         amount,
		Status:         enums.WithdrawStatusPending,
		PaymentMethod:  input.PaymentMethod,
		AccountDetails: input.AccountDetails,
		Remarks:        trimmed(input.Remarks),
	}
	if err := s.repo.Create(ctx, request); err != nil {
		return nil, err
	}

	logCtx := s.logg.WithParty(ctx, string(request.UserType), request.UserID)
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"withdraw_request_id": request.ID,
		"amount":              amount,
	})
	s.logg.Info(logCtx, "withdrawal requested")
	return request, nil
}

func validateDestination(method enums.WithdrawPaymentMethod, details types.AccountDetails) error {
	switch method {
	case enums.WithdrawMethodBankTransfer:
		if !details.HasBankAccount() {
			return pkgerrors.New(pkgerrors.CodeValidation, "bank transfer requires account holder name, account number and IFSC code")
		}
	case enums.WithdrawMethodUPI:
		if !details.HasUPI() {
			return pkgerrors.New(pkgerrors.CodeValidation, "UPI withdrawal requires a UPI id")
		}
	default:
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("unsupported payment method %q", method))
	}
	return nil
}

func (s *service) Approve(ctx context.Context, decision Decision) (*models.WithdrawRequest, error) {
	return s.decide(ctx, decision, enums.WithdrawStatusPending, enums.WithdrawStatusApproved, "approve")
}

func (s *service) Reject(ctx context.Context, decision Decision) (*models.WithdrawRequest, error) {
	return s.decide(ctx, decision, enums.WithdrawStatusPending, enums.WithdrawStatusRejected, "reject")
}

func (s *service) decide(ctx context.Context, decision Decision, from, to enums.WithdrawStatus, action string) (*models.WithdrawRequest, error) {
	var out *models.WithdrawRequest
	err := s.db.WithTx(ctx, func(tx db.Tx) error {
		request, err := s.lock(ctx, tx, decision.RequestID)
		if err != nil {
			return err
		}
		if request.Status != from {
			return pkgerrors.InvalidTransition("withdrawal request", request.Status, action)
		}
		now := s.now()
		updates := map[string]any{
			"status":       to,
			"processed_by": decision.AdminID,
			"processed_at": now,
		}
		if remarks := trimmed(decision.Remarks); remarks != nil {
			updates["remarks"] = *remarks
			request.Remarks = remarks
		}
		if err := s.transition(ctx, tx, request, from, updates, action); err != nil {
			return err
		}
		request.Status = to
		request.ProcessedBy = &decision.AdminID
		request.ProcessedAt = &now
		out = request
		return nil
	})
	if err != nil {
		return nil, err
	}
	logCtx := s.logg.WithFields(ctx, map[string]any{
		"withdraw_request_id": out.ID.String(),
		"status":              out.Status,
	})
	s.logg.Info(logCtx, "withdrawal request "+string(out.Status))
	return out, nil
}

func (s *service) Complete(ctx context.Context, decision Decision) (out *models.WithdrawRequest, err error) {
	defer s.metrics.Track(opComplete, &err)()

	reference := strings.TrimSpace(decision.TransactionReference)
	if reference == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction reference is required")
	}

	err = s.db.WithTx(ctx, func(tx db.Tx) error {
		request, err := s.lock(ctx, tx, decision.RequestID)
		if err != nil {
			return err
		}
		if request.Status != enums.WithdrawStatusApproved {
			return pkgerrors.InvalidTransition("withdrawal request", request.Status, "complete")
		}
		amount := money.Round2(request.Amount)

		if _, err := s.wallets.Debit(ctx, tx, wallet.Entry{
			PartyID:      request.UserID,
			PartyType:    request.UserType,
			Amount:       amount,
			Description:  "Withdrawal via " + string(request.PaymentMethod) + " (" + reference + ")",
			Reference:    "WDR-" + request.ID.String(),
			RequireFunds: true,
		}); err != nil {
			return err
		}

		delta := platformwallet.Delta{CurrentPlatformBalance: amount.Neg()}
		if request.UserType == enums.PartyDeliveryBoy {
			delta.DeliveryBoyPendingPayouts = amount.Neg()
		} else {
			delta.SellerPendingPayouts = amount.Neg()
		}
		if err := s.platform.Apply(ctx, tx, delta); err != nil {
			return err
		}

		now := s.now()
		updates := map[string]any{
			"status":                enums.WithdrawStatusCompleted,
			"transaction_reference": reference,
			"processed_by":          decision.AdminID,
			"processed_at":          now,
		}
		if remarks := trimmed(decision.Remarks); remarks != nil {
			updates["remarks"] = *remarks
			request.Remarks = remarks
		}
		if err := s.transition(ctx, tx, request, enums.WithdrawStatusApproved, updates, "complete"); err != nil {
			return err
		}

		if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventWithdrawalCompleted,
			AggregateType: enums.AggregateWithdrawRequest,
			AggregateID:   request.ID,
			Actor:         &outbox.ActorRef{UserID: decision.AdminID, Role: enums.RoleAdmin},
			Data: payloads.WithdrawalCompletedEvent{
				WithdrawRequestID:    request.ID,
				UserID:               request.UserID,
				UserType:             request.UserType,
				Amount:               amount,
				TransactionReference: reference,
			},
		}); err != nil {
			return fmt.Errorf("emit withdrawal completed: %w", err)
		}

		request.Status = enums.WithdrawStatusCompleted
		request.TransactionReference = &reference
		request.ProcessedBy = &decision.AdminID
		request.ProcessedAt = &now
		out = request
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.metrics.AddAmount(opComplete, string(out.UserType), out.Amount)
	logCtx := s.logg.WithParty(ctx, string(out.UserType), out.UserID)
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"withdraw_request_id": out.ID,
		"amount":              out.Amount,
	})
	s.logg.Info(logCtx, "withdrawal completed")
	return out, nil
}

func (s *service) List(ctx context.Context, filter Filter, page pagination.Params) (*ListResult, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid status %q", filter.Status))
	}
	if filter.UserType != "" && !filter.UserType.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid user type %q", filter.UserType))
	}
	page = page.Normalize()
	rows, total, err := s.repo.List(ctx, filter, page)
	if err != nil {
		return nil, err
	}
	if rows == nil {
		rows = []WithdrawalView{}
	}
	return &ListResult{
		Items: rows,
		Pagination: types.PageMeta{
			Page:       page.Page,
			Limit:      page.Limit,
			Total:      total,
			TotalPages: pagination.TotalPages(total, page.Limit),
		},
	}, nil
}

func (s *service) lock(ctx context.Context, tx db.Tx, id uuid.UUID) (*models.WithdrawRequest, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "withdrawal request id is required")
	}
	request, err := s.repo.WithTx(tx.DB()).FindByIDForUpdate(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeNotFound, err, "withdrawal request not found")
		}
		return nil, err
	}
	return request, nil
}

func (s *service) transition(ctx context.Context, tx db.Tx, request *models.WithdrawRequest, from enums.WithdrawStatus, updates map[string]any, action string) error {
	ok, err := s.repo.WithTx(tx.DB()).Transition(ctx, request.ID, from, updates)
	if err != nil {
		return err
	}
	if !ok {
		current, err := s.repo.WithTx(tx.DB()).FindByID(ctx, request.ID)
		if err != nil {
			return err
		}
		return pkgerrors.InvalidTransition("withdrawal request", current.Status, action)
	}
	return nil
}

func trimmed(value *string) *string {
	if value == nil {
		return nil
	}
	v := strings.TrimSpace(*value)
	if v == "" {
		return nil
	}
	return &v
}

package wallet

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/settlement-backend/internal/catalog"
	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/db/models"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/settlement-backend/pkg/errors"
	"github.com/angelmondragon/settlement-backend/pkg/logger"
	"github.com/angelmondragon/settlement-backend/pkg/money"
	"github.com/angelmondragon/settlement-backend/pkg/pagination"
)

// Entry describes one wallet movement. Reference must be unique across the
// ledger; a stable reference makes a replayed movement fail instead of
// applying twice. An empty reference is generated.
type Entry struct {
	PartyID             uuid.UUID
	PartyType           enums.PartyType
	Amount              decimal.Decimal
	Description         string
	RelatedOrderID      *uuid.UUID
	RelatedCommissionID *uuid.UUID
	Reference           string
	// RequireFunds rejects a debit that would overdraw the balance.
	RequireFunds bool
}

// Ledger credits and debits party wallets. Every movement updates the party
// balance and appends one WalletTransaction inside the caller's transaction.
type Ledger interface {
	Credit(ctx context.Context, tx db.Tx, entry Entry) (decimal.Decimal, error)
	Debit(ctx context.Context, tx db.Tx, entry Entry) (decimal.Decimal, error)
	HasEntry(ctx context.Context, tx db.Tx, query EntryQuery) (bool, error)
	Balance(ctx context.Context, partyType enums.PartyType, partyID uuid.UUID) (decimal.Decimal, error)
	Summary(ctx context.Context, partyType enums.PartyType, partyID uuid.UUID) (*Summary, error)
	ListTransactions(ctx context.Context, partyType enums.PartyType, partyID uuid.UUID, page pagination.Params) ([]models.WalletTransaction, int64, error)
}

// Summary is a party's wallet position. The cash-on-delivery fields are only
// set for delivery partners.
type Summary struct {
	PartyID            uuid.UUID        `json:"partyId"`
	PartyType          enums.PartyType  `json:"partyType"`
	Balance            decimal.Decimal  `json:"balance"`
	PendingAdminPayout *decimal.Decimal `json:"pendingAdminPayout,omitempty"`
	CashCollected      *decimal.Decimal `json:"cashCollected,omitempty"`
}

type service struct {
	repo     Repository
	sellers  catalog.SellerRepository
	delivery catalog.DeliveryRepository
	logg     *logger.Logger
}

// NewService wires the wallet ledger over the transaction and party repositories.
func NewService(repo Repository, sellers catalog.SellerRepository, delivery catalog.DeliveryRepository, logg *logger.Logger) (Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if sellers == nil {
		return nil, fmt.Errorf("seller repository required")
	}
	if delivery == nil {
		return nil, fmt.Errorf("delivery repository required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, sellers: sellers, delivery: delivery, logg: logg}, nil
}

func (s *service) Credit(ctx context.Context, tx db.Tx, entry Entry) (decimal.Decimal, error) {
	return s.move(ctx, tx, entry, enums.WalletCredit)
}

func (s *service) Debit(ctx context.Context, tx db.Tx, entry Entry) (decimal.Decimal, error) {
	return s.move(ctx, tx, entry, enums.WalletDebit)
}

func (s *service) move(ctx context.Context, tx db.Tx, entry Entry, kind enums.WalletTransactionType) (decimal.Decimal, error) {
	if !tx.Valid() {
		return decimal.Zero, fmt.Errorf("wallet %s requires a transaction", kind)
	}
	if entry.PartyID == uuid.Nil {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "party id is required")
	}
	if !entry.PartyType.IsValid() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid party type %q", entry.PartyType))
	}
	amount := money.Round2(entry.Amount)
	if !amount.IsPositive() {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "amount must be greater than zero")
	}
	if strings.TrimSpace(entry.Description) == "" {
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, "description is required")
	}

	delta := amount
	if kind == enums.WalletDebit {
		delta = amount.Neg()
	}

	var (
		balance decimal.Decimal
		err     error
	)
	switch entry.PartyType {
	case enums.PartySeller:
		balance, err = s.sellers.WithTx(tx.DB()).AdjustBalance(ctx, entry.PartyID, delta, entry.RequireFunds)
	case enums.PartyDeliveryBoy:
		balance, err = s.delivery.WithTx(tx.DB()).AdjustBalance(ctx, entry.PartyID, delta, entry.RequireFunds)
	}
	if err != nil {
		return decimal.Zero, err
	}

	reference := entry.Reference
	if reference == "" {
		reference = "TXN-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:16])
	}
	row := &models.WalletTransaction{
		UserID:              entry.PartyID,
		UserType:            entry.PartyType,
		Amount:              amount,
		Type:                kind,
		Description:         entry.Description,
		Reference:           reference,
		RelatedOrderID:      entry.RelatedOrderID,
		RelatedCommissionID: entry.RelatedCommissionID,
		BalanceAfter:        balance,
	}
	if err := s.repo.WithTx(tx.DB()).Create(ctx, row); err != nil {
		if db.IsUniqueViolation(err, "") {
			return decimal.Zero, pkgerrors.Wrap(pkgerrors.CodeConflict, err, "wallet movement already recorded")
		}
		return decimal.Zero, err
	}

	logCtx := s.logg.WithParty(ctx, string(entry.PartyType), entry.PartyID)
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"operation_id": tx.OperationID(),
		"type":         kind,
		"amount":       amount,
		"reference":    reference,
	})
	s.logg.Info(logCtx, "wallet movement recorded")
	return balance, nil
}

func (s *service) HasEntry(ctx context.Context, tx db.Tx, query EntryQuery) (bool, error) {
	r := s.repo
	if tx.Valid() {
		r = r.WithTx(tx.DB())
	}
	return r.Exists(ctx, query)
}

func (s *service) Balance(ctx context.Context, partyType enums.PartyType, partyID uuid.UUID) (decimal.Decimal, error) {
	switch partyType {
	case enums.PartySeller:
		seller, err := s.sellers.FindByID(ctx, partyID)
		if err != nil {
			return decimal.Zero, notFound(err, "seller")
		}
		return money.Round2(seller.Balance), nil
	case enums.PartyDeliveryBoy:
		partner, err := s.delivery.FindByID(ctx, partyID)
		if err != nil {
			return decimal.Zero, notFound(err, "delivery partner")
		}
		return money.Round2(partner.Balance), nil
	default:
		return decimal.Zero, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid party type %q", partyType))
	}
}

func (s *service) Summary(ctx context.Context, partyType enums.PartyType, partyID uuid.UUID) (*Summary, error) {
	if partyType != enums.PartyDeliveryBoy {
		balance, err := s.Balance(ctx, partyType, partyID)
		if err != nil {
			return nil, err
		}
		return &Summary{PartyID: partyID, PartyType: partyType, Balance: balance}, nil
	}
	partner, err := s.delivery.FindByID(ctx, partyID)
	if err != nil {
		return nil, notFound(err, "delivery partner")
	}
	pending := money.Round2(partner.PendingAdminPayout)
	cash := money.Round2(partner.CashCollected)
	return &Summary{
		PartyID:            partyID,
		PartyType:          partyType,
		Balance:            money.Round2(partner.Balance),
		PendingAdminPayout: &pending,
		CashCollected:      &cash,
	}, nil
}

func (s *service) ListTransactions(ctx context.Context, partyType enums.PartyType, partyID uuid.UUID, page pagination.Params) ([]models.WalletTransaction, int64, error) {
	if !partyType.IsValid() {
		return nil, 0, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid party type %q", partyType))
	}
	return s.repo.ListByParty(ctx, partyType, partyID, page)
}

func notFound(err error, entity string) error {
	if db.IsNotFound(err) {
		return pkgerrors.Wrap(pkgerrors.CodeNotFound, err, entity+" not found")
	}
	return err
}

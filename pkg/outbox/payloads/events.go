package payloads

import (
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

// PartyAmount is one wallet movement carried in an event.
type PartyAmount struct {
	PartyID   uuid.UUID       `json:"party_id"`
	PartyType enums.PartyType `json:"party_type"`
	Amount    decimal.Decimal `json:"amount"`
}

// CommissionsCreatedEvent is emitted when an online-paid order is billed.
type CommissionsCreatedEvent struct {
	OrderID       uuid.UUID     `json:"order_id"`
	OrderNumber   string        `json:"order_number"`
	CommissionIDs []uuid.UUID   `json:"commission_ids"`
	SellerCredits []PartyAmount `json:"seller_credits"`
}

// OrderDistributedEvent reports the wallet credits of a delivered order.
type OrderDistributedEvent struct {
	OrderID        uuid.UUID     `json:"order_id"`
	OrderNumber    string        `json:"order_number"`
	SellerCredits  []PartyAmount `json:"seller_credits"`
	DeliveryCredit *PartyAmount  `json:"delivery_credit,omitempty"`
}

// CODDeliveryProcessedEvent reports the cash position after a COD handover.
type CODDeliveryProcessedEvent struct {
	OrderID           uuid.UUID       `json:"order_id"`
	OrderNumber       string          `json:"order_number"`
	DeliveryPartnerID uuid.UUID       `json:"delivery_partner_id"`
	CashCollected     decimal.Decimal `json:"cash_collected"`
	PartnerCut        decimal.Decimal `json:"partner_cut"`
	OwedToPlatform    decimal.Decimal `json:"owed_to_platform"`
}

// CODPayoutReconciledEvent reports which COD orders a remittance settled.
type CODPayoutReconciledEvent struct {
	DeliveryPartnerID uuid.UUID       `json:"delivery_partner_id"`
	PayoutID          *uuid.UUID      `json:"payout_id,omitempty"`
	Amount            decimal.Decimal `json:"amount"`
	OrdersProcessed   int             `json:"orders_processed"`
	SettledOrderIDs   []uuid.UUID     `json:"settled_order_ids"`
	RemainingAmount   decimal.Decimal `json:"remaining_amount"`
}

// CommissionsReversedEvent is emitted when a cancel or return claws back credits.
type CommissionsReversedEvent struct {
	OrderID       uuid.UUID         `json:"order_id"`
	OrderNumber   string            `json:"order_number"`
	Status        enums.OrderStatus `json:"status"`
	CommissionIDs []uuid.UUID       `json:"commission_ids"`
	Debits        []PartyAmount     `json:"debits"`
}

// WithdrawalCompletedEvent is emitted when a payout to a party is recorded.
type WithdrawalCompletedEvent struct {
	WithdrawRequestID    uuid.UUID       `json:"withdraw_request_id"`
	UserID               uuid.UUID       `json:"user_id"`
	UserType             enums.PartyType `json:"user_type"`
	Amount               decimal.Decimal `json:"amount"`
	TransactionReference string          `json:"transaction_reference"`
}

package enums

import "fmt"

// OutboxAggregateType names the entity an outbox event is about.
type OutboxAggregateType string

const (
	AggregateOrder           OutboxAggregateType = "order"
	AggregateDeliveryPartner OutboxAggregateType = "delivery_partner"
	AggregateWithdrawRequest OutboxAggregateType = "withdraw_request"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateOrder,
	AggregateDeliveryPartner,
	AggregateWithdrawRequest,
}

// IsValid reports whether the value is a known aggregate type.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType names a ledger event published to downstream consumers.
type OutboxEventType string

const (
	EventCommissionsCreated   OutboxEventType = "commissions_created"
	EventOrderDistributed     OutboxEventType = "order_distributed"
	EventCODDeliveryProcessed OutboxEventType = "cod_delivery_processed"
	EventCODPayoutReconciled  OutboxEventType = "cod_payout_reconciled"
	EventCommissionsReversed  OutboxEventType = "commissions_reversed"
	EventWithdrawalCompleted  OutboxEventType = "withdrawal_completed"
)

var validEventTypes = []OutboxEventType{
	EventCommissionsCreated,
	EventOrderDistributed,
	EventCODDeliveryProcessed,
	EventCODPayoutReconciled,
	EventCommissionsReversed,
	EventWithdrawalCompleted,
}

// IsValid reports whether the value is a known event type.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}

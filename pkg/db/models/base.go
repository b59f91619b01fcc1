package models

import "github.com/google/uuid"

func assignID(id *uuid.UUID) {
	if *id == uuid.Nil {
		*id = uuid.New()
	}
}

// All lists every persisted model, in dependency order, for SQLite
// auto-migration in development and tests. Postgres uses goose migrations.
func All() []any {
	return []any{
		&AppSetting{},
		&Category{},
		&Seller{},
		&DeliveryPartner{},
		&Product{},
		&Order{},
		&OrderItem{},
		&Commission{},
		&WalletTransaction{},
		&PlatformWallet{},
		&WithdrawRequest{},
		&PayoutPayment{},
		&OutboxEvent{},
	}
}

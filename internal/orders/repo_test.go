package orders

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/settlement-backend/pkg/db"
	"github.com/angelmondragon/settlement-backend/pkg/db/dbtest"
	"github.com/angelmondragon/settlement-backend/pkg/enums"
)

func TestFindByIDLoadsItems(t *testing.T) {
	conn := dbtest.Open(t)
	seller := dbtest.Seller(t, conn, "0")
	product := dbtest.Product(t, conn, seller.ID, nil, nil, nil)
	order := dbtest.Order(t, conn, dbtest.OrderFixture{Items: []dbtest.Item{{Product: product, Total: "100"}, {Product: product, Total: "40"}}})
	r := NewRepository(conn)
	ctx := context.Background()

	got, err := r.FindByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Len(t, got.Items, 2)
	assert.Equal(t, "140.00", got.Subtotal.Round(2).StringFixed(2))

	client := db.NewFromConn(conn, dbtest.Logger())
	require.NoError(t, client.WithTx(ctx, func(tx db.Tx) error {
		locked, err := r.WithTx(tx.DB()).FindByIDForUpdate(ctx, order.ID)
		require.NoError(t, err)
		assert.Len(t, locked.Items, 2)
		return nil
	}))

	_, err = r.FindByID(ctx, uuid.New())
	assert.True(t, db.IsNotFound(err))
}

func TestFreezeItemRatesKeepsExisting(t *testing.T) {
	conn := dbtest.Open(t)
	seller := dbtest.Seller(t, conn, "0")
	product := dbtest.Product(t, conn, seller.ID, nil, nil, nil)
	order := dbtest.Order(t, conn, dbtest.OrderFixture{Items: []dbtest.Item{
		{Product: product, Total: "100", Rate: "12"},
		{Product: product, Total: "50"},
	}})
	r := NewRepository(conn)
	ctx := context.Background()

	err := r.FreezeItemRates(ctx, map[uuid.UUID]decimal.Decimal{
		order.Items[0].ID: dbtest.D("30"),
		order.Items[1].ID: dbtest.D("8"),
	})
	require.NoError(t, err)

	got, err := r.FindByID(ctx, order.ID)
	require.NoError(t, err)
	rates := map[uuid.UUID]string{}
	for _, item := range got.Items {
		require.NotNil(t, item.CommissionRate)
		rates[item.ID] = item.CommissionRate.StringFixed(2)
	}
	assert.Equal(t, "12.00", rates[order.Items[0].ID])
	assert.Equal(t, "8.00", rates[order.Items[1].ID])
}

func TestUpdateMissingOrder(t *testing.T) {
	conn := dbtest.Open(t)
	r := NewRepository(conn)
	err := r.Update(context.Background(), uuid.New(), map[string]any{"status": enums.OrderStatusDelivered})
	assert.True(t, db.IsNotFound(err))
}

package marketplace

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanonicalOrder(t *testing.T) {
	all := All()
	require.Len(t, all, 6)
	assert.Equal(t, Ebay, all[0])
	assert.Equal(t, Mercari, all[5])
	assert.True(t, Amazon.Valid())
	assert.False(t, Marketplace("bonanza").Valid())
}

func TestRegistryLookup(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewMockAdapter(Ebay))
	reg.Register(NewMockAdapter(Amazon))

	a, err := reg.Get(Ebay)
	require.NoError(t, err)
	assert.Equal(t, Ebay, a.Marketplace())

	_, err = reg.Get(Etsy)
	require.Error(t, err)
	var unavailable *ErrAdapterUnavailable
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, Etsy, unavailable.Marketplace)
	assert.Contains(t, err.Error(), "ADAPTER_UNAVAILABLE")
}

func TestRegistryMarketplacesCanonical(t *testing.T) {
	reg := NewRegistry()
	reg.Register(NewMockAdapter(Mercari))
	reg.Register(NewMockAdapter(Ebay))

	assert.Equal(t, []Marketplace{Ebay, Mercari}, reg.Marketplaces())
}

func TestMockSyncInventoryBatch(t *testing.T) {
	a := NewMockAdapter(Ebay)
	results, err := a.SyncInventoryBatch(context.Background(), []InventoryUpdate{
		{SKU: "SKU-1", Quantity: 5, Price: decimal.NewFromFloat(19.99)},
		{SKU: "SKU-2", Quantity: 3, Price: decimal.NewFromFloat(9.99)},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.True(t, results[0].Success)

	stored, ok := a.Inventory("SKU-1")
	require.True(t, ok)
	assert.Equal(t, 5, stored.Quantity)
}

func TestMockSyncFailure(t *testing.T) {
	a := NewMockAdapter(Walmart)
	a.FailSync = true

	_, err := a.SyncInventoryBatch(context.Background(), []InventoryUpdate{{SKU: "SKU-1"}})
	assert.Error(t, err)
}

func TestMockFetchDrainsOrders(t *testing.T) {
	a := NewMockAdapter(Ebay)
	a.SeedOrder(NewSeededOrder("1001", 45.00))

	orders, cursor, err := a.FetchOrdersSince(context.Background(), "seller-1", "")
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, Ebay, orders[0].Marketplace)
	assert.Empty(t, cursor)

	orders, _, err = a.FetchOrdersSince(context.Background(), "seller-1", "")
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestMockQuoteShipment(t *testing.T) {
	a := NewMockAdapter(Ebay)
	quotes, err := a.QuoteShipment(context.Background(), ShipmentQuoteRequest{
		Origin:      "94105",
		Destination: "10001",
		WeightOz:    16,
	})
	require.NoError(t, err)
	require.Len(t, quotes, 3)
	// rates rise with service speed
	assert.True(t, quotes[0].Amount.LessThan(quotes[2].Amount))
	assert.Less(t, quotes[2].EstimatedDays, quotes[0].EstimatedDays)
}

func TestMockCancelledContext(t *testing.T) {
	a := NewMockAdapter(Ebay)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := a.FetchOrdersSince(ctx, "seller-1", "")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = a.SyncInventoryBatch(ctx, nil)
	assert.ErrorIs(t, err, context.Canceled)
}

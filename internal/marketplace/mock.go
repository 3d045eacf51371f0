package marketplace

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// MockAdapter is an in-memory adapter used in tests and local development.
// Behavior is scripted per call through the Fail* switches.
type MockAdapter struct {
	mu sync.Mutex

	marketplace Marketplace
	orders      []OrderRaw
	inventory   map[string]InventoryUpdate
	fulfilled   map[string]string // orderRef -> tracking

	FailSync        bool
	FailFulfillment bool
	FailQuotes      bool
	SyncCalls       int
	FetchCalls      int
}

// NewMockAdapter creates a mock adapter for the given marketplace
func NewMockAdapter(m Marketplace) *MockAdapter {
	return &MockAdapter{
		marketplace: m,
		inventory:   make(map[string]InventoryUpdate),
		fulfilled:   make(map[string]string),
	}
}

// Marketplace returns the channel this adapter serves
func (a *MockAdapter) Marketplace() Marketplace { return a.marketplace }

// SeedOrder queues a raw order for the next FetchOrdersSince call
func (a *MockAdapter) SeedOrder(o OrderRaw) {
	a.mu.Lock()
	defer a.mu.Unlock()
	o.Marketplace = a.marketplace
	a.orders = append(a.orders, o)
}

// FetchOrdersSince drains and returns the seeded orders
func (a *MockAdapter) FetchOrdersSince(ctx context.Context, sellerID, cursor string) ([]OrderRaw, string, error) {
	if err := ctx.Err(); err != nil {
		return nil, "", err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.FetchCalls++
	out := a.orders
	a.orders = nil
	return out, "", nil
}

// SyncInventoryBatch applies the updates to the in-memory listing table
func (a *MockAdapter) SyncInventoryBatch(ctx context.Context, updates []InventoryUpdate) ([]UpdateResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.SyncCalls++

	if a.FailSync {
		return nil, fmt.Errorf("%s adapter unavailable", a.marketplace)
	}

	results := make([]UpdateResult, 0, len(updates))
	for _, u := range updates {
		a.inventory[u.SKU] = u
		results = append(results, UpdateResult{SKU: u.SKU, Success: true})
	}
	return results, nil
}

// PostFulfillment records the tracking number for an order reference
func (a *MockAdapter) PostFulfillment(ctx context.Context, orderRef, trackingNumber, carrier string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.FailFulfillment {
		return fmt.Errorf("%s fulfillment endpoint unavailable", a.marketplace)
	}
	a.fulfilled[orderRef] = trackingNumber
	return nil
}

// QuoteShipment returns deterministic rates scaled by weight
func (a *MockAdapter) QuoteShipment(ctx context.Context, req ShipmentQuoteRequest) ([]ShipmentQuote, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.FailQuotes {
		return nil, fmt.Errorf("%s rating endpoint unavailable", a.marketplace)
	}

	perOz := decimal.NewFromFloat(0.12)
	weight := decimal.NewFromFloat(req.WeightOz)
	base := perOz.Mul(weight)
	return []ShipmentQuote{
		{Carrier: "USPS", Service: "Ground Advantage", Amount: base.Add(decimal.NewFromFloat(4.50)), EstimatedDays: 5},
		{Carrier: "UPS", Service: "Ground", Amount: base.Add(decimal.NewFromFloat(6.75)), EstimatedDays: 4},
		{Carrier: "FedEx", Service: "2Day", Amount: base.Add(decimal.NewFromFloat(12.20)), EstimatedDays: 2},
	}, nil
}

// Inventory returns the listing state for a SKU, for test assertions
func (a *MockAdapter) Inventory(sku string) (InventoryUpdate, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	u, ok := a.inventory[sku]
	return u, ok
}

// Fulfilled returns the recorded tracking number for an order reference
func (a *MockAdapter) Fulfilled(orderRef string) (string, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	tr, ok := a.fulfilled[orderRef]
	return tr, ok
}

// NewSeededOrder builds a plausible raw order for tests
func NewSeededOrder(id string, total float64) OrderRaw {
	return OrderRaw{
		MarketplaceOrderID: id,
		SellerID:           "seller-1",
		BuyerName:          "Test Buyer",
		Items: []OrderItemRaw{
			{SKU: "SKU-" + id, Quantity: 1, UnitPrice: decimal.NewFromFloat(total)},
		},
		OrderTotal: decimal.NewFromFloat(total),
		Fees:       decimal.NewFromFloat(total * 0.1).Round(2),
		CreatedAt:  time.Now().UTC(),
	}
}

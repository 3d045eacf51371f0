// Package marketplace defines the adapter contract FlipSync uses to talk to
// external marketplaces, the raw order and inventory types crossing that
// boundary, and an adapter registry.
package marketplace

import (
	"time"

	"github.com/shopspring/decimal"
)

// Marketplace identifies a supported sales channel
type Marketplace string

const (
	Ebay     Marketplace = "ebay"
	Amazon   Marketplace = "amazon"
	Walmart  Marketplace = "walmart"
	Etsy     Marketplace = "etsy"
	Facebook Marketplace = "facebook"
	Mercari  Marketplace = "mercari"
)

// All returns every supported marketplace in canonical order. Remainder
// assignment during rebalancing depends on this ordering.
func All() []Marketplace {
	return []Marketplace{Ebay, Amazon, Walmart, Etsy, Facebook, Mercari}
}

// Valid reports whether m names a supported marketplace
func (m Marketplace) Valid() bool {
	for _, known := range All() {
		if m == known {
			return true
		}
	}
	return false
}

// SyncStatus tracks the progress of an inventory sync entry
type SyncStatus string

const (
	SyncPending    SyncStatus = "pending"
	SyncInProgress SyncStatus = "in_progress"
	SyncCompleted  SyncStatus = "completed"
	SyncFailed     SyncStatus = "failed"
	SyncPartial    SyncStatus = "partial"
)

// InventoryEntry is one SKU's listing state on one marketplace
type InventoryEntry struct {
	Marketplace Marketplace     `json:"marketplace"`
	SKU         string          `json:"sku"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
	ListingID   string          `json:"listing_id,omitempty"`
	Status      string          `json:"status,omitempty"`
	LastUpdated time.Time       `json:"last_updated"`
	SyncStatus  SyncStatus      `json:"sync_status"`
}

// InventoryUpdate is the per-SKU payload pushed to an adapter
type InventoryUpdate struct {
	SKU        string          `json:"sku"`
	Quantity   int             `json:"quantity"`
	Price      decimal.Decimal `json:"price"`
	ListingRef string          `json:"listing_ref,omitempty"`
}

// UpdateResult is the per-SKU outcome of a batch sync
type UpdateResult struct {
	SKU     string `json:"sku"`
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// OrderRaw is an order exactly as an adapter reports it, before unification
type OrderRaw struct {
	MarketplaceOrderID string          `json:"marketplace_order_id"`
	Marketplace        Marketplace     `json:"marketplace"`
	SellerID           string          `json:"seller_id"`
	BuyerName          string          `json:"buyer_name,omitempty"`
	BuyerEmail         string          `json:"buyer_email,omitempty"`
	Items              []OrderItemRaw  `json:"items"`
	ShippingAddress    string          `json:"shipping_address,omitempty"`
	OrderTotal         decimal.Decimal `json:"order_total"`
	Fees               decimal.Decimal `json:"fees"`
	CreatedAt          time.Time       `json:"created_at"`
}

// OrderItemRaw is one line of a raw marketplace order
type OrderItemRaw struct {
	SKU       string          `json:"sku"`
	Title     string          `json:"title,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// ShipmentQuoteRequest asks adapters for carrier rates
type ShipmentQuoteRequest struct {
	Origin       string   `json:"origin"`
	Destination  string   `json:"destination"`
	WeightOz     float64  `json:"weight_oz"`
	Dimensions   [3]float64 `json:"dimensions"`
	ServicePrefs []string `json:"service_prefs,omitempty"`
}

// ShipmentQuote is one carrier/service rate offer
type ShipmentQuote struct {
	Carrier       string          `json:"carrier"`
	Service       string          `json:"service"`
	Amount        decimal.Decimal `json:"amount"`
	EstimatedDays int             `json:"estimated_days"`
}

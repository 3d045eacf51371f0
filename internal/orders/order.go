// Package orders implements the unified order engine: marketplace
// ingestion, the order state machine, the bounded priority fulfillment
// queue and the fulfillment/return operations.
package orders

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brendan721/Flipsync-Final-sub011/internal/marketplace"
)

// Status is an order's position in the fulfillment lifecycle
type Status string

const (
	StatusConfirmed  Status = "confirmed"
	StatusProcessing Status = "processing"
	StatusShipped    Status = "shipped"
	StatusDelivered  Status = "delivered"
	StatusCancelled  Status = "cancelled"
	StatusReturned   Status = "returned"
	StatusRefunded   Status = "refunded"
)

// Terminal states forbid further mutation except delivered orders moving
// to returned or refunded.
func (s Status) Terminal() bool {
	switch s {
	case StatusDelivered, StatusCancelled, StatusReturned, StatusRefunded:
		return true
	}
	return false
}

func (s Status) canTransitionTo(next Status) bool {
	if s == next {
		return false
	}
	if s == StatusDelivered {
		return next == StatusReturned || next == StatusRefunded
	}
	if s.Terminal() {
		return false
	}
	return true
}

// Priority orders the fulfillment queue
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityUrgent Priority = "urgent"
)

// FulfillmentMethod describes who ships the order
type FulfillmentMethod string

const (
	SelfFulfilled      FulfillmentMethod = "SELF_FULFILLED"
	MarketplaceManaged FulfillmentMethod = "MARKETPLACE_MANAGED"
)

// OrderItem is one line of a unified order
type OrderItem struct {
	SKU       string          `json:"sku"`
	Title     string          `json:"title,omitempty"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
}

// ShippingInfo is the destination and carrier state of an order
type ShippingInfo struct {
	Address        string `json:"address,omitempty"`
	Carrier        string `json:"carrier,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
}

// UnifiedOrder is the platform-wide view of a marketplace order.
// updated_at is monotonic and notes are append-only.
type UnifiedOrder struct {
	OrderID            string                  `json:"order_id"`
	MarketplaceOrderID string                  `json:"marketplace_order_id"`
	Marketplace        marketplace.Marketplace `json:"marketplace"`
	SellerID           string                  `json:"seller_id"`
	BuyerInfo          string                  `json:"buyer_info,omitempty"`
	Items              []OrderItem             `json:"items"`
	Shipping           ShippingInfo            `json:"shipping"`
	Status             Status                  `json:"status"`
	Priority           Priority                `json:"priority"`
	FulfillmentMethod  FulfillmentMethod       `json:"fulfillment_method"`
	OrderTotal         decimal.Decimal         `json:"order_total"`
	Fees               decimal.Decimal         `json:"fees"`
	RefundAmount       decimal.Decimal         `json:"refund_amount,omitempty"`
	CreatedAt          time.Time               `json:"created_at"`
	UpdatedAt          time.Time               `json:"updated_at"`
	Notes              []string                `json:"notes,omitempty"`
}

// touch advances updated_at, never backwards
func (o *UnifiedOrder) touch() {
	now := time.Now().UTC()
	if now.After(o.UpdatedAt) {
		o.UpdatedAt = now
	}
}

func (o *UnifiedOrder) appendNote(note string) {
	if note == "" {
		return
	}
	o.Notes = append(o.Notes, fmt.Sprintf("[%s] %s", time.Now().UTC().Format(time.RFC3339), note))
}

// setStatus applies a transition after checking legality
func (o *UnifiedOrder) setStatus(next Status) error {
	if !o.Status.canTransitionTo(next) {
		return fmt.Errorf("illegal order transition %s -> %s", o.Status, next)
	}
	o.Status = next
	o.touch()
	return nil
}

func (o *UnifiedOrder) clone() UnifiedOrder {
	out := *o
	out.Items = append([]OrderItem(nil), o.Items...)
	out.Notes = append([]string(nil), o.Notes...)
	return out
}

// Package inventory implements the cross-marketplace inventory engine:
// per-marketplace sync loops with batch and rate limits, and the hourly
// rebalancing analysis with its redistribution strategies.
package inventory

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brendan721/Flipsync-Final-sub011/internal/marketplace"
)

// Item is the platform view of one SKU: the authoritative total quantity
// plus its allocation and price per marketplace.
type Item struct {
	SKU        string                                   `json:"sku"`
	Name       string                                   `json:"name,omitempty"`
	Price      decimal.Decimal                          `json:"price"`
	Allocation map[marketplace.Marketplace]int          `json:"allocation"`
	Listings   map[marketplace.Marketplace]string       `json:"listings,omitempty"`
	Signals    map[marketplace.Marketplace]ItemSignals  `json:"signals,omitempty"`
	UpdatedAt  time.Time                                `json:"updated_at"`
}

// ItemSignals feed the weighted rebalancing strategies
type ItemSignals struct {
	SalesVelocity float64 `json:"sales_velocity"`
	DemandScore   float64 `json:"demand_score"`
	MarginPct     float64 `json:"margin_pct"`
}

// Total sums the allocation across marketplaces
func (i *Item) Total() int {
	total := 0
	for _, q := range i.Allocation {
		total += q
	}
	return total
}

func (i *Item) clone() Item {
	out := *i
	out.Allocation = make(map[marketplace.Marketplace]int, len(i.Allocation))
	for m, q := range i.Allocation {
		out.Allocation[m] = q
	}
	if i.Listings != nil {
		out.Listings = make(map[marketplace.Marketplace]string, len(i.Listings))
		for m, l := range i.Listings {
			out.Listings[m] = l
		}
	}
	if i.Signals != nil {
		out.Signals = make(map[marketplace.Marketplace]ItemSignals, len(i.Signals))
		for m, s := range i.Signals {
			out.Signals[m] = s
		}
	}
	return out
}

// Store holds the authoritative inventory table. All reads return copies.
type Store struct {
	mu    sync.RWMutex
	items map[string]*Item
}

func NewStore() *Store {
	return &Store{items: make(map[string]*Item)}
}

// Put inserts or replaces an item
func (s *Store) Put(item Item) {
	s.mu.Lock()
	defer s.mu.Unlock()
	item.UpdatedAt = time.Now().UTC()
	stored := item.clone()
	s.items[item.SKU] = &stored
}

// Get returns a copy of one item
func (s *Store) Get(sku string) (Item, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	item, ok := s.items[sku]
	if !ok {
		return Item{}, false
	}
	return item.clone(), true
}

// SKUs lists every stored SKU
func (s *Store) SKUs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.items))
	for sku := range s.items {
		out = append(out, sku)
	}
	return out
}

// SetAllocation updates one marketplace's quantity for a SKU
func (s *Store) SetAllocation(sku string, m marketplace.Marketplace, quantity int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	item, ok := s.items[sku]
	if !ok {
		return false
	}
	if item.Allocation == nil {
		item.Allocation = make(map[marketplace.Marketplace]int)
	}
	item.Allocation[m] = quantity
	item.UpdatedAt = time.Now().UTC()
	return true
}

package marketplace

import (
	"context"
	"fmt"
	"sync"
)

// Adapter is the minimum contract every marketplace client implements. All
// calls are network-bound and must honor ctx cancellation.
type Adapter interface {
	Marketplace() Marketplace
	FetchOrdersSince(ctx context.Context, sellerID, cursor string) (orders []OrderRaw, nextCursor string, err error)
	SyncInventoryBatch(ctx context.Context, updates []InventoryUpdate) ([]UpdateResult, error)
	PostFulfillment(ctx context.Context, orderRef, trackingNumber, carrier string) error
	QuoteShipment(ctx context.Context, req ShipmentQuoteRequest) ([]ShipmentQuote, error)
}

// ErrAdapterUnavailable is returned by the registry when no adapter is
// registered for a marketplace.
type ErrAdapterUnavailable struct {
	Marketplace Marketplace
}

func (e *ErrAdapterUnavailable) Error() string {
	return fmt.Sprintf("ADAPTER_UNAVAILABLE: no adapter registered for marketplace %q", e.Marketplace)
}

// Registry holds the configured adapters keyed by marketplace
type Registry struct {
	mu       sync.RWMutex
	adapters map[Marketplace]Adapter
}

// NewRegistry creates an empty adapter registry
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[Marketplace]Adapter)}
}

// Register installs an adapter, replacing any previous one for the same
// marketplace.
func (r *Registry) Register(a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[a.Marketplace()] = a
}

// Get returns the adapter for a marketplace or ErrAdapterUnavailable
func (r *Registry) Get(m Marketplace) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[m]
	if !ok {
		return nil, &ErrAdapterUnavailable{Marketplace: m}
	}
	return a, nil
}

// Marketplaces returns the registered marketplaces in canonical order
func (r *Registry) Marketplaces() []Marketplace {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Marketplace
	for _, m := range All() {
		if _, ok := r.adapters[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

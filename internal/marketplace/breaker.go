package marketplace

import (
	"context"

	"github.com/rs/zerolog"
	"github.com/sony/gobreaker"
)

// BreakerAdapter wraps an adapter with a circuit breaker per marketplace.
// A tripped breaker fails fast instead of hammering a marketplace API
// that is already rejecting calls.
type BreakerAdapter struct {
	inner   Adapter
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerAdapter wraps the inner adapter with breaker protection
func NewBreakerAdapter(inner Adapter, log zerolog.Logger) *BreakerAdapter {
	name := string(inner.Marketplace())
	blog := log.With().Str("component", "adapter_breaker").Str("marketplace", name).Logger()

	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name + "-adapter",
		MaxRequests: 3,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			blog.Warn().
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("Marketplace adapter circuit breaker state changed")
		},
	})

	return &BreakerAdapter{inner: inner, breaker: breaker}
}

func (b *BreakerAdapter) Marketplace() Marketplace {
	return b.inner.Marketplace()
}

func (b *BreakerAdapter) FetchOrdersSince(ctx context.Context, sellerID, cursor string) ([]OrderRaw, string, error) {
	type fetchResult struct {
		orders []OrderRaw
		next   string
	}
	out, err := b.breaker.Execute(func() (interface{}, error) {
		orders, next, err := b.inner.FetchOrdersSince(ctx, sellerID, cursor)
		if err != nil {
			return nil, err
		}
		return fetchResult{orders: orders, next: next}, nil
	})
	if err != nil {
		return nil, "", err
	}
	res := out.(fetchResult)
	return res.orders, res.next, nil
}

func (b *BreakerAdapter) SyncInventoryBatch(ctx context.Context, updates []InventoryUpdate) ([]UpdateResult, error) {
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.SyncInventoryBatch(ctx, updates)
	})
	if err != nil {
		return nil, err
	}
	return out.([]UpdateResult), nil
}

func (b *BreakerAdapter) PostFulfillment(ctx context.Context, orderRef, trackingNumber, carrier string) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.inner.PostFulfillment(ctx, orderRef, trackingNumber, carrier)
	})
	return err
}

func (b *BreakerAdapter) QuoteShipment(ctx context.Context, req ShipmentQuoteRequest) ([]ShipmentQuote, error) {
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.QuoteShipment(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return out.([]ShipmentQuote), nil
}

// State reports the current breaker state
func (b *BreakerAdapter) State() gobreaker.State {
	return b.breaker.State()
}

// Package analytics computes windowed aggregates over decisions and
// orders: counts, confidence averages, fulfillment latency, a simple
// volume forecast and decision-to-order conversion inside a correlation
// window.
package analytics

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/brendan721/Flipsync-Final-sub011/internal/decision"
	"github.com/brendan721/Flipsync-Final-sub011/internal/orders"
)

// Config controls the aggregation windows
type Config struct {
	WindowHours       int           // aggregation window, default 24
	PredictionHorizon int           // forecast horizon in hours, default 12
	CorrelationWindow int           // decision-to-order window in minutes, default 30
	Interval          time.Duration // recompute cadence, default 5m
}

func (c Config) withDefaults() Config {
	if c.WindowHours <= 0 {
		c.WindowHours = 24
	}
	if c.PredictionHorizon <= 0 {
		c.PredictionHorizon = 12
	}
	if c.CorrelationWindow <= 0 {
		c.CorrelationWindow = 30
	}
	if c.Interval <= 0 {
		c.Interval = 5 * time.Minute
	}
	return c
}

// DecisionSource supplies decisions for the window, normally the tracker
type DecisionSource interface {
	GetHistory(filters *decision.HistoryFilters) []*decision.Decision
}

// OrderSource supplies the unified orders, normally the order manager
type OrderSource interface {
	List() []orders.UnifiedOrder
}

// DecisionStats aggregates decisions inside the window
type DecisionStats struct {
	Total         int                   `json:"total"`
	ByStatus      map[decision.Status]int `json:"by_status"`
	ByType        map[decision.Type]int   `json:"by_type"`
	AvgConfidence float64               `json:"avg_confidence"`
}

// OrderStats aggregates orders inside the window
type OrderStats struct {
	Total                int                    `json:"total"`
	Shipped              int                    `json:"shipped"`
	Delivered            int                    `json:"delivered"`
	Returned             int                    `json:"returned"`
	Cancelled            int                    `json:"cancelled"`
	Revenue              decimal.Decimal        `json:"revenue"`
	AvgFulfillmentLatency time.Duration         `json:"avg_fulfillment_latency"`
	ByMarketplace        map[string]int         `json:"by_marketplace"`
}

// Snapshot is one computed aggregate over the window
type Snapshot struct {
	WindowStart     time.Time     `json:"window_start"`
	WindowEnd       time.Time     `json:"window_end"`
	ComputedAt      time.Time     `json:"computed_at"`
	Decisions       DecisionStats `json:"decisions"`
	Orders          OrderStats    `json:"orders"`
	PredictedOrders float64       `json:"predicted_orders"`
	// ConvertedDecisions counts approved decisions followed by at least
	// one order inside the correlation window.
	ConvertedDecisions int     `json:"converted_decisions"`
	ConversionRate     float64 `json:"conversion_rate"`
}

// Engine recomputes snapshots on a timer and serves the latest one
type Engine struct {
	cfg       Config
	decisions DecisionSource
	orders    OrderSource
	log       zerolog.Logger
	now       func() time.Time

	mu       sync.Mutex
	snapshot Snapshot
	cancel   context.CancelFunc
	done     chan struct{}
}

// NewEngine creates an analytics engine over the given sources
func NewEngine(cfg Config, decisions DecisionSource, orderSrc OrderSource, log zerolog.Logger) *Engine {
	return &Engine{
		cfg:       cfg.withDefaults(),
		decisions: decisions,
		orders:    orderSrc,
		log:       log.With().Str("component", "analytics_engine").Logger(),
		now:       time.Now,
	}
}

// Start launches the recompute loop. Calling Start twice is a no-op.
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.done = make(chan struct{})

	e.log.Info().
		Int("window_hours", e.cfg.WindowHours).
		Dur("interval", e.cfg.Interval).
		Msg("Starting analytics engine")
	go e.run(ctx)
}

// Stop cancels the loop and waits for it to exit
func (e *Engine) Stop() {
	e.mu.Lock()
	cancel, done := e.cancel, e.done
	e.cancel, e.done = nil, nil
	e.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	e.log.Info().Msg("Analytics engine stopped")
}

func (e *Engine) run(ctx context.Context) {
	defer close(e.done)

	e.Recompute(ctx)
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.Recompute(ctx)
		}
	}
}

// Snapshot returns the latest computed aggregate
func (e *Engine) Snapshot() Snapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.snapshot
}

// Recompute rebuilds the snapshot from the sources. Exposed so callers
// can force a refresh without waiting for the ticker.
func (e *Engine) Recompute(ctx context.Context) Snapshot {
	now := e.now()
	windowStart := now.Add(-time.Duration(e.cfg.WindowHours) * time.Hour)

	decs := e.decisions.GetHistory(&decision.HistoryFilters{Since: windowStart})
	allOrders := e.orders.List()

	snap := Snapshot{
		WindowStart: windowStart,
		WindowEnd:   now,
		ComputedAt:  now,
		Decisions:   aggregateDecisions(decs),
		Orders:      aggregateOrders(allOrders, windowStart),
	}

	hours := float64(e.cfg.WindowHours)
	if hours > 0 {
		snap.PredictedOrders = float64(snap.Orders.Total) / hours * float64(e.cfg.PredictionHorizon)
	}

	snap.ConvertedDecisions, snap.ConversionRate = e.correlate(decs, allOrders)

	e.mu.Lock()
	e.snapshot = snap
	e.mu.Unlock()

	e.log.Debug().
		Int("decisions", snap.Decisions.Total).
		Int("orders", snap.Orders.Total).
		Float64("predicted_orders", snap.PredictedOrders).
		Msg("Analytics snapshot recomputed")
	return snap
}

func aggregateDecisions(decs []*decision.Decision) DecisionStats {
	stats := DecisionStats{
		ByStatus: make(map[decision.Status]int),
		ByType:   make(map[decision.Type]int),
	}

	var confidenceSum float64
	for _, d := range decs {
		stats.Total++
		stats.ByStatus[d.Metadata.Status]++
		stats.ByType[d.Type]++
		confidenceSum += d.Confidence
	}
	if stats.Total > 0 {
		stats.AvgConfidence = confidenceSum / float64(stats.Total)
	}
	return stats
}

func aggregateOrders(allOrders []orders.UnifiedOrder, windowStart time.Time) OrderStats {
	stats := OrderStats{
		Revenue:       decimal.Zero,
		ByMarketplace: make(map[string]int),
	}

	var latencySum time.Duration
	fulfilled := 0
	for _, o := range allOrders {
		if o.CreatedAt.Before(windowStart) {
			continue
		}
		stats.Total++
		stats.ByMarketplace[string(o.Marketplace)]++

		switch o.Status {
		case orders.StatusShipped:
			stats.Shipped++
		case orders.StatusDelivered:
			stats.Delivered++
		case orders.StatusReturned, orders.StatusRefunded:
			stats.Returned++
		case orders.StatusCancelled:
			stats.Cancelled++
		}

		if o.Status != orders.StatusCancelled {
			stats.Revenue = stats.Revenue.Add(o.OrderTotal)
		}
		if o.Status == orders.StatusShipped || o.Status == orders.StatusDelivered {
			latencySum += o.UpdatedAt.Sub(o.CreatedAt)
			fulfilled++
		}
	}
	if fulfilled > 0 {
		stats.AvgFulfillmentLatency = latencySum / time.Duration(fulfilled)
	}
	return stats
}

// correlate counts approved decisions with an order created inside the
// correlation window after the decision.
func (e *Engine) correlate(decs []*decision.Decision, allOrders []orders.UnifiedOrder) (int, float64) {
	window := time.Duration(e.cfg.CorrelationWindow) * time.Minute

	approved := 0
	converted := 0
	for _, d := range decs {
		status := d.Metadata.Status
		if status != decision.StatusApproved && status != decision.StatusExecuting && status != decision.StatusCompleted {
			continue
		}
		approved++

		for _, o := range allOrders {
			delta := o.CreatedAt.Sub(d.Metadata.CreatedAt)
			if delta >= 0 && delta <= window {
				converted++
				break
			}
		}
	}

	if approved == 0 {
		return 0, 0
	}
	return converted, float64(converted) / float64(approved)
}

package inventory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/brendan721/Flipsync-Final-sub011/internal/marketplace"
)

// Strategy selects how rebalancing redistributes quantity
type Strategy string

const (
	StrategyEqualDistribution Strategy = "equal_distribution"
	StrategyPerformanceBased  Strategy = "performance_based"
	StrategyDemandBased       Strategy = "demand_based"
	StrategyProfitOptimized   Strategy = "profit_optimized"
)

// DefaultRebalanceInterval is how often the scan loop runs
const DefaultRebalanceInterval = time.Hour

// RebalanceRecommendation proposes a per-SKU quantity reallocation. For the
// pure redistribution strategies the recommended total equals the current
// total.
type RebalanceRecommendation struct {
	SKU                     string                          `json:"sku"`
	Strategy                Strategy                        `json:"strategy"`
	CurrentDistribution     map[marketplace.Marketplace]int `json:"current_distribution"`
	RecommendedDistribution map[marketplace.Marketplace]int `json:"recommended_distribution"`
	ExpectedImpact          string                          `json:"expected_impact"`
	ConfidenceScore         float64                         `json:"confidence_score"`
	Reasoning               string                          `json:"reasoning"`
	CreatedAt               time.Time                       `json:"created_at"`
}

// Rebalancer scans the store and produces redistribution recommendations.
// The analysis is single-flight globally: overlapping scans collapse into
// the one already running.
type Rebalancer struct {
	store    *Store
	adapters *marketplace.Registry
	strategy Strategy
	interval time.Duration
	log      zerolog.Logger

	scanMu sync.Mutex

	mu              sync.Mutex
	recommendations map[string]*RebalanceRecommendation
	started         bool
	cancel          context.CancelFunc
	done            chan struct{}
}

func NewRebalancer(store *Store, adapters *marketplace.Registry, strategy Strategy, interval time.Duration, log zerolog.Logger) *Rebalancer {
	if interval <= 0 {
		interval = DefaultRebalanceInterval
	}
	if strategy == "" {
		strategy = StrategyEqualDistribution
	}
	return &Rebalancer{
		store:           store,
		adapters:        adapters,
		strategy:        strategy,
		interval:        interval,
		recommendations: make(map[string]*RebalanceRecommendation),
		log:             log.With().Str("component", "rebalancer").Logger(),
	}
}

// Start launches the periodic scan loop. Idempotent.
func (r *Rebalancer) Start(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	r.done = make(chan struct{})
	r.started = true

	go func() {
		defer close(r.done)
		ticker := time.NewTicker(r.interval)
		defer ticker.Stop()
		for {
			select {
			case <-runCtx.Done():
				return
			case <-ticker.C:
				r.Scan(runCtx)
			}
		}
	}()
	r.log.Info().Dur("interval", r.interval).Str("strategy", string(r.strategy)).Msg("Rebalance loop started")
}

// Stop cancels the loop and waits for it to exit
func (r *Rebalancer) Stop() {
	r.mu.Lock()
	if !r.started {
		r.mu.Unlock()
		return
	}
	cancel, done := r.cancel, r.done
	r.started = false
	r.mu.Unlock()

	cancel()
	<-done
	r.log.Info().Msg("Rebalance loop stopped")
}

// Scan analyzes every SKU and stores fresh recommendations. A scan already
// in progress absorbs the call.
func (r *Rebalancer) Scan(ctx context.Context) int {
	if !r.scanMu.TryLock() {
		return 0
	}
	defer r.scanMu.Unlock()

	produced := 0
	for _, sku := range r.store.SKUs() {
		if ctx.Err() != nil {
			return produced
		}
		rec, ok := r.Analyze(sku)
		if !ok {
			continue
		}
		r.mu.Lock()
		r.recommendations[sku] = rec
		r.mu.Unlock()
		produced++
	}
	r.log.Debug().Int("recommendations", produced).Msg("Rebalance scan completed")
	return produced
}

// Recommendation returns a copy of the stored recommendation for a SKU.
// The distribution maps are cloned so callers cannot mutate the stored
// recommendation.
func (r *Rebalancer) Recommendation(sku string) (RebalanceRecommendation, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.recommendations[sku]
	if !ok {
		return RebalanceRecommendation{}, false
	}
	out := *rec
	out.CurrentDistribution = cloneDistribution(rec.CurrentDistribution)
	out.RecommendedDistribution = cloneDistribution(rec.RecommendedDistribution)
	return out, true
}

func cloneDistribution(dist map[marketplace.Marketplace]int) map[marketplace.Marketplace]int {
	out := make(map[marketplace.Marketplace]int, len(dist))
	for m, q := range dist {
		out[m] = q
	}
	return out
}

// Analyze produces a recommendation for one SKU without storing it. SKUs
// whose current allocation already matches the strategy produce none.
func (r *Rebalancer) Analyze(sku string) (*RebalanceRecommendation, bool) {
	item, ok := r.store.Get(sku)
	if !ok || len(item.Allocation) == 0 {
		return nil, false
	}

	marketplaces := canonicalMarketplaces(item.Allocation)
	total := item.Total()
	recommended := r.distribute(total, marketplaces, item.Signals)

	if distributionsEqual(item.Allocation, recommended) {
		return nil, false
	}

	return &RebalanceRecommendation{
		SKU:                     sku,
		Strategy:                r.strategy,
		CurrentDistribution:     item.Allocation,
		RecommendedDistribution: recommended,
		ExpectedImpact:          fmt.Sprintf("redistribute %d units across %d marketplaces", total, len(marketplaces)),
		ConfidenceScore:         strategyConfidence(r.strategy, item.Signals),
		Reasoning:               fmt.Sprintf("%s redistribution of %d units for %s", r.strategy, total, sku),
		CreatedAt:               time.Now().UTC(),
	}, true
}

// distribute splits total across marketplaces per the active strategy.
// All strategies preserve the total.
func (r *Rebalancer) distribute(total int, marketplaces []marketplace.Marketplace, signals map[marketplace.Marketplace]ItemSignals) map[marketplace.Marketplace]int {
	switch r.strategy {
	case StrategyPerformanceBased:
		return weightedDistribution(total, marketplaces, signals, func(s ItemSignals) float64 { return s.SalesVelocity })
	case StrategyDemandBased:
		return weightedDistribution(total, marketplaces, signals, func(s ItemSignals) float64 { return s.DemandScore })
	case StrategyProfitOptimized:
		return weightedDistribution(total, marketplaces, signals, func(s ItemSignals) float64 { return s.MarginPct })
	default:
		return equalDistribution(total, marketplaces)
	}
}

// equalDistribution gives each marketplace total/n, spreading the remainder
// one unit each across the first marketplaces in canonical order so no two
// values differ by more than 1.
func equalDistribution(total int, marketplaces []marketplace.Marketplace) map[marketplace.Marketplace]int {
	out := make(map[marketplace.Marketplace]int, len(marketplaces))
	if len(marketplaces) == 0 {
		return out
	}
	per := total / len(marketplaces)
	remainder := total % len(marketplaces)
	for i, m := range marketplaces {
		out[m] = per
		if i < remainder {
			out[m]++
		}
	}
	return out
}

// weightedDistribution allocates proportionally to the signal, assigning
// rounding leftovers by largest fractional remainder. Zero total weight
// falls back to equal distribution.
func weightedDistribution(total int, marketplaces []marketplace.Marketplace, signals map[marketplace.Marketplace]ItemSignals, weight func(ItemSignals) float64) map[marketplace.Marketplace]int {
	var sum float64
	weights := make([]float64, len(marketplaces))
	for i, m := range marketplaces {
		w := weight(signals[m])
		if w < 0 {
			w = 0
		}
		weights[i] = w
		sum += w
	}
	if sum == 0 {
		return equalDistribution(total, marketplaces)
	}

	out := make(map[marketplace.Marketplace]int, len(marketplaces))
	type frac struct {
		m marketplace.Marketplace
		f float64
	}
	fracs := make([]frac, 0, len(marketplaces))
	assigned := 0
	for i, m := range marketplaces {
		exact := float64(total) * weights[i] / sum
		base := int(exact)
		out[m] = base
		assigned += base
		fracs = append(fracs, frac{m: m, f: exact - float64(base)})
	}
	sort.SliceStable(fracs, func(i, j int) bool { return fracs[i].f > fracs[j].f })
	for i := 0; i < total-assigned; i++ {
		out[fracs[i%len(fracs)].m]++
	}
	return out
}

func strategyConfidence(s Strategy, signals map[marketplace.Marketplace]ItemSignals) float64 {
	if s == StrategyEqualDistribution {
		return 0.9
	}
	if len(signals) == 0 {
		return 0.4
	}
	return 0.75
}

// ApplyRebalanceRecommendation dispatches the recommended allocation to
// each marketplace adapter. Partial success is permitted; the per-marketplace
// map reports each outcome and the recommendation is cleared only when every
// marketplace succeeded.
func (r *Rebalancer) ApplyRebalanceRecommendation(ctx context.Context, sku string) (map[marketplace.Marketplace]error, error) {
	r.mu.Lock()
	rec, ok := r.recommendations[sku]
	r.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("no recommendation for %s", sku)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	item, _ := r.store.Get(sku)
	results := make(map[marketplace.Marketplace]error, len(rec.RecommendedDistribution))
	allOK := true
	for _, m := range canonicalMarketplaces(rec.RecommendedDistribution) {
		quantity := rec.RecommendedDistribution[m]
		err := r.pushAllocation(ctx, m, sku, quantity, item)
		results[m] = err
		if err != nil {
			allOK = false
			continue
		}
		r.store.SetAllocation(sku, m, quantity)
	}

	if allOK {
		r.mu.Lock()
		delete(r.recommendations, sku)
		r.mu.Unlock()
		r.log.Info().Str("sku", sku).Msg("Rebalance applied in full")
	} else {
		r.log.Warn().Str("sku", sku).Msg("Rebalance applied partially; recommendation retained")
	}
	return results, nil
}

func (r *Rebalancer) pushAllocation(ctx context.Context, m marketplace.Marketplace, sku string, quantity int, item Item) error {
	adapter, err := r.adapters.Get(m)
	if err != nil {
		return err
	}
	results, err := adapter.SyncInventoryBatch(ctx, []marketplace.InventoryUpdate{{
		SKU:        sku,
		Quantity:   quantity,
		Price:      item.Price,
		ListingRef: item.Listings[m],
	}})
	if err != nil {
		return err
	}
	for _, res := range results {
		if !res.Success {
			return fmt.Errorf("update rejected for %s on %s: %s", sku, m, res.Error)
		}
	}
	return nil
}

// canonicalMarketplaces orders the keys of a distribution by the canonical
// marketplace order.
func canonicalMarketplaces(dist map[marketplace.Marketplace]int) []marketplace.Marketplace {
	out := make([]marketplace.Marketplace, 0, len(dist))
	for _, m := range marketplace.All() {
		if _, ok := dist[m]; ok {
			out = append(out, m)
		}
	}
	return out
}

func distributionsEqual(a, b map[marketplace.Marketplace]int) bool {
	if len(a) != len(b) {
		return false
	}
	for m, q := range a {
		if b[m] != q {
			return false
		}
	}
	return true
}

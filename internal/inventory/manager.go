package inventory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/brendan721/Flipsync-Final-sub011/internal/marketplace"
)

// MarketplaceConfig carries the per-marketplace sync knobs
type MarketplaceConfig struct {
	SyncInterval time.Duration `json:"sync_interval" mapstructure:"sync_interval"`
	BatchSize    int           `json:"batch_size" mapstructure:"batch_size"`
	RateLimit    float64       `json:"rate_limit" mapstructure:"rate_limit"`
}

// DefaultMarketplaceConfig is applied where a marketplace has no explicit
// configuration.
var DefaultMarketplaceConfig = MarketplaceConfig{
	SyncInterval: 15 * time.Minute,
	BatchSize:    25,
	RateLimit:    5,
}

// MarketplaceSyncResult is one marketplace's share of a sync run
type MarketplaceSyncResult struct {
	Marketplace marketplace.Marketplace `json:"marketplace"`
	Status      marketplace.SyncStatus  `json:"status"`
	Successful  int                     `json:"successful"`
	Failed      int                     `json:"failed"`
	Error       string                  `json:"error,omitempty"`
}

// SyncResult summarizes one SyncInventoryAcrossMarketplaces run
type SyncResult struct {
	SyncID         string                                              `json:"sync_id"`
	Total          int                                                 `json:"total"`
	Successful     int                                                 `json:"successful"`
	Failed         int                                                 `json:"failed"`
	PerMarketplace map[marketplace.Marketplace]MarketplaceSyncResult   `json:"per_marketplace"`
	Errors         []string                                            `json:"errors,omitempty"`
	Duration       time.Duration                                       `json:"duration"`
}

// Manager runs the per-marketplace sync loops and exposes on-demand sync.
// Each marketplace's loop is single-flight: an in-progress run blocks the
// next tick and any overlapping manual sync for that marketplace.
type Manager struct {
	store    *Store
	adapters *marketplace.Registry
	configs  map[marketplace.Marketplace]MarketplaceConfig
	log      zerolog.Logger

	limiters map[marketplace.Marketplace]*rate.Limiter
	inFlight map[marketplace.Marketplace]*sync.Mutex

	mu      sync.Mutex
	started bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewManager wires the sync engine. Marketplaces absent from configs use
// DefaultMarketplaceConfig.
func NewManager(store *Store, adapters *marketplace.Registry, configs map[marketplace.Marketplace]MarketplaceConfig, log zerolog.Logger) *Manager {
	m := &Manager{
		store:    store,
		adapters: adapters,
		configs:  make(map[marketplace.Marketplace]MarketplaceConfig),
		limiters: make(map[marketplace.Marketplace]*rate.Limiter),
		inFlight: make(map[marketplace.Marketplace]*sync.Mutex),
		log:      log.With().Str("component", "inventory_manager").Logger(),
	}
	for _, mp := range marketplace.All() {
		cfg, ok := configs[mp]
		if !ok {
			cfg = DefaultMarketplaceConfig
		}
		if cfg.BatchSize <= 0 {
			cfg.BatchSize = DefaultMarketplaceConfig.BatchSize
		}
		if cfg.SyncInterval <= 0 {
			cfg.SyncInterval = DefaultMarketplaceConfig.SyncInterval
		}
		if cfg.RateLimit <= 0 {
			cfg.RateLimit = DefaultMarketplaceConfig.RateLimit
		}
		m.configs[mp] = cfg
		m.limiters[mp] = rate.NewLimiter(rate.Limit(cfg.RateLimit), 1)
		m.inFlight[mp] = &sync.Mutex{}
	}
	return m
}

// Start launches one sync loop per registered marketplace. Idempotent.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.started = true

	for _, mp := range m.adapters.Marketplaces() {
		mp := mp
		cfg := m.configs[mp]
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			ticker := time.NewTicker(cfg.SyncInterval)
			defer ticker.Stop()
			for {
				select {
				case <-runCtx.Done():
					return
				case <-ticker.C:
					if _, err := m.syncMarketplace(runCtx, mp, nil, false); err != nil && runCtx.Err() == nil {
						m.log.Warn().Err(err).Str("marketplace", string(mp)).Msg("Scheduled sync failed")
					}
				}
			}
		}()
	}
	m.log.Info().Int("marketplaces", len(m.adapters.Marketplaces())).Msg("Inventory sync loops started")
}

// Stop cancels the loops and waits for them to exit
func (m *Manager) Stop() {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return
	}
	cancel := m.cancel
	m.started = false
	m.mu.Unlock()

	cancel()
	m.wg.Wait()
	m.log.Info().Msg("Inventory sync loops stopped")
}

// SyncInventoryAcrossMarketplaces pushes the store's allocations to the
// selected marketplaces. Empty sku means every SKU; empty marketplaces means
// every registered marketplace. Unless force is set, a marketplace whose
// sync is already running is reported as skipped rather than waited on.
func (m *Manager) SyncInventoryAcrossMarketplaces(ctx context.Context, sku string, marketplaces []marketplace.Marketplace, force bool) (*SyncResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	if len(marketplaces) == 0 {
		marketplaces = m.adapters.Marketplaces()
	}

	result := &SyncResult{
		SyncID:         uuid.New().String(),
		PerMarketplace: make(map[marketplace.Marketplace]MarketplaceSyncResult, len(marketplaces)),
	}

	var resultMu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	for _, mp := range marketplaces {
		mp := mp
		g.Go(func() error {
			mr, err := m.syncMarketplace(gctx, mp, skuFilter(sku), force)
			resultMu.Lock()
			defer resultMu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", mp, err))
				if mr == nil {
					mr = &MarketplaceSyncResult{Marketplace: mp, Status: marketplace.SyncFailed, Error: err.Error()}
				}
			}
			result.PerMarketplace[mp] = *mr
			result.Successful += mr.Successful
			result.Failed += mr.Failed
			result.Total += mr.Successful + mr.Failed
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result.Duration = time.Since(start)
	m.log.Info().
		Str("sync_id", result.SyncID).
		Int("total", result.Total).
		Int("successful", result.Successful).
		Int("failed", result.Failed).
		Dur("duration", result.Duration).
		Msg("Inventory sync completed")
	return result, nil
}

func skuFilter(sku string) []string {
	if sku == "" {
		return nil
	}
	return []string{sku}
}

// syncMarketplace pushes batched updates for one marketplace, honoring the
// marketplace's rate limit. Holding the per-marketplace mutex makes the run
// single-flight.
func (m *Manager) syncMarketplace(ctx context.Context, mp marketplace.Marketplace, skus []string, force bool) (*MarketplaceSyncResult, error) {
	flight := m.inFlight[mp]
	if flight == nil {
		return nil, fmt.Errorf("unknown marketplace %s", mp)
	}
	if force {
		flight.Lock()
	} else if !flight.TryLock() {
		return &MarketplaceSyncResult{Marketplace: mp, Status: marketplace.SyncInProgress, Error: "sync already running"},
			fmt.Errorf("sync already running for %s", mp)
	}
	defer flight.Unlock()

	adapter, err := m.adapters.Get(mp)
	if err != nil {
		return nil, err
	}

	if len(skus) == 0 {
		skus = m.store.SKUs()
	}
	updates := make([]marketplace.InventoryUpdate, 0, len(skus))
	for _, sku := range skus {
		item, ok := m.store.Get(sku)
		if !ok {
			continue
		}
		updates = append(updates, marketplace.InventoryUpdate{
			SKU:        sku,
			Quantity:   item.Allocation[mp],
			Price:      item.Price,
			ListingRef: item.Listings[mp],
		})
	}

	mr := &MarketplaceSyncResult{Marketplace: mp, Status: marketplace.SyncInProgress}
	batchSize := m.configs[mp].BatchSize
	for offset := 0; offset < len(updates); offset += batchSize {
		end := offset + batchSize
		if end > len(updates) {
			end = len(updates)
		}
		if err := m.limiters[mp].Wait(ctx); err != nil {
			mr.Status = marketplace.SyncPartial
			return mr, err
		}

		results, err := adapter.SyncInventoryBatch(ctx, updates[offset:end])
		if err != nil {
			mr.Failed += end - offset
			mr.Error = err.Error()
			continue
		}
		for _, r := range results {
			if r.Success {
				mr.Successful++
			} else {
				mr.Failed++
			}
		}
	}

	switch {
	case mr.Failed == 0:
		mr.Status = marketplace.SyncCompleted
	case mr.Successful == 0:
		mr.Status = marketplace.SyncFailed
	default:
		mr.Status = marketplace.SyncPartial
	}
	return mr, nil
}

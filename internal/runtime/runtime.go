// Package runtime owns the long-running platform components and their
// start/stop ordering. Each component is owned by the Runtime instance,
// never a package singleton, so two runtimes can coexist in one process.
package runtime

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/brendan721/Flipsync-Final-sub011/internal/alerts"
	"github.com/brendan721/Flipsync-Final-sub011/internal/analytics"
	"github.com/brendan721/Flipsync-Final-sub011/internal/inventory"
	"github.com/brendan721/Flipsync-Final-sub011/internal/orders"
)

// StopGrace bounds how long StopAll waits for components to exit
const StopGrace = 30 * time.Second

// Components holds the managed components. Nil entries are skipped.
type Components struct {
	Inventory  *inventory.Manager
	Rebalancer *inventory.Rebalancer
	Orders     *orders.Manager
	Analytics  *analytics.Engine
	Alerting   *alerts.AlertingSystem
}

// Runtime starts and stops the platform components. Every Start method is
// idempotent; every Stop cancels the component's owned work and awaits
// its exit.
type Runtime struct {
	components Components
	log        zerolog.Logger

	mu      sync.Mutex
	started map[string]bool
}

// New creates a runtime over the given components
func New(components Components, log zerolog.Logger) *Runtime {
	return &Runtime{
		components: components,
		log:        log.With().Str("component", "runtime").Logger(),
		started:    make(map[string]bool),
	}
}

// markStarted flips the component flag, returning false when it already
// had the desired state.
func (r *Runtime) markStarted(name string, started bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.started[name] == started {
		return false
	}
	r.started[name] = started
	return true
}

// StartInventoryManager starts the sync loops and the rebalancer
func (r *Runtime) StartInventoryManager(ctx context.Context) {
	if !r.markStarted("inventory", true) {
		return
	}
	if r.components.Inventory != nil {
		r.components.Inventory.Start(ctx)
	}
	if r.components.Rebalancer != nil {
		r.components.Rebalancer.Start(ctx)
	}
	r.log.Info().Msg("Inventory manager started")
}

// StopInventoryManager stops the rebalancer and the sync loops
func (r *Runtime) StopInventoryManager() {
	if !r.markStarted("inventory", false) {
		return
	}
	if r.components.Rebalancer != nil {
		r.components.Rebalancer.Stop()
	}
	if r.components.Inventory != nil {
		r.components.Inventory.Stop()
	}
	r.log.Info().Msg("Inventory manager stopped")
}

// StartOrderManager starts the per-marketplace ingestion loops
func (r *Runtime) StartOrderManager(ctx context.Context) {
	if !r.markStarted("orders", true) {
		return
	}
	if r.components.Orders != nil {
		r.components.Orders.Start(ctx)
	}
	r.log.Info().Msg("Order manager started")
}

// StopOrderManager stops ingestion and awaits the loops
func (r *Runtime) StopOrderManager() {
	if !r.markStarted("orders", false) {
		return
	}
	if r.components.Orders != nil {
		r.components.Orders.Stop()
	}
	r.log.Info().Msg("Order manager stopped")
}

// StartAnalyticsEngine starts the recompute loop
func (r *Runtime) StartAnalyticsEngine(ctx context.Context) {
	if !r.markStarted("analytics", true) {
		return
	}
	if r.components.Analytics != nil {
		r.components.Analytics.Start(ctx)
	}
	r.log.Info().Msg("Analytics engine started")
}

// StopAnalyticsEngine stops the recompute loop
func (r *Runtime) StopAnalyticsEngine() {
	if !r.markStarted("analytics", false) {
		return
	}
	if r.components.Analytics != nil {
		r.components.Analytics.Stop()
	}
	r.log.Info().Msg("Analytics engine stopped")
}

// StartAlertingSystem starts the health watch loop
func (r *Runtime) StartAlertingSystem(ctx context.Context) {
	if !r.markStarted("alerting", true) {
		return
	}
	if r.components.Alerting != nil {
		r.components.Alerting.Start(ctx)
	}
	r.log.Info().Msg("Alerting system started")
}

// StopAlertingSystem stops the health watch loop
func (r *Runtime) StopAlertingSystem() {
	if !r.markStarted("alerting", false) {
		return
	}
	if r.components.Alerting != nil {
		r.components.Alerting.Stop()
	}
	r.log.Info().Msg("Alerting system stopped")
}

// StartAll starts every configured component
func (r *Runtime) StartAll(ctx context.Context) {
	r.StartInventoryManager(ctx)
	r.StartOrderManager(ctx)
	r.StartAnalyticsEngine(ctx)
	r.StartAlertingSystem(ctx)
}

// StopAll stops every component in reverse start order. The grace period
// bounds the total wait; components still running when it elapses are
// abandoned with a warning.
func (r *Runtime) StopAll() {
	done := make(chan struct{})
	go func() {
		defer close(done)
		r.StopAlertingSystem()
		r.StopAnalyticsEngine()
		r.StopOrderManager()
		r.StopInventoryManager()
	}()

	select {
	case <-done:
		r.log.Info().Msg("All components stopped")
	case <-time.After(StopGrace):
		r.log.Warn().Dur("grace", StopGrace).Msg("Shutdown grace period elapsed with components still running")
	}
}

// Running reports whether a named component is currently started
func (r *Runtime) Running(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.started[name]
}

// Package metrics defines the platform-level Prometheus metrics and the
// HTTP server that exposes them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Platform-level metrics. Package-scoped promauto registration keeps one
// registry across every component.
var (
	OrdersIngested = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flipsync_orders_ingested_total",
		Help: "Orders ingested per marketplace",
	}, []string{"marketplace"})

	OrdersFulfilled = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flipsync_orders_fulfilled_total",
		Help: "Orders successfully fulfilled",
	})

	OrdersReturned = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flipsync_orders_returned_total",
		Help: "Orders returned by buyers",
	})

	FulfillmentQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flipsync_fulfillment_queue_depth",
		Help: "Orders waiting in the fulfillment queue",
	})

	SyncRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flipsync_inventory_sync_runs_total",
		Help: "Inventory sync runs per marketplace and status",
	}, []string{"marketplace", "status"})

	SyncDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "flipsync_inventory_sync_duration_seconds",
		Help:    "Duration of inventory sync runs",
		Buckets: prometheus.DefBuckets,
	})

	RebalanceRecommendations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "flipsync_rebalance_recommendations_total",
		Help: "Rebalance recommendations produced",
	})

	AgentsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "flipsync_agents_active",
		Help: "Agents currently active or busy",
	})

	CoordinationMessages = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flipsync_coordination_messages_total",
		Help: "Coordination messages routed per message type",
	}, []string{"message_type"})

	ApprovalsRouted = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "flipsync_approvals_routed_total",
		Help: "Approval routing outcomes",
	}, []string{"outcome"})

	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "flipsync_api_request_duration_ms",
		Help:    "API request latency in milliseconds",
		Buckets: []float64{5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"method", "path", "status"})
)

// RecordAPIRequest instruments one HTTP request
func RecordAPIRequest(method, path, status string, durationMS float64) {
	APIRequestDuration.WithLabelValues(method, path, status).Observe(durationMS)
}

package alerts

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brendan721/Flipsync-Final-sub011/internal/agent"
	"github.com/brendan721/Flipsync-Final-sub011/internal/executive"
	"github.com/brendan721/Flipsync-Final-sub011/internal/inventory"
	"github.com/brendan721/Flipsync-Final-sub011/internal/marketplace"
)

type stubSource struct {
	report executive.PerformanceReport
}

func (s *stubSource) MonitorAgentPerformance() executive.PerformanceReport {
	return s.report
}

func newSystemUnderTest(report executive.PerformanceReport) (*AlertingSystem, *captureAlerter) {
	sink := &captureAlerter{}
	m := NewManager(sink)
	m.SetPolicy(time.Nanosecond, 100)
	sys := NewAlertingSystem(m, &stubSource{report: report}, time.Hour, zerolog.Nop())
	return sys, sink
}

func TestCheckHealthPoorRaisesCritical(t *testing.T) {
	sys, sink := newSystemUnderTest(executive.PerformanceReport{
		OverallHealth:          "poor",
		AverageSuccessRate:     0.41,
		ActiveAgentsPercentage: 100,
		Agents:                 map[string]agent.PerformanceMetrics{},
	})

	sys.CheckHealth(context.Background())

	got := sink.sent()
	require.Len(t, got, 1)
	assert.Equal(t, SeverityCritical, got[0].Severity)
	assert.Equal(t, "System Health Poor", got[0].Title)
	assert.Contains(t, got[0].Message, "41%")
}

func TestCheckHealthFairRaisesWarning(t *testing.T) {
	sys, sink := newSystemUnderTest(executive.PerformanceReport{
		OverallHealth:          "fair",
		AverageSuccessRate:     0.7,
		ActiveAgentsPercentage: 100,
		Agents:                 map[string]agent.PerformanceMetrics{},
	})

	sys.CheckHealth(context.Background())

	got := sink.sent()
	require.Len(t, got, 1)
	assert.Equal(t, SeverityWarning, got[0].Severity)
}

func TestCheckHealthGoodStaysQuiet(t *testing.T) {
	sys, sink := newSystemUnderTest(executive.PerformanceReport{
		OverallHealth:          "good",
		AverageSuccessRate:     0.95,
		ActiveAgentsPercentage: 100,
		Agents:                 map[string]agent.PerformanceMetrics{},
	})

	sys.CheckHealth(context.Background())
	assert.Empty(t, sink.sent())
}

func TestCheckHealthFlagsOfflineAndDegradedAgents(t *testing.T) {
	sys, sink := newSystemUnderTest(executive.PerformanceReport{
		OverallHealth:          "good",
		AverageSuccessRate:     0.85,
		ActiveAgentsPercentage: 25,
		Agents: map[string]agent.PerformanceMetrics{
			"market-1":  {TotalTasks: 10, SuccessRate: 0.9},
			"content-1": {TotalTasks: 10, SuccessRate: 0.3},
			"idle-1":    {TotalTasks: 0, SuccessRate: 0},
		},
	})

	sys.CheckHealth(context.Background())

	got := sink.sent()
	require.Len(t, got, 2)

	titles := []string{got[0].Title, got[1].Title}
	assert.Contains(t, titles, "Agents Offline")
	assert.Contains(t, titles, "Agent Performance Degraded")
	for _, a := range got {
		if a.Title == "Agent Performance Degraded" {
			assert.Equal(t, "agent/content-1", a.CorrelationID)
		}
	}
}

func TestObserveSyncAlertsOnHighFailureRatio(t *testing.T) {
	sys, sink := newSystemUnderTest(executive.PerformanceReport{})

	sys.ObserveSync(context.Background(), inventory.SyncResult{
		SyncID: "sync-1",
		PerMarketplace: map[marketplace.Marketplace]inventory.MarketplaceSyncResult{
			marketplace.Ebay:   {Marketplace: marketplace.Ebay, Successful: 1, Failed: 9, Error: "rate limited"},
			marketplace.Amazon: {Marketplace: marketplace.Amazon, Successful: 9, Failed: 1},
		},
	})

	got := sink.sent()
	require.Len(t, got, 1, "only the marketplace above the failure ratio alerts")
	assert.Equal(t, "sync/ebay", got[0].CorrelationID)
	assert.Contains(t, got[0].Message, "failed for 9 of 10")
	assert.Equal(t, "sync-1", got[0].Metadata["sync_id"])
}

func TestObserveSyncIgnoresCleanRuns(t *testing.T) {
	sys, sink := newSystemUnderTest(executive.PerformanceReport{})

	sys.ObserveSync(context.Background(), inventory.SyncResult{
		PerMarketplace: map[marketplace.Marketplace]inventory.MarketplaceSyncResult{
			marketplace.Ebay: {Successful: 10, Failed: 0},
		},
	})
	assert.Empty(t, sink.sent())
}

func TestAlertingSystemStartStopIdempotent(t *testing.T) {
	sys, _ := newSystemUnderTest(executive.PerformanceReport{OverallHealth: "good"})

	ctx := context.Background()
	sys.Start(ctx)
	sys.Start(ctx) // no-op
	sys.Stop()
	sys.Stop() // no-op
}

func TestAlertingSystemImmediateStopAfterStart(t *testing.T) {
	sys, _ := newSystemUnderTest(executive.PerformanceReport{OverallHealth: "good"})

	// Stop races the loop goroutine's startup; the loop must close the
	// channel it was handed, not the field Stop already cleared
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		sys.Start(ctx)
		sys.Stop()
	}
}

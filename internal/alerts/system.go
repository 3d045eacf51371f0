package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/brendan721/Flipsync-Final-sub011/internal/executive"
	"github.com/brendan721/Flipsync-Final-sub011/internal/inventory"
)

// Thresholds for the periodic health check
const (
	defaultCheckInterval = time.Minute
	successRateFloor     = 0.6
	activeAgentsFloor    = 50.0 // percent
	syncFailureRatio     = 0.5
)

// PerformanceSource supplies the agent health snapshot, normally the
// executive orchestrator.
type PerformanceSource interface {
	MonitorAgentPerformance() executive.PerformanceReport
}

// AlertingSystem watches agent health and sync outcomes and raises alerts
// through the manager. Health checks run on a timer; sync results are
// pushed in by the inventory manager's callers.
type AlertingSystem struct {
	manager  *Manager
	source   PerformanceSource
	interval time.Duration
	log      zerolog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewAlertingSystem wires the watcher to a manager and a health source
func NewAlertingSystem(manager *Manager, source PerformanceSource, interval time.Duration, log zerolog.Logger) *AlertingSystem {
	if interval <= 0 {
		interval = defaultCheckInterval
	}
	return &AlertingSystem{
		manager:  manager,
		source:   source,
		interval: interval,
		log:      log.With().Str("component", "alerting_system").Logger(),
	}
}

// Start launches the periodic health check loop. Calling Start on a
// running system is a no-op.
func (s *AlertingSystem) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})

	s.log.Info().Dur("interval", s.interval).Msg("Starting alerting system")
	go s.run(ctx, s.done)
}

// Stop cancels the loop and waits for it to exit
func (s *AlertingSystem) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.log.Info().Msg("Alerting system stopped")
}

// run owns the ticker loop. The done channel is passed in rather than read
// from the struct: Stop nils the field before the goroutine necessarily
// observes it.
func (s *AlertingSystem) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.CheckHealth(ctx)
		}
	}
}

// CheckHealth evaluates one health snapshot and raises alerts for
// degraded conditions. Exposed so callers can force a check.
func (s *AlertingSystem) CheckHealth(ctx context.Context) {
	report := s.source.MonitorAgentPerformance()

	switch report.OverallHealth {
	case "poor":
		s.manager.Send(ctx, Alert{
			Title:         "System Health Poor",
			Message:       fmt.Sprintf("Average agent success rate is %.0f%%", report.AverageSuccessRate*100),
			Severity:      SeverityCritical,
			CorrelationID: "health/overall",
			Metadata: map[string]interface{}{
				"average_success_rate": report.AverageSuccessRate,
				"recommendations":      report.Recommendations,
			},
		})
	case "fair":
		s.manager.Send(ctx, Alert{
			Title:         "System Health Degraded",
			Message:       fmt.Sprintf("Average agent success rate is %.0f%%", report.AverageSuccessRate*100),
			Severity:      SeverityWarning,
			CorrelationID: "health/overall",
			Metadata: map[string]interface{}{
				"average_success_rate": report.AverageSuccessRate,
			},
		})
	}

	if len(report.Agents) > 0 && report.ActiveAgentsPercentage < activeAgentsFloor {
		s.manager.Send(ctx, Alert{
			Title:         "Agents Offline",
			Message:       fmt.Sprintf("Only %.0f%% of registered agents are active", report.ActiveAgentsPercentage),
			Severity:      SeverityWarning,
			CorrelationID: "health/agents",
			Metadata: map[string]interface{}{
				"active_percentage": report.ActiveAgentsPercentage,
			},
		})
	}

	for id, m := range report.Agents {
		if m.TotalTasks > 0 && m.SuccessRate < successRateFloor {
			s.manager.Send(ctx, Alert{
				Title:         "Agent Performance Degraded",
				Message:       fmt.Sprintf("Agent %s success rate dropped to %.0f%%", id, m.SuccessRate*100),
				Severity:      SeverityWarning,
				CorrelationID: "agent/" + id,
				Metadata: map[string]interface{}{
					"agent_id":     id,
					"success_rate": m.SuccessRate,
				},
			})
		}
	}
}

// ObserveSync inspects a finished sync run and alerts on marketplaces
// whose failure ratio crossed the threshold.
func (s *AlertingSystem) ObserveSync(ctx context.Context, result inventory.SyncResult) {
	for mp, mr := range result.PerMarketplace {
		total := mr.Successful + mr.Failed
		if total == 0 || mr.Failed == 0 {
			continue
		}
		if float64(mr.Failed)/float64(total) < syncFailureRatio {
			continue
		}
		s.manager.Send(ctx, Alert{
			Title:         "Inventory Sync Failed",
			Message:       fmt.Sprintf("Sync to %s failed for %d of %d listings", mp, mr.Failed, total),
			Severity:      SeverityWarning,
			CorrelationID: "sync/" + string(mp),
			Metadata: map[string]interface{}{
				"sync_id":     result.SyncID,
				"marketplace": string(mp),
				"failed":      mr.Failed,
				"total":       total,
				"error":       mr.Error,
			},
		})
	}
}

// Package executive implements the orchestrator that owns the agent
// registry and performance metrics, routes coordination messages between
// agents, runs cached strategic analysis and monitors agent health.
package executive

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/brendan721/Flipsync-Final-sub011/internal/agent"
)

// historyQueueHint is the coordination backlog size that triggers a
// queue-management recommendation.
const historyQueueHint = 100

// Executive owns the agent registry, per-agent performance metrics and the
// coordination history. Specialists only ever receive snapshot copies.
type Executive struct {
	mu       sync.Mutex
	registry map[string]*agent.RegistryEntry
	metrics  map[string]*agent.PerformanceMetrics
	history  []agent.CoordinationMessage

	analyzer *StrategicAnalyzer
	log      zerolog.Logger
}

// New creates an executive orchestrator. The analyzer is optional; without
// it AnalyzeStrategicSituation returns an error.
func New(analyzer *StrategicAnalyzer, log zerolog.Logger) *Executive {
	return &Executive{
		registry: make(map[string]*agent.RegistryEntry),
		metrics:  make(map[string]*agent.PerformanceMetrics),
		analyzer: analyzer,
		log:      log.With().Str("component", "executive").Logger(),
	}
}

// RegisterAgent adds or replaces a managed agent in the registry
func (e *Executive) RegisterAgent(entry agent.RegistryEntry) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if entry.Status == "" {
		entry.Status = agent.StatusActive
	}
	if entry.LastActive.IsZero() {
		entry.LastActive = time.Now().UTC()
	}
	stored := entry.Clone()
	e.registry[entry.AgentID] = &stored
	if _, ok := e.metrics[entry.AgentID]; !ok {
		e.metrics[entry.AgentID] = &agent.PerformanceMetrics{}
	}

	e.log.Info().
		Str("agent_id", entry.AgentID).
		Str("type", string(entry.Type)).
		Strs("capabilities", entry.Capabilities).
		Msg("Agent registered")
}

// Agents returns snapshot copies of every registry entry
func (e *Executive) Agents() []agent.RegistryEntry {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]agent.RegistryEntry, 0, len(e.registry))
	for _, entry := range e.registry {
		out = append(out, entry.Clone())
	}
	return out
}

// AgentMetrics returns a copy of one agent's performance metrics
func (e *Executive) AgentMetrics(agentID string) (agent.PerformanceMetrics, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	m, ok := e.metrics[agentID]
	if !ok {
		return agent.PerformanceMetrics{}, false
	}
	return *m, true
}

// CoordinateWithAgent routes a coordination message, mutates the registry
// and metrics accordingly and returns a structured result.
func (e *Executive) CoordinateWithAgent(ctx context.Context, msg agent.CoordinationMessage) (map[string]interface{}, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.history = append(e.history, msg)

	var result map[string]interface{}
	switch msg.MessageType {
	case agent.MessageTaskAssignment:
		result = e.handleTaskAssignmentLocked(msg)
	case agent.MessageStatusUpdate:
		result = e.handleStatusUpdateLocked(msg)
	case agent.MessageCoordinationReq:
		result = e.handleCoordinationRequestLocked(msg)
	case agent.MessagePerformanceReport:
		result = e.handlePerformanceReportLocked(msg)
	default:
		result = map[string]interface{}{
			"status":       "coordination_acknowledged",
			"message_type": string(msg.MessageType),
		}
	}

	status, _ := result["status"].(string)
	e.updatePerformanceLocked(msg.FromAgent, status)
	e.mu.Unlock()

	e.log.Debug().
		Str("from", msg.FromAgent).
		Str("to", msg.ToAgent).
		Str("message_type", string(msg.MessageType)).
		Str("status", status).
		Msg("Coordination message handled")
	return result, nil
}

func (e *Executive) handleTaskAssignmentLocked(msg agent.CoordinationMessage) map[string]interface{} {
	taskID := contentHash(msg.Content) % 10000
	result := map[string]interface{}{
		"status":               "task_assigned",
		"task_id":              fmt.Sprintf("task_%04d", taskID),
		"estimated_completion": time.Now().UTC().Add(30 * time.Minute).Format(time.RFC3339),
	}

	if target, ok := e.registry[msg.ToAgent]; ok {
		target.Status = agent.StatusBusy
		target.LastActive = time.Now().UTC()
	} else {
		result["status"] = "error_unknown_agent"
		result["error"] = fmt.Sprintf("agent %s not registered", msg.ToAgent)
	}
	return result
}

func (e *Executive) handleStatusUpdateLocked(msg agent.CoordinationMessage) map[string]interface{} {
	m, ok := e.metrics[msg.FromAgent]
	if !ok {
		return map[string]interface{}{
			"status": "error_unknown_agent",
			"error":  fmt.Sprintf("agent %s not registered", msg.FromAgent),
		}
	}

	taskStatus, _ := msg.Content["task_status"].(string)
	responseTime, _ := msg.Content["response_time"].(float64)
	switch taskStatus {
	case "completed":
		m.RecordOutcome(true, responseTime)
	case "failed":
		m.RecordOutcome(false, responseTime)
	default:
		// progress updates count the task without an outcome yet
		m.TotalTasks++
		if m.TotalTasks > 0 {
			m.SuccessRate = float64(m.CompletedTasks) / float64(m.TotalTasks)
		}
	}

	if entry, ok := e.registry[msg.FromAgent]; ok {
		entry.LastActive = time.Now().UTC()
		if taskStatus == "completed" || taskStatus == "failed" {
			entry.Status = agent.StatusActive
		}
	}
	return map[string]interface{}{
		"status":       "status_recorded",
		"success_rate": m.SuccessRate,
	}
}

func (e *Executive) handleCoordinationRequestLocked(msg agent.CoordinationMessage) map[string]interface{} {
	requestType, _ := msg.Content["request_type"].(string)
	switch requestType {
	case "market_intelligence", "inventory_snapshot":
		return map[string]interface{}{
			"status":       "coordination_approved",
			"request_type": requestType,
		}
	default:
		return map[string]interface{}{
			"status":       "coordination_pending",
			"request_type": requestType,
		}
	}
}

func (e *Executive) handlePerformanceReportLocked(msg agent.CoordinationMessage) map[string]interface{} {
	m, ok := e.metrics[msg.FromAgent]
	if !ok {
		return map[string]interface{}{
			"status": "error_unknown_agent",
			"error":  fmt.Sprintf("agent %s not registered", msg.FromAgent),
		}
	}

	reported := agent.PerformanceMetrics{
		TotalTasks:      intValue(msg.Content["total_tasks"]),
		CompletedTasks:  intValue(msg.Content["completed_tasks"]),
		FailedTasks:     intValue(msg.Content["failed_tasks"]),
		AvgResponseTime: floatValue(msg.Content["avg_response_time"]),
	}
	m.Merge(reported)

	return map[string]interface{}{
		"status":       "performance_merged",
		"success_rate": m.SuccessRate,
	}
}

// updatePerformanceLocked records the coordination outcome itself: an
// error-prefixed status counts as a failure, anything else a success.
func (e *Executive) updatePerformanceLocked(agentID, status string) {
	m, ok := e.metrics[agentID]
	if !ok {
		return
	}
	m.RecordOutcome(!strings.HasPrefix(status, "error"), 0)
}

// PerformanceReport is the snapshot returned by MonitorAgentPerformance
type PerformanceReport struct {
	OverallHealth          string                            `json:"overall_health"`
	ActiveAgentsPercentage float64                           `json:"active_agents_percentage"`
	AverageSuccessRate     float64                           `json:"average_success_rate"`
	CoordinationMessages   int                               `json:"coordination_messages"`
	Agents                 map[string]agent.PerformanceMetrics `json:"agents"`
	Recommendations        []string                          `json:"recommendations"`
}

// MonitorAgentPerformance snapshots the registry and metrics and computes
// system health with per-agent recommendations.
func (e *Executive) MonitorAgentPerformance() PerformanceReport {
	e.mu.Lock()
	defer e.mu.Unlock()

	report := PerformanceReport{
		Agents:               make(map[string]agent.PerformanceMetrics, len(e.metrics)),
		CoordinationMessages: len(e.history),
	}

	active := 0
	var successSum float64
	for id, entry := range e.registry {
		if entry.Status == agent.StatusActive || entry.Status == agent.StatusBusy {
			active++
		}
		m := e.metrics[id]
		report.Agents[id] = *m
		successSum += m.SuccessRate

		if m.TotalTasks > 0 && m.SuccessRate < 0.8 {
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("Agent %s success rate %.0f%% is below target; review recent failures", id, m.SuccessRate*100))
		}
		if m.AvgResponseTime > 3.0 {
			report.Recommendations = append(report.Recommendations,
				fmt.Sprintf("Agent %s average response time %.1fs exceeds 3.0s; consider scaling", id, m.AvgResponseTime))
		}
	}

	if n := len(e.registry); n > 0 {
		report.ActiveAgentsPercentage = float64(active) / float64(n) * 100
		report.AverageSuccessRate = successSum / float64(n)
	}

	switch {
	case report.AverageSuccessRate >= 0.8:
		report.OverallHealth = "good"
	case report.AverageSuccessRate >= 0.6:
		report.OverallHealth = "fair"
	default:
		report.OverallHealth = "poor"
	}

	if len(e.history) > historyQueueHint {
		report.Recommendations = append(report.Recommendations,
			fmt.Sprintf("Coordination history holds %d messages; consider trimming or batching", len(e.history)))
	}
	return report
}

// CoordinationHistory returns a copy of the routed messages
func (e *Executive) CoordinationHistory() []agent.CoordinationMessage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]agent.CoordinationMessage(nil), e.history...)
}

// AnalyzeStrategicSituation delegates to the configured analyzer, giving it
// a snapshot of the managed agents for the coordination plan.
func (e *Executive) AnalyzeStrategicSituation(ctx context.Context, req StrategicRequest) (*StrategicAnalysis, error) {
	if e.analyzer == nil {
		return nil, fmt.Errorf("strategic analyzer not configured")
	}
	return e.analyzer.Analyze(ctx, req, e.Agents())
}

func contentHash(content map[string]interface{}) uint64 {
	h := fnv.New64a()
	for _, k := range sortedKeys(content) {
		h.Write([]byte(k))
		h.Write([]byte(fmt.Sprintf("%v", content[k])))
	}
	return h.Sum64()
}

func intValue(v interface{}) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func floatValue(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}

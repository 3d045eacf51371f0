package executive

import (
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brendan721/Flipsync-Final-sub011/internal/agent"
)

func testExecutive() *Executive {
	return New(nil, zerolog.Nop())
}

func registerMarketAgent(e *Executive) {
	e.RegisterAgent(agent.RegistryEntry{
		AgentID:      "market_agent",
		Type:         agent.TypeMarket,
		Capabilities: []string{"pricing_analysis"},
	})
}

func TestRegisterAgentDefaults(t *testing.T) {
	e := testExecutive()
	registerMarketAgent(e)

	agents := e.Agents()
	require.Len(t, agents, 1)
	assert.Equal(t, agent.StatusActive, agents[0].Status)
	assert.False(t, agents[0].LastActive.IsZero())

	// snapshots are isolated from the registry
	agents[0].Status = agent.StatusError
	assert.Equal(t, agent.StatusActive, e.Agents()[0].Status)
}

func TestTaskAssignmentMarksBusy(t *testing.T) {
	e := testExecutive()
	registerMarketAgent(e)

	msg := agent.NewCoordinationMessage("executive", "market_agent", agent.MessageTaskAssignment, map[string]interface{}{
		"task": "refresh pricing",
	})
	result, err := e.CoordinateWithAgent(context.Background(), msg)
	require.NoError(t, err)

	assert.Equal(t, "task_assigned", result["status"])
	assert.Regexp(t, `^task_\d{4}$`, result["task_id"])
	assert.NotEmpty(t, result["estimated_completion"])
	assert.Equal(t, agent.StatusBusy, e.Agents()[0].Status)
}

func TestTaskAssignmentDeterministicTaskID(t *testing.T) {
	e := testExecutive()
	registerMarketAgent(e)
	ctx := context.Background()

	content := map[string]interface{}{"task": "refresh pricing"}
	r1, err := e.CoordinateWithAgent(ctx, agent.NewCoordinationMessage("executive", "market_agent", agent.MessageTaskAssignment, content))
	require.NoError(t, err)
	r2, err := e.CoordinateWithAgent(ctx, agent.NewCoordinationMessage("executive", "market_agent", agent.MessageTaskAssignment, content))
	require.NoError(t, err)
	assert.Equal(t, r1["task_id"], r2["task_id"])
}

func TestTaskAssignmentUnknownAgent(t *testing.T) {
	e := testExecutive()

	result, err := e.CoordinateWithAgent(context.Background(),
		agent.NewCoordinationMessage("executive", "ghost", agent.MessageTaskAssignment, nil))
	require.NoError(t, err)
	assert.Equal(t, "error_unknown_agent", result["status"])
}

func TestStatusUpdateCompletedTask(t *testing.T) {
	e := testExecutive()
	registerMarketAgent(e)

	result, err := e.CoordinateWithAgent(context.Background(),
		agent.NewCoordinationMessage("market_agent", "executive", agent.MessageStatusUpdate, map[string]interface{}{
			"task_status":   "completed",
			"response_time": 1.2,
		}))
	require.NoError(t, err)
	assert.Equal(t, "status_recorded", result["status"])

	// one outcome from the update itself plus one for the successful
	// coordination round
	m, ok := e.AgentMetrics("market_agent")
	require.True(t, ok)
	assert.Equal(t, 2, m.TotalTasks)
	assert.Equal(t, 2, m.CompletedTasks)
	assert.InDelta(t, 1.0, m.SuccessRate, 0.0001)
	assert.Equal(t, agent.StatusActive, e.Agents()[0].Status)
}

func TestStatusUpdateFailedTask(t *testing.T) {
	e := testExecutive()
	registerMarketAgent(e)

	_, err := e.CoordinateWithAgent(context.Background(),
		agent.NewCoordinationMessage("market_agent", "executive", agent.MessageStatusUpdate, map[string]interface{}{
			"task_status": "failed",
		}))
	require.NoError(t, err)

	m, _ := e.AgentMetrics("market_agent")
	assert.Equal(t, 2, m.TotalTasks)
	assert.Equal(t, 1, m.FailedTasks)
	assert.InDelta(t, 0.5, m.SuccessRate, 0.0001)
}

func TestCoordinationRequestDispatch(t *testing.T) {
	e := testExecutive()
	registerMarketAgent(e)
	ctx := context.Background()

	approved, err := e.CoordinateWithAgent(ctx,
		agent.NewCoordinationMessage("market_agent", "executive", agent.MessageCoordinationReq, map[string]interface{}{
			"request_type": "market_intelligence",
		}))
	require.NoError(t, err)
	assert.Equal(t, "coordination_approved", approved["status"])

	pending, err := e.CoordinateWithAgent(ctx,
		agent.NewCoordinationMessage("market_agent", "executive", agent.MessageCoordinationReq, map[string]interface{}{
			"request_type": "budget_increase",
		}))
	require.NoError(t, err)
	assert.Equal(t, "coordination_pending", pending["status"])
}

func TestPerformanceReportMerges(t *testing.T) {
	e := testExecutive()
	registerMarketAgent(e)

	result, err := e.CoordinateWithAgent(context.Background(),
		agent.NewCoordinationMessage("market_agent", "executive", agent.MessagePerformanceReport, map[string]interface{}{
			"total_tasks":       10.0,
			"completed_tasks":   8.0,
			"failed_tasks":      2.0,
			"avg_response_time": 1.5,
		}))
	require.NoError(t, err)
	assert.Equal(t, "performance_merged", result["status"])

	m, _ := e.AgentMetrics("market_agent")
	// the merged 10 plus the coordination outcome itself
	assert.Equal(t, 11, m.TotalTasks)
	assert.Equal(t, 9, m.CompletedTasks)
}

func TestUnknownMessageTypeAcknowledged(t *testing.T) {
	e := testExecutive()
	registerMarketAgent(e)

	result, err := e.CoordinateWithAgent(context.Background(),
		agent.NewCoordinationMessage("market_agent", "executive", agent.MessageStrategicGuidance, nil))
	require.NoError(t, err)
	assert.Equal(t, "coordination_acknowledged", result["status"])
}

func TestCoordinationHistoryAppends(t *testing.T) {
	e := testExecutive()
	registerMarketAgent(e)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := e.CoordinateWithAgent(ctx,
			agent.NewCoordinationMessage("market_agent", "executive", agent.MessageGeneral, nil))
		require.NoError(t, err)
	}
	assert.Len(t, e.CoordinationHistory(), 3)
}

func TestMonitorHealthThresholds(t *testing.T) {
	e := testExecutive()
	registerMarketAgent(e)
	ctx := context.Background()

	// all-successful coordination keeps health good
	for i := 0; i < 5; i++ {
		_, err := e.CoordinateWithAgent(ctx,
			agent.NewCoordinationMessage("market_agent", "executive", agent.MessageGeneral, nil))
		require.NoError(t, err)
	}

	report := e.MonitorAgentPerformance()
	assert.Equal(t, "good", report.OverallHealth)
	assert.InDelta(t, 100.0, report.ActiveAgentsPercentage, 0.0001)
	assert.Equal(t, 5, report.CoordinationMessages)
	assert.Empty(t, report.Recommendations)
}

func TestMonitorRecommendsForPoorPerformers(t *testing.T) {
	e := testExecutive()
	registerMarketAgent(e)
	ctx := context.Background()

	// repeated failed task assignments to an unregistered target count as
	// failures for the sender
	for i := 0; i < 4; i++ {
		_, err := e.CoordinateWithAgent(ctx,
			agent.NewCoordinationMessage("market_agent", "ghost", agent.MessageTaskAssignment, map[string]interface{}{"n": i}))
		require.NoError(t, err)
	}

	report := e.MonitorAgentPerformance()
	assert.Equal(t, "poor", report.OverallHealth)
	require.NotEmpty(t, report.Recommendations)
	assert.Contains(t, report.Recommendations[0], "market_agent")
}

func TestMonitorQueueHint(t *testing.T) {
	e := testExecutive()
	registerMarketAgent(e)
	ctx := context.Background()

	for i := 0; i < historyQueueHint+1; i++ {
		_, err := e.CoordinateWithAgent(ctx,
			agent.NewCoordinationMessage("market_agent", "executive", agent.MessageGeneral, map[string]interface{}{"n": i}))
		require.NoError(t, err)
	}

	report := e.MonitorAgentPerformance()
	found := false
	for _, rec := range report.Recommendations {
		if strings.Contains(rec, "Coordination history") {
			found = true
		}
	}
	assert.True(t, found, "expected a queue-size recommendation")
}

func TestCancelledCoordination(t *testing.T) {
	e := testExecutive()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.CoordinateWithAgent(ctx, agent.NewCoordinationMessage("a", "b", agent.MessageGeneral, nil))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, e.CoordinationHistory())
}

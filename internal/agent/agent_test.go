package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResponseMetadataAccessors(t *testing.T) {
	r := &Response{
		Content:    "generated listing copy",
		AgentType:  TypeContent,
		Confidence: 0.95,
		Metadata: map[string]interface{}{
			"requires_approval": true,
			"request_type":      "generate",
			"data":              map[string]interface{}{"sku": "SKU-1"},
		},
	}

	assert.True(t, r.RequiresApproval())
	assert.Equal(t, "generate", r.RequestType())
	assert.Equal(t, "SKU-1", r.Data()["sku"])
}

func TestResponseNilMetadata(t *testing.T) {
	r := &Response{AgentType: TypeMarket}
	assert.False(t, r.RequiresApproval())
	assert.Empty(t, r.RequestType())
	assert.Nil(t, r.Data())
}

func TestResponseNonBoolApprovalFlag(t *testing.T) {
	r := &Response{Metadata: map[string]interface{}{"requires_approval": "yes"}}
	assert.False(t, r.RequiresApproval())
}

func TestRegistryEntryClone(t *testing.T) {
	e := RegistryEntry{
		AgentID:      "market_agent",
		Type:         TypeMarket,
		Status:       StatusActive,
		Capabilities: []string{"pricing_analysis", "competitor_research"},
	}

	c := e.Clone()
	c.Capabilities[0] = "mutated"
	assert.Equal(t, "pricing_analysis", e.Capabilities[0])
	assert.True(t, e.HasCapability("competitor_research"))
	assert.False(t, e.HasCapability("shipping"))
}

func TestRecordOutcome(t *testing.T) {
	var m PerformanceMetrics

	m.RecordOutcome(true, 1.0)
	m.RecordOutcome(true, 2.0)
	m.RecordOutcome(false, 3.0)

	assert.Equal(t, 3, m.TotalTasks)
	assert.Equal(t, 2, m.CompletedTasks)
	assert.Equal(t, 1, m.FailedTasks)
	assert.InDelta(t, 2.0/3.0, m.SuccessRate, 0.0001)
	assert.InDelta(t, 2.0, m.AvgResponseTime, 0.0001)
}

func TestMergeReportedMetrics(t *testing.T) {
	m := PerformanceMetrics{TotalTasks: 2, CompletedTasks: 2, SuccessRate: 1.0, AvgResponseTime: 1.0}
	m.Merge(PerformanceMetrics{TotalTasks: 2, CompletedTasks: 1, FailedTasks: 1, AvgResponseTime: 3.0})

	assert.Equal(t, 4, m.TotalTasks)
	assert.Equal(t, 3, m.CompletedTasks)
	assert.Equal(t, 1, m.FailedTasks)
	assert.InDelta(t, 0.75, m.SuccessRate, 0.0001)
	assert.InDelta(t, 2.0, m.AvgResponseTime, 0.0001)
}

func TestNewCoordinationMessageDefaults(t *testing.T) {
	m := NewCoordinationMessage("executive", "market_agent", "", nil)

	assert.Equal(t, MessageGeneral, m.MessageType)
	assert.Equal(t, PriorityMedium, m.Priority)
	assert.NotNil(t, m.Content)
	assert.False(t, m.RequiresResponse)
	assert.False(t, m.Timestamp.IsZero())
}

func TestCoordinationMessageBuilders(t *testing.T) {
	m := NewCoordinationMessage("executive", "logistics_agent", MessageTaskAssignment, map[string]interface{}{
		"task": "optimize shipping",
	}).WithPriority(PriorityHigh).WithResponse()

	assert.Equal(t, MessageTaskAssignment, m.MessageType)
	assert.Equal(t, PriorityHigh, m.Priority)
	assert.True(t, m.RequiresResponse)
}

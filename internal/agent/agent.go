// Package agent defines the shared runtime types for FlipSync agents: the
// response envelope specialists return, the coordination message routed by
// the executive, registry entries and per-agent performance metrics.
package agent

import (
	"time"
)

// Type identifies an agent family
type Type string

const (
	TypeExecutive  Type = "executive"
	TypeMarket     Type = "market"
	TypeContent    Type = "content"
	TypeLogistics  Type = "logistics"
	TypeAutomation Type = "automation"
)

// Status is an agent's availability in the registry
type Status string

const (
	StatusActive Status = "active"
	StatusBusy   Status = "busy"
	StatusIdle   Status = "idle"
	StatusError  Status = "error"
)

// Response is the envelope every specialist returns from HandleMessage.
// Metadata is a free-form map; the well-known keys requires_approval,
// request_type and data drive the approval workflow downstream.
type Response struct {
	Content      string                 `json:"content"`
	AgentType    Type                   `json:"agent_type"`
	Confidence   float64                `json:"confidence"`
	ResponseTime float64                `json:"response_time"`
	Metadata     map[string]interface{} `json:"metadata,omitempty"`
}

// RequiresApproval reports whether the response asks for approval routing
func (r *Response) RequiresApproval() bool {
	if r.Metadata == nil {
		return false
	}
	v, ok := r.Metadata["requires_approval"].(bool)
	return ok && v
}

// RequestType returns the metadata request_type, or "" when absent
func (r *Response) RequestType() string {
	if r.Metadata == nil {
		return ""
	}
	v, _ := r.Metadata["request_type"].(string)
	return v
}

// Data returns the structured payload attached for downstream application
func (r *Response) Data() map[string]interface{} {
	if r.Metadata == nil {
		return nil
	}
	v, _ := r.Metadata["data"].(map[string]interface{})
	return v
}

// RegistryEntry describes a managed agent. The registry is owned exclusively
// by the executive; specialists only ever see snapshot copies.
type RegistryEntry struct {
	AgentID      string    `json:"agent_id"`
	Type         Type      `json:"type"`
	Status       Status    `json:"status"`
	Capabilities []string  `json:"capabilities"`
	LastActive   time.Time `json:"last_active"`
}

// Clone returns an independent copy of the entry
func (e RegistryEntry) Clone() RegistryEntry {
	e.Capabilities = append([]string(nil), e.Capabilities...)
	return e
}

// HasCapability reports whether the agent advertises the given capability
func (e RegistryEntry) HasCapability(name string) bool {
	for _, c := range e.Capabilities {
		if c == name {
			return true
		}
	}
	return false
}

// PerformanceMetrics holds per-agent counters, updated on each coordination
// outcome. SuccessRate is derived and maintained by RecordOutcome.
type PerformanceMetrics struct {
	TotalTasks      int     `json:"total_tasks"`
	CompletedTasks  int     `json:"completed_tasks"`
	FailedTasks     int     `json:"failed_tasks"`
	SuccessRate     float64 `json:"success_rate"`
	AvgResponseTime float64 `json:"avg_response_time"`
}

// RecordOutcome bumps the counters for one finished task and recomputes the
// success rate. The response time feeds a running average over total tasks.
func (m *PerformanceMetrics) RecordOutcome(success bool, responseTime float64) {
	m.TotalTasks++
	if success {
		m.CompletedTasks++
	} else {
		m.FailedTasks++
	}
	m.SuccessRate = float64(m.CompletedTasks) / float64(m.TotalTasks)
	if responseTime > 0 {
		m.AvgResponseTime += (responseTime - m.AvgResponseTime) / float64(m.TotalTasks)
	}
}

// Merge folds externally reported metrics into this record. Counters are
// added; the response-time average is weighted by task counts.
func (m *PerformanceMetrics) Merge(reported PerformanceMetrics) {
	totalBefore := m.TotalTasks
	m.TotalTasks += reported.TotalTasks
	m.CompletedTasks += reported.CompletedTasks
	m.FailedTasks += reported.FailedTasks
	if m.TotalTasks > 0 {
		m.SuccessRate = float64(m.CompletedTasks) / float64(m.TotalTasks)
		m.AvgResponseTime = (m.AvgResponseTime*float64(totalBefore) +
			reported.AvgResponseTime*float64(reported.TotalTasks)) / float64(m.TotalTasks)
	}
}

// Package repository persists agent decisions produced by the approval
// workflow. A Postgres implementation backs production; the in-memory
// implementation serves tests and offline-capable deployments.
package repository

import (
	"context"
	"fmt"
	"time"
)

// Decision lifecycle statuses as stored
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// AgentDecision is the persisted record of an approval-routed agent response
type AgentDecision struct {
	ApprovalID         string                 `json:"approval_id"`
	AgentType          string                 `json:"agent_type"`
	DecisionType       string                 `json:"decision_type"`
	Confidence         float64                `json:"confidence"`
	Summary            string                 `json:"summary"`
	Data               map[string]interface{} `json:"data,omitempty"`
	PipelineDecisionID string                 `json:"pipeline_decision_id,omitempty"`
	Status             string                 `json:"status"`
	AutoApproved       bool                   `json:"auto_approved"`
	EscalationRequired bool                   `json:"escalation_required"`
	Approver           string                 `json:"approver,omitempty"`
	Reason             string                 `json:"reason,omitempty"`
	CreatedAt          time.Time              `json:"created_at"`
	UpdatedAt          time.Time              `json:"updated_at"`
}

// ListFilters narrows ListDecisions results. Zero values are ignored.
type ListFilters struct {
	AgentType string
	Status    string
	Since     time.Time
	Limit     int
}

// Repository is the persistence contract for agent decisions
type Repository interface {
	CreateDecision(ctx context.Context, d *AgentDecision) error
	UpdateDecisionStatus(ctx context.Context, approvalID, status, actor, reason string) error
	GetDecision(ctx context.Context, approvalID string) (*AgentDecision, error)
	ListDecisions(ctx context.Context, filters ListFilters) ([]*AgentDecision, error)
}

// ErrNotFound reports a missing approval record
type ErrNotFound struct {
	ApprovalID string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("agent decision %s not found", e.ApprovalID)
}

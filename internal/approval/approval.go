// Package approval bridges agent responses that require sign-off into the
// decision pipeline: it derives a decision type, applies per-agent-type
// policy, records an auditable pipeline decision and persists the outcome.
package approval

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/brendan721/Flipsync-Final-sub011/internal/agent"
	"github.com/brendan721/Flipsync-Final-sub011/internal/decision"
	"github.com/brendan721/Flipsync-Final-sub011/internal/repository"
)

// Policy is the approval policy for one agent type
type Policy struct {
	AutoApproveThreshold float64  `json:"auto_approve_threshold" mapstructure:"auto_approve_threshold"`
	HumanRequiredTypes   []string `json:"human_required_types" mapstructure:"human_required_types"`
	EscalationThreshold  float64  `json:"escalation_threshold" mapstructure:"escalation_threshold"`
}

// DefaultPolicies returns the per-agent-type policy table
func DefaultPolicies() map[agent.Type]Policy {
	return map[agent.Type]Policy{
		agent.TypeContent: {
			AutoApproveThreshold: 0.9,
			HumanRequiredTypes:   []string{"template_changes"},
			EscalationThreshold:  0.5,
		},
		agent.TypeLogistics: {
			AutoApproveThreshold: 0.85,
			HumanRequiredTypes:   []string{"carrier_contract_changes"},
			EscalationThreshold:  0.5,
		},
		agent.TypeExecutive: {
			AutoApproveThreshold: 0.95,
			HumanRequiredTypes:   []string{"strategic_decision"},
			EscalationThreshold:  0.6,
		},
	}
}

// fallbackPolicy applies to agent types without an explicit entry
var fallbackPolicy = Policy{
	AutoApproveThreshold: 0.9,
	EscalationThreshold:  0.5,
}

// decisionTypeTable maps (agent_type, request_type) to a decision type.
// Executive responses always map to strategic_decision regardless of
// request type.
var decisionTypeTable = map[agent.Type]map[string]string{
	agent.TypeContent: {
		"generate": "content_generation",
		"optimize": "content_optimization",
		"template": "template_changes",
	},
	agent.TypeLogistics: {
		"shipping":    "shipping_optimization",
		"fulfillment": "fulfillment_strategy",
		"inventory":   "inventory_rebalance",
	},
	agent.TypeMarket: {
		"pricing":  "pricing_adjustment",
		"analysis": "market_analysis",
	},
}

// Result is the outcome of routing one agent response through approval
type Result struct {
	ApprovalID         string  `json:"approval_id"`
	DecisionType       string  `json:"decision_type"`
	AutoApproved       bool    `json:"auto_approved"`
	EscalationRequired bool    `json:"escalation_required"`
	PipelineDecisionID string  `json:"pipeline_decision_id,omitempty"`
	Confidence         float64 `json:"confidence"`
	ResponseText       string  `json:"response_text"`
}

// Router intercepts agent responses flagged requires_approval and turns
// them into tracked, persisted decisions.
type Router struct {
	policies map[agent.Type]Policy
	pipeline *decision.Pipeline
	repo     repository.Repository
	log      zerolog.Logger
}

// NewRouter creates an approval router. A nil policies map selects the
// defaults. The pipeline is optional: when absent, no pipeline decision id
// is ever recorded so approve/reject feedback is skipped uniformly.
func NewRouter(policies map[agent.Type]Policy, pipeline *decision.Pipeline, repo repository.Repository, log zerolog.Logger) *Router {
	if policies == nil {
		policies = DefaultPolicies()
	}
	return &Router{
		policies: policies,
		pipeline: pipeline,
		repo:     repo,
		log:      log.With().Str("component", "approval_router").Logger(),
	}
}

// DeriveDecisionType maps an agent type and request type to the decision
// type used for policy checks and persistence.
func DeriveDecisionType(agentType agent.Type, requestType string) string {
	if agentType == agent.TypeExecutive {
		return "strategic_decision"
	}
	if byRequest, ok := decisionTypeTable[agentType]; ok {
		if dt, ok := byRequest[requestType]; ok {
			return dt
		}
	}
	return fmt.Sprintf("%s_decision", agentType)
}

// ProcessResponse routes a single agent response through the approval
// workflow. Responses not flagged for approval pass through with no result.
func (r *Router) ProcessResponse(ctx context.Context, resp *agent.Response) (*Result, error) {
	if !resp.RequiresApproval() {
		return nil, nil
	}

	approvalID := uuid.New().String()
	decisionType := DeriveDecisionType(resp.AgentType, resp.RequestType())

	policy, ok := r.policies[resp.AgentType]
	if !ok {
		policy = fallbackPolicy
	}

	humanRequired := false
	for _, t := range policy.HumanRequiredTypes {
		if t == decisionType {
			humanRequired = true
			break
		}
	}
	autoApprove := resp.Confidence >= policy.AutoApproveThreshold && !humanRequired
	escalation := resp.Confidence < policy.EscalationThreshold

	result := &Result{
		ApprovalID:         approvalID,
		DecisionType:       decisionType,
		AutoApproved:       autoApprove,
		EscalationRequired: escalation,
		Confidence:         resp.Confidence,
	}

	// The pipeline decision makes the routing auditable: the maker scores
	// approve/reject/modify with values reflecting the agent's confidence.
	if r.pipeline != nil {
		d, err := r.pipeline.MakeDecision(ctx, map[string]interface{}{
			"approval_id":   approvalID,
			"agent_type":    string(resp.AgentType),
			"decision_type": decisionType,
			"scenario":      "approval_routing",
		}, []decision.Option{
			{ID: "approve", Value: floatPtr(resp.Confidence * 100)},
			{ID: "reject", Value: floatPtr((1 - resp.Confidence) * 100)},
			{ID: "modify", Value: floatPtr(50)},
		}, nil)
		if err != nil {
			return nil, fmt.Errorf("failed to record approval decision: %w", err)
		}
		result.PipelineDecisionID = d.ID
	}

	status := repository.StatusPending
	if autoApprove {
		status = repository.StatusApproved
	}
	record := &repository.AgentDecision{
		ApprovalID:         approvalID,
		AgentType:          string(resp.AgentType),
		DecisionType:       decisionType,
		Confidence:         resp.Confidence,
		Summary:            truncate(resp.Content, 500),
		Data:               resp.Data(),
		PipelineDecisionID: result.PipelineDecisionID,
		Status:             status,
		AutoApproved:       autoApprove,
		EscalationRequired: escalation,
	}
	if err := r.repo.CreateDecision(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist approval record: %w", err)
	}

	result.ResponseText = r.composeResponseText(result)

	r.log.Info().
		Str("approval_id", approvalID).
		Str("decision_type", decisionType).
		Bool("auto_approved", autoApprove).
		Bool("escalation_required", escalation).
		Msg("Agent response routed through approval")
	return result, nil
}

// ApproveDecision resolves a pending approval and, when a pipeline decision
// was recorded, feeds a success outcome back to the pipeline.
func (r *Router) ApproveDecision(ctx context.Context, approvalID, approver string) error {
	if err := r.repo.UpdateDecisionStatus(ctx, approvalID, repository.StatusApproved, approver, ""); err != nil {
		return err
	}
	return r.feedOutcome(ctx, approvalID, decision.OutcomeSuccess)
}

// RejectDecision resolves a pending approval negatively and feeds a failure
// outcome back to the pipeline when possible.
func (r *Router) RejectDecision(ctx context.Context, approvalID, approver, reason string) error {
	if err := r.repo.UpdateDecisionStatus(ctx, approvalID, repository.StatusRejected, approver, reason); err != nil {
		return err
	}
	return r.feedOutcome(ctx, approvalID, decision.OutcomeFailure)
}

func (r *Router) feedOutcome(ctx context.Context, approvalID, outcome string) error {
	if r.pipeline == nil {
		return nil
	}
	record, err := r.repo.GetDecision(ctx, approvalID)
	if err != nil {
		return err
	}
	if record.PipelineDecisionID == "" {
		return nil
	}

	quality := 0.9
	if outcome == decision.OutcomeFailure {
		quality = 0.1
	}
	_, err = r.pipeline.ProcessFeedback(ctx, record.PipelineDecisionID, map[string]interface{}{
		"actual_outcome": outcome,
		"quality":        quality,
		"relevance":      0.8,
		"category":       record.DecisionType,
	}, false, false)
	if err != nil {
		// the repository state is already updated; feedback is best effort
		r.log.Warn().Err(err).Str("approval_id", approvalID).Msg("Failed to feed approval outcome to pipeline")
	}
	return nil
}

func (r *Router) composeResponseText(res *Result) string {
	pct := int(res.Confidence * 100)
	switch {
	case res.AutoApproved:
		return fmt.Sprintf("Auto-approved %s with confidence %d%% (approval %s).", res.DecisionType, pct, res.ApprovalID)
	case res.EscalationRequired:
		return fmt.Sprintf("Escalated %s for review: confidence %d%% is below the escalation threshold (approval %s).", res.DecisionType, pct, res.ApprovalID)
	default:
		return fmt.Sprintf("Pending approval: %s with confidence %d%% awaits sign-off (approval %s).", res.DecisionType, pct, res.ApprovalID)
	}
}

// truncate cuts on a rune boundary so multi-byte characters survive
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return strings.TrimSpace(string(runes[:max])) + "…"
}

func floatPtr(v float64) *float64 { return &v }

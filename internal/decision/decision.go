// Package decision implements the decision pipeline: creation, validation,
// tracking, execution, feedback processing and learning-driven confidence
// adjustment for agent decisions.
package decision

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Type classifies what kind of choice a decision represents
type Type string

const (
	TypeAction         Type = "action"
	TypeRecommendation Type = "recommendation"
	TypeOptimization   Type = "optimization"
	TypeAllocation     Type = "allocation"
	TypePrioritization Type = "prioritization"
	TypeScheduling     Type = "scheduling"
	TypeSelection      Type = "selection"
	TypeClassification Type = "classification"
	TypePrediction     Type = "prediction"
	TypeCustom         Type = "custom"
)

// Status represents a decision's position in its lifecycle
type Status string

const (
	StatusPending    Status = "pending"
	StatusValidating Status = "validating"
	StatusApproved   Status = "approved"
	StatusRejected   Status = "rejected"
	StatusExecuting  Status = "executing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCanceled   Status = "canceled"
	StatusExpired    Status = "expired"
)

// allowedTransitions defines the decision state machine.
// Execution may begin directly from pending when validation is skipped.
var allowedTransitions = map[Status][]Status{
	StatusPending:    {StatusValidating, StatusApproved, StatusRejected, StatusExecuting, StatusCanceled, StatusExpired},
	StatusValidating: {StatusApproved, StatusRejected, StatusCanceled, StatusExpired},
	StatusApproved:   {StatusExecuting, StatusCanceled, StatusExpired},
	StatusExecuting:  {StatusCompleted, StatusFailed, StatusCanceled},
	StatusFailed:     {StatusPending}, // retry path
}

// CanTransition reports whether moving from one status to another is legal
func CanTransition(from, to Status) bool {
	for _, next := range allowedTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status permits no further transitions
func (s Status) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusCanceled, StatusExpired, StatusRejected:
		return true
	}
	return false
}

// Metadata carries tracking and routing information for a decision
type Metadata struct {
	CorrelationID string    `json:"correlation_id,omitempty"`
	CausationID   string    `json:"causation_id,omitempty"`
	Source        string    `json:"source,omitempty"`
	Target        string    `json:"target,omitempty"`
	Status        Status    `json:"status"`
	RetryCount    int       `json:"retry_count"`
	MaxRetries    int       `json:"max_retries"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Decision is an immutable record of a choice made by an agent. The action,
// confidence and reasoning never change after creation; only the metadata
// status fields advance as the decision moves through the pipeline.
type Decision struct {
	ID               string                 `json:"decision_id"`
	Type             Type                   `json:"decision_type"`
	Action           string                 `json:"action"`
	Confidence       float64                `json:"confidence"`
	Reasoning        string                 `json:"reasoning"`
	Alternatives     []string               `json:"alternatives"`
	Context          map[string]interface{} `json:"context"`
	BatteryEfficient bool                   `json:"battery_efficient"`
	NetworkEfficient bool                   `json:"network_efficient"`
	Metadata         Metadata               `json:"metadata"`
}

// New creates a decision in pending status with a fresh id and timestamps
func New(decisionType Type, action string, confidence float64, reasoning string) *Decision {
	now := time.Now().UTC()
	return &Decision{
		ID:         uuid.New().String(),
		Type:       decisionType,
		Action:     action,
		Confidence: confidence,
		Reasoning:  reasoning,
		Context:    make(map[string]interface{}),
		Metadata: Metadata{
			Status:     StatusPending,
			MaxRetries: 3,
			CreatedAt:  now,
			UpdatedAt:  now,
		},
	}
}

// Clone returns a deep copy of the decision. Readers outside the tracker
// always receive clones so the stored value cannot be mutated externally.
func (d *Decision) Clone() *Decision {
	c := *d
	c.Alternatives = append([]string(nil), d.Alternatives...)
	c.Context = deepCopyMap(d.Context)
	return &c
}

// Status returns the current lifecycle status
func (d *Decision) Status() Status {
	return d.Metadata.Status
}

// ToMap serializes the decision to its schema-less map form. Unknown context
// keys are preserved verbatim.
func (d *Decision) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"decision_id":       d.ID,
		"decision_type":     string(d.Type),
		"action":            d.Action,
		"confidence":        d.Confidence,
		"reasoning":         d.Reasoning,
		"alternatives":      append([]string(nil), d.Alternatives...),
		"context":           deepCopyMap(d.Context),
		"battery_efficient": d.BatteryEfficient,
		"network_efficient": d.NetworkEfficient,
		"metadata": map[string]interface{}{
			"correlation_id": d.Metadata.CorrelationID,
			"causation_id":   d.Metadata.CausationID,
			"source":         d.Metadata.Source,
			"target":         d.Metadata.Target,
			"status":         string(d.Metadata.Status),
			"retry_count":    d.Metadata.RetryCount,
			"max_retries":    d.Metadata.MaxRetries,
			"created_at":     d.Metadata.CreatedAt.Format(time.RFC3339Nano),
			"updated_at":     d.Metadata.UpdatedAt.Format(time.RFC3339Nano),
		},
	}
}

// FromMap reconstructs a decision from its map form
func FromMap(m map[string]interface{}) (*Decision, error) {
	d := &Decision{Context: make(map[string]interface{})}

	id, ok := m["decision_id"].(string)
	if !ok || id == "" {
		return nil, fmt.Errorf("decision map missing decision_id")
	}
	d.ID = id

	if v, ok := m["decision_type"].(string); ok {
		d.Type = Type(v)
	}
	if v, ok := m["action"].(string); ok {
		d.Action = v
	}
	if v, ok := m["confidence"].(float64); ok {
		d.Confidence = v
	}
	if v, ok := m["reasoning"].(string); ok {
		d.Reasoning = v
	}
	switch alts := m["alternatives"].(type) {
	case []string:
		d.Alternatives = append([]string(nil), alts...)
	case []interface{}:
		for _, a := range alts {
			if s, ok := a.(string); ok {
				d.Alternatives = append(d.Alternatives, s)
			}
		}
	}
	if ctx, ok := m["context"].(map[string]interface{}); ok {
		d.Context = deepCopyMap(ctx)
	}
	if v, ok := m["battery_efficient"].(bool); ok {
		d.BatteryEfficient = v
	}
	if v, ok := m["network_efficient"].(bool); ok {
		d.NetworkEfficient = v
	}

	meta, ok := m["metadata"].(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("decision map missing metadata")
	}
	if v, ok := meta["correlation_id"].(string); ok {
		d.Metadata.CorrelationID = v
	}
	if v, ok := meta["causation_id"].(string); ok {
		d.Metadata.CausationID = v
	}
	if v, ok := meta["source"].(string); ok {
		d.Metadata.Source = v
	}
	if v, ok := meta["target"].(string); ok {
		d.Metadata.Target = v
	}
	if v, ok := meta["status"].(string); ok {
		d.Metadata.Status = Status(v)
	}
	d.Metadata.RetryCount = toInt(meta["retry_count"])
	d.Metadata.MaxRetries = toInt(meta["max_retries"])

	var err error
	if d.Metadata.CreatedAt, err = parseTime(meta["created_at"]); err != nil {
		return nil, fmt.Errorf("invalid created_at: %w", err)
	}
	if d.Metadata.UpdatedAt, err = parseTime(meta["updated_at"]); err != nil {
		return nil, fmt.Errorf("invalid updated_at: %w", err)
	}

	return d, nil
}

func parseTime(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		return time.Parse(time.RFC3339Nano, t)
	default:
		return time.Time{}, fmt.Errorf("unsupported time value %v", v)
	}
}

func toInt(v interface{}) int {
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

// deepCopyMap copies a schema-less map including nested maps and slices
func deepCopyMap(src map[string]interface{}) map[string]interface{} {
	if src == nil {
		return nil
	}
	dst := make(map[string]interface{}, len(src))
	for k, v := range src {
		dst[k] = deepCopyValue(v)
	}
	return dst
}

func deepCopyValue(v interface{}) interface{} {
	switch val := v.(type) {
	case map[string]interface{}:
		return deepCopyMap(val)
	case map[string]float64:
		cp := make(map[string]float64, len(val))
		for k, f := range val {
			cp[k] = f
		}
		return cp
	case []interface{}:
		cp := make([]interface{}, len(val))
		for i, item := range val {
			cp[i] = deepCopyValue(item)
		}
		return cp
	case []string:
		return append([]string(nil), val...)
	default:
		return v
	}
}

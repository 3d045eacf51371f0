package repository

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-memory Repository. Safe for concurrent use.
type Memory struct {
	mu        sync.RWMutex
	decisions map[string]*AgentDecision
	order     []string
}

// NewMemory creates an empty in-memory repository
func NewMemory() *Memory {
	return &Memory{decisions: make(map[string]*AgentDecision)}
}

// CreateDecision stores a new decision record
func (m *Memory) CreateDecision(ctx context.Context, d *AgentDecision) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	stored := *d
	if stored.CreatedAt.IsZero() {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	m.decisions[stored.ApprovalID] = &stored
	m.order = append(m.order, stored.ApprovalID)
	return nil
}

// UpdateDecisionStatus advances a stored decision's status
func (m *Memory) UpdateDecisionStatus(ctx context.Context, approvalID, status, actor, reason string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	d, ok := m.decisions[approvalID]
	if !ok {
		return &ErrNotFound{ApprovalID: approvalID}
	}
	d.Status = status
	d.Approver = actor
	d.Reason = reason
	d.UpdatedAt = time.Now().UTC()
	return nil
}

// GetDecision returns a copy of the stored decision
func (m *Memory) GetDecision(ctx context.Context, approvalID string) (*AgentDecision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	d, ok := m.decisions[approvalID]
	if !ok {
		return nil, &ErrNotFound{ApprovalID: approvalID}
	}
	cp := *d
	return &cp, nil
}

// ListDecisions returns copies in insertion order, newest last
func (m *Memory) ListDecisions(ctx context.Context, filters ListFilters) ([]*AgentDecision, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []*AgentDecision
	for _, id := range m.order {
		d := m.decisions[id]
		if filters.AgentType != "" && d.AgentType != filters.AgentType {
			continue
		}
		if filters.Status != "" && d.Status != filters.Status {
			continue
		}
		if !filters.Since.IsZero() && d.CreatedAt.Before(filters.Since) {
			continue
		}
		cp := *d
		out = append(out, &cp)
		if filters.Limit > 0 && len(out) >= filters.Limit {
			break
		}
	}
	return out, nil
}

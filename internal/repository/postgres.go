package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// PoolInterface defines the database pool operations the repository needs
type PoolInterface interface {
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// Postgres persists agent decisions in PostgreSQL
type Postgres struct {
	pool PoolInterface
	log  zerolog.Logger
}

// NewPostgres creates a repository over the given pool interface
func NewPostgres(pool PoolInterface, log zerolog.Logger) *Postgres {
	return &Postgres{
		pool: pool,
		log:  log.With().Str("component", "decision_repository").Logger(),
	}
}

// NewPostgresWithPool creates a repository over a pgxpool.Pool
func NewPostgresWithPool(pool *pgxpool.Pool, log zerolog.Logger) *Postgres {
	return NewPostgres(pool, log)
}

// CreateDecision inserts a new agent decision record
func (p *Postgres) CreateDecision(ctx context.Context, d *AgentDecision) error {
	data, err := json.Marshal(d.Data)
	if err != nil {
		p.log.Warn().Err(err).Msg("Failed to marshal decision data, storing empty object")
		data = []byte("{}")
	}

	now := time.Now().UTC()
	createdAt := d.CreatedAt
	if createdAt.IsZero() {
		createdAt = now
	}

	query := `
		INSERT INTO agent_decisions (
			approval_id, agent_type, decision_type, confidence, summary,
			data, pipeline_decision_id, status, auto_approved,
			escalation_required, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5,
			$6, $7, $8, $9,
			$10, $11, $12
		)
	`

	_, err = p.pool.Exec(
		ctx,
		query,
		d.ApprovalID,
		d.AgentType,
		d.DecisionType,
		d.Confidence,
		d.Summary,
		data,
		d.PipelineDecisionID,
		d.Status,
		d.AutoApproved,
		d.EscalationRequired,
		createdAt,
		now,
	)
	if err != nil {
		return fmt.Errorf("failed to insert agent decision: %w", err)
	}

	p.log.Debug().
		Str("approval_id", d.ApprovalID).
		Str("decision_type", d.DecisionType).
		Str("status", d.Status).
		Msg("Agent decision persisted")
	return nil
}

// UpdateDecisionStatus advances a stored decision's status
func (p *Postgres) UpdateDecisionStatus(ctx context.Context, approvalID, status, actor, reason string) error {
	query := `
		UPDATE agent_decisions
		SET status = $2, approver = $3, reason = $4, updated_at = $5
		WHERE approval_id = $1
	`

	tag, err := p.pool.Exec(ctx, query, approvalID, status, actor, reason, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update agent decision: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return &ErrNotFound{ApprovalID: approvalID}
	}
	return nil
}

// GetDecision fetches a single decision by approval id
func (p *Postgres) GetDecision(ctx context.Context, approvalID string) (*AgentDecision, error) {
	query := `
		SELECT approval_id, agent_type, decision_type, confidence, summary,
		       data, pipeline_decision_id, status, auto_approved,
		       escalation_required, approver, reason, created_at, updated_at
		FROM agent_decisions
		WHERE approval_id = $1
	`

	d, err := scanDecision(p.pool.QueryRow(ctx, query, approvalID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, &ErrNotFound{ApprovalID: approvalID}
		}
		return nil, fmt.Errorf("failed to fetch agent decision: %w", err)
	}
	return d, nil
}

// ListDecisions fetches decisions matching the filters, oldest first
func (p *Postgres) ListDecisions(ctx context.Context, filters ListFilters) ([]*AgentDecision, error) {
	query := `
		SELECT approval_id, agent_type, decision_type, confidence, summary,
		       data, pipeline_decision_id, status, auto_approved,
		       escalation_required, approver, reason, created_at, updated_at
		FROM agent_decisions
		WHERE ($1 = '' OR agent_type = $1)
		  AND ($2 = '' OR status = $2)
		  AND ($3::timestamptz IS NULL OR created_at >= $3)
		ORDER BY created_at ASC
		LIMIT $4
	`

	limit := filters.Limit
	if limit <= 0 {
		limit = 100
	}
	var since interface{}
	if !filters.Since.IsZero() {
		since = filters.Since
	}

	rows, err := p.pool.Query(ctx, query, filters.AgentType, filters.Status, since, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list agent decisions: %w", err)
	}
	defer rows.Close()

	var out []*AgentDecision
	for rows.Next() {
		d, err := scanDecision(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanDecision(row pgx.Row) (*AgentDecision, error) {
	var d AgentDecision
	var data []byte
	var approver, reason *string
	err := row.Scan(
		&d.ApprovalID,
		&d.AgentType,
		&d.DecisionType,
		&d.Confidence,
		&d.Summary,
		&data,
		&d.PipelineDecisionID,
		&d.Status,
		&d.AutoApproved,
		&d.EscalationRequired,
		&approver,
		&reason,
		&d.CreatedAt,
		&d.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if approver != nil {
		d.Approver = *approver
	}
	if reason != nil {
		d.Reason = *reason
	}
	if len(data) > 0 {
		if err := json.Unmarshal(data, &d.Data); err != nil {
			return nil, fmt.Errorf("failed to decode decision data: %w", err)
		}
	}
	return &d, nil
}

package decision

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Stats holds the tracker's global aggregates, maintained incrementally on
// every insert and status change.
type Stats struct {
	TotalDecisions    int            `json:"total_decisions"`
	DecisionsByStatus map[Status]int `json:"decisions_by_status"`
	DecisionsByType   map[Type]int   `json:"decisions_by_type"`
	AverageConfidence float64        `json:"average_confidence"`
}

// HistoryFilters narrows GetHistory results. Zero values are ignored.
type HistoryFilters struct {
	Type          Type
	Status        Status
	MinConfidence float64
	Since         time.Time
}

// Tracker owns the decision table and history. It is the sole component
// permitted to advance decision status. External readers receive copies.
type Tracker struct {
	mu            sync.Mutex
	decisions     map[string]*Decision
	history       []string
	stats         Stats
	sumConfidence float64

	offline    []Event
	offlineCap int

	publisher Publisher
	log       zerolog.Logger
}

// DefaultOfflineBufferCap bounds the offline event queue
const DefaultOfflineBufferCap = 1000

// NewTracker creates a decision tracker publishing through the given
// publisher. offlineCap <= 0 selects the default buffer cap.
func NewTracker(publisher Publisher, offlineCap int, log zerolog.Logger) *Tracker {
	if offlineCap <= 0 {
		offlineCap = DefaultOfflineBufferCap
	}
	return &Tracker{
		decisions: make(map[string]*Decision),
		stats: Stats{
			DecisionsByStatus: make(map[Status]int),
			DecisionsByType:   make(map[Type]int),
		},
		offlineCap: offlineCap,
		publisher:  publisher,
		log:        log.With().Str("component", "decision_tracker").Logger(),
	}
}

// Track stores a decision and publishes decision_tracked, either live or
// onto the offline queue. Re-tracking an already known decision is a no-op.
func (t *Tracker) Track(ctx context.Context, d *Decision, offline bool) error {
	t.mu.Lock()
	if _, exists := t.decisions[d.ID]; exists {
		t.mu.Unlock()
		return nil
	}
	if offline && len(t.offline) >= t.offlineCap {
		t.mu.Unlock()
		return NewError(ErrCodeOfflineBufferFull, "offline decision buffer full", map[string]interface{}{
			"capacity": t.offlineCap,
		})
	}

	stored := d.Clone()
	t.decisions[d.ID] = stored
	t.history = append(t.history, d.ID)

	t.stats.TotalDecisions++
	t.stats.DecisionsByStatus[stored.Metadata.Status]++
	t.stats.DecisionsByType[stored.Type]++
	t.sumConfidence += stored.Confidence
	t.stats.AverageConfidence = t.sumConfidence / float64(t.stats.TotalDecisions)

	event := NewEvent(EventDecisionTracked, map[string]interface{}{
		"decision_id":   stored.ID,
		"decision_type": string(stored.Type),
		"action":        stored.Action,
		"confidence":    stored.Confidence,
		"status":        string(stored.Metadata.Status),
	})

	if offline {
		err := t.enqueueOfflineLocked(event)
		t.mu.Unlock()
		return err
	}
	t.mu.Unlock()

	t.publish(ctx, event)
	return nil
}

// UpdateStatus advances a decision through its state machine. The critical
// section covers both the transition check and the write, so concurrent
// updates for a single id are linearizable.
func (t *Tracker) UpdateStatus(ctx context.Context, id string, status Status, offline bool) error {
	t.mu.Lock()
	d, exists := t.decisions[id]
	if !exists {
		t.mu.Unlock()
		return Errorf(ErrCodeNotFound, "decision %s not found", id)
	}

	previous := d.Metadata.Status
	if !CanTransition(previous, status) {
		t.mu.Unlock()
		return NewError(ErrCodeInvalidTransition, "illegal status transition", map[string]interface{}{
			"decision_id": id,
			"from":        string(previous),
			"to":          string(status),
		})
	}

	d.Metadata.Status = status
	d.Metadata.UpdatedAt = time.Now().UTC()
	t.stats.DecisionsByStatus[previous]--
	if t.stats.DecisionsByStatus[previous] == 0 {
		delete(t.stats.DecisionsByStatus, previous)
	}
	t.stats.DecisionsByStatus[status]++

	event := NewEvent(EventDecisionStatusUpdated, map[string]interface{}{
		"decision_id":     id,
		"previous_status": string(previous),
		"status":          string(status),
	})
	t.mu.Unlock()

	// Offline status changes are applied silently; the queued
	// decision_tracked entry is the offline unit of publication.
	if offline {
		return nil
	}

	t.publish(ctx, event)
	return nil
}

// Retry moves a failed decision back to pending, bumping retry_count.
// Returns an error once max_retries is exhausted.
func (t *Tracker) Retry(ctx context.Context, id string) error {
	t.mu.Lock()
	d, exists := t.decisions[id]
	if !exists {
		t.mu.Unlock()
		return Errorf(ErrCodeNotFound, "decision %s not found", id)
	}
	if d.Metadata.Status != StatusFailed {
		t.mu.Unlock()
		return NewError(ErrCodeInvalidTransition, "only failed decisions can be retried", map[string]interface{}{
			"decision_id": id,
			"status":      string(d.Metadata.Status),
		})
	}
	if d.Metadata.RetryCount >= d.Metadata.MaxRetries {
		t.mu.Unlock()
		return NewError(ErrCodeInvalidTransition, "max retries exhausted", map[string]interface{}{
			"decision_id": id,
			"retry_count": d.Metadata.RetryCount,
		})
	}

	d.Metadata.RetryCount++
	t.stats.DecisionsByStatus[StatusFailed]--
	if t.stats.DecisionsByStatus[StatusFailed] == 0 {
		delete(t.stats.DecisionsByStatus, StatusFailed)
	}
	t.stats.DecisionsByStatus[StatusPending]++
	d.Metadata.Status = StatusPending
	d.Metadata.UpdatedAt = time.Now().UTC()

	event := NewEvent(EventDecisionStatusUpdated, map[string]interface{}{
		"decision_id":     id,
		"previous_status": string(StatusFailed),
		"status":          string(StatusPending),
		"retry_count":     d.Metadata.RetryCount,
	})
	t.mu.Unlock()

	t.publish(ctx, event)
	return nil
}

// GetDecision returns a copy of the tracked decision
func (t *Tracker) GetDecision(id string) (*Decision, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	d, exists := t.decisions[id]
	if !exists {
		return nil, Errorf(ErrCodeNotFound, "decision %s not found", id)
	}
	return d.Clone(), nil
}

// GetHistory returns copies of tracked decisions in insertion order,
// optionally narrowed by filters. The returned slice is a consistent
// snapshot.
func (t *Tracker) GetHistory(filters *HistoryFilters) []*Decision {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]*Decision, 0, len(t.history))
	for _, id := range t.history {
		d := t.decisions[id]
		if filters != nil {
			if filters.Type != "" && d.Type != filters.Type {
				continue
			}
			if filters.Status != "" && d.Metadata.Status != filters.Status {
				continue
			}
			if filters.MinConfidence > 0 && d.Confidence < filters.MinConfidence {
				continue
			}
			if !filters.Since.IsZero() && d.Metadata.CreatedAt.Before(filters.Since) {
				continue
			}
		}
		out = append(out, d.Clone())
	}
	return out
}

// GetStats returns a copy of the global aggregates
func (t *Tracker) GetStats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	byStatus := make(map[Status]int, len(t.stats.DecisionsByStatus))
	for k, v := range t.stats.DecisionsByStatus {
		byStatus[k] = v
	}
	byType := make(map[Type]int, len(t.stats.DecisionsByType))
	for k, v := range t.stats.DecisionsByType {
		byType[k] = v
	}
	return Stats{
		TotalDecisions:    t.stats.TotalDecisions,
		DecisionsByStatus: byStatus,
		DecisionsByType:   byType,
		AverageConfidence: t.stats.AverageConfidence,
	}
}

// OfflineQueueSize reports how many events are waiting to be drained
func (t *Tracker) OfflineQueueSize() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.offline)
}

// SyncOfflineDecisions drains the offline queue, re-publishing events in
// original order. The queue is cleared only when every publish succeeds;
// on failure the unpublished tail is retained for the next drain.
func (t *Tracker) SyncOfflineDecisions(ctx context.Context) (int, error) {
	t.mu.Lock()
	pending := t.offline
	t.offline = nil
	t.mu.Unlock()

	for i, event := range pending {
		if err := t.publisher.Publish(ctx, event); err != nil {
			t.mu.Lock()
			t.offline = append(pending[i:], t.offline...)
			t.mu.Unlock()
			return i, err
		}
	}

	if len(pending) > 0 {
		t.log.Info().Int("published", len(pending)).Msg("Offline decisions synced")
	}
	return len(pending), nil
}

func (t *Tracker) enqueueOfflineLocked(event Event) error {
	if len(t.offline) >= t.offlineCap {
		return NewError(ErrCodeOfflineBufferFull, "offline decision buffer full", map[string]interface{}{
			"capacity": t.offlineCap,
		})
	}
	t.offline = append(t.offline, event)
	return nil
}

// publish delivers an event, logging failures without propagating them.
// The tracker prioritizes liveness over publication atomicity.
func (t *Tracker) publish(ctx context.Context, event Event) {
	if t.publisher == nil {
		return
	}
	if err := t.publisher.Publish(ctx, event); err != nil {
		t.log.Warn().Err(err).Str("event", event.Name).Msg("Failed to publish tracker event")
	}
}

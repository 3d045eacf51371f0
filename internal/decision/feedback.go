package decision

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Feedback is a stored observation about a decision's real-world outcome
type Feedback struct {
	ID         string                 `json:"feedback_id"`
	DecisionID string                 `json:"decision_id"`
	Data       map[string]interface{} `json:"feedback_data"`
	CreatedAt  time.Time              `json:"created_at"`
}

// FeedbackProcessor stores feedback per decision and globally, and publishes
// feedback_processed notifications.
type FeedbackProcessor struct {
	mu         sync.Mutex
	byDecision map[string][]*Feedback
	all        []*Feedback

	offline    []Event
	offlineCap int

	publisher Publisher
	log       zerolog.Logger
}

// NewFeedbackProcessor creates a feedback processor. offlineCap <= 0 selects
// the default buffer cap.
func NewFeedbackProcessor(publisher Publisher, offlineCap int, log zerolog.Logger) *FeedbackProcessor {
	if offlineCap <= 0 {
		offlineCap = DefaultOfflineBufferCap
	}
	return &FeedbackProcessor{
		byDecision: make(map[string][]*Feedback),
		offlineCap: offlineCap,
		publisher:  publisher,
		log:        log.With().Str("component", "feedback_processor").Logger(),
	}
}

// ProcessFeedback assigns a feedback id and stores the entry. In offline
// mode the feedback_processed event is buffered for a later drain.
func (p *FeedbackProcessor) ProcessFeedback(ctx context.Context, decisionID string, data map[string]interface{}, offline bool) (*Feedback, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	fb := &Feedback{
		ID:         uuid.New().String(),
		DecisionID: decisionID,
		Data:       deepCopyMap(data),
		CreatedAt:  time.Now().UTC(),
	}

	event := NewEvent(EventFeedbackProcessed, summarize(fb))

	p.mu.Lock()
	if offline && len(p.offline) >= p.offlineCap {
		p.mu.Unlock()
		return nil, NewError(ErrCodeOfflineBufferFull, "offline feedback buffer full", map[string]interface{}{
			"capacity": p.offlineCap,
		})
	}
	p.byDecision[decisionID] = append(p.byDecision[decisionID], fb)
	p.all = append(p.all, fb)
	if offline {
		p.offline = append(p.offline, event)
		p.mu.Unlock()
		return fb, nil
	}
	p.mu.Unlock()

	if p.publisher != nil {
		if err := p.publisher.Publish(ctx, event); err != nil {
			p.log.Warn().Err(err).Str("feedback_id", fb.ID).Msg("Failed to publish feedback event")
		}
	}

	p.log.Debug().
		Str("feedback_id", fb.ID).
		Str("decision_id", decisionID).
		Msg("Feedback processed")
	return fb, nil
}

// summarize reduces feedback to the well-known event payload fields,
// preserving only keys that are present.
func summarize(fb *Feedback) map[string]interface{} {
	payload := map[string]interface{}{
		"feedback_id": fb.ID,
		"decision_id": fb.DecisionID,
	}
	for _, key := range []string{"quality", "relevance", "category", "battery_efficient", "network_efficient"} {
		if v, ok := fb.Data[key]; ok {
			payload[key] = v
		}
	}
	return payload
}

// GetFeedback returns copies of all feedback stored for a decision
func (p *FeedbackProcessor) GetFeedback(decisionID string) []*Feedback {
	p.mu.Lock()
	defer p.mu.Unlock()

	entries := p.byDecision[decisionID]
	out := make([]*Feedback, len(entries))
	for i, fb := range entries {
		out[i] = fb.clone()
	}
	return out
}

// Query returns feedback matching every filter. Filter keys match either a
// top-level attribute (decision_id, feedback_id) or any feedback_data key.
func (p *FeedbackProcessor) Query(filters map[string]interface{}) []*Feedback {
	p.mu.Lock()
	defer p.mu.Unlock()

	var out []*Feedback
	for _, fb := range p.all {
		if matchesFeedback(fb, filters) {
			out = append(out, fb.clone())
		}
	}
	return out
}

// OfflineQueueSize reports buffered feedback events waiting to be drained
func (p *FeedbackProcessor) OfflineQueueSize() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.offline)
}

// SyncOfflineFeedback drains buffered feedback events in original order
func (p *FeedbackProcessor) SyncOfflineFeedback(ctx context.Context) (int, error) {
	p.mu.Lock()
	pending := p.offline
	p.offline = nil
	p.mu.Unlock()

	for i, event := range pending {
		if err := p.publisher.Publish(ctx, event); err != nil {
			p.mu.Lock()
			p.offline = append(pending[i:], p.offline...)
			p.mu.Unlock()
			return i, err
		}
	}
	return len(pending), nil
}

func matchesFeedback(fb *Feedback, filters map[string]interface{}) bool {
	for key, want := range filters {
		switch key {
		case "decision_id":
			if fb.DecisionID != want {
				return false
			}
		case "feedback_id":
			if fb.ID != want {
				return false
			}
		default:
			got, ok := fb.Data[key]
			if !ok || got != want {
				return false
			}
		}
	}
	return true
}

func (fb *Feedback) clone() *Feedback {
	c := *fb
	c.Data = deepCopyMap(fb.Data)
	return &c
}

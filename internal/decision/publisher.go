package decision

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// Logical notification names published by the pipeline
const (
	EventDecisionTracked       = "decision_tracked"
	EventDecisionStatusUpdated = "decision_status_updated"
	EventDecisionExecuted      = "decision_executed"
	EventFeedbackProcessed     = "feedback_processed"
	EventLearningCompleted     = "learning_completed"
	EventLearningReset         = "learning_reset"
)

// Event is a pipeline notification. Payload carries the relevant decision or
// feedback snapshot fields; Timestamp is set at creation.
type Event struct {
	ID        string                 `json:"event_id"`
	Name      string                 `json:"event"`
	Payload   map[string]interface{} `json:"payload"`
	Timestamp time.Time              `json:"timestamp"`
}

// NewEvent creates a pipeline event with a fresh id and UTC timestamp
func NewEvent(name string, payload map[string]interface{}) Event {
	return Event{
		ID:        uuid.New().String(),
		Name:      name,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
}

// Publisher delivers pipeline notifications to interested subscribers
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NATSPublisher publishes pipeline events onto NATS subjects of the form
// {prefix}{event_name}.
type NATSPublisher struct {
	nc     *nats.Conn
	prefix string
	log    zerolog.Logger
}

// NewNATSPublisher creates a NATS-backed event publisher. An empty prefix
// defaults to "flipsync.decisions.".
func NewNATSPublisher(nc *nats.Conn, prefix string, log zerolog.Logger) *NATSPublisher {
	if prefix == "" {
		prefix = "flipsync.decisions."
	}
	return &NATSPublisher{
		nc:     nc,
		prefix: prefix,
		log:    log.With().Str("component", "nats_publisher").Logger(),
	}
}

// Publish serializes the event to JSON and publishes it
func (p *NATSPublisher) Publish(ctx context.Context, event Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	if !p.nc.IsConnected() {
		return fmt.Errorf("event publisher not connected")
	}

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := p.prefix + event.Name
	if err := p.nc.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	p.log.Debug().
		Str("event", event.Name).
		Str("subject", subject).
		Msg("Published pipeline event")
	return nil
}

// MemoryPublisher records events in memory. Used in tests and as the default
// publisher when no NATS connection is configured.
type MemoryPublisher struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryPublisher creates an in-memory publisher
func NewMemoryPublisher() *MemoryPublisher {
	return &MemoryPublisher{}
}

// Publish appends the event to the in-memory log
func (p *MemoryPublisher) Publish(ctx context.Context, event Event) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// Events returns a copy of all published events in order
func (p *MemoryPublisher) Events() []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Event(nil), p.events...)
}

// EventsNamed returns published events matching the given name
func (p *MemoryPublisher) EventsNamed(name string) []Event {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []Event
	for _, e := range p.events {
		if e.Name == name {
			out = append(out, e)
		}
	}
	return out
}

// Reset clears the event log
func (p *MemoryPublisher) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = nil
}

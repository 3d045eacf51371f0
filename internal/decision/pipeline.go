package decision

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

// Executor applies a completed decision to the outside world. The default
// passthrough executor performs no side effect; callers that need real
// execution inject their own and a failure maps the decision to failed.
type Executor interface {
	Execute(ctx context.Context, d *Decision) error
}

// PassthroughExecutor is the default no-op executor
type PassthroughExecutor struct{}

// Execute does nothing and always succeeds
func (PassthroughExecutor) Execute(ctx context.Context, d *Decision) error {
	return ctx.Err()
}

// Pipeline composes the maker, validator, tracker, feedback processor,
// learning engine and publisher into the decision workflow. Collaborators
// are injected and treated as exclusively owned references.
type Pipeline struct {
	maker     *Maker
	validator *Validator
	tracker   *Tracker
	feedback  *FeedbackProcessor
	learner   *LearningEngine
	executor  Executor
	publisher Publisher

	metrics *PipelineMetrics
	log     zerolog.Logger
}

// PipelineConfig wires a pipeline's collaborators. Nil fields receive
// defaults: a memory publisher and a passthrough executor.
type PipelineConfig struct {
	Publisher        Publisher
	Executor         Executor
	OfflineBufferCap int
}

// NewPipeline constructs a pipeline with fresh collaborators
func NewPipeline(cfg PipelineConfig, log zerolog.Logger) *Pipeline {
	publisher := cfg.Publisher
	if publisher == nil {
		publisher = NewMemoryPublisher()
	}
	executor := cfg.Executor
	if executor == nil {
		executor = PassthroughExecutor{}
	}

	plog := log.With().Str("component", "decision_pipeline").Logger()
	return &Pipeline{
		maker:     NewMaker(log),
		validator: NewValidator(log),
		tracker:   NewTracker(publisher, cfg.OfflineBufferCap, log),
		feedback:  NewFeedbackProcessor(publisher, cfg.OfflineBufferCap, log),
		learner:   NewLearningEngine(publisher, log),
		executor:  executor,
		publisher: publisher,
		metrics:   getOrCreatePipelineMetrics(),
		log:       plog,
	}
}

// Validator exposes the rule registry for callers configuring rules
func (p *Pipeline) Validator() *Validator { return p.validator }

// Tracker exposes the decision store for read-side consumers
func (p *Pipeline) Tracker() *Tracker { return p.tracker }

// Learner exposes the learning engine
func (p *Pipeline) Learner() *LearningEngine { return p.learner }

// Feedback exposes the feedback processor
func (p *Pipeline) Feedback() *FeedbackProcessor { return p.feedback }

// MakeDecision enriches the context with accumulated learning adjustments,
// delegates to the maker and tracks the result.
func (p *Pipeline) MakeDecision(ctx context.Context, decisionCtx map[string]interface{}, options []Option, constraints *Constraints) (*Decision, error) {
	start := time.Now()
	defer func() {
		p.metrics.DecisionDuration.Observe(time.Since(start).Seconds())
	}()

	enriched := deepCopyMap(decisionCtx)
	if enriched == nil {
		enriched = make(map[string]interface{})
	}
	enriched["learning_adjustments"] = p.learner.Adjustments()

	d, err := p.maker.MakeDecision(ctx, enriched, options, constraints)
	if err != nil {
		if _, ok := err.(*Error); ok || err == context.Canceled || err == context.DeadlineExceeded || ctx.Err() != nil {
			return nil, err
		}
		return nil, NewError(ErrCodeMaking, err.Error(), nil)
	}

	if err := p.tracker.Track(ctx, d, false); err != nil {
		p.log.Warn().Err(err).Str("decision_id", d.ID).Msg("Failed to track decision")
	}
	p.metrics.DecisionsMade.Inc()
	return d, nil
}

// ValidateDecision runs the rule registry and advances the decision to
// approved or rejected through the tracker.
func (p *Pipeline) ValidateDecision(ctx context.Context, d *Decision) (bool, []string, error) {
	if err := p.tracker.Track(ctx, d, false); err != nil {
		p.log.Warn().Err(err).Str("decision_id", d.ID).Msg("Failed to track decision before validation")
	}
	if err := p.tracker.UpdateStatus(ctx, d.ID, StatusValidating, false); err != nil {
		return false, nil, err
	}

	valid, messages := p.validator.Validate(d)

	next := StatusApproved
	if !valid {
		next = StatusRejected
		p.metrics.ValidationFailures.Inc()
	}
	if err := p.tracker.UpdateStatus(ctx, d.ID, next, false); err != nil {
		return valid, messages, err
	}
	return valid, messages, nil
}

// ExecuteDecision optionally validates, tracks (possibly offline), runs the
// executor and advances the decision to completed or failed. In offline mode
// nothing is published until SyncOfflineDecisions drains the queue.
func (p *Pipeline) ExecuteDecision(ctx context.Context, d *Decision, validate, offline bool) (*Decision, error) {
	if validate {
		valid, messages := p.validator.Validate(d)
		if !valid {
			p.metrics.ValidationFailures.Inc()
			if err := p.tracker.Track(ctx, d, offline); err != nil {
				p.log.Warn().Err(err).Str("decision_id", d.ID).Msg("Failed to track rejected decision")
			}
			if err := p.tracker.UpdateStatus(ctx, d.ID, StatusRejected, offline); err != nil {
				p.log.Warn().Err(err).Str("decision_id", d.ID).Msg("Failed to mark decision rejected")
			}
			return nil, NewError(ErrCodeValidationFailed, "decision failed validation", map[string]interface{}{
				"decision_id": d.ID,
				"messages":    messages,
			})
		}
	}

	if err := p.tracker.Track(ctx, d, offline); err != nil {
		return nil, err
	}
	if err := p.tracker.UpdateStatus(ctx, d.ID, StatusExecuting, offline); err != nil {
		return nil, err
	}

	if err := p.executor.Execute(ctx, d); err != nil {
		p.metrics.ExecutionFailures.Inc()
		if serr := p.tracker.UpdateStatus(ctx, d.ID, StatusFailed, offline); serr != nil {
			p.log.Warn().Err(serr).Str("decision_id", d.ID).Msg("Failed to mark decision failed")
		}
		return nil, NewError(ErrCodeExecution, err.Error(), map[string]interface{}{
			"decision_id": d.ID,
		})
	}

	if err := p.tracker.UpdateStatus(ctx, d.ID, StatusCompleted, offline); err != nil {
		return nil, err
	}
	p.metrics.DecisionsExecuted.Inc()
	p.metrics.OfflineQueueSize.Set(float64(p.tracker.OfflineQueueSize()))

	if !offline && p.publisher != nil {
		event := NewEvent(EventDecisionExecuted, map[string]interface{}{
			"decision_id":   d.ID,
			"decision_type": string(d.Type),
			"action":        d.Action,
			"confidence":    d.Confidence,
			"status":        string(StatusCompleted),
		})
		if err := p.publisher.Publish(ctx, event); err != nil {
			p.log.Warn().Err(err).Str("decision_id", d.ID).Msg("Failed to publish execution event")
		}
	}

	executed, err := p.tracker.GetDecision(d.ID)
	if err != nil {
		return nil, NewError(ErrCodeRetrieval, err.Error(), nil)
	}
	return executed, nil
}

// ProcessFeedback looks up the decision, stores the feedback and feeds the
// learner. Quality, relevance and outcome default sensibly when absent.
func (p *Pipeline) ProcessFeedback(ctx context.Context, decisionID string, feedbackData map[string]interface{}, offline, batteryEfficient bool) (*Feedback, error) {
	d, err := p.tracker.GetDecision(decisionID)
	if err != nil {
		return nil, err
	}

	fb, err := p.feedback.ProcessFeedback(ctx, decisionID, feedbackData, offline)
	if err != nil {
		if _, ok := err.(*Error); ok {
			return nil, err
		}
		return nil, NewError(ErrCodeFeedback, err.Error(), nil)
	}
	p.metrics.FeedbackProcessed.Inc()

	data := LearningData{
		DecisionID:    decisionID,
		DecisionType:  d.Type,
		Confidence:    d.Confidence,
		ActualOutcome: stringField(feedbackData, "actual_outcome", OutcomeUnknown),
		Quality:       floatField(feedbackData, "quality", 0.5),
		Relevance:     floatField(feedbackData, "relevance", 0.5),
		NetworkType:   stringField(feedbackData, "network_type", ""),
	}
	if level, ok := feedbackData["battery_level"].(float64); ok {
		data.BatteryLevel = &level
	}

	if err := p.learner.LearnFromFeedback(ctx, data, offline, batteryEfficient); err != nil {
		return nil, NewError(ErrCodeFeedback, err.Error(), map[string]interface{}{
			"decision_id": decisionID,
		})
	}
	return fb, nil
}

// GetDecision returns a copy of a tracked decision
func (p *Pipeline) GetDecision(id string) (*Decision, error) {
	return p.tracker.GetDecision(id)
}

// GetDecisionHistory returns tracked decisions, optionally filtered
func (p *Pipeline) GetDecisionHistory(filters *HistoryFilters) []*Decision {
	return p.tracker.GetHistory(filters)
}

// SyncOfflineDecisions drains buffered decision and feedback events
func (p *Pipeline) SyncOfflineDecisions(ctx context.Context) (int, error) {
	decisions, err := p.tracker.SyncOfflineDecisions(ctx)
	if err != nil {
		return decisions, err
	}
	feedback, err := p.feedback.SyncOfflineFeedback(ctx)
	p.metrics.OfflineQueueSize.Set(float64(p.tracker.OfflineQueueSize() + p.feedback.OfflineQueueSize()))
	return decisions + feedback, err
}

func stringField(m map[string]interface{}, key, fallback string) string {
	if v, ok := m[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func floatField(m map[string]interface{}, key string, fallback float64) float64 {
	if v, ok := m[key].(float64); ok {
		return v
	}
	return fallback
}

package decision

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Outcome values accepted in learning data
const (
	OutcomeSuccess        = "success"
	OutcomePartialSuccess = "partial_success"
	OutcomeFailure        = "failure"
	OutcomeUnknown        = "unknown"
)

// LearningData is the learner's input, translated from decision feedback
type LearningData struct {
	DecisionID    string   `json:"decision_id"`
	DecisionType  Type     `json:"decision_type"`
	Confidence    float64  `json:"confidence"`
	ActualOutcome string   `json:"actual_outcome"`
	Quality       float64  `json:"quality"`
	Relevance     float64  `json:"relevance"`
	BatteryLevel  *float64 `json:"battery_level,omitempty"`
	NetworkType   string   `json:"network_type,omitempty"`
}

// LearningState is the learner's accumulated knowledge
type LearningState struct {
	FeedbackCount            int              `json:"feedback_count"`
	LearningIterations       int              `json:"learning_iterations"`
	ConfidenceAdjustments    map[Type]float64 `json:"confidence_adjustments"`
	DecisionTypeWeights      map[Type]float64 `json:"decision_type_weights"`
	LastLearningTime         time.Time        `json:"last_learning_time"`
	BatteryEfficientLearning bool             `json:"battery_efficient_learning"`
}

// LearningEngine accumulates per-decision-type confidence adjustments from
// feedback outcomes. Adjustments are read by the pipeline and injected into
// the maker's context before every new decision.
type LearningEngine struct {
	mu    sync.Mutex
	state LearningState

	publisher Publisher
	log       zerolog.Logger
}

const (
	adjustmentSuccess        = 0.05
	adjustmentPartialSuccess = 0.02
	adjustmentFailure        = -0.05
	adjustmentClamp          = 0.1
	weightFloor              = 0.1
)

// NewLearningEngine creates a learning engine with zeroed state
func NewLearningEngine(publisher Publisher, log zerolog.Logger) *LearningEngine {
	return &LearningEngine{
		state: LearningState{
			ConfidenceAdjustments: make(map[Type]float64),
			DecisionTypeWeights:   make(map[Type]float64),
		},
		publisher: publisher,
		log:       log.With().Str("component", "learning_engine").Logger(),
	}
}

// LearnFromFeedback updates the accumulated adjustment and weight for the
// decision type in data. In battery-efficient mode only the base outcome
// adjustment is applied, skipping the quality/relevance arithmetic.
func (e *LearningEngine) LearnFromFeedback(ctx context.Context, data LearningData, offline, batteryEfficient bool) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var base float64
	switch data.ActualOutcome {
	case OutcomeSuccess:
		base = adjustmentSuccess
	case OutcomePartialSuccess:
		base = adjustmentPartialSuccess
	case OutcomeFailure:
		base = adjustmentFailure
	}

	adjustment := base
	if !batteryEfficient {
		adjustment = base + (data.Quality-0.5)*0.02 + (data.Relevance-0.5)*0.01
		if adjustment > adjustmentClamp {
			adjustment = adjustmentClamp
		}
		if adjustment < -adjustmentClamp {
			adjustment = -adjustmentClamp
		}
	}

	e.mu.Lock()
	e.state.ConfidenceAdjustments[data.DecisionType] += adjustment

	weight, ok := e.state.DecisionTypeWeights[data.DecisionType]
	if !ok {
		weight = 1.0
	}
	weight += data.Quality - 0.5
	if weight < weightFloor {
		weight = weightFloor
	}
	e.state.DecisionTypeWeights[data.DecisionType] = weight

	e.state.FeedbackCount++
	e.state.LearningIterations++
	e.state.LastLearningTime = time.Now().UTC()
	e.state.BatteryEfficientLearning = batteryEfficient
	total := e.state.ConfidenceAdjustments[data.DecisionType]
	e.mu.Unlock()

	e.log.Debug().
		Str("decision_id", data.DecisionID).
		Str("decision_type", string(data.DecisionType)).
		Str("outcome", data.ActualOutcome).
		Float64("adjustment", adjustment).
		Float64("accumulated", total).
		Bool("battery_efficient", batteryEfficient).
		Msg("Learned from feedback")

	if offline || e.publisher == nil {
		return nil
	}

	event := NewEvent(EventLearningCompleted, map[string]interface{}{
		"decision_id":   data.DecisionID,
		"decision_type": string(data.DecisionType),
		"outcome":       data.ActualOutcome,
		"adjustment":    adjustment,
		"accumulated":   total,
	})
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.log.Warn().Err(err).Msg("Failed to publish learning event")
	}
	return nil
}

// GetConfidenceAdjustment returns the accumulated scalar for a decision type
func (e *LearningEngine) GetConfidenceAdjustment(t Type) float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.ConfidenceAdjustments[t]
}

// Adjustments returns a copy of every accumulated adjustment, keyed by the
// string form of the decision type for context injection.
func (e *LearningEngine) Adjustments() map[string]float64 {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make(map[string]float64, len(e.state.ConfidenceAdjustments))
	for t, v := range e.state.ConfidenceAdjustments {
		out[string(t)] = v
	}
	return out
}

// GetLearningMetrics returns a copy of the learner's state
func (e *LearningEngine) GetLearningMetrics() LearningState {
	e.mu.Lock()
	defer e.mu.Unlock()

	adjustments := make(map[Type]float64, len(e.state.ConfidenceAdjustments))
	for k, v := range e.state.ConfidenceAdjustments {
		adjustments[k] = v
	}
	weights := make(map[Type]float64, len(e.state.DecisionTypeWeights))
	for k, v := range e.state.DecisionTypeWeights {
		weights[k] = v
	}
	state := e.state
	state.ConfidenceAdjustments = adjustments
	state.DecisionTypeWeights = weights
	return state
}

// ResetLearning zeroes all counters, adjustments and weights
func (e *LearningEngine) ResetLearning(ctx context.Context) error {
	e.mu.Lock()
	e.state = LearningState{
		ConfidenceAdjustments: make(map[Type]float64),
		DecisionTypeWeights:   make(map[Type]float64),
	}
	e.mu.Unlock()

	e.log.Info().Msg("Learning state reset")

	if e.publisher == nil {
		return nil
	}
	event := NewEvent(EventLearningReset, map[string]interface{}{})
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.log.Warn().Err(err).Msg("Failed to publish learning reset event")
	}
	return nil
}

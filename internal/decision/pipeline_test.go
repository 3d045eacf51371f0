package decision

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPipeline(pub Publisher) (*Pipeline, *MemoryPublisher) {
	mem, _ := pub.(*MemoryPublisher)
	if pub == nil {
		mem = NewMemoryPublisher()
		pub = mem
	}
	return NewPipeline(PipelineConfig{Publisher: pub}, zerolog.Nop()), mem
}

func TestPipelineMakeDecisionTracks(t *testing.T) {
	p, pub := testPipeline(nil)

	d, err := p.MakeDecision(context.Background(), nil, []Option{{ID: "a", Value: f(70)}}, nil)
	require.NoError(t, err)

	stored, err := p.GetDecision(d.ID)
	require.NoError(t, err)
	assert.Equal(t, "a", stored.Action)
	assert.Len(t, pub.EventsNamed(EventDecisionTracked), 1)
}

func TestPipelineMakeDecisionErrorsPassThrough(t *testing.T) {
	p, _ := testPipeline(nil)

	_, err := p.MakeDecision(context.Background(), nil, nil, nil)
	assert.Equal(t, ErrCodeNoOptions, CodeOf(err))

	_, err = p.MakeDecision(context.Background(), nil, []Option{{ID: "a", Value: f(10)}}, &Constraints{MinValue: f(90)})
	assert.Equal(t, ErrCodeNoValidOptions, CodeOf(err))
}

func TestPipelineValidateDecisionApproves(t *testing.T) {
	p, _ := testPipeline(nil)
	require.NoError(t, p.Validator().RegisterRule(RuleMinimumConfidence, MinimumConfidence(0.3)))

	d, err := p.MakeDecision(context.Background(), nil, []Option{{ID: "a", Value: f(70)}}, nil)
	require.NoError(t, err)

	valid, messages, err := p.ValidateDecision(context.Background(), d)
	require.NoError(t, err)
	assert.True(t, valid)
	assert.Empty(t, messages)

	stored, err := p.GetDecision(d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, stored.Status())
}

func TestPipelineValidateDecisionRejects(t *testing.T) {
	// a single mid-value option in neutral context scores 0.5
	p, _ := testPipeline(nil)
	require.NoError(t, p.Validator().RegisterRule(RuleMinimumConfidence, MinimumConfidence(0.7)))

	d, err := p.MakeDecision(context.Background(), nil, []Option{{ID: "x", Value: f(50)}}, nil)
	require.NoError(t, err)
	assert.InDelta(t, 0.5, d.Confidence, 0.0001)

	valid, messages, err := p.ValidateDecision(context.Background(), d)
	require.NoError(t, err)
	assert.False(t, valid)
	require.Len(t, messages, 1)
	assert.Equal(t, "minimum_confidence: Confidence too low (0.50 < 0.70)", messages[0])

	stored, err := p.GetDecision(d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, stored.Status())
}

func TestPipelineExecuteDecisionCompletes(t *testing.T) {
	p, pub := testPipeline(nil)

	d, err := p.MakeDecision(context.Background(), nil, []Option{{ID: "a", Value: f(70)}}, nil)
	require.NoError(t, err)

	executed, err := p.ExecuteDecision(context.Background(), d, false, false)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, executed.Status())
	assert.Len(t, pub.EventsNamed(EventDecisionExecuted), 1)
}

func TestPipelineExecuteValidationFailure(t *testing.T) {
	p, _ := testPipeline(nil)
	require.NoError(t, p.Validator().RegisterRule(RuleMinimumConfidence, MinimumConfidence(0.99)))

	d := New(TypeSelection, "a", 0.5, "r")
	_, err := p.ExecuteDecision(context.Background(), d, true, false)
	require.Error(t, err)
	assert.Equal(t, ErrCodeValidationFailed, CodeOf(err))

	stored, err := p.GetDecision(d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusRejected, stored.Status())
}

type failingExecutor struct{}

func (failingExecutor) Execute(ctx context.Context, d *Decision) error {
	return errors.New("adapter rejected update")
}

func TestPipelineExecutorFailureMapsToFailed(t *testing.T) {
	p := NewPipeline(PipelineConfig{Executor: failingExecutor{}}, zerolog.Nop())

	d := New(TypeSelection, "a", 0.8, "r")
	_, err := p.ExecuteDecision(context.Background(), d, false, false)
	require.Error(t, err)
	assert.Equal(t, ErrCodeExecution, CodeOf(err))

	stored, err := p.GetDecision(d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusFailed, stored.Status())
}

func TestPipelineOfflineExecutionDrain(t *testing.T) {
	// offline execution queues one tracked event per decision; a drain
	// publishes them in original order and a second drain publishes none
	p, pub := testPipeline(nil)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		d := New(TypeSelection, "a", 0.8, "r")
		ids = append(ids, d.ID)
		_, err := p.ExecuteDecision(ctx, d, false, true)
		require.NoError(t, err)
	}
	assert.Empty(t, pub.Events())

	published, err := p.SyncOfflineDecisions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, published)

	events := pub.EventsNamed(EventDecisionTracked)
	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, ids[i], e.Payload["decision_id"])
	}

	published, err = p.SyncOfflineDecisions(ctx)
	require.NoError(t, err)
	assert.Zero(t, published)
	assert.Len(t, pub.Events(), 3)
}

func TestPipelineProcessFeedbackUnknownDecision(t *testing.T) {
	p, _ := testPipeline(nil)

	_, err := p.ProcessFeedback(context.Background(), "missing", map[string]interface{}{}, false, false)
	require.Error(t, err)
	assert.Equal(t, ErrCodeNotFound, CodeOf(err))
}

func TestPipelineLearningShiftsSubsequentDecisions(t *testing.T) {
	// repeated positive feedback biases the next decision's context
	p, _ := testPipeline(nil)
	ctx := context.Background()

	d, err := p.MakeDecision(ctx, nil, []Option{{ID: "a", Value: f(50)}}, nil)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		_, err := p.ProcessFeedback(ctx, d.ID, map[string]interface{}{
			"actual_outcome": OutcomeSuccess,
			"quality":        0.9,
			"relevance":      0.9,
		}, false, false)
		require.NoError(t, err)
	}

	assert.GreaterOrEqual(t, p.Learner().GetConfidenceAdjustment(TypeSelection), 0.09)

	next, err := p.MakeDecision(ctx, nil, []Option{{ID: "b", Value: f(50)}}, nil)
	require.NoError(t, err)

	adjustments, ok := next.Context["learning_adjustments"].(map[string]float64)
	require.True(t, ok)
	assert.GreaterOrEqual(t, adjustments["selection"], 0.09)
	// bias is applied to the confidence as well
	assert.Greater(t, next.Confidence, 0.5)
}

func TestPipelineFeedbackPassesDeviceData(t *testing.T) {
	p, pub := testPipeline(nil)
	ctx := context.Background()

	d, err := p.MakeDecision(ctx, nil, []Option{{ID: "a", Value: f(50)}}, nil)
	require.NoError(t, err)

	_, err = p.ProcessFeedback(ctx, d.ID, map[string]interface{}{
		"actual_outcome": OutcomeSuccess,
		"quality":        0.7,
		"relevance":      0.7,
		"battery_level":  0.15,
		"network_type":   "cellular",
	}, false, false)
	require.NoError(t, err)

	assert.Len(t, pub.EventsNamed(EventFeedbackProcessed), 1)
	assert.Len(t, pub.EventsNamed(EventLearningCompleted), 1)
}

func TestPipelineMakeDecisionCancelledNoSideEffects(t *testing.T) {
	p, pub := testPipeline(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := p.MakeDecision(ctx, nil, []Option{{ID: "a"}}, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, pub.Events())
	assert.Empty(t, p.GetDecisionHistory(nil))
}

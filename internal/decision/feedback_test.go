package decision

import (
	"context"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFeedbackProcessor(pub Publisher, cap int) *FeedbackProcessor {
	if pub == nil {
		pub = NewMemoryPublisher()
	}
	return NewFeedbackProcessor(pub, cap, zerolog.Nop())
}

func TestProcessFeedbackAssignsID(t *testing.T) {
	p := testFeedbackProcessor(nil, 0)

	fb, err := p.ProcessFeedback(context.Background(), "d1", map[string]interface{}{
		"quality": 0.8,
	}, false)
	require.NoError(t, err)
	assert.NotEmpty(t, fb.ID)
	assert.Equal(t, "d1", fb.DecisionID)
	assert.False(t, fb.CreatedAt.IsZero())
}

func TestProcessFeedbackEventSummary(t *testing.T) {
	pub := NewMemoryPublisher()
	p := testFeedbackProcessor(pub, 0)

	_, err := p.ProcessFeedback(context.Background(), "d1", map[string]interface{}{
		"quality":           0.8,
		"relevance":         0.6,
		"category":          "pricing",
		"battery_efficient": true,
		"internal_note":     "not summarized",
	}, false)
	require.NoError(t, err)

	events := pub.EventsNamed(EventFeedbackProcessed)
	require.Len(t, events, 1)
	payload := events[0].Payload
	assert.Equal(t, 0.8, payload["quality"])
	assert.Equal(t, 0.6, payload["relevance"])
	assert.Equal(t, "pricing", payload["category"])
	assert.Equal(t, true, payload["battery_efficient"])
	assert.NotContains(t, payload, "internal_note")
	assert.NotContains(t, payload, "network_efficient")
}

func TestGetFeedbackPerDecision(t *testing.T) {
	p := testFeedbackProcessor(nil, 0)
	ctx := context.Background()

	_, err := p.ProcessFeedback(ctx, "d1", map[string]interface{}{"quality": 0.5}, false)
	require.NoError(t, err)
	_, err = p.ProcessFeedback(ctx, "d1", map[string]interface{}{"quality": 0.9}, false)
	require.NoError(t, err)
	_, err = p.ProcessFeedback(ctx, "d2", map[string]interface{}{"quality": 0.1}, false)
	require.NoError(t, err)

	assert.Len(t, p.GetFeedback("d1"), 2)
	assert.Len(t, p.GetFeedback("d2"), 1)
	assert.Empty(t, p.GetFeedback("d3"))
}

func TestQueryByTopLevelAndDataKeys(t *testing.T) {
	p := testFeedbackProcessor(nil, 0)
	ctx := context.Background()

	_, err := p.ProcessFeedback(ctx, "d1", map[string]interface{}{"category": "pricing", "quality": 0.9}, false)
	require.NoError(t, err)
	_, err = p.ProcessFeedback(ctx, "d2", map[string]interface{}{"category": "shipping"}, false)
	require.NoError(t, err)

	byCategory := p.Query(map[string]interface{}{"category": "pricing"})
	require.Len(t, byCategory, 1)
	assert.Equal(t, "d1", byCategory[0].DecisionID)

	byDecision := p.Query(map[string]interface{}{"decision_id": "d2"})
	require.Len(t, byDecision, 1)

	both := p.Query(map[string]interface{}{"decision_id": "d1", "quality": 0.9})
	assert.Len(t, both, 1)

	none := p.Query(map[string]interface{}{"decision_id": "d1", "category": "shipping"})
	assert.Empty(t, none)
}

func TestOfflineFeedbackBufferedAndDrained(t *testing.T) {
	pub := NewMemoryPublisher()
	p := testFeedbackProcessor(pub, 0)
	ctx := context.Background()

	_, err := p.ProcessFeedback(ctx, "d1", map[string]interface{}{"quality": 0.5}, true)
	require.NoError(t, err)
	assert.Empty(t, pub.Events())
	assert.Equal(t, 1, p.OfflineQueueSize())

	published, err := p.SyncOfflineFeedback(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, published)
	assert.Len(t, pub.EventsNamed(EventFeedbackProcessed), 1)
	assert.Zero(t, p.OfflineQueueSize())
}

func TestOfflineFeedbackBufferFull(t *testing.T) {
	p := testFeedbackProcessor(nil, 1)
	ctx := context.Background()

	_, err := p.ProcessFeedback(ctx, "d1", nil, true)
	require.NoError(t, err)

	_, err = p.ProcessFeedback(ctx, "d2", nil, true)
	require.Error(t, err)
	assert.Equal(t, ErrCodeOfflineBufferFull, CodeOf(err))
}

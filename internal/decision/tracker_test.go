package decision

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testTracker(pub Publisher) *Tracker {
	if pub == nil {
		pub = NewMemoryPublisher()
	}
	return NewTracker(pub, 0, zerolog.Nop())
}

func TestTrackPublishesEvent(t *testing.T) {
	pub := NewMemoryPublisher()
	tr := testTracker(pub)

	d := New(TypeSelection, "a", 0.8, "r")
	require.NoError(t, tr.Track(context.Background(), d, false))

	events := pub.EventsNamed(EventDecisionTracked)
	require.Len(t, events, 1)
	assert.Equal(t, d.ID, events[0].Payload["decision_id"])
	assert.Equal(t, "pending", events[0].Payload["status"])
}

func TestTrackIdempotent(t *testing.T) {
	pub := NewMemoryPublisher()
	tr := testTracker(pub)

	d := New(TypeSelection, "a", 0.8, "r")
	require.NoError(t, tr.Track(context.Background(), d, false))
	require.NoError(t, tr.Track(context.Background(), d, false))

	assert.Equal(t, 1, tr.GetStats().TotalDecisions)
	assert.Len(t, pub.EventsNamed(EventDecisionTracked), 1)
}

func TestTrackerStatsIncremental(t *testing.T) {
	tr := testTracker(nil)
	ctx := context.Background()

	d1 := New(TypeSelection, "a", 0.6, "r")
	d2 := New(TypeAction, "b", 0.8, "r")
	require.NoError(t, tr.Track(ctx, d1, false))
	require.NoError(t, tr.Track(ctx, d2, false))

	stats := tr.GetStats()
	assert.Equal(t, 2, stats.TotalDecisions)
	assert.Equal(t, 2, stats.DecisionsByStatus[StatusPending])
	assert.Equal(t, 1, stats.DecisionsByType[TypeSelection])
	assert.Equal(t, 1, stats.DecisionsByType[TypeAction])
	assert.InDelta(t, 0.7, stats.AverageConfidence, 0.0001)

	require.NoError(t, tr.UpdateStatus(ctx, d1.ID, StatusValidating, false))
	stats = tr.GetStats()
	assert.Equal(t, 1, stats.DecisionsByStatus[StatusPending])
	assert.Equal(t, 1, stats.DecisionsByStatus[StatusValidating])
}

func TestUpdateStatusIllegalTransition(t *testing.T) {
	tr := testTracker(nil)
	ctx := context.Background()

	d := New(TypeSelection, "a", 0.6, "r")
	require.NoError(t, tr.Track(ctx, d, false))
	require.NoError(t, tr.UpdateStatus(ctx, d.ID, StatusExecuting, false))
	require.NoError(t, tr.UpdateStatus(ctx, d.ID, StatusCompleted, false))

	err := tr.UpdateStatus(ctx, d.ID, StatusExecuting, false)
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidTransition, CodeOf(err))
}

func TestUpdateStatusUnknownDecision(t *testing.T) {
	tr := testTracker(nil)
	err := tr.UpdateStatus(context.Background(), "missing", StatusValidating, false)
	require.Error(t, err)
	assert.Equal(t, ErrCodeNotFound, CodeOf(err))
}

func TestUpdateStatusTouchesUpdatedAt(t *testing.T) {
	tr := testTracker(nil)
	ctx := context.Background()

	d := New(TypeSelection, "a", 0.6, "r")
	require.NoError(t, tr.Track(ctx, d, false))
	require.NoError(t, tr.UpdateStatus(ctx, d.ID, StatusValidating, false))

	stored, err := tr.GetDecision(d.ID)
	require.NoError(t, err)
	assert.False(t, stored.Metadata.UpdatedAt.Before(stored.Metadata.CreatedAt))
	assert.True(t, stored.Metadata.UpdatedAt.After(d.Metadata.UpdatedAt) || stored.Metadata.UpdatedAt.Equal(d.Metadata.UpdatedAt))
}

func TestConcurrentStatusUpdatesStayConsistent(t *testing.T) {
	// aggregate counters must equal the per-status sums after racing updates
	tr := testTracker(nil)
	ctx := context.Background()

	const n = 50
	ids := make([]string, n)
	for i := 0; i < n; i++ {
		d := New(TypeSelection, "a", 0.5, "r")
		require.NoError(t, tr.Track(ctx, d, false))
		ids[i] = d.ID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			// both goroutines race pending->validating; exactly one wins
			_ = tr.UpdateStatus(ctx, id, StatusValidating, false)
		}(id)
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_ = tr.UpdateStatus(ctx, id, StatusValidating, false)
		}(id)
	}
	wg.Wait()

	stats := tr.GetStats()
	total := 0
	for _, count := range stats.DecisionsByStatus {
		total += count
	}
	assert.Equal(t, n, total)
	assert.Equal(t, n, stats.DecisionsByStatus[StatusValidating])
}

func TestRetryBumpsCountUntilExhausted(t *testing.T) {
	tr := testTracker(nil)
	ctx := context.Background()

	d := New(TypeSelection, "a", 0.5, "r")
	d.Metadata.MaxRetries = 2
	require.NoError(t, tr.Track(ctx, d, false))

	for i := 1; i <= 2; i++ {
		require.NoError(t, tr.UpdateStatus(ctx, d.ID, StatusExecuting, false))
		require.NoError(t, tr.UpdateStatus(ctx, d.ID, StatusFailed, false))
		require.NoError(t, tr.Retry(ctx, d.ID))

		stored, err := tr.GetDecision(d.ID)
		require.NoError(t, err)
		assert.Equal(t, i, stored.Metadata.RetryCount)
		assert.Equal(t, StatusPending, stored.Status())
	}

	require.NoError(t, tr.UpdateStatus(ctx, d.ID, StatusExecuting, false))
	require.NoError(t, tr.UpdateStatus(ctx, d.ID, StatusFailed, false))
	err := tr.Retry(ctx, d.ID)
	require.Error(t, err)
	assert.Equal(t, ErrCodeInvalidTransition, CodeOf(err))
}

func TestGetHistoryFilters(t *testing.T) {
	tr := testTracker(nil)
	ctx := context.Background()

	d1 := New(TypeSelection, "a", 0.9, "r")
	d2 := New(TypeAction, "b", 0.4, "r")
	require.NoError(t, tr.Track(ctx, d1, false))
	require.NoError(t, tr.Track(ctx, d2, false))

	all := tr.GetHistory(nil)
	require.Len(t, all, 2)
	assert.Equal(t, d1.ID, all[0].ID) // insertion order

	selections := tr.GetHistory(&HistoryFilters{Type: TypeSelection})
	require.Len(t, selections, 1)
	assert.Equal(t, d1.ID, selections[0].ID)

	confident := tr.GetHistory(&HistoryFilters{MinConfidence: 0.5})
	require.Len(t, confident, 1)
	assert.Equal(t, d1.ID, confident[0].ID)
}

func TestHistoryReturnsCopies(t *testing.T) {
	tr := testTracker(nil)
	d := New(TypeSelection, "a", 0.9, "r")
	require.NoError(t, tr.Track(context.Background(), d, false))

	got := tr.GetHistory(nil)
	got[0].Metadata.Status = StatusCompleted

	stored, err := tr.GetDecision(d.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status())
}

func TestOfflineTrackQueuesWithoutPublishing(t *testing.T) {
	pub := NewMemoryPublisher()
	tr := testTracker(pub)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, tr.Track(ctx, New(TypeSelection, "a", 0.5, "r"), true))
	}

	assert.Empty(t, pub.Events())
	assert.Equal(t, 3, tr.OfflineQueueSize())
}

func TestSyncOfflineDecisionsDrainsInOrder(t *testing.T) {
	pub := NewMemoryPublisher()
	tr := testTracker(pub)
	ctx := context.Background()

	var ids []string
	for i := 0; i < 3; i++ {
		d := New(TypeSelection, "a", 0.5, "r")
		require.NoError(t, tr.Track(ctx, d, true))
		ids = append(ids, d.ID)
	}

	published, err := tr.SyncOfflineDecisions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, published)

	events := pub.EventsNamed(EventDecisionTracked)
	require.Len(t, events, 3)
	for i, e := range events {
		assert.Equal(t, ids[i], e.Payload["decision_id"])
	}

	// second drain is a no-op
	published, err = tr.SyncOfflineDecisions(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, published)
	assert.Len(t, pub.Events(), 3)
}

func TestOfflineBufferCap(t *testing.T) {
	tr := NewTracker(NewMemoryPublisher(), 2, zerolog.Nop())
	ctx := context.Background()

	require.NoError(t, tr.Track(ctx, New(TypeSelection, "a", 0.5, "r"), true))
	require.NoError(t, tr.Track(ctx, New(TypeSelection, "b", 0.5, "r"), true))

	err := tr.Track(ctx, New(TypeSelection, "c", 0.5, "r"), true)
	require.Error(t, err)
	assert.Equal(t, ErrCodeOfflineBufferFull, CodeOf(err))
}

package orders

import (
	"context"
	"sync"
)

// FulfillmentQueue is a bounded priority queue of order ids awaiting
// automated fulfillment. Urgent orders go to the front; enqueue on a full
// queue blocks until space frees or the caller's context ends.
type FulfillmentQueue struct {
	mu    sync.Mutex
	items []string

	space chan struct{} // one token per free slot
	ready chan struct{} // one token per queued item
}

func NewFulfillmentQueue(capacity int) *FulfillmentQueue {
	if capacity <= 0 {
		capacity = 100
	}
	q := &FulfillmentQueue{
		space: make(chan struct{}, capacity),
		ready: make(chan struct{}, capacity),
	}
	for i := 0; i < capacity; i++ {
		q.space <- struct{}{}
	}
	return q
}

// Enqueue adds an order id, front for urgent. Blocks while full.
func (q *FulfillmentQueue) Enqueue(ctx context.Context, orderID string, priority Priority) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-q.space:
	}

	q.mu.Lock()
	if priority == PriorityUrgent {
		q.items = append([]string{orderID}, q.items...)
	} else {
		q.items = append(q.items, orderID)
	}
	q.mu.Unlock()

	q.ready <- struct{}{}
	return nil
}

// Dequeue removes the front order id, blocking while empty
func (q *FulfillmentQueue) Dequeue(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-q.ready:
	}

	q.mu.Lock()
	id := q.items[0]
	q.items = q.items[1:]
	q.mu.Unlock()

	q.space <- struct{}{}
	return id, nil
}

// TryDequeue removes the front order id without blocking
func (q *FulfillmentQueue) TryDequeue() (string, bool) {
	select {
	case <-q.ready:
	default:
		return "", false
	}

	q.mu.Lock()
	id := q.items[0]
	q.items = q.items[1:]
	q.mu.Unlock()

	q.space <- struct{}{}
	return id, true
}

// Len reports the number of queued order ids
func (q *FulfillmentQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Package pipeline moves updates from the listeners to the destination
// blog, one at a time.
package pipeline

import (
	"sync"

	"github.com/ibeckermayer/hopperbot/internal/update"
)

// Queue is an unbounded FIFO of pending updates. Listeners enqueue from
// any goroutine; the Publisher is the only consumer.
type Queue struct {
	mu      sync.Mutex
	updates []update.Update
	closed  bool
	signal  chan struct{} // buffered, size 1
}

// NewQueue creates an empty queue
func NewQueue() *Queue {
	return &Queue{
		updates: make([]update.Update, 0, 16),
		signal:  make(chan struct{}, 1),
	}
}

// Enqueue appends u. Returns false once the queue is closed.
func (q *Queue) Enqueue(u update.Update) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}

	q.updates = append(q.updates, u)

	// Coalesce: one pending signal is enough to wake the consumer.
	select {
	case q.signal <- struct{}{}:
	default:
	}

	return true
}

// TryDequeue removes the front update without blocking
func (q *Queue) TryDequeue() (update.Update, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.updates) == 0 {
		return nil, false
	}

	u := q.updates[0]
	q.updates[0] = nil
	if len(q.updates) == 1 {
		q.updates = q.updates[:0]
	} else {
		q.updates = q.updates[1:]
	}

	return u, true
}

// Wait returns a channel that fires when updates may be available. It is
// closed by Close, waking every waiter.
func (q *Queue) Wait() <-chan struct{} {
	return q.signal
}

// Len returns the number of pending updates
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.updates)
}

// Closed reports whether Close has been called
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

// Close stops further enqueues. Pending updates can still be dequeued.
func (q *Queue) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}

	q.closed = true
	close(q.signal)
}

// Package queue implements a generic MPSC blocking FIFO used by
// WorkerThread to drain Jobs without busy-waiting.
package queue

import (
	"sync"

	"github.com/kestrel-engine/pulsecore/corerr"
)

// Queue is an unbounded FIFO protected by a mutex and a condition variable.
// Zero value is not usable; construct with New.
type Queue[T any] struct {
	mu        sync.Mutex
	cond      *sync.Cond
	items     []T
	cancelled bool
}

// New returns an empty, ready-to-use Queue.
func New[T any]() *Queue[T] {
	q := &Queue[T]{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue pushes item to the tail and wakes any waiter. Returns
// corerr.ErrQueueClosed if the queue was previously cancelled.
func (q *Queue[T]) Enqueue(item T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancelled {
		return corerr.ErrQueueClosed
	}
	q.items = append(q.items, item)
	q.cond.Signal()
	return nil
}

// TryDequeue pops the head if present. The second return value is false
// when the queue was empty.
func (q *Queue[T]) TryDequeue() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero
	q.items = q.items[1:]
	return item, true
}

// AwaitNonEmpty blocks until the queue has at least one item or Cancel has
// been called. Returns false if it woke due to cancellation with no items
// pending.
func (q *Queue[T]) AwaitNonEmpty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for len(q.items) == 0 && !q.cancelled {
		q.cond.Wait()
	}
	return len(q.items) > 0
}

// Cancel marks the queue closed. Idempotent. Any parked AwaitNonEmpty
// callers wake immediately, and subsequent Enqueue calls fail.
func (q *Queue[T]) Cancel() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.cancelled {
		return
	}
	q.cancelled = true
	q.cond.Broadcast()
}

// Size returns the advisory current length.
func (q *Queue[T]) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// IsEmpty is an advisory emptiness check.
func (q *Queue[T]) IsEmpty() bool {
	return q.Size() == 0
}

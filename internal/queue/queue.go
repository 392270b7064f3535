package queue

import (
	"sync"
)

// Queue is a generic thread-safe FIFO with an optional capacity.
// Producers append under the lock; the consumer swaps the whole backing
// slice out in Drain so the critical section never grows with the work done
// on the drained items.
type Queue[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
}

// New creates a new empty queue. A capacity of 0 means unbounded.
func New[T any](capacity int) *Queue[T] {
	return &Queue[T]{
		items:    make([]T, 0, min(capacity, 1024)),
		capacity: capacity,
	}
}

// Push appends items in order. It returns false without appending anything
// when the items would not fit.
func (q *Queue[T]) Push(items ...T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.capacity > 0 && len(q.items)+len(items) > q.capacity {
		return false
	}
	q.items = append(q.items, items...)
	return true
}

// Empty returns true if the queue has no items.
func (q *Queue[T]) Empty() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items) == 0
}

// Len returns the number of items in the queue.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Clear removes all items from the queue.
func (q *Queue[T]) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	clear(q.items)
	q.items = q.items[:0]
}

// Drain returns every queued item in arrival order and leaves the queue empty.
// Items pushed after the swap belong to the next drain.
func (q *Queue[T]) Drain() []T {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil
	}
	result := q.items
	q.items = make([]T, 0, cap(result))
	return result
}

// Package queue holds the unbounded FIFO backlog shared by the audio relay
// and the playback sequencer. A Queue is not safe for concurrent use; its
// owner serializes access.
package queue

// Queue is a generic FIFO backlog.
type Queue[T any] struct {
	items []T
	head  int
}

// New creates an empty Queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Enqueue appends item to the back of the queue.
func (q *Queue[T]) Enqueue(item T) {
	q.items = append(q.items, item)
}

// Dequeue removes and returns the oldest item.
// The boolean is false when the queue is empty.
func (q *Queue[T]) Dequeue() (T, bool) {
	var zero T
	if q.head == len(q.items) {
		return zero, false
	}
	item := q.items[q.head]
	q.items[q.head] = zero
	q.head++
	if q.head == len(q.items) {
		// reuse the backing array once drained
		q.items = q.items[:0]
		q.head = 0
	}
	return item, true
}

// Peek returns the oldest item without removing it.
func (q *Queue[T]) Peek() (T, bool) {
	if q.head == len(q.items) {
		var zero T
		return zero, false
	}
	return q.items[q.head], true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	return len(q.items) - q.head
}

// IsEmpty reports whether the queue holds no items.
func (q *Queue[T]) IsEmpty() bool {
	return q.Len() == 0
}

// Clear drops every queued item.
func (q *Queue[T]) Clear() {
	var zero T
	for i := q.head; i < len(q.items); i++ {
		q.items[i] = zero
	}
	q.items = q.items[:0]
	q.head = 0
}

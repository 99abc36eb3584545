// Package relay bridges push-delivered audio from the transport into the
// pull loop that feeds a recognition stream.
//
// A Relay is a rendezvous point with a backlog: Push hands a chunk straight
// to a suspended consumer when there is one and queues it otherwise. Pull is
// reserved for a single consumer. Chunks come out in exactly the order they
// went in.
package relay

import (
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-moderator/model"
	"github.com/mrsingh-rishi/voice-moderator/queue"
)

// ErrConcurrentPull is returned when a second consumer calls Pull while
// another Pull is suspended.
var ErrConcurrentPull = errors.New("relay: concurrent pull")

// Relay hands pushed audio chunks to a single pulling consumer in push order.
type Relay struct {
	mu      sync.Mutex
	backlog *queue.Queue[model.AudioChunk]
	// waiter is non-nil while the consumer is suspended in Pull. It has room
	// for exactly one chunk so Push never blocks on it.
	waiter chan model.AudioChunk
	closed bool
}

// New returns an open, empty Relay.
func New() *Relay {
	return &Relay{backlog: queue.New[model.AudioChunk]()}
}

// Push delivers chunk to the consumer. It never blocks. After Close the
// chunk is discarded.
func (r *Relay) Push(chunk model.AudioChunk) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	if r.waiter != nil {
		// backlog is empty whenever a waiter exists
		r.waiter <- chunk
		r.waiter = nil
		return
	}
	r.backlog.Enqueue(chunk)
}

// Pull returns the oldest undelivered chunk, suspending until one is pushed.
// It returns io.EOF once the relay is closed, and ctx.Err() if ctx ends
// first.
func (r *Relay) Pull(ctx context.Context) (model.AudioChunk, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, io.EOF
	}
	if chunk, ok := r.backlog.Dequeue(); ok {
		r.mu.Unlock()
		return chunk, nil
	}
	if r.waiter != nil {
		r.mu.Unlock()
		return nil, ErrConcurrentPull
	}
	w := make(chan model.AudioChunk, 1)
	r.waiter = w
	r.mu.Unlock()

	select {
	case chunk, ok := <-w:
		if !ok {
			return nil, io.EOF
		}
		return chunk, nil
	case <-ctx.Done():
	}

	r.mu.Lock()
	if r.waiter == w {
		r.waiter = nil
	}
	r.mu.Unlock()

	// A push may have landed between ctx firing and the waiter being
	// withdrawn; hand it out rather than lose it.
	select {
	case chunk, ok := <-w:
		if ok {
			return chunk, nil
		}
	default:
	}
	return nil, ctx.Err()
}

// Close marks the relay closed, drops the backlog and wakes a suspended
// consumer with io.EOF. Close is idempotent.
func (r *Relay) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.closed = true
	r.backlog.Clear()
	if r.waiter != nil {
		close(r.waiter)
		r.waiter = nil
	}
}

// Closed reports whether Close has been called.
func (r *Relay) Closed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}

// Backlog returns the number of chunks waiting for the consumer.
func (r *Relay) Backlog() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.backlog.Len()
}

// Package playback renders reply audio on the client strictly one buffer
// at a time, in arrival order.
package playback

import (
	"context"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mrsingh-rishi/voice-moderator/model"
	"github.com/mrsingh-rishi/voice-moderator/queue"
)

// Renderer plays one encoded audio buffer and returns when it has finished.
type Renderer interface {
	Render(ctx context.Context, audio []byte) error
}

// Sequencer queues audio buffers and renders them one at a time. A failed
// render counts as finished so one bad buffer never stalls the queue.
type Sequencer struct {
	mu       sync.Mutex
	idle     *sync.Cond
	backlog  *queue.Queue[[]byte]
	state    model.PlaybackState
	closed   bool
	renderer Renderer
	ctx      context.Context
	cancel   context.CancelFunc
	logger   *zap.SugaredLogger
}

func NewSequencer(renderer Renderer, logger *zap.SugaredLogger) (*Sequencer, error) {
	if renderer == nil {
		return nil, errors.New("renderer is required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Sequencer{
		backlog:  queue.New[[]byte](),
		renderer: renderer,
		ctx:      ctx,
		cancel:   cancel,
		logger:   logger,
	}
	s.idle = sync.NewCond(&s.mu)
	return s, nil
}

// Enqueue adds audio to the backlog and starts playback when idle. It never
// blocks. Audio enqueued after Close is discarded.
func (s *Sequencer) Enqueue(audio []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.backlog.Enqueue(audio)
	if s.state == model.Idle {
		s.state = model.Playing
		go s.drain()
	}
}

// State reports whether a buffer is currently rendering.
func (s *Sequencer) State() model.PlaybackState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Pending returns the number of buffers waiting behind the current one.
func (s *Sequencer) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backlog.Len()
}

// Wait blocks until the backlog is empty and nothing is rendering.
func (s *Sequencer) Wait() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for s.state == model.Playing {
		s.idle.Wait()
	}
}

// Close discards the backlog and interrupts the current render.
func (s *Sequencer) Close() {
	s.mu.Lock()
	s.closed = true
	s.backlog.Clear()
	s.mu.Unlock()
	s.cancel()
}

func (s *Sequencer) drain() {
	for {
		s.mu.Lock()
		audio, ok := s.backlog.Dequeue()
		if !ok {
			s.state = model.Idle
			s.idle.Broadcast()
			s.mu.Unlock()
			return
		}
		s.mu.Unlock()

		if err := s.render(audio); err != nil {
			s.logger.Warnw("playback failed, skipping", "bytes", len(audio), "error", err)
		}
	}
}

// render turns a renderer panic into an error so the queue keeps moving.
func (s *Sequencer) render(audio []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Errorf("renderer panic: %v", r)
		}
	}()
	return s.renderer.Render(s.ctx, audio)
}

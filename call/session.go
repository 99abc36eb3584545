package call

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mrsingh-rishi/voice-moderator/history"
	"github.com/mrsingh-rishi/voice-moderator/metrics"
	"github.com/mrsingh-rishi/voice-moderator/model"
	"github.com/mrsingh-rishi/voice-moderator/output"
	"github.com/mrsingh-rishi/voice-moderator/relay"
	"github.com/mrsingh-rishi/voice-moderator/stt"
	"github.com/mrsingh-rishi/voice-moderator/workers"
)

// Session is one listening period of a connection, from start-stream to
// stop-stream or disconnect.
type Session struct {
	ID string

	recognizer stt.Recognizer
	streamCfg  stt.StreamConfig
	relay      *relay.Relay
	ledger     *history.Ledger
	agent      *workers.AgentWorker
	aggregator *workers.TranscriptionWorker
	output     output.Emitter

	state       atomic.Int32
	started     atomic.Bool
	dispatchCtx context.Context
	cancel      context.CancelFunc
	stopGrace   time.Duration
	stopOnce    sync.Once

	graceMu    sync.Mutex
	graceTimer *time.Timer
	ended      bool
	done       chan struct{}

	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
}

// Start begins listening. Recognition runs until Stop, Abort, the end of
// ctx or a recognition failure.
func (s *Session) Start(ctx context.Context) error {
	if !s.started.CompareAndSwap(false, true) {
		return errors.New("session already started")
	}
	ctx, s.cancel = context.WithCancel(ctx)
	// replies to turns that were already heard outlive the connection
	s.dispatchCtx = context.WithoutCancel(ctx)
	s.state.Store(int32(model.Listening))
	s.metrics.SessionStarted()
	s.logger.Infow("session started", "sample_rate", s.streamCfg.SampleRate)

	go s.run(ctx)
	return nil
}

// Push feeds one chunk of client audio. Audio after Stop is dropped.
func (s *Session) Push(chunk model.AudioChunk) {
	if len(chunk) == 0 || s.State() != model.Listening {
		return
	}
	s.relay.Push(chunk)
}

// Stop ends listening gracefully: no more audio is accepted, the engine
// flushes its last results and turns already dispatched run to completion.
func (s *Session) Stop() {
	s.stopOnce.Do(func() {
		s.state.Store(int32(model.Stopped))
		s.relay.Close()
		s.armGrace()
		s.logger.Info("session stopping")
	})
}

// Abort stops the session and tears the recognition stream down without
// waiting for the engine to flush.
func (s *Session) Abort() {
	s.Stop()
	if s.cancel != nil {
		s.cancel()
	}
}

func (s *Session) State() model.ListenState {
	return model.ListenState(s.state.Load())
}

// Done is closed once recognition has ended and the session has reported
// that it stopped.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Wait blocks until recognition has ended and every dispatched turn has
// been answered.
func (s *Session) Wait() {
	if s.started.Load() {
		<-s.done
	}
	s.agent.Wait()
}

// History returns a copy of the conversation so far.
func (s *Session) History() []model.ConversationTurn {
	return s.ledger.Snapshot()
}

func (s *Session) dispatch(text string) {
	s.agent.Dispatch(s.dispatchCtx, text)
}

func (s *Session) run(ctx context.Context) {
	defer close(s.done)
	defer s.metrics.SessionEnded()

	err := s.listen(ctx)
	wasListening := model.ListenState(s.state.Swap(int32(model.Stopped))) == model.Listening
	s.relay.Close()
	s.finish(err, wasListening && ctx.Err() == nil)
	s.disarmGrace()
	s.cancel()
}

// armGrace bounds how long a stopped session may keep draining.
func (s *Session) armGrace() {
	s.graceMu.Lock()
	defer s.graceMu.Unlock()
	if s.ended || s.cancel == nil {
		return
	}
	s.graceTimer = time.AfterFunc(s.stopGrace, s.cancel)
}

func (s *Session) disarmGrace() {
	s.graceMu.Lock()
	defer s.graceMu.Unlock()
	s.ended = true
	if s.graceTimer != nil {
		s.graceTimer.Stop()
		s.graceTimer = nil
	}
}

// listen owns the recognition stream for the life of the session.
func (s *Session) listen(ctx context.Context) error {
	stream, err := s.recognizer.Open(ctx, s.streamCfg)
	if err != nil {
		return err
	}
	defer stream.Close()
	stopWatch := context.AfterFunc(ctx, func() { stream.Close() })
	defer stopWatch()

	feeder, err := workers.NewTranscriberWorker(s.relay, stream, s.logger, s.metrics)
	if err != nil {
		return err
	}
	feedErr := make(chan error, 1)
	go func() {
		err := feeder.Run(ctx)
		if err != nil {
			stream.Close()
		}
		feedErr <- err
	}()

	s.aggregator.Run(stream.Events())

	err = stream.Err()
	// events are done, so nothing is listening for more audio
	s.relay.Close()
	if ferr := <-feedErr; err == nil && ferr != nil {
		err = ferr
	}
	return err
}

// finish reports how the session ended. Failures are surfaced only when
// the session was still meant to be listening.
func (s *Session) finish(err error, report bool) {
	switch {
	case err == nil:
		s.logger.Info("session ended")
	case !report:
		s.logger.Debugw("session ended", "error", errors.Wrap(model.ErrRecognitionAborted, err.Error()))
	default:
		s.metrics.RecognitionFailed()
		s.logger.Errorw("recognition failed", "error", err)
		if werr := s.output.Error("Transcription failed: " + failureMessage(err)); werr != nil {
			s.logger.Debugw("error event not delivered", "error", werr)
		}
	}
	if werr := s.output.Stopped(); werr != nil {
		s.logger.Debugw("stop event not delivered", "error", werr)
	}
}

func failureMessage(err error) string {
	var rerr *model.RecognitionError
	if errors.As(err, &rerr) {
		return rerr.Err.Error()
	}
	return err.Error()
}

package workers

import (
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mrsingh-rishi/voice-moderator/model"
	"github.com/mrsingh-rishi/voice-moderator/output"
)

// TranscriptionWorker aggregates final transcripts into turns. Every event
// is forwarded to the client; only finals are buffered. When the policy
// says the turn is complete the fragments are joined with single spaces and
// handed to finalize.
type TranscriptionWorker struct {
	// finalizeMu is held from taking the pending fragments until finalize
	// returns, so turns are finalized in the order they were taken.
	// It is acquired before mu.
	finalizeMu sync.Mutex

	mu      sync.Mutex
	pending []string
	timer   *time.Timer
	hold    time.Duration
	// gen invalidates timers that fired after a newer event re-armed them.
	gen uint64

	policy   TurnPolicy
	output   output.Emitter
	finalize func(text string)
	logger   *zap.SugaredLogger
}

func NewTranscriptionWorker(policy TurnPolicy, out output.Emitter, finalize func(string), logger *zap.SugaredLogger) (*TranscriptionWorker, error) {
	if out == nil {
		return nil, errors.New("output is required")
	}
	if finalize == nil {
		return nil, errors.New("finalize callback is required")
	}
	if policy == nil {
		policy = EveryFinal{}
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &TranscriptionWorker{
		policy:   policy,
		output:   out,
		finalize: finalize,
		logger:   logger,
	}, nil
}

// Run consumes events until the channel is closed, then flushes whatever
// is still pending.
func (tw *TranscriptionWorker) Run(events <-chan model.TranscriptEvent) {
	for ev := range events {
		tw.Handle(ev)
	}
	tw.Flush()
}

// Handle processes a single transcript event.
func (tw *TranscriptionWorker) Handle(ev model.TranscriptEvent) {
	if err := tw.output.Transcript(ev); err != nil {
		tw.logger.Debugw("transcript not delivered", "error", err)
	}

	if ev.IsPartial {
		tw.logger.Debugw("partial transcript", "text", ev.Text)
		tw.mu.Lock()
		// speech is still going on, give the speaker the full window again
		if tw.timer != nil {
			tw.armLocked(tw.hold)
		}
		tw.mu.Unlock()
		return
	}

	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return
	}
	tw.logger.Debugw("final transcript", "text", text)

	tw.finalizeMu.Lock()
	defer tw.finalizeMu.Unlock()
	tw.mu.Lock()
	tw.pending = append(tw.pending, text)
	hold := tw.policy.Hold(tw.pending)
	if hold > 0 {
		tw.armLocked(hold)
		tw.mu.Unlock()
		return
	}
	turn := tw.takeLocked()
	tw.mu.Unlock()

	tw.finalize(turn)
}

// Flush dispatches the pending fragments now, if any.
func (tw *TranscriptionWorker) Flush() {
	tw.finalizeMu.Lock()
	defer tw.finalizeMu.Unlock()
	tw.mu.Lock()
	turn := tw.takeLocked()
	tw.mu.Unlock()
	if turn != "" {
		tw.finalize(turn)
	}
}

// Pending returns the buffered fragments.
func (tw *TranscriptionWorker) Pending() []string {
	tw.mu.Lock()
	defer tw.mu.Unlock()
	return append([]string(nil), tw.pending...)
}

func (tw *TranscriptionWorker) armLocked(d time.Duration) {
	if tw.timer != nil {
		tw.timer.Stop()
	}
	tw.gen++
	gen := tw.gen
	tw.hold = d
	tw.timer = time.AfterFunc(d, func() {
		tw.finalizeMu.Lock()
		defer tw.finalizeMu.Unlock()
		tw.mu.Lock()
		if gen != tw.gen {
			tw.mu.Unlock()
			return
		}
		turn := tw.takeLocked()
		tw.mu.Unlock()
		if turn != "" {
			tw.finalize(turn)
		}
	})
}

// takeLocked joins and clears the pending fragments and disarms the timer.
func (tw *TranscriptionWorker) takeLocked() string {
	if tw.timer != nil {
		tw.timer.Stop()
		tw.timer = nil
	}
	tw.gen++
	if len(tw.pending) == 0 {
		return ""
	}
	turn := strings.Join(tw.pending, " ")
	clear(tw.pending)
	tw.pending = tw.pending[:0]
	return turn
}

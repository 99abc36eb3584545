package workers

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/mrsingh-rishi/voice-moderator/history"
	"github.com/mrsingh-rishi/voice-moderator/llm"
	"github.com/mrsingh-rishi/voice-moderator/metrics"
	"github.com/mrsingh-rishi/voice-moderator/model"
	"github.com/mrsingh-rishi/voice-moderator/output"
	"github.com/mrsingh-rishi/voice-moderator/queue"
)

// AgentConfig tunes the dispatcher.
type AgentConfig struct {
	SystemPrompt string
	// TurnTimeout bounds generation plus synthesis of one turn. Zero
	// means no limit beyond the dispatch context.
	TurnTimeout time.Duration
	// MaxInFlight caps concurrently running turns. Turns over the cap wait
	// and are admitted in dispatch order. Zero is unbounded.
	MaxInFlight int
}

// pendingTurn is a finalized turn waiting for a MaxInFlight slot.
type pendingTurn struct {
	ctx  context.Context
	text string
}

// AgentWorker dispatches finalized turns: it records the user turn, asks
// the generator for a reply, records and emits the reply, then hands it
// to the responder for speech. Turns may overlap; the ledger serializes
// their history updates.
type AgentWorker struct {
	generator llm.Generator
	ledger    *history.Ledger
	responder *AgentResponseWorker
	output    output.Emitter
	cfg       AgentConfig
	sem       *semaphore.Weighted
	wg        sync.WaitGroup

	mu      sync.Mutex
	pending *queue.Queue[pendingTurn]
	pumping bool

	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
}

func NewAgentWorker(gen llm.Generator, ledger *history.Ledger, responder *AgentResponseWorker, out output.Emitter, cfg AgentConfig, logger *zap.SugaredLogger, m *metrics.Metrics) (*AgentWorker, error) {
	if gen == nil {
		return nil, errors.New("generator is required")
	}
	if ledger == nil {
		return nil, errors.New("history ledger is required")
	}
	if responder == nil {
		return nil, errors.New("response worker is required")
	}
	if out == nil {
		return nil, errors.New("output is required")
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = llm.DefaultSystemPrompt
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	aw := &AgentWorker{
		generator: gen,
		ledger:    ledger,
		responder: responder,
		output:    out,
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
	}
	if cfg.MaxInFlight > 0 {
		aw.sem = semaphore.NewWeighted(int64(cfg.MaxInFlight))
		aw.pending = queue.New[pendingTurn]()
	}
	return aw, nil
}

// Dispatch records text as a user turn and answers it in the background.
//
// Without a MaxInFlight bound the user turn is appended before Dispatch
// returns. With a bound, turns wait in a FIFO and each one is appended and
// snapshotted when it is admitted, so the generator sees every reply that
// finished before it. Either way history follows the order in which turns
// were finalized.
func (aw *AgentWorker) Dispatch(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}
	aw.metrics.TurnOutcome(metrics.TurnDispatched)
	aw.wg.Add(1)

	if aw.sem == nil {
		snapshot := aw.ledger.AppendSnapshot(model.UserTurn(text))
		aw.logger.Infow("turn dispatched", "text", text, "history", len(snapshot))
		go func() {
			defer aw.wg.Done()
			aw.respond(ctx, snapshot)
		}()
		return
	}

	aw.mu.Lock()
	aw.pending.Enqueue(pendingTurn{ctx: ctx, text: text})
	start := !aw.pumping
	aw.pumping = true
	aw.mu.Unlock()
	aw.logger.Infow("turn queued", "text", text)
	if start {
		go aw.pump()
	}
}

// Wait blocks until every dispatched turn has finished.
func (aw *AgentWorker) Wait() {
	aw.wg.Wait()
}

// pump admits queued turns one by one in dispatch order. It is the only
// caller of sem.Acquire, so admission order is dispatch order.
func (aw *AgentWorker) pump() {
	for {
		aw.mu.Lock()
		turn, ok := aw.pending.Dequeue()
		if !ok {
			aw.pumping = false
			aw.mu.Unlock()
			return
		}
		aw.mu.Unlock()

		if err := aw.sem.Acquire(turn.ctx, 1); err != nil {
			aw.logger.Warnw("turn abandoned before start", "text", turn.text, "error", err)
			aw.wg.Done()
			continue
		}
		snapshot := aw.ledger.AppendSnapshot(model.UserTurn(turn.text))
		aw.logger.Infow("turn admitted", "text", turn.text, "history", len(snapshot))
		go func() {
			defer aw.wg.Done()
			defer aw.sem.Release(1)
			aw.respond(turn.ctx, snapshot)
		}()
	}
}

func (aw *AgentWorker) respond(ctx context.Context, snapshot []model.ConversationTurn) {
	if aw.cfg.TurnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, aw.cfg.TurnTimeout)
		defer cancel()
	}

	start := time.Now()
	reply, err := aw.generator.Generate(ctx, llm.Request{
		SystemPrompt: aw.cfg.SystemPrompt,
		History:      snapshot,
	})
	aw.metrics.ObserveEngine(aw.generator.Name(), start)
	if err != nil {
		aw.metrics.TurnOutcome(metrics.TurnGenerationError)
		aw.logger.Errorw("response generation failed, dropping turn", "provider", aw.generator.Name(), "error", err)
		return
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		aw.metrics.TurnOutcome(metrics.TurnGenerationError)
		aw.logger.Warnw("empty reply, dropping turn", "provider", aw.generator.Name())
		return
	}

	aw.ledger.Append(model.AssistantTurn(reply))
	aw.metrics.TurnOutcome(metrics.TurnGenerated)
	if err := aw.output.Reply(reply); err != nil {
		aw.logger.Debugw("reply not delivered", "error", err)
	}

	if err := aw.responder.Speak(ctx, reply); err != nil {
		if model.IsSynthesisError(err) {
			aw.logger.Errorw("speech synthesis failed, skipping audio", "error", err)
			return
		}
		aw.logger.Debugw("audio not delivered", "error", err)
	}
}

package workers

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mrsingh-rishi/voice-moderator/metrics"
	"github.com/mrsingh-rishi/voice-moderator/output"
	"github.com/mrsingh-rishi/voice-moderator/tts"
)

// AgentResponseWorker speaks replies: it synthesizes the text and emits
// the audio buffer to the client.
type AgentResponseWorker struct {
	synthesizer tts.Synthesizer
	voice       tts.Voice
	output      output.Emitter
	logger      *zap.SugaredLogger
	metrics     *metrics.Metrics
}

func NewAgentResponseWorker(synth tts.Synthesizer, voice tts.Voice, out output.Emitter, logger *zap.SugaredLogger, m *metrics.Metrics) (*AgentResponseWorker, error) {
	if synth == nil {
		return nil, errors.New("synthesizer is required")
	}
	if out == nil {
		return nil, errors.New("output is required")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &AgentResponseWorker{
		synthesizer: synth,
		voice:       voice,
		output:      out,
		logger:      logger,
		metrics:     m,
	}, nil
}

// Speak synthesizes text and emits the audio. Synthesis failures are
// returned as *model.SynthesisError and nothing is emitted.
func (w *AgentResponseWorker) Speak(ctx context.Context, text string) error {
	start := time.Now()
	audio, err := w.synthesizer.Synthesize(ctx, text, w.voice)
	w.metrics.ObserveEngine(w.synthesizer.Name(), start)
	if err != nil {
		w.metrics.TurnOutcome(metrics.TurnSynthesisError)
		return err
	}
	w.metrics.TurnOutcome(metrics.TurnSynthesized)
	if len(audio) == 0 {
		w.logger.Warnw("synthesizer returned no audio", "provider", w.synthesizer.Name())
		return nil
	}
	return w.output.Audio(audio)
}

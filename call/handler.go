// Package call runs voice sessions: it wires a connection's audio into the
// recognition, dispatch and synthesis pipeline and controls the session
// lifecycle.
package call

import (
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mrsingh-rishi/voice-moderator/history"
	"github.com/mrsingh-rishi/voice-moderator/llm"
	"github.com/mrsingh-rishi/voice-moderator/metrics"
	"github.com/mrsingh-rishi/voice-moderator/model"
	"github.com/mrsingh-rishi/voice-moderator/output"
	"github.com/mrsingh-rishi/voice-moderator/relay"
	"github.com/mrsingh-rishi/voice-moderator/stt"
	"github.com/mrsingh-rishi/voice-moderator/tts"
	"github.com/mrsingh-rishi/voice-moderator/workers"
)

// Engines are the external services shared by every session.
type Engines struct {
	Recognizer  stt.Recognizer
	Generator   llm.Generator
	Synthesizer tts.Synthesizer
}

// Settings are per-session pipeline options.
type Settings struct {
	SystemPrompt   string
	HistoryCap     int
	Policy         workers.TurnPolicy
	TurnTimeout    time.Duration
	MaxInFlight    int
	LanguageCode   string
	BrowserVoice   tts.Voice
	TelephonyVoice tts.Voice
	// StopGrace is how long a stopped session may keep draining the
	// recognition stream before it is torn down.
	StopGrace time.Duration
}

// DefaultStopGrace applies when Settings.StopGrace is zero.
const DefaultStopGrace = 5 * time.Second

// Handler creates sessions for incoming connections.
type Handler struct {
	engines  Engines
	settings Settings
	logger   *zap.SugaredLogger
	metrics  *metrics.Metrics
}

func NewHandler(engines Engines, settings Settings, logger *zap.SugaredLogger, m *metrics.Metrics) (*Handler, error) {
	if engines.Recognizer == nil {
		return nil, errors.New("recognizer is required")
	}
	if engines.Generator == nil {
		return nil, errors.New("generator is required")
	}
	if engines.Synthesizer == nil {
		return nil, errors.New("synthesizer is required")
	}
	if settings.Policy == nil {
		settings.Policy = workers.EveryFinal{}
	}
	if settings.StopGrace <= 0 {
		settings.StopGrace = DefaultStopGrace
	}
	if settings.BrowserVoice.Format == "" {
		settings.BrowserVoice = tts.BrowserVoice("", "")
	}
	if settings.TelephonyVoice.Format == "" {
		settings.TelephonyVoice = tts.TelephonyVoice("", "")
	}
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Handler{engines: engines, settings: settings, logger: logger, metrics: m}, nil
}

// NewSession assembles an idle session that emits to out. Call Start to
// begin listening.
func (h *Handler) NewSession(out output.Emitter, sampleRate int, voice tts.Voice, transport string) (*Session, error) {
	if out == nil {
		return nil, errors.New("output is required")
	}
	if sampleRate <= 0 {
		sampleRate = model.DefaultSampleRate
	}
	id := uuid.NewString()
	logger := h.logger.With("session_id", id, "transport", transport)

	speaker, err := workers.NewAgentResponseWorker(h.engines.Synthesizer, voice, out, logger, h.metrics)
	if err != nil {
		return nil, err
	}
	ledger := history.NewLedger(h.settings.HistoryCap)
	agent, err := workers.NewAgentWorker(h.engines.Generator, ledger, speaker, out, workers.AgentConfig{
		SystemPrompt: h.settings.SystemPrompt,
		TurnTimeout:  h.settings.TurnTimeout,
		MaxInFlight:  h.settings.MaxInFlight,
	}, logger, h.metrics)
	if err != nil {
		return nil, err
	}

	s := &Session{
		ID:         id,
		recognizer: h.engines.Recognizer,
		streamCfg: stt.StreamConfig{
			SampleRate:   sampleRate,
			LanguageCode: h.settings.LanguageCode,
		},
		relay:     relay.New(),
		ledger:    ledger,
		agent:     agent,
		output:    out,
		stopGrace: h.settings.StopGrace,
		done:      make(chan struct{}),
		logger:    logger,
		metrics:   h.metrics,
	}
	s.aggregator, err = workers.NewTranscriptionWorker(h.settings.Policy, out, s.dispatch, logger)
	if err != nil {
		return nil, err
	}
	return s, nil
}

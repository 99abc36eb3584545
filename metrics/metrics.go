// Package metrics exposes Prometheus collectors for voice sessions.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voice"

// Turn outcomes recorded by TurnOutcome.
const (
	TurnDispatched      = "dispatched"
	TurnGenerated       = "generated"
	TurnGenerationError = "generation_error"
	TurnSynthesized     = "synthesized"
	TurnSynthesisError  = "synthesis_error"
)

// Metrics groups the session collectors. A nil *Metrics records nothing,
// which keeps tests and tools free of registry plumbing.
type Metrics struct {
	sessionsActive    prometheus.Gauge
	turnsTotal        *prometheus.CounterVec
	engineDuration    *prometheus.HistogramVec
	recognitionErrors prometheus.Counter
	audioChunks       prometheus.Counter
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of sessions currently listening",
		}),
		turnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Conversation turns by outcome",
		}, []string{"status"}),
		engineDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "engine_duration_seconds",
			Help:      "Duration of response and synthesis engine calls in seconds",
			Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		}, []string{"engine"}),
		recognitionErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognition_errors_total",
			Help:      "Recognition streams that failed while listening",
		}),
		audioChunks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_chunks_total",
			Help:      "Audio chunks forwarded to recognition streams",
		}),
	}
	reg.MustRegister(m.sessionsActive, m.turnsTotal, m.engineDuration, m.recognitionErrors, m.audioChunks)
	return m
}

// Handler serves the collectors of g in the Prometheus text format.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
}

func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}

func (m *Metrics) TurnOutcome(status string) {
	if m == nil {
		return
	}
	m.turnsTotal.WithLabelValues(status).Inc()
}

// ObserveEngine records the time since start for engine.
func (m *Metrics) ObserveEngine(engine string, start time.Time) {
	if m == nil {
		return
	}
	m.engineDuration.WithLabelValues(engine).Observe(time.Since(start).Seconds())
}

func (m *Metrics) RecognitionFailed() {
	if m == nil {
		return
	}
	m.recognitionErrors.Inc()
}

func (m *Metrics) AudioChunk() {
	if m == nil {
		return
	}
	m.audioChunks.Inc()
}

// Package stt adapts streaming speech-recognition engines to a common
// send/receive stream.
package stt

import (
	"context"

	"github.com/mrsingh-rishi/voice-moderator/model"
)

// StreamConfig describes the audio a stream will receive.
type StreamConfig struct {
	SampleRate   int
	LanguageCode string
}

func (c StreamConfig) withDefaults() StreamConfig {
	if c.SampleRate <= 0 {
		c.SampleRate = model.DefaultSampleRate
	}
	if c.LanguageCode == "" {
		c.LanguageCode = "en-US"
	}
	return c
}

// Recognizer opens recognition streams.
type Recognizer interface {
	Name() string
	Open(ctx context.Context, cfg StreamConfig) (Stream, error)
}

// Stream is one recognition session. Send is called from a single feeder
// goroutine; Events is drained by a single consumer.
type Stream interface {
	// Send forwards one chunk of PCM audio.
	Send(ctx context.Context, chunk model.AudioChunk) error
	// CloseSend signals that no more audio follows. The engine flushes
	// its last results and Events is closed afterwards.
	CloseSend() error
	// Events yields transcript events in engine order and is closed when
	// the stream ends.
	Events() <-chan model.TranscriptEvent
	// Err reports why the stream ended once Events is closed. It is nil
	// for a clean end and for streams torn down with Close.
	Err() error
	// Close releases the stream immediately.
	Close() error
}

// Package protocol defines the event envelope exchanged with browser
// clients over the websocket.
package protocol

import "encoding/json"

// Event names a message on the duplex channel.
type Event string

const (
	// client -> server
	EventStartStream Event = "start-stream"
	EventAudioData   Event = "audio-data"
	EventStopStream  Event = "stop-stream"

	// server -> client
	EventTranscription Event = "transcription-data"
	EventAIResponse    Event = "ai-response"
	EventAudioResponse Event = "audio-response"
	EventError         Event = "error"
	EventStreamStopped Event = "stream-stopped"
)

// Envelope is the JSON wrapper of every text frame. Audio travels in binary
// frames without an envelope.
type Envelope struct {
	Event Event           `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type StartStreamPayload struct {
	SampleRate int `json:"sampleRate"`
}

type TranscriptionPayload struct {
	Transcript string `json:"transcript"`
	IsPartial  bool   `json:"isPartial"`
}

type AIResponsePayload struct {
	Text string `json:"text"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

// Package output writes session events back to the connected client.
package output

import (
	"github.com/mrsingh-rishi/voice-moderator/model"
)

// Emitter delivers server-to-client events for one session. Implementations
// are safe for concurrent use since overlapping turns emit independently.
type Emitter interface {
	Transcript(ev model.TranscriptEvent) error
	Reply(text string) error
	Audio(audio []byte) error
	Error(message string) error
	Stopped() error
}

// Conn is the write side of a websocket connection.
type Conn interface {
	WriteMessage(messageType int, data []byte) error
}

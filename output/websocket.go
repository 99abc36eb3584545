package output

import (
	"sync"

	"github.com/gofiber/websocket/v2"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-moderator/model"
	"github.com/mrsingh-rishi/voice-moderator/protocol"
)

// WebSocketOutput writes protocol envelopes and binary audio frames to a
// browser client.
type WebSocketOutput struct {
	mu     sync.Mutex
	conn   Conn
	closed bool
}

func NewWebSocketOutput(conn Conn) *WebSocketOutput {
	return &WebSocketOutput{conn: conn}
}

func (o *WebSocketOutput) Transcript(ev model.TranscriptEvent) error {
	return o.sendEvent(protocol.EventTranscription, protocol.TranscriptionPayload{
		Transcript: ev.Text,
		IsPartial:  ev.IsPartial,
	})
}

func (o *WebSocketOutput) Reply(text string) error {
	return o.sendEvent(protocol.EventAIResponse, protocol.AIResponsePayload{Text: text})
}

func (o *WebSocketOutput) Audio(audio []byte) error {
	return o.write(websocket.BinaryMessage, audio)
}

func (o *WebSocketOutput) Error(message string) error {
	return o.sendEvent(protocol.EventError, protocol.ErrorPayload{Message: message})
}

func (o *WebSocketOutput) Stopped() error {
	return o.sendEvent(protocol.EventStreamStopped, nil)
}

// Close makes every later write fail with model.ErrTransportClosed.
func (o *WebSocketOutput) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}

func (o *WebSocketOutput) sendEvent(event protocol.Event, payload interface{}) error {
	data, err := protocol.Marshal(event, payload)
	if err != nil {
		return err
	}
	return o.write(websocket.TextMessage, data)
}

func (o *WebSocketOutput) write(messageType int, data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return model.ErrTransportClosed
	}
	if err := o.conn.WriteMessage(messageType, data); err != nil {
		o.closed = true
		return errors.Wrap(model.ErrTransportClosed, err.Error())
	}
	return nil
}

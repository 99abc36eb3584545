package call

import (
	"context"

	"github.com/gofiber/websocket/v2"

	"github.com/mrsingh-rishi/voice-moderator/model"
	"github.com/mrsingh-rishi/voice-moderator/output"
	"github.com/mrsingh-rishi/voice-moderator/protocol"
)

// MessageConn is a message oriented websocket connection.
type MessageConn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
}

// ServeBrowser runs the event loop of a browser connection until the client
// disconnects. Each start-stream begins a new session with a fresh history.
func (h *Handler) ServeBrowser(ctx context.Context, conn MessageConn) {
	out := output.NewWebSocketOutput(conn)
	logger := h.logger.With("transport", "browser")

	var session *Session
	defer func() {
		if session != nil {
			session.Abort()
		}
		// late replies must not touch a connection the server has released
		out.Close()
		logger.Info("client disconnected")
	}()

	for {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
				logger.Debugw("read failed", "error", err)
			}
			return
		}

		if kind == websocket.BinaryMessage {
			if session != nil {
				session.Push(data)
			}
			continue
		}

		event, raw, err := protocol.Unmarshal(data)
		if err != nil {
			logger.Warnw("dropping malformed message", "error", err)
			continue
		}

		switch event {
		case protocol.EventStartStream:
			if session != nil && session.State() == model.Listening {
				_ = out.Error("stream already active")
				continue
			}
			payload, err := protocol.UnmarshalPayload[protocol.StartStreamPayload](raw)
			if err != nil {
				_ = out.Error("invalid start-stream payload")
				continue
			}
			next, err := h.NewSession(out, payload.SampleRate, h.settings.BrowserVoice, "browser")
			if err != nil {
				logger.Errorw("failed to create session", "error", err)
				_ = out.Error("failed to start stream")
				continue
			}
			if err := next.Start(ctx); err != nil {
				logger.Errorw("failed to start session", "error", err)
				continue
			}
			session = next

		case protocol.EventAudioData:
			audio, err := protocol.DecodeAudio(raw)
			if err != nil {
				logger.Warnw("dropping audio frame", "error", err)
				continue
			}
			if session != nil {
				session.Push(audio)
			}

		case protocol.EventStopStream:
			if session != nil {
				session.Stop()
			}

		default:
			logger.Debugw("ignoring event", "event", event)
		}
	}
}

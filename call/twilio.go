package call

import (
	"context"
	"encoding/base64"

	"github.com/bytedance/sonic"
	"github.com/zaf/g711"

	"github.com/mrsingh-rishi/voice-moderator/output"
)

// twilioSampleRate is the rate of Twilio media streams.
const twilioSampleRate = 8000

// twilioEvent is a message of Twilio's media stream protocol.
type twilioEvent struct {
	Event     string `json:"event"`
	StreamSid string `json:"streamSid"`
	Start     struct {
		CallSid   string `json:"callSid"`
		StreamSid string `json:"streamSid"`
	} `json:"start"`
	Media struct {
		Payload string `json:"payload"`
	} `json:"media"`
	Mark struct {
		Name string `json:"name"`
	} `json:"mark"`
}

// ServeTwilio bridges a Twilio media stream into a session. Caller audio
// arrives as base64 mu-law and is decoded to PCM; replies are spoken back
// on the call.
func (h *Handler) ServeTwilio(ctx context.Context, conn MessageConn) {
	logger := h.logger.With("transport", "twilio")
	out := output.NewTwilioOutput(conn, logger)

	var session *Session
	defer func() {
		if session != nil {
			session.Abort()
		}
		out.Close()
		logger.Info("media stream closed")
	}()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			logger.Debugw("read failed", "error", err)
			return
		}

		var ev twilioEvent
		if err := sonic.Unmarshal(data, &ev); err != nil {
			logger.Warnw("dropping malformed media message", "error", err)
			continue
		}

		switch ev.Event {
		case "connected":
			logger.Debug("media stream connected")

		case "start":
			if session != nil {
				logger.Warnw("duplicate start event", "stream_sid", ev.Start.StreamSid)
				continue
			}
			out.SetStreamSid(ev.Start.StreamSid)
			session, err = h.NewSession(out, twilioSampleRate, h.settings.TelephonyVoice, "twilio")
			if err != nil {
				logger.Errorw("failed to create session", "error", err)
				return
			}
			logger.Infow("call stream started", "call_sid", ev.Start.CallSid, "stream_sid", ev.Start.StreamSid, "session_id", session.ID)
			if err := session.Start(ctx); err != nil {
				logger.Errorw("failed to start session", "error", err)
				return
			}

		case "media":
			if session == nil {
				continue
			}
			ulaw, err := base64.StdEncoding.DecodeString(ev.Media.Payload)
			if err != nil {
				logger.Warnw("dropping media payload", "error", err)
				continue
			}
			session.Push(g711.DecodeUlaw(ulaw))

		case "mark":
			logger.Debugw("reply played", "mark", ev.Mark.Name)

		case "stop":
			logger.Info("call stream stopped")
			if session != nil {
				session.Stop()
			}

		default:
			logger.Debugw("ignoring media event", "event", ev.Event)
		}
	}
}

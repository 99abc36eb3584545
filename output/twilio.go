package output

import (
	"encoding/base64"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/gofiber/websocket/v2"
	"github.com/pkg/errors"
	"github.com/zaf/g711"
	"go.uber.org/zap"

	"github.com/mrsingh-rishi/voice-moderator/model"
)

// twilioFrameBytes is 400ms of 8 kHz mu-law audio per media message.
const twilioFrameBytes = 3200

// TwilioOutput sends synthesized replies into a Twilio media stream. Replies
// arrive as 8 kHz 16-bit PCM and are encoded to mu-law. Text events have no
// channel on a phone call and are only logged.
type TwilioOutput struct {
	mu        sync.Mutex
	conn      Conn
	streamSid string
	logger    *zap.SugaredLogger
	closed    bool
}

func NewTwilioOutput(conn Conn, logger *zap.SugaredLogger) *TwilioOutput {
	return &TwilioOutput{conn: conn, logger: logger}
}

// SetStreamSid records the stream id announced by Twilio's start event.
func (o *TwilioOutput) SetStreamSid(streamSid string) {
	o.mu.Lock()
	o.streamSid = streamSid
	o.mu.Unlock()
}

func (o *TwilioOutput) Transcript(ev model.TranscriptEvent) error {
	if !ev.IsPartial {
		o.logger.Infow("caller said", "transcript", ev.Text)
	}
	return nil
}

func (o *TwilioOutput) Reply(text string) error {
	o.logger.Infow("replying to caller", "text", text)
	return nil
}

func (o *TwilioOutput) Error(message string) error {
	o.logger.Warnw("session error on call", "message", message)
	return nil
}

func (o *TwilioOutput) Stopped() error { return nil }

// Close makes every later write fail with model.ErrTransportClosed.
func (o *TwilioOutput) Close() {
	o.mu.Lock()
	o.closed = true
	o.mu.Unlock()
}

// Audio encodes pcm to mu-law and sends it as media messages followed by a
// mark so Twilio reports when playback finished.
func (o *TwilioOutput) Audio(pcm []byte) error {
	ulaw := g711.EncodeUlaw(pcm)

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.streamSid == "" {
		return errors.New("twilio: stream not started")
	}
	for start := 0; start < len(ulaw); start += twilioFrameBytes {
		end := min(start+twilioFrameBytes, len(ulaw))
		if err := o.sendMediaEvent(ulaw[start:end]); err != nil {
			return err
		}
	}
	return o.sendMarkEvent()
}

func (o *TwilioOutput) sendMediaEvent(payload []byte) error {
	return o.writeJSON(map[string]interface{}{
		"event":     "media",
		"streamSid": o.streamSid,
		"media": map[string]string{
			"payload": base64.StdEncoding.EncodeToString(payload),
		},
	})
}

func (o *TwilioOutput) sendMarkEvent() error {
	return o.writeJSON(map[string]interface{}{
		"event":     "mark",
		"streamSid": o.streamSid,
		"mark": map[string]string{
			"name": "reply played",
		},
	})
}

func (o *TwilioOutput) writeJSON(msg interface{}) error {
	if o.closed {
		return model.ErrTransportClosed
	}
	data, err := sonic.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "twilio: marshal message")
	}
	if err := o.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		o.closed = true
		return errors.Wrap(model.ErrTransportClosed, err.Error())
	}
	return nil
}

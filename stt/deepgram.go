package stt

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/bytedance/sonic"
	gws "github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mrsingh-rishi/voice-moderator/model"
)

const deepgramEndpoint = "wss://api.deepgram.com/v1/listen"

// DeepgramClient opens live transcription sockets against Deepgram.
type DeepgramClient struct {
	APIKey   string
	Endpoint string
	Model    string
	Dialer   *gws.Dialer
	Logger   *zap.SugaredLogger
}

func NewDeepgramClient(apiKey string, logger *zap.SugaredLogger) (*DeepgramClient, error) {
	if apiKey == "" {
		return nil, errors.New("deepgram: API key is required")
	}
	return &DeepgramClient{
		APIKey:   apiKey,
		Endpoint: deepgramEndpoint,
		Model:    "nova-2",
		Dialer:   gws.DefaultDialer,
		Logger:   logger,
	}, nil
}

func (c *DeepgramClient) Name() string { return "deepgram" }

func (c *DeepgramClient) listenURL(cfg StreamConfig) (string, error) {
	u, err := url.Parse(c.Endpoint)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("model", c.Model)
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(cfg.SampleRate))
	q.Set("channels", "1")
	q.Set("language", cfg.LanguageCode)
	q.Set("punctuate", "true")
	q.Set("smart_format", "true")
	q.Set("interim_results", "true")
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Open dials Deepgram and starts reading results.
func (c *DeepgramClient) Open(ctx context.Context, cfg StreamConfig) (Stream, error) {
	cfg = cfg.withDefaults()
	dgURL, err := c.listenURL(cfg)
	if err != nil {
		return nil, model.NewRecognitionError(c.Name(), err, "build url")
	}
	header := http.Header{
		"Authorization": {fmt.Sprintf("Token %s", c.APIKey)},
	}
	conn, _, err := c.Dialer.DialContext(ctx, dgURL, header)
	if err != nil {
		return nil, model.NewRecognitionError(c.Name(), err, "dial")
	}
	c.Logger.Debugw("connected to deepgram", "sample_rate", cfg.SampleRate)

	s := &deepgramStream{
		conn:   conn,
		events: make(chan model.TranscriptEvent, 16),
		done:   make(chan struct{}),
		logger: c.Logger,
	}
	go s.listenForResponses()
	return s, nil
}

type deepgramStream struct {
	conn   *gws.Conn
	events chan model.TranscriptEvent
	done   chan struct{}
	logger *zap.SugaredLogger

	writeMu   sync.Mutex
	closeSend sync.Once
	closed    atomic.Bool
	err       error
}

// deepgramResponse is the subset of a Deepgram "Results" message used here.
type deepgramResponse struct {
	Type    string `json:"type"`
	IsFinal bool   `json:"is_final"`
	Channel struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

func (s *deepgramStream) Send(_ context.Context, chunk model.AudioChunk) error {
	if len(chunk) == 0 {
		return nil
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if err := s.conn.WriteMessage(gws.BinaryMessage, chunk); err != nil {
		return model.NewRecognitionError("deepgram", err, "write audio")
	}
	return nil
}

func (s *deepgramStream) CloseSend() error {
	var err error
	s.closeSend.Do(func() {
		s.writeMu.Lock()
		defer s.writeMu.Unlock()
		err = s.conn.WriteMessage(gws.TextMessage, []byte(`{"type":"CloseStream"}`))
	})
	if err != nil {
		return model.NewRecognitionError("deepgram", err, "close stream")
	}
	return nil
}

func (s *deepgramStream) Events() <-chan model.TranscriptEvent { return s.events }

func (s *deepgramStream) Err() error { return s.err }

func (s *deepgramStream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.done)
	return s.conn.Close()
}

// listenForResponses reads messages until the socket closes, translating
// transcripts into events.
func (s *deepgramStream) listenForResponses() {
	defer close(s.events)
	for {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if s.closed.Load() || gws.IsCloseError(err, gws.CloseNormalClosure) {
				return
			}
			s.err = model.NewRecognitionError("deepgram", err, "read response")
			return
		}

		var resp deepgramResponse
		if err := sonic.Unmarshal(message, &resp); err != nil {
			s.logger.Warnw("unparseable deepgram response", "error", err)
			continue
		}
		if resp.Type != "" && resp.Type != "Results" {
			continue
		}
		if len(resp.Channel.Alternatives) == 0 {
			continue
		}
		text := resp.Channel.Alternatives[0].Transcript
		if text == "" {
			continue
		}
		select {
		case s.events <- model.TranscriptEvent{Text: text, IsPartial: !resp.IsFinal}:
		case <-s.done:
			return
		}
	}
}

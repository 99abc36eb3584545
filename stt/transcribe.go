package stt

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming"
	"github.com/aws/aws-sdk-go-v2/service/transcribestreaming/types"
	"go.uber.org/zap"

	"github.com/mrsingh-rishi/voice-moderator/model"
)

// TranscribeAPI is the slice of the Transcribe streaming client used here.
type TranscribeAPI interface {
	StartStreamTranscription(ctx context.Context, params *transcribestreaming.StartStreamTranscriptionInput, optFns ...func(*transcribestreaming.Options)) (*transcribestreaming.StartStreamTranscriptionOutput, error)
}

// TranscribeClient opens Amazon Transcribe streaming sessions.
type TranscribeClient struct {
	API    TranscribeAPI
	Logger *zap.SugaredLogger
}

func NewTranscribeClient(cfg aws.Config, logger *zap.SugaredLogger) *TranscribeClient {
	return &TranscribeClient{
		API:    transcribestreaming.NewFromConfig(cfg),
		Logger: logger,
	}
}

func (c *TranscribeClient) Name() string { return "transcribe" }

func (c *TranscribeClient) Open(ctx context.Context, cfg StreamConfig) (Stream, error) {
	cfg = cfg.withDefaults()
	out, err := c.API.StartStreamTranscription(ctx, &transcribestreaming.StartStreamTranscriptionInput{
		LanguageCode:         types.LanguageCode(cfg.LanguageCode),
		MediaEncoding:        types.MediaEncodingPcm,
		MediaSampleRateHertz: aws.Int32(int32(cfg.SampleRate)),
	})
	if err != nil {
		return nil, model.NewRecognitionError(c.Name(), err, "start stream transcription")
	}

	es := out.GetStream()
	s := &transcribeStream{
		es:     es,
		writer: es.Writer,
		events: make(chan model.TranscriptEvent, 16),
		done:   make(chan struct{}),
	}
	go s.consume(es.Events(), es.Err)
	return s, nil
}

// audioWriter is the send half of the Transcribe event stream.
type audioWriter interface {
	Send(ctx context.Context, event types.AudioStream) error
	Close() error
}

type transcribeStream struct {
	es     interface{ Close() error }
	writer audioWriter
	events chan model.TranscriptEvent
	done   chan struct{}

	closeSend sync.Once
	closed    atomic.Bool
	err       error
}

func (s *transcribeStream) Send(ctx context.Context, chunk model.AudioChunk) error {
	if len(chunk) == 0 {
		return nil
	}
	err := s.writer.Send(ctx, &types.AudioStreamMemberAudioEvent{
		Value: types.AudioEvent{AudioChunk: chunk},
	})
	if err != nil {
		return model.NewRecognitionError("transcribe", err, "send audio event")
	}
	return nil
}

// CloseSend sends the empty audio event that ends a Transcribe stream and
// closes the writer.
func (s *transcribeStream) CloseSend() error {
	var err error
	s.closeSend.Do(func() {
		err = s.writer.Send(context.Background(), &types.AudioStreamMemberAudioEvent{
			Value: types.AudioEvent{AudioChunk: []byte{}},
		})
		if cerr := s.writer.Close(); err == nil {
			err = cerr
		}
	})
	if err != nil {
		return model.NewRecognitionError("transcribe", err, "close audio stream")
	}
	return nil
}

func (s *transcribeStream) Events() <-chan model.TranscriptEvent { return s.events }

func (s *transcribeStream) Err() error { return s.err }

func (s *transcribeStream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	close(s.done)
	return s.es.Close()
}

func (s *transcribeStream) consume(in <-chan types.TranscriptResultStream, streamErr func() error) {
	defer close(s.events)
	for event := range in {
		for _, ev := range transcriptEvents(event) {
			select {
			case s.events <- ev:
			case <-s.done:
				return
			}
		}
	}
	if err := streamErr(); err != nil && !s.closed.Load() {
		s.err = model.NewRecognitionError("transcribe", err, "transcript result stream")
	}
}

// transcriptEvents flattens one Transcribe result event into transcript
// events, keeping the first alternative of each result.
func transcriptEvents(event types.TranscriptResultStream) []model.TranscriptEvent {
	te, ok := event.(*types.TranscriptResultStreamMemberTranscriptEvent)
	if !ok || te.Value.Transcript == nil {
		return nil
	}
	var out []model.TranscriptEvent
	for _, result := range te.Value.Transcript.Results {
		if len(result.Alternatives) == 0 {
			continue
		}
		text := aws.ToString(result.Alternatives[0].Transcript)
		if text == "" {
			continue
		}
		out = append(out, model.TranscriptEvent{Text: text, IsPartial: result.IsPartial})
	}
	return out
}

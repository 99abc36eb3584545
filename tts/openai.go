package tts

import (
	"context"
	"io"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/mrsingh-rishi/voice-moderator/model"
)

// OpenAIClient synthesizes speech with the OpenAI audio API.
type OpenAIClient struct {
	Client *openai.Client
	Model  openai.SpeechModel
}

func NewOpenAIClient(apiKey string) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("openai tts: API key is required")
	}
	return &OpenAIClient{Client: openai.NewClient(apiKey), Model: openai.TTSModel1}, nil
}

func (c *OpenAIClient) Name() string { return "openai" }

func (c *OpenAIClient) Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error) {
	req := openai.CreateSpeechRequest{
		Model: c.Model,
		Input: text,
		Voice: openai.VoiceAlloy,
	}
	if voice.ID != "" {
		req.Voice = openai.SpeechVoice(voice.ID)
	}
	switch voice.Format {
	case FormatMP3, "":
		req.ResponseFormat = openai.SpeechResponseFormatMp3
	case FormatPCM:
		// the API only renders PCM at 24 kHz
		if voice.SampleRate != 0 && voice.SampleRate != 24000 {
			return nil, model.NewSynthesisError(c.Name(), errors.Errorf("sample rate %d not supported", voice.SampleRate), "build request")
		}
		req.ResponseFormat = openai.SpeechResponseFormatPcm
	default:
		return nil, model.NewSynthesisError(c.Name(), errors.Errorf("unsupported format %q", voice.Format), "build request")
	}

	resp, err := c.Client.CreateSpeech(ctx, req)
	if err != nil {
		return nil, model.NewSynthesisError(c.Name(), err, "create speech")
	}
	defer resp.Close()

	audio, err := io.ReadAll(resp)
	if err != nil {
		return nil, model.NewSynthesisError(c.Name(), err, "read speech")
	}
	return audio, nil
}

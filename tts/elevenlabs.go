package tts

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-moderator/model"
)

const elevenLabsBaseURL = "https://api.elevenlabs.io"

// ElevenLabsClient synthesizes speech with the ElevenLabs streaming
// endpoint and collects the streamed chunks into one buffer.
type ElevenLabsClient struct {
	APIKey     string
	VoiceID    string
	ModelID    string
	BaseURL    string
	HTTPClient *http.Client
}

func NewElevenLabsClient(apiKey, voiceID, modelID string) (*ElevenLabsClient, error) {
	if apiKey == "" {
		return nil, errors.New("elevenlabs: API key is required")
	}
	if voiceID == "" {
		return nil, errors.New("elevenlabs: voice id is required")
	}
	if modelID == "" {
		modelID = "eleven_multilingual_v2"
	}
	return &ElevenLabsClient{
		APIKey:     apiKey,
		VoiceID:    voiceID,
		ModelID:    modelID,
		BaseURL:    elevenLabsBaseURL,
		HTTPClient: http.DefaultClient,
	}, nil
}

func (c *ElevenLabsClient) Name() string { return "elevenlabs" }

func (c *ElevenLabsClient) Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error) {
	format, err := elevenLabsFormat(voice)
	if err != nil {
		return nil, model.NewSynthesisError(c.Name(), err, "build request")
	}
	voiceID := c.VoiceID
	if voice.ID != "" {
		voiceID = voice.ID
	}

	base, err := url.Parse(fmt.Sprintf("%s/v1/text-to-speech/%s/stream/with-timestamps", c.BaseURL, url.PathEscape(voiceID)))
	if err != nil {
		return nil, model.NewSynthesisError(c.Name(), err, "build url")
	}
	q := base.Query()
	q.Set("output_format", format)
	base.RawQuery = q.Encode()

	body, err := sonic.Marshal(map[string]interface{}{
		"text":     text,
		"model_id": c.ModelID,
		"voice_settings": map[string]float64{
			"stability":        0.75,
			"similarity_boost": 0.7,
		},
	})
	if err != nil {
		return nil, model.NewSynthesisError(c.Name(), err, "marshal payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base.String(), bytes.NewReader(body))
	if err != nil {
		return nil, model.NewSynthesisError(c.Name(), err, "build request")
	}
	req.Header.Set("xi-api-key", c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, model.NewSynthesisError(c.Name(), err, "http request")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, model.NewSynthesisError(c.Name(), errors.Errorf("bad status: %s", resp.Status), "http request")
	}

	return c.collect(resp.Body)
}

// collect decodes the stream of JSON objects, each carrying a base64 audio
// fragment, and concatenates the fragments.
func (c *ElevenLabsClient) collect(r io.Reader) ([]byte, error) {
	dec := sonic.ConfigDefault.NewDecoder(r)
	var audio bytes.Buffer
	for {
		var chunk struct {
			AudioBase64 string `json:"audio_base64"`
		}
		if err := dec.Decode(&chunk); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return nil, model.NewSynthesisError(c.Name(), err, "decode chunk")
		}
		if chunk.AudioBase64 == "" {
			continue
		}
		raw, err := base64.StdEncoding.DecodeString(chunk.AudioBase64)
		if err != nil {
			return nil, model.NewSynthesisError(c.Name(), err, "decode audio")
		}
		audio.Write(raw)
	}
	if audio.Len() == 0 {
		return nil, model.NewSynthesisError(c.Name(), errors.New("no audio in stream"), "decode chunk")
	}
	return audio.Bytes(), nil
}

func elevenLabsFormat(voice Voice) (string, error) {
	switch voice.Format {
	case FormatMP3, "":
		return "mp3_44100_128", nil
	case FormatPCM:
		rate := voice.SampleRate
		if rate == 0 {
			rate = 16000
		}
		switch rate {
		case 8000, 16000, 22050, 24000, 44100:
			return fmt.Sprintf("pcm_%d", rate), nil
		}
		return "", errors.Errorf("unsupported pcm sample rate %d", rate)
	}
	return "", errors.Errorf("unsupported format %q", voice.Format)
}

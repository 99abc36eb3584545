package tts

import (
	"context"
	"io"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-moderator/model"
)

const (
	defaultPollyVoice  = "Matthew"
	defaultPollyEngine = "neural"
)

// PollyAPI is the slice of the Polly client used here.
type PollyAPI interface {
	SynthesizeSpeech(ctx context.Context, params *polly.SynthesizeSpeechInput, optFns ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error)
}

// PollyClient synthesizes speech with Amazon Polly.
type PollyClient struct {
	API PollyAPI
}

func NewPollyClient(cfg aws.Config) *PollyClient {
	return &PollyClient{API: polly.NewFromConfig(cfg)}
}

func (c *PollyClient) Name() string { return "polly" }

func (c *PollyClient) Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error) {
	input, err := pollyInput(text, voice)
	if err != nil {
		return nil, model.NewSynthesisError(c.Name(), err, "build request")
	}

	out, err := c.API.SynthesizeSpeech(ctx, input)
	if err != nil {
		return nil, model.NewSynthesisError(c.Name(), err, "synthesize speech")
	}
	defer out.AudioStream.Close()

	audio, err := io.ReadAll(out.AudioStream)
	if err != nil {
		return nil, model.NewSynthesisError(c.Name(), err, "read audio stream")
	}
	if len(audio) == 0 {
		return nil, model.NewSynthesisError(c.Name(), errors.New("empty audio stream"), "read audio stream")
	}
	return audio, nil
}

func pollyInput(text string, voice Voice) (*polly.SynthesizeSpeechInput, error) {
	id := voice.ID
	if id == "" {
		id = defaultPollyVoice
	}
	engine := voice.Engine
	if engine == "" {
		engine = defaultPollyEngine
	}

	input := &polly.SynthesizeSpeechInput{
		Engine:  types.Engine(engine),
		Text:    aws.String(text),
		VoiceId: types.VoiceId(id),
	}
	switch voice.Format {
	case FormatMP3, "":
		input.OutputFormat = types.OutputFormatMp3
	case FormatPCM:
		rate := voice.SampleRate
		if rate == 0 {
			rate = 16000
		}
		if rate != 8000 && rate != 16000 {
			return nil, errors.Errorf("polly pcm supports 8000 or 16000 Hz, got %d", rate)
		}
		input.OutputFormat = types.OutputFormatPcm
		input.SampleRate = aws.String(strconv.Itoa(rate))
	default:
		return nil, errors.Errorf("unsupported format %q", voice.Format)
	}
	return input, nil
}

package tts

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/polly"
	"github.com/aws/aws-sdk-go-v2/service/polly/types"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrsingh-rishi/voice-moderator/model"
)

type fakePolly struct {
	input *polly.SynthesizeSpeechInput
	audio string
	err   error
}

func (f *fakePolly) SynthesizeSpeech(_ context.Context, params *polly.SynthesizeSpeechInput, _ ...func(*polly.Options)) (*polly.SynthesizeSpeechOutput, error) {
	f.input = params
	if f.err != nil {
		return nil, f.err
	}
	return &polly.SynthesizeSpeechOutput{AudioStream: io.NopCloser(strings.NewReader(f.audio))}, nil
}

func TestPollySynthesizeMP3(t *testing.T) {
	api := &fakePolly{audio: "ID3-fake-mp3"}
	client := &PollyClient{API: api}

	audio, err := client.Synthesize(context.Background(), "See you on February 28!", BrowserVoice("", ""))
	require.NoError(t, err)
	assert.Equal(t, []byte("ID3-fake-mp3"), audio)

	assert.Equal(t, types.VoiceId("Matthew"), api.input.VoiceId)
	assert.Equal(t, types.Engine("neural"), api.input.Engine)
	assert.Equal(t, types.OutputFormatMp3, api.input.OutputFormat)
	assert.Equal(t, "See you on February 28!", aws.ToString(api.input.Text))
}

func TestPollyTelephonyVoice(t *testing.T) {
	api := &fakePolly{audio: "\x00\x01"}
	client := &PollyClient{API: api}

	_, err := client.Synthesize(context.Background(), "hi", TelephonyVoice("Joanna", "standard"))
	require.NoError(t, err)
	assert.Equal(t, types.OutputFormatPcm, api.input.OutputFormat)
	assert.Equal(t, "8000", aws.ToString(api.input.SampleRate))
	assert.Equal(t, types.VoiceId("Joanna"), api.input.VoiceId)
}

func TestPollyErrors(t *testing.T) {
	client := &PollyClient{API: &fakePolly{err: errors.New("boom")}}
	_, err := client.Synthesize(context.Background(), "hi", BrowserVoice("", ""))
	assert.True(t, model.IsSynthesisError(err))

	client = &PollyClient{API: &fakePolly{}}
	_, err = client.Synthesize(context.Background(), "hi", BrowserVoice("", ""))
	assert.True(t, model.IsSynthesisError(err))

	_, err = client.Synthesize(context.Background(), "hi", Voice{Format: FormatPCM, SampleRate: 44100})
	assert.True(t, model.IsSynthesisError(err))
}

func TestElevenLabsCollectsChunks(t *testing.T) {
	var gotPath, gotFormat, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotFormat = r.URL.Query().Get("output_format")
		gotKey = r.Header.Get("xi-api-key")
		for _, part := range []string{"abc", "def"} {
			fmt.Fprintf(w, `{"audio_base64":%q,"alignment":null}`+"\n", base64.StdEncoding.EncodeToString([]byte(part)))
		}
	}))
	defer srv.Close()

	client, err := NewElevenLabsClient("key", "voice-1", "")
	require.NoError(t, err)
	client.BaseURL = srv.URL
	client.HTTPClient = srv.Client()

	audio, err := client.Synthesize(context.Background(), "hello", TelephonyVoice("", ""))
	require.NoError(t, err)
	assert.Equal(t, "abcdef", string(audio))
	assert.Equal(t, "/v1/text-to-speech/voice-1/stream/with-timestamps", gotPath)
	assert.Equal(t, "pcm_8000", gotFormat)
	assert.Equal(t, "key", gotKey)
}

func TestElevenLabsBadStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	client, err := NewElevenLabsClient("key", "voice-1", "")
	require.NoError(t, err)
	client.BaseURL = srv.URL

	_, err = client.Synthesize(context.Background(), "hello", BrowserVoice("", ""))
	require.Error(t, err)
	assert.True(t, model.IsSynthesisError(err))
}

func TestElevenLabsFormat(t *testing.T) {
	f, err := elevenLabsFormat(BrowserVoice("", ""))
	require.NoError(t, err)
	assert.Equal(t, "mp3_44100_128", f)

	_, err = elevenLabsFormat(Voice{Format: "ogg"})
	assert.Error(t, err)
}

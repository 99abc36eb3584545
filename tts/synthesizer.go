// Package tts turns reply text into an encoded audio buffer.
package tts

import (
	"context"
)

//go:generate mockgen -destination=mocks/synthesizer.go -package=mocks github.com/mrsingh-rishi/voice-moderator/tts Synthesizer

// Audio formats understood by the synthesizers.
const (
	FormatMP3 = "mp3"
	// FormatPCM is raw 16-bit signed little-endian mono audio.
	FormatPCM = "pcm"
)

// Synthesizer converts text to a complete encoded audio buffer.
type Synthesizer interface {
	Name() string
	// Synthesize returns audio encoded as voice.Format. Failures are
	// reported as *model.SynthesisError.
	Synthesize(ctx context.Context, text string, voice Voice) ([]byte, error)
}

// Voice selects the speaker and the output encoding.
type Voice struct {
	// ID is the provider specific voice name. Empty selects the provider default.
	ID string
	// Engine is a provider specific quality tier, e.g. Polly "neural".
	Engine string
	// Format is FormatMP3 or FormatPCM.
	Format string
	// SampleRate applies to FormatPCM. Zero selects the provider default.
	SampleRate int
}

// BrowserVoice is the default for websocket clients: MP3 they can decode
// with the platform audio stack.
func BrowserVoice(id, engine string) Voice {
	return Voice{ID: id, Engine: engine, Format: FormatMP3}
}

// TelephonyVoice produces 8 kHz PCM ready for mu-law encoding.
func TelephonyVoice(id, engine string) Voice {
	return Voice{ID: id, Engine: engine, Format: FormatPCM, SampleRate: 8000}
}

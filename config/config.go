// Package config loads server settings from the environment and an
// optional .env file.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

// Provider names accepted by the *_PROVIDER variables.
const (
	ProviderTranscribe = "transcribe"
	ProviderDeepgram   = "deepgram"
	ProviderBedrock    = "bedrock"
	ProviderOpenAI     = "openai"
	ProviderGemini     = "gemini"
	ProviderPolly      = "polly"
	ProviderElevenLabs = "elevenlabs"
)

type Config struct {
	Port        string
	LogLevel    string
	CORSOrigins string

	STTProvider string
	LLMProvider string
	TTSProvider string

	AWSRegion      string
	BedrockModelID string
	PollyVoiceID   string
	PollyEngine    string

	OpenAIAPIKey   string
	OpenAIModel    string
	OpenAITTSVoice string

	GeminiAPIKey string
	GeminiModel  string

	DeepgramAPIKey string

	ElevenLabsAPIKey  string
	ElevenLabsVoiceID string
	ElevenLabsModelID string

	SystemPrompt string
	HistoryCap   int
	TurnPolicy   string
	TurnSilence  time.Duration
	MaxInFlight  int
	TurnTimeout  time.Duration
	StopGrace    time.Duration
	LanguageCode string

	Twilio Twilio
}

// Twilio holds the telephony bridge settings. The bridge is mounted only
// when Enabled reports true.
type Twilio struct {
	AccountSID string
	AuthToken  string
	FromNumber string
	BaseURL    string
	BaseWSURL  string
}

func (t Twilio) Enabled() bool {
	return t.AccountSID != "" && t.AuthToken != "" && t.FromNumber != "" && t.BaseURL != "" && t.BaseWSURL != ""
}

// Load reads .env when present, then the process environment.
func Load() (Config, error) {
	// a missing .env is fine; the environment may already be populated
	_ = godotenv.Load()
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from getenv and validates it.
func FromEnv(getenv func(string) string) (Config, error) {
	e := env(getenv)
	cfg := Config{
		Port:        e.str("PORT", "3000"),
		LogLevel:    e.str("LOG_LEVEL", "info"),
		CORSOrigins: e.str("CORS_ORIGINS", "http://localhost:5173"),

		STTProvider: strings.ToLower(e.str("STT_PROVIDER", ProviderTranscribe)),
		LLMProvider: strings.ToLower(e.str("LLM_PROVIDER", ProviderBedrock)),
		TTSProvider: strings.ToLower(e.str("TTS_PROVIDER", ProviderPolly)),

		AWSRegion:      e.str("AWS_REGION", "us-east-1"),
		BedrockModelID: e.str("BEDROCK_MODEL_ID", "amazon.nova-lite-v1:0"),
		PollyVoiceID:   e.str("POLLY_VOICE_ID", "Matthew"),
		PollyEngine:    e.str("POLLY_ENGINE", "neural"),

		OpenAIAPIKey:   e.str("OPEN_AI_API_KEY", ""),
		OpenAIModel:    e.str("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAITTSVoice: e.str("OPENAI_TTS_VOICE", "alloy"),

		GeminiAPIKey: e.str("GEMINI_API_KEY", ""),
		GeminiModel:  e.str("GEMINI_MODEL", "gemini-2.0-flash"),

		DeepgramAPIKey: e.str("DEEPGRAM_API_KEY", ""),

		ElevenLabsAPIKey:  e.str("ELEVEN_LABS_API_KEY", ""),
		ElevenLabsVoiceID: e.str("ELEVEN_LABS_VOICE_ID", "JBFqnCBsd6RMkjVDRZzb"),
		ElevenLabsModelID: e.str("ELEVEN_LABS_MODEL_ID", "eleven_multilingual_v2"),

		SystemPrompt: e.str("SYSTEM_PROMPT", ""),
		TurnPolicy:   strings.ToLower(e.str("TURN_POLICY", "final")),
		LanguageCode: e.str("LANGUAGE_CODE", "en-US"),

		Twilio: Twilio{
			AccountSID: e.str("TWILIO_ACCOUNT_SID", ""),
			AuthToken:  e.str("TWILIO_AUTH_TOKEN", ""),
			FromNumber: e.str("TWILIO_FROM_NUMBER", ""),
			BaseURL:    e.str("BASE_URL", ""),
			BaseWSURL:  e.str("BASE_WS_URL", ""),
		},
	}

	var err error
	if cfg.HistoryCap, err = e.positiveInt("HISTORY_CAP", 20); err != nil {
		return Config{}, err
	}
	if cfg.MaxInFlight, err = e.nonNegativeInt("MAX_INFLIGHT_TURNS", 0); err != nil {
		return Config{}, err
	}
	silenceMS, err := e.positiveInt("TURN_SILENCE_MS", 800)
	if err != nil {
		return Config{}, err
	}
	cfg.TurnSilence = time.Duration(silenceMS) * time.Millisecond
	if cfg.TurnTimeout, err = e.duration("TURN_TIMEOUT", 30*time.Second); err != nil {
		return Config{}, err
	}
	if cfg.StopGrace, err = e.duration("STOP_GRACE", 5*time.Second); err != nil {
		return Config{}, err
	}

	return cfg, cfg.Validate()
}

// Validate checks provider names and the credentials they need. AWS
// credentials come from the default chain and are not checked here.
func (c Config) Validate() error {
	switch c.STTProvider {
	case ProviderTranscribe:
	case ProviderDeepgram:
		if c.DeepgramAPIKey == "" {
			return errors.New("DEEPGRAM_API_KEY must be set when STT_PROVIDER=deepgram")
		}
	default:
		return errors.Errorf("unknown STT_PROVIDER %q", c.STTProvider)
	}

	switch c.LLMProvider {
	case ProviderBedrock:
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return errors.New("OPEN_AI_API_KEY must be set when LLM_PROVIDER=openai")
		}
	case ProviderGemini:
		if c.GeminiAPIKey == "" {
			return errors.New("GEMINI_API_KEY must be set when LLM_PROVIDER=gemini")
		}
	default:
		return errors.Errorf("unknown LLM_PROVIDER %q", c.LLMProvider)
	}

	switch c.TTSProvider {
	case ProviderPolly:
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return errors.New("OPEN_AI_API_KEY must be set when TTS_PROVIDER=openai")
		}
	case ProviderElevenLabs:
		if c.ElevenLabsAPIKey == "" {
			return errors.New("ELEVEN_LABS_API_KEY must be set when TTS_PROVIDER=elevenlabs")
		}
	default:
		return errors.Errorf("unknown TTS_PROVIDER %q", c.TTSProvider)
	}

	switch c.TurnPolicy {
	case "final", "silence", "punctuation":
	default:
		return errors.Errorf("unknown TURN_POLICY %q", c.TurnPolicy)
	}
	return nil
}

// UsesAWS reports whether any selected provider needs an AWS config.
func (c Config) UsesAWS() bool {
	return c.STTProvider == ProviderTranscribe || c.LLMProvider == ProviderBedrock || c.TTSProvider == ProviderPolly
}

type env func(string) string

func (e env) str(key, fallback string) string {
	if v := strings.TrimSpace(e(key)); v != "" {
		return v
	}
	return fallback
}

func (e env) positiveInt(key string, fallback int) (int, error) {
	n, err := e.nonNegativeInt(key, fallback)
	if err == nil && n == 0 {
		return 0, errors.Errorf("%s must be positive", key)
	}
	return n, err
}

func (e env) nonNegativeInt(key string, fallback int) (int, error) {
	raw := strings.TrimSpace(e(key))
	if raw == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	if n < 0 {
		return 0, errors.Errorf("%s must not be negative", key)
	}
	return n, nil
}

func (e env) duration(key string, fallback time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(e(key))
	if raw == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid %s", key)
	}
	if d <= 0 {
		return 0, errors.Errorf("%s must be positive", key)
	}
	return d, nil
}

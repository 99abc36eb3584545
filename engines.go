package main

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mrsingh-rishi/voice-moderator/call"
	"github.com/mrsingh-rishi/voice-moderator/config"
	"github.com/mrsingh-rishi/voice-moderator/llm"
	"github.com/mrsingh-rishi/voice-moderator/stt"
	"github.com/mrsingh-rishi/voice-moderator/tts"
)

// buildEngines creates the recognition, response and speech clients
// selected by cfg.
func buildEngines(ctx context.Context, cfg config.Config, logger *zap.SugaredLogger) (call.Engines, error) {
	var awsCfg aws.Config
	if cfg.UsesAWS() {
		var err error
		awsCfg, err = awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
		if err != nil {
			return call.Engines{}, errors.Wrap(err, "load AWS config")
		}
	}

	var engines call.Engines
	switch cfg.STTProvider {
	case config.ProviderTranscribe:
		engines.Recognizer = stt.NewTranscribeClient(awsCfg, logger)
	case config.ProviderDeepgram:
		dg, err := stt.NewDeepgramClient(cfg.DeepgramAPIKey, logger)
		if err != nil {
			return call.Engines{}, err
		}
		engines.Recognizer = dg
	}

	switch cfg.LLMProvider {
	case config.ProviderBedrock:
		engines.Generator = llm.NewBedrockClient(awsCfg, llm.Options{Model: cfg.BedrockModelID})
	case config.ProviderOpenAI:
		gen, err := llm.NewOpenAIClient(cfg.OpenAIAPIKey, llm.Options{Model: cfg.OpenAIModel})
		if err != nil {
			return call.Engines{}, err
		}
		engines.Generator = gen
	case config.ProviderGemini:
		gen, err := llm.NewGeminiClient(ctx, cfg.GeminiAPIKey, llm.Options{Model: cfg.GeminiModel})
		if err != nil {
			return call.Engines{}, err
		}
		engines.Generator = gen
	}

	switch cfg.TTSProvider {
	case config.ProviderPolly:
		engines.Synthesizer = tts.NewPollyClient(awsCfg)
	case config.ProviderOpenAI:
		synth, err := tts.NewOpenAIClient(cfg.OpenAIAPIKey)
		if err != nil {
			return call.Engines{}, err
		}
		engines.Synthesizer = synth
	case config.ProviderElevenLabs:
		synth, err := tts.NewElevenLabsClient(cfg.ElevenLabsAPIKey, cfg.ElevenLabsVoiceID, cfg.ElevenLabsModelID)
		if err != nil {
			return call.Engines{}, err
		}
		engines.Synthesizer = synth
	}

	if engines.Recognizer == nil || engines.Generator == nil || engines.Synthesizer == nil {
		return call.Engines{}, errors.New("unsupported provider selection")
	}
	logger.Infow("engines ready",
		"stt", engines.Recognizer.Name(),
		"llm", engines.Generator.Name(),
		"tts", engines.Synthesizer.Name(),
	)
	return engines, nil
}

// voices picks the browser and telephony voices for the speech provider.
func voices(cfg config.Config) (browser, telephony tts.Voice) {
	switch cfg.TTSProvider {
	case config.ProviderPolly:
		return tts.BrowserVoice(cfg.PollyVoiceID, cfg.PollyEngine), tts.TelephonyVoice(cfg.PollyVoiceID, cfg.PollyEngine)
	case config.ProviderOpenAI:
		return tts.BrowserVoice(cfg.OpenAITTSVoice, ""), tts.TelephonyVoice(cfg.OpenAITTSVoice, "")
	}
	return tts.BrowserVoice("", ""), tts.TelephonyVoice("", "")
}

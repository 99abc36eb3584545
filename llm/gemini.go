package llm

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/genai"

	"github.com/mrsingh-rishi/voice-moderator/model"
)

const defaultGeminiModel = "gemini-2.0-flash"

// GeminiClient generates replies with the Gemini API.
type GeminiClient struct {
	Client  *genai.Client
	Options Options
}

// NewGeminiClient builds a Gemini generator for apiKey.
func NewGeminiClient(ctx context.Context, apiKey string, opts Options) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("gemini: API key is required")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "gemini: create client")
	}
	return &GeminiClient{Client: client, Options: opts.withDefaults(defaultGeminiModel)}, nil
}

func (c *GeminiClient) Name() string { return "gemini" }

func (c *GeminiClient) Generate(ctx context.Context, req Request) (string, error) {
	config := &genai.GenerateContentConfig{
		Temperature:     genai.Ptr(c.Options.Temperature),
		TopP:            genai.Ptr(c.Options.TopP),
		MaxOutputTokens: int32(c.Options.MaxTokens),
	}
	if req.SystemPrompt != "" {
		config.SystemInstruction = genai.NewContentFromText(req.SystemPrompt, genai.RoleUser)
	}

	result, err := c.Client.Models.GenerateContent(ctx, c.Options.Model, geminiContents(req.History), config)
	if err != nil {
		return "", model.NewGenerationError(c.Name(), err, "generate content")
	}
	text := strings.TrimSpace(result.Text())
	if text == "" {
		return "", model.NewGenerationError(c.Name(), errors.New("empty candidate"), "read reply")
	}
	return text, nil
}

func geminiContents(history []model.ConversationTurn) []*genai.Content {
	turns := alternating(history)
	contents := make([]*genai.Content, 0, len(turns))
	for _, turn := range turns {
		role := genai.Role(genai.RoleUser)
		if turn.Role == model.RoleAssistant {
			role = genai.RoleModel
		}
		contents = append(contents, genai.NewContentFromText(turn.Text, role))
	}
	return contents
}

package llm

import (
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"

	"github.com/mrsingh-rishi/voice-moderator/model"
)

const defaultOpenAIModel = "gpt-4o-mini"

// OpenAIClient generates replies with the OpenAI chat completions API.
type OpenAIClient struct {
	Client  *openai.Client
	Options Options
}

// NewOpenAIClient builds a client for apiKey. An empty model selects gpt-4o-mini.
func NewOpenAIClient(apiKey string, opts Options) (*OpenAIClient, error) {
	if apiKey == "" {
		return nil, errors.New("openai: API key is required")
	}
	return &OpenAIClient{
		Client:  openai.NewClient(apiKey),
		Options: opts.withDefaults(defaultOpenAIModel),
	}, nil
}

func (c *OpenAIClient) Name() string { return "openai" }

// Generate streams the completion and returns the collected text.
func (c *OpenAIClient) Generate(ctx context.Context, req Request) (string, error) {
	stream, err := c.Client.CreateChatCompletionStream(ctx, openai.ChatCompletionRequest{
		Model:       c.Options.Model,
		Messages:    openAIMessages(req),
		MaxTokens:   c.Options.MaxTokens,
		Temperature: c.Options.Temperature,
		TopP:        c.Options.TopP,
		Stream:      true,
	})
	if err != nil {
		return "", model.NewGenerationError(c.Name(), err, "create chat completion stream")
	}
	defer stream.Close()

	var reply strings.Builder
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return "", model.NewGenerationError(c.Name(), err, "receive chat completion chunk")
		}
		if len(resp.Choices) == 0 {
			continue
		}
		reply.WriteString(resp.Choices[0].Delta.Content)
	}

	text := strings.TrimSpace(reply.String())
	if text == "" {
		return "", model.NewGenerationError(c.Name(), errors.New("empty completion"), "read reply")
	}
	return text, nil
}

func openAIMessages(req Request) []openai.ChatCompletionMessage {
	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+1)
	if req.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		})
	}
	for _, turn := range req.History {
		role := openai.ChatMessageRoleUser
		if turn.Role == model.RoleAssistant {
			role = openai.ChatMessageRoleAssistant
		}
		messages = append(messages, openai.ChatCompletionMessage{Role: role, Content: turn.Text})
	}
	return messages
}

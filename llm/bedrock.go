package llm

import (
	"context"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/bytedance/sonic"
	"github.com/pkg/errors"

	"github.com/mrsingh-rishi/voice-moderator/model"
)

const defaultBedrockModel = "amazon.nova-lite-v1:0"

// BedrockAPI is the slice of the Bedrock runtime client used here.
type BedrockAPI interface {
	InvokeModel(ctx context.Context, params *bedrockruntime.InvokeModelInput, optFns ...func(*bedrockruntime.Options)) (*bedrockruntime.InvokeModelOutput, error)
}

// BedrockClient generates replies with an Amazon Nova model on Bedrock.
type BedrockClient struct {
	API     BedrockAPI
	Options Options
}

// NewBedrockClient builds a generator on top of the AWS config.
func NewBedrockClient(cfg aws.Config, opts Options) *BedrockClient {
	return &BedrockClient{
		API:     bedrockruntime.NewFromConfig(cfg),
		Options: opts.withDefaults(defaultBedrockModel),
	}
}

func (c *BedrockClient) Name() string { return "bedrock" }

type novaText struct {
	Text string `json:"text"`
}

type novaMessage struct {
	Role    string     `json:"role"`
	Content []novaText `json:"content"`
}

type novaInferenceConfig struct {
	MaxNewTokens int     `json:"max_new_tokens"`
	Temperature  float32 `json:"temperature"`
	TopP         float32 `json:"topP"`
}

type novaRequest struct {
	InferenceConfig novaInferenceConfig `json:"inferenceConfig"`
	System          []novaText          `json:"system,omitempty"`
	Messages        []novaMessage       `json:"messages"`
}

type novaResponse struct {
	Output struct {
		Message novaMessage `json:"message"`
	} `json:"output"`
}

func (c *BedrockClient) Generate(ctx context.Context, req Request) (string, error) {
	body, err := sonic.Marshal(c.payload(req))
	if err != nil {
		return "", model.NewGenerationError(c.Name(), err, "marshal nova request")
	}

	out, err := c.API.InvokeModel(ctx, &bedrockruntime.InvokeModelInput{
		ModelId:     aws.String(c.Options.Model),
		ContentType: aws.String("application/json"),
		Accept:      aws.String("application/json"),
		Body:        body,
	})
	if err != nil {
		return "", model.NewGenerationError(c.Name(), err, "invoke model")
	}

	var resp novaResponse
	if err := sonic.Unmarshal(out.Body, &resp); err != nil {
		return "", model.NewGenerationError(c.Name(), err, "decode nova response")
	}
	var reply strings.Builder
	for _, part := range resp.Output.Message.Content {
		reply.WriteString(part.Text)
	}
	text := strings.TrimSpace(reply.String())
	if text == "" {
		return "", model.NewGenerationError(c.Name(), errors.New("no text content"), "decode nova response")
	}
	return text, nil
}

func (c *BedrockClient) payload(req Request) novaRequest {
	history := alternating(req.History)
	p := novaRequest{
		InferenceConfig: novaInferenceConfig{
			MaxNewTokens: c.Options.MaxTokens,
			Temperature:  c.Options.Temperature,
			TopP:         c.Options.TopP,
		},
		Messages: make([]novaMessage, 0, len(history)),
	}
	if req.SystemPrompt != "" {
		p.System = []novaText{{Text: req.SystemPrompt}}
	}
	for _, turn := range history {
		p.Messages = append(p.Messages, novaMessage{
			Role:    string(turn.Role),
			Content: []novaText{{Text: turn.Text}},
		})
	}
	return p
}

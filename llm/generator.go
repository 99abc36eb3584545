package llm

import (
	"context"

	"github.com/mrsingh-rishi/voice-moderator/model"
)

//go:generate mockgen -destination=mocks/generator.go -package=mocks github.com/mrsingh-rishi/voice-moderator/llm Generator

// Generator produces the assistant reply for a conversation.
type Generator interface {
	// Name identifies the provider in logs and metrics.
	Name() string
	// Generate returns the reply to the last user turn in req.History.
	// Failures are reported as *model.GenerationError.
	Generate(ctx context.Context, req Request) (string, error)
}

// Request is the input of one generation call.
type Request struct {
	SystemPrompt string
	History      []model.ConversationTurn
}

// Options tunes generation. Zero values fall back to DefaultOptions.
type Options struct {
	Model       string
	MaxTokens   int
	Temperature float32
	TopP        float32
}

// DefaultOptions keeps replies short enough to be spoken.
var DefaultOptions = Options{
	MaxTokens:   150,
	Temperature: 0.6,
	TopP:        0.9,
}

func (o Options) withDefaults(model string) Options {
	if o.Model == "" {
		o.Model = model
	}
	if o.MaxTokens <= 0 {
		o.MaxTokens = DefaultOptions.MaxTokens
	}
	if o.Temperature <= 0 {
		o.Temperature = DefaultOptions.Temperature
	}
	if o.TopP <= 0 {
		o.TopP = DefaultOptions.TopP
	}
	return o
}

// DefaultSystemPrompt is the persona used when SYSTEM_PROMPT is unset.
const DefaultSystemPrompt = `You are "AI Voice Moderator", the charismatic AI moderator for the AWS Community Day Ahmedabad 2026.

Event Details:
- Event: AWS Community Day Ahmedabad 2026
- Date: February 28, 2026 (8:00 AM - 6:00 PM IST)
- Venue: Gujarat University Convention and Exhibition Centre, Memnagar, Ahmedabad.
- Tickets: Regular tickets are ₹1,099. Patron tickets up to ₹25,000. Early bird tickets are sold out.
- Highlights: Tech talks, Builder Zone, Networking, Swags, Lunch & Hi-tea.

Your Goal:
- Facilitate the discussion enthusiastically.
- Promote the event and ticket sales.
- KEEP RESPONSES VERY SHORT (maximum 2-3 sentences).
- NEVER output HTML, Markdown, or Code. Speak only in plain text.
- Do NOT start responses with "Hello" unless greeted.
- You are helpful, witty, and professional.`

// alternating folds the history into strictly alternating turns that start
// with a user turn, which is what the Bedrock and Gemini chat APIs accept.
// Consecutive turns from the same speaker are joined with a newline.
func alternating(history []model.ConversationTurn) []model.ConversationTurn {
	out := make([]model.ConversationTurn, 0, len(history))
	for _, turn := range history {
		if len(out) == 0 && turn.Role != model.RoleUser {
			continue
		}
		if n := len(out); n > 0 && out[n-1].Role == turn.Role {
			out[n-1].Text += "\n" + turn.Text
			continue
		}
		out = append(out, turn)
	}
	return out
}

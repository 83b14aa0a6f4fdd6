package generation

import (
	"context"
	"fmt"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// AnthropicGenerator implements Generator against the Anthropic Messages
// API. The prompt carries the instruction, the context the redacted
// feedback payload; they are concatenated into a single user message.
type AnthropicGenerator struct {
	client    anthropic.Client
	model     string
	maxTokens int64
}

// NewAnthropicGenerator creates a Generator backed by the Anthropic API.
func NewAnthropicGenerator(apiKey, model string) *AnthropicGenerator {
	return &AnthropicGenerator{
		client:    anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:     model,
		maxTokens: 2048,
	}
}

// Generate sends one message and returns the text of the first content
// block. Timeout and retries are handled by GenerateWithRetry, not here.
func (g *AnthropicGenerator) Generate(ctx context.Context, prompt, contextText string) (string, error) {
	msg, err := g.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(g.model),
		MaxTokens: g.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt + "\n\n" + contextText)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic call: %w", err)
	}
	if len(msg.Content) == 0 {
		return "", fmt.Errorf("anthropic call: empty response")
	}
	return msg.Content[0].Text, nil
}

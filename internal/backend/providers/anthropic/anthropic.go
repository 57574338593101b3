// Package anthropic implements a Backend against the Anthropic Messages
// API, grounded on the streaming client/params construction in
// internal/agent/providers/anthropic.go: client built via
// anthropic.NewClient(option.WithAPIKey(...)), a MessageNewParams with
// Model/System/Messages/MaxTokens, driven through Messages.NewStreaming and
// accumulated into one string, since that is the only call shape this
// system's source corpus demonstrates for the SDK.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/andrewfreeman/spectator/internal/backend"
	"github.com/andrewfreeman/spectator/pkg/spectator"
)

const defaultModel = "claude-3-5-sonnet-latest"
const defaultMaxTokens = 1024

// Backend completes prompts against Anthropic's Messages API.
type Backend struct {
	client anthropic.Client
	Model  string
}

// New returns a Backend using apiKey, and optionally baseURL if non-empty
// (for a proxy or self-hosted gateway).
func New(apiKey, baseURL, model string) *Backend {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = defaultModel
	}
	return &Backend{client: anthropic.NewClient(opts...), Model: model}
}

// SupportsMessages implements backend.MessageCapable.
func (b *Backend) SupportsMessages() bool { return true }

// Complete implements backend.Backend.
func (b *Backend) Complete(ctx context.Context, prompt string, params backend.Params) (string, error) {
	model := params.Model
	if model == "" {
		model = b.Model
	}
	maxTokens := int64(params.MaxTokens)
	if maxTokens == 0 {
		maxTokens = defaultMaxTokens
	}

	messageParams := convertMessages(params.Messages, prompt)

	newParams := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: maxTokens,
		Messages:  messageParams,
	}
	if params.Role != "" {
		newParams.System = []anthropic.TextBlockParam{
			{Text: fmt.Sprintf("You are the %s role of a cognitive runtime.", params.Role)},
		}
	}

	stream := b.client.Messages.NewStreaming(ctx, newParams)

	var text string
	for stream.Next() {
		event := stream.Current()
		if event.Type != "content_block_delta" {
			continue
		}
		delta := event.AsContentBlockDelta().Delta
		if delta.Type != "text_delta" || delta.Text == "" {
			continue
		}
		text += delta.Text
		if params.Stream && params.StreamCallback != nil {
			params.StreamCallback(delta.Text)
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("anthropic: stream: %w", err)
	}
	return text, nil
}

// convertMessages maps a user/assistant role onto
// anthropic.NewUserMessage/NewAssistantMessage with a single text block.
// When the caller supplies no message history, prompt becomes the sole
// user turn.
func convertMessages(messages []spectator.Message, prompt string) []anthropic.MessageParam {
	if len(messages) == 0 {
		return []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		}
	}
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, m := range messages {
		if m.Role == "assistant" {
			out = append(out, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Text)))
		} else {
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Text)))
		}
	}
	return out
}

// Package openai implements a Backend against OpenAI's chat completion API,
// grounded on internal/agent/providers/openai.go: client built via
// openai.NewClient(apiKey), an openai.ChatCompletionRequest with
// Model/Messages/Stream/MaxTokens, driven through
// CreateChatCompletionStream and accumulated into one string, since that is
// the only call shape this system's source corpus demonstrates for the SDK.
package openai

import (
	"context"
	"fmt"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/andrewfreeman/spectator/internal/backend"
	"github.com/andrewfreeman/spectator/pkg/spectator"
)

const defaultModel = openai.GPT4o

// Backend completes prompts against OpenAI's chat completion API.
type Backend struct {
	client *openai.Client
	Model  string
}

// New returns a Backend using apiKey.
func New(apiKey, model string) *Backend {
	if model == "" {
		model = defaultModel
	}
	return &Backend{client: openai.NewClient(apiKey), Model: model}
}

// SupportsMessages implements backend.MessageCapable.
func (b *Backend) SupportsMessages() bool { return true }

// Complete implements backend.Backend.
func (b *Backend) Complete(ctx context.Context, prompt string, params backend.Params) (string, error) {
	model := params.Model
	if model == "" {
		model = b.Model
	}

	chatReq := openai.ChatCompletionRequest{
		Model:    model,
		Messages: convertMessages(params.Messages, params.Role, prompt),
		Stream:   true,
	}
	if params.MaxTokens > 0 {
		chatReq.MaxTokens = params.MaxTokens
	}
	if params.Temperature > 0 {
		chatReq.Temperature = float32(params.Temperature)
	}

	stream, err := b.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return "", fmt.Errorf("openai: create stream: %w", err)
	}
	defer stream.Close()

	var text string
	for {
		response, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				break
			}
			return "", fmt.Errorf("openai: stream recv: %w", err)
		}
		if len(response.Choices) == 0 {
			continue
		}
		delta := response.Choices[0].Delta.Content
		if delta == "" {
			continue
		}
		text += delta
		if params.Stream && params.StreamCallback != nil {
			params.StreamCallback(delta)
		}
	}
	return text, nil
}

// convertMessages builds an optional system message derived from role,
// followed by history, followed by prompt as the final user turn when no
// history is supplied.
func convertMessages(messages []spectator.Message, role, prompt string) []openai.ChatCompletionMessage {
	var out []openai.ChatCompletionMessage
	if role != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: fmt.Sprintf("You are the %s role of a cognitive runtime.", role),
		})
	}
	if len(messages) == 0 {
		return append(out, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: prompt})
	}
	for _, m := range messages {
		msgRole := openai.ChatMessageRoleUser
		if m.Role == "assistant" {
			msgRole = openai.ChatMessageRoleAssistant
		}
		out = append(out, openai.ChatCompletionMessage{Role: msgRole, Content: m.Text})
	}
	return out
}

// Package gemini implements a Backend against Google's Gemini API via the
// genai SDK, grounded on internal/agent/providers/google.go: client built
// via genai.NewClient(ctx, &genai.ClientConfig{APIKey, Backend:
// genai.BackendGeminiAPI}), messages converted to []*genai.Content with
// genai.RoleUser/RoleModel, system prompt carried in
// GenerateContentConfig.SystemInstruction, driven through
// Models.GenerateContentStream and accumulated into one string, since that
// is the only call shape this system's source corpus demonstrates for the
// SDK.
package gemini

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/andrewfreeman/spectator/internal/backend"
	"github.com/andrewfreeman/spectator/pkg/spectator"
)

const defaultModel = "gemini-2.0-flash"

// Backend completes prompts against Google's Gemini API.
type Backend struct {
	client *genai.Client
	Model  string
}

// New returns a Backend using apiKey. ctx is only used to construct the
// underlying client; it is not retained.
func New(ctx context.Context, apiKey, model string) (*Backend, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini: new client: %w", err)
	}
	if model == "" {
		model = defaultModel
	}
	return &Backend{client: client, Model: model}, nil
}

// SupportsMessages implements backend.MessageCapable.
func (b *Backend) SupportsMessages() bool { return true }

// Complete implements backend.Backend.
func (b *Backend) Complete(ctx context.Context, prompt string, params backend.Params) (string, error) {
	model := params.Model
	if model == "" {
		model = b.Model
	}

	contents := convertMessages(params.Messages, prompt)
	config := &genai.GenerateContentConfig{}
	if params.Role != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: fmt.Sprintf("You are the %s role of a cognitive runtime.", params.Role)}},
		}
	}

	var text string
	for resp, err := range b.client.Models.GenerateContentStream(ctx, model, contents, config) {
		if err != nil {
			return "", fmt.Errorf("gemini: stream: %w", err)
		}
		for _, cand := range resp.Candidates {
			if cand.Content == nil {
				continue
			}
			for _, part := range cand.Content.Parts {
				if part.Text == "" {
					continue
				}
				text += part.Text
				if params.Stream && params.StreamCallback != nil {
					params.StreamCallback(part.Text)
				}
			}
		}
	}
	return text, nil
}

// convertMessages maps assistant turns to genai.RoleModel and everything
// else to genai.RoleUser. prompt becomes the sole user turn when no history
// is supplied.
func convertMessages(messages []spectator.Message, prompt string) []*genai.Content {
	if len(messages) == 0 {
		return []*genai.Content{{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: prompt}},
		}}
	}
	out := make([]*genai.Content, 0, len(messages))
	for _, m := range messages {
		role := genai.RoleUser
		if m.Role == "assistant" {
			role = genai.RoleModel
		}
		out = append(out, &genai.Content{Role: role, Parts: []*genai.Part{{Text: m.Text}}})
	}
	return out
}

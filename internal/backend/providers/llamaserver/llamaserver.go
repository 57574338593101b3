// Package llamaserver implements a Backend against an OpenAI-compatible
// llama.cpp server's /v1/chat/completions endpoint, with optional SSE
// streaming. Grounded on the Go rewrite's ancestor LlamaServerBackend:
// only its most recent _build_payload semantics are reproduced, per
// an explicit design decision, documented in DESIGN.md.
package llamaserver

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/andrewfreeman/spectator/internal/backend"
)

const defaultBaseURL = "http://127.0.0.1:8080"
const defaultTimeout = 60 * time.Second

// Backend talks to a llama.cpp server's OpenAI-compatible chat endpoint.
type Backend struct {
	BaseURL    string
	Timeout    time.Duration
	APIKey     string
	Model      string
	RulesText  string
	HTTPClient *http.Client
}

// New returns a Backend with the default timeout/base URL; callers
// override fields (or the LLAMA_SERVER_* env vars via config) as needed.
func New() *Backend {
	return &Backend{
		BaseURL:    defaultBaseURL,
		Timeout:    defaultTimeout,
		HTTPClient: &http.Client{},
	}
}

// SupportsMessages implements backend.MessageCapable.
func (b *Backend) SupportsMessages() bool { return true }

func (b *Backend) headers() http.Header {
	h := http.Header{"Content-Type": []string{"application/json"}}
	if b.APIKey != "" {
		h.Set("Authorization", "Bearer "+b.APIKey)
	}
	return h
}

func (b *Backend) buildSystemRules(model string) string {
	rules := b.RulesText
	if rules == "" {
		rules = "You are the governor role of a cognitive runtime. Follow the tool-call and notes-patch protocol exactly."
	}
	if model != "" {
		return fmt.Sprintf("%s The underlying model is %s.", rules, model)
	}
	return rules + " The underlying model is unknown."
}

// buildPayload mirrors the ancestor's final _build_payload: pop role and
// stream_callback, default generation params, synthesize a two-message
// array when the caller didn't supply one, and default cache_prompt=false.
func (b *Backend) buildPayload(prompt string, params backend.Params) map[string]any {
	model := params.Model
	if model == "" {
		model = b.Model
	}

	payload := map[string]any{}

	messages := params.Messages
	if len(messages) == 0 {
		payload["messages"] = []map[string]string{
			{"role": "system", "content": b.buildSystemRules(model)},
			{"role": "user", "content": prompt},
		}
	} else {
		rendered := make([]map[string]string, len(messages))
		for i, m := range messages {
			rendered[i] = map[string]string{"role": m.Role, "content": m.Text}
		}
		payload["messages"] = rendered
	}

	if model != "" {
		payload["model"] = model
	}
	payload["cache_prompt"] = false

	temperature := params.Temperature
	payload["temperature"] = temperature
	topP := params.TopP
	if topP == 0 {
		topP = 1
	}
	payload["top_p"] = topP
	maxTokens := params.MaxTokens
	if maxTokens == 0 {
		maxTokens = 512
	}
	payload["max_tokens"] = maxTokens
	seed := params.Seed
	if seed == 0 {
		seed = 7
	}
	payload["seed"] = seed
	if params.Stream {
		payload["stream"] = true
	}
	return payload
}

// Complete implements backend.Backend.
func (b *Backend) Complete(ctx context.Context, prompt string, params backend.Params) (string, error) {
	payload := b.buildPayload(prompt, params)
	url := strings.TrimRight(b.BaseURL, "/") + "/v1/chat/completions"

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("llamaserver: marshal payload: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, b.Timeout)
	defer cancel()

	if params.Stream {
		return b.completeStreaming(reqCtx, url, body, params.StreamCallback)
	}
	return b.completeOnce(reqCtx, url, body)
}

func (b *Backend) completeOnce(ctx context.Context, url string, body []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llamaserver: build request: %w", err)
	}
	req.Header = b.headers()

	resp, err := b.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llamaserver: request: %w", err)
	}
	defer resp.Body.Close()

	var decoded struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
			Text string `json:"text"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("llamaserver: decode response: %w", err)
	}
	if len(decoded.Choices) == 0 {
		return "", nil
	}
	if decoded.Choices[0].Message.Content != "" {
		return decoded.Choices[0].Message.Content, nil
	}
	return decoded.Choices[0].Text, nil
}

func (b *Backend) completeStreaming(ctx context.Context, url string, body []byte, streamCallback func(string)) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("llamaserver: build request: %w", err)
	}
	req.Header = b.headers()

	resp, err := b.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("llamaserver: request: %w", err)
	}
	defer resp.Body.Close()

	var parts []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}

		var chunk struct {
			Choices []struct {
				Delta struct {
					Content string `json:"content"`
				} `json:"delta"`
				Text string `json:"text"`
			} `json:"choices"`
		}
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		delta := chunk.Choices[0].Delta.Content
		if delta == "" {
			delta = chunk.Choices[0].Text
		}
		if delta == "" {
			continue
		}
		parts = append(parts, delta)
		if streamCallback != nil {
			streamCallback(delta)
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("llamaserver: read stream: %w", err)
	}
	return strings.Join(parts, ""), nil
}

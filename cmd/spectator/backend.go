package main

import (
	"context"
	"fmt"

	"github.com/andrewfreeman/spectator/internal/backend"
	"github.com/andrewfreeman/spectator/internal/backend/providers/anthropic"
	"github.com/andrewfreeman/spectator/internal/backend/providers/fake"
	"github.com/andrewfreeman/spectator/internal/backend/providers/gemini"
	"github.com/andrewfreeman/spectator/internal/backend/providers/llamaserver"
	"github.com/andrewfreeman/spectator/internal/backend/providers/openai"
	"github.com/andrewfreeman/spectator/internal/config"
)

// resolveBackend builds the backend.Backend named by cfg.Backend. "fake" is
// always available with zero configuration; the rest require their
// corresponding API key (or, for llamaserver, a reachable base URL).
func resolveBackend(ctx context.Context, cfg config.Config) (backend.Backend, error) {
	switch cfg.Backend {
	case "", "fake":
		fb := fake.New()
		fb.SetResponses(cfg.FakeResponses)
		for role, responses := range cfg.FakeRoleResponses {
			fb.SetRoleResponses(role, responses)
		}
		return fb, nil

	case "llamaserver":
		b := llamaserver.New()
		if cfg.LlamaServer.BaseURL != "" {
			b.BaseURL = cfg.LlamaServer.BaseURL
		}
		b.APIKey = cfg.LlamaServer.APIKey
		b.Model = cfg.LlamaServer.Model
		return b, nil

	case "anthropic":
		if cfg.Anthropic.APIKey == "" {
			return nil, fmt.Errorf("backend: anthropic selected but ANTHROPIC_API_KEY is not set")
		}
		return anthropic.New(cfg.Anthropic.APIKey, cfg.Anthropic.BaseURL, cfg.Anthropic.Model), nil

	case "openai":
		if cfg.OpenAI.APIKey == "" {
			return nil, fmt.Errorf("backend: openai selected but OPENAI_API_KEY is not set")
		}
		return openai.New(cfg.OpenAI.APIKey, cfg.OpenAI.Model), nil

	case "gemini":
		if cfg.Gemini.APIKey == "" {
			return nil, fmt.Errorf("backend: gemini selected but GEMINI_API_KEY is not set")
		}
		return gemini.New(ctx, cfg.Gemini.APIKey, cfg.Gemini.Model)

	default:
		return nil, fmt.Errorf("backend: unknown backend %q", cfg.Backend)
	}
}

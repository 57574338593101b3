// Package config loads runtime configuration for the spectator binary: a
// YAML file decoded into a Config, then overridden by a closed set of
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// BackendConfig holds the settings for one named backend.
type BackendConfig struct {
	BaseURL   string `yaml:"base_url"`
	TimeoutS  int    `yaml:"timeout_s"`
	APIKey    string `yaml:"api_key"`
	Model     string `yaml:"model"`
	ResetSlot bool   `yaml:"reset_slot"`
	SlotID    int    `yaml:"slot_id"`
}

// Config is the top-level document this type describes.
type Config struct {
	DataRoot string `yaml:"data_root"`
	RepoRoot string `yaml:"repo_root"`
	Backend  string `yaml:"backend"`

	FakeResponses     []string            `yaml:"fake_responses"`
	FakeRoleResponses map[string][]string `yaml:"fake_role_responses"`

	LlamaServer BackendConfig `yaml:"llama_server"`
	Anthropic   BackendConfig `yaml:"anthropic"`
	OpenAI      BackendConfig `yaml:"openai"`
	Gemini      BackendConfig `yaml:"gemini"`
}

// Default returns a Config with the same defaults the Python ancestor's CLI
// falls back to when no config file and no environment variable supply a
// value: data under ./data, repo root at the current directory, and the
// fake backend selected so `smoke` always works with zero setup.
func Default() Config {
	return Config{
		DataRoot: "./data",
		RepoRoot: ".",
		Backend:  "fake",
	}
}

// Load reads path (if non-empty) as YAML into Default(), then applies
// environment overrides. An empty path is not an error: it is treated the
// same as no config file. A non-empty path that cannot be read or parsed is
// an error.
func Load(path string) (Config, error) {
	cfg := Default()

	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

// applyEnv overrides cfg fields from the closed set of environment variables
// the design names, plus the provider API key variables for the
// anthropic/openai/gemini backends.
func applyEnv(cfg *Config) {
	if v, ok := os.LookupEnv("DATA_ROOT"); ok {
		cfg.DataRoot = v
	}
	if v, ok := os.LookupEnv("REPO_ROOT"); ok {
		cfg.RepoRoot = v
	}
	if v, ok := os.LookupEnv("SPECTATOR_BACKEND"); ok {
		cfg.Backend = v
	}
	if v, ok := os.LookupEnv("SPECTATOR_FAKE_RESPONSES"); ok {
		cfg.FakeResponses = splitNonEmpty(v, "\n")
	}
	if v, ok := os.LookupEnv("SPECTATOR_FAKE_ROLE_RESPONSES"); ok {
		cfg.FakeRoleResponses = parseRoleResponses(v)
	}

	if v, ok := os.LookupEnv("LLAMA_SERVER_BASE_URL"); ok {
		cfg.LlamaServer.BaseURL = v
	}
	if v, ok := os.LookupEnv("LLAMA_SERVER_TIMEOUT_S"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LlamaServer.TimeoutS = n
		}
	}
	if v, ok := os.LookupEnv("LLAMA_SERVER_API_KEY"); ok {
		cfg.LlamaServer.APIKey = v
	}
	if v, ok := os.LookupEnv("LLAMA_SERVER_MODEL"); ok {
		cfg.LlamaServer.Model = v
	}
	if v, ok := os.LookupEnv("LLAMA_SERVER_RESET_SLOT"); ok {
		cfg.LlamaServer.ResetSlot = isTruthy(v)
	}
	if v, ok := os.LookupEnv("LLAMA_SERVER_SLOT_ID"); ok {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.LlamaServer.SlotID = n
		}
	}

	if v, ok := os.LookupEnv("ANTHROPIC_API_KEY"); ok {
		cfg.Anthropic.APIKey = v
	}
	if v, ok := os.LookupEnv("OPENAI_API_KEY"); ok {
		cfg.OpenAI.APIKey = v
	}
	if v, ok := os.LookupEnv("GEMINI_API_KEY"); ok {
		cfg.Gemini.APIKey = v
	}
}

func isTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, part := range strings.Split(s, sep) {
		if strings.TrimSpace(part) != "" {
			out = append(out, part)
		}
	}
	return out
}

// parseRoleResponses parses "role1=resp1|resp2;role2=resp3" into a
// role-to-queue map, the flat text shape an env var can carry.
func parseRoleResponses(v string) map[string][]string {
	out := map[string][]string{}
	for _, entry := range strings.Split(v, ";") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		role, responses, found := strings.Cut(entry, "=")
		if !found {
			continue
		}
		out[role] = splitNonEmpty(responses, "|")
	}
	return out
}

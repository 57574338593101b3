package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != "fake" {
		t.Errorf("got backend %q, want fake", cfg.Backend)
	}
	if cfg.DataRoot != "./data" {
		t.Errorf("got data root %q, want ./data", cfg.DataRoot)
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	yamlText := "data_root: /tmp/spectator-data\nbackend: llamaserver\nllama_server:\n  base_url: http://localhost:8080\n  model: qwen\n"
	if err := os.WriteFile(path, []byte(yamlText), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.DataRoot != "/tmp/spectator-data" {
		t.Errorf("got data root %q", cfg.DataRoot)
	}
	if cfg.Backend != "llamaserver" {
		t.Errorf("got backend %q", cfg.Backend)
	}
	if cfg.LlamaServer.BaseURL != "http://localhost:8080" {
		t.Errorf("got base url %q", cfg.LlamaServer.BaseURL)
	}
}

func TestEnvOverridesYAML(t *testing.T) {
	t.Setenv("SPECTATOR_BACKEND", "anthropic")
	t.Setenv("ANTHROPIC_API_KEY", "sk-test-key")
	t.Setenv("DATA_ROOT", "/override")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend != "anthropic" {
		t.Errorf("got backend %q, want anthropic", cfg.Backend)
	}
	if cfg.Anthropic.APIKey != "sk-test-key" {
		t.Errorf("got anthropic api key %q", cfg.Anthropic.APIKey)
	}
	if cfg.DataRoot != "/override" {
		t.Errorf("got data root %q", cfg.DataRoot)
	}
}

func TestParseRoleResponses(t *testing.T) {
	out := parseRoleResponses("governor=hi|there;planner=plan one")
	if len(out["governor"]) != 2 || out["governor"][0] != "hi" || out["governor"][1] != "there" {
		t.Errorf("unexpected governor queue: %v", out["governor"])
	}
	if len(out["planner"]) != 1 || out["planner"][0] != "plan one" {
		t.Errorf("unexpected planner queue: %v", out["planner"])
	}
}

func TestLoadMissingFileErrors(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Fatal("expected error for missing config file")
	}
}

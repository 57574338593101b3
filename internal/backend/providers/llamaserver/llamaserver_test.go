package llamaserver

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andrewfreeman/spectator/internal/backend"
	"github.com/andrewfreeman/spectator/pkg/spectator"
)

func TestCompleteNonStreamingExtractsMessageContent(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		if payload["temperature"] != float64(0) || payload["top_p"] != float64(1) {
			t.Errorf("expected default temperature/top_p, got %v", payload)
		}
		w.Write([]byte(`{"choices":[{"message":{"content":"hello there"}}]}`))
	}))
	defer server.Close()

	b := New()
	b.BaseURL = server.URL
	got, err := b.Complete(context.Background(), "hi", backend.Params{Role: "governor"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "hello there" {
		t.Errorf("got %q", got)
	}
}

func TestBuildPayloadDefaultsTwoMessageArray(t *testing.T) {
	b := New()
	payload := b.buildPayload("do the thing", backend.Params{})
	messages, ok := payload["messages"].([]map[string]string)
	if !ok || len(messages) != 2 {
		t.Fatalf("got messages %v", payload["messages"])
	}
	if messages[0]["role"] != "system" || messages[1]["role"] != "user" || messages[1]["content"] != "do the thing" {
		t.Errorf("got %v", messages)
	}
	if payload["cache_prompt"] != false {
		t.Errorf("expected cache_prompt default false, got %v", payload["cache_prompt"])
	}
}

func TestBuildPayloadUsesSuppliedMessages(t *testing.T) {
	b := New()
	payload := b.buildPayload("ignored", backend.Params{
		Messages: []spectator.Message{{Role: "system", Text: "custom rules"}},
	})
	messages, ok := payload["messages"].([]map[string]string)
	if !ok || len(messages) != 1 || messages[0]["content"] != "custom rules" {
		t.Fatalf("got messages %v", payload["messages"])
	}
}

func TestCompleteStreamingAccumulatesDeltas(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body := strings.Join([]string{
			`data: {"choices":[{"delta":{"content":"Hel"}}]}`,
			`data: {"choices":[{"delta":{"content":"lo"}}]}`,
			`data: [DONE]`,
			"",
		}, "\n")
		w.Write([]byte(body))
	}))
	defer server.Close()

	b := New()
	b.BaseURL = server.URL
	var deltas []string
	got, err := b.Complete(context.Background(), "hi", backend.Params{
		Role:           "governor",
		Stream:         true,
		StreamCallback: func(d string) { deltas = append(deltas, d) },
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != "Hello" {
		t.Errorf("got %q want %q", got, "Hello")
	}
	if len(deltas) != 2 {
		t.Errorf("got deltas %v", deltas)
	}
}

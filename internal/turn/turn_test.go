package turn

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andrewfreeman/spectator/internal/backend/providers/fake"
)

func TestRunTurnEndToEnd(t *testing.T) {
	dataRoot := t.TempDir()
	be := fake.New()
	be.SetRoleResponses("reflection", []string{"reflecting"})
	be.SetRoleResponses("planner", []string{"planning"})
	be.SetRoleResponses("critic", []string{"critiquing"})
	be.SetRoleResponses("governor", []string{"the final answer"})

	ctrl := NewController(dataRoot, be, nil)

	finalText, err := ctrl.RunTurn(context.Background(), "sess-1", "hello there")
	if err != nil {
		t.Fatalf("RunTurn returned error: %v", err)
	}
	if finalText != "the final answer" {
		t.Errorf("got %q, want %q", finalText, "the final answer")
	}

	cp, err := ctrl.Store.Load("sess-1")
	if err != nil {
		t.Fatalf("Load after RunTurn: %v", err)
	}
	if cp.Revision != 1 {
		t.Errorf("got revision %d, want 1", cp.Revision)
	}
	if len(cp.RecentMessages) != 2 {
		t.Fatalf("got %d messages, want 2", len(cp.RecentMessages))
	}
	if cp.RecentMessages[0].Role != "user" || cp.RecentMessages[0].Text != "hello there" {
		t.Errorf("unexpected first message: %+v", cp.RecentMessages[0])
	}
	if cp.RecentMessages[1].Role != "assistant" || cp.RecentMessages[1].Text != "the final answer" {
		t.Errorf("unexpected second message: %+v", cp.RecentMessages[1])
	}
	if len(cp.TraceTail) != 1 || !strings.HasSuffix(cp.TraceTail[0], "rev-1.jsonl") {
		t.Errorf("unexpected trace tail: %v", cp.TraceTail)
	}

	tracePath := filepath.Join(dataRoot, "traces", cp.TraceTail[0])
	if _, err := os.Stat(tracePath); err != nil {
		t.Errorf("expected trace file to exist: %v", err)
	}
}

func TestRunTurnSecondCallIncrementsRevision(t *testing.T) {
	dataRoot := t.TempDir()
	be := fake.New()
	be.SetRoleResponses("governor", []string{"answer one", "answer two"})

	ctrl := NewController(dataRoot, be, nil)

	if _, err := ctrl.RunTurn(context.Background(), "sess-1", "first"); err != nil {
		t.Fatalf("first RunTurn: %v", err)
	}
	if _, err := ctrl.RunTurn(context.Background(), "sess-1", "second"); err != nil {
		t.Fatalf("second RunTurn: %v", err)
	}

	cp, err := ctrl.Store.Load("sess-1")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cp.Revision != 2 {
		t.Errorf("got revision %d, want 2", cp.Revision)
	}
	if len(cp.TraceTail) != 2 {
		t.Errorf("got %d trace tail entries, want 2", len(cp.TraceTail))
	}
	if len(cp.RecentMessages) != 4 {
		t.Errorf("got %d messages, want 4", len(cp.RecentMessages))
	}
}

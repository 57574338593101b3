package pipeline

import (
	"strings"
	"testing"

	"github.com/andrewfreeman/spectator/pkg/spectator"
)

func TestFrameHistoryDropsNonUserAssistantRoles(t *testing.T) {
	messages := []spectator.Message{
		{Role: "system", Text: "ignored"},
		{Role: "user", Text: "hi"},
		{Role: "assistant", Text: "hello"},
	}
	out := FrameHistory(messages)
	if strings.Contains(out, "ignored") {
		t.Errorf("expected system role to be dropped, got %q", out)
	}
}

func TestFrameHistoryCapsToLastEight(t *testing.T) {
	var messages []spectator.Message
	for i := 0; i < 20; i++ {
		messages = append(messages, spectator.Message{Role: "user", Text: "m"})
	}
	out := FrameHistory(messages)
	count := strings.Count(out, `"role"`)
	if count != maxHistoryMessages {
		t.Errorf("got %d messages in output, want %d", count, maxHistoryMessages)
	}
}

func TestFrameHistoryTailTruncatesOversizedSingleMessage(t *testing.T) {
	huge := strings.Repeat("x", maxHistoryJSONChars*3)
	out := FrameHistory([]spectator.Message{{Role: "user", Text: huge}})
	if len(out) > maxHistoryJSONChars {
		t.Errorf("got length %d, want <= %d", len(out), maxHistoryJSONChars)
	}
	if out == "[]" {
		t.Error("expected a truncated prefix, not an empty array")
	}
}

func TestFrameHistoryEmptyInput(t *testing.T) {
	if out := FrameHistory(nil); out != "[]" {
		t.Errorf("got %q want []", out)
	}
}

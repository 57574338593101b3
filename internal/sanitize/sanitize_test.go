package sanitize

import "testing"

func TestSanitizeStripsThinkWrapper(t *testing.T) {
	result := Sanitize("<think>internal musing</think>The answer is 4.")
	if result.Text != "The answer is 4." {
		t.Fatalf("unexpected text: %q", result.Text)
	}
}

func TestSanitizeStripsToolAndNotesBlocksFromVisible(t *testing.T) {
	raw := "Sure. <<<TOOL_CALLS_JSON>>>[{\"tool\":\"fs.list_dir\",\"args\":{}}]<<<END_TOOL_CALLS_JSON>>> Done. <<<NOTES_JSON>>>{\"set_goals\":[\"a\"]}<<<END_NOTES_JSON>>>"
	result := Sanitize(raw)
	for _, marker := range []string{"TOOL_CALLS_JSON", "NOTES_JSON"} {
		if contains(result.Text, marker) {
			t.Errorf("visible text still contains %q: %q", marker, result.Text)
		}
	}
}

func TestSanitizeStripsLeadingScaffolding(t *testing.T) {
	raw := "STATE:\n{\"goals\":[]}\n\nThe real answer."
	result := Sanitize(raw)
	if result.Text != "The real answer." {
		t.Fatalf("unexpected text: %q", result.Text)
	}
	if !containsLabel(result.Removed, "STATE") {
		t.Errorf("expected STATE label removed, got %v", result.Removed)
	}
}

func TestSanitizeEmptyOutputFallback(t *testing.T) {
	raw := "STATE:\nonly scaffolding\n\n"
	result := Sanitize(raw)
	if !result.Empty || result.Text != EmptyOutputPlaceholder {
		t.Fatalf("expected empty fallback, got %+v", result)
	}
}

func TestSanitizeRemovesDanglingMarkerWithoutPair(t *testing.T) {
	raw := "Partial output <<<TOOL_CALLS_JSON>>> still here"
	result := Sanitize(raw)
	if contains(result.Text, "TOOL_CALLS_JSON") {
		t.Errorf("expected dangling marker removed, got %q", result.Text)
	}
}

func contains(s, substr string) bool {
	return len(s) >= len(substr) && (func() bool {
		for i := 0; i+len(substr) <= len(s); i++ {
			if s[i:i+len(substr)] == substr {
				return true
			}
		}
		return false
	})()
}

func containsLabel(list []string, label string) bool {
	for _, l := range list {
		if l == label {
			return true
		}
	}
	return false
}

package condense

import "testing"

func TestDedupePreserveOrder(t *testing.T) {
	got := DedupePreserveOrder([]string{"a", "b", "a", "c", "b"})
	want := []string{"a", "b", "c"}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("index %d: got %q want %q", i, got[i], want[i])
		}
	}
}

func TestCapTailZeroIsEmpty(t *testing.T) {
	got := CapTail([]string{"a", "b"}, 0)
	if len(got) != 0 {
		t.Errorf("expected empty, got %v", got)
	}
}

func TestTruncateTextShorterThanMarker(t *testing.T) {
	got := TruncateText("hello world this is long", 3)
	if got != "..." {
		t.Errorf("expected prefix of marker, got %q", got)
	}
}

func TestCondenseListDedupeThenCapTail32(t *testing.T) {
	items := make([]string, 0, 40)
	for i := 0; i < 40; i++ {
		items = append(items, string(rune('a'+i%26))+string(rune('0'+i/26)))
	}
	out, report := CondenseList("goals", items, 32)
	if len(out) != 32 {
		t.Fatalf("expected 32 goals, got %d", len(out))
	}
	if report.Removed == 0 {
		t.Errorf("expected non-zero removed count")
	}
	// Preserves the most recent 32 after dedup.
	if out[len(out)-1] != items[len(items)-1] {
		t.Errorf("expected last item preserved, got %q", out[len(out)-1])
	}
}

func TestCondenseUpstreamTotalBudget(t *testing.T) {
	texts := map[string]string{
		"reflection": stringsRepeat("a", 2000),
		"planner":    stringsRepeat("b", 2000),
	}
	order := []string{"reflection", "planner"}
	out, changed := CondenseUpstream(texts, order, 1500, 2000)
	if !changed {
		t.Errorf("expected condensation to report changed=true")
	}
	total := len(out["reflection"]) + len(out["planner"])
	if total > 2000 {
		t.Errorf("total upstream chars %d exceeds budget 2000", total)
	}
}

func stringsRepeat(s string, n int) string {
	b := make([]byte, 0, n*len(s))
	for i := 0; i < n; i++ {
		b = append(b, s...)
	}
	return string(b)
}

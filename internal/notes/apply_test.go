package notes

import (
	"testing"

	"github.com/andrewfreeman/spectator/pkg/spectator"
)

func TestApplyCondensesGoalsTo32(t *testing.T) {
	pre := spectator.NewSessionState()
	for i := 0; i < 40; i++ {
		pre.Goals = append(pre.Goals, itoa(i))
	}
	newGoals := []string{"extra-1", "extra-2"}
	patch := &spectator.NotesPatch{Goals: &newGoals}

	out, reports, _ := Apply(pre, patch, DefaultPolicy())
	if len(out.Goals) != 32 {
		t.Fatalf("expected 32 goals, got %d", len(out.Goals))
	}
	if len(reports) != 1 || reports[0].Removed == 0 {
		t.Errorf("expected non-zero goals_removed report, got %+v", reports)
	}
}

func TestApplyCloseOpenLoopsRemoves(t *testing.T) {
	pre := spectator.NewSessionState()
	pre.OpenLoops = []string{"a", "b", "c"}
	closeLoops := []string{"b"}
	patch := &spectator.NotesPatch{CloseOpenLoops: &closeLoops}

	out, _, _ := Apply(pre, patch, DefaultPolicy())
	for _, loop := range out.OpenLoops {
		if loop == "b" {
			t.Fatalf("expected loop 'b' closed, still present in %v", out.OpenLoops)
		}
	}
}

func TestApplyNilPatchIsNoop(t *testing.T) {
	pre := spectator.NewSessionState()
	pre.Goals = []string{"x"}
	out, reports, actions := Apply(pre, nil, DefaultPolicy())
	if len(out.Goals) != 1 || out.Goals[0] != "x" {
		t.Errorf("expected state unchanged, got %+v", out)
	}
	if reports != nil || actions != nil {
		t.Errorf("expected nil reports/actions for nil patch")
	}
}

func itoa(i int) string {
	digits := "0123456789"
	if i == 0 {
		return "0"
	}
	var b []byte
	for i > 0 {
		b = append([]byte{digits[i%10]}, b...)
		i /= 10
	}
	return "g" + string(b)
}

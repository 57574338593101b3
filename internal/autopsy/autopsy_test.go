package autopsy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/andrewfreeman/spectator/internal/trace"
)

func writeTrace(t *testing.T, dir string, events []trace.Event) string {
	t.Helper()
	w, err := trace.Open(dir, "sess", "rev-1")
	if err != nil {
		t.Fatalf("trace.Open: %v", err)
	}
	for i, e := range events {
		if err := w.Emit(float64(i), e.Kind, e.Data); err != nil {
			t.Fatalf("Emit: %v", err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	return w.Path
}

func TestAutopsyFromTraceCleanRun(t *testing.T) {
	dir := t.TempDir()
	path := writeTrace(t, dir, []trace.Event{
		{Kind: trace.KindLLMReq, Data: map[string]any{"role": "governor"}},
		{Kind: trace.KindLLMDone, Data: map[string]any{"role": "governor"}},
		{Kind: trace.KindToolStart, Data: map[string]any{"id": "t1", "tool": "http.get"}},
		{Kind: trace.KindToolDone, Data: map[string]any{"id": "t1", "tool": "http.get", "ok": true}},
	})

	report, err := AutopsyFromTrace(path, "")
	if err != nil {
		t.Fatalf("AutopsyFromTrace: %v", err)
	}
	if len(report.Anomalies) != 0 {
		t.Errorf("expected no anomalies, got %+v", report.Anomalies)
	}
	if report.EventCount != 4 {
		t.Errorf("got event count %d, want 4", report.EventCount)
	}
}

func TestAutopsyFromTraceDetectsMismatchAndMissingDone(t *testing.T) {
	dir := t.TempDir()
	path := writeTrace(t, dir, []trace.Event{
		{Kind: trace.KindLLMReq, Data: map[string]any{"role": "planner"}},
		{Kind: trace.KindToolStart, Data: map[string]any{"id": "t1", "tool": "sandbox.exec"}},
	})

	report, err := AutopsyFromTrace(path, "")
	if err != nil {
		t.Fatalf("AutopsyFromTrace: %v", err)
	}

	var codes []string
	for _, a := range report.Anomalies {
		codes = append(codes, a.Code)
	}
	wantCodes := map[string]bool{"llm_req_done_mismatch": true, "tool_missing_done": true}
	for _, c := range codes {
		if !wantCodes[c] {
			t.Errorf("unexpected anomaly code %q", c)
		}
		delete(wantCodes, c)
	}
	if len(wantCodes) != 0 {
		t.Errorf("missing expected anomaly codes: %v", wantCodes)
	}
	if report.CauseCategories["llm_lifecycle"] != 1 {
		t.Errorf("got llm_lifecycle count %d, want 1", report.CauseCategories["llm_lifecycle"])
	}
}

func TestAutopsyFromTraceDetectsToolFailureAndTruncation(t *testing.T) {
	dir := t.TempDir()
	path := writeTrace(t, dir, []trace.Event{
		{Kind: trace.KindToolStart, Data: map[string]any{"id": "t1", "tool": "http.get"}},
		{Kind: trace.KindToolDone, Data: map[string]any{"id": "t1", "tool": "http.get", "ok": false}},
		{Kind: trace.KindToolResultTruncated, Data: map[string]any{"tools": []string{"http.get"}}},
		{Kind: trace.KindSanitizeWarning, Data: map[string]any{"role": "critic"}},
	})

	report, err := AutopsyFromTrace(path, "")
	if err != nil {
		t.Fatalf("AutopsyFromTrace: %v", err)
	}
	if len(report.Anomalies) != 3 {
		t.Fatalf("got %d anomalies, want 3: %+v", len(report.Anomalies), report.Anomalies)
	}
	if len(report.Recommendations) == 0 {
		t.Error("expected at least one recommendation")
	}
}

func TestAutopsyFromTraceHandlesMalformedLines(t *testing.T) {
	dir := t.TempDir()
	tracePath := filepath.Join(dir, "sess__rev-1.jsonl")
	content := "{\"ts\":1,\"kind\":\"llm_req\",\"data\":{\"role\":\"governor\"}}\nnot json\n{\"ts\":2,\"kind\":\"llm_done\",\"data\":{\"role\":\"governor\"}}\n"
	if err := os.WriteFile(tracePath, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	report, err := AutopsyFromTrace(tracePath, "")
	if err != nil {
		t.Fatalf("AutopsyFromTrace: %v", err)
	}
	found := false
	for _, a := range report.Anomalies {
		if a.Code == "trace_parse_error" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a trace_parse_error anomaly, got %+v", report.Anomalies)
	}
}

func TestRenderMarkdownNoAnomalies(t *testing.T) {
	md := RenderMarkdown(Report{TracePath: "x.jsonl", EventCount: 2})
	if md == "" {
		t.Fatal("expected non-empty markdown")
	}
}

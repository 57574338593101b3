// Package sanitize implements the 7-step visible-output sanitizer: strip
// reasoning wrappers, leading/trailing scaffolding,
// interior retrieval blocks, and dangling or real tool/notes markers, with
// tool-call and notes blocks protected by opaque placeholders so they
// survive the intermediate passes intact until the final strip.
package sanitize

import (
	"fmt"
	"regexp"
	"strings"
)

const (
	toolsStart = "<<<TOOL_CALLS_JSON>>>"
	toolsEnd   = "<<<END_TOOL_CALLS_JSON>>>"
	notesStart = "<<<NOTES_JSON>>>"
	notesEnd   = "<<<END_NOTES_JSON>>>"

	retrievedStart = "=== RETRIEVED_MEMORY ==="
	retrievedEnd   = "=== END_RETRIEVED_MEMORY ==="
	retrievalStart = "=== RETRIEVAL ==="
	retrievalEnd   = "=== END RETRIEVAL ==="

	// EmptyOutputPlaceholder is returned when sanitization would otherwise
	// leave nothing visible.
	EmptyOutputPlaceholder = "..."
)

var (
	reasoningPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?s)<think>.*?</think>`),
		regexp.MustCompile(`(?s)<<<THOUGHTS>>>.*?<<<END_THOUGHTS>>>`),
		regexp.MustCompile(`(?s)=== REASONING ===.*?=== END REASONING ===`),
	}

	protectedPattern = regexp.MustCompile(
		"(?s)" + regexp.QuoteMeta(notesStart) + ".*?" + regexp.QuoteMeta(notesEnd) +
			"|" + regexp.QuoteMeta(toolsStart) + ".*?" + regexp.QuoteMeta(toolsEnd))
	toolsBlockPattern = regexp.MustCompile("(?s)" + regexp.QuoteMeta(toolsStart) + ".*?" + regexp.QuoteMeta(toolsEnd))
	notesBlockPattern = regexp.MustCompile("(?s)" + regexp.QuoteMeta(notesStart) + ".*?" + regexp.QuoteMeta(notesEnd))

	retrievalBlockPattern = regexp.MustCompile(
		"(?s)" + regexp.QuoteMeta(retrievedStart) + ".*?" + regexp.QuoteMeta(retrievedEnd) +
			"|" + regexp.QuoteMeta(retrievalStart) + ".*?" + regexp.QuoteMeta(retrievalEnd))
)

// scaffoldHeaders maps a leading/trailing header prefix to the label
// reported when a block beginning with it is stripped.
var scaffoldHeaders = []struct {
	header string
	label  string
}{
	{"HISTORY_JSON:", "HISTORY"},
	{"HISTORY:", "HISTORY"},
	{"STATE:", "STATE"},
	{"UPSTREAM:", "UPSTREAM"},
	{"USER:", "USER"},
	{"TOOL_RESULTS:", "TOOL_RESULTS"},
	{"reflection:", "ROLE_TRANSCRIPT"},
	{"planner:", "ROLE_TRANSCRIPT"},
	{"critic:", "ROLE_TRANSCRIPT"},
	{"assistant:", "ROLE_TRANSCRIPT"},
}

// Result is the outcome of Sanitize.
type Result struct {
	Text    string
	Removed []string
	Empty   bool
}

// Sanitize runs the full 7-step pipeline over raw model output.
func Sanitize(text string) Result {
	if text == "" {
		return Result{Text: EmptyOutputPlaceholder, Empty: true}
	}

	protected, placeholders := protectBlocks(text)

	working := stripReasoningWrappers(protected)
	working, leadingRemoved := stripLeadingScaffolding(working)
	working, trailingRemoved := stripTrailingScaffolding(working)
	working, retrievalRemoved := stripRetrievalBlocks(working)
	working, markerPolluted := stripDanglingMarkers(working)

	for placeholder, original := range placeholders {
		working = strings.ReplaceAll(working, placeholder, original)
	}

	working, blockRemoved := stripToolNotesBlocks(working)

	var removed []string
	seen := map[string]struct{}{}
	add := func(label string) {
		if _, ok := seen[label]; ok {
			return
		}
		seen[label] = struct{}{}
		removed = append(removed, label)
	}
	for _, l := range leadingRemoved {
		add(l)
	}
	for _, l := range trailingRemoved {
		add(l)
	}
	if retrievalRemoved {
		add("RETRIEVED_MEMORY")
	}
	if markerPolluted {
		add("MARKER_POLLUTION")
	}
	for _, l := range blockRemoved {
		add(l)
	}

	if strings.TrimSpace(working) == "" {
		return Result{Text: EmptyOutputPlaceholder, Removed: removed, Empty: true}
	}
	return Result{Text: working, Removed: removed}
}

func protectBlocks(text string) (string, map[string]string) {
	placeholders := map[string]string{}
	matches := protectedPattern.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return text, placeholders
	}
	var b strings.Builder
	last := 0
	for i, m := range matches {
		placeholder := fmt.Sprintf("<<<SPECTATOR_BLOCK_%d>>>", i)
		placeholders[placeholder] = text[m[0]:m[1]]
		b.WriteString(text[last:m[0]])
		b.WriteString(placeholder)
		last = m[1]
	}
	b.WriteString(text[last:])
	return b.String(), placeholders
}

func stripReasoningWrappers(text string) string {
	for _, p := range reasoningPatterns {
		text = p.ReplaceAllString(text, "")
	}
	return text
}

func stripLeadingScaffolding(text string) (string, []string) {
	var removed []string
	working := text
	for {
		stripped := strings.TrimLeft(working, " \t\r\n")
		if stripped == "" {
			return "", removed
		}
		if strings.HasPrefix(stripped, retrievedStart) || strings.HasPrefix(stripped, retrievalStart) {
			endMarker := retrievedEnd
			if strings.HasPrefix(stripped, retrievalStart) {
				endMarker = retrievalEnd
			}
			idx := strings.Index(stripped, endMarker)
			cut := len(stripped)
			if idx != -1 {
				cut = idx + len(endMarker)
			}
			working = stripped[cut:]
			removed = appendUnique(removed, "RETRIEVED_MEMORY")
			continue
		}
		matched := false
		for _, h := range scaffoldHeaders {
			if strings.HasPrefix(stripped, h.header) {
				blockEnd := strings.Index(stripped, "\n\n")
				if blockEnd != -1 {
					working = stripped[blockEnd+2:]
				} else {
					working = ""
				}
				removed = appendUnique(removed, h.label)
				matched = true
				break
			}
		}
		if !matched {
			return working, removed
		}
	}
}

func stripTrailingScaffolding(text string) (string, []string) {
	var removed []string
	working := text
	for {
		stripped := strings.TrimRight(working, " \t\r\n")
		if stripped == "" {
			return "", removed
		}
		if strings.HasSuffix(stripped, retrievedEnd) || strings.HasSuffix(stripped, retrievalEnd) {
			startMarker := retrievedStart
			if strings.HasSuffix(stripped, retrievalEnd) {
				startMarker = retrievalStart
			}
			idx := strings.LastIndex(stripped, startMarker)
			if idx != -1 {
				working = stripped[:idx]
				removed = appendUnique(removed, "RETRIEVED_MEMORY")
				continue
			}
		}
		lastBreak := strings.LastIndex(stripped, "\n\n")
		var lastBlock, prefix string
		if lastBreak == -1 {
			lastBlock = stripped
			prefix = ""
		} else {
			lastBlock = stripped[lastBreak+2:]
			prefix = stripped[:lastBreak]
		}
		lastBlockStripped := strings.TrimLeft(lastBlock, " \t\r\n")
		matched := false
		for _, h := range scaffoldHeaders {
			if strings.HasPrefix(lastBlockStripped, h.header) {
				working = prefix
				removed = appendUnique(removed, h.label)
				matched = true
				break
			}
		}
		if !matched {
			return working, removed
		}
	}
}

func stripDanglingMarkers(text string) (string, bool) {
	removed := false
	for _, marker := range []string{toolsStart, toolsEnd, notesStart, notesEnd} {
		if strings.Contains(text, marker) {
			text = strings.ReplaceAll(text, marker, "")
			removed = true
		}
	}
	return text, removed
}

func stripToolNotesBlocks(text string) (string, []string) {
	var removed []string
	if toolsBlockPattern.MatchString(text) {
		text = toolsBlockPattern.ReplaceAllString(text, "")
		removed = append(removed, "TOOL_BLOCK_STRIPPED")
	}
	if notesBlockPattern.MatchString(text) {
		text = notesBlockPattern.ReplaceAllString(text, "")
		removed = append(removed, "NOTES_BLOCK_STRIPPED")
	}
	text, polluted := stripDanglingMarkers(text)
	if polluted {
		removed = append(removed, "MARKER_POLLUTION")
	}
	return text, removed
}

func stripRetrievalBlocks(text string) (string, bool) {
	if retrievalBlockPattern.MatchString(text) {
		return retrievalBlockPattern.ReplaceAllString(text, ""), true
	}
	return text, false
}

func appendUnique(list []string, item string) []string {
	for _, existing := range list {
		if existing == item {
			return list
		}
	}
	return append(list, item)
}

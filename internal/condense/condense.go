// Package condense implements the dedup/cap/truncate primitives that keep
// session state and upstream role text bounded.
package condense

import "strings"

// TruncatedMarker is appended when TruncateText shortens a string.
const TruncatedMarker = "...[truncated]"

// DefaultMaxUpstreamCharsPerRole is the default per-role cap applied before
// the total-budget pass in CondenseUpstream.
const DefaultMaxUpstreamCharsPerRole = 1500

// DefaultMaxUpstreamTotalChars is the default combined cap across all prior
// role texts in CondenseUpstream.
const DefaultMaxUpstreamTotalChars = 4000

// DedupePreserveOrder removes duplicate strings, keeping the first
// occurrence of each.
func DedupePreserveOrder(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// CapTail keeps the last n items of the slice, or none when n <= 0.
func CapTail(items []string, n int) []string {
	if n <= 0 {
		return []string{}
	}
	if len(items) <= n {
		return items
	}
	out := make([]string, n)
	copy(out, items[len(items)-n:])
	return out
}

// TruncateText shortens s to at most n characters, appending TruncatedMarker
// when it does. If n is smaller than the marker itself, a prefix of the
// marker is returned instead.
func TruncateText(s string, n int) string {
	if n <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	markerRunes := []rune(TruncatedMarker)
	if n <= len(markerRunes) {
		return string(markerRunes[:n])
	}
	keep := n - len(markerRunes)
	return string(runes[:keep]) + TruncatedMarker
}

// FieldReport records how many items a capped list field lost to dedup and
// cap-tail, used to populate the condense{scope:state} trace event.
type FieldReport struct {
	Field        string
	InputCount   int
	OutputCount  int
	Removed      int
}

// CondenseList applies DedupePreserveOrder then CapTail, in that order (not
// the reverse — cap-then-dedupe would under-count how much was actually
// shed), and reports how many entries were removed overall.
func CondenseList(field string, items []string, cap int) ([]string, FieldReport) {
	deduped := DedupePreserveOrder(items)
	capped := CapTail(deduped, cap)
	return capped, FieldReport{
		Field:       field,
		InputCount:  len(items),
		OutputCount: len(capped),
		Removed:     len(items) - len(capped),
	}
}

// CondenseUpstream truncates each prior role's text to maxPerRole, then, if
// the combined length still exceeds maxTotal, re-truncates entries in order
// until the total fits.
func CondenseUpstream(texts map[string]string, order []string, maxPerRole, maxTotal int) (map[string]string, bool) {
	out := make(map[string]string, len(texts))
	changed := false
	total := 0
	for _, role := range order {
		text, ok := texts[role]
		if !ok {
			continue
		}
		truncated := TruncateText(text, maxPerRole)
		if truncated != text {
			changed = true
		}
		out[role] = truncated
		total += len(truncated)
	}

	if total <= maxTotal {
		return out, changed
	}

	remaining := maxTotal
	for _, role := range order {
		text, ok := out[role]
		if !ok {
			continue
		}
		if remaining <= 0 {
			if text != "" {
				changed = true
			}
			out[role] = ""
			continue
		}
		if len(text) > remaining {
			out[role] = TruncateText(text, remaining)
			changed = true
		}
		remaining -= len(out[role])
	}
	return out, changed
}

// JoinUpstream renders the condensed upstream map into the "UPSTREAM:" prompt
// slot, one "<role>: <text>" line per entry, in pipeline role order.
func JoinUpstream(texts map[string]string, order []string) string {
	var b strings.Builder
	for _, role := range order {
		text, ok := texts[role]
		if !ok || text == "" {
			continue
		}
		b.WriteString(role)
		b.WriteString(": ")
		b.WriteString(text)
		b.WriteString("\n")
	}
	return strings.TrimSuffix(b.String(), "\n")
}

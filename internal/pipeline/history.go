package pipeline

import (
	"encoding/json"

	"github.com/andrewfreeman/spectator/pkg/spectator"
)

const maxHistoryMessages = 8
const maxHistoryJSONChars = 2000

// FrameHistory frames history so that only user/assistant messages are
// forwarded, capped to the last 8, then the JSON serialization is further
// capped to 2000 characters by dropping the oldest messages until it fits,
// or, as a last resort, tail-truncating the single remaining message.
func FrameHistory(messages []spectator.Message) string {
	filtered := make([]spectator.Message, 0, len(messages))
	for _, m := range messages {
		if m.Role == "user" || m.Role == "assistant" {
			filtered = append(filtered, m)
		}
	}
	if len(filtered) > maxHistoryMessages {
		filtered = filtered[len(filtered)-maxHistoryMessages:]
	}

	for len(filtered) > 1 {
		encoded, err := json.Marshal(filtered)
		if err == nil && len(encoded) <= maxHistoryJSONChars {
			return string(encoded)
		}
		filtered = filtered[1:]
	}
	if len(filtered) == 0 {
		return "[]"
	}

	encoded, err := json.Marshal(filtered)
	if err != nil {
		return "[]"
	}
	if len(encoded) <= maxHistoryJSONChars {
		return string(encoded)
	}

	// Last resort: tail-truncate the single remaining message's content.
	// Binary search the longest prefix whose encoding still fits, since each
	// encode is O(n) and a linear char-by-char scan would be O(n^2).
	msg := filtered[0]
	full := msg.Text
	lo, hi := 0, len(full)
	best := "[]"
	for lo <= hi {
		mid := (lo + hi) / 2
		msg.Text = full[:mid]
		encoded, err = json.Marshal([]spectator.Message{msg})
		if err == nil && len(encoded) <= maxHistoryJSONChars {
			best = string(encoded)
			lo = mid + 1
		} else {
			hi = mid - 1
		}
	}
	return best
}

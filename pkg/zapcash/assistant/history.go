// history.go prepares conversation history for the
// model: chronological, blank-free, bounded.
package assistant

import (
	"sort"
	"strings"

	"github.com/zapcash/zapcash/pkg/zapcash/profile"
)

// DefaultHistoryWindow is the number of messages sent to the model when
// the config does not override it.
const DefaultHistoryWindow = 10

// WindowHistory sorts messages by ascending timestamp, drops entries
// whose body is blank after trimming, and keeps only the last limit
// entries. It is idempotent: applying it to its own output is a no-op.
func WindowHistory(msgs []profile.Message, limit int) []profile.Message {
	if limit <= 0 {
		limit = DefaultHistoryWindow
	}

	out := make([]profile.Message, 0, len(msgs))
	for _, m := range msgs {
		if strings.TrimSpace(m.Body) == "" {
			continue
		}
		out = append(out, m)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Timestamp.Before(out[j].Timestamp)
	})

	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out
}

// ToChatMessages converts windowed history into model messages, tagging
// user entries with role "user" and assistant entries with "assistant".
func ToChatMessages(msgs []profile.Message) []ChatMessage {
	out := make([]ChatMessage, 0, len(msgs))
	for _, m := range msgs {
		role := RoleAssistant
		if m.FromUser {
			role = RoleUser
		}
		out = append(out, ChatMessage{Role: role, Content: m.Body})
	}
	return out
}

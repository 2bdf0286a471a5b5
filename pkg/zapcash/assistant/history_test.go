package assistant

import (
	"reflect"
	"testing"
	"time"

	"github.com/zapcash/zapcash/pkg/zapcash/profile"
)

func msgAt(sec int, body string, fromUser bool) profile.Message {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	return profile.Message{Body: body, FromUser: fromUser, Timestamp: base.Add(time.Duration(sec) * time.Second)}
}

func TestWindowHistory(t *testing.T) {
	t.Run("sorts ascending by timestamp", func(t *testing.T) {
		in := []profile.Message{
			msgAt(3, "third", true),
			msgAt(1, "first", true),
			msgAt(2, "second", false),
		}
		out := WindowHistory(in, 10)
		if len(out) != 3 {
			t.Fatalf("expected 3 messages, got %d", len(out))
		}
		if out[0].Body != "first" || out[1].Body != "second" || out[2].Body != "third" {
			t.Errorf("wrong order: %s, %s, %s", out[0].Body, out[1].Body, out[2].Body)
		}
	})

	t.Run("drops blank bodies", func(t *testing.T) {
		in := []profile.Message{
			msgAt(1, "hello", true),
			msgAt(2, "   ", true),
			msgAt(3, "", false),
			msgAt(4, "\n\t", true),
			msgAt(5, "world", false),
		}
		out := WindowHistory(in, 10)
		if len(out) != 2 {
			t.Fatalf("expected 2 messages, got %d", len(out))
		}
		if out[0].Body != "hello" || out[1].Body != "world" {
			t.Errorf("unexpected bodies: %s, %s", out[0].Body, out[1].Body)
		}
	})

	t.Run("keeps the most recent messages", func(t *testing.T) {
		var in []profile.Message
		for i := 0; i < 15; i++ {
			in = append(in, msgAt(i, string(rune('a'+i)), true))
		}
		out := WindowHistory(in, 10)
		if len(out) != 10 {
			t.Fatalf("expected 10 messages, got %d", len(out))
		}
		if out[0].Body != "f" || out[9].Body != "o" {
			t.Errorf("expected last 10, got %s..%s", out[0].Body, out[9].Body)
		}
	})

	t.Run("empty input yields empty output", func(t *testing.T) {
		if out := WindowHistory(nil, 10); len(out) != 0 {
			t.Errorf("expected empty, got %d entries", len(out))
		}
	})

	t.Run("idempotent", func(t *testing.T) {
		in := []profile.Message{
			msgAt(5, "e", true),
			msgAt(2, "b", false),
			msgAt(1, "  ", true),
			msgAt(4, "d", true),
			msgAt(3, "c", false),
		}
		once := WindowHistory(in, 3)
		twice := WindowHistory(once, 3)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("not idempotent:\n once %v\ntwice %v", once, twice)
		}
	})

	t.Run("zero limit falls back to default", func(t *testing.T) {
		var in []profile.Message
		for i := 0; i < 20; i++ {
			in = append(in, msgAt(i, "m", true))
		}
		if out := WindowHistory(in, 0); len(out) != DefaultHistoryWindow {
			t.Errorf("expected %d, got %d", DefaultHistoryWindow, len(out))
		}
	})
}

func TestToChatMessages(t *testing.T) {
	in := []profile.Message{
		msgAt(1, "hi", true),
		msgAt(2, "hello!", false),
	}
	out := ToChatMessages(in)
	if len(out) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(out))
	}
	if out[0].Role != RoleUser || out[0].Content != "hi" {
		t.Errorf("unexpected first message %+v", out[0])
	}
	if out[1].Role != RoleAssistant || out[1].Content != "hello!" {
		t.Errorf("unexpected second message %+v", out[1])
	}
}

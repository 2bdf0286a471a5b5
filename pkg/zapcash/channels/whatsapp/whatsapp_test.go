package whatsapp

import (
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/zapcash/zapcash/pkg/zapcash/channels"
)

func TestNew(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	t.Run("creates instance with defaults", func(t *testing.T) {
		w := New(DefaultConfig(), logger)
		if w == nil {
			t.Fatal("expected non-nil WhatsApp instance")
		}
		if w.Name() != "whatsapp" {
			t.Errorf("expected name 'whatsapp', got %s", w.Name())
		}
		if w.IsConnected() {
			t.Error("expected disconnected on creation")
		}
	})

	t.Run("uses default logger if nil", func(t *testing.T) {
		w := New(DefaultConfig(), nil)
		if w.logger == nil {
			t.Error("expected logger to be set")
		}
	})

	t.Run("applies reconnect backoff default", func(t *testing.T) {
		w := New(Config{DatabasePath: "./data/whatsapp.db"}, logger)
		if w.cfg.ReconnectBackoff != 5*time.Second {
			t.Errorf("expected default backoff 5s, got %v", w.cfg.ReconnectBackoff)
		}
	})
}

func TestParseJID(t *testing.T) {
	t.Run("bare phone number", func(t *testing.T) {
		jid, err := parseJID("5511999999999")
		if err != nil {
			t.Fatalf("parseJID failed: %v", err)
		}
		if jid.User != "5511999999999" {
			t.Errorf("expected user 5511999999999, got %s", jid.User)
		}
		if jid.Server != "s.whatsapp.net" {
			t.Errorf("expected server s.whatsapp.net, got %s", jid.Server)
		}
	})

	t.Run("formatted phone number", func(t *testing.T) {
		jid, err := parseJID("+55 (11) 99999-9999")
		if err != nil {
			t.Fatalf("parseJID failed: %v", err)
		}
		if jid.User != "5511999999999" {
			t.Errorf("expected digits only, got %s", jid.User)
		}
	})

	t.Run("full JID passes through", func(t *testing.T) {
		jid, err := parseJID("5511999999999@s.whatsapp.net")
		if err != nil {
			t.Fatalf("parseJID failed: %v", err)
		}
		if jid.User != "5511999999999" {
			t.Errorf("unexpected user %s", jid.User)
		}
	})

	t.Run("rejects empty", func(t *testing.T) {
		if _, err := parseJID(""); err == nil {
			t.Error("expected error for empty JID")
		}
	})

	t.Run("rejects short numbers", func(t *testing.T) {
		if _, err := parseJID("12345"); err == nil {
			t.Error("expected error for short number")
		}
	})
}

func TestBuildTextMessage(t *testing.T) {
	chat, err := parseJID("5511999999999")
	if err != nil {
		t.Fatalf("parseJID failed: %v", err)
	}

	t.Run("plain text uses conversation", func(t *testing.T) {
		msg := buildTextMessage("hello", "", chat)
		if msg.GetConversation() != "hello" {
			t.Errorf("expected conversation 'hello', got %q", msg.GetConversation())
		}
		if msg.ExtendedTextMessage != nil {
			t.Error("expected no extended message for plain text")
		}
	})

	t.Run("reply quotes the stanza", func(t *testing.T) {
		msg := buildTextMessage("hello", "ABC123", chat)
		ext := msg.ExtendedTextMessage
		if ext == nil {
			t.Fatal("expected extended message for reply")
		}
		if ext.GetText() != "hello" {
			t.Errorf("expected text 'hello', got %q", ext.GetText())
		}
		if ext.GetContextInfo().GetStanzaID() != "ABC123" {
			t.Errorf("expected stanza ABC123, got %q", ext.GetContextInfo().GetStanzaID())
		}
	})
}

func TestSendRequiresConnection(t *testing.T) {
	w := New(DefaultConfig(), nil)
	err := w.Send(t.Context(), &channels.OutgoingMessage{
		RecipientID: "5511999999999",
		Text:        "hi",
	})
	if err != channels.ErrChannelDisconnected {
		t.Errorf("expected ErrChannelDisconnected, got %v", err)
	}
}

package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestEmitMessage(t *testing.T) {
	var gotBody []byte
	var gotSignature string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotBody, _ = io.ReadAll(r.Body)
		gotSignature = r.Header.Get("X-Signature-256")
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	n := New(Config{URL: srv.URL, Secret: "topsecret"}, nil)
	err := n.EmitMessage(context.Background(), Payload{
		SenderHandle:    "5511999999999@s.whatsapp.net",
		RecipientHandle: "bot",
		IsFromBot:       false,
		Text:            "send 50 to Pedro",
	})
	if err != nil {
		t.Fatalf("EmitMessage failed: %v", err)
	}

	t.Run("envelope shape", func(t *testing.T) {
		var evt Event
		if err := json.Unmarshal(gotBody, &evt); err != nil {
			t.Fatalf("bad event body: %v", err)
		}
		if evt.EventType != "message" {
			t.Errorf("expected eventType message, got %q", evt.EventType)
		}
		if evt.ID == "" {
			t.Error("expected event ID")
		}
		if evt.Payload.Text != "send 50 to Pedro" {
			t.Errorf("unexpected payload text %q", evt.Payload.Text)
		}
	})

	t.Run("signature verifies", func(t *testing.T) {
		if gotSignature == "" {
			t.Fatal("expected signature header")
		}
		if !VerifySignature(gotBody, "topsecret", gotSignature) {
			t.Error("signature did not verify")
		}
		if VerifySignature(gotBody, "wrong", gotSignature) {
			t.Error("signature verified with wrong secret")
		}
	})
}

func TestEmitMessageDisabled(t *testing.T) {
	n := New(Config{}, nil)
	if n.Enabled() {
		t.Error("expected disabled notifier")
	}
	if err := n.EmitMessage(context.Background(), Payload{Text: "hi"}); err != nil {
		t.Errorf("no-op notifier returned error: %v", err)
	}
}

func TestEmitMessageRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	n := New(Config{URL: srv.URL}, nil)
	if err := n.EmitMessage(context.Background(), Payload{Text: "hi"}); err == nil {
		t.Error("expected error for rejected delivery")
	}
}

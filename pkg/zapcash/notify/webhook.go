// Package notify delivers message events to an external webhook endpoint
// so downstream systems (CRM, analytics) can observe conversations.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// Config holds webhook delivery settings.
type Config struct {
	// URL is the destination endpoint. Empty disables delivery.
	URL string `yaml:"url"`

	// Secret signs each delivery with HMAC-SHA256. Empty skips signing.
	Secret string `yaml:"secret"`

	// Timeout bounds each delivery attempt.
	Timeout time.Duration `yaml:"timeout"`
}

// DefaultConfig returns webhook defaults (disabled).
func DefaultConfig() Config {
	return Config{Timeout: 10 * time.Second}
}

// Payload is the message body of an event.
type Payload struct {
	SenderHandle    string `json:"senderHandle"`
	RecipientHandle string `json:"recipientHandle"`
	IsFromBot       bool   `json:"isFromBot"`
	Text            string `json:"text"`
}

// Event is the envelope posted to the webhook. Only "message" events are
// emitted today; the eventType field leaves room for more.
type Event struct {
	ID        string  `json:"id"`
	EventType string  `json:"eventType"`
	Timestamp string  `json:"timestamp"`
	Payload   Payload `json:"payload"`
}

// Notifier posts events. A Notifier with an empty URL is a no-op, so
// callers never need nil checks.
type Notifier struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// New creates a Notifier.
func New(cfg Config, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Notifier{
		cfg:    cfg,
		client: &http.Client{Timeout: timeout},
		logger: logger.With("component", "webhook"),
	}
}

// Enabled reports whether deliveries will actually be sent.
func (n *Notifier) Enabled() bool { return n.cfg.URL != "" }

// EmitMessage posts a message event. Delivery failures are logged and
// returned but never block message handling; callers fire and forget.
func (n *Notifier) EmitMessage(ctx context.Context, p Payload) error {
	if !n.Enabled() {
		return nil
	}

	evt := Event{
		ID:        uuid.NewString(),
		EventType: "message",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Payload:   p,
	}

	body, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshaling event: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if n.cfg.Secret != "" {
		req.Header.Set("X-Signature-256", Sign(body, n.cfg.Secret))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.logger.Warn("webhook delivery failed", "event_id", evt.ID, "error", err)
		return fmt.Errorf("delivering event: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		n.logger.Warn("webhook rejected event", "event_id", evt.ID, "status", resp.StatusCode)
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}

	n.logger.Debug("webhook delivered", "event_id", evt.ID, "status", resp.StatusCode)
	return nil
}

// Sign computes the "sha256=<hex>" HMAC signature of a body.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature produced by Sign.
func VerifySignature(body []byte, secret, signature string) bool {
	return hmac.Equal([]byte(Sign(body, secret)), []byte(signature))
}

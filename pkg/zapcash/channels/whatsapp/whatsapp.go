// Package whatsapp implements the WhatsApp channel using whatsmeow, a
// native Go WhatsApp Web API library. No Node.js bridge.
//
// Features:
//   - QR code login with persistent session (SQLite)
//   - Text send/receive with reply quoting
//   - Typing indicators and read receipts
//   - Automatic reconnection with backoff
package whatsapp

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/zapcash/zapcash/pkg/zapcash/channels"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/store"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	waLog "go.mau.fi/whatsmeow/util/log"

	_ "github.com/mattn/go-sqlite3" // SQLite driver for the session store.
)

// Config holds WhatsApp channel configuration.
type Config struct {
	// DatabasePath is the SQLite file holding the whatsmeow session tables.
	DatabasePath string `yaml:"database_path"`

	// AutoRead marks incoming messages as read.
	AutoRead bool `yaml:"auto_read"`

	// SendTyping enables typing indicators while the assistant is working.
	SendTyping bool `yaml:"send_typing"`

	// ReconnectBackoff is the initial backoff between reconnect attempts.
	ReconnectBackoff time.Duration `yaml:"reconnect_backoff"`

	// MaxReconnectAttempts caps reconnection tries (0 = unlimited).
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		DatabasePath:         "./data/whatsapp.db",
		AutoRead:             true,
		SendTyping:           true,
		ReconnectBackoff:     5 * time.Second,
		MaxReconnectAttempts: 10,
	}
}

// WhatsApp implements channels.Channel and channels.PresenceChannel.
type WhatsApp struct {
	cfg    Config
	client *whatsmeow.Client
	logger *slog.Logger

	messages chan *channels.IncomingMessage

	connected         atomic.Bool
	lastEvent         atomic.Value // time.Time
	reconnectAttempts atomic.Int32

	// reconnectGuard prevents concurrent reconnect loops.
	reconnectGuard atomic.Bool

	// messagesClosed prevents emit after Disconnect closed the channel.
	messagesClosed atomic.Bool

	// qrCodes streams login QR strings so the CLI can render them.
	qrCodes chan string

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a WhatsApp channel instance.
func New(cfg Config, logger *slog.Logger) *WhatsApp {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ReconnectBackoff == 0 {
		cfg.ReconnectBackoff = 5 * time.Second
	}
	return &WhatsApp{
		cfg:      cfg,
		logger:   logger.With("component", "whatsapp"),
		messages: make(chan *channels.IncomingMessage, 256),
		qrCodes:  make(chan string, 8),
	}
}

// Name returns "whatsapp".
func (w *WhatsApp) Name() string { return "whatsapp" }

// QRCodes returns the channel login QR strings are delivered on during
// first-time pairing. The serve command renders them in the terminal.
func (w *WhatsApp) QRCodes() <-chan string { return w.qrCodes }

// Connect establishes the WhatsApp Web connection. If no session exists,
// the QR login flow runs in the background and codes are streamed on
// QRCodes so the server can start immediately.
func (w *WhatsApp) Connect(ctx context.Context) error {
	w.ctx, w.cancel = context.WithCancel(ctx)

	w.logger.Info("whatsapp: initializing connection", "session_db", w.cfg.DatabasePath)

	container, err := sqlstore.New(w.ctx, "sqlite3",
		fmt.Sprintf("file:%s?_foreign_keys=1&_journal_mode=WAL", w.cfg.DatabasePath),
		waLog.Noop)
	if err != nil {
		return fmt.Errorf("creating session store: %w", err)
	}

	device, err := w.getDevice(w.ctx, container)
	if err != nil {
		return fmt.Errorf("getting device: %w", err)
	}

	// Device name shown in the WhatsApp linked devices list.
	store.SetOSInfo("ZapCash", [3]uint32{1, 0, 0})

	w.client = whatsmeow.NewClient(device, waLog.Noop)
	w.client.AddEventHandler(w.handleEvent)

	// whatsmeow's built-in auto-reconnect handles network hiccups and
	// server-initiated disconnects; attemptReconnect covers the rest.
	w.client.EnableAutoReconnect = true
	w.client.InitialAutoReconnect = true

	if w.client.Store.ID == nil {
		w.logger.Info("whatsapp: no existing session, QR code required")
		go func() {
			if err := w.loginWithQR(w.ctx); err != nil {
				w.logger.Warn("whatsapp: QR login pending", "error", err)
			}
		}()
		return nil
	}

	if err := w.client.Connect(); err != nil {
		return fmt.Errorf("connecting: %w", err)
	}

	w.connected.Store(true)
	w.logger.Info("whatsapp: connected (existing session)", "jid", w.clientJID())
	return nil
}

// Disconnect gracefully closes the connection.
func (w *WhatsApp) Disconnect() error {
	w.connected.Store(false)
	if w.cancel != nil {
		w.cancel()
	}
	if w.client != nil {
		w.client.Disconnect()
	}
	if w.messagesClosed.CompareAndSwap(false, true) {
		close(w.messages)
	}
	w.logger.Info("whatsapp: disconnected")
	return nil
}

// Logout logs out and clears the linked session.
func (w *WhatsApp) Logout() error {
	if w.client == nil {
		return nil
	}
	w.connected.Store(false)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := w.client.Logout(ctx); err != nil {
		w.logger.Warn("whatsapp: logout error, forcing cleanup", "error", err)
		w.client.Disconnect()
		if w.client.Store != nil {
			if delErr := w.client.Store.Delete(ctx); delErr != nil {
				w.logger.Warn("whatsapp: failed to delete store", "error", delErr)
			}
		}
	}
	w.logger.Info("whatsapp: logged out, session cleared")
	return nil
}

// Send delivers a text message to the recipient in msg.RecipientID
// (bare phone number or full JID).
func (w *WhatsApp) Send(ctx context.Context, msg *channels.OutgoingMessage) error {
	if !w.connected.Load() {
		return channels.ErrChannelDisconnected
	}

	jid, err := parseJID(msg.RecipientID)
	if err != nil {
		return fmt.Errorf("%w: %v", channels.ErrInvalidRecipient, err)
	}

	waMsg := buildTextMessage(msg.Text, msg.ReplyToID, jid)
	if _, err := w.client.SendMessage(ctx, jid, waMsg); err != nil {
		return fmt.Errorf("sending message: %w", err)
	}
	return nil
}

// Receive returns the incoming messages channel.
func (w *WhatsApp) Receive() <-chan *channels.IncomingMessage {
	return w.messages
}

// IsConnected reports whether the socket is up and authenticated.
func (w *WhatsApp) IsConnected() bool {
	return w.connected.Load()
}

// NeedsQR reports whether the session is unlinked and needs a QR scan.
func (w *WhatsApp) NeedsQR() bool {
	return w.client != nil && w.client.Store.ID == nil && !w.connected.Load()
}

// Health returns current channel health.
func (w *WhatsApp) Health() channels.HealthStatus {
	h := channels.HealthStatus{Connected: w.connected.Load()}
	if t, ok := w.lastEvent.Load().(time.Time); ok {
		h.LastEvent = t
	}
	if w.client != nil && w.client.Store.ID != nil {
		h.Detail = w.client.Store.ID.String()
	}
	return h
}

// SendTyping toggles the composing indicator for a chat.
func (w *WhatsApp) SendTyping(ctx context.Context, recipientID string, typing bool) error {
	if !w.connected.Load() || !w.cfg.SendTyping {
		return nil
	}
	jid, err := parseJID(recipientID)
	if err != nil {
		return err
	}
	state := types.ChatPresencePaused
	if typing {
		state = types.ChatPresenceComposing
	}
	return w.client.SendChatPresence(ctx, jid, state, types.ChatPresenceMediaText)
}

// SendPresence updates the account's online/offline status.
func (w *WhatsApp) SendPresence(ctx context.Context, available bool) error {
	if !w.connected.Load() {
		return nil
	}
	if available {
		return w.client.SendPresence(ctx, types.PresenceAvailable)
	}
	return w.client.SendPresence(ctx, types.PresenceUnavailable)
}

// MarkRead marks messages from a sender as read.
func (w *WhatsApp) MarkRead(ctx context.Context, senderID string, messageIDs []string) error {
	if !w.connected.Load() {
		return nil
	}
	jid, err := parseJID(senderID)
	if err != nil {
		return err
	}
	ids := make([]types.MessageID, len(messageIDs))
	for i, id := range messageIDs {
		ids[i] = types.MessageID(id)
	}
	return w.client.MarkRead(ctx, ids, time.Now(), jid, jid)
}

func (w *WhatsApp) clientJID() string {
	if w.client != nil && w.client.Store.ID != nil {
		return w.client.Store.ID.String()
	}
	return ""
}

// getDevice retrieves the existing device or creates a new one.
func (w *WhatsApp) getDevice(ctx context.Context, container *sqlstore.Container) (*store.Device, error) {
	devices, err := container.GetAllDevices(ctx)
	if err != nil {
		return nil, err
	}
	if len(devices) > 0 {
		return devices[0], nil
	}
	return container.NewDevice(), nil
}

// loginWithQR drives the QR pairing flow, streaming codes on qrCodes.
func (w *WhatsApp) loginWithQR(ctx context.Context) error {
	qrChan, err := w.client.GetQRChannel(ctx)
	if err != nil {
		return fmt.Errorf("getting QR channel: %w", err)
	}

	if err := w.client.Connect(); err != nil {
		return fmt.Errorf("connecting for QR: %w", err)
	}

	w.logger.Info("whatsapp: waiting for QR code scan")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case evt, ok := <-qrChan:
			if !ok {
				return fmt.Errorf("QR channel closed unexpectedly")
			}
			switch evt.Event {
			case "code":
				select {
				case w.qrCodes <- evt.Code:
				default:
				}
			case "success":
				w.connected.Store(true)
				w.reconnectAttempts.Store(0)
				w.logger.Info("whatsapp: login successful")
				return nil
			case "timeout":
				w.logger.Warn("whatsapp: QR code expired")
				return fmt.Errorf("QR code timeout")
			default:
				if evt.Error != nil {
					w.logger.Error("whatsapp: QR login error", "error", evt.Error)
					return fmt.Errorf("QR login error: %v", evt.Error)
				}
			}
		}
	}
}

// attemptReconnect retries the connection with linear capped backoff.
// A guard keeps only one reconnect loop running at a time.
func (w *WhatsApp) attemptReconnect() {
	if !w.reconnectGuard.CompareAndSwap(false, true) {
		return
	}
	defer w.reconnectGuard.Store(false)

	for {
		if w.ctx.Err() != nil {
			return
		}

		attempts := w.reconnectAttempts.Add(1)
		if w.cfg.MaxReconnectAttempts > 0 && attempts > int32(w.cfg.MaxReconnectAttempts) {
			w.logger.Error("whatsapp: max reconnect attempts reached", "attempts", attempts)
			return
		}

		backoff := min(w.cfg.ReconnectBackoff*time.Duration(attempts), 5*time.Minute)
		w.logger.Info("whatsapp: attempting reconnect", "attempt", attempts, "backoff", backoff)

		select {
		case <-time.After(backoff):
		case <-w.ctx.Done():
			return
		}

		if w.client == nil {
			return
		}

		// Clear stale websocket state before reconnecting.
		if w.client.IsConnected() {
			w.client.Disconnect()
			time.Sleep(100 * time.Millisecond)
		}

		if err := w.client.Connect(); err != nil {
			w.logger.Warn("whatsapp: reconnect attempt failed, will retry",
				"attempt", attempts, "error", err)
			continue
		}

		// The Connected event confirms and resets the counter.
		return
	}
}

// emitMessage forwards an inbound message to consumers, dropping it if
// the buffer is full or the channel was closed.
func (w *WhatsApp) emitMessage(msg *channels.IncomingMessage) {
	if w.messagesClosed.Load() {
		return
	}
	select {
	case w.messages <- msg:
		w.lastEvent.Store(time.Now())
	case <-w.ctx.Done():
	default:
		w.logger.Warn("whatsapp: message channel full, dropping message", "from", msg.SenderID)
	}
}

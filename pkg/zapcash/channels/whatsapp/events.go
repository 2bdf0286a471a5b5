// events.go converts whatsmeow events into the
// unified channels.IncomingMessage form.
package whatsapp

import (
	"time"

	"github.com/zapcash/zapcash/pkg/zapcash/channels"

	waE2E "go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/types/events"
)

// handleEvent is the main whatsmeow event dispatcher.
func (w *WhatsApp) handleEvent(rawEvt interface{}) {
	switch evt := rawEvt.(type) {
	case *events.Message:
		w.handleMessageEvt(evt)

	case *events.Connected:
		w.connected.Store(true)
		w.reconnectAttempts.Store(0)
		w.lastEvent.Store(time.Now())
		w.logger.Info("whatsapp: connected", "jid", w.clientJID())

	case *events.Disconnected:
		wasConnected := w.connected.Load()
		w.connected.Store(false)
		w.logger.Warn("whatsapp: disconnected", "was_connected", wasConnected)
		if wasConnected && w.ctx.Err() == nil {
			go w.attemptReconnect()
		}

	case *events.StreamReplaced:
		w.connected.Store(false)
		w.logger.Error("whatsapp: stream replaced, another device connected")

	case *events.LoggedOut:
		w.connected.Store(false)
		w.logger.Error("whatsapp: logged out, session invalidated", "reason", evt.Reason.String())
		go func() {
			if err := w.loginWithQR(w.ctx); err != nil {
				w.logger.Warn("whatsapp: QR re-login failed", "error", err)
			}
		}()

	case *events.KeepAliveTimeout:
		w.logger.Warn("whatsapp: keep-alive timeout",
			"error_count", evt.ErrorCount, "last_success", evt.LastSuccess)
		// Half-open connections look connected but are dead. Force a
		// reconnect after repeated keepalive failures.
		if evt.ErrorCount >= 3 && w.connected.Load() {
			w.connected.Store(false)
			go w.attemptReconnect()
		}

	case *events.KeepAliveRestored:
		w.logger.Info("whatsapp: keep-alive restored")

	case *events.ConnectFailure:
		w.connected.Store(false)
		permanent := evt.PermanentDisconnectDescription()
		w.logger.Error("whatsapp: connect failure",
			"reason", evt.Reason.String(), "message", evt.Message, "permanent", permanent)
		if permanent == "" && w.ctx.Err() == nil {
			go w.attemptReconnect()
		}

	case *events.StreamError:
		w.logger.Error("whatsapp: stream error", "code", evt.Code)
		if evt.Code == "540" || evt.Code == "541" || evt.Code == "503" {
			w.connected.Store(false)
			if w.ctx.Err() == nil {
				go w.attemptReconnect()
			}
		}

	case *events.PairSuccess:
		w.logger.Info("whatsapp: device paired", "jid", evt.ID, "platform", evt.Platform)

	case *events.PushName:
		w.logger.Debug("whatsapp: push name update", "jid", evt.JID, "name", evt.NewPushName)
	}
}

// handleMessageEvt processes an incoming message event.
func (w *WhatsApp) handleMessageEvt(evt *events.Message) {
	w.lastEvent.Store(time.Now())

	// The assistant never reacts to its own outbound traffic.
	if evt.Info.IsFromMe {
		return
	}
	if evt.Info.Chat.Server == "broadcast" {
		return
	}
	// Payments are strictly one-to-one.
	if evt.Info.IsGroup {
		return
	}

	// WhatsApp may present senders in LID (linked identity) form.
	// Resolve to the phone JID so access control sees phone numbers.
	senderJID := evt.Info.Sender
	resolvedSender := senderJID.String()
	if senderJID.Server == "lid" && w.client != nil && w.client.Store != nil {
		if altJID, err := w.client.Store.GetAltJID(w.ctx, senderJID); err == nil && !altJID.IsEmpty() {
			resolvedSender = altJID.String()
			w.logger.Debug("whatsapp: resolved LID to phone",
				"lid", senderJID.String(), "phone", resolvedSender)
		}
	}

	text, replyTo := extractText(evt.Message)

	msg := &channels.IncomingMessage{
		ID:         string(evt.Info.ID),
		Channel:    "whatsapp",
		SenderID:   resolvedSender,
		SenderName: evt.Info.PushName,
		Text:       text,
		Timestamp:  evt.Info.Timestamp,
		IsFromMe:   evt.Info.IsFromMe,
		IsGroup:    evt.Info.IsGroup,
		ReplyToID:  replyTo,
	}

	if w.cfg.AutoRead {
		go func() {
			_ = w.MarkRead(w.ctx, msg.SenderID, []string{msg.ID})
		}()
	}

	w.emitMessage(msg)
}

// extractText pulls the text body and quoted stanza ID from a message.
// Non-text payloads (media, stickers, locations) map to an empty body,
// which the orchestrator skips.
func extractText(waMsg *waE2E.Message) (text, replyTo string) {
	if waMsg == nil {
		return "", ""
	}
	if waMsg.Conversation != nil {
		return waMsg.GetConversation(), ""
	}
	if ext := waMsg.ExtendedTextMessage; ext != nil {
		if ctxInfo := ext.GetContextInfo(); ctxInfo != nil && ctxInfo.StanzaID != nil {
			replyTo = ctxInfo.GetStanzaID()
		}
		return ext.GetText(), replyTo
	}
	return "", ""
}

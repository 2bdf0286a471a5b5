// Package assistant is the conversational core: model client, tool
// registry and dispatch, onboarding flow, configuration, and the
// orchestrator that runs one conversation turn end to end. All domain
// errors die in the orchestrator; the user only ever sees a tool
// confirmation or a generic apology.
package assistant

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/zapcash/zapcash/pkg/zapcash/channels"
	"github.com/zapcash/zapcash/pkg/zapcash/notify"
	"github.com/zapcash/zapcash/pkg/zapcash/profile"
)

// turnTimeout bounds one full message turn including chain settlement.
const turnTimeout = 4 * time.Minute

// apologyReply is the only error text a user ever sees. Internals go to
// the log, never to the chat.
const apologyReply = "Sorry, something went wrong on my side. Please try again in a moment."

// Completer is the model surface the orchestrator needs. *LLMClient
// satisfies it.
type Completer interface {
	CompleteWithTools(ctx context.Context, messages []ChatMessage, tools []ToolDefinition) (*LLMResponse, error)
	CompleteStructured(ctx context.Context, messages []ChatMessage, format *ResponseFormat) (string, error)
}

// Transport delivers replies and typing state. *whatsapp.WhatsApp and
// the console adapter satisfy it.
type Transport interface {
	Send(ctx context.Context, msg *channels.OutgoingMessage) error
	SendTyping(ctx context.Context, recipientID string, typing bool) error
}

// MessageLog persists conversation history. *profile.Store satisfies it.
type MessageLog interface {
	RecordMessage(ctx context.Context, handle, body string, fromUser bool) error
	History(ctx context.Context, handle string, limit int) ([]profile.Message, error)
}

// Orchestrator coordinates one turn per incoming message. Turns for the
// same sender are serialized with a per-handle mutex so concurrent
// messages cannot interleave balance checks and transfers.
type Orchestrator struct {
	cfg        *Config
	llm        Completer
	dispatcher *Dispatcher
	store      ProfileStore
	log        MessageLog
	transport  Transport
	notifier   *notify.Notifier
	logger     *slog.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewOrchestrator wires the conversation loop.
func NewOrchestrator(cfg *Config, llm Completer, dispatcher *Dispatcher, store ProfileStore,
	log MessageLog, transport Transport, notifier *notify.Notifier, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		cfg:        cfg,
		llm:        llm,
		dispatcher: dispatcher,
		store:      store,
		log:        log,
		transport:  transport,
		notifier:   notifier,
		logger:     logger.With("component", "orchestrator"),
	}
}

// handleLock returns the mutex serializing turns for one sender.
func (o *Orchestrator) handleLock(handle string) *sync.Mutex {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.locks == nil {
		o.locks = make(map[string]*sync.Mutex)
	}
	l, ok := o.locks[handle]
	if !ok {
		l = &sync.Mutex{}
		o.locks[handle] = l
	}
	return l
}

// Run consumes a channel's message stream until ctx is cancelled.
func (o *Orchestrator) Run(ctx context.Context, ch channels.Channel) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch.Receive():
			if !ok {
				return
			}
			go func() {
				if err := o.HandleMessage(ctx, msg); err != nil {
					o.logger.Error("turn failed", "sender", msg.SenderID, "error", err)
				}
			}()
		}
	}
}

// HandleMessage runs one conversation turn.
func (o *Orchestrator) HandleMessage(ctx context.Context, msg *channels.IncomingMessage) error {
	if msg.IsFromMe {
		return nil
	}
	if strings.TrimSpace(msg.Text) == "" {
		return nil
	}
	if !o.cfg.IsAllowedSender(msg.SenderID) {
		o.logger.Info("ignoring unauthorized sender", "sender", msg.SenderID)
		return nil
	}

	lock := o.handleLock(msg.SenderID)
	lock.Lock()
	defer lock.Unlock()

	ctx, cancel := context.WithTimeout(ctx, turnTimeout)
	defer cancel()

	o.emitEvent(msg.SenderID, msg.Text, false)

	if err := o.log.RecordMessage(ctx, msg.SenderID, msg.Text, true); err != nil {
		o.logger.Warn("recording inbound message", "error", err)
	}

	p, err := o.loadOrCreateProfile(ctx, msg)
	if err != nil {
		o.logger.Error("profile load failed", "sender", msg.SenderID, "error", err)
		return o.reply(ctx, msg, apologyReply)
	}

	// The typing indicator brackets all model and tool work, including
	// the error paths.
	if err := o.transport.SendTyping(ctx, msg.SenderID, true); err != nil {
		o.logger.Debug("typing on failed", "error", err)
	}
	defer func() {
		if err := o.transport.SendTyping(ctx, msg.SenderID, false); err != nil {
			o.logger.Debug("typing off failed", "error", err)
		}
	}()

	var replyText string
	switch ModeFor(p) {
	case ModeOnboarding:
		replyText = o.onboardingTurn(ctx, p, msg.Text)
	default:
		replyText = o.operationalTurn(ctx, p, msg.Text)
	}

	return o.reply(ctx, msg, replyText)
}

// loadOrCreateProfile finds the sender's profile, lazily creating an
// empty one on first contact. No wallet is provisioned here: wallets
// cost treasury gas and only come into existence inside the dispatcher
// on the first balance or transfer request.
func (o *Orchestrator) loadOrCreateProfile(ctx context.Context, msg *channels.IncomingMessage) (*profile.Profile, error) {
	p, err := o.store.FindProfile(ctx, msg.SenderID)
	if err != nil {
		return nil, err
	}
	if p != nil {
		return p, nil
	}

	p = &profile.Profile{Handle: msg.SenderID}
	if err := o.store.CreateProfile(ctx, p); err != nil {
		return nil, err
	}
	o.logger.Info("profile created", "handle", msg.SenderID)
	return p, nil
}

// onboardingTurn runs one schema-constrained onboarding exchange.
func (o *Orchestrator) onboardingTurn(ctx context.Context, p *profile.Profile, text string) string {
	messages := o.buildMessages(ctx, p.Handle, OnboardingPrompt(o.cfg.Name, o.cfg.Language, p), text)

	raw, err := o.llm.CompleteStructured(ctx, messages, OnboardingResponseFormat())
	if err != nil {
		o.logger.Error("onboarding completion failed", "handle", p.Handle,
			"error", &ResolutionError{Err: err})
		return apologyReply
	}

	res, err := ParseOnboardingResult(raw)
	if err != nil {
		o.logger.Error("onboarding output rejected", "handle", p.Handle, "error", err)
		return apologyReply
	}

	if ApplyOnboardingResult(p, res) {
		if err := o.store.UpdateProfile(ctx, p); err != nil {
			o.logger.Error("profile update failed", "handle", p.Handle, "error", err)
			return apologyReply
		}
		if p.IsOnboarded() {
			o.logger.Info("onboarding complete", "handle", p.Handle)
		}
	}

	return res.Reply
}

// operationalTurn resolves the message to a tool call and executes it.
func (o *Orchestrator) operationalTurn(ctx context.Context, p *profile.Profile, text string) string {
	messages := o.buildMessages(ctx, p.Handle, OperationalPrompt(o.cfg.Name, o.cfg.Language, p), text)

	resp, err := o.llm.CompleteWithTools(ctx, messages, o.dispatcher.Tools())
	if err != nil {
		o.logger.Error("intent resolution failed", "handle", p.Handle,
			"error", &ResolutionError{Err: err})
		return apologyReply
	}

	if len(resp.ToolCalls) == 0 {
		// Some models answer in prose instead of calling
		// continue-conversation. Pass the prose through.
		if strings.TrimSpace(resp.Content) != "" {
			return resp.Content
		}
		o.logger.Error("model returned neither tool call nor content", "handle", p.Handle)
		return apologyReply
	}

	call := resp.ToolCalls[0]
	o.logger.Info("dispatching tool", "handle", p.Handle, "tool", call.Function.Name)

	out, err := o.dispatcher.Execute(ctx, p.Handle, call)
	if err != nil {
		o.logger.Error("tool failed",
			"handle", p.Handle,
			"tool", call.Function.Name,
			"domain_error", IsDomainError(err),
			"error", err)
		return apologyReply
	}
	return out
}

// buildMessages assembles system prompt, windowed history, and the
// current user message.
func (o *Orchestrator) buildMessages(ctx context.Context, handle, systemPrompt, text string) []ChatMessage {
	window := o.cfg.History.Window
	raw, err := o.log.History(ctx, handle, window+1)
	if err != nil {
		o.logger.Warn("history load failed, continuing without", "handle", handle, "error", err)
		raw = nil
	}

	// The inbound message was already recorded; drop it from the tail
	// so it appears exactly once.
	if n := len(raw); n > 0 && raw[n-1].FromUser && raw[n-1].Body == text {
		raw = raw[:n-1]
	}

	messages := []ChatMessage{{Role: RoleSystem, Content: systemPrompt}}
	messages = append(messages, ToChatMessages(WindowHistory(raw, window))...)
	messages = append(messages, ChatMessage{Role: RoleUser, Content: text})
	return messages
}

// reply records and delivers the outbound message.
func (o *Orchestrator) reply(ctx context.Context, msg *channels.IncomingMessage, text string) error {
	if err := o.log.RecordMessage(ctx, msg.SenderID, text, false); err != nil {
		o.logger.Warn("recording outbound message", "error", err)
	}

	o.emitEvent(msg.SenderID, text, true)

	return o.transport.Send(ctx, &channels.OutgoingMessage{
		Channel:     msg.Channel,
		RecipientID: msg.SenderID,
		Text:        text,
	})
}

// emitEvent fires a webhook delivery without blocking the turn.
func (o *Orchestrator) emitEvent(handle, text string, fromBot bool) {
	if o.notifier == nil || !o.notifier.Enabled() {
		return
	}
	payload := notify.Payload{
		SenderHandle:    handle,
		RecipientHandle: o.cfg.Name,
		IsFromBot:       fromBot,
		Text:            text,
	}
	if fromBot {
		payload.SenderHandle, payload.RecipientHandle = payload.RecipientHandle, payload.SenderHandle
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		_ = o.notifier.EmitMessage(ctx, payload)
	}()
}

// Package channels defines the transport abstraction between the assistant
// core and the messaging surfaces it runs on (WhatsApp in production, a
// console adapter for local chat).
package channels

import (
	"context"
	"fmt"
	"time"
)

// IncomingMessage is a normalized inbound message from any channel.
type IncomingMessage struct {
	ID         string
	Channel    string
	SenderID   string
	SenderName string
	Text       string
	Timestamp  time.Time
	IsFromMe   bool
	IsGroup    bool
	ReplyToID  string
}

// OutgoingMessage is a normalized outbound message to any channel.
type OutgoingMessage struct {
	Channel     string
	RecipientID string
	Text        string
	ReplyToID   string
}

// HealthStatus reports channel connectivity.
type HealthStatus struct {
	Connected bool
	LastEvent time.Time
	Detail    string
}

// Channel is the minimal contract a messaging surface implements.
type Channel interface {
	Name() string
	Connect(ctx context.Context) error
	Disconnect() error
	Send(ctx context.Context, msg *OutgoingMessage) error
	Receive() <-chan *IncomingMessage
	IsConnected() bool
	Health() HealthStatus
}

// PresenceChannel is implemented by channels that can signal typing state
// and read receipts. The orchestrator uses it to bracket model work with a
// typing indicator.
type PresenceChannel interface {
	Channel
	SendTyping(ctx context.Context, recipientID string, typing bool) error
	SendPresence(ctx context.Context, available bool) error
	MarkRead(ctx context.Context, senderID string, messageIDs []string) error
}

var (
	ErrChannelDisconnected = fmt.Errorf("channel is not connected")
	ErrChannelClosed       = fmt.Errorf("channel is closed")
	ErrInvalidRecipient    = fmt.Errorf("invalid recipient")
)

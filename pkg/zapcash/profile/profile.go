// Package profile stores user profiles, conversation history, and the
// transfer ledger in SQLite.
package profile

import (
	"strings"
	"time"
)

// Wallet is a custodial wallet reference. Secret is the wallet's signing
// passphrase; the store encrypts it at rest.
type Wallet struct {
	Address string
	Secret  string
}

// Profile is a chat user keyed by their messaging handle (phone JID).
type Profile struct {
	Handle      string
	DisplayName string
	Email       string
	Wallet      *Wallet
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// HasWallet reports whether a wallet address is attached.
func (p *Profile) HasWallet() bool {
	return p != nil && p.Wallet != nil && p.Wallet.Address != ""
}

// IsOnboarded reports whether the profile carries both a display name and
// an email address after trimming whitespace. Whitespace-only values do
// not count.
func (p *Profile) IsOnboarded() bool {
	if p == nil {
		return false
	}
	return strings.TrimSpace(p.DisplayName) != "" && strings.TrimSpace(p.Email) != ""
}

// Message is one entry of a user's conversation history.
type Message struct {
	ID        int64
	Handle    string
	Body      string
	FromUser  bool
	Timestamp time.Time
}

// TransferState tracks the lifecycle of a ledger entry.
type TransferState string

const (
	TransferPending TransferState = "pending"
	TransferSettled TransferState = "settled"
	TransferFailed  TransferState = "failed"
)

// Transfer is one row of the transfer ledger. ID is the idempotency key
// assigned before the chain call is made, so a crash between the call and
// the state update leaves an auditable pending row.
type Transfer struct {
	ID              string
	SenderHandle    string
	RecipientHandle string
	AmountUnits     string
	State           TransferState
	TxHash          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

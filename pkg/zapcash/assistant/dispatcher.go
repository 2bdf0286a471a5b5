// dispatcher.go wires the tool catalog to its
// collaborators: profile storage, the chain wallet service, and the
// transfer ledger.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/zapcash/zapcash/pkg/zapcash/profile"
	"github.com/zapcash/zapcash/pkg/zapcash/wallet"
)

// ProfileStore is the persistence surface the dispatcher needs.
type ProfileStore interface {
	FindProfile(ctx context.Context, handle string) (*profile.Profile, error)
	CreateProfile(ctx context.Context, p *profile.Profile) error
	UpdateProfile(ctx context.Context, p *profile.Profile) error
}

// Ledger records transfer lifecycle for idempotency and audit.
type Ledger interface {
	CreateTransfer(ctx context.Context, t *profile.Transfer) error
	SettleTransfer(ctx context.Context, id, txHash string) error
	FailTransfer(ctx context.Context, id string) error
}

// Chain is the wallet surface the dispatcher needs. *wallet.Service
// satisfies it.
type Chain interface {
	GenerateWallet(ctx context.Context) (*wallet.Keys, error)
	FundWallet(ctx context.Context, address string) error
	GetBalance(ctx context.Context, address string) (*big.Int, error)
	Transfer(ctx context.Context, from *wallet.Keys, to string, amount *big.Int) (*wallet.Receipt, error)
	ExplorerLink(txHash string) string
	Decimals() int
}

// Dispatcher owns the registry and the handlers behind it.
type Dispatcher struct {
	store  ProfileStore
	ledger Ledger
	chain  Chain
	reg    *Registry
	logger *slog.Logger
}

// NewDispatcher builds the dispatcher and registers the tool catalog.
func NewDispatcher(store ProfileStore, ledger Ledger, chain Chain, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	d := &Dispatcher{
		store:  store,
		ledger: ledger,
		chain:  chain,
		reg:    NewRegistry(),
		logger: logger.With("component", "dispatcher"),
	}
	d.registerTools()
	return d
}

// Tools exposes the catalog for the model.
func (d *Dispatcher) Tools() []ToolDefinition { return d.reg.Tools() }

// Execute runs one tool call for the acting user.
func (d *Dispatcher) Execute(ctx context.Context, actorHandle string, call ToolCall) (string, error) {
	return d.reg.Execute(ContextWithActor(ctx, actorHandle), call)
}

func (d *Dispatcher) registerTools() {
	confirmationProp := map[string]any{
		"type":        "string",
		"description": "Short confirmation sentence shown to the user. May use %amount%, %name%, and %transaction_details% placeholders.",
	}

	d.reg.Register(MakeToolDefinition(ToolChangeEmail,
		"Update the user's email address.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"new_email":    map[string]any{"type": "string", "description": "The new email address."},
				"confirmation": confirmationProp,
			},
			"required": []string{"new_email", "confirmation"},
		}),
		[]string{"new_email", "confirmation"}, 0, d.handleChangeEmail)

	d.reg.Register(MakeToolDefinition(ToolChangeDisplayName,
		"Update the user's display name.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"new_name":     map[string]any{"type": "string", "description": "The new display name."},
				"confirmation": confirmationProp,
			},
			"required": []string{"new_name", "confirmation"},
		}),
		[]string{"new_name", "confirmation"}, 0, d.handleChangeDisplayName)

	d.reg.Register(MakeToolDefinition(ToolGetBalance,
		"Look up the stablecoin balance of the user's wallet.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"wallet_address": map[string]any{"type": "string", "description": "The user's wallet address."},
				"confirmation":   confirmationProp,
			},
			"required": []string{"wallet_address", "confirmation"},
		}),
		[]string{"wallet_address", "confirmation"}, 0, d.handleGetBalance)

	d.reg.Register(MakeToolDefinition(ToolSendMoney,
		"Send stablecoins from the user's wallet to another person.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"amount": map[string]any{"type": "number", "description": "Amount to send, in whole tokens."},
				"recipient": map[string]any{
					"type": "object",
					"properties": map[string]any{
						"name":   map[string]any{"type": "string", "description": "Recipient display name."},
						"handle": map[string]any{"type": "string", "description": "Recipient messaging handle (phone)."},
					},
					"required": []string{"name", "handle"},
				},
				"confirmation": confirmationProp,
			},
			"required": []string{"amount", "recipient", "confirmation"},
		}),
		[]string{"amount", "recipient", "confirmation"}, 3*time.Minute, d.handleSendMoney)

	d.reg.Register(MakeToolDefinition(ToolContinueConversation,
		"Reply conversationally without performing any account operation.",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"confirmation": map[string]any{"type": "string", "description": "The reply to send to the user."},
			},
			"required": []string{"confirmation"},
		}),
		[]string{"confirmation"}, 0, d.handleContinueConversation)
}

// ---------- Handlers ----------

func (d *Dispatcher) actorProfile(ctx context.Context) (*profile.Profile, error) {
	handle, ok := ActorFromContext(ctx)
	if !ok || handle == "" {
		return nil, &ValidationError{Field: "actor", Reason: "no acting user in context"}
	}
	p, err := d.store.FindProfile(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("loading profile %s: %w", handle, err)
	}
	if p == nil {
		return nil, &NotFoundError{Kind: "profile", Ref: handle}
	}
	return p, nil
}

func (d *Dispatcher) handleChangeEmail(ctx context.Context, args map[string]any) (*ToolOutcome, error) {
	newEmail, _ := args["new_email"].(string)
	newEmail = strings.TrimSpace(newEmail)
	if !strings.Contains(newEmail, "@") || !strings.Contains(newEmail, ".") {
		return nil, &ValidationError{Field: "new_email", Reason: "not a plausible email address"}
	}

	p, err := d.actorProfile(ctx)
	if err != nil {
		return nil, err
	}
	p.Email = newEmail
	if err := d.store.UpdateProfile(ctx, p); err != nil {
		return nil, err
	}

	d.logger.Info("email updated", "handle", p.Handle)
	return &ToolOutcome{Values: map[string]string{"email": newEmail}}, nil
}

func (d *Dispatcher) handleChangeDisplayName(ctx context.Context, args map[string]any) (*ToolOutcome, error) {
	newName, _ := args["new_name"].(string)
	newName = strings.TrimSpace(newName)
	if newName == "" {
		return nil, &ValidationError{Field: "new_name", Reason: "empty name"}
	}

	p, err := d.actorProfile(ctx)
	if err != nil {
		return nil, err
	}
	p.DisplayName = newName
	if err := d.store.UpdateProfile(ctx, p); err != nil {
		return nil, err
	}

	d.logger.Info("display name updated", "handle", p.Handle)
	return &ToolOutcome{Values: map[string]string{"name": newName}}, nil
}

func (d *Dispatcher) handleGetBalance(ctx context.Context, args map[string]any) (*ToolOutcome, error) {
	p, err := d.actorProfile(ctx)
	if err != nil {
		return nil, err
	}
	if err := d.ensureWallet(ctx, p); err != nil {
		return nil, fmt.Errorf("provisioning wallet: %w", err)
	}

	// The profile's wallet is authoritative; the model-supplied address
	// is only advisory and never trusted for the query.
	balance, err := d.chain.GetBalance(ctx, p.Wallet.Address)
	if err != nil {
		return nil, fmt.Errorf("querying balance: %w", err)
	}

	return &ToolOutcome{Values: map[string]string{
		"amount": wallet.FormatAmount(balance, d.chain.Decimals()),
	}}, nil
}

// handleSendMoney is the transfer state machine:
//
//	validate -> sender lookup -> sender wallet -> balance gate
//	-> recipient resolution -> ledger entry -> single transfer
//	-> settle -> balance re-query
//
// The chain transfer happens at most once. A failure after submission is
// reported as TransferFailed with no retry and no rollback of a freshly
// created recipient wallet (the wallet is harmless to keep and will be
// reused on the next attempt).
func (d *Dispatcher) handleSendMoney(ctx context.Context, args map[string]any) (*ToolOutcome, error) {
	units, err := parseAmountArg(args["amount"], d.chain.Decimals())
	if err != nil {
		return nil, err
	}

	recipientName, recipientHandle := recipientArgs(args["recipient"])
	if recipientHandle == "" {
		return nil, &ValidationError{Field: "recipient.handle", Reason: "recipient handle missing"}
	}
	if recipientName == "" {
		return nil, &ValidationError{Field: "recipient.name", Reason: "recipient name missing"}
	}

	sender, err := d.actorProfile(ctx)
	if err != nil {
		return nil, err
	}
	if err := d.ensureWallet(ctx, sender); err != nil {
		return nil, fmt.Errorf("provisioning sender wallet: %w", err)
	}

	balance, err := d.chain.GetBalance(ctx, sender.Wallet.Address)
	if err != nil {
		return nil, fmt.Errorf("querying sender balance: %w", err)
	}
	if balance.Cmp(units) < 0 {
		return nil, &InsufficientFundsError{Balance: balance, Requested: units}
	}

	recipient, err := d.resolveRecipient(ctx, recipientName, recipientHandle)
	if err != nil {
		return nil, err
	}

	transferID := uuid.NewString()
	entry := &profile.Transfer{
		ID:              transferID,
		SenderHandle:    sender.Handle,
		RecipientHandle: recipient.Handle,
		AmountUnits:     units.String(),
	}
	if err := d.ledger.CreateTransfer(ctx, entry); err != nil {
		return nil, fmt.Errorf("recording transfer: %w", err)
	}

	senderKeys := &wallet.Keys{Address: sender.Wallet.Address, Secret: sender.Wallet.Secret}
	receipt, err := d.chain.Transfer(ctx, senderKeys, recipient.Wallet.Address, units)
	if err != nil {
		if failErr := d.ledger.FailTransfer(ctx, transferID); failErr != nil {
			d.logger.Error("marking transfer failed", "transfer_id", transferID, "error", failErr)
		}
		return nil, &TransferFailedError{Err: err}
	}

	if err := d.ledger.SettleTransfer(ctx, transferID, receipt.TxHash); err != nil {
		d.logger.Error("marking transfer settled", "transfer_id", transferID, "error", err)
	}

	newBalance, err := d.chain.GetBalance(ctx, sender.Wallet.Address)
	if err != nil {
		d.logger.Warn("balance re-query failed, deriving locally", "error", err)
		newBalance = new(big.Int).Sub(balance, units)
	}

	d.logger.Info("transfer settled",
		"transfer_id", transferID,
		"sender", sender.Handle,
		"recipient", recipient.Handle,
		"amount_units", units.String(),
		"tx", receipt.TxHash)

	decimals := d.chain.Decimals()
	return &ToolOutcome{Values: map[string]string{
		"amount":              wallet.FormatAmount(units, decimals),
		"name":                recipientName,
		"handle":              recipientHandle,
		"balance":             wallet.FormatAmount(newBalance, decimals),
		"transaction_details": "\n" + d.chain.ExplorerLink(receipt.TxHash),
	}}, nil
}

// resolveRecipient returns a recipient profile that has a wallet. An
// unknown handle gets a first-contact profile, then the wallet is
// generated, funded, and persisted onto it.
func (d *Dispatcher) resolveRecipient(ctx context.Context, name, handle string) (*profile.Profile, error) {
	p, err := d.store.FindProfile(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("looking up recipient %s: %w", handle, err)
	}

	if p == nil {
		p = &profile.Profile{Handle: handle, DisplayName: name}
		if err := d.store.CreateProfile(ctx, p); err != nil {
			return nil, fmt.Errorf("creating recipient profile: %w", err)
		}
		d.logger.Info("recipient profile created", "handle", handle)
	}

	if err := d.ensureWallet(ctx, p); err != nil {
		return nil, fmt.Errorf("provisioning recipient wallet: %w", err)
	}
	return p, nil
}

// ensureWallet lazily provisions a wallet for a profile that lacks one:
// generate at the node keystore, fund with bootstrap gas from the
// treasury, persist the reference. Wallets only come into existence
// here, on the first funds-related interaction.
func (d *Dispatcher) ensureWallet(ctx context.Context, p *profile.Profile) error {
	if p.HasWallet() {
		return nil
	}

	keys, err := d.chain.GenerateWallet(ctx)
	if err != nil {
		return fmt.Errorf("generating wallet: %w", err)
	}
	if err := d.chain.FundWallet(ctx, keys.Address); err != nil {
		return fmt.Errorf("funding wallet: %w", err)
	}

	p.Wallet = &profile.Wallet{Address: keys.Address, Secret: keys.Secret}
	if err := d.store.UpdateProfile(ctx, p); err != nil {
		return fmt.Errorf("attaching wallet: %w", err)
	}
	d.logger.Info("wallet provisioned", "handle", p.Handle)
	return nil
}

func (d *Dispatcher) handleContinueConversation(ctx context.Context, args map[string]any) (*ToolOutcome, error) {
	return nil, nil
}

// ---------- Argument helpers ----------

// parseAmountArg accepts the amount as a JSON number or numeric string
// and converts it to base units. Zero or negative amounts are invalid.
func parseAmountArg(v any, decimals int) (*big.Int, error) {
	var s string
	switch t := v.(type) {
	case float64:
		s = strings.TrimRight(strings.TrimRight(fmt.Sprintf("%.*f", decimals, t), "0"), ".")
	case string:
		s = t
	default:
		return nil, &ValidationError{Field: "amount", Reason: fmt.Sprintf("unexpected type %T", v)}
	}

	units, err := wallet.ParseAmount(s, decimals)
	if err != nil {
		return nil, &ValidationError{Field: "amount", Reason: err.Error()}
	}
	if units.Sign() <= 0 {
		return nil, &ValidationError{Field: "amount", Reason: "amount must be positive"}
	}
	return units, nil
}

func recipientArgs(v any) (name, handle string) {
	m, ok := v.(map[string]any)
	if !ok {
		return "", ""
	}
	name, _ = m["name"].(string)
	handle, _ = m["handle"].(string)
	return strings.TrimSpace(name), strings.TrimSpace(handle)
}

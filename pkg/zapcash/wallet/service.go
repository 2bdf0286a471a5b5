// Package wallet manages custodial wallets on an EVM chain: account
// creation via the node keystore, stablecoin balances and transfers, and
// bootstrap gas funding from the treasury.
package wallet

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"
)

// Config holds chain connectivity and treasury settings.
type Config struct {
	// RPCURLs are JSON-RPC endpoints, tried in order.
	RPCURLs []string `yaml:"rpc_urls"`

	// TokenAddress is the stablecoin ERC-20 contract.
	TokenAddress string `yaml:"token_address"`

	// TokenDecimals is the token's decimal precision (6 for USDC-style).
	TokenDecimals int `yaml:"token_decimals"`

	// TreasuryAddress holds gas and token reserves for bootstrap funding.
	TreasuryAddress string `yaml:"treasury_address"`

	// TreasurySecret unlocks the treasury account on the node. Resolved
	// from the environment, never written back to the config file.
	TreasurySecret string `yaml:"treasury_secret"`

	// BootstrapGasWei is the native amount sent to freshly created
	// wallets so their first token transfer can pay for gas.
	BootstrapGasWei string `yaml:"bootstrap_gas_wei"`

	// ExplorerBaseURL is used to build human-facing transaction links.
	ExplorerBaseURL string `yaml:"explorer_base_url"`

	// ConfirmTimeout bounds how long a transfer waits for its receipt.
	ConfirmTimeout time.Duration `yaml:"confirm_timeout"`
}

// DefaultConfig returns chain defaults for a local development node.
func DefaultConfig() Config {
	return Config{
		RPCURLs:         []string{"http://127.0.0.1:8545"},
		TokenDecimals:   6,
		BootstrapGasWei: "1000000000000000", // 0.001 native
		ExplorerBaseURL: "https://basescan.org",
		ConfirmTimeout:  90 * time.Second,
	}
}

// Keys identifies a custodial wallet: the on-chain address plus the
// keystore passphrase held by the node.
type Keys struct {
	Address string
	Secret  string
}

// Receipt describes a confirmed transfer.
type Receipt struct {
	TxHash      string
	BlockNumber string
}

// Service implements wallet operations over JSON-RPC.
type Service struct {
	cfg    Config
	rpc    *RPCClient
	logger *slog.Logger
}

// NewService creates a wallet service.
func NewService(cfg Config, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.ConfirmTimeout == 0 {
		cfg.ConfirmTimeout = 90 * time.Second
	}
	return &Service{
		cfg:    cfg,
		rpc:    NewRPCClient(cfg.RPCURLs),
		logger: logger.With("component", "wallet"),
	}
}

// Decimals returns the configured token precision.
func (s *Service) Decimals() int { return s.cfg.TokenDecimals }

// GenerateWallet creates a new keystore account on the node under a
// random passphrase and returns both.
func (s *Service) GenerateWallet(ctx context.Context) (*Keys, error) {
	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return nil, fmt.Errorf("generating wallet secret: %w", err)
	}
	secret := hex.EncodeToString(secretBytes)

	address, err := s.rpc.CallString(ctx, "personal_newAccount", secret)
	if err != nil {
		return nil, fmt.Errorf("creating account: %w", err)
	}

	s.logger.Info("wallet created", "address", address)
	return &Keys{Address: address, Secret: secret}, nil
}

// FundWallet sends the bootstrap gas amount from the treasury to a
// freshly created wallet.
func (s *Service) FundWallet(ctx context.Context, address string) error {
	gas, ok := new(big.Int).SetString(s.cfg.BootstrapGasWei, 10)
	if !ok {
		return fmt.Errorf("invalid bootstrap_gas_wei %q", s.cfg.BootstrapGasWei)
	}

	txHash, err := s.rpc.CallString(ctx, "personal_sendTransaction", map[string]string{
		"from":  s.cfg.TreasuryAddress,
		"to":    address,
		"value": "0x" + gas.Text(16),
	}, s.cfg.TreasurySecret)
	if err != nil {
		return fmt.Errorf("funding wallet %s: %w", address, err)
	}

	s.logger.Info("wallet funded", "address", address, "tx", txHash)
	return nil
}

// GetBalance returns the token balance of an address in base units.
func (s *Service) GetBalance(ctx context.Context, address string) (*big.Int, error) {
	data, err := EncodeBalanceOf(address)
	if err != nil {
		return nil, err
	}
	result, err := s.rpc.EthCall(ctx, s.cfg.TokenAddress, data)
	if err != nil {
		return nil, fmt.Errorf("querying balance of %s: %w", address, err)
	}
	return decodeUint256(result), nil
}

// TreasuryGasBalance returns the treasury's native balance in wei.
func (s *Service) TreasuryGasBalance(ctx context.Context) (*big.Int, error) {
	return s.rpc.EthBalance(ctx, s.cfg.TreasuryAddress)
}

// TreasuryTokenBalance returns the treasury's token balance in base units.
func (s *Service) TreasuryTokenBalance(ctx context.Context) (*big.Int, error) {
	return s.GetBalance(ctx, s.cfg.TreasuryAddress)
}

// Transfer moves tokens from a custodial wallet and waits for the
// receipt. The call is made exactly once; callers decide what a failure
// means, no retry happens here.
func (s *Service) Transfer(ctx context.Context, from *Keys, to string, amount *big.Int) (*Receipt, error) {
	data, err := EncodeTransfer(to, amount)
	if err != nil {
		return nil, err
	}

	txHash, err := s.rpc.CallString(ctx, "personal_sendTransaction", map[string]string{
		"from": from.Address,
		"to":   s.cfg.TokenAddress,
		"data": HexEncode(data),
	}, from.Secret)
	if err != nil {
		return nil, fmt.Errorf("submitting transfer: %w", err)
	}

	receipt, err := s.waitForReceipt(ctx, txHash)
	if err != nil {
		return nil, err
	}

	s.logger.Info("transfer confirmed",
		"from", from.Address, "to", to,
		"amount_units", amount.String(), "tx", txHash)
	return receipt, nil
}

// waitForReceipt polls eth_getTransactionReceipt until the transaction
// is mined or the confirm timeout elapses.
func (s *Service) waitForReceipt(ctx context.Context, txHash string) (*Receipt, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ConfirmTimeout)
	defer cancel()

	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()

	for {
		raw, err := s.rpc.Call(ctx, "eth_getTransactionReceipt", txHash)
		if err == nil && len(raw) > 0 && string(raw) != "null" {
			var receipt struct {
				Status      string `json:"status"`
				BlockNumber string `json:"blockNumber"`
			}
			if err := json.Unmarshal(raw, &receipt); err != nil {
				return nil, fmt.Errorf("decoding receipt for %s: %w", txHash, err)
			}
			if receipt.Status != "0x1" {
				return nil, fmt.Errorf("transaction %s reverted", txHash)
			}
			return &Receipt{TxHash: txHash, BlockNumber: receipt.BlockNumber}, nil
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for receipt of %s: %w", txHash, ctx.Err())
		case <-ticker.C:
		}
	}
}

// ExplorerLink builds the block explorer URL for a transaction hash.
func (s *Service) ExplorerLink(txHash string) string {
	return strings.TrimSuffix(s.cfg.ExplorerBaseURL, "/") + "/tx/" + txHash
}

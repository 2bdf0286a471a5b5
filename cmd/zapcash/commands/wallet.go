package commands

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/spf13/cobra"

	"github.com/zapcash/zapcash/pkg/zapcash/assistant"
	"github.com/zapcash/zapcash/pkg/zapcash/profile"
	"github.com/zapcash/zapcash/pkg/zapcash/wallet"
)

// newWalletCmd creates the `zapcash wallet` command group for
// inspecting wallets and the transfer ledger from the terminal.
func newWalletCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Inspect wallets and transfers",
		Long: `Operator queries against the profile store and the chain.

Examples:
  zapcash wallet balance 5511999998888
  zapcash wallet address 5511999998888
  zapcash wallet transfers 5511999998888
  zapcash wallet treasury`,
	}

	cmd.AddCommand(
		newWalletBalanceCmd(),
		newWalletAddressCmd(),
		newWalletTransfersCmd(),
		newWalletTreasuryCmd(),
	)
	return cmd
}

// walletEnv is the shared wiring for the wallet subcommands.
type walletEnv struct {
	cfg   *assistant.Config
	store *profile.Store
	chain *wallet.Service
}

func openWalletEnv(cmd *cobra.Command) (*walletEnv, error) {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return nil, err
	}
	store, err := profile.OpenStore(cfg.Database.Path, cfg.Database.SecretPassphrase)
	if err != nil {
		return nil, fmt.Errorf("opening profile store: %w", err)
	}
	logger := newLogger(cmd, cfg)
	return &walletEnv{cfg: cfg, store: store, chain: wallet.NewService(cfg.Chain, logger)}, nil
}

func (e *walletEnv) close() { e.store.Close() }

// findWallet resolves a handle to its profile, requiring a wallet.
func (e *walletEnv) findWallet(ctx context.Context, handle string) (*profile.Profile, error) {
	p, err := e.store.FindProfile(ctx, handle)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, fmt.Errorf("no profile for %s", handle)
	}
	if !p.HasWallet() {
		return nil, fmt.Errorf("profile %s has no wallet", handle)
	}
	return p, nil
}

func newWalletBalanceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "balance <handle>",
		Short: "Show a user's stablecoin balance",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openWalletEnv(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			p, err := env.findWallet(ctx, args[0])
			if err != nil {
				return err
			}
			balance, err := env.chain.GetBalance(ctx, p.Wallet.Address)
			if err != nil {
				return fmt.Errorf("querying balance: %w", err)
			}
			fmt.Printf("%s  %s\n", p.Wallet.Address, wallet.FormatAmount(balance, env.chain.Decimals()))
			return nil
		},
	}
}

func newWalletAddressCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "address <handle>",
		Short: "Show a user's wallet address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openWalletEnv(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			p, err := env.findWallet(ctx, args[0])
			if err != nil {
				return err
			}
			fmt.Println(p.Wallet.Address)
			return nil
		},
	}
}

func newWalletTransfersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "transfers <handle>",
		Short: "List a user's transfers",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			limit, _ := cmd.Flags().GetInt("limit")

			env, err := openWalletEnv(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			transfers, err := env.store.Transfers(ctx, args[0], limit)
			if err != nil {
				return fmt.Errorf("listing transfers: %w", err)
			}
			if len(transfers) == 0 {
				fmt.Println("no transfers")
				return nil
			}

			decimals := env.chain.Decimals()
			for _, t := range transfers {
				units, ok := new(big.Int).SetString(t.AmountUnits, 10)
				amount := t.AmountUnits
				if ok {
					amount = wallet.FormatAmount(units, decimals)
				}
				fmt.Printf("%s  %-7s  %s -> %s  %s  %s\n",
					t.CreatedAt.Format("2006-01-02 15:04"),
					t.State,
					t.SenderHandle,
					t.RecipientHandle,
					amount,
					t.TxHash,
				)
			}
			return nil
		},
	}
	cmd.Flags().Int("limit", 20, "maximum number of transfers to show")
	return cmd
}

func newWalletTreasuryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "treasury",
		Short: "Show treasury gas and token balances",
		RunE: func(cmd *cobra.Command, _ []string) error {
			env, err := openWalletEnv(cmd)
			if err != nil {
				return err
			}
			defer env.close()

			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			gas, err := env.chain.TreasuryGasBalance(ctx)
			if err != nil {
				return fmt.Errorf("querying treasury gas: %w", err)
			}
			tokens, err := env.chain.TreasuryTokenBalance(ctx)
			if err != nil {
				return fmt.Errorf("querying treasury tokens: %w", err)
			}

			fmt.Printf("address: %s\n", env.cfg.Chain.TreasuryAddress)
			fmt.Printf("gas:     %s wei\n", gas.String())
			fmt.Printf("tokens:  %s\n", wallet.FormatAmount(tokens, env.chain.Decimals()))
			return nil
		},
	}
}

// Package commands implements the ZapCash CLI commands using cobra.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd creates the root command with all subcommands registered.
func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "zapcash",
		Short: "ZapCash - stablecoin assistant for WhatsApp",
		Long: `ZapCash is a conversational stablecoin wallet that lives in WhatsApp.
Users chat in natural language; the assistant onboards them, provisions
custodial wallets, and executes balance checks and transfers on chain.

Examples:
  zapcash serve
  zapcash chat
  zapcash wallet balance 5511999998888
  zapcash setup`,
		Version: version,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newChatCmd(),
		newSetupCmd(),
		newWalletCmd(),
	)

	rootCmd.PersistentFlags().StringP("config", "c", "", "path to the configuration file")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable debug logging")

	return rootCmd
}

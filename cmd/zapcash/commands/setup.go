package commands

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/zapcash/zapcash/pkg/zapcash/assistant"
)

// newSetupCmd creates the `zapcash setup` command for interactive
// configuration.
func newSetupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "setup",
		Short: "Interactive setup wizard",
		Long: `Starts an interactive wizard that creates your initial config.yaml.
Asks for the assistant name, allowed phone numbers, chain endpoints, and
model settings. The API key goes to the OS keyring when available, never
into the file.

Examples:
  zapcash setup`,
		RunE: func(_ *cobra.Command, _ []string) error {
			return runInteractiveSetup()
		},
	}
}

// runInteractiveSetup guides the user through config creation.
func runInteractiveSetup() error {
	cfg := assistant.DefaultConfig()

	var (
		ownerNumber string
		allowAll    bool
		rpcURL      string
		apiKey      string
	)

	form := huh.NewForm(
		huh.NewGroup(
			huh.NewInput().
				Title("Assistant name").
				Description("The name the assistant introduces itself with.").
				Value(&cfg.Name),
			huh.NewSelect[string]().
				Title("Conversation language").
				Options(
					huh.NewOption("English", "English"),
					huh.NewOption("Portuguese", "Portuguese"),
					huh.NewOption("Spanish", "Spanish"),
				).
				Value(&cfg.Language),
		),
		huh.NewGroup(
			huh.NewConfirm().
				Title("Respond to everyone?").
				Description("If no, only numbers on the allowlist get replies.").
				Value(&allowAll),
			huh.NewInput().
				Title("Your phone number").
				Description("Country code included, digits only. Example: 5511999998888").
				Validate(func(s string) error {
					if allowAll && strings.TrimSpace(s) == "" {
						return nil
					}
					if len(digitsOnly(s)) < 10 {
						return fmt.Errorf("number seems too short, include the country code")
					}
					return nil
				}).
				Value(&ownerNumber),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Chain RPC URL").
				Description("JSON-RPC endpoint of the node holding the custodial keystore.").
				Validate(nonEmpty("RPC URL")).
				Value(&rpcURL),
			huh.NewInput().
				Title("Stablecoin contract address").
				Validate(nonEmpty("token address")).
				Value(&cfg.Chain.TokenAddress),
			huh.NewInput().
				Title("Treasury address").
				Description("Funds new wallets with gas and holds operational float.").
				Validate(nonEmpty("treasury address")).
				Value(&cfg.Chain.TreasuryAddress),
			huh.NewInput().
				Title("Block explorer base URL").
				Placeholder("https://scan.example.com").
				Value(&cfg.Chain.ExplorerBaseURL),
		),
		huh.NewGroup(
			huh.NewInput().
				Title("Model API base URL").
				Value(&cfg.LLM.BaseURL),
			huh.NewInput().
				Title("Model").
				Value(&cfg.LLM.Model),
			huh.NewInput().
				Title("API key").
				Description("Stored in the OS keyring when available, otherwise left for the ZAPCASH_API_KEY environment variable.").
				EchoMode(huh.EchoModePassword).
				Value(&apiKey),
		),
	)

	if err := form.Run(); err != nil {
		return fmt.Errorf("setup cancelled: %w", err)
	}

	cfg.Access.AllowAll = allowAll
	if n := digitsOnly(ownerNumber); n != "" {
		cfg.Access.AllowedNumbers = []string{n}
	}
	if rpcURL != "" {
		cfg.Chain.RPCURLs = []string{rpcURL}
	}

	apiKey = strings.TrimSpace(apiKey)
	if apiKey != "" {
		if assistant.KeyringAvailable() {
			if err := assistant.StoreKeyring("api_key", apiKey); err != nil {
				fmt.Println("Keyring storage failed; export ZAPCASH_API_KEY instead.")
			} else {
				fmt.Println("API key stored in the OS keyring.")
			}
		} else {
			fmt.Println("No OS keyring available; export ZAPCASH_API_KEY before starting.")
		}
	}

	if err := assistant.SaveConfigToFile(cfg, "config.yaml"); err != nil {
		return fmt.Errorf("writing config.yaml: %w", err)
	}

	fmt.Println()
	fmt.Println("config.yaml written. Start the assistant with 'zapcash serve'.")
	fmt.Println("Remember to export ZAPCASH_TREASURY_SECRET and ZAPCASH_SECRET_PASSPHRASE.")
	return nil
}

func digitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

func nonEmpty(what string) func(string) error {
	return func(s string) error {
		if strings.TrimSpace(s) == "" {
			return fmt.Errorf("%s is required", what)
		}
		return nil
	}
}

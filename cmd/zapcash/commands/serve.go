package commands

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zapcash/zapcash/pkg/zapcash/assistant"
	"github.com/zapcash/zapcash/pkg/zapcash/channels/whatsapp"
	"github.com/zapcash/zapcash/pkg/zapcash/notify"
	"github.com/zapcash/zapcash/pkg/zapcash/profile"
	"github.com/zapcash/zapcash/pkg/zapcash/wallet"
)

// newServeCmd creates the `zapcash serve` command that starts the daemon.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the assistant daemon on WhatsApp",
		Long: `Start ZapCash as a daemon service: connects to WhatsApp, watches the
treasury, and processes incoming messages.

Examples:
  zapcash serve
  zapcash serve --config ./config.yaml`,
		RunE: runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}

	logger := newLogger(cmd, cfg)

	// Audit BEFORE resolving so hardcoded keys in the raw config are
	// flagged.
	assistant.AuditSecrets(cfg, logger)
	if key := assistant.ResolveAPIKey(cfg); key != "" {
		cfg.LLM.APIKey = key
	} else {
		return fmt.Errorf("no API key found: set ZAPCASH_API_KEY or run 'zapcash setup'")
	}

	store, err := profile.OpenStore(cfg.Database.Path, cfg.Database.SecretPassphrase)
	if err != nil {
		return fmt.Errorf("opening profile store: %w", err)
	}
	defer store.Close()

	chain := wallet.NewService(cfg.Chain, logger)
	llm := assistant.NewLLMClient(cfg.LLM, logger)
	notifier := notify.New(cfg.Webhook, logger)
	dispatcher := assistant.NewDispatcher(store, store, chain, logger)

	wa := whatsapp.New(cfg.WhatsApp, logger)
	orch := assistant.NewOrchestrator(cfg, llm, dispatcher, store, store, wa, notifier, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// First-run pairing: codes show up here until the device is linked.
	go func() {
		for code := range wa.QRCodes() {
			fmt.Println()
			fmt.Println("Scan this code with WhatsApp (Linked Devices > Link a Device):")
			fmt.Println(code)
			fmt.Println()
		}
	}()

	if err := wa.Connect(ctx); err != nil {
		return fmt.Errorf("connecting to WhatsApp: %w", err)
	}

	monitor := wallet.NewMonitor(cfg.TreasuryMonitor, chain, logger)
	if cfg.TreasuryMonitor.Enabled {
		if err := monitor.Start(); err != nil {
			logger.Error("treasury monitor failed to start", "error", err)
		}
	}

	go orch.Run(ctx, wa)

	logger.Info("ZapCash running. Press Ctrl+C to stop.",
		"name", cfg.Name,
		"language", cfg.Language,
		"model", cfg.LLM.Model,
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info("shutdown signal received, stopping...")
	cancel()

	done := make(chan struct{})
	go func() {
		monitor.Stop()
		if err := wa.Disconnect(); err != nil {
			logger.Warn("disconnecting WhatsApp", "error", err)
		}
		close(done)
	}()

	select {
	case <-done:
		logger.Info("shutdown complete")
	case <-time.After(10 * time.Second):
		logger.Warn("shutdown timed out after 10s, forcing exit")
	}

	return nil
}

// newLogger builds the process logger from config and the verbose flag.
func newLogger(cmd *cobra.Command, cfg *assistant.Config) *slog.Logger {
	verbose, _ := cmd.Root().PersistentFlags().GetBool("verbose")
	logLevel := slog.LevelInfo
	if verbose || cfg.Logging.Level == "debug" {
		logLevel = slog.LevelDebug
	}

	var handler slog.Handler
	if cfg.Logging.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	} else {
		handler = slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})
	}
	return slog.New(handler)
}

// resolveConfig loads config from file, offering interactive setup when
// none exists.
func resolveConfig(cmd *cobra.Command) (*assistant.Config, error) {
	configPath, _ := cmd.Root().PersistentFlags().GetString("config")

	if configPath != "" {
		cfg, err := assistant.LoadConfigFromFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}
		return cfg, nil
	}

	if found := assistant.FindConfigFile(); found != "" {
		cfg, err := assistant.LoadConfigFromFile(found)
		if err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", found, err)
		}
		slog.Info("config loaded", "path", found)
		return cfg, nil
	}

	fmt.Println()
	fmt.Println("No configuration file found.")
	fmt.Println("ZapCash requires a config.yaml before connecting to WhatsApp.")
	fmt.Println()

	if !assistant.IsInteractive() {
		return nil, fmt.Errorf("configuration required before starting; run 'zapcash setup'")
	}

	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Run interactive setup now? (y/n) [y]: ")
	answer := strings.TrimSpace(readInput(reader))
	if answer != "" && !strings.EqualFold(answer, "y") {
		fmt.Println()
		fmt.Println("Run 'zapcash setup' to create the configuration.")
		return nil, fmt.Errorf("configuration required before starting")
	}

	if err := runInteractiveSetup(); err != nil {
		return nil, fmt.Errorf("setup: %w", err)
	}

	if found := assistant.FindConfigFile(); found != "" {
		cfg, err := assistant.LoadConfigFromFile(found)
		if err != nil {
			return nil, fmt.Errorf("loading config from %s: %w", found, err)
		}
		slog.Info("config loaded after setup", "path", found)
		return cfg, nil
	}

	return nil, fmt.Errorf("setup completed but no config.yaml found")
}

// readInput reads a line from stdin.
func readInput(reader *bufio.Reader) string {
	line, _ := reader.ReadString('\n')
	return line
}

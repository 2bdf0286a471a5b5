package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/zapcash/zapcash/pkg/zapcash/assistant"
	"github.com/zapcash/zapcash/pkg/zapcash/channels"
	"github.com/zapcash/zapcash/pkg/zapcash/notify"
	"github.com/zapcash/zapcash/pkg/zapcash/profile"
	"github.com/zapcash/zapcash/pkg/zapcash/wallet"
)

// consoleHandle identifies the local REPL user in the profile store.
const consoleHandle = "console@local"

// newChatCmd creates the `zapcash chat` command, a local REPL that runs
// the full conversation loop without WhatsApp.
func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message]",
		Short: "Talk to the assistant from the terminal",
		Long: `Runs the assistant loop against stdin/stdout instead of WhatsApp.
Useful for trying prompts and tools before linking a device. Uses the
same profile store and chain configuration as 'serve'.

Examples:
  zapcash chat "what's my balance?"
  zapcash chat  # interactive`,
		Args: cobra.MaximumNArgs(1),
		RunE: runChat,
	}
}

// consoleTransport prints replies to stdout.
type consoleTransport struct{}

func (consoleTransport) Send(_ context.Context, msg *channels.OutgoingMessage) error {
	fmt.Printf("\nzapcash> %s\n\n", msg.Text)
	return nil
}

func (consoleTransport) SendTyping(context.Context, string, bool) error { return nil }

func runChat(cmd *cobra.Command, args []string) error {
	cfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	// The REPL is local; keep the chat clean and let anyone in.
	cfg.Access.AllowAll = true
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

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
	dispatcher := assistant.NewDispatcher(store, store, chain, logger)
	orch := assistant.NewOrchestrator(cfg, llm, dispatcher, store, store,
		consoleTransport{}, notify.New(cfg.Webhook, logger), logger)

	ctx := context.Background()

	if len(args) > 0 {
		return orch.HandleMessage(ctx, consoleMessage(args[0]))
	}

	rl, err := readline.New("you> ")
	if err != nil {
		return fmt.Errorf("starting readline: %w", err)
	}
	defer rl.Close()

	fmt.Printf("Chatting with %s. Ctrl+D or /quit to leave.\n\n", cfg.Name)

	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "/quit" || line == "/exit" {
			return nil
		}

		if err := orch.HandleMessage(ctx, consoleMessage(line)); err != nil {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

func consoleMessage(text string) *channels.IncomingMessage {
	return &channels.IncomingMessage{
		ID:         fmt.Sprintf("console-%d", time.Now().UnixNano()),
		Channel:    "console",
		SenderID:   consoleHandle,
		SenderName: "Console",
		Text:       text,
		Timestamp:  time.Now(),
	}
}

// config.go is the top-level configuration tree.
package assistant

import (
	"github.com/zapcash/zapcash/pkg/zapcash/channels/whatsapp"
	"github.com/zapcash/zapcash/pkg/zapcash/notify"
	"github.com/zapcash/zapcash/pkg/zapcash/wallet"
)

// Config is the full configuration, loaded from YAML with environment
// expansion.
type Config struct {
	// Name is the assistant's persona name.
	Name string `yaml:"name"`

	// Language the assistant replies in.
	Language string `yaml:"language"`

	// LLM configures the model provider.
	LLM LLMConfig `yaml:"llm"`

	// Access controls which senders the assistant answers.
	Access AccessConfig `yaml:"access"`

	// Database configures the SQLite store.
	Database DatabaseConfig `yaml:"database"`

	// History configures the model context window.
	History HistoryConfig `yaml:"history"`

	// WhatsApp configures the messaging channel.
	WhatsApp whatsapp.Config `yaml:"whatsapp"`

	// Chain configures wallets and transfers.
	Chain wallet.Config `yaml:"chain"`

	// TreasuryMonitor configures reserve checks.
	TreasuryMonitor wallet.MonitorConfig `yaml:"treasury_monitor"`

	// Webhook configures outbound event delivery.
	Webhook notify.Config `yaml:"webhook"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// AccessConfig is the sender allowlist.
type AccessConfig struct {
	// AllowedNumbers lists phone numbers (digits only) permitted to talk
	// to the assistant. Empty means nobody unless AllowAll is set.
	AllowedNumbers []string `yaml:"allowed_numbers"`

	// AllowAll disables the allowlist. For development only.
	AllowAll bool `yaml:"allow_all"`
}

// DatabaseConfig locates the SQLite store.
type DatabaseConfig struct {
	// Path of the SQLite file.
	Path string `yaml:"path"`

	// SecretPassphrase encrypts wallet secrets at rest. Usually an env
	// reference like ${ZAPCASH_SECRET_PASSPHRASE}.
	SecretPassphrase string `yaml:"secret_passphrase"`
}

// HistoryConfig bounds the conversation context.
type HistoryConfig struct {
	// Window is the number of history messages sent to the model.
	Window int `yaml:"window"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level"`

	// Format: text or json.
	Format string `yaml:"format"`
}

// DefaultConfig returns the full default tree.
func DefaultConfig() *Config {
	return &Config{
		Name:            "ZapCash",
		Language:        "English",
		LLM:             DefaultLLMConfig(),
		Database:        DatabaseConfig{Path: "./data/zapcash.db"},
		History:         HistoryConfig{Window: DefaultHistoryWindow},
		WhatsApp:        whatsapp.DefaultConfig(),
		Chain:           wallet.DefaultConfig(),
		TreasuryMonitor: wallet.DefaultMonitorConfig(),
		Webhook:         notify.DefaultConfig(),
		Logging:         LoggingConfig{Level: "info", Format: "text"},
	}
}

// IsAllowedSender checks a sender handle (JID or phone) against the
// allowlist.
func (c *Config) IsAllowedSender(handle string) bool {
	if c.Access.AllowAll {
		return true
	}
	digits := digitsOf(handle)
	for _, n := range c.Access.AllowedNumbers {
		if digitsOf(n) == digits && digits != "" {
			return true
		}
	}
	return false
}

func digitsOf(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= '0' && c <= '9' {
			out = append(out, c)
		} else if c == '@' {
			break
		}
	}
	return string(out)
}

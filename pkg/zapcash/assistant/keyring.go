// keyring.go stores the API key in the OS keyring
// so it never has to live in the config file.
package assistant

import (
	"os"

	"github.com/zalando/go-keyring"
	"golang.org/x/term"
)

const keyringService = "zapcash"

// StoreKeyring saves a secret under the OS keyring.
func StoreKeyring(name, value string) error {
	return keyring.Set(keyringService, name, value)
}

// GetKeyring retrieves a secret, returning "" when absent or on error.
func GetKeyring(name string) string {
	v, err := keyring.Get(keyringService, name)
	if err != nil {
		return ""
	}
	return v
}

// DeleteKeyring removes a secret.
func DeleteKeyring(name string) error {
	return keyring.Delete(keyringService, name)
}

// KeyringAvailable probes the OS keyring with a write/delete cycle.
func KeyringAvailable() bool {
	const probe = "__test__"
	if err := keyring.Set(keyringService, probe, "ok"); err != nil {
		return false
	}
	_ = keyring.Delete(keyringService, probe)
	return true
}

// ResolveAPIKey finds the model API key, in order: OS keyring,
// environment, config value. Interactive sessions can fall back to the
// setup wizard when nothing is found.
func ResolveAPIKey(cfg *Config) string {
	if key := GetKeyring("api_key"); key != "" {
		return key
	}
	if key := os.Getenv("ZAPCASH_API_KEY"); key != "" {
		return key
	}
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		return key
	}
	if cfg.LLM.APIKey != "" && !IsEnvReference(cfg.LLM.APIKey) {
		return cfg.LLM.APIKey
	}
	return ""
}

// IsInteractive reports whether stdin is a terminal, which gates
// interactive prompts.
func IsInteractive() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

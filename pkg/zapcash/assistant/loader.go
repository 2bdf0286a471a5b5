// loader.go loads configuration from YAML with
// credential handling via environment variables and .env files.
package assistant

import (
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR_NAME} or $VAR_NAME in config values.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Z_][A-Z0-9_]*)`)

// LoadConfigFromFile reads and parses a YAML configuration file,
// loading .env files and expanding environment variables first.
func LoadConfigFromFile(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	cfg, err := ParseConfig([]byte(expanded))
	if err != nil {
		return nil, err
	}

	resolveSecrets(cfg)
	checkFilePermissions(path)

	return cfg, nil
}

// ParseConfig overlays YAML bytes onto the default tree.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	return cfg, nil
}

// SaveConfigToFile writes a Config as YAML with secrets replaced by
// environment variable references and owner-only permissions.
func SaveConfigToFile(cfg *Config, path string) error {
	sanitized := *cfg
	sanitized.LLM.APIKey = sanitizeSecret(cfg.LLM.APIKey, "ZAPCASH_API_KEY")
	sanitized.Chain.TreasurySecret = sanitizeSecret(cfg.Chain.TreasurySecret, "ZAPCASH_TREASURY_SECRET")
	sanitized.Database.SecretPassphrase = sanitizeSecret(cfg.Database.SecretPassphrase, "ZAPCASH_SECRET_PASSPHRASE")
	sanitized.Webhook.Secret = sanitizeSecret(cfg.Webhook.Secret, "ZAPCASH_WEBHOOK_SECRET")

	data, err := yaml.Marshal(&sanitized)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// FindConfigFile searches standard locations for a config file.
func FindConfigFile() string {
	candidates := []string{
		"config.yaml",
		"config.yml",
		"zapcash.yaml",
		"zapcash.yml",
		"configs/config.yaml",
		"configs/zapcash.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// AuditSecrets warns about hardcoded credentials at startup.
func AuditSecrets(cfg *Config, logger *slog.Logger) {
	if cfg.LLM.APIKey != "" && !IsEnvReference(cfg.LLM.APIKey) && looksLikeRealKey(cfg.LLM.APIKey) {
		logger.Warn("API key appears to be hardcoded in config. "+
			"Use environment variable ZAPCASH_API_KEY instead.",
			"hint", "Set 'api_key: ${ZAPCASH_API_KEY}' in config.yaml")
	}
	if cfg.Chain.TreasurySecret != "" && !IsEnvReference(cfg.Chain.TreasurySecret) {
		logger.Warn("treasury secret appears to be hardcoded in config. "+
			"Use environment variable ZAPCASH_TREASURY_SECRET instead.",
			"hint", "Set 'treasury_secret: ${ZAPCASH_TREASURY_SECRET}' in config.yaml")
	}
}

// ---------- Internal ----------

func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		// godotenv.Load does NOT overwrite existing env vars.
		_ = godotenv.Load(f)
	}
}

// expandEnvVars replaces ${VAR} and $VAR references with environment
// values, leaving unset references in place.
func expandEnvVars(input string) string {
	return envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}
		if val, ok := os.LookupEnv(varName); ok {
			return val
		}
		return match
	})
}

// resolveSecrets fills empty or placeholder secrets from the environment.
func resolveSecrets(cfg *Config) {
	if cfg.LLM.APIKey == "" || IsEnvReference(cfg.LLM.APIKey) {
		if key := os.Getenv("ZAPCASH_API_KEY"); key != "" {
			cfg.LLM.APIKey = key
		} else if key := os.Getenv("OPENAI_API_KEY"); key != "" {
			cfg.LLM.APIKey = key
		}
	}
	if cfg.Chain.TreasurySecret == "" || IsEnvReference(cfg.Chain.TreasurySecret) {
		if v := os.Getenv("ZAPCASH_TREASURY_SECRET"); v != "" {
			cfg.Chain.TreasurySecret = v
		}
	}
	if cfg.Database.SecretPassphrase == "" || IsEnvReference(cfg.Database.SecretPassphrase) {
		if v := os.Getenv("ZAPCASH_SECRET_PASSPHRASE"); v != "" {
			cfg.Database.SecretPassphrase = v
		}
	}
	if cfg.Webhook.Secret == "" || IsEnvReference(cfg.Webhook.Secret) {
		if v := os.Getenv("ZAPCASH_WEBHOOK_SECRET"); v != "" {
			cfg.Webhook.Secret = v
		}
	}
}

// sanitizeSecret replaces a real secret with an env var reference for
// safe storage in config files.
func sanitizeSecret(value, envVar string) string {
	if value == "" || IsEnvReference(value) {
		return value
	}
	if os.Getenv(envVar) == value {
		return "${" + envVar + "}"
	}
	return value
}

// IsEnvReference checks if a string is an environment variable reference.
func IsEnvReference(s string) bool {
	return strings.HasPrefix(s, "${") || strings.HasPrefix(s, "$")
}

// looksLikeRealKey heuristically distinguishes real API keys from
// placeholders.
func looksLikeRealKey(s string) bool {
	if IsEnvReference(s) {
		return false
	}
	if strings.HasPrefix(s, "sk-") {
		return true
	}
	return len(s) > 20
}

// checkFilePermissions warns if the config file is group/world readable.
func checkFilePermissions(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	mode := info.Mode().Perm()
	if mode&0o044 != 0 {
		slog.Warn("config file has open permissions, consider restricting",
			"path", path,
			"current", fmt.Sprintf("%04o", mode),
			"recommended", "0600",
			"fix", fmt.Sprintf("chmod 600 %s", path),
		)
	}
}

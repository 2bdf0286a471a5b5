package assistant

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestParseConfig(t *testing.T) {
	t.Run("overlays defaults", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(`
name: Caixa
language: Portuguese
history:
  window: 20
`))
		if err != nil {
			t.Fatalf("ParseConfig failed: %v", err)
		}
		if cfg.Name != "Caixa" || cfg.Language != "Portuguese" {
			t.Errorf("overrides not applied: %+v", cfg)
		}
		if cfg.History.Window != 20 {
			t.Errorf("history window = %d, want 20", cfg.History.Window)
		}
		if cfg.LLM.Model == "" {
			t.Error("defaults lost during overlay")
		}
	})

	t.Run("invalid YAML", func(t *testing.T) {
		if _, err := ParseConfig([]byte("name: [unclosed")); err == nil {
			t.Error("expected parse error")
		}
	})
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("ZAPCASH_TEST_VALUE", "resolved")

	cases := []struct {
		name  string
		input string
		want  string
	}{
		{"braced", "key: ${ZAPCASH_TEST_VALUE}", "key: resolved"},
		{"bare", "key: $ZAPCASH_TEST_VALUE", "key: resolved"},
		{"unset left in place", "key: ${ZAPCASH_TEST_UNSET}", "key: ${ZAPCASH_TEST_UNSET}"},
		{"no reference", "key: plain", "key: plain"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := expandEnvVars(tc.input); got != tc.want {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tc.input, got, tc.want)
			}
		})
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Setenv("ZAPCASH_API_KEY", "sk-from-env")

	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
name: ZapCash
llm:
  api_key: ${ZAPCASH_API_KEY}
chain:
  token_address: "0xtoken"
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("writing config: %v", err)
	}

	cfg, err := LoadConfigFromFile(path)
	if err != nil {
		t.Fatalf("LoadConfigFromFile failed: %v", err)
	}
	if cfg.LLM.APIKey != "sk-from-env" {
		t.Errorf("api key not expanded: %q", cfg.LLM.APIKey)
	}
	if cfg.Chain.TokenAddress != "0xtoken" {
		t.Errorf("chain config not loaded: %q", cfg.Chain.TokenAddress)
	}
}

func TestSaveConfigSanitizesSecrets(t *testing.T) {
	t.Setenv("ZAPCASH_API_KEY", "sk-real-key-value-1234567890")

	cfg := DefaultConfig()
	cfg.LLM.APIKey = "sk-real-key-value-1234567890"

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := SaveConfigToFile(cfg, path); err != nil {
		t.Fatalf("SaveConfigToFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading config: %v", err)
	}
	if strings.Contains(string(data), "sk-real-key-value") {
		t.Error("plaintext secret written to config file")
	}
	if !strings.Contains(string(data), "${ZAPCASH_API_KEY}") {
		t.Error("expected env reference in saved config")
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat config: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("config written with permissions %04o, want 0600", perm)
	}
}

func TestIsEnvReference(t *testing.T) {
	if !IsEnvReference("${ZAPCASH_API_KEY}") || !IsEnvReference("$ZAPCASH_API_KEY") {
		t.Error("env references not recognized")
	}
	if IsEnvReference("sk-abcdef") {
		t.Error("plain value misclassified as env reference")
	}
}

func TestLooksLikeRealKey(t *testing.T) {
	cases := []struct {
		value string
		want  bool
	}{
		{"sk-short", true},
		{"a-very-long-opaque-credential-string", true},
		{"${ZAPCASH_API_KEY}", false},
		{"changeme", false},
	}
	for _, tc := range cases {
		if got := looksLikeRealKey(tc.value); got != tc.want {
			t.Errorf("looksLikeRealKey(%q) = %v, want %v", tc.value, got, tc.want)
		}
	}
}

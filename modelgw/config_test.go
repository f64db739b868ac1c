package modelgw

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "gateway.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider != "anthropic" {
		t.Errorf("provider = %q", cfg.Provider)
	}
	if cfg.MaxTokens != 8192 {
		t.Errorf("max_tokens = %d", cfg.MaxTokens)
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider != "anthropic" {
		t.Errorf("provider = %q", cfg.Provider)
	}
}

func TestLoadConfigParsesTiers(t *testing.T) {
	path := writeConfig(t, `
provider: openai
max_tokens: 4096
tiers:
  top: gpt-5.2
  light: gpt-5.2-mini
`)
	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider != "openai" {
		t.Errorf("provider = %q", cfg.Provider)
	}
	overrides := cfg.TierOverrides()
	if overrides[TierTop] != "gpt-5.2" {
		t.Errorf("top override = %q", overrides[TierTop])
	}
	if _, ok := overrides[TierMid]; ok {
		t.Error("unset tiers must not appear in overrides")
	}
}

func TestLoadConfigRejectsUnknownKeys(t *testing.T) {
	path := writeConfig(t, `
provider: anthropic
modle: typo-here
`)
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("unknown keys must be rejected")
	}
}

func TestLoadConfigRejectsUnknownProvider(t *testing.T) {
	path := writeConfig(t, "provider: skynet\n")
	if _, err := LoadConfig(path); err == nil {
		t.Fatal("unknown provider must be rejected")
	}
}

func TestLoadConfigEnvOverrides(t *testing.T) {
	t.Setenv("AGENTCORE_PROVIDER", "openai")
	t.Setenv("AGENTCORE_MODEL_TOP", "gpt-5.2")

	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Provider != "openai" {
		t.Errorf("env provider override not applied, got %q", cfg.Provider)
	}
	if cfg.Tiers.Top != "gpt-5.2" {
		t.Errorf("env tier override not applied, got %q", cfg.Tiers.Top)
	}
}

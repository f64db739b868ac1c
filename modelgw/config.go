package modelgw

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the gateway configuration file. Unknown keys are rejected so a
// typo in a tier name fails loudly instead of silently keeping the default.
type Config struct {
	Provider  string `yaml:"provider"`
	APIKeyEnv string `yaml:"api_key_env,omitempty"`
	MaxTokens int    `yaml:"max_tokens,omitempty"`

	// Tiers overrides the default model for a tier. Absent tiers keep
	// their catalog defaults.
	Tiers struct {
		Light ModelID `yaml:"light,omitempty"`
		Mid   ModelID `yaml:"mid,omitempty"`
		Top   ModelID `yaml:"top,omitempty"`
	} `yaml:"tiers,omitempty"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() Config {
	return Config{
		Provider:  "anthropic",
		MaxTokens: 8192,
	}
}

// LoadConfig reads a YAML config file, applies defaults, and honors
// environment overrides. A missing path returns the defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				applyEnvOverrides(&cfg)
				return cfg, nil
			}
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAMLStrict(b, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	applyConfigDefaults(&cfg)
	applyEnvOverrides(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decodeYAMLStrict(b []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return err
	}
	var trailing any
	if err := dec.Decode(&trailing); err != io.EOF {
		if err == nil {
			return fmt.Errorf("yaml: multiple documents are not allowed")
		}
		return err
	}
	return nil
}

func applyConfigDefaults(cfg *Config) {
	if cfg.Provider == "" {
		cfg.Provider = "anthropic"
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 8192
	}
}

// Environment variables take precedence over file values:
//
//	AGENTCORE_PROVIDER      provider name
//	AGENTCORE_MODEL_LIGHT   light tier model override
//	AGENTCORE_MODEL_MID     mid tier model override
//	AGENTCORE_MODEL_TOP     top tier model override
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("AGENTCORE_PROVIDER"); v != "" {
		cfg.Provider = v
	}
	if v := os.Getenv("AGENTCORE_MODEL_LIGHT"); v != "" {
		cfg.Tiers.Light = ModelID(v)
	}
	if v := os.Getenv("AGENTCORE_MODEL_MID"); v != "" {
		cfg.Tiers.Mid = ModelID(v)
	}
	if v := os.Getenv("AGENTCORE_MODEL_TOP"); v != "" {
		cfg.Tiers.Top = ModelID(v)
	}
}

func validateConfig(cfg *Config) error {
	switch strings.ToLower(cfg.Provider) {
	case "anthropic", "openai", "groq", "ollama", "mistral":
	default:
		return &ConfigurationError{GatewayError: GatewayError{
			Message: fmt.Sprintf("unknown provider %q", cfg.Provider),
		}}
	}
	if cfg.MaxTokens < 0 {
		return &ConfigurationError{GatewayError: GatewayError{
			Message: "max_tokens must be non-negative",
		}}
	}
	return nil
}

// TierOverrides converts the config's tier section into the map shape
// NewSelector accepts.
func (c Config) TierOverrides() map[Tier]ModelID {
	m := map[Tier]ModelID{}
	if c.Tiers.Light != "" {
		m[TierLight] = c.Tiers.Light
	}
	if c.Tiers.Mid != "" {
		m[TierMid] = c.Tiers.Mid
	}
	if c.Tiers.Top != "" {
		m[TierTop] = c.Tiers.Top
	}
	return m
}

// APIKey resolves the API key from the configured environment variable, or
// returns empty to let the provider SDK use its own default variable.
func (c Config) APIKey() string {
	if c.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(c.APIKeyEnv)
}

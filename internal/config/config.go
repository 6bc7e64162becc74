package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/stellarlinkco/prompt-registry/internal/template"
)

const DefaultPath = "configs/config.yaml"

type Config struct {
	LLM     LLMConfig     `yaml:"llm"`
	Storage StorageConfig `yaml:"storage"`
	Testing TestingConfig `yaml:"testing"`
	Limits  LimitsConfig  `yaml:"limits"`
}

type LLMConfig struct {
	DefaultProvider string                    `yaml:"default_provider,omitempty"`
	Providers       map[string]ProviderConfig `yaml:"providers,omitempty"`
}

type ProviderConfig struct {
	APIKey  string `yaml:"api_key"`
	BaseURL string `yaml:"base_url,omitempty"`
	Model   string `yaml:"model,omitempty"`
}

type StorageConfig struct {
	Type string `yaml:"type,omitempty"` // "sqlite" or "memory"
	Path string `yaml:"path,omitempty"` // SQLite file path
}

type TestingConfig struct {
	Timeout     time.Duration `yaml:"timeout,omitempty"`
	Concurrency int           `yaml:"concurrency,omitempty"`
}

// LimitsConfig bounds user-supplied template fields. Zero values fall back to
// defaults.
type LimitsConfig struct {
	TemperatureMin      float64 `yaml:"temperature_min,omitempty"`
	TemperatureMax      float64 `yaml:"temperature_max,omitempty"`
	MaxTokensMin        int     `yaml:"max_tokens_min,omitempty"`
	MaxTokensMax        int     `yaml:"max_tokens_max,omitempty"`
	ActivationReasonMin int     `yaml:"activation_reason_min,omitempty"`
	AuditPageSize       int     `yaml:"audit_page_size,omitempty"`
}

const (
	DefaultTestTimeout     = 60 * time.Second
	DefaultTestConcurrency = 4
	DefaultAuditPageSize   = 50
)

func Load(path string) (*Config, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		path = DefaultPath
	}

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}

	if cfg.LLM.Providers == nil {
		cfg.LLM.Providers = make(map[string]ProviderConfig)
	}
	if strings.TrimSpace(cfg.LLM.DefaultProvider) == "" {
		cfg.LLM.DefaultProvider = "claude"
	}

	if v := strings.TrimSpace(os.Getenv("ANTHROPIC_API_KEY")); v != "" {
		p := cfg.LLM.Providers["claude"]
		p.APIKey = v
		cfg.LLM.Providers["claude"] = p
	} else if v := strings.TrimSpace(os.Getenv("ANTHROPIC_AUTH_TOKEN")); v != "" {
		p := cfg.LLM.Providers["claude"]
		p.APIKey = v
		cfg.LLM.Providers["claude"] = p
	}

	if v := strings.TrimSpace(os.Getenv("OPENAI_API_KEY")); v != "" {
		p := cfg.LLM.Providers["openai"]
		p.APIKey = v
		cfg.LLM.Providers["openai"] = p
	}

	return &cfg, nil
}

// TestTimeout returns the configured per-test timeout or the default.
func (c *Config) TestTimeout() time.Duration {
	if c == nil || c.Testing.Timeout <= 0 {
		return DefaultTestTimeout
	}
	return c.Testing.Timeout
}

// TestConcurrency returns the configured test concurrency or the default.
func (c *Config) TestConcurrency() int {
	if c == nil || c.Testing.Concurrency <= 0 {
		return DefaultTestConcurrency
	}
	return c.Testing.Concurrency
}

// AuditPageSize returns the default audit listing page size.
func (c *Config) AuditPageSize() int {
	if c == nil || c.Limits.AuditPageSize <= 0 {
		return DefaultAuditPageSize
	}
	return c.Limits.AuditPageSize
}

// TemplateLimits converts the config bounds to domain limits, applying
// defaults for unset values.
func (c *Config) TemplateLimits() template.Limits {
	lim := template.DefaultLimits()
	if c == nil {
		return lim
	}
	if c.Limits.TemperatureMin > 0 {
		lim.TemperatureMin = c.Limits.TemperatureMin
	}
	if c.Limits.TemperatureMax > 0 {
		lim.TemperatureMax = c.Limits.TemperatureMax
	}
	if c.Limits.MaxTokensMin > 0 {
		lim.MaxTokensMin = c.Limits.MaxTokensMin
	}
	if c.Limits.MaxTokensMax > 0 {
		lim.MaxTokensMax = c.Limits.MaxTokensMax
	}
	if c.Limits.ActivationReasonMin > 0 {
		lim.ActivationReasonMin = c.Limits.ActivationReasonMin
	}
	return lim
}

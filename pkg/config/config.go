// Package config loads engine settings from an optional YAML file with
// environment-variable overrides.
package config

import (
	"fmt"
	"os"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"AgentCore/pkg/engine/api"
)

// Config is the full runtime configuration. Precedence, lowest to highest:
// built-in defaults, YAML file, AGENT_* environment variables.
type Config struct {
	Model        string `yaml:"model" envconfig:"AGENT_MODEL"`
	AuthMode     string `yaml:"auth_mode" envconfig:"AGENT_AUTH_MODE"`
	ApprovalMode string `yaml:"approval_mode" envconfig:"AGENT_APPROVAL_MODE"`

	WorkspaceRoot string `yaml:"workspace_root" envconfig:"AGENT_WORKSPACE_ROOT"`

	// MaxSessionTurns hard-stops the session when >0.
	MaxSessionTurns int `yaml:"max_session_turns" envconfig:"AGENT_MAX_SESSION_TURNS"`

	Compression CompressionConfig `yaml:"compression"`
	Retry       RetryConfig       `yaml:"retry"`
	Log         LogConfig         `yaml:"log"`
}

type CompressionConfig struct {
	// TokenThreshold is the fraction of the context window at which
	// compression kicks in.
	TokenThreshold float64 `yaml:"token_threshold" envconfig:"AGENT_COMPRESSION_TOKEN_THRESHOLD"`
	// PreserveFraction is the recent fraction of history kept verbatim.
	PreserveFraction float64 `yaml:"preserve_fraction" envconfig:"AGENT_COMPRESSION_PRESERVE_FRACTION"`
}

type RetryConfig struct {
	MaxAttempts             int     `yaml:"max_attempts" envconfig:"AGENT_RETRY_MAX_ATTEMPTS"`
	InitialDelayMS          int     `yaml:"initial_delay_ms" envconfig:"AGENT_RETRY_INITIAL_DELAY_MS"`
	BackoffFactor           float64 `yaml:"backoff_factor" envconfig:"AGENT_RETRY_BACKOFF_FACTOR"`
	MaxDelayMS              int     `yaml:"max_delay_ms" envconfig:"AGENT_RETRY_MAX_DELAY_MS"`
	Consecutive429Threshold int     `yaml:"consecutive_429_threshold" envconfig:"AGENT_RETRY_CONSECUTIVE_429_THRESHOLD"`
}

type LogConfig struct {
	Path  string `yaml:"path" envconfig:"AGENT_LOG_PATH"`
	Level string `yaml:"level" envconfig:"AGENT_LOG_LEVEL"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Model:           "gemini-2.5-pro",
		AuthMode:        "api-key",
		ApprovalMode:    string(api.ModeAuto),
		MaxSessionTurns: 100,
		Compression: CompressionConfig{
			TokenThreshold:   0.7,
			PreserveFraction: 0.3,
		},
		Retry: RetryConfig{
			MaxAttempts:             5,
			InitialDelayMS:          500,
			BackoffFactor:           2.0,
			MaxDelayMS:              30_000,
			Consecutive429Threshold: 2,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads configuration. path may be empty to skip the file layer; a
// missing file at an explicitly given path is an error. Environment
// variables without matching entries leave prior values untouched, so the
// layering is defaults < file < environment.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(raw, cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("process env overrides: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch api.ApprovalMode(c.ApprovalMode) {
	case api.ModeSuggest, api.ModeAuto, api.ModeFullAuto:
	default:
		return fmt.Errorf("invalid approval_mode %q", c.ApprovalMode)
	}
	if c.Compression.TokenThreshold <= 0 || c.Compression.TokenThreshold > 1 {
		return fmt.Errorf("compression.token_threshold must be in (0, 1], got %v", c.Compression.TokenThreshold)
	}
	if c.Compression.PreserveFraction <= 0 || c.Compression.PreserveFraction >= 1 {
		return fmt.Errorf("compression.preserve_fraction must be in (0, 1), got %v", c.Compression.PreserveFraction)
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1, got %d", c.Retry.MaxAttempts)
	}
	return nil
}

// GetApprovalMode returns the typed approval mode.
func (c *Config) GetApprovalMode() api.ApprovalMode {
	return api.ApprovalMode(c.ApprovalMode)
}

// Package config handles bookly-support configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/bookly-support/config.yaml,
// /etc/bookly-support/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "bookly-support", "config.yaml"))
	}

	paths = append(paths, "/etc/bookly-support/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all bookly-support configuration.
type Config struct {
	Listen    ListenConfig    `yaml:"listen"`
	Anthropic AnthropicConfig `yaml:"anthropic"`
	OpenAI    OpenAIConfig    `yaml:"openai"`
	Agent     AgentConfig     `yaml:"agent"`
	Fallback  FallbackConfig  `yaml:"fallback"`
	Database  DatabaseConfig  `yaml:"database"`
	LogLevel  string          `yaml:"log_level"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`    // Default: 8800
}

// AnthropicConfig defines the primary provider settings.
type AnthropicConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"` // Default: claude-sonnet-4-20250514
}

// OpenAIConfig defines the fallback provider settings.
type OpenAIConfig struct {
	APIKey string `yaml:"api_key"`
	Model  string `yaml:"model"` // Default: gpt-4o
}

// AgentConfig bounds the turn loop.
type AgentConfig struct {
	// MaxTurns caps provider calls per user message (default 10).
	MaxTurns int `yaml:"max_turns"`
	// MaxHistory caps stored conversation messages (default 20).
	MaxHistory int `yaml:"max_history"`
}

// FallbackConfig makes the provider-fallback predicate explicit.
// On lists the error classes that trigger a switch to the fallback
// provider: rate_limited, unauthorized, billing, server_error, other.
// An empty list means all classes are eligible.
type FallbackConfig struct {
	On []string `yaml:"on"`
}

// DatabaseConfig defines the SQLite backend location.
type DatabaseConfig struct {
	Path string `yaml:"path"` // Default: bookly.db
}

// Load reads and parses a config file, applying defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

// applyDefaults fills zero values with sensible defaults.
func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8800
	}
	if c.Anthropic.Model == "" {
		c.Anthropic.Model = "claude-sonnet-4-20250514"
	}
	if c.OpenAI.Model == "" {
		c.OpenAI.Model = "gpt-4o"
	}
	if c.Agent.MaxTurns == 0 {
		c.Agent.MaxTurns = 10
	}
	if c.Agent.MaxHistory == 0 {
		c.Agent.MaxHistory = 20
	}
	if c.Database.Path == "" {
		c.Database.Path = "bookly.db"
	}
}

// APIKeysFromEnv fills API keys from the environment when the config
// file left them empty. Environment variables take effect only as a
// fallback so a checked-in config cannot be silently overridden.
func (c *Config) APIKeysFromEnv() {
	if c.Anthropic.APIKey == "" {
		c.Anthropic.APIKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if c.OpenAI.APIKey == "" {
		c.OpenAI.APIKey = os.Getenv("OPENAI_API_KEY")
	}
}

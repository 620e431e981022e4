package regenwatch

import (
	"github.com/hazyhaar/dsguard/regenwatch/internal/config"
)

// Config is the top-level regenwatch configuration. Re-exported from internal.
type Config = config.Config

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig = config.BrowserConfig

// PageConfig defines the chat page to guard.
type PageConfig = config.PageConfig

// SelectorsConfig overrides the chat UI selectors.
type SelectorsConfig = config.SelectorsConfig

// RetryConfig bounds the regenerate backoff.
type RetryConfig = config.RetryConfig

// CompletionConfig controls the answer-ready monitor.
type CompletionConfig = config.CompletionConfig

// StatusConfig controls the HTTP status API.
type StatusConfig = config.StatusConfig

// SinkConfig defines an output backend.
type SinkConfig = config.SinkConfig

// LoadConfigFile reads a YAML configuration file.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns the configuration used when no file is given.
func DefaultConfig() *Config {
	return config.Default()
}

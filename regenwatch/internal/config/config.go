// Package config handles regenwatch configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level regenwatch configuration.
type Config struct {
	Browser    BrowserConfig    `yaml:"browser"`
	Page       PageConfig       `yaml:"page"`
	Retry      RetryConfig      `yaml:"retry"`
	Completion CompletionConfig `yaml:"completion"`
	Status     StatusConfig     `yaml:"status"`
	Sinks      []SinkConfig     `yaml:"sinks"`
}

// BrowserConfig controls Chrome lifecycle.
type BrowserConfig struct {
	Remote           string        `yaml:"remote"`
	Stealth          string        `yaml:"stealth"` // headless | headful
	UserDataDir      string        `yaml:"user_data_dir"`
	XvfbDisplay      string        `yaml:"xvfb_display"`
	MemoryLimit      int64         `yaml:"memory_limit"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
}

// PageConfig defines the chat page to guard.
type PageConfig struct {
	URL       string          `yaml:"url"`
	Selectors SelectorsConfig `yaml:"selectors"`
}

// SelectorsConfig overrides the chat UI selectors. Empty fields keep the
// built-in defaults.
type SelectorsConfig struct {
	RefreshButton string `yaml:"refresh_button"`
	RefreshIcon   string `yaml:"refresh_icon"`
	Markdown      string `yaml:"markdown"`
	Toast         string `yaml:"toast"`
	Thinking      string `yaml:"thinking"`
	AnswerDepth   int    `yaml:"answer_depth"`
}

// RetryConfig bounds the regenerate backoff.
type RetryConfig struct {
	BaseDelay         time.Duration `yaml:"base_delay"`
	MaxDelay          time.Duration `yaml:"max_delay"`
	ElementRetryLimit int           `yaml:"element_retry_limit"`
}

// CompletionConfig controls the answer-ready monitor.
type CompletionConfig struct {
	Enabled      *bool         `yaml:"enabled"` // default true
	PollInterval time.Duration `yaml:"poll_interval"`
}

// On reports whether the monitor runs.
func (c CompletionConfig) On() bool {
	return c.Enabled == nil || *c.Enabled
}

// StatusConfig controls the read-only HTTP status API. Empty Addr disables it.
type StatusConfig struct {
	Addr string `yaml:"addr"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook | page
	URL  string `yaml:"url"`  // for webhook
}

// DefaultURL is the chat page opened when none is configured.
const DefaultURL = "https://chat.deepseek.com/"

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the watcher cannot run with.
func (c *Config) Validate() error {
	if c.Retry.MaxDelay < c.Retry.BaseDelay {
		return fmt.Errorf("config: retry.max_delay %s below base_delay %s", c.Retry.MaxDelay, c.Retry.BaseDelay)
	}
	switch c.Browser.Stealth {
	case "headless", "headful":
	default:
		return fmt.Errorf("config: browser.stealth %q: want headless or headful", c.Browser.Stealth)
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case "stdout", "page":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: sinks[%d]: webhook needs a url", i)
			}
		default:
			return fmt.Errorf("config: sinks[%d]: unknown type %q", i, s.Type)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Browser.Stealth == "" {
		c.Browser.Stealth = "headless"
	}
	if c.Browser.XvfbDisplay == "" {
		c.Browser.XvfbDisplay = ":99"
	}
	if c.Browser.MemoryLimit <= 0 {
		c.Browser.MemoryLimit = 1 << 30
	}
	if c.Browser.RecycleInterval <= 0 {
		c.Browser.RecycleInterval = 24 * time.Hour
	}
	if c.Page.URL == "" {
		c.Page.URL = DefaultURL
	}
	if c.Retry.BaseDelay <= 0 {
		c.Retry.BaseDelay = time.Second
	}
	if c.Retry.MaxDelay <= 0 {
		c.Retry.MaxDelay = 64 * time.Second
	}
	if c.Retry.ElementRetryLimit <= 0 {
		c.Retry.ElementRetryLimit = 128
	}
	if c.Completion.PollInterval <= 0 {
		c.Completion.PollInterval = 100 * time.Millisecond
	}
	if len(c.Sinks) == 0 {
		c.Sinks = []SinkConfig{{Type: "stdout"}, {Type: "page"}}
	}
}

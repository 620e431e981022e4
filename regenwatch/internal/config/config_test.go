package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestParse_Defaults(t *testing.T) {
	cfg, err := Parse([]byte("{}"))
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Page.URL != DefaultURL {
		t.Errorf("URL: got %q, want %q", cfg.Page.URL, DefaultURL)
	}
	if cfg.Retry.BaseDelay != time.Second || cfg.Retry.MaxDelay != 64*time.Second {
		t.Errorf("delays: got %s..%s", cfg.Retry.BaseDelay, cfg.Retry.MaxDelay)
	}
	if cfg.Retry.ElementRetryLimit != 128 {
		t.Errorf("limit: got %d, want 128", cfg.Retry.ElementRetryLimit)
	}
	if cfg.Browser.Stealth != "headless" {
		t.Errorf("stealth: got %q", cfg.Browser.Stealth)
	}
	if !cfg.Completion.On() {
		t.Error("completion should default to on")
	}
	if cfg.Completion.PollInterval != 100*time.Millisecond {
		t.Errorf("poll: got %s", cfg.Completion.PollInterval)
	}
	if len(cfg.Sinks) != 2 || cfg.Sinks[0].Type != "stdout" || cfg.Sinks[1].Type != "page" {
		t.Errorf("sinks: got %+v", cfg.Sinks)
	}
	if cfg.Status.Addr != "" {
		t.Errorf("status should be off by default, got %q", cfg.Status.Addr)
	}
}

func TestLoadFile(t *testing.T) {
	const doc = `
browser:
  stealth: headful
  user_data_dir: /var/lib/regenwatch/profile
  resource_blocking: [images, fonts]
page:
  url: https://chat.deepseek.com/a/chat/s/123
  selectors:
    markdown: .answer
    answer_depth: 4
retry:
  base_delay: 2s
  max_delay: 32s
  element_retry_limit: 10
completion:
  enabled: false
status:
  addr: 127.0.0.1:8093
sinks:
  - type: webhook
    url: http://localhost:9000/hook
`
	path := filepath.Join(t.TempDir(), "regenwatch.yaml")
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Browser.Stealth != "headful" || cfg.Browser.UserDataDir != "/var/lib/regenwatch/profile" {
		t.Errorf("browser: got %+v", cfg.Browser)
	}
	if len(cfg.Browser.ResourceBlocking) != 2 {
		t.Errorf("blocking: got %v", cfg.Browser.ResourceBlocking)
	}
	if cfg.Page.Selectors.Markdown != ".answer" || cfg.Page.Selectors.AnswerDepth != 4 {
		t.Errorf("selectors: got %+v", cfg.Page.Selectors)
	}
	if cfg.Retry.BaseDelay != 2*time.Second || cfg.Retry.MaxDelay != 32*time.Second || cfg.Retry.ElementRetryLimit != 10 {
		t.Errorf("retry: got %+v", cfg.Retry)
	}
	if cfg.Completion.On() {
		t.Error("completion should be off")
	}
	if cfg.Status.Addr != "127.0.0.1:8093" {
		t.Errorf("status: got %q", cfg.Status.Addr)
	}
	if len(cfg.Sinks) != 1 || cfg.Sinks[0].URL != "http://localhost:9000/hook" {
		t.Errorf("sinks: got %+v", cfg.Sinks)
	}
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"delays":       "retry: {base_delay: 10s, max_delay: 1s}",
		"stealth":      "browser: {stealth: invisible}",
		"webhook url":  "sinks: [{type: webhook}]",
		"unknown sink": "sinks: [{type: nats}]",
		"yaml":         "retry: [",
	}
	for name, doc := range cases {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestLoadFile_Missing(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "nope.yaml") {
		t.Errorf("got %v", err)
	}
}

// Package completion watches the last chat turn and announces when an answer
// has finished generating, with the answer converted to Markdown.
//
// A turn moves through thinking, thinking done, and done. The answer is
// announced on the move to done, once per turn; an answer that was already
// done when the monitor started is never announced.
package completion

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/hazyhaar/dsguard/event"
	"github.com/hazyhaar/dsguard/markdown"
)

// Turn is the observed state of the last chat turn.
type Turn struct {
	ID       string
	Thinking bool // the host is still reasoning or streaming
	Done     bool // the answer is complete
	HTML     string
}

// TurnSource reads the last turn from the page.
type TurnSource interface {
	// LastTurn returns nil with a nil error when the page has no turn yet.
	LastTurn(ctx context.Context) (*Turn, error)
}

// Notifier delivers the completion event.
type Notifier interface {
	Send(ctx context.Context, ev event.Event) error
}

// Completed is the last announced answer.
type Completed struct {
	ID       string    `json:"id"`
	Markdown string    `json:"markdown"`
	At       time.Time `json:"at"`
}

// Config configures a Monitor.
type Config struct {
	Source    TurnSource
	Notifier  Notifier
	Converter *markdown.Converter
	// PageURL resolves relative links in answers.
	PageURL string

	PollInterval time.Duration // default 100ms
	ErrorPause   time.Duration // default 1s
	ReadAttempts int           // default 3
	ReadInterval time.Duration // default 500ms
	SummaryLen   int           // default 100 runes

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.Converter == nil {
		c.Converter = markdown.New()
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 100 * time.Millisecond
	}
	if c.ErrorPause <= 0 {
		c.ErrorPause = time.Second
	}
	if c.ReadAttempts <= 0 {
		c.ReadAttempts = 3
	}
	if c.ReadInterval <= 0 {
		c.ReadInterval = 500 * time.Millisecond
	}
	if c.SummaryLen <= 0 {
		c.SummaryLen = 100
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// fallbackBody is announced when the answer text cannot be read.
const fallbackBody = "Answer generated"

type observed struct {
	seen     bool
	id       string
	thinking bool
	done     bool
}

// Monitor polls a TurnSource. Run it in its own goroutine.
type Monitor struct {
	cfg    Config
	logger *slog.Logger

	last              observed
	thinkingCompleted bool

	mu        sync.RWMutex
	completed *Completed
}

// New creates a Monitor. cfg.Source is required.
func New(cfg Config) (*Monitor, error) {
	if cfg.Source == nil {
		return nil, fmt.Errorf("completion: source is required")
	}
	cfg.defaults()
	return &Monitor{cfg: cfg, logger: cfg.Logger}, nil
}

// Run polls until ctx is done. Check failures are logged and followed by a
// longer pause.
func (m *Monitor) Run(ctx context.Context) error {
	m.logger.Info("completion: started", "poll_interval", m.cfg.PollInterval)
	for {
		wait := m.cfg.PollInterval
		if err := m.Check(ctx); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			m.logger.Error("completion: check failed", "error", err)
			wait = m.cfg.ErrorPause
		}
		if err := sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Check reads the last turn once and acts on any transition.
func (m *Monitor) Check(ctx context.Context) error {
	turn, err := m.cfg.Source.LastTurn(ctx)
	if err != nil {
		return fmt.Errorf("completion: last turn: %w", err)
	}
	if turn == nil || !m.changed(turn) {
		return nil
	}

	prev := m.last
	m.logger.Info("completion: turn changed",
		"id", turn.ID,
		"thinking", turn.Thinking,
		"done", turn.Done)

	if prev.thinking && !turn.Thinking && !turn.Done {
		m.logger.Info("completion: thinking finished", "id", turn.ID)
		m.thinkingCompleted = true
	}

	if turn.Done && !prev.done && (m.thinkingCompleted || prev.thinking) {
		m.logger.Info("completion: answer finished", "id", turn.ID)
		m.thinkingCompleted = false
		if err := m.announce(ctx, turn); err != nil {
			m.last = observed{seen: true, id: turn.ID, thinking: turn.Thinking, done: turn.Done}
			return err
		}
	}

	m.last = observed{seen: true, id: turn.ID, thinking: turn.Thinking, done: turn.Done}
	return nil
}

// Last returns the most recently announced answer.
func (m *Monitor) Last() (Completed, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.completed == nil {
		return Completed{}, false
	}
	return *m.completed, true
}

func (m *Monitor) changed(t *Turn) bool {
	return !m.last.seen ||
		t.ID != m.last.id ||
		t.Thinking != m.last.thinking ||
		t.Done != m.last.done
}

func (m *Monitor) announce(ctx context.Context, turn *Turn) error {
	md := m.readMarkdown(ctx, turn)
	if ctx.Err() != nil {
		return ctx.Err()
	}

	m.mu.Lock()
	m.completed = &Completed{ID: turn.ID, Markdown: md, At: time.Now()}
	m.mu.Unlock()

	if m.cfg.Notifier == nil {
		return nil
	}
	ev := event.New(event.KindAnswerReady, markdown.Summarize(md, m.cfg.SummaryLen), 5*time.Second)
	ev.Title = "Answer ready"
	ev.Markdown = md
	if err := m.cfg.Notifier.Send(ctx, ev); err != nil {
		m.logger.Warn("completion: notify failed", "error", err)
	}
	return nil
}

// readMarkdown converts the turn's answer, re-reading the page while the
// text is still empty.
func (m *Monitor) readMarkdown(ctx context.Context, turn *Turn) string {
	html := turn.HTML
	for i := 0; i < m.cfg.ReadAttempts; i++ {
		if i > 0 {
			if err := sleep(ctx, m.cfg.ReadInterval); err != nil {
				return fallbackBody
			}
			if t, err := m.cfg.Source.LastTurn(ctx); err == nil && t != nil {
				html = t.HTML
			}
		}
		md, err := m.cfg.Converter.ConvertFrom(html, m.cfg.PageURL)
		if err != nil {
			m.logger.Warn("completion: convert failed", "error", err)
			continue
		}
		if strings.TrimSpace(md) != "" {
			return md
		}
	}
	return fallbackBody
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

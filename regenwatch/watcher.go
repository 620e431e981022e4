// Package regenwatch runs the chat guard as a daemon. It owns the browser
// and the chat tab, and runs the retry orchestrator, the completion monitor
// and the status API side by side until the context ends.
//
// regenwatch guards, it does not chat. It never types prompts; it only
// clicks regenerate on answers the host reported busy.
package regenwatch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"golang.org/x/sync/errgroup"

	"github.com/hazyhaar/dsguard/completion"
	"github.com/hazyhaar/dsguard/crazyretry"
	"github.com/hazyhaar/dsguard/deepseek"
	"github.com/hazyhaar/dsguard/regenwatch/internal/browser"
	"github.com/hazyhaar/dsguard/regenwatch/internal/config"
	"github.com/hazyhaar/dsguard/regenwatch/internal/sink"
	"github.com/hazyhaar/dsguard/regenwatch/internal/status"
)

// ErrNoPage is returned by Run when no chat URL is configured.
var ErrNoPage = errors.New("regenwatch: no page to guard")

// page is what the guard needs from the chat tab.
type page interface {
	crazyretry.Session
	crazyretry.ToastSource
	completion.TurnSource
}

// Watcher is the top-level daemon. Create one per chat page.
type Watcher struct {
	cfg    *config.Config
	mgr    *browser.Manager
	extra  []sink.Sink
	logger *slog.Logger

	// clock overrides the orchestrator's clock in tests.
	clock crazyretry.Clock

	mu      sync.Mutex
	session *deepseek.Session
	orch    *crazyretry.Orchestrator
	mon     *completion.Monitor
}

// New creates a Watcher from configuration. Extra sinks receive every event
// alongside the configured ones.
func New(cfg *config.Config, logger *slog.Logger, sinks ...sink.Sink) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL:        cfg.Browser.Remote,
		UserDataDir:      cfg.Browser.UserDataDir,
		MemoryLimit:      cfg.Browser.MemoryLimit,
		RecycleInterval:  cfg.Browser.RecycleInterval,
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Mode:             browser.ParseMode(cfg.Browser.Stealth),
		XvfbDisplay:      cfg.Browser.XvfbDisplay,
		Logger:           logger,
	})

	return &Watcher{cfg: cfg, mgr: mgr, extra: sinks, logger: logger}
}

// Run launches the browser, opens the chat page and guards it until ctx is
// done. A cancelled ctx is a clean stop and returns nil.
func (w *Watcher) Run(ctx context.Context) error {
	if w.cfg.Page.URL == "" {
		return ErrNoPage
	}

	if _, err := w.mgr.Start(ctx); err != nil {
		return fmt.Errorf("regenwatch: start browser: %w", err)
	}
	defer w.mgr.Close()

	tab, err := browser.OpenTab(ctx, w.mgr, w.cfg.Page.URL)
	if err != nil {
		return fmt.Errorf("regenwatch: open tab: %w", err)
	}
	session := deepseek.NewSession(tab.Page, selectors(w.cfg.Page.Selectors), w.logger)

	w.mu.Lock()
	w.session = session
	w.mu.Unlock()
	w.mgr.OnRecycle(w.reopen)

	sinks, err := buildSinks(w.cfg.Sinks, session, w.logger)
	if err != nil {
		return err
	}
	return w.guard(ctx, session, append(sinks, w.extra...))
}

// guard runs the orchestrator, the completion monitor, the status API and
// one delivery goroutine per sink on p until ctx is done or one of them
// fails.
func (w *Watcher) guard(ctx context.Context, p page, sinks []sink.Sink) error {
	router, queues := newDelivery(w.logger, w.cfg.Page.URL, sinks)
	defer router.Close()

	orch, err := crazyretry.New(crazyretry.Config{
		BaseDelay:  w.cfg.Retry.BaseDelay,
		MaxDelay:   w.cfg.Retry.MaxDelay,
		RetryLimit: w.cfg.Retry.ElementRetryLimit,
		Session:    p,
		Toasts:     p,
		Notifier:   router,
		Clock:      w.clock,
		Logger:     w.logger,
	})
	if err != nil {
		return fmt.Errorf("regenwatch: %w", err)
	}

	var mon *completion.Monitor
	if w.cfg.Completion.On() {
		mon, err = completion.New(completion.Config{
			Source:       p,
			Notifier:     router,
			PageURL:      w.cfg.Page.URL,
			PollInterval: w.cfg.Completion.PollInterval,
			Logger:       w.logger,
		})
		if err != nil {
			return fmt.Errorf("regenwatch: %w", err)
		}
	}

	w.mu.Lock()
	w.orch = orch
	w.mon = mon
	w.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	for _, q := range queues {
		g.Go(func() error { return q.Run(gctx) })
	}
	g.Go(func() error { return orch.Run(gctx) })
	if mon != nil {
		g.Go(func() error { return mon.Run(gctx) })
	}
	if addr := w.cfg.Status.Addr; addr != "" {
		var answers status.Answers
		if mon != nil {
			answers = mon
		}
		srv := status.New(orch, answers, w.logger)
		g.Go(func() error { return srv.ListenAndServe(gctx, addr) })
	}

	w.logger.Info("regenwatch: guarding page",
		"url", w.cfg.Page.URL,
		"completion", mon != nil,
		"status_addr", w.cfg.Status.Addr,
		"sinks", router.Len())

	err = g.Wait()
	if ctx.Err() != nil && errors.Is(err, ctx.Err()) {
		return nil
	}
	return err
}

// Status returns the orchestrator snapshot once Run has started.
func (w *Watcher) Status() (crazyretry.Status, bool) {
	w.mu.Lock()
	orch := w.orch
	w.mu.Unlock()
	if orch == nil {
		return crazyretry.Status{}, false
	}
	return orch.Status(), true
}

// LastAnswer returns the last completed answer, if the monitor runs and has
// seen one.
func (w *Watcher) LastAnswer() (completion.Completed, bool) {
	w.mu.Lock()
	mon := w.mon
	w.mu.Unlock()
	if mon == nil {
		return completion.Completed{}, false
	}
	return mon.Last()
}

// reopen reopens the chat tab on a recycled browser and rebinds the session.
func (w *Watcher) reopen(ctx context.Context, b *rod.Browser) {
	tab, err := browser.OpenTabOn(ctx, w.mgr, b, w.cfg.Page.URL)
	if err != nil {
		w.logger.Error("regenwatch: reopen tab failed", "url", w.cfg.Page.URL, "error", err)
		return
	}

	w.mu.Lock()
	session := w.session
	w.mu.Unlock()

	if session != nil {
		session.SetPage(tab.Page)
	}
	w.logger.Info("regenwatch: tab reopened after recycle", "url", w.cfg.Page.URL)
}

func selectors(c config.SelectorsConfig) deepseek.Selectors {
	return deepseek.Selectors{
		RefreshButton: c.RefreshButton,
		RefreshIcon:   c.RefreshIcon,
		Markdown:      c.Markdown,
		Toast:         c.Toast,
		Thinking:      c.Thinking,
		AnswerDepth:   c.AnswerDepth,
	}.WithDefaults()
}

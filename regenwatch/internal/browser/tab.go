package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/stealth"
)

// navigateTimeout bounds the initial page load.
const navigateTimeout = 60 * time.Second

// Tab is the chat page with stealth and resource blocking applied.
type Tab struct {
	Page    *rod.Page
	PageURL string
	router  *rod.HijackRouter
}

// OpenTab creates a stealth tab on the manager's current browser and
// navigates it to pageURL.
func OpenTab(ctx context.Context, mgr *Manager, pageURL string) (*Tab, error) {
	b := mgr.Browser()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}
	return openTab(ctx, b, mgr.cfg, pageURL)
}

// OpenTabOn opens the chat tab on a specific browser handle, as handed to a
// recycle callback.
func OpenTabOn(ctx context.Context, mgr *Manager, b *rod.Browser, pageURL string) (*Tab, error) {
	return openTab(ctx, b, mgr.cfg, pageURL)
}

func openTab(ctx context.Context, b *rod.Browser, cfg Config, pageURL string) (*Tab, error) {
	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create tab: %w", err)
	}

	tab := &Tab{Page: page, PageURL: pageURL}
	if len(cfg.ResourceBlocking) > 0 {
		tab.router = applyResourceBlocking(page, cfg.ResourceBlocking)
	}

	navCtx, cancel := context.WithTimeout(ctx, navigateTimeout)
	defer cancel()

	if err := page.Context(navCtx).Navigate(pageURL); err != nil {
		tab.Close()
		return nil, fmt.Errorf("browser: navigate %s: %w", pageURL, err)
	}
	if err := page.Context(navCtx).WaitLoad(); err != nil {
		cfg.Logger.Warn("browser: wait load timeout", "url", pageURL, "error", err)
	}

	cfg.Logger.Info("browser: tab opened", "url", pageURL)
	return tab, nil
}

// Close stops request interception and closes the tab.
func (t *Tab) Close() error {
	if t.router != nil {
		t.router.Stop()
		t.router = nil
	}
	if t.Page != nil {
		return t.Page.Close()
	}
	return nil
}

package deepseek

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/dsguard/completion"
	"github.com/hazyhaar/dsguard/crazyretry"
	"github.com/hazyhaar/dsguard/fingerprint"
)

// toastPoll is the toast capture polling interval.
const toastPoll = 100 * time.Millisecond

// Session reads and acts on one DeepSeek chat page.
type Session struct {
	mu     sync.RWMutex
	page   *rod.Page
	sel    Selectors
	logger *slog.Logger
}

// NewSession binds a Session to page.
func NewSession(page *rod.Page, sel Selectors, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}
	return &Session{page: page, sel: sel.WithDefaults(), logger: logger}
}

// SetPage rebinds the session to a new tab, after a browser recycle.
func (s *Session) SetPage(page *rod.Page) {
	s.mu.Lock()
	s.page = page
	s.mu.Unlock()
}

// Page returns the bound tab.
func (s *Session) Page() *rod.Page {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.page
}

// query returns a page handle whose element lookups fail fast instead of
// waiting for the selector to appear.
func (s *Session) query(ctx context.Context) *rod.Page {
	return s.Page().Context(ctx).Sleeper(rod.NotFoundSleeper)
}

// LastAnswer finds the newest answer: the container of the last regenerate
// button on the page.
func (s *Session) LastAnswer(ctx context.Context) (crazyretry.Answer, error) {
	btn, err := lastRefreshButton(s.query(ctx).Elements, s.sel)
	if err != nil || btn == nil {
		return nil, err
	}

	el := btn
	for i := 0; i < s.sel.AnswerDepth; i++ {
		el, err = el.Parent()
		if err != nil {
			if notFound(err) {
				return nil, nil
			}
			return nil, fmt.Errorf("deepseek: answer container: %w", err)
		}
	}
	return &Answer{el: el, sel: s.sel}, nil
}

// CaptureToast polls for the host's toast until timeout.
func (s *Session) CaptureToast(ctx context.Context, timeout time.Duration) (crazyretry.Toast, error) {
	deadline := time.Now().Add(timeout)
	for {
		els, err := s.query(ctx).Elements(s.sel.Toast)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("deepseek: toast lookup: %w", err)
		}
		if len(els) > 0 {
			if text, ok := s.readToast(els[0].Eval(`() => this.parentElement ? (this.textContent || "").trim() : null`)); ok {
				return Toast{text: text}, nil
			}
		}
		if !time.Now().Before(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(toastPoll):
		}
	}
}

// turnJS summarises the last turn in one round trip.
const turnJS = `(mdSel, btnSel, iconSel, thinkSel, depth, busy) => {
	const blocks = document.querySelectorAll(mdSel);
	if (blocks.length === 0) return null;
	const last = blocks[blocks.length - 1];
	let finished = false;
	const btns = document.querySelectorAll(btnSel);
	for (let i = btns.length - 1; i >= 0; i--) {
		if (!btns[i].querySelector(iconSel)) continue;
		let answer = btns[i];
		for (let d = 0; d < depth && answer; d++) answer = answer.parentElement;
		finished = !!answer && answer.contains(last);
		break;
	}
	const text = (last.textContent || "").trim();
	const thinking = !finished && (thinkSel === "" || !!document.querySelector(thinkSel));
	return JSON.stringify({
		count: blocks.length,
		thinking: thinking,
		finished: finished,
		busy: busy.includes(text),
		html: last.innerHTML,
	});
}`

type turnResult struct {
	Count    int    `json:"count"`
	Thinking bool   `json:"thinking"`
	Finished bool   `json:"finished"`
	Busy     bool   `json:"busy"`
	HTML     string `json:"html"`
}

// LastTurn implements completion.TurnSource. A finished answer showing the
// busy phrase is neither thinking nor done.
func (s *Session) LastTurn(ctx context.Context) (*completion.Turn, error) {
	res, err := s.Page().Context(ctx).Eval(turnJS,
		s.sel.Markdown, s.sel.RefreshButton, s.sel.RefreshIcon, s.sel.Thinking,
		s.sel.AnswerDepth, []string{BusyZH, BusyEN})
	if err != nil {
		return nil, fmt.Errorf("deepseek: last turn: %w", err)
	}
	raw, ok := stringResult(res)
	if !ok {
		return nil, nil
	}
	return decodeTurn(raw)
}

func decodeTurn(raw string) (*completion.Turn, error) {
	var tr turnResult
	if err := json.Unmarshal([]byte(raw), &tr); err != nil {
		return nil, fmt.Errorf("deepseek: decode turn: %w", err)
	}
	return &completion.Turn{
		ID:       strconv.Itoa(tr.Count),
		Thinking: tr.Thinking,
		Done:     tr.Finished && !tr.Busy,
		HTML:     tr.HTML,
	}, nil
}

// Answer is one answer container.
type Answer struct {
	el  *rod.Element
	sel Selectors
}

// Busy reports whether the answer's first markdown block is a busy phrase.
func (a *Answer) Busy(ctx context.Context) (bool, error) {
	blocks, err := a.el.Context(ctx).Elements(a.sel.Markdown)
	if err != nil {
		return false, fmt.Errorf("deepseek: markdown lookup: %w", err)
	}
	if len(blocks) == 0 {
		return false, nil
	}
	res, err := blocks[0].Context(ctx).Eval(`() => (this.textContent || "").trim()`)
	if err != nil {
		return false, fmt.Errorf("deepseek: read answer: %w", err)
	}
	text, _ := stringResult(res)
	return IsBusyText(text), nil
}

// Regenerate clicks the last regenerate button inside the answer.
func (a *Answer) Regenerate(ctx context.Context) (bool, error) {
	btn, err := lastRefreshButton(a.el.Context(ctx).Elements, a.sel)
	if err != nil || btn == nil {
		return false, err
	}
	if _, err := btn.Context(ctx).Eval(`() => this.click()`); err != nil {
		return false, fmt.Errorf("deepseek: click regenerate: %w", err)
	}
	return true, nil
}

// Fingerprint hashes the answer's outer HTML while it is still attached.
func (a *Answer) Fingerprint(ctx context.Context) (string, error) {
	res, err := a.el.Context(ctx).Eval(`() => this.isConnected ? this.outerHTML : null`)
	if err != nil {
		return fingerprint.None, fmt.Errorf("deepseek: outer HTML: %w", err)
	}
	html, ok := stringResult(res)
	if !ok {
		return fingerprint.None, fingerprint.ErrDetached
	}
	return fingerprint.FromHTML(html)
}

// Toast is a captured host toast.
type Toast struct {
	text string
}

// Text returns the toast's trimmed text.
func (t Toast) Text() string { return t.text }

// TooFast reports whether the toast is the host's rate-limit message.
func (t Toast) TooFast() bool { return IsTooFastText(t.text) }

// lastRefreshButton walks the buttons from last to first and returns the
// first carrying the regenerate icon, or nil.
func lastRefreshButton(find func(string) (rod.Elements, error), sel Selectors) (*rod.Element, error) {
	btns, err := find(sel.RefreshButton)
	if err != nil {
		return nil, fmt.Errorf("deepseek: button lookup: %w", err)
	}
	for i := len(btns) - 1; i >= 0; i-- {
		has, _, err := btns[i].Has(sel.RefreshIcon)
		if err != nil {
			return nil, fmt.Errorf("deepseek: icon lookup: %w", err)
		}
		if has {
			return btns[i], nil
		}
	}
	return nil, nil
}

// stringResult extracts a string from an eval result; ok is false for null
// or undefined.
// readToast extracts the toast text from an Eval result. A failed read is
// logged and treated as no toast; the capture loop tries again.
func (s *Session) readToast(res *proto.RuntimeRemoteObject, err error) (string, bool) {
	if err != nil {
		s.logger.Debug("deepseek: read toast failed", "error", err)
		return "", false
	}
	text, ok := stringResult(res)
	if ok {
		s.logger.Debug("deepseek: toast", "text", text)
	}
	return text, ok
}

func stringResult(res *proto.RuntimeRemoteObject) (string, bool) {
	if res == nil || res.Value.Nil() {
		return "", false
	}
	return strings.TrimSpace(res.Value.Str()), true
}

func notFound(err error) bool {
	var nf *rod.ElementNotFoundError
	return errors.As(err, &nf)
}

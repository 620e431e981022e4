package regenwatch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hazyhaar/dsguard/completion"
	"github.com/hazyhaar/dsguard/crazyretry"
	"github.com/hazyhaar/dsguard/event"
	"github.com/hazyhaar/dsguard/regenwatch/internal/config"
	"github.com/hazyhaar/dsguard/regenwatch/internal/sink"
)

// quickClock waits a millisecond whatever the delay asked.
type quickClock struct{}

func (quickClock) Now() time.Time { return time.Now() }

func (quickClock) Sleep(ctx context.Context, _ time.Duration) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(time.Millisecond):
		return nil
	}
}

type stubAnswer struct {
	mu     sync.Mutex
	busy   bool
	clicks int
}

func (a *stubAnswer) Busy(context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.busy, nil
}

func (a *stubAnswer) Regenerate(context.Context) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.clicks++
	a.busy = false
	return true, nil
}

func (a *stubAnswer) Fingerprint(context.Context) (string, error) { return "fp-1", nil }

// stubPage shows one busy answer that recovers after a click, and a turn
// that finishes once regenerated.
type stubPage struct {
	ans   *stubAnswer
	mu    sync.Mutex
	polls int
}

func (p *stubPage) LastAnswer(context.Context) (crazyretry.Answer, error) { return p.ans, nil }

func (p *stubPage) CaptureToast(context.Context, time.Duration) (crazyretry.Toast, error) {
	return nil, nil
}

func (p *stubPage) LastTurn(context.Context) (*completion.Turn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.polls++
	if p.polls < 3 {
		return &completion.Turn{ID: "1", Thinking: true}, nil
	}
	return &completion.Turn{ID: "1", Done: true, HTML: "<p>fine now</p>"}, nil
}

type collector struct {
	mu     sync.Mutex
	events []event.Event
}

func (c *collector) send(_ context.Context, ev event.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	return nil
}

func (c *collector) kinds() map[event.Kind]int {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make(map[event.Kind]int)
	for _, ev := range c.events {
		out[ev.Kind]++
	}
	return out
}

func testWatcher(t *testing.T, cfg *config.Config) *Watcher {
	t.Helper()
	w := New(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	w.clock = quickClock{}
	return w
}

func TestGuard_RetriesAndAnnounces(t *testing.T) {
	cfg := config.Default()
	cfg.Completion.PollInterval = time.Millisecond
	w := testWatcher(t, cfg)

	page := &stubPage{ans: &stubAnswer{busy: true}}
	col := &collector{}
	ctx, cancel := context.WithTimeout(context.Background(), 300*time.Millisecond)
	defer cancel()

	if err := w.guard(ctx, page, []sink.Sink{sink.NewCallback(col.send)}); err != nil {
		t.Fatalf("guard: %v", err)
	}

	kinds := col.kinds()
	if kinds[event.KindRetrying] != 1 {
		t.Errorf("retrying events: got %d, want 1", kinds[event.KindRetrying])
	}
	if kinds[event.KindAnswerReady] != 1 {
		t.Errorf("answer_ready events: got %d, want 1", kinds[event.KindAnswerReady])
	}
	if page.ans.clicks != 1 {
		t.Errorf("clicks: got %d, want 1", page.ans.clicks)
	}

	st, ok := w.Status()
	if !ok || st.State != crazyretry.StateStopped {
		t.Errorf("status: got %+v %v, want stopped", st, ok)
	}
	if st.Retries != 1 {
		t.Errorf("retries: got %d, want 1", st.Retries)
	}
	last, ok := w.LastAnswer()
	if !ok || last.Markdown != "fine now" {
		t.Errorf("last answer: got %+v %v", last, ok)
	}

	col.mu.Lock()
	defer col.mu.Unlock()
	for _, ev := range col.events {
		if ev.PageURL != config.DefaultURL {
			t.Errorf("%s: PageURL %q, want %q", ev.Kind, ev.PageURL, config.DefaultURL)
		}
	}
}

func TestStep_FailingWebhookDoesNotStall(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router, queues := newDelivery(logger, config.DefaultURL, []sink.Sink{sink.NewWebhook(srv.URL, sink.WithWebhookLogger(logger))})
	defer router.Close()

	ans := &stubAnswer{busy: true}
	orch, err := crazyretry.New(crazyretry.Config{
		Session:  &stubPage{ans: ans},
		Notifier: router,
		Clock:    quickClock{},
		Logger:   logger,
	})
	if err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	if err := orch.Step(context.Background()); err != nil {
		t.Fatal(err)
	}
	if elapsed := time.Since(start); elapsed > 500*time.Millisecond {
		t.Errorf("step: took %v, want well under the webhook backoff", elapsed)
	}
	if ans.clicks != 1 {
		t.Errorf("clicks: got %d, want 1", ans.clicks)
	}
	if got := queues[0].Len(); got != 1 {
		t.Errorf("queued events: got %d, want 1", got)
	}
	if got := hits.Load(); got != 0 {
		t.Errorf("webhook hits before delivery runs: got %d, want 0", got)
	}
}

func TestGuard_CompletionDisabled(t *testing.T) {
	cfg := config.Default()
	off := false
	cfg.Completion.Enabled = &off
	w := testWatcher(t, cfg)

	page := &stubPage{ans: &stubAnswer{}}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := w.guard(ctx, page, nil); err != nil {
		t.Fatalf("guard: %v", err)
	}
	if _, ok := w.LastAnswer(); ok {
		t.Error("no monitor, no answer expected")
	}
	if page.polls != 0 {
		t.Errorf("turn polls: got %d, want 0", page.polls)
	}
}

func TestGuard_StatusListenError(t *testing.T) {
	cfg := config.Default()
	cfg.Status.Addr = "127.0.0.1:99999"
	w := testWatcher(t, cfg)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := w.guard(ctx, &stubPage{ans: &stubAnswer{}}, nil)
	if err == nil || errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected listen error, got %v", err)
	}
}

func TestRun_NoPage(t *testing.T) {
	cfg := config.Default()
	cfg.Page.URL = ""
	if err := New(cfg, nil).Run(context.Background()); !errors.Is(err, ErrNoPage) {
		t.Errorf("got %v, want ErrNoPage", err)
	}
}

func TestBuildSinks(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	sinks, err := buildSinks([]config.SinkConfig{
		{Type: "stdout"},
		{Type: "webhook", URL: "http://localhost:1/hook"},
		{Type: "page"},
	}, nil, logger)
	if err != nil {
		t.Fatal(err)
	}
	if len(sinks) != 2 {
		t.Errorf("sinks: got %d, want 2 (page skipped without a session)", len(sinks))
	}

	if _, err := buildSinks([]config.SinkConfig{{Type: "nats"}}, nil, logger); err == nil {
		t.Error("expected unknown sink error")
	}
}

func TestSelectors_Defaults(t *testing.T) {
	s := selectors(config.SelectorsConfig{Thinking: ".thinking"})
	if s.RefreshButton != ".ds-icon-button" || s.Thinking != ".thinking" || s.AnswerDepth != 3 {
		t.Errorf("got %+v", s)
	}
}

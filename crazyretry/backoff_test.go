package crazyretry

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"
	"time"
)

func TestBackoff_Growth(t *testing.T) {
	b := NewBackoff(BaseDelay, MaxDelay, BackoffFactor)
	if b.Current() != time.Second {
		t.Fatalf("initial: got %v, want 1s", b.Current())
	}

	want := []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second, 16 * time.Second}
	for i, w := range want {
		if got := b.Advance(); got != w {
			t.Errorf("Advance #%d: got %v, want %v", i+1, got, w)
		}
	}

	b.Advance() // 32s
	b.Advance() // 64s
	if b.Current() != 64*time.Second {
		t.Fatalf("cap: got %v, want 64s", b.Current())
	}
	for i := 0; i < 5; i++ {
		if got := b.Advance(); got != MaxDelay {
			t.Errorf("Advance at max: got %v, want %v", got, MaxDelay)
		}
	}
	if !b.AtMax() {
		t.Error("AtMax: got false")
	}
}

func TestBackoff_Reset(t *testing.T) {
	b := NewBackoff(BaseDelay, MaxDelay, BackoffFactor)
	b.Advance()
	b.Advance()
	b.Advance()
	if got := b.Reset(); got != 1000*time.Millisecond {
		t.Errorf("Reset: got %v, want 1000ms", got)
	}
}

func TestBackoff_ForceMax(t *testing.T) {
	b := NewBackoff(BaseDelay, MaxDelay, BackoffFactor)
	if got := b.ForceMax(); got != MaxDelay {
		t.Errorf("ForceMax: got %v, want %v", got, MaxDelay)
	}
	if got := b.Reset(); got != BaseDelay {
		t.Errorf("Reset after ForceMax: got %v, want %v", got, BaseDelay)
	}
}

func TestBackoff_NonPowerOfTwoMax(t *testing.T) {
	b := NewBackoff(time.Second, 5*time.Second, 2)
	b.Advance() // 2s
	b.Advance() // 4s
	if got := b.Advance(); got != 5*time.Second {
		t.Errorf("Advance over cap: got %v, want 5s", got)
	}
}

func TestVerifier(t *testing.T) {
	v := NewVerifier(BackoffFactor)

	if _, ok := v.Observe(time.Second, time.Second); ok {
		t.Fatal("first sample: got ok")
	}

	// Ladder unchanged: nothing to check.
	got, ok := v.Observe(time.Second, 1010*time.Millisecond)
	if !ok || got.Checked {
		t.Fatalf("flat ladder: ok=%v checked=%v, want ok and unchecked", ok, got.Checked)
	}

	// Ladder doubled and the real sleeps followed.
	got, _ = v.Observe(2*time.Second, 2020*time.Millisecond)
	if !got.Checked || got.Deviates {
		t.Errorf("doubled: checked=%v deviates=%v ratio=%.2f", got.Checked, got.Deviates, got.Ratio)
	}

	// Ladder doubled but the sleep overshot.
	got, _ = v.Observe(4*time.Second, 5*time.Second)
	if !got.Checked || !got.Deviates {
		t.Errorf("overshoot: checked=%v deviates=%v ratio=%.2f", got.Checked, got.Deviates, got.Ratio)
	}
}

func TestVerifier_HistoryBounded(t *testing.T) {
	v := NewVerifier(BackoffFactor)
	for i := 0; i < 25; i++ {
		v.Observe(time.Second, time.Second)
	}
	if v.Len() != verifyHistory {
		t.Errorf("Len: got %d, want %d", v.Len(), verifyHistory)
	}
}

func TestStep_LogsRatioOfEveryPair(t *testing.T) {
	var buf bytes.Buffer
	sess := &fakeSession{}
	o, err := New(Config{
		Session: sess,
		Clock:   newFakeClock(),
		Logger:  slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})),
	})
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 3; i++ {
		if err := o.Step(context.Background()); err != nil {
			t.Fatal(err)
		}
	}

	logs := buf.String()
	if got := strings.Count(logs, "crazyretry: sleep ratio"); got != 2 {
		t.Errorf("ratio lines: got %d, want 2\n%s", got, logs)
	}
	if !strings.Contains(logs, "ratio=1.00") || !strings.Contains(logs, "ladder_step=false") {
		t.Errorf("ratio line lacks values:\n%s", logs)
	}
	if strings.Contains(logs, "backoff factor deviates") {
		t.Errorf("steady polling must not warn:\n%s", logs)
	}
}

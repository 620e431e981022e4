package crazyretry

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/hazyhaar/dsguard/event"
)

// Orchestrator polls the last answer and regenerates it while the host
// reports it busy. Create one per page with New and call Run once.
type Orchestrator struct {
	cfg      Config
	session  Session
	toasts   ToastSource
	notifier Notifier
	clock    Clock
	logger   *slog.Logger

	ledger   *Ledger
	backoff  *Backoff
	verifier *Verifier
	lastFP   string

	iterations  uint64
	retries     uint64
	lastOutcome string

	status atomic.Pointer[Status]
}

// New creates an Orchestrator. cfg.Session is required.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Session == nil {
		return nil, errors.New("crazyretry: session is required")
	}
	cfg.defaults()

	o := &Orchestrator{
		cfg:      cfg,
		session:  cfg.Session,
		toasts:   cfg.Toasts,
		notifier: cfg.Notifier,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		ledger:   NewLedger(cfg.RetryLimit),
		backoff:  NewBackoff(cfg.BaseDelay, cfg.MaxDelay, BackoffFactor),
		verifier: NewVerifier(BackoffFactor),
	}
	o.publish(StateStarting, time.Time{})
	return o, nil
}

// Run loops until ctx is done and returns ctx's error. Failures inside an
// iteration are logged and folded into the backoff; they never end the loop.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("crazyretry: started",
		"base_delay", o.cfg.BaseDelay,
		"max_delay", o.cfg.MaxDelay,
		"retry_limit", o.ledger.Limit())

	for {
		if err := o.Step(ctx); err != nil {
			o.publish(StateStopped, time.Time{})
			o.logger.Info("crazyretry: stopped", "reason", err)
			return err
		}
	}
}

// Step runs one iteration: sleep for the current delay, then probe and act.
// It returns an error only when ctx is done.
func (o *Orchestrator) Step(ctx context.Context) error {
	delay := o.backoff.Current()
	o.logger.Debug("crazyretry: waiting", "delay", delay)

	start := o.clock.Now()
	if err := o.clock.Sleep(ctx, delay); err != nil {
		return err
	}
	o.verify(delay, o.clock.Now().Sub(start))
	o.iterations++

	state, err := o.iterate(ctx)
	if err != nil {
		return err
	}
	o.publish(state, time.Time{})
	return nil
}

// Status returns the state published by the last iteration. Safe for
// concurrent use.
func (o *Orchestrator) Status() Status {
	return *o.status.Load()
}

func (o *Orchestrator) iterate(ctx context.Context) (state State, err error) {
	fp := ""
	defer func() {
		if r := recover(); r != nil {
			state, err = o.fail(fmt.Errorf("crazyretry: panic: %v", r), fp), nil
		}
	}()

	ans, err := o.session.LastAnswer(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return o.fail(fmt.Errorf("crazyretry: find answer: %w", err), ""), nil
	}
	if ans == nil {
		o.logger.Debug("crazyretry: no answer, keeping backoff", "delay", o.backoff.Current())
		return StateNoAnswer, nil
	}

	fp = o.fingerprint(ctx, ans)
	if fp != "" && fp != o.lastFP {
		if o.ledger.ForgetIfDifferent(o.lastFP, fp) {
			o.logger.Debug("crazyretry: forgot superseded answer", "fingerprint", short(o.lastFP))
		}
		o.lastFP = fp
	}

	if fp != "" && o.ledger.OverLimit(fp) {
		o.overLimit(ctx, fp)
		return StateOverLimit, nil
	}

	busy, err := ans.Busy(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return o.fail(fmt.Errorf("crazyretry: busy check: %w", err), fp), nil
	}
	if !busy {
		o.logger.Debug("crazyretry: answer not busy, keeping backoff", "delay", o.backoff.Current())
		return StateNotBusy, nil
	}

	o.retries++
	o.logger.Info("crazyretry: server busy, regenerating",
		"attempt", o.ledger.Count(fp)+1,
		"limit", o.ledger.Limit(),
		"fingerprint", short(fp))
	o.notify(ctx, event.KindRetrying, "Answer failed, regenerating the response...", 3*time.Second)

	out := o.attempt(ctx, ans)
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return o.settle(ctx, fp, out)
}

// settle applies an attempt's outcome to the ledger and the backoff.
func (o *Orchestrator) settle(ctx context.Context, fp string, out Outcome) (State, error) {
	o.lastOutcome = out.String()

	switch out.Kind {
	case Success:
		o.logger.Info("crazyretry: regenerate succeeded", "fingerprint", short(fp))
		o.reset()
		return StateRetried, nil

	case StillBusy:
		n := o.ledger.Increment(fp)
		o.logger.Warn("crazyretry: server still busy",
			"fingerprint", short(fp),
			"attempts", n,
			"limit", o.ledger.Limit())
		o.advance()
		return StateStillBusy, nil

	case RateLimited:
		// Host throttling is not charged to the answer.
		if err := o.cooldown(ctx); err != nil {
			return "", err
		}
		return StateCooldown, nil

	case Unknown:
		return o.fail(out.Err, fp), nil
	}
	return o.fail(fmt.Errorf("crazyretry: unhandled outcome %v", out.Kind), fp), nil
}

func (o *Orchestrator) fingerprint(ctx context.Context, ans Answer) string {
	fp, err := ans.Fingerprint(ctx)
	if err != nil {
		o.logger.Debug("crazyretry: no fingerprint", "error", err)
		return ""
	}
	return fp
}

func (o *Orchestrator) overLimit(ctx context.Context, fp string) {
	o.logger.Warn("crazyretry: retry limit reached",
		"fingerprint", short(fp),
		"limit", o.ledger.Limit())
	o.notify(ctx, event.KindRetryLimit, "This answer reached the retry limit, please refresh manually", 5*time.Second)
	prev := o.backoff.Current()
	o.backoff.ForceMax()
	o.logBackoff("forced to max", prev)
}

// fail charges an unclassified failure to fp (when known) and advances the
// backoff.
func (o *Orchestrator) fail(err error, fp string) State {
	o.lastOutcome = unknown(err).String()
	n := o.ledger.Increment(fp)
	o.logger.Error("crazyretry: retry error",
		"error", err,
		"fingerprint", short(fp),
		"attempts", n)
	o.advance()
	return StateError
}

func (o *Orchestrator) advance() {
	prev := o.backoff.Current()
	o.backoff.Advance()
	o.logBackoff("advanced", prev)
}

func (o *Orchestrator) reset() {
	prev := o.backoff.Current()
	o.backoff.Reset()
	o.logBackoff("reset", prev)
}

func (o *Orchestrator) logBackoff(what string, prev time.Duration) {
	o.logger.Debug("crazyretry: backoff "+what, "from", prev, "to", o.backoff.Current())
}

// verify logs the ratio of every consecutive pair of real poll sleeps and
// warns when a pair taken across a ladder step deviates from the factor.
func (o *Orchestrator) verify(scheduled, actual time.Duration) {
	v, ok := o.verifier.Observe(scheduled, actual)
	if !ok {
		return
	}
	ratio := fmt.Sprintf("%.2f", v.Ratio)
	o.logger.Debug("crazyretry: sleep ratio",
		"previous", v.Previous,
		"last", v.Last,
		"ratio", ratio,
		"expected", o.backoff.Factor(),
		"ladder_step", v.Checked)
	if v.Checked && v.Deviates {
		o.logger.Warn("crazyretry: backoff factor deviates",
			"ratio", ratio,
			"expected", o.backoff.Factor(),
			"delay", o.backoff.Current())
	}
}

func (o *Orchestrator) notify(ctx context.Context, kind event.Kind, msg string, d time.Duration) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Send(ctx, event.New(kind, msg, d)); err != nil {
		o.logger.Warn("crazyretry: notify failed", "kind", kind, "error", err)
	}
}

func (o *Orchestrator) publish(state State, cooldownUntil time.Time) {
	o.status.Store(&Status{
		State:         state,
		Delay:         o.backoff.Current(),
		Fingerprint:   o.lastFP,
		Attempts:      o.ledger.Count(o.lastFP),
		Limit:         o.ledger.Limit(),
		Iterations:    o.iterations,
		Retries:       o.retries,
		LastOutcome:   o.lastOutcome,
		CooldownUntil: cooldownUntil,
		UpdatedAt:     o.clock.Now(),
	})
}

func short(fp string) string {
	if len(fp) > 6 {
		return fp[:6] + "..."
	}
	return fp
}

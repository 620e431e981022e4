package crazyretry

import (
	"context"
	"fmt"
	"time"

	"github.com/hazyhaar/dsguard/event"
)

// attempt clicks regenerate on a busy answer and classifies what followed.
func (o *Orchestrator) attempt(ctx context.Context, ans Answer) Outcome {
	clicked, err := ans.Regenerate(ctx)
	if err != nil {
		return unknown(fmt.Errorf("crazyretry: regenerate: %w", err))
	}
	if !clicked {
		o.logger.Warn("crazyretry: regenerate control not found")
	}

	if o.toasts != nil {
		toast, err := o.toasts.CaptureToast(ctx, o.cfg.ToastTimeout)
		if err != nil {
			return unknown(fmt.Errorf("crazyretry: capture toast: %w", err))
		}
		if toast != nil {
			if toast.TooFast() {
				return Outcome{Kind: RateLimited}
			}
			o.logger.Debug("crazyretry: ignoring toast", "text", toast.Text())
		}
	}

	if err := o.clock.Sleep(ctx, o.cfg.SettleDelay); err != nil {
		return unknown(err)
	}

	cur, err := o.session.LastAnswer(ctx)
	if err != nil {
		return unknown(fmt.Errorf("crazyretry: re-probe: %w", err))
	}
	if cur == nil {
		return Outcome{Kind: StillBusy}
	}
	busy, err := cur.Busy(ctx)
	if err != nil {
		return unknown(fmt.Errorf("crazyretry: re-probe busy check: %w", err))
	}
	if busy {
		return Outcome{Kind: StillBusy}
	}
	return Outcome{Kind: Success}
}

// cooldown pauses for the fixed rate-limit penalty, then resets the ladder.
func (o *Orchestrator) cooldown(ctx context.Context) error {
	until := o.clock.Now().Add(Cooldown)
	mins := int(Cooldown / time.Minute)
	o.logger.Warn("crazyretry: host rate limit hit, cooling down",
		"duration", Cooldown,
		"until", until)
	o.notify(ctx, event.KindCooldown,
		fmt.Sprintf("Regenerating too fast: the host throttled this account. Auto-retry paused, trying again in %d minutes.", mins),
		Cooldown)
	o.publish(StateCooldown, until)

	if err := o.clock.Sleep(ctx, Cooldown); err != nil {
		return err
	}
	o.reset()
	o.logger.Info("crazyretry: cool-down over, resuming")
	return nil
}

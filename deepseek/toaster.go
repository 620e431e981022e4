package deepseek

import (
	"context"
	"fmt"
	"time"

	"github.com/hazyhaar/dsguard/event"
)

// defaultToastDuration applies to events without a duration.
const defaultToastDuration = 3 * time.Second

// toastJS renders a notice at the top centre of the page and fades it out
// after ms milliseconds. The stylesheet is injected once per document.
const toastJS = `(text, ms) => {
	if (!document.getElementById("dsguard-toast-style")) {
		const style = document.createElement("style");
		style.id = "dsguard-toast-style";
		style.textContent = ` + "`" + `
			.dsguard-toast {
				position: fixed; top: 20px; left: 50%; transform: translateX(-50%);
				background: #4CAF50; color: white; padding: 15px 25px;
				border-radius: 25px; box-shadow: 0 3px 6px rgba(0,0,0,0.16);
				opacity: 0; animation: dsguardIn 0.3s forwards; z-index: 1000;
			}
			.dsguard-toast.out { animation: dsguardOut 0.3s forwards !important; }
			@keyframes dsguardIn { to { opacity: 1; } }
			@keyframes dsguardOut { from { opacity: 1; } to { opacity: 0; } }
		` + "`" + `;
		document.head.appendChild(style);
	}
	const tip = document.createElement("div");
	tip.className = "dsguard-toast";
	tip.textContent = text;
	document.body.appendChild(tip);
	setTimeout(() => {
		tip.classList.add("out");
		tip.addEventListener("animationend", () => tip.remove(), { once: true });
	}, ms);
}`

// PageToaster shows events as toasts inside the chat page.
type PageToaster struct {
	session *Session
}

// NewPageToaster renders into the session's current tab.
func NewPageToaster(s *Session) *PageToaster {
	return &PageToaster{session: s}
}

// Send shows ev's title and message for ev.Duration.
func (p *PageToaster) Send(ctx context.Context, ev event.Event) error {
	d := ev.Duration
	if d <= 0 {
		d = defaultToastDuration
	}
	if _, err := p.session.Page().Context(ctx).Eval(toastJS, toastText(ev), d.Milliseconds()); err != nil {
		return fmt.Errorf("deepseek: page toast: %w", err)
	}
	return nil
}

// Close is a no-op; the tab belongs to the browser manager.
func (p *PageToaster) Close() error { return nil }

func toastText(ev event.Event) string {
	switch {
	case ev.Title == "":
		return ev.Message
	case ev.Message == "":
		return ev.Title
	default:
		return ev.Title + ": " + ev.Message
	}
}

// Package deepseek drives the DeepSeek chat page through go-rod. It
// implements the answer, toast and turn probes consumed by crazyretry and
// completion.
package deepseek

const (
	// BusyZH and BusyEN are the host's canned "server busy" answers.
	BusyZH = "服务器繁忙，请稍后再试。"
	BusyEN = "The server is busy. Please try again later."

	// TooFastZH is the toast shown when regenerate is clicked too often.
	TooFastZH = "你发送消息的频率过快，请稍后再发"
)

// Selectors locate the parts of the chat UI. Zero fields take the defaults.
type Selectors struct {
	RefreshButton string // icon buttons under an answer
	RefreshIcon   string // child marking the regenerate button
	Markdown      string // rendered answer body
	Toast         string // toast content node
	Thinking      string // present while the model reasons; empty: any unfinished answer counts
	// AnswerDepth is how many parents up from the regenerate button the
	// answer container sits.
	AnswerDepth int
}

// DefaultSelectors matches the current DeepSeek web UI.
func DefaultSelectors() Selectors {
	return Selectors{
		RefreshButton: ".ds-icon-button",
		RefreshIcon:   "#重新生成",
		Markdown:      ".ds-markdown",
		Toast:         ".ds-toast__content",
		AnswerDepth:   3,
	}
}

// WithDefaults fills empty fields from DefaultSelectors.
func (s Selectors) WithDefaults() Selectors {
	d := DefaultSelectors()
	if s.RefreshButton == "" {
		s.RefreshButton = d.RefreshButton
	}
	if s.RefreshIcon == "" {
		s.RefreshIcon = d.RefreshIcon
	}
	if s.Markdown == "" {
		s.Markdown = d.Markdown
	}
	if s.Toast == "" {
		s.Toast = d.Toast
	}
	if s.AnswerDepth <= 0 {
		s.AnswerDepth = d.AnswerDepth
	}
	return s
}

// IsBusyText reports whether an answer's trimmed text is a busy phrase.
func IsBusyText(text string) bool {
	return text == BusyZH || text == BusyEN
}

// IsTooFastText reports whether a toast's trimmed text is the rate-limit phrase.
func IsTooFastText(text string) bool {
	return text == TooFastZH
}

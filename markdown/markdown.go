// Package markdown turns a finished chat answer (HTML) into Markdown.
//
// The HTML is first reduced to a small allow-list of structural tags, so
// styling wrappers, buttons and scripts of the chat UI never reach the
// converter.
package markdown

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"
	"github.com/microcosm-cc/bluemonday"
)

var (
	blankRuns  = regexp.MustCompile(`\n{3,}`)
	emptyLinks = regexp.MustCompile(`\[([^\]]+)\]\(\s*\)`)
)

// Converter sanitises and converts answer HTML. Safe for concurrent use.
type Converter struct {
	policy *bluemonday.Policy
	md     *converter.Converter
}

// New creates a Converter with the answer allow-list.
func New() *Converter {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"h1", "h2", "h3", "h4", "h5", "h6",
		"blockquote", "code", "pre", "em", "strong",
		"ul", "ol", "li", "p", "table", "thead",
		"tbody", "tr", "th", "td", "a", "img",
	)
	p.AllowStandardURLs()
	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowAttrs("src", "alt").OnElements("img")
	return &Converter{
		policy: p,
		md: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
				table.NewTablePlugin(),
			),
		),
	}
}

// Sanitize applies the allow-list.
func (c *Converter) Sanitize(html string) string {
	return c.policy.Sanitize(html)
}

// Convert sanitises html and returns tidy Markdown.
func (c *Converter) Convert(html string) (string, error) {
	return c.ConvertFrom(html, "")
}

// ConvertFrom is Convert with relative links resolved against pageURL.
func (c *Converter) ConvertFrom(html, pageURL string) (string, error) {
	var opts []converter.ConvertOptionFunc
	if pageURL != "" {
		opts = append(opts, converter.WithDomain(pageURL))
	}
	md, err := c.md.ConvertString(c.Sanitize(html), opts...)
	if err != nil {
		return "", fmt.Errorf("markdown: convert: %w", err)
	}
	return Tidy(md), nil
}

// Tidy collapses runs of blank lines and unwraps links without a target.
func Tidy(md string) string {
	md = blankRuns.ReplaceAllString(md, "\n\n")
	md = emptyLinks.ReplaceAllString(md, "$1")
	return strings.TrimSpace(md)
}

// Summarize strips control characters and cuts s to n runes, marking the cut
// with "...". Used for notification bodies.
func Summarize(s string, n int) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, s)
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n]) + "..."
}

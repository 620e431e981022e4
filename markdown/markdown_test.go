package markdown

import (
	"strings"
	"testing"
)

func TestConvert(t *testing.T) {
	c := New()
	in := `<div class="ds-markdown" style="font-size:14px">
		<h1>Title</h1>
		<p>Hello <strong>world</strong></p>
		<ul><li>one</li><li>two</li></ul>
		<script>alert(1)</script>
		<button>Copy</button>
	</div>`

	got, err := c.Convert(in)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"# Title", "**world**", "one", "two"} {
		if !strings.Contains(got, want) {
			t.Errorf("Convert: %q lacks %q", got, want)
		}
	}
	if strings.Contains(got, "alert") {
		t.Errorf("Convert: script content leaked: %q", got)
	}
	if strings.Contains(got, "ds-markdown") || strings.Contains(got, "font-size") {
		t.Errorf("Convert: attributes leaked: %q", got)
	}
}

func TestSanitize_DropsStyleAndClass(t *testing.T) {
	got := New().Sanitize(`<p class="x" style="color:red">hi <a href="https://example.com" onclick="x()">link</a></p>`)
	if strings.Contains(got, "class") || strings.Contains(got, "style") || strings.Contains(got, "onclick") {
		t.Errorf("Sanitize: got %q", got)
	}
	if !strings.Contains(got, `href="https://example.com"`) {
		t.Errorf("Sanitize: lost href: %q", got)
	}
}

func TestTidy(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"a\n\n\n\nb", "a\n\nb"},
		{"see [label]()", "see label"},
		{"see [label]( )", "see label"},
		{"keep [label](https://x.y)", "keep [label](https://x.y)"},
		{"\n\ntext\n\n", "text"},
	}
	for _, c := range cases {
		if got := Tidy(c.in); got != c.want {
			t.Errorf("Tidy(%q): got %q, want %q", c.in, got, c.want)
		}
	}
}

func TestSummarize(t *testing.T) {
	if got := Summarize("line1\nline2\ttab", 100); got != "line1line2tab" {
		t.Errorf("control chars: got %q", got)
	}

	long := strings.Repeat("深", 150)
	got := Summarize(long, 100)
	if got != strings.Repeat("深", 100)+"..." {
		t.Errorf("long: got %d runes", len([]rune(got)))
	}

	if got := Summarize("short", 100); got != "short" {
		t.Errorf("short: got %q", got)
	}
}

func TestConvert_Table(t *testing.T) {
	got, err := New().Convert(`<table><thead><tr><th>Name</th><th>Value</th></tr></thead>
		<tbody><tr><td>pi</td><td>3.14</td></tr></tbody></table>`)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"|", "Name", "---", "3.14"} {
		if !strings.Contains(got, want) {
			t.Errorf("table: %q lacks %q", got, want)
		}
	}
}

func TestConvertFrom_ResolvesRelativeLinks(t *testing.T) {
	got, err := New().ConvertFrom(`<p>see <a href="/docs">docs</a></p>`, "https://chat.deepseek.com/a/chat/s/1")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(got, "https://chat.deepseek.com/docs") {
		t.Errorf("ConvertFrom: got %q", got)
	}
}

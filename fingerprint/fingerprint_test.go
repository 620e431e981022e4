package fingerprint

import (
	"errors"
	"fmt"
	"testing"

	"golang.org/x/net/html"
)

const answerHTML = `<div id="a1" class="msg ds-answer" data-index="3" style="color:red">
	<div class="ds-markdown"><p>Hello   world</p></div>
	<div class="ds-icon-button"><span id="重新生成"></span></div>
</div>`

func TestFromHTML_Deterministic(t *testing.T) {
	h1, err := FromHTML(answerHTML)
	if err != nil {
		t.Fatal(err)
	}
	h2, err := FromHTML(answerHTML)
	if err != nil {
		t.Fatal(err)
	}
	if h1 != h2 {
		t.Errorf("FromHTML not deterministic: %q != %q", h1, h2)
	}
	if h1 == None {
		t.Error("FromHTML: got empty fingerprint")
	}
}

func TestFromHTML_IgnoresClassOrderAndStyle(t *testing.T) {
	base := `<div class="a b c" data-x="1"><p>text</p></div>`
	variants := []string{
		`<div class="c a b" data-x="1"><p>text</p></div>`,
		`<div class="b  c a" style="display:none" data-x="1"><p>text</p></div>`,
		`<div class="a a b c b" data-x="1"><p>text</p></div>`,
		`<div data-x="1" title="tooltip" class="a b c"><p>text</p></div>`,
		`<div class="a b c" data-x="1"><p>  text
		</p></div>`,
	}

	want, err := FromHTML(base)
	if err != nil {
		t.Fatal(err)
	}
	for i, v := range variants {
		got, err := FromHTML(v)
		if err != nil {
			t.Fatalf("variant %d: %v", i, err)
		}
		if got != want {
			t.Errorf("variant %d: got %q, want %q", i, got, want)
		}
	}
}

func TestFromHTML_ContentChangesFingerprint(t *testing.T) {
	base := `<div id="x" class="a" data-k="v"><p>one</p></div>`
	changed := map[string]string{
		"tag":      `<section id="x" class="a" data-k="v"><p>one</p></section>`,
		"id":       `<div id="y" class="a" data-k="v"><p>one</p></div>`,
		"class":    `<div id="x" class="b" data-k="v"><p>one</p></div>`,
		"text":     `<div id="x" class="a" data-k="v"><p>two</p></div>`,
		"children": `<div id="x" class="a" data-k="v"><p>one</p><br></div>`,
		"data":     `<div id="x" class="a" data-k="w"><p>one</p></div>`,
		"data-new": `<div id="x" class="a" data-k="v" data-n="1"><p>one</p></div>`,
	}

	want, err := FromHTML(base)
	if err != nil {
		t.Fatal(err)
	}
	for field, v := range changed {
		got, err := FromHTML(v)
		if err != nil {
			t.Fatalf("%s: %v", field, err)
		}
		if got == want {
			t.Errorf("%s change: fingerprint unchanged (%q)", field, got)
		}
	}
}

func TestFromHTML_NoElement(t *testing.T) {
	for _, in := range []string{"", "just text", "<!-- comment -->"} {
		got, err := FromHTML(in)
		if !errors.Is(err, ErrNoElement) {
			t.Errorf("FromHTML(%q): err = %v, want ErrNoElement", in, err)
		}
		if got != None {
			t.Errorf("FromHTML(%q): got %q, want None", in, got)
		}
	}
}

func TestExtract(t *testing.T) {
	nodes := mustParse(t, `<DIV Id="q" class="z a" data-role="answer" aria-label="x">  a <b>b</b>
	c<i></i></DIV>`)
	f := Extract(nodes)

	if f.Tag != "div" {
		t.Errorf("Tag: got %q, want %q", f.Tag, "div")
	}
	if f.ID != "q" {
		t.Errorf("ID: got %q, want %q", f.ID, "q")
	}
	if f.Classes != "a z" {
		t.Errorf("Classes: got %q, want %q", f.Classes, "a z")
	}
	if f.Text != "a b c" {
		t.Errorf("Text: got %q, want %q", f.Text, "a b c")
	}
	if f.Children != 2 {
		t.Errorf("Children: got %d, want 2", f.Children)
	}
	if len(f.Attributes) != 1 || f.Attributes["data-role"] != "answer" {
		t.Errorf("Attributes: got %v, want only data-role", f.Attributes)
	}
}

func TestCompute_NilAndEmptyAttributesMatch(t *testing.T) {
	a := Compute(Features{Tag: "div"})
	b := Compute(Features{Tag: "div", Attributes: map[string]string{}})
	if a != b {
		t.Errorf("nil vs empty attributes: %q != %q", a, b)
	}
}

func TestCompute_Spread(t *testing.T) {
	seen := make(map[string]int, 10000)
	for i := 0; i < 10000; i++ {
		h := Compute(Features{Tag: "div", Text: fmt.Sprintf("answer %d", i)})
		if prev, ok := seen[h]; ok {
			t.Fatalf("collision between %d and %d: %q", prev, i, h)
		}
		seen[h] = i
	}
}

func mustParse(t *testing.T, s string) *html.Node {
	t.Helper()
	n, err := parseFirstElement(s)
	if err != nil {
		t.Fatal(err)
	}
	return n
}

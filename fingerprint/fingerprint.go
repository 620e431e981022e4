// Package fingerprint derives a stable identifier for the semantic content of
// a DOM element: tag, id, class set, normalised text, child count and data-*
// attributes. Two snapshots with the same content produce the same value;
// style churn and class ordering do not change it.
//
// The hash is not cryptographic. Collisions are possible and tolerated.
package fingerprint

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// None is returned alongside an error when no fingerprint can be computed.
const None = ""

var (
	// ErrNoElement means the input held no element node.
	ErrNoElement = errors.New("fingerprint: no element")
	// ErrDetached means the element was no longer attached to the document.
	ErrDetached = errors.New("fingerprint: element detached")
)

// Features are the parts of an element that define its identity.
type Features struct {
	Tag        string            `json:"tag"`
	ID         string            `json:"id"`
	Classes    string            `json:"classes"`
	Text       string            `json:"text"`
	Children   int               `json:"children"`
	Attributes map[string]string `json:"attributes"`
}

// Compute hashes the features. encoding/json writes map keys sorted, so the
// attribute order of the source element does not matter.
func Compute(f Features) string {
	if f.Attributes == nil {
		f.Attributes = map[string]string{}
	}
	data, err := json.Marshal(f)
	if err != nil {
		// Features only holds strings and ints.
		panic("fingerprint: marshal features: " + err.Error())
	}
	return strconv.FormatUint(xxhash.Sum64(data), 16)
}

// FromHTML parses the outer HTML of one element and fingerprints the first
// element node found.
func FromHTML(outerHTML string) (string, error) {
	n, err := parseFirstElement(outerHTML)
	if err != nil {
		return None, err
	}
	return Compute(Extract(n)), nil
}

func parseFirstElement(s string) (*html.Node, error) {
	ctx := &html.Node{Type: html.ElementNode, Data: "body", DataAtom: atom.Body}
	nodes, err := html.ParseFragment(strings.NewReader(s), ctx)
	if err != nil {
		return nil, fmt.Errorf("fingerprint: parse: %w", err)
	}
	for _, n := range nodes {
		if n.Type == html.ElementNode {
			return n, nil
		}
	}
	return nil, ErrNoElement
}

// Extract reads the identifying features of an element node.
func Extract(n *html.Node) Features {
	f := Features{
		Tag:        strings.ToLower(n.Data),
		Attributes: make(map[string]string),
	}
	for _, a := range n.Attr {
		switch {
		case a.Key == "id":
			f.ID = a.Val
		case a.Key == "class":
			classes := strings.Fields(a.Val)
			sort.Strings(classes)
			f.Classes = strings.Join(slices.Compact(classes), " ")
		case strings.HasPrefix(a.Key, "data-"):
			f.Attributes[a.Key] = a.Val
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			f.Children++
		}
	}

	var b strings.Builder
	collectText(n, &b)
	f.Text = NormalizeText(b.String())
	return f
}

// NormalizeText trims and collapses every whitespace run into one space.
func NormalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// collectText mirrors textContent: every descendant text node, in order.
func collectText(n *html.Node, b *strings.Builder) {
	if n.Type == html.TextNode {
		b.WriteString(n.Data)
		return
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectText(c, b)
	}
}

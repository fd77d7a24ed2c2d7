// Package pagetext finds the translatable slots of an HTML page and patches
// resolved text back into them in a single pass.
package pagetext

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"portfolio_bk/internal/services"
)

// Attribute markers and the attributes they translate.
var attrMarkers = []struct {
	marker string
	attr   string
}{
	{"data-i18n-placeholder", "placeholder"},
	{"data-i18n-title", "title"},
	{"data-i18n-aria-label", "aria-label"},
	{"data-i18n-alt", "alt"},
	{"data-i18n-content", "content"},
}

const (
	textMarker   = "data-i18n"
	paramsMarker = "data-i18n-params"
)

// ErrBatchMismatch is returned by Apply when the batch does not belong to
// the collected targets.
var ErrBatchMismatch = errors.New("batch does not match page targets")

// Target is one slot to translate: the text of Node, or one of its
// attributes when Attr is set.
type Target struct {
	Node    *html.Node
	Attr    string
	Request services.Request
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*html.Node, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return doc, nil
}

// Render writes doc back as HTML.
func Render(w io.Writer, doc *html.Node) error {
	return html.Render(w, doc)
}

// Collect returns the targets of doc in document order. The text or
// attribute already in the page is used as the fallback.
func Collect(doc *html.Node) []Target {
	var targets []Target
	for n := range doc.Descendants() {
		if n.Type != html.ElementNode {
			continue
		}
		params := elementParams(n)
		if key, ok := attr(n, textMarker); ok && key != "" {
			targets = append(targets, Target{Node: n, Request: request(key, textContent(n), params)})
		}
		for _, m := range attrMarkers {
			key, ok := attr(n, m.marker)
			if !ok || key == "" {
				continue
			}
			current, _ := attr(n, m.attr)
			targets = append(targets, Target{Node: n, Attr: m.attr, Request: request(key, current, params)})
		}
	}
	return targets
}

// Requests returns the translation requests of targets, index aligned.
func Requests(targets []Target) []services.Request {
	reqs := make([]services.Request, len(targets))
	for i, t := range targets {
		reqs[i] = t.Request
	}
	return reqs
}

// Apply writes batch into targets and sets the document language. Nothing
// is changed when the batch does not match.
func Apply(doc *html.Node, targets []Target, batch services.Batch) error {
	if len(batch.Texts) != len(targets) {
		return fmt.Errorf("%w: %d texts for %d targets", ErrBatchMismatch, len(batch.Texts), len(targets))
	}
	for i, t := range targets {
		if t.Attr == "" {
			setText(t.Node, batch.Texts[i])
			continue
		}
		setAttr(t.Node, t.Attr, batch.Texts[i])
	}
	if root := find(doc, atom.Html); root != nil && batch.Language != "" {
		setAttr(root, "lang", batch.Language)
	}
	return nil
}

// SetTitle replaces the text of <title>, creating it inside <head> if needed.
func SetTitle(doc *html.Node, title string) {
	node := find(doc, atom.Title)
	if node == nil {
		head := find(doc, atom.Head)
		if head == nil {
			return
		}
		node = &html.Node{Type: html.ElementNode, DataAtom: atom.Title, Data: "title"}
		head.AppendChild(node)
	}
	setText(node, title)
}

// InjectScript appends <script id="id">body</script> to <head>.
func InjectScript(doc *html.Node, id, body string) error {
	head := find(doc, atom.Head)
	if head == nil {
		return errors.New("inject script: document has no head")
	}
	script := &html.Node{
		Type:     html.ElementNode,
		DataAtom: atom.Script,
		Data:     "script",
		Attr:     []html.Attribute{{Key: "id", Val: id}},
	}
	script.AppendChild(&html.Node{Type: html.TextNode, Data: body})
	head.AppendChild(script)
	return nil
}

func request(key, current string, params map[string]any) services.Request {
	req := services.Request{Key: key, Params: params}
	if current = strings.TrimSpace(current); current != "" {
		req.Fallback = current
		req.HasFallback = true
	}
	return req
}

func elementParams(n *html.Node) map[string]any {
	raw, ok := attr(n, paramsMarker)
	if !ok || raw == "" {
		return nil
	}
	var params map[string]any
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil
	}
	return params
}

func attr(n *html.Node, key string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

func textContent(n *html.Node) string {
	var b strings.Builder
	for d := range n.Descendants() {
		if d.Type == html.TextNode {
			b.WriteString(d.Data)
		}
	}
	return b.String()
}

// setText replaces every child of n with a single text node.
func setText(n *html.Node, text string) {
	for c := n.FirstChild; c != nil; {
		next := c.NextSibling
		n.RemoveChild(c)
		c = next
	}
	n.AppendChild(&html.Node{Type: html.TextNode, Data: text})
}

func find(doc *html.Node, a atom.Atom) *html.Node {
	if doc.Type == html.ElementNode && doc.DataAtom == a {
		return doc
	}
	for n := range doc.Descendants() {
		if n.Type == html.ElementNode && n.DataAtom == a {
			return n
		}
	}
	return nil
}

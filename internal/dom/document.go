package dom

import (
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/roach88/requerio/internal/ir"
)

// Document is a mutable HTML tree shared by every organism of an engine.
type Document struct {
	doc     *goquery.Document
	layout  Layout
	focused *html.Node
	data    map[*html.Node]ir.Object
}

// Option configures a Document.
type Option func(*Document)

// WithLayout installs a geometry capability. The default is NoLayout.
func WithLayout(l Layout) Option {
	return func(d *Document) {
		d.layout = l
	}
}

// Parse reads an HTML document.
func Parse(r io.Reader, opts ...Option) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return FromNode(root, opts...), nil
}

// ParseString parses an HTML document held in memory.
func ParseString(s string, opts ...Option) (*Document, error) {
	return Parse(strings.NewReader(s), opts...)
}

// FromNode wraps an already parsed tree.
func FromNode(root *html.Node, opts ...Option) *Document {
	d := &Document{
		doc:    goquery.NewDocumentFromNode(root),
		layout: NoLayout{},
		data:   make(map[*html.Node]ir.Object),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Select resolves a selector against the current tree. An unmatched or
// invalid selector yields an empty selection, never an error.
func (d *Document) Select(selector string) *goquery.Selection {
	return d.doc.Find(selector)
}

// ValidSelector reports whether selector can name an organism: one of the
// pseudo selectors or a CSS selector group that compiles.
func ValidSelector(selector string) error {
	if ir.KindOf(selector) != ir.ElementOrganism {
		return nil
	}
	if strings.TrimSpace(selector) == "" {
		return fmt.Errorf("empty selector")
	}
	if _, err := cascadia.ParseGroup(selector); err != nil {
		return fmt.Errorf("invalid selector %q: %w", selector, err)
	}
	return nil
}

// Wrap builds a selection over the given nodes, in the given order.
func (d *Document) Wrap(nodes ...*html.Node) *goquery.Selection {
	return d.doc.Selection.Slice(0, 0).AddNodes(nodes...)
}

// Root returns the underlying goquery document.
func (d *Document) Root() *goquery.Document {
	return d.doc
}

// Layout returns the installed geometry capability.
func (d *Document) Layout() Layout {
	return d.layout
}

// SetLayout replaces the geometry capability.
func (d *Document) SetLayout(l Layout) {
	if l == nil {
		l = NoLayout{}
	}
	d.layout = l
}

// HTML renders the whole document.
func (d *Document) HTML() (string, error) {
	return goquery.OuterHtml(d.doc.Selection)
}

// Focus moves focus to n. It is the stand-in for a browser's native focus
// and always succeeds for element nodes.
func (d *Document) Focus(n *html.Node) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	d.focused = n
	return true
}

// Blur removes focus from n if n holds it.
func (d *Document) Blur(n *html.Node) bool {
	if n == nil || d.focused != n {
		return false
	}
	d.focused = nil
	return true
}

// Focused returns the element holding focus, or nil. A focused element that
// has since left the tree no longer counts.
func (d *Document) Focused() *html.Node {
	if d.focused != nil && !d.Contains(d.focused) {
		d.focused = nil
	}
	return d.focused
}

// Contains reports whether n is attached to this document's tree.
func (d *Document) Contains(n *html.Node) bool {
	root := d.doc.Selection.Nodes[0]
	for p := n; p != nil; p = p.Parent {
		if p == root {
			return true
		}
	}
	return false
}

// Forget drops stored data and written layout metrics for n and all of its
// descendants. Called when nodes are removed rather than detached.
func (d *Document) Forget(n *html.Node) {
	delete(d.data, n)
	if f, ok := d.layout.(nodeForgetter); ok {
		f.Forget(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		d.Forget(c)
	}
}

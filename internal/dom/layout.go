package dom

import (
	"fmt"
	"sync"

	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/roach88/requerio/internal/ir"
)

// Rect is a measured client rect.
type Rect struct {
	Top    float64 `json:"top" yaml:"top"`
	Right  float64 `json:"right" yaml:"right"`
	Bottom float64 `json:"bottom" yaml:"bottom"`
	Left   float64 `json:"left" yaml:"left"`
	Width  float64 `json:"width" yaml:"width"`
	Height float64 `json:"height" yaml:"height"`
	X      float64 `json:"x" yaml:"x"`
	Y      float64 `json:"y" yaml:"y"`
}

// Layout is the geometry capability of a Document.
//
// A nil node addresses the window; a DocumentNode addresses the document.
// Every method reports ok=false when the measurement is unavailable, which
// callers treat as "leave the value undefined", never as zero.
type Layout interface {
	BoundingRect(n *html.Node) (Rect, bool)
	Measure(n *html.Node, m ir.Method) (float64, bool)
	// SetMeasure records a written metric (scrollTop, width, ...).
	SetMeasure(n *html.Node, m ir.Method, v float64) bool
}

// nodeForgetter is implemented by layouts that keep per-node state.
type nodeForgetter interface {
	Forget(n *html.Node)
}

// NoLayout is the fallback for contexts without a layout engine.
type NoLayout struct{}

func (NoLayout) BoundingRect(*html.Node) (Rect, bool)           { return Rect{}, false }
func (NoLayout) Measure(*html.Node, ir.Method) (float64, bool)  { return 0, false }
func (NoLayout) SetMeasure(*html.Node, ir.Method, float64) bool { return false }

// Box is the fixed geometry served for nodes matching one selector.
type Box struct {
	Rect    *Rect
	Metrics map[ir.Method]float64
}

type layoutEntry struct {
	selector string
	match    cascadia.Selector
	box      Box
}

// StaticLayout serves fixed geometry keyed by CSS selector, for server-side
// runs that need deterministic measurements. Entries are consulted in the
// order they were added; the first match wins. Written metrics are kept per
// node and shadow the configured values.
type StaticLayout struct {
	mu        sync.Mutex
	entries   []layoutEntry
	window    map[ir.Method]float64
	document  map[ir.Method]float64
	overrides map[*html.Node]map[ir.Method]float64
}

// NewStaticLayout returns an empty StaticLayout.
func NewStaticLayout() *StaticLayout {
	return &StaticLayout{
		window:    make(map[ir.Method]float64),
		document:  make(map[ir.Method]float64),
		overrides: make(map[*html.Node]map[ir.Method]float64),
	}
}

// Add registers geometry for selector. The reserved selectors "window" and
// "document" set the pseudo-organism metrics.
func (l *StaticLayout) Add(selector string, b Box) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch ir.KindOf(selector) {
	case ir.WindowOrganism:
		for m, v := range b.Metrics {
			l.window[m] = v
		}
		return nil
	case ir.DocumentOrganism:
		for m, v := range b.Metrics {
			l.document[m] = v
		}
		return nil
	}

	sel, err := cascadia.Compile(selector)
	if err != nil {
		return fmt.Errorf("layout selector %q: %w", selector, err)
	}
	l.entries = append(l.entries, layoutEntry{selector: selector, match: sel, box: b})
	return nil
}

func (l *StaticLayout) lookup(n *html.Node) (Box, bool) {
	for _, e := range l.entries {
		if e.match.Match(n) {
			return e.box, true
		}
	}
	return Box{}, false
}

// BoundingRect implements Layout.
func (l *StaticLayout) BoundingRect(n *html.Node) (Rect, bool) {
	if n == nil || n.Type != html.ElementNode {
		return Rect{}, false
	}
	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.lookup(n)
	if !ok || b.Rect == nil {
		return Rect{}, false
	}
	return *b.Rect, true
}

// Measure implements Layout.
func (l *StaticLayout) Measure(n *html.Node, m ir.Method) (float64, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if v, ok := l.overrides[n][m]; ok {
		return v, true
	}
	switch {
	case n == nil:
		v, ok := l.window[m]
		return v, ok
	case n.Type == html.DocumentNode:
		v, ok := l.document[m]
		return v, ok
	}

	b, ok := l.lookup(n)
	if !ok {
		return 0, false
	}
	if v, ok := b.Metrics[m]; ok {
		return v, true
	}
	if b.Rect != nil {
		switch m {
		case ir.MethodWidth, ir.MethodInnerWidth, ir.MethodOuterWidth:
			return b.Rect.Width, true
		case ir.MethodHeight, ir.MethodInnerHeight, ir.MethodOuterHeight:
			return b.Rect.Height, true
		case ir.MethodScrollLeft, ir.MethodScrollTop:
			return 0, true
		}
	}
	return 0, false
}

// SetMeasure implements Layout.
func (l *StaticLayout) SetMeasure(n *html.Node, m ir.Method, v float64) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.overrides[n] == nil {
		l.overrides[n] = make(map[ir.Method]float64)
	}
	l.overrides[n][m] = v
	return true
}

// Forget drops metrics written to n. Descendants are left to the caller.
func (l *StaticLayout) Forget(n *html.Node) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.overrides, n)
}

// overrideCount reports how many nodes carry written metrics.
func (l *StaticLayout) overrideCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.overrides)
}

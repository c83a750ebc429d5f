package engine

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/roach88/requerio/internal/dom"
	"github.com/roach88/requerio/internal/ir"
)

// Narrowing is a subset of an organism's members, produced by a filter and
// consumed by exactly one dispatch. It captures member nodes, not indices,
// so it survives reordering; captured nodes that are no longer members at
// dispatch time are dropped.
type Narrowing struct {
	org   *Organism
	nodes []*html.Node
	err   error
	spent bool
}

func (o *Organism) narrowing() *Narrowing {
	if o.engine != nil && o.engine.store != nil {
		o.engine.resynchronize(o)
	}
	return &Narrowing{org: o, nodes: o.memberNodes()}
}

// Exclude keeps members not matching selector.
func (o *Organism) Exclude(selector string) *Narrowing { return o.narrowing().Exclude(selector) }

// HasChild keeps members with a child matching selector.
func (o *Organism) HasChild(selector string) *Narrowing { return o.narrowing().HasChild(selector) }

// HasParent keeps members whose parent matches selector.
func (o *Organism) HasParent(selector string) *Narrowing { return o.narrowing().HasParent(selector) }

// HasNext keeps members whose next element sibling matches selector.
func (o *Organism) HasNext(selector string) *Narrowing { return o.narrowing().HasNext(selector) }

// HasPrev keeps members whose previous element sibling matches selector.
func (o *Organism) HasPrev(selector string) *Narrowing { return o.narrowing().HasPrev(selector) }

// HasSibling keeps members with any element sibling matching selector.
func (o *Organism) HasSibling(selector string) *Narrowing { return o.narrowing().HasSibling(selector) }

// HasElement keeps members containing n.
func (o *Organism) HasElement(n *html.Node) *Narrowing { return o.narrowing().HasElement(n) }

// HasSelector keeps members with a descendant matching selector.
func (o *Organism) HasSelector(selector string) *Narrowing { return o.narrowing().HasSelector(selector) }

// Nodes returns the captured member nodes.
func (n *Narrowing) Nodes() []*html.Node {
	out := make([]*html.Node, len(n.nodes))
	copy(out, n.nodes)
	return out
}

// Len returns the number of captured members.
func (n *Narrowing) Len() int {
	return len(n.nodes)
}

// Err returns the first selector compile error, if any.
func (n *Narrowing) Err() error {
	return n.err
}

// filter keeps the nodes for which keep reports true.
func (n *Narrowing) filter(selector string, keep func(s *goquery.Selection, m cascadia.Selector) bool) *Narrowing {
	if n.err != nil {
		return n
	}
	m, err := cascadia.Compile(selector)
	if err != nil {
		n.err = &DispatchError{
			Code:     ErrCodeInvalidSelector,
			Selector: n.org.selector,
			Err:      fmt.Errorf("filter selector %q: %w", selector, err),
		}
		return n
	}
	kept := n.nodes[:0:0]
	for _, node := range n.nodes {
		if keep(n.org.engine.doc.Wrap(node), m) {
			kept = append(kept, node)
		}
	}
	n.nodes = kept
	return n
}

// Exclude drops nodes matching selector.
func (n *Narrowing) Exclude(selector string) *Narrowing {
	return n.filter(selector, func(s *goquery.Selection, m cascadia.Selector) bool {
		return !s.IsMatcher(m)
	})
}

// HasChild keeps nodes with a child matching selector.
func (n *Narrowing) HasChild(selector string) *Narrowing {
	return n.filter(selector, func(s *goquery.Selection, m cascadia.Selector) bool {
		return s.ChildrenMatcher(m).Length() > 0
	})
}

// HasParent keeps nodes whose parent matches selector.
func (n *Narrowing) HasParent(selector string) *Narrowing {
	return n.filter(selector, func(s *goquery.Selection, m cascadia.Selector) bool {
		return s.ParentMatcher(m).Length() > 0
	})
}

// HasNext keeps nodes whose next element sibling matches selector.
func (n *Narrowing) HasNext(selector string) *Narrowing {
	return n.filter(selector, func(s *goquery.Selection, m cascadia.Selector) bool {
		return s.NextMatcher(m).Length() > 0
	})
}

// HasPrev keeps nodes whose previous element sibling matches selector.
func (n *Narrowing) HasPrev(selector string) *Narrowing {
	return n.filter(selector, func(s *goquery.Selection, m cascadia.Selector) bool {
		return s.PrevMatcher(m).Length() > 0
	})
}

// HasSibling keeps nodes with any element sibling matching selector.
func (n *Narrowing) HasSibling(selector string) *Narrowing {
	return n.filter(selector, func(s *goquery.Selection, m cascadia.Selector) bool {
		return s.SiblingsMatcher(m).Length() > 0
	})
}

// HasSelector keeps nodes with a descendant matching selector.
func (n *Narrowing) HasSelector(selector string) *Narrowing {
	return n.filter(selector, func(s *goquery.Selection, m cascadia.Selector) bool {
		return s.HasMatcher(m).Length() > 0
	})
}

// HasElement keeps nodes that contain el.
func (n *Narrowing) HasElement(el *html.Node) *Narrowing {
	if n.err != nil {
		return n
	}
	kept := n.nodes[:0:0]
	for _, node := range n.nodes {
		if el != nil && isAncestor(node, el) {
			kept = append(kept, node)
		}
	}
	n.nodes = kept
	return n
}

// isAncestor reports whether a is a proper ancestor of n.
func isAncestor(a, n *html.Node) bool {
	for p := n.Parent; p != nil; p = p.Parent {
		if p == a {
			return true
		}
	}
	return false
}

// Dispatch performs m on every captured member still present. It consumes
// the narrowing.
func (n *Narrowing) Dispatch(m ir.Method, args any) (*Organism, error) {
	return n.DispatchAction(m.String(), args)
}

// DispatchAction is Dispatch by method name.
func (n *Narrowing) DispatchAction(method string, args any) (*Organism, error) {
	o := n.org
	if n.spent {
		return o, &DispatchError{Code: ErrCodeNarrowingSpent, Selector: o.selector, Method: method, Err: ErrNarrowingSpent}
	}
	n.spent = true
	if n.err != nil {
		return o, n.err
	}
	e := o.engine
	if err := e.ready(); err != nil {
		return o, err
	}

	e.resynchronize(o)
	current := o.memberNodes()
	indices := make([]int, 0, len(n.nodes))
	for _, node := range n.nodes {
		if i := dom.IndexOf(current, node); i >= 0 {
			indices = append(indices, i)
		}
	}
	return e.run(o, method, args, ir.Members(indices...))
}

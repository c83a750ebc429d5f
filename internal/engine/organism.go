package engine

import (
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/roach88/requerio/internal/dom"
	"github.com/roach88/requerio/internal/ir"
)

// ActionResult is the outcome of an organism's most recent dispatch.
type ActionResult struct {
	Action ir.Action
	// State is the organism's state after the dispatch. On failure it is
	// the unchanged previous state.
	State *ir.State
	Err   error
}

// Organism is a named selection over the live tree with its own state
// subtree. Organisms are created by Engine.Init and Engine.Incept.
type Organism struct {
	engine   *Engine
	selector string
	kind     ir.OrganismKind

	// selection is the live handle. Its nodes are replaced in place by
	// resynchronization; the pointer itself never changes.
	selection *goquery.Selection

	// members holds one single-element selection per matched node. Always
	// empty for window and document.
	members []*goquery.Selection

	previous *ActionResult

	// bound marks an organism already wired to an engine.
	bound bool
}

// Selector returns the organism's identity. It implements ir.Subject.
func (o *Organism) Selector() string {
	return o.selector
}

// Kind reports whether this is an element, window or document organism.
func (o *Organism) Kind() ir.OrganismKind {
	return o.kind
}

// Selection returns the live handle over every matched element.
func (o *Organism) Selection() *goquery.Selection {
	return o.selection
}

// Members returns the member handles. The slice is a copy; the handles
// themselves are live.
func (o *Organism) Members() []*goquery.Selection {
	out := make([]*goquery.Selection, len(o.members))
	copy(out, o.members)
	return out
}

// Member returns member i, or nil when out of range.
func (o *Organism) Member(i int) *goquery.Selection {
	if i < 0 || i >= len(o.members) {
		return nil
	}
	return o.members[i]
}

// MemberCount implements ir.Subject.
func (o *Organism) MemberCount() int {
	return len(o.members)
}

// LiveAttributes implements ir.Subject.
func (o *Organism) LiveAttributes(i int) (map[string]string, bool) {
	var n *html.Node
	switch {
	case i < 0:
		if o.selection == nil || len(o.selection.Nodes) == 0 {
			return nil, false
		}
		n = o.selection.Nodes[0]
	case i < len(o.members):
		n = o.members[i].Nodes[0]
	default:
		return nil, false
	}
	return dom.Attributes(n), true
}

// PreviousActionResult returns the outcome of the last dispatch, or nil.
func (o *Organism) PreviousActionResult() *ActionResult {
	return o.previous
}

// nodes returns the matched element nodes.
func (o *Organism) nodes() []*html.Node {
	if o.selection == nil {
		return nil
	}
	return o.selection.Nodes
}

// memberNodes returns the node of every member.
func (o *Organism) memberNodes() []*html.Node {
	out := make([]*html.Node, len(o.members))
	for i, m := range o.members {
		out[i] = m.Nodes[0]
	}
	return out
}

// Dispatch performs m on the organism, or on the members given by target:
// none addresses the whole organism, one index a single member, several
// indices each listed member. It returns the organism for chaining.
func (o *Organism) Dispatch(m ir.Method, args any, target ...int) (*Organism, error) {
	return o.engine.dispatch(o, m.String(), args, targetOf(target))
}

// DispatchAction is Dispatch by method name. Unknown names are dispatched
// without a side effect.
func (o *Organism) DispatchAction(method string, args any, target ...int) (*Organism, error) {
	return o.engine.dispatch(o, method, args, targetOf(target))
}

// DispatchTarget is DispatchAction with an explicit target, which allows a
// one-element member list.
func (o *Organism) DispatchTarget(method string, args any, t ir.Target) (*Organism, error) {
	return o.engine.dispatch(o, method, args, t)
}

// GetState reconciles the organism with the live tree and returns its
// state, or the state of one member.
func (o *Organism) GetState(member ...int) (*ir.State, error) {
	return o.engine.organismState(o, member...)
}

func targetOf(indices []int) ir.Target {
	switch len(indices) {
	case 0:
		return ir.Target{}
	case 1:
		return ir.Member(indices[0])
	}
	return ir.Members(indices...)
}

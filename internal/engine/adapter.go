package engine

import (
	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/roach88/requerio/internal/dom"
	"github.com/roach88/requerio/internal/ir"
)

// resolve evaluates selector against the current tree. The pseudo
// organisms resolve to an empty selection.
func (e *Engine) resolve(selector string) *goquery.Selection {
	if ir.KindOf(selector) != ir.ElementOrganism {
		return e.doc.Wrap()
	}
	return e.doc.Select(selector)
}

// populateMembers rebuilds the member handles from the live handle.
func (e *Engine) populateMembers(o *Organism) {
	if o.kind != ir.ElementOrganism {
		o.members = nil
		return
	}
	members := make([]*goquery.Selection, len(o.selection.Nodes))
	for i, n := range o.selection.Nodes {
		members[i] = e.doc.Wrap(n)
	}
	o.members = members
}

// resynchronize re-resolves the organism and, if the matched nodes changed,
// swaps them into the live handle and rebuilds the members. It reports
// whether anything changed.
func (e *Engine) resynchronize(o *Organism) bool {
	if o.kind != ir.ElementOrganism {
		return false
	}
	live := e.resolve(o.selector)
	if dom.SameNodes(live.Nodes, o.selection.Nodes) && dom.SameNodes(live.Nodes, o.memberNodes()) {
		return false
	}
	o.selection.Nodes = live.Nodes
	e.populateMembers(o)
	e.logger.Debug("organism resynchronized", "selector", o.selector, "members", len(o.members))
	return true
}

// relatives returns every other organism whose nodes are ancestors or
// descendants of nodes, plus every organism matching nothing, since new
// markup may produce its first match. Must run before the mutation.
func (e *Engine) relatives(o *Organism, nodes []*html.Node) []*Organism {
	var out []*Organism
	for _, sel := range e.selectors {
		other := e.organisms[sel]
		if other == nil || other == o || other.kind != ir.ElementOrganism {
			continue
		}
		if len(other.nodes()) == 0 || dom.Related(nodes, other.nodes()) {
			out = append(out, other)
		}
	}
	return out
}

// cascade resynchronizes the mutated organism and its relatives.
func (e *Engine) cascade(o *Organism, relatives []*Organism) {
	e.resynchronize(o)
	for _, r := range relatives {
		if e.resynchronize(r) {
			e.logger.Debug("cascade resynchronized relative", "selector", o.selector, "relative", r.selector)
		}
	}
}

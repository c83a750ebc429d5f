package engine

import (
	"maps"

	"golang.org/x/net/html"

	"github.com/roach88/requerio/internal/dom"
	"github.com/roach88/requerio/internal/ir"
)

// organismState backs Organism.GetState.
func (e *Engine) organismState(o *Organism, member ...int) (*ir.State, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	if err := e.reconcile(o); err != nil {
		return nil, err
	}
	if len(member) > 0 {
		if err := e.reconcileMember(o, member[0]); err != nil {
			return nil, err
		}
	}
	s := e.store.GetState()[o.selector]
	if len(member) == 0 {
		return s.Clone(), nil
	}
	i := member[0]
	if s == nil || i < 0 || i >= len(s.Members) {
		return nil, &DispatchError{
			Code:     ErrCodeMemberOutOfRange,
			Message:  "no such member",
			Selector: o.selector,
		}
	}
	m := s.Members[i]
	return (&m).Clone(), nil
}

// reconcile compares stored state with the live tree and dispatches a
// corrective read for every difference it finds. This is how changes made
// outside the engine reach the state.
func (e *Engine) reconcile(o *Organism) error {
	e.resynchronize(o)
	s := e.store.GetState()[o.selector]
	if s == nil {
		return nil
	}

	var reads []ir.Method
	switch o.kind {
	case ir.ElementOrganism:
		reads = e.elementDrift(o, s)
	case ir.WindowOrganism:
		reads = e.metricDrift(nil, s)
	case ir.DocumentOrganism:
		reads = e.metricDrift(e.doc.Root().Nodes[0], s)
		if active, changed := e.activeDrift(s); changed {
			e.logger.Debug("focus changed outside the engine", "active", active)
			var arg any = active
			if active == "" {
				arg = ir.Null{}
			}
			if _, err := e.run(o, ir.MethodSetActiveOrganism.String(), arg, ir.Target{}); err != nil {
				return err
			}
		}
	}

	for _, m := range reads {
		e.logger.Debug("reconciling drift", "selector", o.selector, "method", m.String())
		if _, err := e.run(o, m.String(), nil, ir.Target{}); err != nil {
			return err
		}
	}
	return nil
}

// reconcileMember brings member i's state in line with its own element.
// Its reads are targeted at the member, so they also land on the organism
// level; a second organism pass puts that back in line with the first
// element.
func (e *Engine) reconcileMember(o *Organism, i int) error {
	if o.kind != ir.ElementOrganism || i < 0 || i >= len(o.members) {
		return nil
	}
	s := e.store.GetState()[o.selector]
	if s == nil || i >= len(s.Members) {
		return nil
	}
	reads := e.nodeDrift(o.members[i].Nodes[0], &s.Members[i])
	if len(reads) == 0 {
		return nil
	}
	for _, m := range reads {
		e.logger.Debug("reconciling member drift", "selector", o.selector, "member", i, "method", m.String())
		if _, err := e.run(o, m.String(), nil, ir.Member(i)); err != nil {
			return err
		}
	}
	return e.reconcile(o)
}

// elementDrift lists the reads that bring an element organism's state back
// in line with its first matched element.
func (e *Engine) elementDrift(o *Organism, s *ir.State) []ir.Method {
	var reads []ir.Method
	if len(s.Members) != len(o.members) || attributesDrifted(o, s) {
		// Any reduction re-derives attributes and resizes members.
		reads = append(reads, ir.MethodAttr)
	}

	nodes := o.nodes()
	if len(nodes) == 0 {
		return reads
	}
	return append(reads, e.nodeDrift(nodes[0], s)...)
}

// nodeDrift lists the reads whose stored result in s no longer matches n.
func (e *Engine) nodeDrift(n *html.Node, s *ir.State) []ir.Method {
	var reads []ir.Method
	if s.Data != nil && !ir.Equal(e.doc.Data(n), s.Data) {
		reads = append(reads, ir.MethodData)
	}
	if !maps.Equal(dom.Style(n), s.Style) {
		reads = append(reads, ir.MethodCSS)
	}
	if v, ok := dom.Value(n); ok && (s.Value == nil || *s.Value != v) {
		reads = append(reads, ir.MethodVal)
	}
	// innerHTML is only tracked once read.
	if s.InnerHTML != nil {
		if inner, err := dom.InnerHTML(n); err == nil && inner != *s.InnerHTML {
			reads = append(reads, ir.MethodHTML)
		}
	}
	reads = append(reads, e.metricDrift(n, s)...)

	if rectMeasured(s.BoundingRect) {
		if r, ok := e.doc.Layout().BoundingRect(n); ok && !rectEqual(r, s.BoundingRect) {
			reads = append(reads, ir.MethodGetBoundingClientRect)
		}
	}
	return reads
}

func attributesDrifted(o *Organism, s *ir.State) bool {
	if live, ok := o.LiveAttributes(-1); ok && !maps.Equal(live, s.Attributes) {
		return true
	}
	for i := range s.Members {
		live, ok := o.LiveAttributes(i)
		if ok && !maps.Equal(live, s.Members[i].Attributes) {
			return true
		}
	}
	return false
}

// metricDrift lists already measured metrics whose live value changed.
// Never measured metrics stay null.
func (e *Engine) metricDrift(n *html.Node, s *ir.State) []ir.Method {
	var reads []ir.Method
	layout := e.doc.Layout()
	for _, m := range ir.Methods() {
		if !m.Has(ir.TraitNumeric) {
			continue
		}
		slot := s.Metric(m)
		if slot == nil || *slot == nil {
			continue
		}
		if v, ok := layout.Measure(n, m); ok && v != **slot {
			reads = append(reads, m)
		}
	}
	return reads
}

// activeDrift returns the selector that should be the document's active
// organism, and whether it differs from s. The current active organism is
// kept while it still contains the focused element.
func (e *Engine) activeDrift(s *ir.State) (string, bool) {
	focused := e.doc.Focused()
	current := ""
	if s.ActiveOrganism != nil {
		current = *s.ActiveOrganism
	}
	if focused == nil {
		return "", current != ""
	}
	if o, ok := e.Organism(current); ok && dom.IndexOf(o.nodes(), focused) >= 0 {
		return current, false
	}
	for _, sel := range e.selectors {
		o := e.organisms[sel]
		if o.kind == ir.ElementOrganism && dom.IndexOf(o.nodes(), focused) >= 0 {
			return sel, sel != current
		}
	}
	return "", current != ""
}

func rectMeasured(r ir.BoundingRect) bool {
	for _, key := range ir.RectFields {
		if *r.Field(key) != nil {
			return true
		}
	}
	return false
}

func rectEqual(live dom.Rect, r ir.BoundingRect) bool {
	obj := rectObject(live)
	for _, key := range ir.RectFields {
		f := *r.Field(key)
		want, _ := ir.AsNumber(obj[key])
		if f == nil || *f != want {
			return false
		}
	}
	return true
}

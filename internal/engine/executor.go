package engine

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/roach88/requerio/internal/dom"
	"github.com/roach88/requerio/internal/ir"
)

// targetNode is one element a side effect applies to, with the index a
// function argument receives.
type targetNode struct {
	index int
	node  *html.Node
}

// effect is what the executor hands on to the reducer.
type effect struct {
	args []ir.Value
	// read is set when args were read from the tree because the caller gave
	// neither key nor value.
	read bool
	// focusMoved is set when focus or blur changed the focused element.
	focusMoved bool
}

// targets resolves the elements addressed by t. Out-of-range list indices
// are skipped.
func (e *Engine) targets(o *Organism, t ir.Target) []targetNode {
	if o.kind != ir.ElementOrganism {
		return nil
	}
	if t.IsZero() {
		out := make([]targetNode, len(o.selection.Nodes))
		for i, n := range o.selection.Nodes {
			out[i] = targetNode{index: i, node: n}
		}
		return out
	}
	var out []targetNode
	for _, i := range t.Indices() {
		if i < 0 || i >= len(o.members) {
			continue
		}
		out = append(out, targetNode{index: i, node: o.members[i].Nodes[0]})
	}
	return out
}

// metricNode returns the node geometry is read from: nil for the window,
// the document node for the document, otherwise the first target.
func (e *Engine) metricNodes(o *Organism, targets []targetNode) []targetNode {
	switch o.kind {
	case ir.WindowOrganism:
		return []targetNode{{index: 0, node: nil}}
	case ir.DocumentOrganism:
		return []targetNode{{index: 0, node: e.doc.Root().Nodes[0]}}
	}
	return targets
}

// mutatedNodes returns the nodes whose subtrees a structural method changes.
func mutatedNodes(m ir.Method, targets []targetNode) []*html.Node {
	out := make([]*html.Node, 0, len(targets))
	for _, t := range targets {
		n := t.node
		if (m == ir.MethodBefore || m == ir.MethodAfter) && n.Parent != nil {
			n = n.Parent
		}
		out = append(out, n)
	}
	return out
}

// execute performs the live side effect of m and returns the arguments to
// record. Function arguments are invoked once per element and never
// recorded; the first element's result is.
func (e *Engine) execute(o *Organism, m ir.Method, args []ir.Value, targets []targetNode) effect {
	switch {
	case m == ir.MethodUnknown:
		return effect{args: resolveAll(args, 0, "")}
	case m.Has(ir.TraitClass):
		return effect{args: e.classOp(m, args, targets)}
	case m == ir.MethodAttr:
		return e.keyed(attrAccess(), args, targets)
	case m == ir.MethodCSS:
		return e.keyed(cssAccess(), args, targets)
	case m == ir.MethodData:
		return e.keyed(e.dataAccess(), args, targets)
	case m == ir.MethodHTML:
		return e.html(args, targets)
	case m == ir.MethodVal:
		return e.val(args, targets)
	case m.Has(ir.TraitSetter | ir.TraitNumeric):
		return e.metric(m, args, e.metricNodes(o, targets), o.kind == ir.ElementOrganism)
	case m == ir.MethodGetBoundingClientRect:
		return e.measureRect(o, targets)
	case m.Has(ir.TraitMeasure | ir.TraitNumeric):
		return e.measure(m, e.metricNodes(o, targets))
	case m.Has(ir.TraitStructural):
		return effect{args: e.structural(m, args, targets)}
	case m.Has(ir.TraitFocus):
		return e.focus(m, args, targets)
	}
	// Synthetic methods never touch the tree.
	return effect{args: resolveAll(args, 0, "")}
}

func (e *Engine) classOp(m ir.Method, args []ir.Value, targets []targetNode) []ir.Value {
	if len(targets) == 0 {
		return resolveAll(args, 0, "")
	}
	var recorded []ir.Value
	for k, t := range targets {
		current, _ := dom.Attr(t.node, "class")
		vals := resolveAll(args, t.index, current)
		if k == 0 {
			recorded = vals
		}
		sel := e.doc.Wrap(t.node)

		if m == ir.MethodRemoveClass && len(vals) == 0 {
			sel.RemoveClass()
			continue
		}
		names, force, ok := classArgs(m, vals)
		if !ok || len(names) == 0 {
			continue
		}
		switch {
		case m == ir.MethodAddClass || (m == ir.MethodToggleClass && force == forceOn):
			for _, name := range names {
				if !sel.HasClass(name) {
					sel.AddClass(name)
				}
			}
		case m == ir.MethodRemoveClass || force == forceOff:
			sel.RemoveClass(names...)
		default:
			sel.ToggleClass(names...)
		}
	}
	return recorded
}

type classForce int

const (
	forceNone classForce = iota
	forceOn
	forceOff
)

// classArgs reads class names and, for toggleClass, an optional boolean
// switch. ok is false for arguments the reducer will reject.
func classArgs(m ir.Method, args []ir.Value) (names []string, force classForce, ok bool) {
	toggle := m == ir.MethodToggleClass
	if toggle && len(args) == 1 {
		if arr, isArr := args[0].(ir.Array); isArr && len(arr) == 2 {
			if _, isBool := arr[1].(ir.Bool); isBool {
				args = []ir.Value(arr)
			}
		}
	}
	for i, arg := range args {
		if toggle && i == 1 {
			b, isBool := arg.(ir.Bool)
			if !isBool {
				return nil, forceNone, false
			}
			if b {
				force = forceOn
			} else {
				force = forceOff
			}
			break
		}
		switch v := arg.(type) {
		case ir.String:
			names = append(names, dom.SplitClasses(string(v))...)
		case ir.Array:
			for _, elem := range v {
				s, isStr := elem.(ir.String)
				if !isStr {
					return nil, forceNone, false
				}
				names = append(names, dom.SplitClasses(string(s))...)
			}
		default:
			return nil, forceNone, false
		}
	}
	return names, force, true
}

// access reads and writes one keyed property family (attributes, inline
// style, data) of an element.
type access struct {
	all func(n *html.Node) ir.Object
	get func(n *html.Node, key string) (ir.Value, bool)
	set func(n *html.Node, key string, v ir.Value)
	key func(string) string
	// readMissing is recorded for a keyed read of an absent key; nil
	// records nothing.
	readMissing ir.Value
}

func attrAccess() access {
	return access{
		all: func(n *html.Node) ir.Object {
			return stringsObject(dom.Attributes(n))
		},
		get: func(n *html.Node, key string) (ir.Value, bool) {
			v, ok := dom.Attr(n, key)
			return ir.String(v), ok
		},
		set: func(n *html.Node, key string, v ir.Value) {
			if ir.IsNull(v) {
				dom.RemoveAttr(n, key)
				return
			}
			dom.SetAttr(n, key, scalarString(v))
		},
		key:         strings.ToLower,
		readMissing: ir.Null{},
	}
}

func cssAccess() access {
	return access{
		all: func(n *html.Node) ir.Object {
			return stringsObject(dom.Style(n))
		},
		get: func(n *html.Node, key string) (ir.Value, bool) {
			v, ok := dom.StyleProperty(n, key)
			return ir.String(v), ok
		},
		set: func(n *html.Node, key string, v ir.Value) {
			if ir.IsNull(v) {
				dom.SetStyle(n, key, "")
				return
			}
			dom.SetStyle(n, key, scalarString(v))
		},
		key:         dom.CSSName,
		readMissing: ir.Null{},
	}
}

func (e *Engine) dataAccess() access {
	return access{
		all: e.doc.Data,
		get: e.doc.DataValue,
		set: e.doc.SetData,
		key: dom.DataKey,
	}
}

// keyed implements the attr, css and data setters and their read forms.
// The recorded argument is always a single key/value map.
func (e *Engine) keyed(acc access, args []ir.Value, targets []targetNode) effect {
	var first *html.Node
	if len(targets) > 0 {
		first = targets[0].node
	}

	// Read forms: () and (key).
	if len(args) == 0 || ir.IsNull(args[0]) {
		if first == nil {
			return effect{}
		}
		return effect{args: []ir.Value{acc.all(first)}, read: true}
	}
	if key, ok := args[0].(ir.String); ok && len(args) == 1 {
		if first == nil {
			return effect{}
		}
		k := acc.key(string(key))
		obj := ir.Object{}
		if v, ok := acc.get(first, k); ok {
			obj[k] = v
		} else if acc.readMissing != nil {
			obj[k] = acc.readMissing
		}
		return effect{args: []ir.Value{obj}}
	}

	// Write forms: (key, value) and (map).
	var pairs ir.Object
	switch v := args[0].(type) {
	case ir.String:
		pairs = ir.Object{string(v): args[1]}
	case ir.Object:
		pairs = v
	default:
		// Not a form the setter understands; let the reducer judge it.
		return effect{args: resolveAll(args, 0, "")}
	}

	keys := pairs.SortedKeys()
	recorded := ir.Object{}
	if len(targets) == 0 {
		for _, k := range keys {
			recorded[acc.key(k)] = resolve(pairs[k], 0, "")
		}
		return effect{args: []ir.Value{recorded}}
	}
	for i, t := range targets {
		for _, k := range keys {
			nk := acc.key(k)
			cur, _ := acc.get(t.node, nk)
			v := resolve(pairs[k], t.index, currentString(cur))
			acc.set(t.node, nk, v)
			if i == 0 {
				recorded[nk] = v
			}
		}
	}
	return effect{args: []ir.Value{recorded}}
}

func (e *Engine) html(args []ir.Value, targets []targetNode) effect {
	if len(args) == 0 || ir.IsNull(args[0]) {
		if len(targets) == 0 {
			return effect{}
		}
		inner, err := dom.InnerHTML(targets[0].node)
		if err != nil {
			e.logger.Warn("html read failed", "error", err)
			return effect{}
		}
		return effect{args: []ir.Value{ir.String(inner)}}
	}

	if len(targets) == 0 {
		return effect{args: resolveAll(args, 0, "")}
	}
	var recorded []ir.Value
	for k, t := range targets {
		current, _ := dom.InnerHTML(t.node)
		v := resolve(args[0], t.index, current)
		markup := scalarString(v)
		for c := t.node.FirstChild; c != nil; c = c.NextSibling {
			e.doc.Forget(c)
		}
		e.doc.Wrap(t.node).SetHtml(markup)
		if k == 0 {
			recorded = []ir.Value{ir.String(markup)}
		}
	}
	return effect{args: recorded}
}

func (e *Engine) val(args []ir.Value, targets []targetNode) effect {
	if len(args) == 0 || ir.IsNull(args[0]) {
		if len(targets) == 0 {
			return effect{}
		}
		v, ok := dom.Value(targets[0].node)
		if !ok {
			return effect{}
		}
		return effect{args: []ir.Value{ir.String(v)}}
	}

	if len(targets) == 0 {
		return effect{args: resolveAll(args, 0, "")}
	}
	var recorded []ir.Value
	for k, t := range targets {
		current, _ := dom.Value(t.node)
		v := resolve(args[0], t.index, current)
		dom.SetValue(t.node, scalarString(v))
		if k == 0 {
			recorded = []ir.Value{v}
		}
	}
	return effect{args: recorded}
}

// metric implements scrollLeft, scrollTop, width and height.
func (e *Engine) metric(m ir.Method, args []ir.Value, nodes []targetNode, element bool) effect {
	layout := e.doc.Layout()
	if len(args) == 0 || ir.IsNull(args[0]) {
		return e.measure(m, nodes)
	}

	if len(nodes) == 0 {
		return effect{args: resolveAll(args, 0, "")}
	}
	var recorded []ir.Value
	for k, t := range nodes {
		current := ""
		if f, ok := layout.Measure(t.node, m); ok {
			current = formatNumber(f)
		}
		v := resolve(args[0], t.index, current)
		if k == 0 {
			recorded = []ir.Value{v}
		}
		f, ok := numberOf(v)
		if !ok {
			continue
		}
		layout.SetMeasure(t.node, m, f)
		if element && (m == ir.MethodWidth || m == ir.MethodHeight) {
			dom.SetStyle(t.node, m.String(), formatNumber(f)+"px")
		}
	}
	return effect{args: recorded}
}

// measure reads one numeric metric from the first node. Caller arguments
// are ignored. Unavailable geometry records nothing.
func (e *Engine) measure(m ir.Method, nodes []targetNode) effect {
	if len(nodes) == 0 {
		return effect{}
	}
	f, ok := e.doc.Layout().Measure(nodes[0].node, m)
	if !ok {
		return effect{}
	}
	return effect{args: []ir.Value{numberValue(f)}}
}

// measureRect always measures afresh. Window and document have no rect.
func (e *Engine) measureRect(o *Organism, targets []targetNode) effect {
	if o.kind != ir.ElementOrganism || len(targets) == 0 {
		return effect{}
	}
	r, ok := e.doc.Layout().BoundingRect(targets[0].node)
	if !ok {
		return effect{}
	}
	return effect{args: []ir.Value{rectObject(r)}}
}

func (e *Engine) structural(m ir.Method, args []ir.Value, targets []targetNode) []ir.Value {
	var recorded []ir.Value
	for k, t := range targets {
		sel := e.doc.Wrap(t.node)
		switch m {
		case ir.MethodAppend, ir.MethodPrepend, ir.MethodBefore, ir.MethodAfter:
			if len(args) == 0 {
				continue
			}
			current, _ := dom.InnerHTML(t.node)
			v := resolve(args[0], t.index, current)
			markup := scalarString(v)
			switch m {
			case ir.MethodAppend:
				sel.AppendHtml(markup)
			case ir.MethodPrepend:
				sel.PrependHtml(markup)
			case ir.MethodBefore:
				sel.BeforeHtml(markup)
			case ir.MethodAfter:
				sel.AfterHtml(markup)
			}
			if k == 0 {
				recorded = []ir.Value{ir.String(markup)}
			}
		case ir.MethodEmpty:
			for c := t.node.FirstChild; c != nil; c = c.NextSibling {
				e.doc.Forget(c)
			}
			sel.Empty()
		case ir.MethodDetach:
			sel.Remove()
		case ir.MethodRemove:
			e.doc.Forget(t.node)
			sel.Remove()
		}
	}
	if recorded == nil {
		recorded = resolveAll(args, 0, "")
	}
	return recorded
}

func (e *Engine) focus(m ir.Method, args []ir.Value, targets []targetNode) effect {
	eff := effect{args: resolveAll(args, 0, "")}
	if len(targets) == 0 {
		return eff
	}
	if m == ir.MethodFocus {
		eff.focusMoved = e.doc.Focus(targets[0].node)
	} else {
		eff.focusMoved = e.doc.Blur(targets[0].node)
	}
	return eff
}

// resolve substitutes a function argument with its result.
func resolve(v ir.Value, index int, current string) ir.Value {
	if f, ok := v.(ir.Func); ok {
		return ir.String(f(index, current))
	}
	return v
}

func resolveAll(args []ir.Value, index int, current string) []ir.Value {
	out := make([]ir.Value, len(args))
	for i, a := range args {
		switch v := a.(type) {
		case ir.Array:
			out[i] = ir.Array(resolveAll(v, index, current))
		case ir.Object:
			obj := make(ir.Object, len(v))
			for k, x := range v {
				obj[k] = resolve(x, index, current)
			}
			out[i] = obj
		default:
			out[i] = resolve(v, index, current)
		}
	}
	return out
}

// scalarString renders a value the way the tree stores it.
func scalarString(v ir.Value) string {
	switch x := v.(type) {
	case nil, ir.Null:
		return ""
	case ir.String:
		return string(x)
	case ir.Int:
		return strconv.FormatInt(int64(x), 10)
	case ir.Float:
		return formatNumber(float64(x))
	case ir.Bool:
		return strconv.FormatBool(bool(x))
	}
	b, err := ir.MarshalCanonical(v)
	if err != nil {
		return fmt.Sprint(ir.ToGo(v))
	}
	return string(b)
}

func currentString(v ir.Value) string {
	if v == nil {
		return ""
	}
	return scalarString(v)
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// numberOf accepts numbers and numeric strings with an optional px unit.
func numberOf(v ir.Value) (float64, bool) {
	if f, ok := ir.AsNumber(v); ok {
		return f, true
	}
	s, ok := v.(ir.String)
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSuffix(strings.TrimSpace(string(s)), "px"), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func numberValue(f float64) ir.Value {
	if f == float64(int64(f)) {
		return ir.Int(int64(f))
	}
	return ir.Float(f)
}

func stringsObject(m map[string]string) ir.Object {
	obj := make(ir.Object, len(m))
	for k, v := range m {
		obj[k] = ir.String(v)
	}
	return obj
}

func rectObject(r dom.Rect) ir.Object {
	return ir.Object{
		"top":    numberValue(r.Top),
		"right":  numberValue(r.Right),
		"bottom": numberValue(r.Bottom),
		"left":   numberValue(r.Left),
		"width":  numberValue(r.Width),
		"height": numberValue(r.Height),
		"x":      numberValue(r.X),
		"y":      numberValue(r.Y),
	}
}

package reducer

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/requerio/internal/ir"
	"github.com/roach88/requerio/internal/store"
)

// Tree is the whole-app state: one subtree per organism selector.
type Tree = map[string]*ir.State

// Custom is a caller-supplied reducer run after the built-in transform for
// every action addressed to an organism. It receives the state the engine
// computed, the action, the organism's live view and the previous state.
//
// Returning a nil state keeps the engine's computed state. Returning an
// error fails the dispatch.
type Custom interface {
	Reduce(state *ir.State, action ir.Action, organism ir.Subject, prev *ir.State) (*ir.State, error)
}

// CustomFunc adapts a function to Custom.
type CustomFunc func(state *ir.State, action ir.Action, organism ir.Subject, prev *ir.State) (*ir.State, error)

// Reduce implements Custom.
func (f CustomFunc) Reduce(state *ir.State, action ir.Action, organism ir.Subject, prev *ir.State) (*ir.State, error) {
	return f(state, action, organism, prev)
}

// Options configures organism reducers.
type Options struct {
	Custom Custom
	Logger *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return slog.Default()
	}
	return o.Logger
}

// Error is a failure while building a state delta.
type Error struct {
	Selector string
	Type     string
	Err      error
}

func (e *Error) Error() string {
	return fmt.Sprintf("reduce %s on %q: %v", e.Type, e.Selector, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// For returns the reducer for one organism.
func For(selector string, opts Options) store.Reducer[*ir.State, ir.Action] {
	kind := ir.KindOf(selector)
	logger := opts.logger().With("selector", selector)

	return func(prev *ir.State, a ir.Action) (*ir.State, error) {
		if a.Selector != selector {
			if prev == nil {
				return ir.NewState(kind), nil
			}
			return prev, nil
		}

		next, err := reduce(kind, prev, a)
		if err != nil {
			logger.Error("reduction failed", "type", a.Type, "error", err)
			return prev, &Error{Selector: selector, Type: a.Type, Err: err}
		}

		if opts.Custom != nil {
			custom, err := opts.Custom.Reduce(next.Clone(), a, a.Organism, prev.Clone())
			if err != nil {
				logger.Error("custom reducer failed", "type", a.Type, "error", err)
				return prev, &Error{Selector: selector, Type: a.Type, Err: fmt.Errorf("custom reducer: %w", err)}
			}
			if custom != nil {
				custom.Kind = kind
				normalize(custom)
				next = custom
			} else {
				logger.Debug("custom reducer kept computed state", "type", a.Type)
			}
		}
		return next, nil
	}
}

// Build combines one reducer per selector into the whole-app reducer.
func Build(selectors []string, opts Options) store.Reducer[Tree, ir.Action] {
	reducers := make(map[string]store.Reducer[*ir.State, ir.Action], len(selectors))
	for _, sel := range selectors {
		reducers[sel] = For(sel, opts)
	}
	return store.Combine(reducers)
}

// Selectors returns the keys of a tree in sorted order.
func Selectors(t Tree) []string {
	out := make([]string, 0, len(t))
	for k := range t {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func reduce(kind ir.OrganismKind, prev *ir.State, a ir.Action) (*ir.State, error) {
	var next *ir.State
	if prev == nil || prev.Kind != kind {
		next = ir.NewState(kind)
	} else {
		next = prev.Clone()
	}

	live := false
	var liveMembers []bool
	if kind == ir.ElementOrganism {
		normalize(next)
		resizeMembers(next, a.Organism)
		live = rederive(next, a.Organism, -1)
		liveMembers = make([]bool, len(next.Members))
		for i := range next.Members {
			liveMembers[i] = rederive(&next.Members[i], a.Organism, i)
		}
	}

	apply := transforms[a.Method]
	if apply == nil {
		return next, nil
	}

	// Class operations were already applied to the element and read back
	// by rederive; replaying a toggle would undo it.
	replay := !a.Method.Has(ir.TraitClass)
	if !replay {
		// Still reject malformed arguments.
		scratch := ir.NewMemberState()
		if err := apply(&scratch, a); err != nil {
			return nil, err
		}
	}

	if replay || !live {
		if err := apply(next, a); err != nil {
			return nil, err
		}
	}
	if kind != ir.ElementOrganism || a.Target.IsZero() {
		return next, nil
	}
	for _, i := range a.Target.Indices() {
		if i < 0 || i >= len(next.Members) {
			continue
		}
		if !replay && liveMembers[i] {
			continue
		}
		if err := apply(&next.Members[i], a); err != nil {
			return nil, fmt.Errorf("member %d: %w", i, err)
		}
	}
	return next, nil
}

// resizeMembers matches the member list to the live member count. A shrink
// rebuilds every member from scratch; growth pads the tail.
func resizeMembers(s *ir.State, org ir.Subject) {
	if org == nil {
		return
	}
	live := org.MemberCount()
	if live < len(s.Members) {
		s.Members = make([]ir.State, live)
		for i := range s.Members {
			s.Members[i] = ir.NewMemberState()
		}
		return
	}
	for len(s.Members) < live {
		s.Members = append(s.Members, ir.NewMemberState())
	}
}

// rederive resets attributes and classList from the live element. It
// reports whether a live element was found.
func rederive(s *ir.State, org ir.Subject, member int) bool {
	if org == nil {
		return false
	}
	attrs, ok := org.LiveAttributes(member)
	if !ok {
		return false
	}
	s.Attributes = attrs
	if s.Attributes == nil {
		s.Attributes = map[string]string{}
	}
	s.ClassList = splitClasses(s.Attributes["class"])
	return true
}

// normalize fills in the element maps a decoded or custom state may lack.
func normalize(s *ir.State) {
	if s.Kind != ir.ElementOrganism {
		return
	}
	if s.Attributes == nil {
		s.Attributes = map[string]string{}
	}
	if s.ClassList == nil {
		s.ClassList = []string{}
	}
	if s.Style == nil {
		s.Style = map[string]string{}
	}
	if s.Members == nil {
		s.Members = []ir.State{}
	}
	for i := range s.Members {
		s.Members[i].Kind = ir.ElementOrganism
		normalize(&s.Members[i])
	}
}

package engine

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/roach88/requerio/internal/dom"
	"github.com/roach88/requerio/internal/ir"
	"github.com/roach88/requerio/internal/reducer"
	"github.com/roach88/requerio/internal/store"
)

// Middleware is store middleware over the whole-app state.
type Middleware = store.Middleware[reducer.Tree, ir.Action]

// Engine owns the organisms of one document and the store holding their
// state.
//
// INVARIANTS:
//   - state never references live nodes
//   - after every dispatch, an organism's state has one member per live
//     member handle
//   - a dispatch changes only the addressed organism's subtree, except
//     focus and blur, which also update the document organism
type Engine struct {
	doc       *dom.Document
	organisms map[string]*Organism
	selectors []string // bound selectors, sorted

	store      *store.Store[reducer.Tree, ir.Action]
	custom     reducer.Custom
	middleware []Middleware
	logger     *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithCustomReducer runs c after the built-in transform of every action.
func WithCustomReducer(c reducer.Custom) Option {
	return func(e *Engine) {
		e.custom = c
	}
}

// WithMiddleware appends store middleware (journal, metrics, ...). The
// first one given is the outermost.
func WithMiddleware(mw ...Middleware) Option {
	return func(e *Engine) {
		e.middleware = append(e.middleware, mw...)
	}
}

// WithLogger sets the engine logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = l
	}
}

// New creates an engine over doc. organisms maps each selector to a nil
// placeholder; Init fills the map in place, so callers may keep using it.
func New(doc *dom.Document, organisms map[string]*Organism, opts ...Option) *Engine {
	if organisms == nil {
		organisms = make(map[string]*Organism)
	}
	e := &Engine{
		doc:       doc,
		organisms: organisms,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Init builds the combined reducer, creates the store and binds every
// organism in the map. Calling Init again is a no-op.
func (e *Engine) Init() error {
	if e.store != nil {
		return nil
	}
	for sel := range e.organisms {
		e.bind(sel)
	}

	s, err := store.New(
		reducer.Build(e.selectors, e.reducerOptions()),
		reducer.Tree{},
		store.WithInitAction[reducer.Tree](ir.InitAction()),
		store.WithMiddleware(e.middleware...),
	)
	if err != nil {
		return fmt.Errorf("init store: %w", err)
	}
	e.store = s
	e.logger.Debug("engine initialized", "organisms", len(e.selectors))
	return nil
}

// Incept adds organisms at runtime. Known selectors are skipped. The
// combined reducer is rebuilt; existing state is kept.
func (e *Engine) Incept(selectors ...string) error {
	added := 0
	for _, sel := range selectors {
		if o := e.organisms[sel]; o != nil && o.bound {
			continue
		}
		if _, ok := e.organisms[sel]; !ok {
			e.organisms[sel] = nil
		}
		if e.store == nil {
			// Init binds it.
			continue
		}
		e.bind(sel)
		added++
	}
	if added == 0 || e.store == nil {
		return nil
	}
	if err := e.store.ReplaceReducer(reducer.Build(e.selectors, e.reducerOptions())); err != nil {
		return fmt.Errorf("incept: %w", err)
	}
	e.logger.Debug("organisms incepted", "added", added, "organisms", len(e.selectors))
	return nil
}

// bind resolves sel and wires its organism to the engine. A non-nil,
// unbound organism in the map is filled in place.
func (e *Engine) bind(sel string) *Organism {
	o := e.organisms[sel]
	if o != nil && o.bound {
		return o
	}
	if o == nil {
		o = &Organism{}
	}
	o.engine = e
	o.selector = sel
	o.kind = ir.KindOf(sel)
	o.selection = e.resolve(sel)
	e.populateMembers(o)
	o.bound = true
	e.organisms[sel] = o

	i := sort.SearchStrings(e.selectors, sel)
	if i == len(e.selectors) || e.selectors[i] != sel {
		e.selectors = append(e.selectors, "")
		copy(e.selectors[i+1:], e.selectors[i:])
		e.selectors[i] = sel
	}
	return o
}

func (e *Engine) reducerOptions() reducer.Options {
	return reducer.Options{Custom: e.custom, Logger: e.logger}
}

// Document returns the live tree.
func (e *Engine) Document() *dom.Document {
	return e.doc
}

// Organism looks up a bound organism.
func (e *Engine) Organism(selector string) (*Organism, bool) {
	o := e.organisms[selector]
	if o == nil || !o.bound {
		return nil, false
	}
	return o, true
}

// Selectors returns the bound selectors in sorted order.
func (e *Engine) Selectors() []string {
	out := make([]string, len(e.selectors))
	copy(out, e.selectors)
	return out
}

// State reconciles every organism with the live tree and returns a deep
// copy of the whole-app state.
func (e *Engine) State() (reducer.Tree, error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	for _, sel := range e.selectors {
		if err := e.reconcile(e.organisms[sel]); err != nil {
			return nil, err
		}
	}
	return e.snapshot(), nil
}

// Snapshot returns a deep copy of the stored state without reconciling.
func (e *Engine) Snapshot() reducer.Tree {
	if e.store == nil {
		return reducer.Tree{}
	}
	return e.snapshot()
}

func (e *Engine) snapshot() reducer.Tree {
	tree := e.store.GetState()
	out := make(reducer.Tree, len(tree))
	for k, v := range tree {
		out[k] = v.Clone()
	}
	return out
}

// Subscribe registers fn to run after every successful dispatch.
func (e *Engine) Subscribe(fn func(reducer.Tree)) (unsubscribe func(), err error) {
	if err := e.ready(); err != nil {
		return nil, err
	}
	return e.store.Subscribe(fn), nil
}

func (e *Engine) ready() error {
	if e.store == nil {
		return &DispatchError{Code: ErrCodeNotInitialized, Message: "engine not initialized; call Init first"}
	}
	return nil
}

// dispatch is the entry point of every organism dispatch.
func (e *Engine) dispatch(o *Organism, method string, args any, t ir.Target) (*Organism, error) {
	if err := e.ready(); err != nil {
		return o, err
	}
	e.resynchronize(o)
	return e.run(o, method, args, t)
}

// run executes and reduces one action against an already resynchronized
// organism.
func (e *Engine) run(o *Organism, method string, args any, t ir.Target) (*Organism, error) {
	vals, err := ir.NormalizeArgs(args)
	if err != nil {
		return o, &DispatchError{Code: ErrCodeInvalidArguments, Selector: o.selector, Method: method, Err: err}
	}
	m := ir.ParseMethod(method)
	logger := e.logger.With("selector", o.selector, "method", method)

	if i, ok := t.Index(); ok && (i < 0 || i >= len(o.members)) {
		logger.Debug("member target out of range; skipping dispatch", "member", i, "members", len(o.members))
		return o, nil
	}
	if m == ir.MethodUnknown {
		logger.Debug("unknown method; dispatching without side effect")
	}

	targets := e.targets(o, t)
	if o.kind == ir.ElementOrganism && !t.IsZero() && len(targets) == 0 {
		logger.Debug("member target addresses no live member; skipping dispatch", "target", t.Indices(), "members", len(o.members))
		return o, nil
	}
	structural := m.IsStructural(vals)
	var relatives []*Organism
	if structural {
		relatives = e.relatives(o, mutatedNodes(m, targets))
	}

	eff := e.execute(o, m, vals, targets)

	if structural {
		e.cascade(o, relatives)
	}

	a := ir.NewNamedAction(o.selector, method, eff.args, t)
	a.Read = eff.read
	a.Organism = o

	tree, err := e.store.Dispatch(a)
	result := &ActionResult{Action: a, State: tree[o.selector]}
	if err != nil {
		derr := &DispatchError{Code: ErrCodeReductionFailed, Selector: o.selector, Method: method, Err: err}
		result.Err = derr
		o.previous = result
		return o, derr
	}
	o.previous = result

	if eff.focusMoved {
		if err := e.trackFocus(o, m); err != nil {
			return o, err
		}
	}
	return o, nil
}

// trackFocus mirrors a focus change into the document organism, if one is
// registered.
func (e *Engine) trackFocus(o *Organism, m ir.Method) error {
	doc, ok := e.Organism(ir.DocumentSelector)
	if !ok {
		return nil
	}
	if m == ir.MethodFocus {
		_, err := e.run(doc, ir.MethodSetActiveOrganism.String(), o.selector, ir.Target{})
		return err
	}
	st := e.store.GetState()[ir.DocumentSelector]
	if st == nil || st.ActiveOrganism == nil || *st.ActiveOrganism != o.selector {
		return nil
	}
	_, err := e.run(doc, ir.MethodSetActiveOrganism.String(), ir.Null{}, ir.Target{})
	return err
}

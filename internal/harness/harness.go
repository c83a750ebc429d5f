package harness

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sort"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/requerio/internal/dom"
	"github.com/roach88/requerio/internal/engine"
	"github.com/roach88/requerio/internal/ir"
	"github.com/roach88/requerio/internal/journal"
	"github.com/roach88/requerio/internal/manifest"
	"github.com/roach88/requerio/internal/metrics"
	"github.com/roach88/requerio/internal/reducer"
	"github.com/roach88/requerio/internal/testutil"
)

// Harness drives one scenario run. It owns the engine, the journal the
// engine records into and the deterministic clock stamping entries.
type Harness struct {
	engine  *engine.Engine
	journal *journal.Journal
	clock   *testutil.DeterministicClock
	session string
	logger  *slog.Logger
}

// Option configures a Run.
type Option func(*runConfig)

type runConfig struct {
	journal  *journal.Journal
	logger   *slog.Logger
	registry prometheus.Registerer
}

// WithJournal records into j instead of a fresh in-memory journal. The
// caller keeps ownership of j.
func WithJournal(j *journal.Journal) Option {
	return func(c *runConfig) { c.journal = j }
}

// WithLogger sets the engine logger. Runs are silent by default.
func WithLogger(l *slog.Logger) Option {
	return func(c *runConfig) { c.logger = l }
}

// WithRegisterer registers the dispatch metrics with reg.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(c *runConfig) { c.registry = reg }
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs against a fresh in-memory journal unless WithJournal
// is given. A fixed session id and a deterministic clock keep traces
// identical across runs.
//
// Execution flow:
//  1. Open the journal and a recorder for the session
//  2. Build the document and the engine, from the manifest if one is named
//  3. Run the steps, checking step expectations as they go
//  4. Collect the trace, reconcile the final state and evaluate assertions
//
// Step and assertion failures are reported in the Result; the returned
// error is for scenarios that cannot run at all.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	ctx := context.Background()
	cfg := runConfig{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	logger := cfg.logger

	j := cfg.journal
	if j == nil {
		var err error
		if j, err = journal.Open(":memory:"); err != nil {
			return nil, fmt.Errorf("failed to create in-memory journal: %w", err)
		}
		defer j.Close()
	}

	session := testutil.NewFixedSessionGenerator(scenario.Session).Generate()
	last, err := j.LastSeq(ctx, session)
	if err != nil {
		return nil, fmt.Errorf("failed to read session seq: %w", err)
	}
	clock := testutil.NewDeterministicClockAt(last)
	rec, err := journal.NewRecorder(ctx, j, session, clock, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create recorder: %w", err)
	}

	h := &Harness{
		journal: j,
		clock:   clock,
		session: session,
		logger:  logger,
	}
	mw := engine.WithMiddleware(rec.Middleware(), metrics.New(cfg.registry).Middleware())
	if h.engine, err = build(scenario, logger, mw); err != nil {
		return nil, err
	}

	result := NewResult()
	result.Session = session
	for i := range scenario.Steps {
		if err := h.executeStep(ctx, i, &scenario.Steps[i], result); err != nil {
			return nil, fmt.Errorf("failed to execute steps[%d]: %w", i, err)
		}
	}

	if result.Trace, err = h.trace(ctx); err != nil {
		return nil, err
	}
	if result.State, err = h.state(); err != nil {
		return nil, err
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions) {
		result.AddError(msg)
	}
	return result, nil
}

// build creates the initialized engine a scenario runs against. Manifest
// actions, if any, run before the steps and are part of the trace.
func build(s *Scenario, logger *slog.Logger, opts ...engine.Option) (*engine.Engine, error) {
	if s.Manifest != "" {
		m, err := manifest.Load(s.Manifest)
		if err != nil {
			return nil, fmt.Errorf("failed to load manifest: %w", err)
		}
		e, err := m.Build(logger, opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to build engine: %w", err)
		}
		if err := m.Apply(e); err != nil {
			return nil, fmt.Errorf("failed to apply manifest actions: %w", err)
		}
		return e, nil
	}

	markup := s.HTML
	if s.HTMLFile != "" {
		data, err := os.ReadFile(s.HTMLFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read html file: %w", err)
		}
		markup = string(data)
	}

	var docOpts []dom.Option
	if len(s.Layout) > 0 {
		l, err := staticLayout(s.Layout)
		if err != nil {
			return nil, err
		}
		docOpts = append(docOpts, dom.WithLayout(l))
	}
	doc, err := dom.ParseString(markup, docOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to parse html: %w", err)
	}

	organisms := make(map[string]*engine.Organism, len(s.Organisms))
	for _, sel := range s.Organisms {
		organisms[sel] = nil
	}
	e := engine.New(doc, organisms, append([]engine.Option{engine.WithLogger(logger)}, opts...)...)
	if err := e.Init(); err != nil {
		return nil, fmt.Errorf("failed to init engine: %w", err)
	}
	return e, nil
}

// staticLayout converts the YAML layout. Selectors are added in sorted
// order so the first-match rule is stable across runs.
func staticLayout(layout map[string]LayoutBox) (*dom.StaticLayout, error) {
	selectors := make([]string, 0, len(layout))
	for sel := range layout {
		selectors = append(selectors, sel)
	}
	sort.Strings(selectors)

	l := dom.NewStaticLayout()
	for _, sel := range selectors {
		lb := layout[sel]
		var box dom.Box
		if lb.Rect != nil {
			box.Rect = rectOf(lb.Rect)
		}
		if len(lb.Metrics) > 0 {
			box.Metrics = make(map[ir.Method]float64, len(lb.Metrics))
			for name, v := range lb.Metrics {
				box.Metrics[ir.ParseMethod(name)] = v
			}
		}
		if err := l.Add(sel, box); err != nil {
			return nil, fmt.Errorf("layout: %w", err)
		}
	}
	return l, nil
}

func rectOf(fields map[string]float64) *dom.Rect {
	r := &dom.Rect{
		Top:    fields["top"],
		Left:   fields["left"],
		Width:  fields["width"],
		Height: fields["height"],
	}
	derive := func(key string, dst *float64, v float64) {
		if given, ok := fields[key]; ok {
			*dst = given
			return
		}
		*dst = v
	}
	derive("right", &r.Right, r.Left+r.Width)
	derive("bottom", &r.Bottom, r.Top+r.Height)
	derive("x", &r.X, r.Left)
	derive("y", &r.Y, r.Top)
	return r
}

// executeStep runs one step. Mismatches are recorded in result; only
// malformed steps return an error.
func (h *Harness) executeStep(ctx context.Context, index int, st *Step, result *Result) error {
	switch {
	case st.Method != "":
		h.dispatch(index, st, result)
	case st.External != nil:
		if err := h.external(st.External); err != nil {
			return err
		}
	case len(st.Incept) > 0:
		if err := h.engine.Incept(st.Incept...); err != nil {
			result.AddError(fmt.Sprintf("steps[%d]: incept: %v", index, err))
		}
	}

	if len(st.Expect) == 0 {
		return nil
	}
	snapshot := &Result{}
	var err error
	if snapshot.Trace, err = h.trace(ctx); err != nil {
		return err
	}
	if snapshot.State, err = h.state(); err != nil {
		return err
	}
	for _, msg := range EvaluateAssertions(snapshot, st.Expect) {
		result.AddError(fmt.Sprintf("steps[%d]: %s", index, msg))
	}
	return nil
}

func (h *Harness) dispatch(index int, st *Step, result *Result) {
	o, ok := h.engine.Organism(st.Organism)
	if !ok {
		result.AddError(fmt.Sprintf("steps[%d]: organism %q is not bound", index, st.Organism))
		return
	}

	var err error
	if len(st.Filter) > 0 {
		_, err = narrow(o, st.Filter).DispatchAction(st.Method, st.Args)
	} else {
		// Validated at load time.
		target, _ := memberTarget(st.Member)
		_, err = o.DispatchTarget(st.Method, st.Args, target)
	}

	h.logger.Debug("step dispatched", "step", index, "selector", st.Organism, "method", st.Method, "error", err)

	switch {
	case st.ExpectError == "" && err != nil:
		result.AddError(fmt.Sprintf("steps[%d]: %s %s: unexpected error: %v", index, st.Organism, st.Method, err))
	case st.ExpectError != "" && err == nil:
		result.AddError(fmt.Sprintf("steps[%d]: %s %s: expected error %s, got none", index, st.Organism, st.Method, st.ExpectError))
	case st.ExpectError != "":
		if code := errorCode(err); code != st.ExpectError {
			result.AddError(fmt.Sprintf("steps[%d]: %s %s: expected error %s, got %s (%v)", index, st.Organism, st.Method, st.ExpectError, code, err))
		}
	}
}

// narrower is the filter surface shared by Organism and Narrowing.
type narrower interface {
	Exclude(string) *engine.Narrowing
	HasChild(string) *engine.Narrowing
	HasParent(string) *engine.Narrowing
	HasNext(string) *engine.Narrowing
	HasPrev(string) *engine.Narrowing
	HasSibling(string) *engine.Narrowing
	HasSelector(string) *engine.Narrowing
}

// narrow applies the filters in order, starting from the organism.
func narrow(o *engine.Organism, filters []Filter) *engine.Narrowing {
	var n *engine.Narrowing
	for _, f := range filters {
		// Validated at load time.
		name, sel, _ := f.call()
		var from narrower = o
		if n != nil {
			from = n
		}
		switch name {
		case "exclude":
			n = from.Exclude(sel)
		case "has_child":
			n = from.HasChild(sel)
		case "has_parent":
			n = from.HasParent(sel)
		case "has_next":
			n = from.HasNext(sel)
		case "has_prev":
			n = from.HasPrev(sel)
		case "has_sibling":
			n = from.HasSibling(sel)
		case "has_selector":
			n = from.HasSelector(sel)
		}
	}
	return n
}

// errorCode returns the dispatch error code, or the error text for errors
// that carry none.
func errorCode(err error) string {
	var derr *engine.DispatchError
	if errors.As(err, &derr) {
		return string(derr.Code)
	}
	return err.Error()
}

// external applies a change to every node matching the step selector,
// bypassing the engine.
func (h *Harness) external(x *External) error {
	doc := h.engine.Document()
	sel := doc.Select(x.Selector)
	if sel.Length() == 0 {
		return fmt.Errorf("external: %q matches nothing", x.Selector)
	}

	for _, n := range sel.Nodes {
		keys := make([]string, 0, len(x.SetAttr))
		for k := range x.SetAttr {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			dom.SetAttr(n, k, x.SetAttr[k])
		}
		for _, k := range x.RemoveAttr {
			dom.RemoveAttr(n, k)
		}
		if x.SetValue != nil && !dom.SetValue(n, *x.SetValue) {
			return fmt.Errorf("external: %q has no value", x.Selector)
		}
		for name, v := range x.Measure {
			doc.Layout().SetMeasure(n, ir.ParseMethod(name), v)
		}
	}

	if x.Append != "" {
		sel.AppendHtml(x.Append)
	}
	if x.Focus {
		doc.Focus(sel.Nodes[0])
	}
	if x.Blur {
		doc.Blur(sel.Nodes[0])
	}
	if x.Remove {
		for _, n := range sel.Nodes {
			doc.Forget(n)
		}
		sel.Remove()
	}
	return nil
}

// trace reads back the entries this run recorded. Earlier runs sharing the
// session in a caller's journal are left out.
func (h *Harness) trace(ctx context.Context) ([]TraceEvent, error) {
	entries, err := h.journal.ReadSession(ctx, h.session)
	if err != nil {
		return nil, fmt.Errorf("failed to read trace: %w", err)
	}
	out := make([]TraceEvent, 0, len(entries))
	for _, e := range entries {
		if h.clock.Issued(e.Seq) {
			out = append(out, traceEvent(e))
		}
	}
	return out, nil
}

// state reconciles the engine and decodes the whole-app state into plain
// JSON values for path lookups.
func (h *Harness) state() (map[string]any, error) {
	tree, err := h.engine.State()
	if err != nil {
		return nil, fmt.Errorf("failed to read state: %w", err)
	}
	return decodeTree(tree)
}

func decodeTree(tree reducer.Tree) (map[string]any, error) {
	data, err := json.Marshal(tree)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("failed to decode state: %w", err)
	}
	return out, nil
}

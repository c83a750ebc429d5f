package manifest

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/requerio/internal/dom"
	"github.com/roach88/requerio/internal/engine"
	"github.com/roach88/requerio/internal/ir"
	"github.com/roach88/requerio/internal/script"
)

// StaticLayout builds the declared geometry. It returns nil when the
// manifest declares none.
func (m *Manifest) StaticLayout() (*dom.StaticLayout, error) {
	if len(m.Layout) == 0 {
		return nil, nil
	}
	l := dom.NewStaticLayout()
	for _, entry := range m.Layout {
		if err := l.Add(entry.Selector, entry.Box); err != nil {
			return nil, err
		}
	}
	return l, nil
}

// Document parses the manifest markup with its layout installed.
func (m *Manifest) Document() (*dom.Document, error) {
	var opts []dom.Option
	l, err := m.StaticLayout()
	if err != nil {
		return nil, err
	}
	if l != nil {
		opts = append(opts, dom.WithLayout(l))
	}
	return dom.ParseString(m.HTML, opts...)
}

// ScriptReducer compiles the manifest reducer. It returns nil when the
// manifest declares none.
func (m *Manifest) ScriptReducer(logger *slog.Logger) (*script.Reducer, error) {
	if m.Reducer == nil {
		return nil, nil
	}
	opts := []script.Option{script.WithLogger(logger)}
	if m.Reducer.Timeout != "" {
		d, err := time.ParseDuration(m.Reducer.Timeout)
		if err != nil {
			return nil, fmt.Errorf("reducer timeout: %w", err)
		}
		opts = append(opts, script.WithTimeout(d))
	}
	return script.Compile(m.Reducer.Name, m.Reducer.Source, opts...)
}

// Build parses the document, compiles the reducer and returns an
// initialized engine with every declared organism bound. Actions are not
// run; see Apply.
func (m *Manifest) Build(logger *slog.Logger, opts ...engine.Option) (*engine.Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}
	doc, err := m.Document()
	if err != nil {
		return nil, err
	}
	r, err := m.ScriptReducer(logger)
	if err != nil {
		return nil, err
	}

	all := []engine.Option{engine.WithLogger(logger)}
	if r != nil {
		all = append(all, engine.WithCustomReducer(r))
	}
	all = append(all, opts...)

	organisms := make(map[string]*engine.Organism, len(m.Organisms))
	for _, sel := range m.Organisms {
		organisms[sel] = nil
	}
	e := engine.New(doc, organisms, all...)
	if err := e.Init(); err != nil {
		return nil, err
	}
	return e, nil
}

// Apply runs the manifest actions in order and stops at the first failure.
func (m *Manifest) Apply(e *engine.Engine) error {
	for i, a := range m.Actions {
		o, ok := e.Organism(a.Organism)
		if !ok {
			return fmt.Errorf("action %d: organism %q is not bound", i, a.Organism)
		}
		if _, err := o.DispatchTarget(a.Method, []ir.Value(a.Args), a.Target); err != nil {
			return fmt.Errorf("action %d (%s %s): %w", i, a.Organism, a.Method, err)
		}
	}
	return nil
}

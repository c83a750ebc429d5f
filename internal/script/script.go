// Package script runs custom reducers written in JavaScript, using the goja
// interpreter.
//
// A script defines a function
//
//	function reduce(state, action, organism, prevState) { ... return state; }
//
// or is itself a single function expression with that signature. It runs
// after the built-in transform for every action addressed to an organism.
// Returning null or undefined keeps the computed state. A result carrying
// function-valued properties is discarded and the computed state kept.
package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"time"

	"github.com/dop251/goja"

	"github.com/roach88/requerio/internal/ir"
)

// DefaultTimeout bounds one reducer call.
const DefaultTimeout = time.Second

// ErrInterrupted is returned when a reducer call exceeds its timeout.
var ErrInterrupted = errors.New("script: reducer timed out")

// Reducer is a compiled JavaScript reducer. It is safe for sequential use;
// every call gets a fresh runtime.
type Reducer struct {
	name    string
	program *goja.Program
	timeout time.Duration
	logger  *slog.Logger
}

// Option configures a Reducer.
type Option func(*Reducer)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(r *Reducer) {
		r.timeout = d
	}
}

// WithLogger sets the logger used for discarded results.
func WithLogger(l *slog.Logger) Option {
	return func(r *Reducer) {
		r.logger = l
	}
}

// Compile compiles src. name is used in error positions.
func Compile(name, src string, opts ...Option) (*Reducer, error) {
	// A bare function expression is bound to reduce; anything else must
	// declare reduce itself.
	p, err := goja.Compile(name, "var reduce = (\n"+src+"\n);", true)
	if err != nil {
		p, err = goja.Compile(name, src, true)
		if err != nil {
			return nil, fmt.Errorf("compile reducer %s: %w", name, err)
		}
	}

	r := &Reducer{
		name:    name,
		program: p,
		timeout: DefaultTimeout,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Reduce implements reducer.Custom.
func (r *Reducer) Reduce(state *ir.State, a ir.Action, org ir.Subject, prev *ir.State) (*ir.State, error) {
	rt := goja.New()
	timer := time.AfterFunc(r.timeout, func() {
		rt.Interrupt(ErrInterrupted)
	})
	defer timer.Stop()

	if _, err := rt.RunProgram(r.program); err != nil {
		return nil, r.wrap(err)
	}
	fn, ok := goja.AssertFunction(rt.Get("reduce"))
	if !ok {
		return nil, fmt.Errorf("script %s: reduce is not a function", r.name)
	}

	stateVal, err := toJS(rt, state)
	if err != nil {
		return nil, err
	}
	prevVal, err := toJS(rt, prev)
	if err != nil {
		return nil, err
	}

	out, err := fn(goja.Undefined(), stateVal, rt.ToValue(actionObject(a)), organismObject(rt, org), prevVal)
	if err != nil {
		return nil, r.wrap(err)
	}
	if out == nil || goja.IsUndefined(out) || goja.IsNull(out) {
		return nil, nil
	}

	exported := out.Export()
	if path, ok := findFunc(exported, "state"); ok {
		r.logger.Warn("discarding reducer result with function-valued property",
			"script", r.name,
			"selector", a.Selector,
			"type", a.Type,
			"property", path,
		)
		return nil, nil
	}

	data, err := json.Marshal(exported)
	if err != nil {
		return nil, fmt.Errorf("script %s: encode result: %w", r.name, err)
	}
	kind := ir.KindOf(a.Selector)
	if state != nil {
		kind = state.Kind
	}
	next, err := ir.DecodeState(kind, data)
	if err != nil {
		return nil, fmt.Errorf("script %s: %w", r.name, err)
	}
	return next, nil
}

func (r *Reducer) wrap(err error) error {
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("script %s: %w", r.name, ErrInterrupted)
	}
	return fmt.Errorf("script %s: %w", r.name, err)
}

// toJS hands a state to the runtime as plain data via its JSON form.
func toJS(rt *goja.Runtime, s *ir.State) (goja.Value, error) {
	if s == nil {
		return goja.Null(), nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encode state: %w", err)
	}
	var plain any
	if err := json.Unmarshal(data, &plain); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return rt.ToValue(plain), nil
}

func actionObject(a ir.Action) map[string]any {
	args := make([]any, len(a.Args))
	for i, v := range a.Args {
		args[i] = ir.ToGo(v)
	}
	obj := map[string]any{
		"type":     a.Type,
		"selector": a.Selector,
		"method":   a.Name,
		"args":     args,
	}
	switch {
	case a.Target.IsZero():
		obj["memberIndex"] = nil
	case a.Target.IsList():
		obj["memberIndex"] = a.Target.Indices()
	default:
		i, _ := a.Target.Index()
		obj["memberIndex"] = i
	}
	return obj
}

func organismObject(rt *goja.Runtime, org ir.Subject) goja.Value {
	if org == nil {
		return goja.Null()
	}
	return rt.ToValue(map[string]any{
		"selector":    org.Selector(),
		"memberCount": org.MemberCount(),
		"attributes": func(i int) any {
			attrs, ok := org.LiveAttributes(i)
			if !ok {
				return nil
			}
			return attrs
		},
	})
}

// findFunc reports the path of the first function value inside v.
func findFunc(v any, path string) (string, bool) {
	if v == nil {
		return "", false
	}
	switch x := v.(type) {
	case map[string]any:
		for k, elem := range x {
			if p, ok := findFunc(elem, path+"."+k); ok {
				return p, true
			}
		}
		return "", false
	case []any:
		for i, elem := range x {
			if p, ok := findFunc(elem, fmt.Sprintf("%s[%d]", path, i)); ok {
				return p, true
			}
		}
		return "", false
	}
	if reflect.TypeOf(v).Kind() == reflect.Func {
		return path, true
	}
	return "", false
}

package harness

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/roach88/requerio/internal/journal"
)

// TraceEvent is one journaled dispatch as seen by trace assertions and
// golden files.
type TraceEvent struct {
	Seq      int64           `json:"seq"`
	Type     string          `json:"type"`
	Selector string          `json:"selector"`
	Method   string          `json:"method"`
	Args     json.RawMessage `json:"args"`
	Target   json.RawMessage `json:"target"`
	Error    string          `json:"error,omitempty"`
}

// String renders the event on one line: [seq] TYPE selector args, then the
// member target and the error when present.
func (e TraceEvent) String() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "[%d] %s %s %s", e.Seq, e.Type, e.Selector, e.Args)
	if len(e.Target) > 0 && string(e.Target) != "null" {
		fmt.Fprintf(&buf, " member=%s", e.Target)
	}
	if e.Error != "" {
		fmt.Fprintf(&buf, " error=%q", e.Error)
	}
	return buf.String()
}

func traceEvent(e journal.Entry) TraceEvent {
	return TraceEvent{
		Seq:      e.Seq,
		Type:     e.Type,
		Selector: e.Selector,
		Method:   e.Method,
		Args:     e.Args,
		Target:   e.Target,
		Error:    e.Error,
	}
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if every step expectation and assertion matched.
	Pass bool `json:"pass"`

	// Session is the journal session the run was recorded under.
	Session string `json:"session"`

	// Trace contains every dispatch made by the steps, in order.
	// Reads issued while evaluating the final assertions are not included.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// State is the reconciled final state, decoded from its JSON form and
	// keyed by organism selector.
	State map[string]any `json:"state,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
		State:  make(map[string]any),
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

package harness

import (
	"encoding/json"
	"fmt"
	"reflect"
	"strconv"
	"strings"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string       // Assertion type for categorization
	Expected string       // Human-readable expected outcome
	Actual   string       // Human-readable actual outcome
	Trace    []TraceEvent // Full trace for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Trace) > 0 {
		fmt.Fprintf(&buf, "\nFull trace:\n")
		for _, event := range e.Trace {
			fmt.Fprintf(&buf, "  %s\n", event)
		}
	}

	return buf.String()
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
func EvaluateAssertions(result *Result, assertions []Assertion) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertStateEquals:
			err = assertStateEquals(result.State, a)
		case AssertStateLength:
			err = assertStateLength(result.State, a)
		case AssertStateNull:
			err = assertStateNull(result.State, a)
		case AssertStateContains:
			err = assertStateContains(result.State, a)
		case AssertTraceContains:
			err = assertTraceContains(result.Trace, a)
		case AssertTraceOrder:
			err = assertTraceOrder(result.Trace, a)
		case AssertTraceCount:
			err = assertTraceCount(result.Trace, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion[%d]: %v", i, err))
		}
	}
	return errs
}

// lookup resolves a dot path in an organism's decoded state. Numeric
// segments index arrays. found is false when any segment is missing.
func lookup(state map[string]any, organism, path string) (v any, found bool) {
	v, found = state[organism]
	if !found {
		return nil, false
	}
	if path == "" {
		return v, true
	}
	for _, seg := range strings.Split(path, ".") {
		switch node := v.(type) {
		case map[string]any:
			if v, found = node[seg]; !found {
				return nil, false
			}
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil, false
			}
			v = node[i]
		default:
			return nil, false
		}
	}
	return v, true
}

func describePath(a Assertion) string {
	if a.Path == "" {
		return a.Organism
	}
	return a.Organism + " " + a.Path
}

// normalize converts a YAML-decoded value to the shape encoding/json
// produces, so ints compare equal to float64 and typed maps to generic ones.
func normalize(v any) any {
	data, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return v
	}
	return out
}

func format(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

func assertStateEquals(state map[string]any, a Assertion) error {
	actual, found := lookup(state, a.Organism, a.Path)
	if !found {
		return &AssertionError{
			Type:     AssertStateEquals,
			Expected: fmt.Sprintf("%s = %s", describePath(a), format(a.Value)),
			Actual:   "path not found",
		}
	}
	if !reflect.DeepEqual(normalize(a.Value), actual) {
		return &AssertionError{
			Type:     AssertStateEquals,
			Expected: fmt.Sprintf("%s = %s", describePath(a), format(a.Value)),
			Actual:   format(actual),
		}
	}
	return nil
}

func assertStateLength(state map[string]any, a Assertion) error {
	actual, found := lookup(state, a.Organism, a.Path)
	n := -1
	switch v := actual.(type) {
	case []any:
		n = len(v)
	case map[string]any:
		n = len(v)
	case string:
		n = len(v)
	}
	if !found || n < 0 {
		return &AssertionError{
			Type:     AssertStateLength,
			Expected: fmt.Sprintf("%s has length %d", describePath(a), a.Count),
			Actual:   fmt.Sprintf("no length: %s", format(actual)),
		}
	}
	if n != a.Count {
		return &AssertionError{
			Type:     AssertStateLength,
			Expected: fmt.Sprintf("%s has length %d", describePath(a), a.Count),
			Actual:   fmt.Sprintf("length %d: %s", n, format(actual)),
		}
	}
	return nil
}

// assertStateNull passes for null and for a missing last segment, which is
// how unread values appear.
func assertStateNull(state map[string]any, a Assertion) error {
	actual, _ := lookup(state, a.Organism, a.Path)
	if actual != nil {
		return &AssertionError{
			Type:     AssertStateNull,
			Expected: fmt.Sprintf("%s is null", describePath(a)),
			Actual:   format(actual),
		}
	}
	return nil
}

func assertStateContains(state map[string]any, a Assertion) error {
	actual, _ := lookup(state, a.Organism, a.Path)
	want := normalize(a.Value)
	switch v := actual.(type) {
	case []any:
		for _, elem := range v {
			if reflect.DeepEqual(elem, want) {
				return nil
			}
		}
	case string:
		if s, ok := want.(string); ok && strings.Contains(v, s) {
			return nil
		}
	case map[string]any:
		if s, ok := want.(string); ok {
			if _, has := v[s]; has {
				return nil
			}
		}
	}
	return &AssertionError{
		Type:     AssertStateContains,
		Expected: fmt.Sprintf("%s contains %s", describePath(a), format(a.Value)),
		Actual:   format(actual),
	}
}

// expectedArgs applies the argument normalization rule: a list stays a
// list, anything else becomes a one-element list.
func expectedArgs(args any) any {
	if list, ok := args.([]any); ok {
		return normalize(list)
	}
	return normalize([]any{args})
}

func matchEvent(event TraceEvent, a Assertion) bool {
	if event.Type != a.Action {
		return false
	}
	if a.Selector != "" && event.Selector != a.Selector {
		return false
	}
	if a.Args == nil {
		return true
	}
	var actual any
	if err := json.Unmarshal(event.Args, &actual); err != nil {
		return false
	}
	return reflect.DeepEqual(actual, expectedArgs(a.Args))
}

// assertTraceContains checks if the trace contains an action matching the
// type, and the selector and args when given.
func assertTraceContains(trace []TraceEvent, assertion Assertion) error {
	for _, event := range trace {
		if matchEvent(event, assertion) {
			return nil
		}
	}

	expected := "action " + assertion.Action
	if assertion.Selector != "" {
		expected += " on " + assertion.Selector
	}
	if assertion.Args != nil {
		expected += " with args " + format(expectedArgs(assertion.Args))
	}
	return &AssertionError{
		Type:     AssertTraceContains,
		Expected: expected,
		Actual:   "not found in trace",
		Trace:    trace,
	}
}

// assertTraceOrder checks if actions appear in the specified order.
// Actions don't need to be consecutive (intervening actions are allowed).
func assertTraceOrder(trace []TraceEvent, assertion Assertion) error {
	// Step 1: Find first position of each expected action
	positions := make(map[string]int)

	for i, event := range trace {
		for _, expectedAction := range assertion.Actions {
			if event.Type == expectedAction && positions[expectedAction] == 0 {
				positions[expectedAction] = i + 1 // 1-indexed for readability
			}
		}
	}

	// Step 2: Verify all actions found
	for _, action := range assertion.Actions {
		if positions[action] == 0 {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("all actions present: %v", assertion.Actions),
				Actual:   fmt.Sprintf("missing action: %s", action),
				Trace:    trace,
			}
		}
	}

	// Step 3: Verify order
	for i := 1; i < len(assertion.Actions); i++ {
		prev := assertion.Actions[i-1]
		curr := assertion.Actions[i]

		if positions[prev] >= positions[curr] {
			return &AssertionError{
				Type:     AssertTraceOrder,
				Expected: fmt.Sprintf("actions in order: %v", assertion.Actions),
				Actual: fmt.Sprintf("%s (pos %d) should be before %s (pos %d)",
					prev, positions[prev], curr, positions[curr]),
				Trace: trace,
			}
		}
	}

	return nil
}

// assertTraceCount checks if the action appears exactly the specified number of times.
func assertTraceCount(trace []TraceEvent, assertion Assertion) error {
	count := 0
	for _, event := range trace {
		if event.Type != assertion.Action {
			continue
		}
		if assertion.Selector != "" && event.Selector != assertion.Selector {
			continue
		}
		count++
	}

	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertTraceCount,
			Expected: fmt.Sprintf("%d occurrences of %s", assertion.Count, assertion.Action),
			Actual:   fmt.Sprintf("%d occurrences", count),
			Trace:    trace,
		}
	}

	return nil
}

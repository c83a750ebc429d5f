package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/roach88/requerio/internal/dom"
	"github.com/roach88/requerio/internal/ir"
)

// Scenario is a scripted run against a fresh engine: a page, the organisms
// bound over it, a list of steps and the assertions checked afterwards.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Session is the journal session id. Empty means
	// testutil.DefaultSession.
	Session string `yaml:"session,omitempty"`

	// Manifest points at a CUE manifest providing the page, organisms,
	// layout and reducer. It excludes HTML, HTMLFile, Organisms and Layout.
	Manifest string `yaml:"manifest,omitempty"`

	// HTML is inline page markup.
	HTML string `yaml:"html,omitempty"`

	// HTMLFile is read relative to the scenario file.
	HTMLFile string `yaml:"html_file,omitempty"`

	// Organisms are the selectors bound at Init.
	Organisms []string `yaml:"organisms,omitempty"`

	// Layout is fixed geometry keyed by selector.
	Layout map[string]LayoutBox `yaml:"layout,omitempty"`

	// Steps run in order after Init.
	Steps []Step `yaml:"steps"`

	// Assertions validate the trace and the reconciled final state.
	Assertions []Assertion `yaml:"assertions"`

	// baseDir is where relative paths resolve from.
	baseDir string
}

// LayoutBox is the YAML form of dom.Box. Omitted right, bottom, x and y
// are derived from top, left, width and height.
type LayoutBox struct {
	Rect    map[string]float64 `yaml:"rect,omitempty"`
	Metrics map[string]float64 `yaml:"metrics,omitempty"`
}

// Step is one scenario step. Exactly one of Method, External or Incept is
// set.
type Step struct {
	// Organism is the dispatch target selector.
	Organism string `yaml:"organism,omitempty"`

	// Method is the dispatched method name, e.g. addClass.
	Method string `yaml:"method,omitempty"`

	// Args is passed through ir.NormalizeArgs.
	Args any `yaml:"args,omitempty"`

	// Member is a single index or a list of indices.
	Member any `yaml:"member,omitempty"`

	// Filter narrows the organism before dispatching. Filters apply in
	// order.
	Filter []Filter `yaml:"filter,omitempty"`

	// ExpectError is the dispatch error code the step must fail with.
	ExpectError string `yaml:"expect_error,omitempty"`

	// External mutates the live tree behind the engine's back.
	External *External `yaml:"external,omitempty"`

	// Incept adds organisms at runtime.
	Incept []string `yaml:"incept,omitempty"`

	// Expect holds state assertions checked right after the step.
	Expect []Assertion `yaml:"expect,omitempty"`
}

// Filter is one narrowing call. Exactly one field is set.
type Filter struct {
	Exclude     string `yaml:"exclude,omitempty"`
	HasChild    string `yaml:"has_child,omitempty"`
	HasParent   string `yaml:"has_parent,omitempty"`
	HasNext     string `yaml:"has_next,omitempty"`
	HasPrev     string `yaml:"has_prev,omitempty"`
	HasSibling  string `yaml:"has_sibling,omitempty"`
	HasSelector string `yaml:"has_selector,omitempty"`
}

// External is a change made to the page outside the engine, the way user
// input or other scripts would. It applies to every node matching
// Selector.
type External struct {
	Selector   string             `yaml:"selector"`
	SetAttr    map[string]string  `yaml:"set_attr,omitempty"`
	RemoveAttr []string           `yaml:"remove_attr,omitempty"`
	SetValue   *string            `yaml:"set_value,omitempty"`
	Append     string             `yaml:"append,omitempty"`
	Remove     bool               `yaml:"remove,omitempty"`
	Focus      bool               `yaml:"focus,omitempty"`
	Blur       bool               `yaml:"blur,omitempty"`
	Measure    map[string]float64 `yaml:"measure,omitempty"`
}

// Assertion validates trace or state.
type Assertion struct {
	// Type is one of the Assert* constants.
	Type string `yaml:"type"`

	// Organism selects the state subtree (state assertions).
	Organism string `yaml:"organism,omitempty"`

	// Path is a dot path into the organism state, e.g.
	// "members.0.classList". Empty addresses the subtree itself.
	Path string `yaml:"path,omitempty"`

	// Value is the expected value (state_equals, state_contains).
	Value any `yaml:"value,omitempty"`

	// Action is an action type such as ADD_CLASS (trace assertions).
	Action string `yaml:"action,omitempty"`

	// Selector restricts trace_contains and trace_count to one organism.
	Selector string `yaml:"selector,omitempty"`

	// Args are the expected recorded args (trace_contains).
	Args any `yaml:"args,omitempty"`

	// Count is the expected length (state_length) or number of
	// occurrences (trace_count).
	Count int `yaml:"count,omitempty"`

	// Actions is the expected action order (trace_order).
	Actions []string `yaml:"actions,omitempty"`
}

// Assertion type constants.
const (
	AssertStateEquals   = "state_equals"
	AssertStateLength   = "state_length"
	AssertStateNull     = "state_null"
	AssertStateContains = "state_contains"
	AssertTraceContains = "trace_contains"
	AssertTraceOrder    = "trace_order"
	AssertTraceCount    = "trace_count"
)

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data, filepath.Dir(path))
}

// ParseScenario parses scenario YAML. Relative html_file and manifest paths
// resolve against baseDir.
func ParseScenario(data []byte, baseDir string) (*Scenario, error) {
	// Strict field validation catches typos like "assertion:" vs "assertions:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	scenario.baseDir = baseDir

	if scenario.HTMLFile != "" {
		scenario.HTMLFile = scenario.resolve(scenario.HTMLFile)
	}
	if scenario.Manifest != "" {
		scenario.Manifest = scenario.resolve(scenario.Manifest)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

func (s *Scenario) resolve(path string) string {
	if filepath.IsAbs(path) || s.baseDir == "" {
		return path
	}
	return filepath.Join(s.baseDir, path)
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	sources := 0
	for _, set := range []bool{s.Manifest != "", s.HTML != "", s.HTMLFile != ""} {
		if set {
			sources++
		}
	}
	if sources != 1 {
		return fmt.Errorf("exactly one of manifest, html or html_file is required")
	}
	if s.Manifest != "" && (len(s.Organisms) > 0 || len(s.Layout) > 0) {
		return fmt.Errorf("organisms and layout come from the manifest")
	}
	if s.Manifest == "" && len(s.Organisms) == 0 {
		return fmt.Errorf("organisms list is required and must be non-empty")
	}
	for _, path := range []string{s.Manifest, s.HTMLFile} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return fmt.Errorf("file not found: %s", path)
		}
	}
	for _, sel := range s.Organisms {
		if err := dom.ValidSelector(sel); err != nil {
			return fmt.Errorf("organism %q: %w", sel, err)
		}
	}
	for sel, box := range s.Layout {
		for name := range box.Metrics {
			if !ir.ParseMethod(name).Has(ir.TraitNumeric) {
				return fmt.Errorf("layout %q: %q is not a metric", sel, name)
			}
		}
	}

	if len(s.Steps) == 0 && len(s.Assertions) == 0 {
		return fmt.Errorf("steps or assertions are required")
	}
	for i := range s.Steps {
		if err := validateStep(i, &s.Steps[i]); err != nil {
			return err
		}
	}
	for i := range s.Assertions {
		if err := validateAssertion(fmt.Sprintf("assertions[%d]", i), &s.Assertions[i]); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st *Step) error {
	kinds := 0
	if st.Method != "" {
		kinds++
	}
	if st.External != nil {
		kinds++
	}
	if len(st.Incept) > 0 {
		kinds++
	}
	if kinds > 1 {
		return fmt.Errorf("steps[%d]: method, external and incept are exclusive", index)
	}
	if kinds == 0 && len(st.Expect) == 0 {
		return fmt.Errorf("steps[%d]: one of method, external, incept or expect is required", index)
	}

	if st.Method != "" && st.Organism == "" {
		return fmt.Errorf("steps[%d]: organism is required for a dispatch", index)
	}
	if st.Method == "" && (st.Args != nil || st.Member != nil || len(st.Filter) > 0 || st.ExpectError != "") {
		return fmt.Errorf("steps[%d]: args, member, filter and expect_error need a method", index)
	}
	if len(st.Filter) > 0 && st.Member != nil {
		return fmt.Errorf("steps[%d]: member and filter are exclusive", index)
	}
	if _, err := memberTarget(st.Member); err != nil {
		return fmt.Errorf("steps[%d]: %w", index, err)
	}
	for j, f := range st.Filter {
		if _, _, err := f.call(); err != nil {
			return fmt.Errorf("steps[%d].filter[%d]: %w", index, j, err)
		}
	}
	if x := st.External; x != nil {
		if x.Selector == "" {
			return fmt.Errorf("steps[%d].external: selector is required", index)
		}
		for name := range x.Measure {
			if !ir.ParseMethod(name).Has(ir.TraitNumeric) {
				return fmt.Errorf("steps[%d].external: %q is not a metric", index, name)
			}
		}
	}
	for j := range st.Expect {
		where := fmt.Sprintf("steps[%d].expect[%d]", index, j)
		if err := validateAssertion(where, &st.Expect[j]); err != nil {
			return err
		}
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(where string, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("%s: type is required", where)
	}

	switch a.Type {
	case AssertStateEquals, AssertStateContains:
		if a.Organism == "" {
			return fmt.Errorf("%s: organism is required for %s", where, a.Type)
		}
		if a.Type == AssertStateContains && a.Value == nil {
			return fmt.Errorf("%s: value is required for state_contains", where)
		}
	case AssertStateLength, AssertStateNull:
		if a.Organism == "" {
			return fmt.Errorf("%s: organism is required for %s", where, a.Type)
		}
		if a.Count < 0 {
			return fmt.Errorf("%s: count must be non-negative", where)
		}
	case AssertTraceContains:
		if a.Action == "" {
			return fmt.Errorf("%s: action is required for trace_contains", where)
		}
	case AssertTraceOrder:
		if len(a.Actions) == 0 {
			return fmt.Errorf("%s: actions list is required for trace_order", where)
		}
	case AssertTraceCount:
		if a.Action == "" {
			return fmt.Errorf("%s: action is required for trace_count", where)
		}
		if a.Count < 0 {
			return fmt.Errorf("%s: count must be non-negative for trace_count", where)
		}
	default:
		return fmt.Errorf("%s: unknown assertion type %q", where, a.Type)
	}
	return nil
}

// memberTarget converts the YAML member field: nil, an index or a list of
// indices.
func memberTarget(member any) (ir.Target, error) {
	switch v := member.(type) {
	case nil:
		return ir.Target{}, nil
	case int:
		return ir.Member(v), nil
	case []any:
		indices := make([]int, len(v))
		for i, elem := range v {
			n, ok := elem.(int)
			if !ok {
				return ir.Target{}, fmt.Errorf("member[%d]: expected an integer, got %T", i, elem)
			}
			indices[i] = n
		}
		return ir.Members(indices...), nil
	}
	return ir.Target{}, fmt.Errorf("member: expected an integer or a list, got %T", member)
}

// call returns the filter's method name and selector.
func (f Filter) call() (name, selector string, err error) {
	set := map[string]string{
		"exclude":      f.Exclude,
		"has_child":    f.HasChild,
		"has_parent":   f.HasParent,
		"has_next":     f.HasNext,
		"has_prev":     f.HasPrev,
		"has_sibling":  f.HasSibling,
		"has_selector": f.HasSelector,
	}
	for k, v := range set {
		if v == "" {
			continue
		}
		if name != "" {
			return "", "", fmt.Errorf("only one of %s and %s may be set", name, k)
		}
		name, selector = k, v
	}
	if name == "" {
		return "", "", fmt.Errorf("filter is empty")
	}
	return name, selector, nil
}

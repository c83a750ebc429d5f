package harness

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/requerio/internal/journal"
)

func loadAndRun(t *testing.T, name string) *Result {
	t.Helper()
	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", name))
	require.NoError(t, err)
	result, err := Run(scenario)
	require.NoError(t, err)
	return result
}

func TestRun_Scenarios(t *testing.T) {
	for _, name := range []string{
		"class_toggle.yaml",
		"append_cascade.yaml",
		"narrowing.yaml",
		"external_focus.yaml",
		"measured.yaml",
	} {
		t.Run(name, func(t *testing.T) {
			result := loadAndRun(t, name)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
			assert.Empty(t, result.Errors)
		})
	}
}

func TestRun_TraceIsDeterministic(t *testing.T) {
	first := loadAndRun(t, "append_cascade.yaml")
	second := loadAndRun(t, "append_cascade.yaml")
	assert.Equal(t, first.Trace, second.Trace)
	assert.Equal(t, first.State, second.State)
}

func TestRun_TraceExcludesFinalReconciliation(t *testing.T) {
	result := loadAndRun(t, "class_toggle.yaml")

	require.Len(t, result.Trace, 3)
	for i, event := range result.Trace {
		assert.Equal(t, int64(i+1), event.Seq)
		assert.Equal(t, ".child", event.Selector)
		assert.Empty(t, event.Error)
	}
	assert.Equal(t, "toggleClass", result.Trace[1].Method)
	assert.JSONEq(t, `1`, string(result.Trace[1].Target))
	assert.JSONEq(t, `["active", true]`, string(result.Trace[2].Args))
}

func TestRun_SessionFromScenario(t *testing.T) {
	result := loadAndRun(t, "external_focus.yaml")
	assert.Equal(t, "focus-session", result.Session)

	result = loadAndRun(t, "class_toggle.yaml")
	assert.Equal(t, "test-session-default", result.Session)
}

func TestRun_ManifestActionsComeFirst(t *testing.T) {
	result := loadAndRun(t, "measured.yaml")
	require.GreaterOrEqual(t, len(result.Trace), 4)
	assert.Equal(t, "INNER_WIDTH", result.Trace[0].Type)
	assert.Equal(t, "window", result.Trace[0].Selector)
	assert.JSONEq(t, `[1024]`, string(result.Trace[0].Args))
	assert.Equal(t, "GET_BOUNDING_CLIENT_RECT", result.Trace[1].Type)
}

func TestRun_FailingAssertions(t *testing.T) {
	scenario := &Scenario{
		Name:      "failing",
		HTML:      `<p id="a" class="x">hi</p>`,
		Organisms: []string{"#a"},
		Steps: []Step{
			{Organism: "#a", Method: "addClass", Args: "y"},
		},
		Assertions: []Assertion{
			{Type: AssertStateEquals, Organism: "#a", Path: "classList", Value: []any{"x"}},
			{Type: AssertTraceCount, Action: "ADD_CLASS", Count: 2},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 2)
	assert.Contains(t, result.Errors[0], "state_equals")
	assert.Contains(t, result.Errors[1], "trace_count")
}

func TestRun_UnexpectedDispatchError(t *testing.T) {
	scenario := &Scenario{
		Name:      "bad_args",
		HTML:      `<p id="a">hi</p>`,
		Organisms: []string{"#a"},
		Steps: []Step{
			{Organism: "#a", Method: "addClass", Args: map[string]any{"not": "a class"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "unexpected error")

	require.Len(t, result.Trace, 1, "failed dispatches are journaled")
	assert.Contains(t, result.Trace[0].Error, "ADD_CLASS")
}

func TestRun_ExpectErrorMismatch(t *testing.T) {
	scenario := &Scenario{
		Name:      "wrong_code",
		HTML:      `<p id="a">hi</p>`,
		Organisms: []string{"#a"},
		Steps: []Step{
			{Organism: "#a", Method: "addClass", Args: "fine", ExpectError: "REDUCTION_FAILED"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "got none")
}

func TestRun_UnboundOrganism(t *testing.T) {
	scenario := &Scenario{
		Name:      "unbound",
		HTML:      `<p id="a">hi</p>`,
		Organisms: []string{"#a"},
		Steps: []Step{
			{Organism: "#b", Method: "addClass", Args: "x"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], `"#b" is not bound`)
}

func TestRun_Incept(t *testing.T) {
	scenario := &Scenario{
		Name:      "incept",
		HTML:      `<div id="a"><p class="late">x</p></div>`,
		Organisms: []string{"#a"},
		Steps: []Step{
			{Incept: []string{".late"}},
			{Organism: ".late", Method: "addClass", Args: "bound"},
		},
		Assertions: []Assertion{
			{Type: AssertStateContains, Organism: ".late", Path: "classList", Value: "bound"},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Contains(t, result.State, ".late")
}

func TestRun_ExternalMissingSelector(t *testing.T) {
	scenario := &Scenario{
		Name:      "external_missing",
		HTML:      `<p id="a">hi</p>`,
		Organisms: []string{"#a"},
		Steps: []Step{
			{External: &External{Selector: "#nope", Remove: true}},
		},
	}

	_, err := Run(scenario)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matches nothing")
}

func TestRun_ExternalAttributes(t *testing.T) {
	scenario := &Scenario{
		Name:      "external_attrs",
		HTML:      `<p id="a" title="old" hidden>hi</p>`,
		Organisms: []string{"#a"},
		Steps: []Step{
			{External: &External{
				Selector:   "#a",
				SetAttr:    map[string]string{"title": "new", "lang": "en"},
				RemoveAttr: []string{"hidden"},
			}},
		},
		Assertions: []Assertion{
			{Type: AssertStateEquals, Organism: "#a", Path: "attributes", Value: map[string]any{"id": "a", "title": "new", "lang": "en"}},
		},
	}

	result, err := Run(scenario)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Empty(t, result.Trace, "final reconciliation is not part of the trace")
}

func TestRectOf_DerivesEdges(t *testing.T) {
	r := rectOf(map[string]float64{"top": 5, "left": 10, "width": 100, "height": 20})
	assert.Equal(t, 110.0, r.Right)
	assert.Equal(t, 25.0, r.Bottom)
	assert.Equal(t, 10.0, r.X)
	assert.Equal(t, 5.0, r.Y)

	r = rectOf(map[string]float64{"left": 10, "width": 100, "right": 90})
	assert.Equal(t, 90.0, r.Right, "given edges win")
}

func TestRun_WithJournal(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "run.db"))
	require.NoError(t, err)
	defer j.Close()

	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "class_toggle.yaml"))
	require.NoError(t, err)
	scenario.Session = "kept"

	result, err := Run(scenario, WithJournal(j))
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)

	entries, err := j.ReadSession(context.Background(), "kept")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(entries), 3, "the caller's journal keeps the run")
	assert.Equal(t, "ADD_CLASS", entries[0].Type)
}

func TestRun_WithJournal_RerunContinuesSession(t *testing.T) {
	j, err := journal.Open(filepath.Join(t.TempDir(), "rerun.db"))
	require.NoError(t, err)
	defer j.Close()

	scenario, err := LoadScenario(filepath.Join("testdata", "scenarios", "class_toggle.yaml"))
	require.NoError(t, err)
	scenario.Session = "rerun"

	first, err := Run(scenario, WithJournal(j))
	require.NoError(t, err)
	require.True(t, first.Pass, "errors: %v", first.Errors)
	require.NotEmpty(t, first.Trace)

	ctx := context.Background()
	lastFirst, err := j.LastSeq(ctx, "rerun")
	require.NoError(t, err)

	second, err := Run(scenario, WithJournal(j))
	require.NoError(t, err)
	assert.True(t, second.Pass, "errors: %v", second.Errors)
	require.Len(t, second.Trace, len(first.Trace), "the second trace holds only its own run")

	for i, ev := range second.Trace {
		assert.Equal(t, lastFirst+int64(i)+1, ev.Seq)
		assert.Equal(t, first.Trace[i].Type, ev.Type)
	}

	lastSecond, err := j.LastSeq(ctx, "rerun")
	require.NoError(t, err)
	assert.Equal(t, 2*lastFirst, lastSecond, "both runs journal the same number of entries")
}

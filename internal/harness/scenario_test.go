package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/requerio/internal/ir"
)

func TestLoadScenario_Valid(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "class_toggle.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "class_toggle", s.Name)
	assert.Equal(t, []string{"#parent", ".child"}, s.Organisms)
	require.Len(t, s.Steps, 3)
	assert.Equal(t, "addClass", s.Steps[0].Method)
	assert.Equal(t, "seen", s.Steps[0].Args)
	assert.Equal(t, 1, s.Steps[1].Member)
	assert.Equal(t, []any{"active", true}, s.Steps[2].Args)
	require.Len(t, s.Assertions, 5)
	assert.Equal(t, AssertTraceContains, s.Assertions[4].Type)
}

func TestLoadScenario_ResolvesPaths(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "append_cascade.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "pages", "list.html"), s.HTMLFile)

	s, err = LoadScenario(filepath.Join("testdata", "scenarios", "measured.yaml"))
	require.NoError(t, err)
	assert.Equal(t, filepath.Join("testdata", "scenarios", "measured.cue"), s.Manifest)
}

func TestLoadScenario_Missing(t *testing.T) {
	_, err := LoadScenario(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read scenario file")
}

func TestParseScenario_UnknownField(t *testing.T) {
	_, err := ParseScenario([]byte(`
name: typo
html: <p id="a"></p>
organisms: ["#a"]
assertion:
  - type: trace_count
`), "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse YAML")
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: `{html: "<p></p>", organisms: ["#a"], steps: [{organism: "#a", method: addClass}]}`,
			want: "name is required",
		},
		{
			name: "no page",
			yaml: `{name: x, organisms: ["#a"], steps: [{organism: "#a", method: addClass}]}`,
			want: "exactly one of manifest, html or html_file",
		},
		{
			name: "two pages",
			yaml: `{name: x, html: "<p></p>", html_file: page.html, organisms: ["#a"]}`,
			want: "exactly one of manifest, html or html_file",
		},
		{
			name: "no organisms",
			yaml: `{name: x, html: "<p></p>", steps: [{organism: "#a", method: addClass}]}`,
			want: "organisms list is required",
		},
		{
			name: "bad organism selector",
			yaml: `{name: x, html: "<p></p>", organisms: ["[["], steps: [{organism: "[[", method: addClass}]}`,
			want: `organism "[["`,
		},
		{
			name: "unknown layout metric",
			yaml: `{name: x, html: "<p></p>", organisms: ["#a"], layout: {"#a": {metrics: {color: 1}}}, steps: [{incept: ["#b"]}]}`,
			want: `"color" is not a metric`,
		},
		{
			name: "nothing to do",
			yaml: `{name: x, html: "<p></p>", organisms: ["#a"]}`,
			want: "steps or assertions are required",
		},
		{
			name: "dispatch without organism",
			yaml: `{name: x, html: "<p></p>", organisms: ["#a"], steps: [{method: addClass}]}`,
			want: "steps[0]: organism is required",
		},
		{
			name: "mixed step",
			yaml: `{name: x, html: "<p></p>", organisms: ["#a"], steps: [{organism: "#a", method: addClass, incept: ["#b"]}]}`,
			want: "exclusive",
		},
		{
			name: "empty step",
			yaml: `{name: x, html: "<p></p>", organisms: ["#a"], steps: [{}]}`,
			want: "one of method, external, incept or expect",
		},
		{
			name: "args without method",
			yaml: `{name: x, html: "<p></p>", organisms: ["#a"], steps: [{incept: ["#b"], args: 1}]}`,
			want: "need a method",
		},
		{
			name: "member and filter",
			yaml: `{name: x, html: "<p></p>", organisms: ["#a"], steps: [{organism: "#a", method: addClass, member: 0, filter: [{exclude: .x}]}]}`,
			want: "member and filter are exclusive",
		},
		{
			name: "bad member",
			yaml: `{name: x, html: "<p></p>", organisms: ["#a"], steps: [{organism: "#a", method: addClass, member: first}]}`,
			want: "expected an integer or a list",
		},
		{
			name: "bad member list",
			yaml: `{name: x, html: "<p></p>", organisms: ["#a"], steps: [{organism: "#a", method: addClass, member: [0, x]}]}`,
			want: "member[1]",
		},
		{
			name: "empty filter",
			yaml: `{name: x, html: "<p></p>", organisms: ["#a"], steps: [{organism: "#a", method: addClass, filter: [{}]}]}`,
			want: "filter is empty",
		},
		{
			name: "double filter",
			yaml: `{name: x, html: "<p></p>", organisms: ["#a"], steps: [{organism: "#a", method: addClass, filter: [{exclude: .x, has_child: .y}]}]}`,
			want: "only one of",
		},
		{
			name: "external without selector",
			yaml: `{name: x, html: "<p></p>", organisms: ["#a"], steps: [{external: {remove: true}}]}`,
			want: "selector is required",
		},
		{
			name: "unknown assertion type",
			yaml: `{name: x, html: "<p></p>", organisms: ["#a"], assertions: [{type: final_state}]}`,
			want: `unknown assertion type "final_state"`,
		},
		{
			name: "state assertion without organism",
			yaml: `{name: x, html: "<p></p>", organisms: ["#a"], assertions: [{type: state_equals, path: classList}]}`,
			want: "organism is required for state_equals",
		},
		{
			name: "contains without value",
			yaml: `{name: x, html: "<p></p>", organisms: ["#a"], assertions: [{type: state_contains, organism: "#a"}]}`,
			want: "value is required",
		},
		{
			name: "trace_order without actions",
			yaml: `{name: x, html: "<p></p>", organisms: ["#a"], assertions: [{type: trace_order}]}`,
			want: "actions list is required",
		},
		{
			name: "negative count",
			yaml: `{name: x, html: "<p></p>", organisms: ["#a"], assertions: [{type: trace_count, action: ADD_CLASS, count: -1}]}`,
			want: "count must be non-negative",
		},
		{
			name: "step expect is validated",
			yaml: `{name: x, html: "<p></p>", organisms: ["#a"], steps: [{expect: [{type: trace_contains}]}]}`,
			want: "steps[0].expect[0]: action is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml), "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseScenario_ManifestExcludesOrganisms(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.cue"), []byte(`document: html: "<p></p>"`), 0o644))

	_, err := ParseScenario([]byte(`{name: x, manifest: page.cue, organisms: ["#a"], steps: [{incept: ["#b"]}]}`), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "come from the manifest")

	_, err = ParseScenario([]byte(`{name: x, manifest: missing.cue, steps: [{incept: ["#b"]}]}`), dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "file not found")
}

func TestMemberTarget(t *testing.T) {
	target, err := memberTarget(nil)
	require.NoError(t, err)
	assert.True(t, target.IsZero())

	target, err = memberTarget(2)
	require.NoError(t, err)
	i, ok := target.Index()
	assert.True(t, ok)
	assert.Equal(t, 2, i)

	target, err = memberTarget([]any{0, 2})
	require.NoError(t, err)
	assert.True(t, target.IsList())
	assert.Equal(t, []int{0, 2}, target.Indices())

	_, err = memberTarget(1.5)
	assert.Error(t, err)
}

func TestFilter_Call(t *testing.T) {
	name, sel, err := Filter{HasSibling: ".x"}.call()
	require.NoError(t, err)
	assert.Equal(t, "has_sibling", name)
	assert.Equal(t, ".x", sel)
}

func TestStaticLayout_FromYAML(t *testing.T) {
	l, err := staticLayout(map[string]LayoutBox{
		"window": {Metrics: map[string]float64{"innerWidth": 800}},
	})
	require.NoError(t, err)

	v, ok := l.Measure(nil, ir.MethodInnerWidth)
	assert.True(t, ok)
	assert.Equal(t, 800.0, v)

	_, err = staticLayout(map[string]LayoutBox{"[[": {}})
	assert.Error(t, err)
}

package script

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/requerio/internal/ir"
)

type fakeSubject struct {
	selector string
	attrs    []map[string]string
}

func (f fakeSubject) Selector() string { return f.selector }
func (f fakeSubject) MemberCount() int { return len(f.attrs) }
func (f fakeSubject) LiveAttributes(i int) (map[string]string, bool) {
	if i < 0 {
		i = 0
	}
	if i >= len(f.attrs) {
		return nil, false
	}
	return f.attrs[i], true
}

func elementState(classes ...string) *ir.State {
	s := ir.NewState(ir.ElementOrganism)
	s.ClassList = append(s.ClassList, classes...)
	return s
}

func TestReduce_FunctionExpression(t *testing.T) {
	r, err := Compile("expr.js", `function (state, action) {
		if (action.method === "addClass") {
			state.classList.push("touched");
		}
		return state;
	}`)
	require.NoError(t, err)

	a := ir.NewAction("#main", ir.MethodAddClass, []ir.Value{ir.String("open")}, ir.Target{})
	next, err := r.Reduce(elementState("open"), a, fakeSubject{selector: "#main"}, nil)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, []string{"open", "touched"}, next.ClassList)
	assert.Equal(t, ir.ElementOrganism, next.Kind)
}

func TestReduce_DeclaredFunction(t *testing.T) {
	r, err := Compile("decl.js", `
		function helper(s) { s.attributes["data-seen"] = "yes"; return s; }
		function reduce(state, action, organism, prev) { return helper(state); }
	`)
	require.NoError(t, err)

	a := ir.NewAction("#main", ir.MethodAttr, []ir.Value{ir.String("x")}, ir.Target{})
	next, err := r.Reduce(elementState(), a, fakeSubject{selector: "#main"}, nil)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "yes", next.Attributes["data-seen"])
}

func TestReduce_SeesOrganismAndPrev(t *testing.T) {
	r, err := Compile("org.js", `function (state, action, organism, prev) {
		state.attributes.count = String(organism.memberCount);
		state.attributes.first = organism.attributes(0).id;
		state.attributes.hadPrev = String(prev !== null);
		state.attributes.target = String(action.memberIndex);
		return state;
	}`)
	require.NoError(t, err)

	org := fakeSubject{selector: "li", attrs: []map[string]string{{"id": "a"}, {"id": "b"}}}
	a := ir.NewAction("li", ir.MethodAddClass, []ir.Value{ir.String("x")}, ir.Member(1))
	next, err := r.Reduce(elementState(), a, org, elementState())
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, "2", next.Attributes["count"])
	assert.Equal(t, "a", next.Attributes["first"])
	assert.Equal(t, "true", next.Attributes["hadPrev"])
	assert.Equal(t, "1", next.Attributes["target"])
}

func TestReduce_NullKeepsComputed(t *testing.T) {
	r, err := Compile("null.js", `function () { return null; }`)
	require.NoError(t, err)

	a := ir.NewAction("#main", ir.MethodAddClass, nil, ir.Target{})
	next, err := r.Reduce(elementState(), a, fakeSubject{selector: "#main"}, nil)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestReduce_FunctionPropertyDiscarded(t *testing.T) {
	r, err := Compile("fn.js", `function (state) {
		state.data = { cb: function () { return 1; } };
		return state;
	}`)
	require.NoError(t, err)

	a := ir.NewAction("#main", ir.MethodData, nil, ir.Target{})
	next, err := r.Reduce(elementState(), a, fakeSubject{selector: "#main"}, nil)
	require.NoError(t, err)
	assert.Nil(t, next)
}

func TestReduce_ThrownErrorReturned(t *testing.T) {
	r, err := Compile("throw.js", `function () { throw new Error("boom"); }`)
	require.NoError(t, err)

	a := ir.NewAction("#main", ir.MethodAddClass, nil, ir.Target{})
	_, err = r.Reduce(elementState(), a, fakeSubject{selector: "#main"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestReduce_Timeout(t *testing.T) {
	r, err := Compile("loop.js", `function () { for (;;) {} }`, WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	a := ir.NewAction("#main", ir.MethodAddClass, nil, ir.Target{})
	_, err = r.Reduce(elementState(), a, fakeSubject{selector: "#main"}, nil)
	require.ErrorIs(t, err, ErrInterrupted)
}

func TestReduce_WindowShape(t *testing.T) {
	r, err := Compile("win.js", `function (state) { state.scrollTop = 40; return state; }`)
	require.NoError(t, err)

	a := ir.NewAction(ir.WindowSelector, ir.MethodScrollTop, []ir.Value{ir.Int(40)}, ir.Target{})
	next, err := r.Reduce(ir.NewState(ir.WindowOrganism), a, fakeSubject{selector: ir.WindowSelector}, nil)
	require.NoError(t, err)
	require.NotNil(t, next)
	assert.Equal(t, ir.WindowOrganism, next.Kind)
	require.NotNil(t, next.ScrollTop)
	assert.Equal(t, 40.0, *next.ScrollTop)
}

func TestCompile_SyntaxError(t *testing.T) {
	_, err := Compile("bad.js", `function (state {`)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad.js")
}

func TestReduce_MissingReduce(t *testing.T) {
	r, err := Compile("none.js", `var x = 1;`)
	require.NoError(t, err)

	a := ir.NewAction("#main", ir.MethodAddClass, nil, ir.Target{})
	_, err = r.Reduce(elementState(), a, fakeSubject{selector: "#main"}, nil)
	require.Error(t, err)
}

package engine

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/requerio/internal/dom"
	"github.com/roach88/requerio/internal/ir"
)

func TestNarrowing_Filters(t *testing.T) {
	tests := []struct {
		name   string
		narrow func(o *Organism) *Narrowing
		want   []string // ids of the kept members
	}{
		{"exclude", func(o *Organism) *Narrowing { return o.Exclude(".active") }, []string{"first"}},
		{"has parent", func(o *Organism) *Narrowing { return o.HasParent("#parent") }, []string{"first", "second"}},
		{"has next", func(o *Organism) *Narrowing { return o.HasNext(".active") }, []string{"first"}},
		{"has prev", func(o *Organism) *Narrowing { return o.HasPrev(".child") }, []string{"second"}},
		{"has sibling", func(o *Organism) *Narrowing { return o.HasSibling(".active") }, []string{"first"}},
		{"has child", func(o *Organism) *Narrowing { return o.HasChild("span") }, []string{}},
		{"chained", func(o *Organism) *Narrowing { return o.HasParent("ul").Exclude("#first") }, []string{"second"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, organisms := setup(t, ".child")
			n := tt.narrow(organisms[".child"])
			require.NoError(t, n.Err())

			ids := []string{}
			for _, node := range n.Nodes() {
				id, _ := dom.Attr(node, "id")
				ids = append(ids, id)
			}
			assert.Equal(t, tt.want, ids)
			assert.Equal(t, len(tt.want), n.Len())
		})
	}
}

func TestNarrowing_DescendantFilters(t *testing.T) {
	_, organisms := setup(t, "#main, #form")
	both := organisms["#main, #form"]
	require.Equal(t, 2, both.MemberCount())

	n := both.HasSelector("input")
	require.Equal(t, 1, n.Len())
	assert.Equal(t, both.Member(1).Nodes[0], n.Nodes()[0])

	input := both.Member(1).Find("#name").Nodes[0]
	n = both.HasElement(input)
	require.Equal(t, 1, n.Len())
	assert.Equal(t, both.Member(1).Nodes[0], n.Nodes()[0])

	// An element does not contain itself.
	n = both.HasElement(both.Member(0).Nodes[0])
	assert.Equal(t, 0, n.Len())
}

func TestNarrowing_DispatchAppliesToKeptMembers(t *testing.T) {
	_, organisms := setup(t, ".child")
	child := organisms[".child"]

	_, err := child.Exclude(".active").Dispatch(ir.MethodAddClass, "x")
	require.NoError(t, err)

	assert.True(t, dom.HasClass(child.Member(0).Nodes[0], "x"))
	assert.False(t, dom.HasClass(child.Member(1).Nodes[0], "x"))

	st, err := child.GetState(0)
	require.NoError(t, err)
	assert.Contains(t, st.ClassList, "x")
	st, err = child.GetState(1)
	require.NoError(t, err)
	assert.NotContains(t, st.ClassList, "x")

	prev := child.PreviousActionResult()
	require.NotNil(t, prev)
	assert.True(t, prev.Action.Target.IsList())
	assert.Equal(t, []int{0}, prev.Action.Target.Indices())
}

func TestNarrowing_SpentAfterOneDispatch(t *testing.T) {
	_, organisms := setup(t, ".child")
	n := organisms[".child"].HasParent("#parent")

	_, err := n.Dispatch(ir.MethodAddClass, "x")
	require.NoError(t, err)

	_, err = n.Dispatch(ir.MethodAddClass, "y")
	require.Error(t, err)
	assert.True(t, IsNarrowingSpent(err))
	assert.True(t, errors.Is(err, ErrNarrowingSpent))
	assert.False(t, dom.HasClass(organisms[".child"].Member(0).Nodes[0], "y"))
}

func TestNarrowing_InvalidSelector(t *testing.T) {
	_, organisms := setup(t, ".child")
	n := organisms[".child"].HasParent("[[").Exclude(".active")

	require.Error(t, n.Err())
	_, err := n.Dispatch(ir.MethodAddClass, "x")
	var de *DispatchError
	require.True(t, errors.As(err, &de))
	assert.Equal(t, ErrCodeInvalidSelector, de.Code)
}

func TestNarrowing_DropsMembersRemovedBeforeDispatch(t *testing.T) {
	_, organisms := setup(t, ".child")
	child := organisms[".child"]

	n := child.HasParent("#parent")
	require.Equal(t, 2, n.Len())

	// Remove the first member outside the engine.
	child.Member(0).Remove()

	_, err := n.Dispatch(ir.MethodAddClass, "x")
	require.NoError(t, err)

	require.Equal(t, 1, child.MemberCount())
	assert.True(t, dom.HasClass(child.Member(0).Nodes[0], "x"))
	assert.Equal(t, []int{0}, child.PreviousActionResult().Action.Target.Indices())
}

package dom

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributes(t *testing.T) {
	d := mustParse(t)
	n := d.Select("#main").Nodes[0]

	attrs := Attributes(n)
	assert.Equal(t, "main", attrs["id"])
	assert.Equal(t, "a b", attrs["class"])

	SetAttr(n, "role", "region")
	SetAttr(n, "id", "primary")
	RemoveAttr(n, "class")

	attrs = Attributes(n)
	assert.Equal(t, "region", attrs["role"])
	assert.Equal(t, "primary", attrs["id"])
	assert.NotContains(t, attrs, "class")
	assert.Nil(t, Attributes(nil))
}

func TestClasses(t *testing.T) {
	d := mustParse(t)
	n := d.Select("#main").Nodes[0]

	assert.Equal(t, []string{"a", "b"}, Classes(n))
	assert.True(t, HasClass(n, "b"))
	assert.False(t, HasClass(n, "c"))
	assert.Equal(t, []string{"x", "y"}, SplitClasses("  x\n\ty  "))
}

func TestInnerHTML(t *testing.T) {
	d, err := ParseString(`<div id="x"><b>hi</b> there</div>`)
	require.NoError(t, err)

	got, err := InnerHTML(d.Select("#x").Nodes[0])
	require.NoError(t, err)
	assert.Equal(t, "<b>hi</b> there", got)
}

func TestValue(t *testing.T) {
	d := mustParse(t)

	v, ok := Value(d.Select("#name").Nodes[0])
	assert.True(t, ok)
	assert.Equal(t, "bob", v)

	v, ok = Value(d.Select("#bio").Nodes[0])
	assert.True(t, ok)
	assert.Equal(t, "hello", v)

	v, ok = Value(d.Select("#pick").Nodes[0])
	assert.True(t, ok)
	assert.Equal(t, "2", v)

	_, ok = Value(d.Select("#main").Nodes[0])
	assert.False(t, ok)
}

func TestSetValue(t *testing.T) {
	d := mustParse(t)

	require.True(t, SetValue(d.Select("#name").Nodes[0], "alice"))
	require.True(t, SetValue(d.Select("#bio").Nodes[0], "bye"))
	require.True(t, SetValue(d.Select("#pick").Nodes[0], "1"))
	assert.False(t, SetValue(d.Select("#main").Nodes[0], "x"))

	v, _ := Value(d.Select("#name").Nodes[0])
	assert.Equal(t, "alice", v)
	v, _ = Value(d.Select("#bio").Nodes[0])
	assert.Equal(t, "bye", v)
	v, _ = Value(d.Select("#pick").Nodes[0])
	assert.Equal(t, "1", v)
}

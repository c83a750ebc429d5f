package ir

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStateHash_StableAcrossClones(t *testing.T) {
	s := NewState(ElementOrganism)
	s.Attributes["id"] = "main"
	s.ClassList = []string{"a"}

	h1, err := StateHash(s)
	require.NoError(t, err)
	h2, err := StateHash(s.Clone())
	require.NoError(t, err)

	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 64)
}

func TestStateHash_NullVsEmpty(t *testing.T) {
	a := NewState(ElementOrganism)
	b := NewState(ElementOrganism)
	b.InnerHTML = Str("")

	ha, err := StateHash(a)
	require.NoError(t, err)
	hb, err := StateHash(b)
	require.NoError(t, err)
	assert.NotEqual(t, ha, hb, "never-read and read-empty must hash differently")
}

func TestActionID(t *testing.T) {
	a := NewAction(".x", MethodAddClass, []Value{String("on")}, Target{})
	b := NewAction(".x", MethodAddClass, []Value{String("on")}, Member(0))

	id1 := MustActionID("s1", 1, a)
	assert.Equal(t, id1, MustActionID("s1", 1, a))
	assert.NotEqual(t, id1, MustActionID("s1", 2, a))
	assert.NotEqual(t, id1, MustActionID("s1", 1, b))
}

func TestStateHashJSON_MatchesStateHash(t *testing.T) {
	s := NewState(ElementOrganism)
	s.Attributes["class"] = "b a"
	s.ClassList = []string{"b", "a"}
	s.Value = Str("<x>")

	want, err := StateHash(s)
	require.NoError(t, err)

	// Plain json.Marshal escapes HTML and orders keys by struct field.
	data, err := json.Marshal(s)
	require.NoError(t, err)
	got, err := StateHashJSON(data)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	nullHash, err := StateHash(nil)
	require.NoError(t, err)
	got, err = StateHashJSON([]byte("null"))
	require.NoError(t, err)
	assert.Equal(t, nullHash, got)

	_, err = StateHashJSON([]byte("{"))
	assert.Error(t, err)
}

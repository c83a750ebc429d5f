package store

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type box struct{ n int }

func keyed(key string) Reducer[*box, string] {
	return func(prev *box, a string) (*box, error) {
		if prev == nil {
			prev = &box{}
		}
		if a == key {
			return &box{n: prev.n + 1}, nil
		}
		if a == "fail:"+key {
			return prev, errors.New("bad " + key)
		}
		return prev, nil
	}
}

func TestCombine_RoutesAndKeepsOthersIdentical(t *testing.T) {
	r := Combine(map[string]Reducer[*box, string]{
		"a": keyed("a"),
		"b": keyed("b"),
	})

	s1, err := r(nil, "init")
	require.NoError(t, err)
	require.Len(t, s1, 2)

	s2, err := r(s1, "a")
	require.NoError(t, err)
	assert.Equal(t, 1, s2["a"].n)
	assert.Same(t, s1["b"], s2["b"], "untouched keys keep the identical value")
	assert.Equal(t, 0, s1["a"].n, "previous map is not mutated")
}

func TestCombine_ErrorAbortsWholeReduction(t *testing.T) {
	r := Combine(map[string]Reducer[*box, string]{
		"a": keyed("a"),
		"b": keyed("b"),
	})
	s1, err := r(nil, "init")
	require.NoError(t, err)

	s2, err := r(s1, "fail:b")
	assert.ErrorContains(t, err, "b: bad b")
	assert.Equal(t, s1, s2)
}

func TestCombine_WithStore(t *testing.T) {
	s, err := New(Combine(map[string]Reducer[*box, string]{"a": keyed("a")}), nil,
		WithInitAction[map[string]*box]("init"))
	require.NoError(t, err)

	_, err = s.Dispatch("a")
	require.NoError(t, err)
	assert.Equal(t, 1, s.GetState()["a"].n)
}

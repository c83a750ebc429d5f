package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeArgs(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []Value
	}{
		{"omitted", nil, []Value{}},
		{"scalar string", "x", []Value{String("x")}},
		{"scalar int", 5, []Value{Int(5)}},
		{"integral float", 5.0, []Value{Int(5)}},
		{"fractional float", 2.5, []Value{Float(2.5)}},
		{"any slice", []any{"a", true}, []Value{String("a"), Bool(true)}},
		{"string slice", []string{"a", "b"}, []Value{String("a"), String("b")}},
		{"int slice", []int{1, 2}, []Value{Int(1), Int(2)}},
		{"map", map[string]any{"k": "v"}, []Value{Object{"k": String("v")}}},
		{"map with nil", map[string]any{"k": nil}, []Value{Object{"k": Null{}}}},
		{"bytes", []byte("hi"), []Value{String("hi")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeArgs(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNormalizeArgs_Func(t *testing.T) {
	got, err := NormalizeArgs(func(i int, cur string) string { return cur + "!" })
	require.NoError(t, err)
	require.Len(t, got, 1)
	fn, ok := got[0].(Func)
	require.True(t, ok)
	assert.Equal(t, "a!", fn(0, "a"))
	assert.True(t, HasFunc(got))
}

func TestNormalizeArgs_ClonesValueSlices(t *testing.T) {
	obj := Object{"k": String("v")}
	in := []Value{obj}
	got, err := NormalizeArgs(in)
	require.NoError(t, err)

	obj["k"] = String("changed")
	assert.Equal(t, String("v"), got[0].(Object)["k"])
}

func TestNormalizeArgs_Unsupported(t *testing.T) {
	_, err := NormalizeArgs(struct{ A int }{1})
	assert.Error(t, err)
}

func TestHasFunc_Nested(t *testing.T) {
	args := []Value{Object{"color": Func(func(int, string) string { return "red" })}}
	assert.True(t, HasFunc(args))
	assert.False(t, HasFunc([]Value{Object{"color": String("red")}}))
}

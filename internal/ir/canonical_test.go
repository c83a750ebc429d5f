package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMarshalCanonical_Object(t *testing.T) {
	b, err := MarshalCanonical(Object{"z": Int(1), "a": String("<b>&"), "m": Float(0.5)})
	require.NoError(t, err)
	assert.Equal(t, `{"a":"<b>&","m":0.5,"z":1}`, string(b))
}

func TestMarshalCanonical_GoMap(t *testing.T) {
	b, err := MarshalCanonical(map[string]any{"b": []any{1, 2.25}, "a": nil})
	require.NoError(t, err)
	assert.Equal(t, `{"a":null,"b":[1,2.25]}`, string(b))
}

func TestMarshalCanonical_NFC(t *testing.T) {
	// "e" + combining acute accent normalizes to U+00E9.
	b, err := MarshalCanonical(String("e\u0301"))
	require.NoError(t, err)
	assert.Equal(t, "\"\u00e9\"", string(b))
}

func TestMarshalCanonical_LineSeparators(t *testing.T) {
	b, err := MarshalCanonical(String("a\u2028b"))
	require.NoError(t, err)
	assert.Equal(t, "\"a\u2028b\"", string(b), "written literally, not escaped")
}

func TestMarshalCanonical_Floats(t *testing.T) {
	tests := []struct {
		in   float64
		want string
	}{
		{100, "100"},
		{-3, "-3"},
		{0.1, "0.1"},
		{1e21, "1e+21"},
		{1e-7, "1e-7"},
	}
	for _, tt := range tests {
		b, err := MarshalCanonical(Float(tt.in))
		require.NoError(t, err)
		assert.Equal(t, tt.want, string(b))
	}
}

func TestMarshalCanonical_State(t *testing.T) {
	s := NewState(DocumentOrganism)
	s.ActiveOrganism = Str("#main")
	b, err := MarshalCanonical(*s)
	require.NoError(t, err)
	assert.Equal(t, `{"activeOrganism":"#main","height":null,"scrollLeft":null,"scrollTop":null,"width":null}`, string(b))
}

func TestMarshalCanonical_FuncRejected(t *testing.T) {
	_, err := MarshalCanonical(Array{Func(func(int, string) string { return "" })})
	assert.Error(t, err)
}

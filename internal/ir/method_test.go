package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTypeLabel(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"addClass", "ADD_CLASS"},
		{"getBoundingClientRect", "GET_BOUNDING_CLIENT_RECT"},
		{"css", "CSS"},
		{"html", "HTML"},
		{"setActiveOrganism", "SET_ACTIVE_ORGANISM"},
		{"innerHTML", "INNER_HTML"},
		{"scrollTop", "SCROLL_TOP"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TypeLabel(tt.name))
		})
	}
}

func TestParseMethod_RoundTrip(t *testing.T) {
	for _, m := range Methods() {
		assert.Equal(t, m, ParseMethod(m.String()), "method %s", m)
	}
}

func TestParseMethod_Unknown(t *testing.T) {
	assert.Equal(t, MethodUnknown, ParseMethod("fadeIn"))
	assert.Equal(t, "unknown", MethodUnknown.String())
	assert.False(t, MethodUnknown.Has(TraitSetter))
}

func TestMethod_Traits(t *testing.T) {
	assert.True(t, MethodAttr.Has(TraitSetter))
	assert.True(t, MethodWidth.Has(TraitSetter|TraitNumeric))
	assert.True(t, MethodInnerWidth.Has(TraitMeasure))
	assert.False(t, MethodInnerWidth.Has(TraitSetter))
	assert.True(t, MethodGetBoundingClientRect.Has(TraitMeasure))
	assert.True(t, MethodSetBoundingClientRect.Has(TraitSynthetic))
	assert.True(t, MethodToggleClass.Has(TraitClass))
	assert.True(t, MethodBlur.Has(TraitFocus))
}

func TestMethod_IsStructural(t *testing.T) {
	assert.True(t, MethodAppend.IsStructural(nil))
	assert.True(t, MethodRemove.IsStructural(nil))
	assert.False(t, MethodHTML.IsStructural(nil), "html read is not structural")
	assert.True(t, MethodHTML.IsStructural([]Value{String("<p></p>")}))
	assert.False(t, MethodAddClass.IsStructural([]Value{String("x")}))
}

func TestMethod_Type(t *testing.T) {
	assert.Equal(t, "ADD_CLASS", MethodAddClass.Type())
	assert.Equal(t, "SET_BOUNDING_CLIENT_RECT", MethodSetBoundingClientRect.Type())
}

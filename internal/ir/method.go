package ir

import (
	"strings"
	"unicode"
)

// Method is the closed vocabulary of organism actions.
//
// Each method has a name (the caller-facing camelCase form), a canonical
// type label (UPPER_SNAKE) and a set of traits that decide how the executor
// and reducer treat it. Unknown names parse to MethodUnknown; such actions
// are still dispatched but carry no side effect and no state transform.
type Method int

const (
	MethodUnknown Method = iota

	// Class operations.
	MethodAddClass
	MethodRemoveClass
	MethodToggleClass

	// Setters that read when called without a value.
	MethodAttr
	MethodCSS
	MethodData
	MethodHTML
	MethodVal
	MethodScrollLeft
	MethodScrollTop
	MethodWidth
	MethodHeight

	// Measuring getters.
	MethodInnerWidth
	MethodInnerHeight
	MethodOuterWidth
	MethodOuterHeight
	MethodGetBoundingClientRect

	// Structural mutators.
	MethodAppend
	MethodPrepend
	MethodBefore
	MethodAfter
	MethodEmpty
	MethodDetach
	MethodRemove

	// Focus.
	MethodFocus
	MethodBlur

	// Synthetic, side-effect free.
	MethodSetBoundingClientRect
	MethodSetActiveOrganism

	methodCount
)

// Trait flags describing how a method behaves.
type Trait uint16

const (
	// TraitSetter methods take a value; with no value they read from the live tree.
	TraitSetter Trait = 1 << iota
	// TraitClass methods add, remove or toggle classes.
	TraitClass
	// TraitMeasure methods always read geometry and ignore caller arguments.
	TraitMeasure
	// TraitStructural methods change the shape of the tree.
	TraitStructural
	// TraitFocus methods move document focus.
	TraitFocus
	// TraitSynthetic methods never touch the live tree.
	TraitSynthetic
	// TraitNumeric methods record a single number in state.
	TraitNumeric
)

type methodInfo struct {
	name   string
	traits Trait
}

var methods = [methodCount]methodInfo{
	MethodUnknown:               {"", 0},
	MethodAddClass:              {"addClass", TraitClass},
	MethodRemoveClass:           {"removeClass", TraitClass},
	MethodToggleClass:           {"toggleClass", TraitClass},
	MethodAttr:                  {"attr", TraitSetter},
	MethodCSS:                   {"css", TraitSetter},
	MethodData:                  {"data", TraitSetter},
	MethodHTML:                  {"html", TraitSetter},
	MethodVal:                   {"val", TraitSetter},
	MethodScrollLeft:            {"scrollLeft", TraitSetter | TraitNumeric},
	MethodScrollTop:             {"scrollTop", TraitSetter | TraitNumeric},
	MethodWidth:                 {"width", TraitSetter | TraitNumeric},
	MethodHeight:                {"height", TraitSetter | TraitNumeric},
	MethodInnerWidth:            {"innerWidth", TraitMeasure | TraitNumeric},
	MethodInnerHeight:           {"innerHeight", TraitMeasure | TraitNumeric},
	MethodOuterWidth:            {"outerWidth", TraitMeasure | TraitNumeric},
	MethodOuterHeight:           {"outerHeight", TraitMeasure | TraitNumeric},
	MethodGetBoundingClientRect: {"getBoundingClientRect", TraitMeasure},
	MethodAppend:                {"append", TraitStructural},
	MethodPrepend:               {"prepend", TraitStructural},
	MethodBefore:                {"before", TraitStructural},
	MethodAfter:                 {"after", TraitStructural},
	MethodEmpty:                 {"empty", TraitStructural},
	MethodDetach:                {"detach", TraitStructural},
	MethodRemove:                {"remove", TraitStructural},
	MethodFocus:                 {"focus", TraitFocus},
	MethodBlur:                  {"blur", TraitFocus},
	MethodSetBoundingClientRect: {"setBoundingClientRect", TraitSynthetic},
	MethodSetActiveOrganism:     {"setActiveOrganism", TraitSynthetic},
}

var methodsByName = func() map[string]Method {
	m := make(map[string]Method, methodCount)
	for i := MethodUnknown + 1; i < methodCount; i++ {
		m[methods[i].name] = i
	}
	return m
}()

// ParseMethod resolves a method name. Unknown names return MethodUnknown.
func ParseMethod(name string) Method {
	if m, ok := methodsByName[name]; ok {
		return m
	}
	return MethodUnknown
}

// Methods returns every known method in declaration order.
func Methods() []Method {
	out := make([]Method, 0, methodCount-1)
	for i := MethodUnknown + 1; i < methodCount; i++ {
		out = append(out, i)
	}
	return out
}

// String returns the camelCase method name.
func (m Method) String() string {
	if m <= MethodUnknown || m >= methodCount {
		return "unknown"
	}
	return methods[m].name
}

// Type returns the canonical action type label, e.g. ADD_CLASS.
func (m Method) Type() string {
	return TypeLabel(m.String())
}

// Has reports whether the method carries every bit of t.
func (m Method) Has(t Trait) bool {
	if m <= MethodUnknown || m >= methodCount {
		return false
	}
	return methods[m].traits&t == t
}

// IsStructural reports whether dispatching m with args changes tree shape.
// html is structural only in its write form.
func (m Method) IsStructural(args []Value) bool {
	if m == MethodHTML {
		return len(args) > 0 && !IsNull(args[0])
	}
	return m.Has(TraitStructural)
}

// TypeLabel converts a camelCase method name to its UPPER_SNAKE action type.
//
//	TypeLabel("addClass")              // "ADD_CLASS"
//	TypeLabel("getBoundingClientRect") // "GET_BOUNDING_CLIENT_RECT"
//	TypeLabel("css")                   // "CSS"
func TypeLabel(name string) string {
	var b strings.Builder
	b.Grow(len(name) + 4)
	runes := []rune(name)
	for i, r := range runes {
		if unicode.IsUpper(r) && i > 0 {
			prev := runes[i-1]
			nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
			if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
				b.WriteByte('_')
			}
		}
		if r == '-' || r == ' ' {
			b.WriteByte('_')
			continue
		}
		b.WriteRune(unicode.ToUpper(r))
	}
	return b.String()
}

package ir

import (
	"encoding/json"
	"fmt"
	"slices"
)

// Subject is the live view of an organism that the reducer may consult.
// The engine's Organism implements it. State never holds a Subject; it only
// reads the member count and live attributes through it while reducing.
type Subject interface {
	Selector() string
	// MemberCount is the number of live member handles right now.
	MemberCount() int
	// LiveAttributes returns the attributes of member i, or of the
	// organism's first matched element when i < 0. ok is false when there
	// is no such element.
	LiveAttributes(i int) (attrs map[string]string, ok bool)
}

// Target addresses members of an organism. The zero Target addresses the
// organism as a whole.
type Target struct {
	indices []int
	list    bool
}

// Member targets a single member by zero-based index.
func Member(i int) Target {
	return Target{indices: []int{i}}
}

// Members targets a list of members; effects apply to each independently.
func Members(indices ...int) Target {
	return Target{indices: slices.Clone(indices), list: true}
}

// IsZero reports whether the target addresses the whole organism.
func (t Target) IsZero() bool {
	return len(t.indices) == 0 && !t.list
}

// IsList reports whether the target was built with Members.
func (t Target) IsList() bool {
	return t.list
}

// Index returns the single member index. ok is false for list or zero targets.
func (t Target) Index() (int, bool) {
	if t.list || len(t.indices) != 1 {
		return 0, false
	}
	return t.indices[0], true
}

// Indices returns a copy of the addressed indices.
func (t Target) Indices() []int {
	return slices.Clone(t.indices)
}

// MarshalJSON writes a single index as a number and a list as an array.
func (t Target) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	if i, ok := t.Index(); ok {
		return json.Marshal(i)
	}
	return json.Marshal(t.indices)
}

// UnmarshalJSON accepts null, a number or an array of numbers.
func (t *Target) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch v := raw.(type) {
	case nil:
		*t = Target{}
	case float64:
		*t = Member(int(v))
	case []any:
		idx := make([]int, 0, len(v))
		for _, x := range v {
			f, ok := x.(float64)
			if !ok {
				return fmt.Errorf("member index must be a number, got %T", x)
			}
			idx = append(idx, int(f))
		}
		*t = Members(idx...)
	default:
		return fmt.Errorf("invalid member target %s", string(data))
	}
	return nil
}

// Action is one dispatch: an ephemeral record consumed immediately by the
// reducer. Args are already resolved by the executor (reads filled in,
// Func values substituted).
type Action struct {
	Type     string  `json:"type"`
	Selector string  `json:"selector"`
	Method   Method  `json:"-"`
	Name     string  `json:"method"`
	Args     []Value `json:"args"`
	Target   Target  `json:"memberIndex"`

	// Read is set when the executor populated Args from the live tree
	// because the caller supplied neither a key nor a value. For attr, css
	// and data the read map then replaces the state map instead of merging.
	Read bool `json:"read,omitempty"`

	// Organism is the live view used for member resizing and attribute
	// re-derivation. Nil for actions built outside the engine.
	Organism Subject `json:"-"`
}

// NewAction builds an action for a known method.
func NewAction(selector string, m Method, args []Value, target Target) Action {
	return Action{
		Type:     m.Type(),
		Selector: selector,
		Method:   m,
		Name:     m.String(),
		Args:     args,
		Target:   target,
	}
}

// NewNamedAction builds an action from a method name, which may be unknown.
func NewNamedAction(selector, name string, args []Value, target Target) Action {
	a := NewAction(selector, ParseMethod(name), args, target)
	a.Name = name
	a.Type = TypeLabel(name)
	return a
}

// Arg returns argument i, or nil when absent.
func (a Action) Arg(i int) Value {
	if i < 0 || i >= len(a.Args) {
		return nil
	}
	return a.Args[i]
}

// InitType is the action type dispatched when a store is created or its
// reducer replaced. Its empty selector matches no organism.
const InitType = "@@requerio/INIT"

// InitAction returns the store initialization action.
func InitAction() Action {
	return Action{Type: InitType, Name: InitType}
}

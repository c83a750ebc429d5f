package reducer

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/roach88/requerio/internal/ir"
)

// transform applies one method's effect to an organism or member state.
type transform func(s *ir.State, a ir.Action) error

var transforms map[ir.Method]transform

func init() {
	transforms = map[ir.Method]transform{
		ir.MethodAddClass:    classOp(addClasses),
		ir.MethodRemoveClass: classOp(removeClasses),
		ir.MethodToggleClass: toggleClass,

		ir.MethodAttr: attr,
		ir.MethodCSS:  css,
		ir.MethodData: data,
		ir.MethodHTML: innerHTML,
		ir.MethodVal:  val,

		ir.MethodScrollLeft:  metric(ir.MethodScrollLeft),
		ir.MethodScrollTop:   metric(ir.MethodScrollTop),
		ir.MethodWidth:       metric(ir.MethodWidth),
		ir.MethodHeight:      metric(ir.MethodHeight),
		ir.MethodInnerWidth:  metric(ir.MethodInnerWidth),
		ir.MethodInnerHeight: metric(ir.MethodInnerHeight),
		ir.MethodOuterWidth:  metric(ir.MethodOuterWidth),
		ir.MethodOuterHeight: metric(ir.MethodOuterHeight),

		ir.MethodGetBoundingClientRect: boundingRect,
		ir.MethodSetBoundingClientRect: boundingRect,

		ir.MethodSetActiveOrganism: activeOrganism,
	}
}

func splitClasses(s string) []string {
	return strings.Fields(s)
}

// classNames flattens a class argument: a whitespace separated string or
// an array of such strings.
func classNames(v ir.Value) ([]string, error) {
	switch c := v.(type) {
	case nil, ir.Null:
		return nil, nil
	case ir.String:
		return splitClasses(string(c)), nil
	case ir.Array:
		var out []string
		for i, elem := range c {
			s, ok := elem.(ir.String)
			if !ok {
				return nil, fmt.Errorf("class list entry %d must be a string, got %T", i, elem)
			}
			out = append(out, splitClasses(string(s))...)
		}
		return out, nil
	}
	return nil, fmt.Errorf("class argument must be a string, got %T", v)
}

func classOp(op func(list, names []string) []string) transform {
	return func(s *ir.State, a ir.Action) error {
		if s.Kind != ir.ElementOrganism {
			return nil
		}
		if a.Method == ir.MethodRemoveClass && len(a.Args) == 0 {
			writeClasses(s, nil)
			return nil
		}
		var names []string
		for _, arg := range a.Args {
			n, err := classNames(arg)
			if err != nil {
				return err
			}
			names = append(names, n...)
		}
		writeClasses(s, op(s.ClassList, names))
		return nil
	}
}

func addClasses(list, names []string) []string {
	out := append([]string(nil), list...)
	for _, n := range names {
		if !contains(out, n) {
			out = append(out, n)
		}
	}
	return out
}

func removeClasses(list, names []string) []string {
	out := make([]string, 0, len(list))
	for _, c := range list {
		if !contains(names, c) {
			out = append(out, c)
		}
	}
	return out
}

// toggleClass flips each class, or forces add/remove when the second
// argument is a boolean switch.
func toggleClass(s *ir.State, a ir.Action) error {
	if s.Kind != ir.ElementOrganism {
		return nil
	}
	args := a.Args
	if len(args) == 1 {
		// toggleClass(["a", true]) arrives as one array argument.
		if arr, ok := args[0].(ir.Array); ok && len(arr) == 2 {
			if _, isBool := arr[1].(ir.Bool); isBool {
				args = []ir.Value(arr)
			}
		}
	}

	var names []string
	if len(args) > 0 {
		n, err := classNames(args[0])
		if err != nil {
			return err
		}
		names = n
	}

	if len(args) > 1 {
		force, ok := args[1].(ir.Bool)
		if !ok {
			return fmt.Errorf("toggleClass switch must be a boolean, got %T", args[1])
		}
		if force {
			writeClasses(s, addClasses(s.ClassList, names))
		} else {
			writeClasses(s, removeClasses(s.ClassList, names))
		}
		return nil
	}

	list := append([]string(nil), s.ClassList...)
	for _, n := range names {
		if contains(list, n) {
			list = removeClasses(list, []string{n})
		} else {
			list = append(list, n)
		}
	}
	writeClasses(s, list)
	return nil
}

// writeClasses mirrors a class list into classList and attributes.class.
func writeClasses(s *ir.State, list []string) {
	if list == nil {
		list = []string{}
	}
	s.ClassList = list
	if _, had := s.Attributes["class"]; had || len(list) > 0 {
		s.Attributes["class"] = strings.Join(list, " ")
	}
}

func contains(list []string, s string) bool {
	for _, x := range list {
		if x == s {
			return true
		}
	}
	return false
}

// objectArg returns the key/value map of a setter. The executor normalizes
// every setter form into a single Object argument. For a keyless read
// (a.Read) the map holds every entry and replaces the state map outright.
func objectArg(a ir.Action) (ir.Object, error) {
	switch v := a.Arg(0).(type) {
	case nil, ir.Null:
		return nil, nil
	case ir.Object:
		return v, nil
	}
	return nil, fmt.Errorf("%s argument must be a key/value map, got %T", a.Name, a.Arg(0))
}

func attr(s *ir.State, a ir.Action) error {
	if s.Kind != ir.ElementOrganism {
		return nil
	}
	obj, err := objectArg(a)
	if err != nil || obj == nil {
		return err
	}
	if a.Read {
		s.Attributes = map[string]string{}
	}
	for _, k := range obj.SortedKeys() {
		v := obj[k]
		if ir.IsNull(v) {
			delete(s.Attributes, k)
			continue
		}
		str, err := stringify(v)
		if err != nil {
			return fmt.Errorf("attr %q: %w", k, err)
		}
		s.Attributes[k] = str
	}
	if _, ok := obj["class"]; ok {
		s.ClassList = splitClasses(s.Attributes["class"])
	}
	return nil
}

func css(s *ir.State, a ir.Action) error {
	if s.Kind != ir.ElementOrganism {
		return nil
	}
	obj, err := objectArg(a)
	if err != nil || obj == nil {
		return err
	}
	if a.Read {
		s.Style = map[string]string{}
	}
	for _, k := range obj.SortedKeys() {
		v := obj[k]
		if ir.IsNull(v) {
			delete(s.Style, k)
			continue
		}
		str, err := stringify(v)
		if err != nil {
			return fmt.Errorf("css %q: %w", k, err)
		}
		if str == "" {
			delete(s.Style, k)
			continue
		}
		s.Style[k] = str
	}
	return nil
}

func data(s *ir.State, a ir.Action) error {
	if s.Kind != ir.ElementOrganism {
		return nil
	}
	obj, err := objectArg(a)
	if err != nil || obj == nil {
		return err
	}
	if s.Data == nil || a.Read {
		s.Data = ir.Object{}
	}
	for k, v := range obj {
		s.Data[k] = ir.Clone(v)
	}
	return nil
}

func innerHTML(s *ir.State, a ir.Action) error {
	if s.Kind != ir.ElementOrganism {
		return nil
	}
	switch v := a.Arg(0).(type) {
	case nil, ir.Null:
		return nil
	case ir.String:
		s.InnerHTML = ir.Str(string(v))
		return nil
	}
	str, err := stringify(a.Arg(0))
	if err != nil {
		return fmt.Errorf("html: %w", err)
	}
	s.InnerHTML = ir.Str(str)
	return nil
}

func val(s *ir.State, a ir.Action) error {
	if s.Kind != ir.ElementOrganism {
		return nil
	}
	v := a.Arg(0)
	if ir.IsNull(v) {
		return nil
	}
	str, err := stringify(v)
	if err != nil {
		return fmt.Errorf("val: %w", err)
	}
	s.Value = ir.Str(str)
	return nil
}

func metric(m ir.Method) transform {
	return func(s *ir.State, a ir.Action) error {
		slot := s.Metric(m)
		if slot == nil {
			return nil
		}
		// The document shape keeps scroll offsets and width/height only.
		if s.Kind == ir.DocumentOrganism && m.Has(ir.TraitMeasure) {
			return nil
		}
		f, ok := toNumber(a.Arg(0))
		if !ok {
			return nil
		}
		*slot = ir.Float64(f)
		return nil
	}
}

// boundingRect copies numeric fields only. Anything else leaves the
// previous value in place.
func boundingRect(s *ir.State, a ir.Action) error {
	if s.Kind != ir.ElementOrganism {
		return nil
	}
	obj, ok := a.Arg(0).(ir.Object)
	if !ok {
		return nil
	}
	for _, key := range ir.RectFields {
		f, ok := ir.AsNumber(obj[key])
		if !ok {
			continue
		}
		*s.BoundingRect.Field(key) = ir.Float64(f)
	}
	return nil
}

func activeOrganism(s *ir.State, a ir.Action) error {
	if s.Kind != ir.DocumentOrganism {
		return nil
	}
	switch v := a.Arg(0).(type) {
	case ir.String:
		s.ActiveOrganism = ir.Str(string(v))
	case nil, ir.Null:
		s.ActiveOrganism = nil
	default:
		return fmt.Errorf("setActiveOrganism argument must be a selector, got %T", v)
	}
	return nil
}

// toNumber accepts numbers and numeric strings with an optional px unit.
func toNumber(v ir.Value) (float64, bool) {
	if f, ok := ir.AsNumber(v); ok {
		return f, true
	}
	s, ok := v.(ir.String)
	if !ok {
		return 0, false
	}
	trimmed := strings.TrimSuffix(strings.TrimSpace(string(s)), "px")
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// stringify renders a scalar the way the DOM would store it.
func stringify(v ir.Value) (string, error) {
	switch x := v.(type) {
	case ir.String:
		return string(x), nil
	case ir.Int:
		return strconv.FormatInt(int64(x), 10), nil
	case ir.Float:
		return strconv.FormatFloat(float64(x), 'f', -1, 64), nil
	case ir.Bool:
		return strconv.FormatBool(bool(x)), nil
	}
	return "", fmt.Errorf("expected a scalar, got %T", v)
}

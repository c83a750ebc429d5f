package ir

import (
	"fmt"
	"reflect"
)

// NormalizeArgs turns the caller's argument into the canonical list form.
//
//   - nil (omitted) becomes an empty list
//   - a Go slice or Array becomes one Value per element
//   - anything else (scalar, map, Object, function) becomes a single-element list
//
// []byte is treated as a string, not as a list of numbers.
func NormalizeArgs(args any) ([]Value, error) {
	switch v := args.(type) {
	case nil:
		return []Value{}, nil
	case []Value:
		return cloneArgs(v), nil
	case Array:
		return cloneArgs(v), nil
	case []byte:
		return []Value{String(v)}, nil
	case []string, []any:
		arr, err := FromGo(v)
		if err != nil {
			return nil, fmt.Errorf("normalize args: %w", err)
		}
		return []Value(arr.(Array)), nil
	}

	rv := reflect.ValueOf(args)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		out := make([]Value, rv.Len())
		for i := range out {
			conv, err := FromGo(rv.Index(i).Interface())
			if err != nil {
				return nil, fmt.Errorf("normalize args[%d]: %w", i, err)
			}
			out[i] = conv
		}
		return out, nil
	}

	conv, err := FromGo(args)
	if err != nil {
		return nil, fmt.Errorf("normalize args: %w", err)
	}
	return []Value{conv}, nil
}

func cloneArgs(args []Value) []Value {
	out := make([]Value, len(args))
	for i, a := range args {
		out[i] = Clone(a)
	}
	return out
}

// HasFunc reports whether any argument (at any depth) is a Func.
func HasFunc(args []Value) bool {
	for _, a := range args {
		switch v := a.(type) {
		case Func:
			return true
		case Array:
			if HasFunc(v) {
				return true
			}
		case Object:
			for _, x := range v {
				if HasFunc([]Value{x}) {
					return true
				}
			}
		}
	}
	return false
}

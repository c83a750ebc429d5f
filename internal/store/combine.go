package store

import (
	"fmt"
	"maps"
	"slices"
)

// Combine merges keyed reducers into one reducer over a map. Every reducer
// sees every action. Keys are visited in sorted order, and an error from any
// reducer aborts the whole reduction. The previous map is never mutated.
func Combine[S, A any](reducers map[string]Reducer[S, A]) Reducer[map[string]S, A] {
	keys := slices.Sorted(maps.Keys(reducers))
	fixed := maps.Clone(reducers)

	return func(prev map[string]S, action A) (map[string]S, error) {
		next := make(map[string]S, len(keys))
		for _, k := range keys {
			v, err := fixed[k](prev[k], action)
			if err != nil {
				return prev, fmt.Errorf("%s: %w", k, err)
			}
			next[k] = v
		}
		return next, nil
	}
}

package dom

import "golang.org/x/net/html"

// Related reports whether any node in a is the same as, an ancestor of, or
// a descendant of any node in b. It walks parent chains only; subtrees are
// never traversed.
func Related(a, b []*html.Node) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	inB := make(map[*html.Node]bool, len(b))
	for _, n := range b {
		inB[n] = true
	}
	for _, n := range a {
		for p := n; p != nil; p = p.Parent {
			if inB[p] {
				return true
			}
		}
	}
	inA := make(map[*html.Node]bool, len(a))
	for _, n := range a {
		inA[n] = true
	}
	for _, n := range b {
		for p := n.Parent; p != nil; p = p.Parent {
			if inA[p] {
				return true
			}
		}
	}
	return false
}

// SameNodes reports whether a and b hold the same nodes in the same order.
func SameNodes(a, b []*html.Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// IndexOf returns the position of n in nodes, or -1.
func IndexOf(nodes []*html.Node, n *html.Node) int {
	for i, x := range nodes {
		if x == n {
			return i
		}
	}
	return -1
}

package dom

import (
	"encoding/json"
	"strings"

	"golang.org/x/net/html"

	"github.com/roach88/requerio/internal/ir"
)

// Data returns the jQuery-style data of n: every data-* attribute under its
// camelCased key, overlaid with values stored through SetData. Attribute
// values that parse as JSON (numbers, booleans, null, objects, arrays) are
// decoded; everything else stays a string.
func (d *Document) Data(n *html.Node) ir.Object {
	out := ir.Object{}
	if n == nil {
		return out
	}
	for _, a := range n.Attr {
		key, ok := strings.CutPrefix(a.Key, "data-")
		if !ok || key == "" {
			continue
		}
		out[DataKey(key)] = dataAttrValue(a.Val)
	}
	for k, v := range d.data[n] {
		out[k] = ir.Clone(v)
	}
	return out
}

// DataValue reads one data key.
func (d *Document) DataValue(n *html.Node, key string) (ir.Value, bool) {
	v, ok := d.Data(n)[DataKey(key)]
	return v, ok
}

// SetData stores a value for key on n. Stored values shadow data-*
// attributes and never write back to the markup. Null is stored as a value.
func (d *Document) SetData(n *html.Node, key string, v ir.Value) {
	if n == nil {
		return
	}
	stored := d.data[n]
	if stored == nil {
		stored = ir.Object{}
		d.data[n] = stored
	}
	if v == nil {
		v = ir.Null{}
	}
	stored[DataKey(key)] = ir.Clone(v)
}

// DataKey camelCases a hyphenated data key: "user-id" becomes "userId".
func DataKey(key string) string {
	if !strings.Contains(key, "-") {
		return key
	}
	var b strings.Builder
	upper := false
	for _, r := range key {
		if r == '-' {
			upper = true
			continue
		}
		if upper && r >= 'a' && r <= 'z' {
			r -= 'a' - 'A'
		}
		upper = false
		b.WriteRune(r)
	}
	return b.String()
}

func dataAttrValue(raw string) ir.Value {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return ir.String(raw)
	}
	switch trimmed[0] {
	case '{', '[', 't', 'f', 'n', '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		if !json.Valid([]byte(trimmed)) {
			break
		}
		if v, err := ir.ParseJSON([]byte(trimmed)); err == nil {
			return v
		}
	}
	return ir.String(raw)
}

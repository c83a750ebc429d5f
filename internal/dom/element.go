package dom

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Attributes returns a copy of n's attributes. Nil for non-element nodes.
func Attributes(n *html.Node) map[string]string {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	out := make(map[string]string, len(n.Attr))
	for _, a := range n.Attr {
		out[attrKey(a)] = a.Val
	}
	return out
}

func attrKey(a html.Attribute) string {
	if a.Namespace != "" {
		return a.Namespace + ":" + a.Key
	}
	return a.Key
}

// Attr reads one attribute.
func Attr(n *html.Node, key string) (string, bool) {
	if n == nil {
		return "", false
	}
	for _, a := range n.Attr {
		if attrKey(a) == key {
			return a.Val, true
		}
	}
	return "", false
}

// SetAttr writes one attribute, appending it when absent.
func SetAttr(n *html.Node, key, val string) {
	for i, a := range n.Attr {
		if attrKey(a) == key {
			n.Attr[i].Val = val
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: key, Val: val})
}

// RemoveAttr deletes one attribute.
func RemoveAttr(n *html.Node, key string) {
	for i, a := range n.Attr {
		if attrKey(a) == key {
			n.Attr = append(n.Attr[:i], n.Attr[i+1:]...)
			return
		}
	}
}

// SplitClasses splits a class string on HTML whitespace, dropping empties.
func SplitClasses(s string) []string {
	return strings.Fields(s)
}

// Classes returns n's class list in attribute order.
func Classes(n *html.Node) []string {
	v, _ := Attr(n, "class")
	return SplitClasses(v)
}

// HasClass reports whether n carries class.
func HasClass(n *html.Node, class string) bool {
	for _, c := range Classes(n) {
		if c == class {
			return true
		}
	}
	return false
}

// InnerHTML renders n's children.
func InnerHTML(n *html.Node) (string, error) {
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&b, c); err != nil {
			return "", err
		}
	}
	return b.String(), nil
}

// Value reads the form value of n: the value attribute of an input, the text
// of a textarea, the selected option of a select. ok is false for elements
// that carry no value.
func Value(n *html.Node) (string, bool) {
	if n == nil || n.Type != html.ElementNode {
		return "", false
	}
	switch n.DataAtom {
	case atom.Input, atom.Button, atom.Option:
		v, ok := Attr(n, "value")
		if !ok && n.DataAtom == atom.Option {
			return goquery.NewDocumentFromNode(n).Text(), true
		}
		if !ok && n.DataAtom == atom.Input {
			return "", true
		}
		return v, ok
	case atom.Textarea:
		return goquery.NewDocumentFromNode(n).Text(), true
	case atom.Select:
		opts := goquery.NewDocumentFromNode(n).Find("option")
		if opts.Length() == 0 {
			return "", true
		}
		sel := opts.FilterFunction(func(_ int, o *goquery.Selection) bool {
			_, ok := o.Attr("selected")
			return ok
		})
		if sel.Length() == 0 {
			sel = opts.First()
		}
		return Value(sel.Nodes[0])
	}
	return "", false
}

// SetValue writes the form value of n. It reports false for elements that
// carry no value.
func SetValue(n *html.Node, v string) bool {
	if n == nil || n.Type != html.ElementNode {
		return false
	}
	switch n.DataAtom {
	case atom.Input, atom.Button, atom.Option:
		SetAttr(n, "value", v)
		return true
	case atom.Textarea:
		goquery.NewDocumentFromNode(n).SetText(v)
		return true
	case atom.Select:
		goquery.NewDocumentFromNode(n).Find("option").Each(func(_ int, o *goquery.Selection) {
			ov, _ := Value(o.Nodes[0])
			if ov == v {
				o.SetAttr("selected", "selected")
			} else {
				o.RemoveAttr("selected")
			}
		})
		return true
	}
	return false
}

package dom

import (
	"strings"
	"unicode"

	"github.com/aymerick/douceur/parser"
	"github.com/gorilla/css/scanner"
	"golang.org/x/net/html"
)

// Declaration is one inline style property.
type Declaration struct {
	Property  string
	Value     string
	Important bool
}

// ParseStyle splits an inline style attribute into declarations in source
// order. Property names are normalized with CSSName. A later duplicate wins
// unless the earlier one is !important and the later one is not. Malformed
// declarations are skipped and parsing resumes at the next one, as browsers
// do.
func ParseStyle(s string) []Declaration {
	var out []Declaration
	for _, chunk := range splitDeclarations(s) {
		parsed, err := parser.ParseDeclarations(chunk + ";")
		if err != nil {
			continue
		}
		for _, p := range parsed {
			name := CSSName(p.Property)
			if name == "" || p.Value == "" {
				continue
			}
			out = mergeDeclaration(out, Declaration{Property: name, Value: p.Value, Important: p.Important})
		}
	}
	return out
}

// splitDeclarations cuts s at top-level semicolons. Strings, url() tokens
// and parenthesized groups keep theirs.
func splitDeclarations(s string) []string {
	var (
		chunks []string
		cur    strings.Builder
		depth  int
	)
	flush := func() {
		if c := strings.TrimSpace(cur.String()); c != "" {
			chunks = append(chunks, c)
		}
		cur.Reset()
	}
	sc := scanner.New(s)
	for {
		tok := sc.Next()
		if tok.Type == scanner.TokenEOF || tok.Type == scanner.TokenError {
			break
		}
		switch {
		case tok.Type == scanner.TokenFunction:
			depth++
		case tok.Type == scanner.TokenChar && (tok.Value == "(" || tok.Value == "["):
			depth++
		case tok.Type == scanner.TokenChar && (tok.Value == ")" || tok.Value == "]") && depth > 0:
			depth--
		case tok.Type == scanner.TokenChar && tok.Value == ";" && depth == 0:
			flush()
			continue
		}
		cur.WriteString(tok.Value)
	}
	flush()
	return chunks
}

// FormatStyle renders declarations back into attribute form.
func FormatStyle(decls []Declaration) string {
	parts := make([]string, 0, len(decls))
	for _, d := range decls {
		v := d.Value
		if d.Important {
			v += " !important"
		}
		parts = append(parts, d.Property+": "+v+";")
	}
	return strings.Join(parts, " ")
}

func mergeDeclaration(decls []Declaration, d Declaration) []Declaration {
	for i := range decls {
		if decls[i].Property == d.Property {
			if decls[i].Important && !d.Important {
				return decls
			}
			decls[i] = d
			return decls
		}
	}
	return append(decls, d)
}

// setDeclaration writes a property the way style.setProperty does without a
// priority, dropping any !important it carried.
func setDeclaration(decls []Declaration, name, val string) []Declaration {
	d := Declaration{Property: name, Value: val}
	for i := range decls {
		if decls[i].Property == name {
			decls[i] = d
			return decls
		}
	}
	return append(decls, d)
}

var vendorPrefixes = []string{"webkit-", "moz-", "ms-", "o-"}

// CSSName normalizes a property name to its hyphenated lowercase form:
// "backgroundColor" and " Background-Color " both become "background-color".
// Camel-cased vendor names gain their leading hyphen, so "WebkitTransform"
// and "msTransform" become "-webkit-transform" and "-ms-transform".
// Custom properties (--x) keep their case.
func CSSName(name string) string {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "--") {
		return name
	}
	camel := !strings.Contains(name, "-")
	var b strings.Builder
	for i, r := range name {
		if unicode.IsUpper(r) {
			if i > 0 {
				b.WriteByte('-')
			}
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		b.WriteRune(r)
	}
	out := strings.ReplaceAll(b.String(), "--", "-")
	if camel {
		for _, p := range vendorPrefixes {
			if strings.HasPrefix(out, p) && len(out) > len(p) {
				return "-" + out
			}
		}
	}
	return out
}

// Style returns n's inline style as a property map.
func Style(n *html.Node) map[string]string {
	v, _ := Attr(n, "style")
	decls := ParseStyle(v)
	out := make(map[string]string, len(decls))
	for _, d := range decls {
		out[d.Property] = d.Value
	}
	return out
}

// StyleProperty reads one inline property.
func StyleProperty(n *html.Node, name string) (string, bool) {
	v, ok := Style(n)[CSSName(name)]
	return v, ok
}

// SetStyle writes one inline property. An empty value removes it, as in the
// browser's style API. The style attribute is dropped once empty.
func SetStyle(n *html.Node, name, val string) {
	cur, _ := Attr(n, "style")
	decls := ParseStyle(cur)
	name = CSSName(name)
	val = strings.TrimSpace(val)
	if val == "" {
		kept := decls[:0]
		for _, d := range decls {
			if d.Property != name {
				kept = append(kept, d)
			}
		}
		decls = kept
	} else {
		decls = setDeclaration(decls, name, val)
	}
	if len(decls) == 0 {
		RemoveAttr(n, "style")
		return
	}
	SetAttr(n, "style", FormatStyle(decls))
}

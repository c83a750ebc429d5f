// Package manifest loads CUE manifests describing a page to emulate: its
// markup, the organisms to bind, fixed layout geometry, an optional script
// reducer and an initial action list.
//
// A manifest looks like:
//
//	name: "list page"
//	document: file: "page.html"
//	organisms: ["#main", ".child", "window"]
//	layout: {
//		window: metrics: innerWidth: 1024
//		"#main": rect: {top: 0, left: 0, width: 300, height: 50}
//	}
//	reducer: {file: "reduce.js", timeout: "250ms"}
//	actions: [{organism: ".child", method: "addClass", args: "seen"}]
package manifest

import (
	"cuelang.org/go/cue/token"

	"github.com/roach88/requerio/internal/dom"
	"github.com/roach88/requerio/internal/ir"
)

// Manifest is a compiled manifest. Relative file references have been
// read already; BaseDir records where they were resolved from.
type Manifest struct {
	Name      string
	BaseDir   string
	HTML      string
	Organisms []string
	Layout    []LayoutEntry
	Reducer   *ReducerSpec
	Actions   []ActionSpec
}

// LayoutEntry is the geometry for one selector, in manifest order.
type LayoutEntry struct {
	Selector string
	Box      dom.Box
}

// ReducerSpec is a script reducer.
type ReducerSpec struct {
	Name    string
	Source  string
	Timeout string
}

// ActionSpec is one dispatch to run after the engine is initialized.
type ActionSpec struct {
	Organism string
	Method   string
	Args     []ir.Value
	Target   ir.Target
	Pos      token.Pos
}

// Package dom is the live-tree adapter over goquery and golang.org/x/net/html.
//
// A Document owns one parsed tree plus the state a browser would keep beside
// it: the focused element, the per-node data store behind jQuery's .data, and
// a Layout that answers geometry questions. Server-side there is no layout
// engine, so the default Layout reports every measurement as unavailable.
//
// Everything here operates on the current tree. Nothing is cached across
// calls: Select re-evaluates its selector every time.
package dom

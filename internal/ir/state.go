package ir

import (
	"encoding/json"
	"fmt"
	"maps"
	"slices"
)

// OrganismKind separates ordinary element selections from the two pseudo
// organisms, which carry a reduced state shape.
type OrganismKind int

const (
	ElementOrganism OrganismKind = iota
	WindowOrganism
	DocumentOrganism
)

// Reserved selectors for the pseudo organisms.
const (
	WindowSelector   = "window"
	DocumentSelector = "document"
)

// KindOf classifies a selector.
func KindOf(selector string) OrganismKind {
	switch selector {
	case WindowSelector:
		return WindowOrganism
	case DocumentSelector:
		return DocumentOrganism
	}
	return ElementOrganism
}

func (k OrganismKind) String() string {
	switch k {
	case WindowOrganism:
		return "window"
	case DocumentOrganism:
		return "document"
	}
	return "element"
}

// BoundingRect is the last measured client rect. Nil fields are unknown.
type BoundingRect struct {
	Top    *float64 `json:"top"`
	Right  *float64 `json:"right"`
	Bottom *float64 `json:"bottom"`
	Left   *float64 `json:"left"`
	Width  *float64 `json:"width"`
	Height *float64 `json:"height"`
	X      *float64 `json:"x"`
	Y      *float64 `json:"y"`
}

// RectFields lists the BoundingRect keys in declaration order.
var RectFields = []string{"top", "right", "bottom", "left", "width", "height", "x", "y"}

// Field returns a pointer to the field slot named key, or nil.
func (r *BoundingRect) Field(key string) **float64 {
	switch key {
	case "top":
		return &r.Top
	case "right":
		return &r.Right
	case "bottom":
		return &r.Bottom
	case "left":
		return &r.Left
	case "width":
		return &r.Width
	case "height":
		return &r.Height
	case "x":
		return &r.X
	case "y":
		return &r.Y
	}
	return nil
}

func (r BoundingRect) clone() BoundingRect {
	return BoundingRect{
		Top:    cloneFloat(r.Top),
		Right:  cloneFloat(r.Right),
		Bottom: cloneFloat(r.Bottom),
		Left:   cloneFloat(r.Left),
		Width:  cloneFloat(r.Width),
		Height: cloneFloat(r.Height),
		X:      cloneFloat(r.X),
		Y:      cloneFloat(r.Y),
	}
}

// State is the serializable snapshot of one organism (or one member).
//
// It never references live nodes. Pointer fields distinguish "never read"
// (nil, serialized as null) from "read and empty" (0 or "").
type State struct {
	Kind OrganismKind

	Attributes map[string]string
	ClassList  []string
	Style      map[string]string
	Data       Object
	InnerHTML  *string
	Value      *string

	BoundingRect BoundingRect

	InnerWidth  *float64
	InnerHeight *float64
	OuterWidth  *float64
	OuterHeight *float64
	ScrollLeft  *float64
	ScrollTop   *float64
	Width       *float64
	Height      *float64

	Members []State

	// ActiveOrganism is only meaningful for the document organism.
	ActiveOrganism *string
}

// NewState synthesizes the default state for an organism kind.
func NewState(kind OrganismKind) *State {
	s := &State{Kind: kind}
	if kind == ElementOrganism {
		s.Attributes = map[string]string{}
		s.ClassList = []string{}
		s.Style = map[string]string{}
		s.Members = []State{}
	}
	return s
}

// NewMemberState returns the default shape of one member sub-state.
func NewMemberState() State {
	return *NewState(ElementOrganism)
}

// Clone deep-copies the state. A nil receiver clones to nil.
func (s *State) Clone() *State {
	if s == nil {
		return nil
	}
	c := s.cloneValue()
	return &c
}

func (s *State) cloneValue() State {
	c := State{
		Kind:           s.Kind,
		Attributes:     cloneStringMap(s.Attributes),
		ClassList:      slices.Clone(s.ClassList),
		Style:          cloneStringMap(s.Style),
		InnerHTML:      cloneString(s.InnerHTML),
		Value:          cloneString(s.Value),
		BoundingRect:   s.BoundingRect.clone(),
		InnerWidth:     cloneFloat(s.InnerWidth),
		InnerHeight:    cloneFloat(s.InnerHeight),
		OuterWidth:     cloneFloat(s.OuterWidth),
		OuterHeight:    cloneFloat(s.OuterHeight),
		ScrollLeft:     cloneFloat(s.ScrollLeft),
		ScrollTop:      cloneFloat(s.ScrollTop),
		Width:          cloneFloat(s.Width),
		Height:         cloneFloat(s.Height),
		ActiveOrganism: cloneString(s.ActiveOrganism),
	}
	if s.Data != nil {
		c.Data = Clone(s.Data).(Object)
	}
	if s.Members != nil {
		c.Members = make([]State, len(s.Members))
		for i := range s.Members {
			c.Members[i] = s.Members[i].cloneValue()
		}
	}
	return c
}

// Metric returns the slot for a numeric method (width, scrollTop, ...).
func (s *State) Metric(m Method) **float64 {
	switch m {
	case MethodInnerWidth:
		return &s.InnerWidth
	case MethodInnerHeight:
		return &s.InnerHeight
	case MethodOuterWidth:
		return &s.OuterWidth
	case MethodOuterHeight:
		return &s.OuterHeight
	case MethodScrollLeft:
		return &s.ScrollLeft
	case MethodScrollTop:
		return &s.ScrollTop
	case MethodWidth:
		return &s.Width
	case MethodHeight:
		return &s.Height
	}
	return nil
}

type elementJSON struct {
	Attributes   map[string]string `json:"attributes"`
	ClassList    []string          `json:"classList"`
	Style        map[string]string `json:"style"`
	Data         Object            `json:"data"`
	InnerHTML    *string           `json:"innerHTML"`
	Value        *string           `json:"value"`
	BoundingRect BoundingRect      `json:"boundingRect"`
	InnerWidth   *float64          `json:"innerWidth"`
	InnerHeight  *float64          `json:"innerHeight"`
	OuterWidth   *float64          `json:"outerWidth"`
	OuterHeight  *float64          `json:"outerHeight"`
	ScrollLeft   *float64          `json:"scrollLeft"`
	ScrollTop    *float64          `json:"scrollTop"`
	Width        *float64          `json:"width"`
	Height       *float64          `json:"height"`
	Members      []State           `json:"members"`
}

type windowJSON struct {
	InnerWidth  *float64 `json:"innerWidth"`
	InnerHeight *float64 `json:"innerHeight"`
	OuterWidth  *float64 `json:"outerWidth"`
	OuterHeight *float64 `json:"outerHeight"`
	ScrollLeft  *float64 `json:"scrollLeft"`
	ScrollTop   *float64 `json:"scrollTop"`
	Width       *float64 `json:"width"`
	Height      *float64 `json:"height"`
}

type documentJSON struct {
	ActiveOrganism *string  `json:"activeOrganism"`
	ScrollLeft     *float64 `json:"scrollLeft"`
	ScrollTop      *float64 `json:"scrollTop"`
	Width          *float64 `json:"width"`
	Height         *float64 `json:"height"`
}

// MarshalJSON writes the shape that matches the organism kind.
func (s State) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case WindowOrganism:
		return json.Marshal(windowJSON{
			InnerWidth:  s.InnerWidth,
			InnerHeight: s.InnerHeight,
			OuterWidth:  s.OuterWidth,
			OuterHeight: s.OuterHeight,
			ScrollLeft:  s.ScrollLeft,
			ScrollTop:   s.ScrollTop,
			Width:       s.Width,
			Height:      s.Height,
		})
	case DocumentOrganism:
		return json.Marshal(documentJSON{
			ActiveOrganism: s.ActiveOrganism,
			ScrollLeft:     s.ScrollLeft,
			ScrollTop:      s.ScrollTop,
			Width:          s.Width,
			Height:         s.Height,
		})
	}

	out := elementJSON{
		Attributes:   s.Attributes,
		ClassList:    s.ClassList,
		Style:        s.Style,
		Data:         s.Data,
		InnerHTML:    s.InnerHTML,
		Value:        s.Value,
		BoundingRect: s.BoundingRect,
		InnerWidth:   s.InnerWidth,
		InnerHeight:  s.InnerHeight,
		OuterWidth:   s.OuterWidth,
		OuterHeight:  s.OuterHeight,
		ScrollLeft:   s.ScrollLeft,
		ScrollTop:    s.ScrollTop,
		Width:        s.Width,
		Height:       s.Height,
		Members:      s.Members,
	}
	if out.Attributes == nil {
		out.Attributes = map[string]string{}
	}
	if out.ClassList == nil {
		out.ClassList = []string{}
	}
	if out.Style == nil {
		out.Style = map[string]string{}
	}
	if out.Members == nil {
		out.Members = []State{}
	}
	return json.Marshal(out)
}

// DecodeState parses JSON produced by MarshalJSON (or by a script reducer)
// into a State of the given kind. Missing element maps default to empty.
func DecodeState(kind OrganismKind, data []byte) (*State, error) {
	s := &State{Kind: kind}
	switch kind {
	case WindowOrganism:
		var w windowJSON
		if err := json.Unmarshal(data, &w); err != nil {
			return nil, fmt.Errorf("decode window state: %w", err)
		}
		s.InnerWidth, s.InnerHeight = w.InnerWidth, w.InnerHeight
		s.OuterWidth, s.OuterHeight = w.OuterWidth, w.OuterHeight
		s.ScrollLeft, s.ScrollTop = w.ScrollLeft, w.ScrollTop
		s.Width, s.Height = w.Width, w.Height
		return s, nil
	case DocumentOrganism:
		var d documentJSON
		if err := json.Unmarshal(data, &d); err != nil {
			return nil, fmt.Errorf("decode document state: %w", err)
		}
		s.ActiveOrganism = d.ActiveOrganism
		s.ScrollLeft, s.ScrollTop = d.ScrollLeft, d.ScrollTop
		s.Width, s.Height = d.Width, d.Height
		return s, nil
	}

	var raw struct {
		elementJSON
		Members []json.RawMessage `json:"members"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("decode element state: %w", err)
	}
	e := raw.elementJSON
	s.Attributes = e.Attributes
	s.ClassList = e.ClassList
	s.Style = e.Style
	s.Data = e.Data
	s.InnerHTML, s.Value = e.InnerHTML, e.Value
	s.BoundingRect = e.BoundingRect
	s.InnerWidth, s.InnerHeight = e.InnerWidth, e.InnerHeight
	s.OuterWidth, s.OuterHeight = e.OuterWidth, e.OuterHeight
	s.ScrollLeft, s.ScrollTop = e.ScrollLeft, e.ScrollTop
	s.Width, s.Height = e.Width, e.Height
	if s.Attributes == nil {
		s.Attributes = map[string]string{}
	}
	if s.ClassList == nil {
		s.ClassList = []string{}
	}
	if s.Style == nil {
		s.Style = map[string]string{}
	}
	s.Members = make([]State, 0, len(raw.Members))
	for i, m := range raw.Members {
		ms, err := DecodeState(ElementOrganism, m)
		if err != nil {
			return nil, fmt.Errorf("member %d: %w", i, err)
		}
		s.Members = append(s.Members, *ms)
	}
	return s, nil
}

func cloneStringMap(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	return maps.Clone(m)
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneFloat(f *float64) *float64 {
	if f == nil {
		return nil
	}
	v := *f
	return &v
}

// Float64 returns a pointer to f, for building states in tests and reducers.
func Float64(f float64) *float64 {
	return &f
}

// Str returns a pointer to s.
func Str(s string) *string {
	return &s
}

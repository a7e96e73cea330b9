// Package slot defines the layout tree data model: positioned grid cells
// ("slots") keyed by ID, linked into a forest via parent references, plus the
// configuration document that persists one page's slot tree per store.
package slot

import (
	"encoding/json"
	"fmt"
)

// GridColumns is the number of columns in the layout grid.
const GridColumns = 12

// Type discriminates how a slot is rendered.
type Type string

const (
	TypeContainer    Type = "container"
	TypeComponent    Type = "component"
	TypeText         Type = "text"
	TypeCMSBlock     Type = "cms_block"
	TypePluginWidget Type = "plugin_widget"
	TypeGrid         Type = "grid"
)

// Page types a configuration document can customise.
const (
	PageCategory = "category_layout"
	PageProduct  = "product_layout"
	PageCart     = "cart_layout"
	PageCheckout = "checkout_layout"
	PageHeader   = "header_layout"
	PageFooter   = "footer_layout"
)

// Viewport is a physical screen-size bucket. It selects responsive geometry,
// independently of the logical view mode.
type Viewport string

const (
	ViewportMobile  Viewport = "mobile"
	ViewportTablet  Viewport = "tablet"
	ViewportDesktop Viewport = "desktop"
)

// Width returns the preview pixel width for the viewport. Desktop returns 0,
// meaning "full width".
func (v Viewport) Width() int {
	switch v {
	case ViewportMobile:
		return 375
	case ViewportTablet:
		return 768
	default:
		return 0
	}
}

// Position is a slot's grid cell, 1-based.
type Position struct {
	Col int `json:"col"`
	Row int `json:"row"`
}

// Geometry overrides a slot's spans or position for one viewport.
// Zero values mean "inherit from the base slot".
type Geometry struct {
	Col     int `json:"col,omitempty"`
	Row     int `json:"row,omitempty"`
	ColSpan int `json:"col_span,omitempty"`
	RowSpan int `json:"row_span,omitempty"`
}

// Slot is one positioned node in a page's layout tree: either a content leaf
// or a container of further slots.
type Slot struct {
	ID        string `json:"id"`
	Type      Type   `json:"type"`
	Component string `json:"component,omitempty"` // renderer name when Type == component

	// ParentID links the slot into the tree. Empty = root level.
	ParentID string `json:"parent_id,omitempty"`

	Position Position `json:"position"`
	ColSpan  int      `json:"col_span"`
	RowSpan  int      `json:"row_span"`

	// ViewModes lists the logical page states this slot is visible under
	// (e.g. "emptyCart", "withProducts", "grid", "list").
	// An empty list means visible under every mode.
	ViewModes []string `json:"view_modes,omitempty"`

	// Viewports holds per-viewport geometry overrides, merged at render time.
	Viewports map[Viewport]Geometry `json:"viewports,omitempty"`

	ClassName string            `json:"class_name,omitempty"`
	Styles    map[string]string `json:"styles,omitempty"`

	// Content is literal text for text slots, or a JSON payload consumed by
	// the slot's component.
	Content string `json:"content,omitempty"`

	// Metadata is a free-form bag: component-specific config such as
	// widget_id, cms_position, items_to_show.
	Metadata map[string]any `json:"metadata,omitempty"`
}

// VisibleIn reports whether the slot should render under the given view mode.
// An empty ViewModes list means visible everywhere.
func (s *Slot) VisibleIn(viewMode string) bool {
	if len(s.ViewModes) == 0 {
		return true
	}
	for _, m := range s.ViewModes {
		if m == viewMode {
			return true
		}
	}
	return false
}

// Effective returns the slot's geometry after applying the override for the
// given viewport. The base slot is not mutated.
func (s *Slot) Effective(vp Viewport) (pos Position, colSpan, rowSpan int) {
	pos, colSpan, rowSpan = s.Position, s.ColSpan, s.RowSpan
	g, ok := s.Viewports[vp]
	if !ok {
		return
	}
	if g.Col > 0 {
		pos.Col = g.Col
	}
	if g.Row > 0 {
		pos.Row = g.Row
	}
	if g.ColSpan > 0 {
		colSpan = g.ColSpan
	}
	if g.RowSpan > 0 {
		rowSpan = g.RowSpan
	}
	return
}

// MetaString returns a string metadata value, or "" if absent or not a string.
func (s *Slot) MetaString(key string) string {
	v, _ := s.Metadata[key].(string)
	return v
}

// MetaInt returns an integer metadata value. JSON numbers decode as float64,
// so both forms are accepted.
func (s *Slot) MetaInt(key string) int {
	switch v := s.Metadata[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return 0
	}
}

// Clone returns a deep copy of the slot.
func (s *Slot) Clone() *Slot {
	data, err := json.Marshal(s)
	if err != nil {
		// Slot fields are all JSON-serialisable; this cannot happen with a
		// well-formed slot.
		panic(fmt.Sprintf("slot: clone marshal: %v", err))
	}
	out := &Slot{}
	if err := json.Unmarshal(data, out); err != nil {
		panic(fmt.Sprintf("slot: clone unmarshal: %v", err))
	}
	return out
}

package grid

import (
	"github.com/lumaworks/slotline/slot"
)

// Property names a slot geometry field a view-mode adjustment can override.
type Property string

const (
	PropCol     Property = "col"
	PropRow     Property = "row"
	PropColSpan Property = "col_span"
	PropRowSpan Property = "row_span"
)

// Adjustment overrides one property of one slot under a view mode.
type Adjustment struct {
	SlotID   string   `json:"slot_id"`
	Property Property `json:"property"`
	Value    int      `json:"value"`
}

// ModeAdjustments is the declarative table mapping a view mode to the
// property overrides active under it. It handles geometry that differs by
// mode (e.g. a filter rail that narrows in list view) without persisting
// redundant per-mode slot copies.
type ModeAdjustments map[string][]Adjustment

// Apply mutates doc's slots with the adjustments for viewMode. It is meant
// to run on a render-time copy of the document whenever the active view mode
// changes; adjustments are never written back to the draft. Adjustments for
// unknown slots are skipped.
func (m ModeAdjustments) Apply(doc *slot.Document, viewMode string) {
	for _, adj := range m[viewMode] {
		s, ok := doc.Slots[adj.SlotID]
		if !ok {
			continue
		}
		switch adj.Property {
		case PropCol:
			s.Position.Col = adj.Value
		case PropRow:
			s.Position.Row = adj.Value
		case PropColSpan:
			s.ColSpan = ClampColSpan(adj.Value, s.Position.Col)
		case PropRowSpan:
			s.RowSpan = ClampRowSpan(adj.Value)
		}
	}
}

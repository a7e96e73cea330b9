// Package grid implements the interactive layout math: translating pointer
// drag deltas into span changes, drop targets into parent reassignment, and
// view-mode property adjustments.
//
// All functions here are pure state transitions on in-memory documents; the
// lifecycle manager decides when a transition is persisted. Resize policy per
// the editor contract: geometry changes apply once per gesture (the caller
// sends the final delta at drag-end, never per mousemove), and siblings are
// never auto-reflowed by a resize — only an explicit drop repositions them.
package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/lumaworks/slotline/slot"
)

var (
	// ErrInvalidDrop means the requested drop would detach the tree or
	// create a cycle (dropping a slot into its own subtree).
	ErrInvalidDrop = errors.New("grid: invalid drop")
)

// DropPosition says where the dragged slot lands relative to the target.
type DropPosition string

const (
	DropBefore DropPosition = "before"
	DropAfter  DropPosition = "after"
	DropInside DropPosition = "inside"
)

// SpanFromDelta converts a pixel drag delta into a span change: the delta is
// divided by the pixel width of one grid unit and rounded to the nearest
// whole column. unitPx <= 0 leaves the span unchanged.
func SpanFromDelta(startSpan int, deltaPx, unitPx float64) int {
	if unitPx <= 0 {
		return startSpan
	}
	return startSpan + int(math.Round(deltaPx/unitPx))
}

// ClampColSpan clamps span to the legal range for a slot starting at col:
// at least 1, at most the columns remaining to the grid's right edge.
func ClampColSpan(span, col int) int {
	if col < 1 {
		col = 1
	}
	max := slot.GridColumns - col + 1
	if max < 1 {
		max = 1
	}
	if span > max {
		return max
	}
	if span < 1 {
		return 1
	}
	return span
}

// ClampRowSpan clamps span to at least 1. Rows have no right-edge equivalent.
func ClampRowSpan(span int) int {
	if span < 1 {
		return 1
	}
	return span
}

// ResizeColSpan computes the slot's new column span for a horizontal drag of
// deltaPx inside a container of containerPx width (one column = width/12),
// clamped so the slot never extends past the grid edge. The slot is not
// mutated; the caller applies the result at drag-end.
func ResizeColSpan(s *slot.Slot, deltaPx, containerPx float64) int {
	unit := containerPx / slot.GridColumns
	return ClampColSpan(SpanFromDelta(s.ColSpan, deltaPx, unit), s.Position.Col)
}

// ResizeRowSpan computes the slot's new row span for a vertical drag of
// deltaPx against a fixed row unit height in pixels.
func ResizeRowSpan(s *slot.Slot, deltaPx, rowUnitPx float64) int {
	return ClampRowSpan(SpanFromDelta(s.RowSpan, deltaPx, rowUnitPx))
}

// Drop moves draggedID relative to targetID: before/after make it a sibling
// of the target (adopting the target's parent), inside nests it as the
// target's last child. Descendants keep pointing at the dragged slot, so the
// subtree moves as a unit implicitly. The affected sibling list is repacked
// collision-free afterwards; no other slots move.
func Drop(doc *slot.Document, draggedID, targetID string, pos DropPosition) error {
	if draggedID == targetID {
		return fmt.Errorf("%w: cannot drop a slot onto itself", ErrInvalidDrop)
	}
	dragged := doc.Get(draggedID)
	if dragged == nil {
		return fmt.Errorf("%w: %s", slot.ErrNotFound, draggedID)
	}
	target := doc.Get(targetID)
	if target == nil {
		return fmt.Errorf("%w: %s", slot.ErrNotFound, targetID)
	}
	if doc.IsAncestor(draggedID, targetID) {
		return fmt.Errorf("%w: %s is inside %s's subtree", ErrInvalidDrop, targetID, draggedID)
	}

	var newParent string
	switch pos {
	case DropInside:
		newParent = target.ID
	case DropBefore, DropAfter:
		newParent = target.ParentID
	default:
		return fmt.Errorf("%w: unknown position %q", ErrInvalidDrop, pos)
	}

	// Ordered destination siblings, without the dragged slot (it may already
	// live in this list when reordering within one parent).
	var siblings []*slot.Slot
	for _, s := range doc.Children(newParent) {
		if s.ID != draggedID {
			siblings = append(siblings, s)
		}
	}

	idx := len(siblings)
	if pos != DropInside {
		for i, s := range siblings {
			if s.ID == targetID {
				idx = i
				if pos == DropAfter {
					idx = i + 1
				}
				break
			}
		}
	}

	siblings = append(siblings, nil)
	copy(siblings[idx+1:], siblings[idx:])
	siblings[idx] = dragged

	dragged.ParentID = newParent
	Reflow(siblings)
	return nil
}

// Reflow packs the ordered slots into the grid collision-free: each slot
// keeps its span and is placed left-to-right, wrapping to a new row when the
// remaining columns cannot fit it. Relative order is preserved.
func Reflow(ordered []*slot.Slot) {
	col, row := 1, 1
	for _, s := range ordered {
		span := ClampColSpan(s.ColSpan, 1)
		if col > 1 && col+span-1 > slot.GridColumns {
			col = 1
			row++
		}
		s.Position = slot.Position{Col: col, Row: row}
		s.ColSpan = ClampColSpan(span, col)
		col += span
	}
}

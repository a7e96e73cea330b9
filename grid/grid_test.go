package grid

import (
	"errors"
	"testing"

	"github.com/lumaworks/slotline/slot"
)

func TestSpanFromDelta(t *testing.T) {
	cases := []struct {
		name      string
		start     int
		delta     float64
		unit      float64
		want      int
	}{
		{"no movement", 6, 0, 100, 6},
		{"grow two columns", 6, 200, 100, 8},
		{"shrink one column", 6, -100, 100, 5},
		{"round up past half", 6, 151, 100, 8},
		{"round down below half", 6, 149, 100, 7},
		{"negative rounding", 6, -151, 100, 4},
		{"zero unit leaves span", 6, 500, 0, 6},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := SpanFromDelta(c.start, c.delta, c.unit); got != c.want {
				t.Errorf("got %d, want %d", got, c.want)
			}
		})
	}
}

func TestClampColSpan(t *testing.T) {
	cases := []struct {
		span, col, want int
	}{
		{14, 1, 12}, // full width max
		{8, 7, 6},   // 12 - 7 + 1
		{0, 3, 1},
		{-5, 1, 1},
		{6, 7, 6},
		{3, 12, 1}, // last column fits exactly one
	}
	for _, c := range cases {
		if got := ClampColSpan(c.span, c.col); got != c.want {
			t.Errorf("ClampColSpan(%d, %d): got %d, want %d", c.span, c.col, got, c.want)
		}
	}
}

func TestResizeDoesNotReflowSiblings(t *testing.T) {
	d := slot.NewDocument("s", slot.PageCategory)
	d.Add(&slot.Slot{ID: "root", Type: slot.TypeContainer, Position: slot.Position{Col: 1, Row: 1}, ColSpan: 12})
	a := &slot.Slot{ID: "A", ParentID: "root", Position: slot.Position{Col: 1, Row: 1}, ColSpan: 6}
	b := &slot.Slot{ID: "B", ParentID: "root", Position: slot.Position{Col: 7, Row: 1}, ColSpan: 6}
	d.Add(a)
	d.Add(b)

	// Drag A's right edge two columns out: 1200px container, 100px per column.
	newSpan := ResizeColSpan(a, 200, 1200)
	if newSpan != 8 {
		t.Fatalf("new span: got %d, want 8", newSpan)
	}
	a.ColSpan = newSpan

	// B must not shrink or move: siblings do not auto-reflow on resize.
	if b.ColSpan != 6 || b.Position.Col != 7 {
		t.Errorf("sibling mutated: span=%d col=%d", b.ColSpan, b.Position.Col)
	}
}

func TestResizeClampsAtGridEdge(t *testing.T) {
	s := &slot.Slot{ID: "x", Position: slot.Position{Col: 7, Row: 1}, ColSpan: 6}
	// Request far beyond the edge.
	if got := ResizeColSpan(s, 10_000, 1200); got != 6 {
		t.Errorf("got %d, want clamp to 6 (12 - 7 + 1)", got)
	}
	// Request below one column.
	if got := ResizeColSpan(s, -10_000, 1200); got != 1 {
		t.Errorf("got %d, want clamp to 1", got)
	}
}

func TestResizeRowSpan(t *testing.T) {
	s := &slot.Slot{ID: "x", Position: slot.Position{Col: 1, Row: 1}, RowSpan: 2}
	if got := ResizeRowSpan(s, 120, 60); got != 4 {
		t.Errorf("got %d, want 4", got)
	}
	if got := ResizeRowSpan(s, -500, 60); got != 1 {
		t.Errorf("got %d, want 1", got)
	}
}

func dropDoc(t *testing.T) *slot.Document {
	t.Helper()
	d := slot.NewDocument("s", slot.PageCategory)
	d.Add(&slot.Slot{ID: "root", Type: slot.TypeContainer, Position: slot.Position{Col: 1, Row: 1}, ColSpan: 12})
	d.Add(&slot.Slot{ID: "A", ParentID: "root", Position: slot.Position{Col: 1, Row: 1}, ColSpan: 6})
	d.Add(&slot.Slot{ID: "B", ParentID: "root", Position: slot.Position{Col: 7, Row: 1}, ColSpan: 6})
	d.Add(&slot.Slot{ID: "C", ParentID: "root", Position: slot.Position{Col: 1, Row: 2}, ColSpan: 12})
	d.Add(&slot.Slot{ID: "A1", ParentID: "A", Position: slot.Position{Col: 1, Row: 1}, ColSpan: 12})
	return d
}

func TestDropBefore(t *testing.T) {
	d := dropDoc(t)
	if err := Drop(d, "C", "A", DropBefore); err != nil {
		t.Fatalf("drop: %v", err)
	}
	order := ids(d.Children("root"))
	want := []string{"C", "A", "B"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order: got %v, want %v", order, want)
		}
	}
	if err := d.Validate(); err != nil {
		t.Errorf("forest broken after drop: %v", err)
	}
}

func TestDropInsideMovesSubtree(t *testing.T) {
	d := dropDoc(t)
	if err := Drop(d, "A", "C", DropInside); err != nil {
		t.Fatalf("drop: %v", err)
	}
	if d.Slots["A"].ParentID != "C" {
		t.Errorf("A parent: got %s, want C", d.Slots["A"].ParentID)
	}
	// Descendants keep pointing at A — the subtree moved implicitly.
	if d.Slots["A1"].ParentID != "A" {
		t.Errorf("A1 parent: got %s, want A", d.Slots["A1"].ParentID)
	}
	if err := d.Validate(); err != nil {
		t.Errorf("forest broken after drop: %v", err)
	}
}

func TestDropIntoOwnSubtreeRejected(t *testing.T) {
	d := dropDoc(t)
	err := Drop(d, "A", "A1", DropInside)
	if !errors.Is(err, ErrInvalidDrop) {
		t.Errorf("got %v, want ErrInvalidDrop", err)
	}
	err = Drop(d, "A", "A", DropAfter)
	if !errors.Is(err, ErrInvalidDrop) {
		t.Errorf("self drop: got %v, want ErrInvalidDrop", err)
	}
}

func TestDropUnknownSlot(t *testing.T) {
	d := dropDoc(t)
	if err := Drop(d, "ghost", "A", DropAfter); !errors.Is(err, slot.ErrNotFound) {
		t.Errorf("unknown dragged: got %v, want slot.ErrNotFound", err)
	}
	if err := Drop(d, "A", "ghost", DropAfter); !errors.Is(err, slot.ErrNotFound) {
		t.Errorf("unknown target: got %v, want slot.ErrNotFound", err)
	}
}

func TestReflowWraps(t *testing.T) {
	a := &slot.Slot{ID: "a", ColSpan: 6}
	b := &slot.Slot{ID: "b", ColSpan: 6}
	c := &slot.Slot{ID: "c", ColSpan: 4}
	Reflow([]*slot.Slot{a, b, c})

	if a.Position != (slot.Position{Col: 1, Row: 1}) {
		t.Errorf("a: %+v", a.Position)
	}
	if b.Position != (slot.Position{Col: 7, Row: 1}) {
		t.Errorf("b: %+v", b.Position)
	}
	if c.Position != (slot.Position{Col: 1, Row: 2}) {
		t.Errorf("c should wrap: %+v", c.Position)
	}
}

func TestModeAdjustments(t *testing.T) {
	d := slot.NewDocument("s", slot.PageCategory)
	d.Add(&slot.Slot{ID: "filters", Position: slot.Position{Col: 1, Row: 1}, ColSpan: 3})
	d.Add(&slot.Slot{ID: "products", Position: slot.Position{Col: 4, Row: 1}, ColSpan: 9})

	table := ModeAdjustments{
		"list": {
			{SlotID: "filters", Property: PropColSpan, Value: 4},
			{SlotID: "products", Property: PropColSpan, Value: 8},
			{SlotID: "ghost", Property: PropColSpan, Value: 1}, // unknown: skipped
		},
	}

	work := d.Clone()
	table.Apply(work, "list")
	if work.Slots["filters"].ColSpan != 4 || work.Slots["products"].ColSpan != 8 {
		t.Errorf("list adjustments not applied: %d/%d",
			work.Slots["filters"].ColSpan, work.Slots["products"].ColSpan)
	}

	// Grid mode has no table entries: geometry untouched.
	work2 := d.Clone()
	table.Apply(work2, "grid")
	if work2.Slots["filters"].ColSpan != 3 {
		t.Errorf("grid mode must keep persisted geometry")
	}

	// The draft itself is never mutated.
	if d.Slots["filters"].ColSpan != 3 {
		t.Error("adjustments leaked into the source document")
	}
}

func ids(slots []*slot.Slot) []string {
	out := make([]string, len(slots))
	for i, s := range slots {
		out[i] = s.ID
	}
	return out
}

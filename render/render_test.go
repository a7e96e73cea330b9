package render

import (
	"fmt"
	"html/template"
	"strings"
	"testing"

	"github.com/lumaworks/slotline/grid"
	"github.com/lumaworks/slotline/registry"
	"github.com/lumaworks/slotline/slot"
)

func testRegistry(t *testing.T) *registry.Registry {
	t.Helper()
	reg := registry.New()
	reg.Register("text", func(rc registry.Context, s *slot.Slot, _ registry.Children) (template.HTML, error) {
		return template.HTML("<p>" + template.HTMLEscapeString(s.Content) + "</p>"), nil
	})
	reg.Register("product_grid", func(rc registry.Context, s *slot.Slot, _ registry.Children) (template.HTML, error) {
		return template.HTML(fmt.Sprintf("<ul data-view=%q></ul>", rc.ViewMode)), nil
	})
	return reg
}

func pageDoc(t *testing.T) *slot.Document {
	t.Helper()
	doc := slot.NewDocument("store-1", slot.PageCategory)
	doc.Add(&slot.Slot{
		ID: "root", Type: slot.TypeContainer,
		Position: slot.Position{Col: 1, Row: 1}, ColSpan: 12,
	})
	doc.Add(&slot.Slot{
		ID: "products", Type: slot.TypeComponent, Component: "product_grid", ParentID: "root",
		Position: slot.Position{Col: 1, Row: 1}, ColSpan: 8,
	})
	doc.Add(&slot.Slot{
		ID: "blurb", Type: slot.TypeText, ParentID: "root", Content: "Welcome",
		Position: slot.Position{Col: 9, Row: 1}, ColSpan: 4,
	})
	if err := doc.Validate(); err != nil {
		t.Fatalf("fixture invalid: %v", err)
	}
	return doc
}

func viewCtx() registry.Context {
	return registry.Context{
		StoreID:  "store-1",
		PageType: slot.PageCategory,
		ViewMode: "grid",
		Viewport: slot.ViewportDesktop,
		Mode:     registry.ModeView,
	}
}

func TestRenderDeterministic(t *testing.T) {
	r := New(testRegistry(t))
	doc := pageDoc(t)
	rc := viewCtx()

	first, err := r.RenderDocument(doc, rc)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for i := 0; i < 10; i++ {
		again, err := r.RenderDocument(doc, rc)
		if err != nil {
			t.Fatalf("render %d: %v", i, err)
		}
		if again != first {
			t.Fatalf("output varies between runs:\n%s\n%s", first, again)
		}
	}
}

func TestRenderOrderRowMajor(t *testing.T) {
	r := New(testRegistry(t))
	out, err := r.RenderDocument(pageDoc(t), viewCtx())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	s := string(out)
	if !strings.Contains(s, `data-page-type="category_layout"`) {
		t.Fatalf("missing page wrapper: %s", s)
	}
	prodAt := strings.Index(s, `id="slot-products"`)
	blurbAt := strings.Index(s, `id="slot-blurb"`)
	if prodAt < 0 || blurbAt < 0 {
		t.Fatalf("missing slots: %s", s)
	}
	if prodAt > blurbAt {
		t.Fatalf("products (col 1) must precede blurb (col 9): %s", s)
	}
}

func TestViewModeFiltering(t *testing.T) {
	doc := pageDoc(t)
	doc.Add(&slot.Slot{
		ID: "grid-only", Type: slot.TypeText, ParentID: "root", Content: "grid view only",
		ViewModes: []string{"grid"},
		Position:  slot.Position{Col: 1, Row: 2}, ColSpan: 12,
	})
	r := New(testRegistry(t))

	rc := viewCtx()
	out, err := r.RenderDocument(doc, rc)
	if err != nil {
		t.Fatalf("render grid: %v", err)
	}
	if !strings.Contains(string(out), "grid view only") {
		t.Fatalf("grid-only slot missing in grid mode: %s", out)
	}

	rc.ViewMode = "list"
	out, err = r.RenderDocument(doc, rc)
	if err != nil {
		t.Fatalf("render list: %v", err)
	}
	if strings.Contains(string(out), "grid view only") {
		t.Fatalf("grid-only slot rendered in list mode: %s", out)
	}
	if !strings.Contains(string(out), `data-view="list"`) {
		t.Fatalf("view mode not forwarded to components: %s", out)
	}
}

func TestEditorInstrumentation(t *testing.T) {
	r := New(testRegistry(t))
	doc := pageDoc(t)

	rc := viewCtx()
	view, err := r.RenderDocument(doc, rc)
	if err != nil {
		t.Fatalf("view render: %v", err)
	}
	rc.Mode = registry.ModeEditor
	editor, err := r.RenderDocument(doc, rc)
	if err != nil {
		t.Fatalf("editor render: %v", err)
	}

	if strings.Contains(string(view), "data-slot-id") || strings.Contains(string(view), "slot-resize-handle") {
		t.Fatalf("editor chrome leaked into view output: %s", view)
	}
	if !strings.Contains(string(editor), `data-slot-id="products"`) {
		t.Fatalf("editor output missing instrumentation: %s", editor)
	}
	if !strings.Contains(string(editor), `data-resize-for="blurb"`) {
		t.Fatalf("editor output missing resize handle: %s", editor)
	}

	// Editor preview renders like the storefront.
	rc.Preview = true
	preview, err := r.RenderDocument(doc, rc)
	if err != nil {
		t.Fatalf("preview render: %v", err)
	}
	if preview != view {
		t.Fatalf("preview differs from view output:\n%s\n%s", preview, view)
	}
}

func TestUnresolvableSlotSkipped(t *testing.T) {
	doc := pageDoc(t)
	doc.Add(&slot.Slot{
		ID: "mystery", Type: slot.TypeComponent, Component: "no_such_widget", ParentID: "root",
		Position: slot.Position{Col: 1, Row: 3}, ColSpan: 12,
	})
	r := New(testRegistry(t))

	out, err := r.RenderDocument(doc, viewCtx())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if strings.Contains(string(out), "mystery") {
		t.Fatalf("unresolvable slot rendered: %s", out)
	}
	if !strings.Contains(string(out), `id="slot-blurb"`) {
		t.Fatalf("sibling slots must survive an unresolvable slot: %s", out)
	}
}

func TestContainerFallbackRecurses(t *testing.T) {
	// No container renderer registered: the generic fallback must still
	// recurse into children.
	r := New(testRegistry(t))
	out, err := r.RenderDocument(pageDoc(t), viewCtx())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(string(out), "Welcome") {
		t.Fatalf("children of fallback container not rendered: %s", out)
	}
}

func TestCustomResolver(t *testing.T) {
	doc := pageDoc(t)
	custom := func(rc registry.Context, s *slot.Slot, _ registry.Children) (template.HTML, error) {
		if s.ID == "blurb" {
			return "<p>injected</p>", nil
		}
		return "", registry.ErrPass
	}
	r := New(testRegistry(t), WithCustomResolver(custom))

	out, err := r.RenderDocument(doc, viewCtx())
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(string(out), "injected") {
		t.Fatalf("custom resolver not consulted: %s", out)
	}
	if strings.Contains(string(out), "Welcome") {
		t.Fatalf("custom resolver should shadow the registry for blurb: %s", out)
	}
	if !strings.Contains(string(out), `data-view="grid"`) {
		t.Fatalf("ErrPass must fall through to the registry: %s", out)
	}
}

func TestAdjustmentsNeverMutateSource(t *testing.T) {
	doc := pageDoc(t)
	adj := grid.ModeAdjustments{
		"list": {{SlotID: "products", Property: grid.PropColSpan, Value: 12}},
	}
	r := New(testRegistry(t), WithAdjustments(adj))

	rc := viewCtx()
	rc.ViewMode = "list"
	out, err := r.RenderDocument(doc, rc)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(string(out), "span 12") {
		t.Fatalf("list adjustment not applied: %s", out)
	}
	if doc.Slots["products"].ColSpan != 8 {
		t.Fatalf("source document mutated by render: %+v", doc.Slots["products"])
	}
}

func TestCellStyleViewport(t *testing.T) {
	s := &slot.Slot{
		ID: "x", Type: slot.TypeText,
		Position: slot.Position{Col: 3, Row: 2}, ColSpan: 6, RowSpan: 2,
		Viewports: map[slot.Viewport]slot.Geometry{
			slot.ViewportMobile: {Col: 1, Row: 1, ColSpan: 12, RowSpan: 1},
		},
		Styles: map[string]string{"background": "#fff", "align-self": "start"},
	}
	desktop := string(cellStyle(s, slot.ViewportDesktop))
	if !strings.HasPrefix(desktop, "grid-column:3/span 6;grid-row:2/span 2;") {
		t.Fatalf("desktop style: %s", desktop)
	}
	if !strings.Contains(desktop, "align-self:start;background:#fff;") {
		t.Fatalf("custom styles not sorted: %s", desktop)
	}
	mobile := string(cellStyle(s, slot.ViewportMobile))
	if !strings.HasPrefix(mobile, "grid-column:1/span 12;") {
		t.Fatalf("mobile override not applied: %s", mobile)
	}
}

package widgets

import (
	"html/template"
	"strings"
	"testing"

	"github.com/lumaworks/slotline/registry"
	"github.com/lumaworks/slotline/slot"
)

type fixedProducts []Product

func (f fixedProducts) Products(storeID string, limit int) []Product {
	if limit > len(f) {
		limit = len(f)
	}
	return f[:limit]
}

type fixedBlocks map[string]string

func (f fixedBlocks) Block(storeID, blockID string) (string, bool) {
	html, ok := f[blockID]
	return html, ok
}

type fixedCart int

func (f fixedCart) CartCount(storeID string) int { return int(f) }

func noChildren() (template.HTML, error) { return "", nil }

func ctx() registry.Context {
	return registry.Context{StoreID: "store-1", PageType: slot.PageCategory, ViewMode: "grid"}
}

func render(t *testing.T, reg *registry.Registry, name string, s *slot.Slot) string {
	t.Helper()
	fn, ok := reg.Resolve(name)
	if !ok {
		t.Fatalf("renderer %q not registered", name)
	}
	out, err := fn(ctx(), s, noChildren)
	if err != nil {
		t.Fatalf("render %q: %v", name, err)
	}
	return string(out)
}

func TestTextSanitizes(t *testing.T) {
	reg := registry.New()
	RegisterBuiltins(reg)

	s := &slot.Slot{ID: "t", Type: slot.TypeText,
		Content: `<p onclick="steal()">Hi</p><script>alert(1)</script>`}
	out := render(t, reg, "text", s)
	if strings.Contains(out, "script") || strings.Contains(out, "onclick") {
		t.Fatalf("unsafe markup survived: %s", out)
	}
	if !strings.Contains(out, "<p>Hi</p>") {
		t.Fatalf("safe markup lost: %s", out)
	}
}

func TestCMSBlock(t *testing.T) {
	reg := registry.New()
	RegisterBuiltins(reg, WithBlockSource(fixedBlocks{
		"promo": "<p>Summer sale</p>",
	}))

	s := &slot.Slot{ID: "c", Type: slot.TypeCMSBlock,
		Metadata: map[string]any{"block_id": "promo"}}
	out := render(t, reg, "cms_block", s)
	if !strings.Contains(out, "Summer sale") || !strings.Contains(out, `data-block-id="promo"`) {
		t.Fatalf("block not rendered: %s", out)
	}

	s.Metadata["block_id"] = "missing"
	if out := render(t, reg, "cms_block", s); out != "" {
		t.Fatalf("missing block should render nothing, got: %s", out)
	}
}

func TestCMSBlockPositionIndexesDocumentList(t *testing.T) {
	reg := registry.New()
	RegisterBuiltins(reg, WithBlockSource(fixedBlocks{
		"hero-banner":  "<p>Hero</p>",
		"footer-legal": "<p>Legal</p>",
	}))
	fn, _ := reg.Resolve("cms_block")
	rc := ctx()
	rc.CMSBlocks = []string{"hero-banner", "footer-legal"}

	s := &slot.Slot{ID: "c", Type: slot.TypeCMSBlock,
		Metadata: map[string]any{"cms_position": 1}}
	out, err := fn(rc, s, noChildren)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(string(out), "Legal") || !strings.Contains(string(out), `data-block-id="footer-legal"`) {
		t.Fatalf("position 1 not resolved: %s", out)
	}

	// Out-of-range positions render nothing.
	s.Metadata["cms_position"] = 5
	if out, _ := fn(rc, s, noChildren); out != "" {
		t.Fatalf("out-of-range position rendered: %s", out)
	}

	// An explicit block_id wins over the position index.
	s.Metadata = map[string]any{"block_id": "hero-banner", "cms_position": 1}
	out, _ = fn(rc, s, noChildren)
	if !strings.Contains(string(out), "Hero") {
		t.Fatalf("block_id should win: %s", out)
	}
}

func TestCMSBlockWithoutSource(t *testing.T) {
	reg := registry.New()
	RegisterBuiltins(reg)

	s := &slot.Slot{ID: "c", Type: slot.TypeCMSBlock, Content: "promo"}
	if out := render(t, reg, "cms_block", s); out != "" {
		t.Fatalf("no source should render nothing, got: %s", out)
	}
}

func TestProductGridViewModes(t *testing.T) {
	src := fixedProducts{
		{ID: "p1", Name: "Mug", PriceCents: 1250},
		{ID: "p2", Name: "Shirt", PriceCents: 2999},
		{ID: "p3", Name: "Cap", PriceCents: 1500},
	}
	reg := registry.New()
	RegisterBuiltins(reg, WithProductSource(src))

	s := &slot.Slot{ID: "pg", Type: slot.TypeComponent, Component: "product_grid",
		Metadata: map[string]any{"items_to_show": 2}}

	fn, _ := reg.Resolve("product_grid")
	rc := ctx()
	out, err := fn(rc, s, noChildren)
	if err != nil {
		t.Fatalf("grid render: %v", err)
	}
	if !strings.Contains(string(out), `class="product-grid"`) || !strings.Contains(string(out), `data-count="2"`) {
		t.Fatalf("grid mode wrong: %s", out)
	}
	if !strings.Contains(string(out), "$12.50") {
		t.Fatalf("price not formatted: %s", out)
	}
	if strings.Contains(string(out), "Cap") {
		t.Fatalf("items_to_show not honored: %s", out)
	}

	rc.ViewMode = "list"
	out, err = fn(rc, s, noChildren)
	if err != nil {
		t.Fatalf("list render: %v", err)
	}
	if !strings.Contains(string(out), `class="product-list"`) {
		t.Fatalf("list mode wrong: %s", out)
	}
}

func TestProductGridWithoutSource(t *testing.T) {
	reg := registry.New()
	RegisterBuiltins(reg)

	s := &slot.Slot{ID: "pg", Type: slot.TypeComponent, Component: "product_grid"}
	out := render(t, reg, "product_grid", s)
	if !strings.Contains(out, `data-count="0"`) {
		t.Fatalf("empty grid expected: %s", out)
	}
}

func TestMiniCartStates(t *testing.T) {
	s := &slot.Slot{ID: "mc", Type: slot.TypeComponent, Component: "mini_cart"}

	reg := registry.New()
	RegisterBuiltins(reg, WithCartSource(fixedCart(0)))
	if out := render(t, reg, "mini_cart", s); !strings.Contains(out, "mini-cart-empty") {
		t.Fatalf("empty state expected: %s", out)
	}

	reg = registry.New()
	RegisterBuiltins(reg, WithCartSource(fixedCart(3)))
	out := render(t, reg, "mini_cart", s)
	if !strings.Contains(out, `mini-cart-count">3<`) {
		t.Fatalf("count state expected: %s", out)
	}
}

func TestBanner(t *testing.T) {
	reg := registry.New()
	RegisterBuiltins(reg)

	s := &slot.Slot{ID: "b", Type: slot.TypeComponent, Component: "banner",
		Content:  "Shop now",
		Metadata: map[string]any{"link": "/sale", "image_url": "/img/sale.png"}}
	out := render(t, reg, "banner", s)
	if !strings.Contains(out, `href="/sale"`) || !strings.Contains(out, `src="/img/sale.png"`) {
		t.Fatalf("banner attributes missing: %s", out)
	}
	if !strings.Contains(out, "Shop now") {
		t.Fatalf("banner text missing: %s", out)
	}
}

func TestPluginWidgetIndirection(t *testing.T) {
	reg := registry.New()
	RegisterBuiltins(reg)
	reg.Register("plugin:reviews", func(rc registry.Context, s *slot.Slot, _ registry.Children) (template.HTML, error) {
		return "<div>reviews</div>", nil
	})

	s := &slot.Slot{ID: "pw", Type: slot.TypePluginWidget,
		Metadata: map[string]any{"widget_id": "reviews"}}
	if out := render(t, reg, "plugin_widget", s); !strings.Contains(out, "reviews") {
		t.Fatalf("plugin not resolved: %s", out)
	}

	fn, _ := reg.Resolve("plugin_widget")
	s.Metadata["widget_id"] = "gone"
	if _, err := fn(ctx(), s, noChildren); err != registry.ErrPass {
		t.Fatalf("unknown plugin should pass, got %v", err)
	}
}

func TestFormatPrice(t *testing.T) {
	cases := []struct {
		cents int64
		want  string
	}{
		{0, "$0.00"},
		{5, "$0.05"},
		{1250, "$12.50"},
		{-995, "-$9.95"},
	}
	for _, tc := range cases {
		if got := formatPrice(tc.cents); got != tc.want {
			t.Errorf("formatPrice(%d) = %q, want %q", tc.cents, got, tc.want)
		}
	}
}

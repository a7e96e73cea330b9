// Package widgets provides the built-in component renderers every store
// starts with: text, CMS block, container/grid, product grid, mini cart,
// banner, and the plugin widget indirection.
//
// Registration is explicit: call RegisterBuiltins during startup. Nothing
// happens on import.
package widgets

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/lumaworks/slotline/registry"
	"github.com/lumaworks/slotline/slot"
)

// Product is the minimal listing shape the product grid renders.
type Product struct {
	ID         string
	Name       string
	PriceCents int64
	ImageURL   string
}

// ProductSource supplies products for a store. The platform wires the real
// catalog here; tests use a fixed list.
type ProductSource interface {
	Products(storeID string, limit int) []Product
}

// BlockSource resolves CMS block content by identifier.
type BlockSource interface {
	Block(storeID, blockID string) (html string, ok bool)
}

// CartSource reports the current cart size for the mini cart widget.
type CartSource interface {
	CartCount(storeID string) int
}

type config struct {
	products ProductSource
	blocks   BlockSource
	cart     CartSource
}

// Option configures the built-in widget set.
type Option func(*config)

// WithProductSource wires the catalog backing the product grid.
func WithProductSource(src ProductSource) Option {
	return func(c *config) { c.products = src }
}

// WithBlockSource wires the CMS block store.
func WithBlockSource(src BlockSource) Option {
	return func(c *config) { c.blocks = src }
}

// WithCartSource wires the cart backing the mini cart widget.
func WithCartSource(src CartSource) Option {
	return func(c *config) { c.cart = src }
}

// sanitizer strips script and event-handler content from store-authored
// HTML before it reaches a storefront page.
var sanitizer = bluemonday.UGCPolicy()

// RegisterBuiltins registers the built-in renderers on reg. Sources left
// unset degrade gracefully: the product grid and mini cart render their
// empty states, CMS blocks render nothing.
func RegisterBuiltins(reg *registry.Registry, opts ...Option) {
	var c config
	for _, o := range opts {
		o(&c)
	}

	reg.Register("text", renderText)
	reg.Register("container", renderContainer)
	reg.Register("grid", renderContainer)
	reg.Register("cms_block", c.renderCMSBlock)
	reg.Register("product_grid", c.renderProductGrid)
	reg.Register("mini_cart", c.renderMiniCart)
	reg.Register("banner", renderBanner)
	reg.Register("plugin_widget", renderPluginWidget(reg))
}

func renderText(rc registry.Context, s *slot.Slot, _ registry.Children) (template.HTML, error) {
	return template.HTML(sanitizer.Sanitize(s.Content)), nil
}

func renderContainer(rc registry.Context, s *slot.Slot, children registry.Children) (template.HTML, error) {
	inner, err := children()
	if err != nil {
		return "", err
	}
	return template.HTML(`<div class="slot-grid slot-grid-nested">` + string(inner) + `</div>`), nil
}

func (c *config) renderCMSBlock(rc registry.Context, s *slot.Slot, _ registry.Children) (template.HTML, error) {
	blockID := s.MetaString("block_id")
	if blockID == "" {
		// cms_position indexes the document's ordered block list, so the
		// same slot can surface a different block per page.
		if _, ok := s.Metadata["cms_position"]; ok {
			if i := s.MetaInt("cms_position"); i >= 0 && i < len(rc.CMSBlocks) {
				blockID = rc.CMSBlocks[i]
			}
		}
	}
	if blockID == "" {
		blockID = s.Content
	}
	if blockID == "" || c.blocks == nil {
		return "", nil
	}
	html, ok := c.blocks.Block(rc.StoreID, blockID)
	if !ok {
		return "", nil
	}
	return template.HTML(`<div class="cms-block" data-block-id="` +
		template.HTMLEscapeString(blockID) + `">` + sanitizer.Sanitize(html) + `</div>`), nil
}

var productTmpl = template.Must(template.New("product").Parse(
	`<li class="product-item" data-product-id="{{.ID}}">` +
		`{{with .ImageURL}}<img src="{{.}}" alt="{{$.Name}}">{{end}}` +
		`<span class="product-name">{{.Name}}</span>` +
		`<span class="product-price">{{.Price}}</span>` +
		`</li>`))

func (c *config) renderProductGrid(rc registry.Context, s *slot.Slot, _ registry.Children) (template.HTML, error) {
	limit := s.MetaInt("items_to_show")
	if limit <= 0 {
		limit = 12
	}

	var products []Product
	if c.products != nil {
		products = c.products.Products(rc.StoreID, limit)
	}

	view := rc.ViewMode
	if view != "list" {
		view = "grid"
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `<ul class="product-%s" data-count="%d">`, view, len(products))
	for _, p := range products {
		err := productTmpl.Execute(&sb, struct {
			ID, Name, ImageURL, Price string
		}{p.ID, p.Name, p.ImageURL, formatPrice(p.PriceCents)})
		if err != nil {
			return "", err
		}
	}
	sb.WriteString("</ul>")
	return template.HTML(sb.String()), nil
}

func (c *config) renderMiniCart(rc registry.Context, s *slot.Slot, _ registry.Children) (template.HTML, error) {
	count := 0
	if c.cart != nil {
		count = c.cart.CartCount(rc.StoreID)
	}
	if count == 0 {
		return `<div class="mini-cart mini-cart-empty">Your cart is empty</div>`, nil
	}
	return template.HTML(fmt.Sprintf(
		`<div class="mini-cart"><span class="mini-cart-count">%d</span></div>`, count)), nil
}

var bannerTmpl = template.Must(template.New("banner").Parse(
	`<div class="banner">{{with .ImageURL}}<img src="{{.}}" alt="">{{end}}` +
		`{{with .Link}}<a href="{{.}}">{{$.Text}}</a>{{else}}{{.Text}}{{end}}</div>`))

func renderBanner(rc registry.Context, s *slot.Slot, _ registry.Children) (template.HTML, error) {
	var sb strings.Builder
	err := bannerTmpl.Execute(&sb, struct {
		ImageURL, Link string
		Text           template.HTML
	}{
		ImageURL: s.MetaString("image_url"),
		Link:     s.MetaString("link"),
		Text:     template.HTML(sanitizer.Sanitize(s.Content)),
	})
	if err != nil {
		return "", err
	}
	return template.HTML(sb.String()), nil
}

// renderPluginWidget resolves the actual renderer through the registry using
// the plugin: prefix and the slot's widget_id. Unknown widgets pass, so the
// renderer skips the slot instead of failing the page.
func renderPluginWidget(reg *registry.Registry) registry.Renderer {
	return func(rc registry.Context, s *slot.Slot, children registry.Children) (template.HTML, error) {
		id := s.MetaString("widget_id")
		if id == "" {
			return "", registry.ErrPass
		}
		fn, ok := reg.Resolve("plugin:" + id)
		if !ok {
			return "", registry.ErrPass
		}
		return fn(rc, s, children)
	}
}

func formatPrice(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}

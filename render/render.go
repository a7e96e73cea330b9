// Package render walks a slot document and emits its nested grid HTML.
//
// The same walk serves both surfaces: the admin editor (instrumented with
// selection/drag/resize attributes) and the live storefront (plain output).
// Apart from the editor chrome the two produce identical structure, so what a
// store owner sees while editing matches production.
package render

import (
	"html/template"
	"log/slog"
	"sort"
	"strconv"
	"strings"

	"github.com/lumaworks/slotline/grid"
	"github.com/lumaworks/slotline/registry"
	"github.com/lumaworks/slotline/slot"
)

// Resolver is the caller-supplied override hook consulted before the
// component registry — used for page-specific behaviour such as CMS block
// injection. Return registry.ErrPass to defer to the normal chain.
type Resolver func(rc registry.Context, s *slot.Slot, children registry.Children) (template.HTML, error)

// Renderer renders slot trees against a component registry.
type Renderer struct {
	registry    *registry.Registry
	custom      Resolver
	adjustments grid.ModeAdjustments
	logger      *slog.Logger
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithCustomResolver installs the page-specific override hook.
func WithCustomResolver(fn Resolver) Option {
	return func(r *Renderer) { r.custom = fn }
}

// WithAdjustments installs the view-mode geometry adjustment table, applied
// to a render-time copy whenever a document is rendered.
func WithAdjustments(m grid.ModeAdjustments) Option {
	return func(r *Renderer) { r.adjustments = m }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Renderer) { r.logger = l }
}

// New creates a Renderer resolving against reg.
func New(reg *registry.Registry, opts ...Option) *Renderer {
	r := &Renderer{
		registry: reg,
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

var pageTmpl = template.Must(template.New("page").Parse(
	`<div class="slot-grid" data-page-type="{{.PageType}}">{{.Body}}</div>`))

var cellTmpl = template.Must(template.New("cell").Parse(
	`<div id="slot-{{.ID}}" class="slot slot-{{.Type}}{{with .ClassName}} {{.}}{{end}}"` +
		`{{if .Editor}} data-slot-id="{{.ID}}" data-slot-type="{{.Type}}" draggable="true" data-drop-target="true"{{end}}` +
		` style="{{.Style}}">{{.Content}}` +
		`{{if .Editor}}<span class="slot-resize-handle" data-resize-for="{{.ID}}"></span>{{end}}` +
		`</div>`))

// RenderDocument renders the whole document from the root level, applying
// view-mode adjustments to a working copy so the source is never mutated.
func (r *Renderer) RenderDocument(doc *slot.Document, rc registry.Context) (template.HTML, error) {
	work := doc
	if len(r.adjustments) > 0 {
		work = doc.Clone()
		r.adjustments.Apply(work, rc.ViewMode)
	}
	rc.CMSBlocks = work.CMSBlocks

	body, err := r.RenderLevel(work, "", rc)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	err = pageTmpl.Execute(&sb, struct {
		PageType string
		Body     template.HTML
	}{work.PageType, body})
	if err != nil {
		return "", err
	}
	return template.HTML(sb.String()), nil
}

// RenderLevel renders the children of parentID (empty string = root level):
// select by parent, filter by view mode, sort row-major, render each. The
// output order is a deterministic function of slot positions.
func (r *Renderer) RenderLevel(doc *slot.Document, parentID string, rc registry.Context) (template.HTML, error) {
	var sb strings.Builder
	for _, s := range doc.Children(parentID) {
		if !s.VisibleIn(rc.ViewMode) {
			continue
		}
		out, err := r.renderSlot(doc, s, rc)
		if err != nil {
			return "", err
		}
		sb.WriteString(string(out))
	}
	return template.HTML(sb.String()), nil
}

// renderSlot resolves one slot through the chain: custom hook, then the
// registry, then the generic container fallback. An unresolvable slot
// renders nothing — one misconfigured slot must not blank the page.
func (r *Renderer) renderSlot(doc *slot.Document, s *slot.Slot, rc registry.Context) (template.HTML, error) {
	children := func() (template.HTML, error) {
		return r.RenderLevel(doc, s.ID, rc)
	}

	content, err := r.resolve(rc, s, children)
	if err == registry.ErrPass {
		// Nothing claimed the slot. Containers still recurse; anything else
		// is silently skipped.
		if s.Type == slot.TypeContainer || s.Type == slot.TypeGrid {
			content, err = children()
			if err != nil {
				return "", err
			}
		} else {
			r.logger.Warn("render: unresolvable slot skipped",
				"slot_id", s.ID, "type", s.Type, "component", s.Component)
			return "", nil
		}
	} else if err != nil {
		return "", err
	}

	return r.wrap(s, rc, content)
}

func (r *Renderer) resolve(rc registry.Context, s *slot.Slot, children registry.Children) (template.HTML, error) {
	if r.custom != nil {
		out, err := r.custom(rc, s, children)
		if err != registry.ErrPass {
			return out, err
		}
	}
	if fn, ok := r.registry.Resolve(registry.KeyFor(s)); ok {
		out, err := fn(rc, s, children)
		if err != registry.ErrPass {
			return out, err
		}
	}
	return "", registry.ErrPass
}

// wrap emits the slot's grid cell. Editor mode adds the instrumentation
// attributes and the resize handle; view mode emits the identical cell
// without them.
func (r *Renderer) wrap(s *slot.Slot, rc registry.Context, content template.HTML) (template.HTML, error) {
	var sb strings.Builder
	err := cellTmpl.Execute(&sb, struct {
		ID        string
		Type      slot.Type
		ClassName string
		Editor    bool
		Style     template.CSS
		Content   template.HTML
	}{
		ID:        s.ID,
		Type:      s.Type,
		ClassName: s.ClassName,
		Editor:    rc.Interactive(),
		Style:     cellStyle(s, rc.Viewport),
		Content:   content,
	})
	if err != nil {
		return "", err
	}
	return template.HTML(sb.String()), nil
}

// cellStyle builds the inline grid placement for the slot's effective
// geometry under the active viewport, plus any custom styles in sorted key
// order so output is deterministic.
func cellStyle(s *slot.Slot, vp slot.Viewport) template.CSS {
	pos, colSpan, rowSpan := s.Effective(vp)

	var sb strings.Builder
	sb.WriteString("grid-column:")
	sb.WriteString(itoa(pos.Col))
	sb.WriteString("/span ")
	sb.WriteString(itoa(colSpan))
	sb.WriteString(";grid-row:")
	sb.WriteString(itoa(pos.Row))
	sb.WriteString("/span ")
	sb.WriteString(itoa(rowSpan))
	sb.WriteString(";")

	if len(s.Styles) > 0 {
		keys := make([]string, 0, len(s.Styles))
		for k := range s.Styles {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(k)
			sb.WriteString(":")
			sb.WriteString(s.Styles[k])
			sb.WriteString(";")
		}
	}
	return template.CSS(sb.String())
}

func itoa(n int) string {
	if n < 1 {
		n = 1
	}
	return strconv.Itoa(n)
}

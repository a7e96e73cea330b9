// Package registry maps slot component names to render functions.
//
// The registry is explicit state built at startup — components are registered
// by an initialisation call (widgets.RegisterBuiltins plus any plugin set),
// never by import side effects, so initialisation order is controlled and
// testable. After startup the registry is read-only by convention.
package registry

import (
	"errors"
	"html/template"
	"log/slog"
	"sort"
	"sync"

	"github.com/lumaworks/slotline/slot"
)

// ErrPass is the sentinel a Renderer returns to mean "I don't handle this
// slot — defer to the caller's fallback". It is not a failure.
var ErrPass = errors.New("registry: pass")

// Mode selects editor instrumentation or plain storefront output.
type Mode string

const (
	ModeEditor Mode = "editor"
	ModeView   Mode = "view"
)

// Context is the single immutable value threaded through every recursive
// render call. Data is the opaque domain payload (product, category, cart
// contents) supplied by the page's data-context collaborator.
type Context struct {
	StoreID  string
	PageType string
	ViewMode string
	Viewport slot.Viewport
	Mode     Mode

	// Preview forces view-like inertness even when Mode is editor.
	Preview bool

	Data map[string]any

	// CMSBlocks is the document's ordered CMS position list, consumed by the
	// cms_block component.
	CMSBlocks []string
}

// Interactive reports whether editor instrumentation should be emitted.
func (c Context) Interactive() bool {
	return c.Mode == ModeEditor && !c.Preview
}

// Children renders the slot's child subtree. Container components call it to
// recurse; leaves ignore it.
type Children func() (template.HTML, error)

// Renderer produces the HTML for one slot. It must be a pure function of its
// arguments. Returning ErrPass defers to the caller's fallback chain.
type Renderer func(rc Context, s *slot.Slot, children Children) (template.HTML, error)

// Registry is the name → Renderer lookup table. Thread-safe; registration is
// last-writer-wins, matching the plugin-overrides-builtin contract.
type Registry struct {
	mu        sync.RWMutex
	renderers map[string]Renderer
	logger    *slog.Logger
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) { r.logger = l }
}

// New creates an empty Registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		renderers: make(map[string]Renderer),
		logger:    slog.Default(),
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Register stores fn under name. Re-registering a name overwrites the
// previous renderer — deliberate, so plugins can replace builtins.
func (r *Registry) Register(name string, fn Renderer) {
	r.mu.Lock()
	if _, exists := r.renderers[name]; exists {
		r.logger.Debug("registry: renderer overwritten", "name", name)
	}
	r.renderers[name] = fn
	r.mu.Unlock()
}

// Resolve returns the renderer registered under name.
func (r *Registry) Resolve(name string) (Renderer, bool) {
	r.mu.RLock()
	fn, ok := r.renderers[name]
	r.mu.RUnlock()
	return fn, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Resolve(name)
	return ok
}

// Names returns all registered names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	out := make([]string, 0, len(r.renderers))
	for name := range r.renderers {
		out = append(out, name)
	}
	r.mu.RUnlock()
	sort.Strings(out)
	return out
}

// KeyFor returns the registry lookup key for a slot: the component name for
// component slots, the type tag otherwise.
func KeyFor(s *slot.Slot) string {
	if s.Type == slot.TypeComponent && s.Component != "" {
		return s.Component
	}
	return string(s.Type)
}

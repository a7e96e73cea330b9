// Package layout manages page layout configurations: working drafts with
// debounced autosave, immutable published versions, and the lifecycle
// operations between them (publish, revert, restore, reset).
package layout

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lumaworks/slotline/defaults"
	"github.com/lumaworks/slotline/grid"
	"github.com/lumaworks/slotline/layout/internal/store"
	"github.com/lumaworks/slotline/observability"
	"github.com/lumaworks/slotline/slot"
)

// Page states reported by Status.
const (
	StateUnpublished = "unpublished"
	StatePublished   = "published"
	StateModified    = "modified"
)

// Status summarises one page's lifecycle position.
type Status struct {
	StoreID          string `json:"store_id"`
	PageType         string `json:"page_type"`
	State            string `json:"state"`
	PublishedVersion int    `json:"published_version,omitempty"`
	DraftUpdatedAt   int64  `json:"draft_updated_at,omitempty"`
}

// VersionInfo re-exports the store's version descriptor.
type VersionInfo = store.VersionInfo

// Service is the layout configuration manager.
type Service struct {
	store    *store.Store
	autosave *Autosaver
	events   *observability.EventLogger
	logger   *slog.Logger

	// seed produces the starter document for an unseeded page.
	seed func(storeID, pageType string) (*slot.Document, error)

	// mu serialises read-modify-write cycles on drafts.
	mu sync.Mutex

	closed bool
}

type config struct {
	debounce time.Duration
	events   *observability.EventLogger
	logger   *slog.Logger
	seed     func(storeID, pageType string) (*slot.Document, error)
}

// Option configures the Service.
type Option func(*config)

// WithAutosaveDebounce sets the draft autosave window. Default: 2s.
func WithAutosaveDebounce(d time.Duration) Option {
	return func(c *config) { c.debounce = d }
}

// WithEventLogger wires the lifecycle audit trail.
func WithEventLogger(el *observability.EventLogger) Option {
	return func(c *config) { c.events = el }
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) { c.logger = l }
}

// WithSeed overrides the starter-document source. Default: the embedded
// default templates.
func WithSeed(fn func(storeID, pageType string) (*slot.Document, error)) Option {
	return func(c *config) { c.seed = fn }
}

// New creates a Service on db and applies the layout schema.
func New(db *sql.DB, opts ...Option) (*Service, error) {
	c := config{
		logger: slog.Default(),
		seed:   defaults.Document,
	}
	for _, o := range opts {
		o(&c)
	}

	st := store.New(db)
	if err := st.Init(); err != nil {
		return nil, fmt.Errorf("layout: init schema: %w", err)
	}

	svc := &Service{
		store:  st,
		events: c.events,
		logger: c.logger,
		seed:   c.seed,
	}
	svc.autosave = NewAutosaver(st, c.debounce, c.logger, func(doc *slot.Document) {
		svc.logEvent(context.Background(), doc.StoreID, doc.PageType,
			observability.ActionDraftSaved, 0, "", true)
	})
	return svc, nil
}

// Close flushes pending autosaves. The service must not be used afterwards.
func (s *Service) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return s.autosave.Close()
}

// Draft returns the working draft, seeding it from the default template on
// first access. Queued (not yet persisted) edits are visible.
func (s *Service) Draft(ctx context.Context, storeID, pageType string) (*slot.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draftLocked(ctx, storeID, pageType)
}

func (s *Service) draftLocked(ctx context.Context, storeID, pageType string) (*slot.Document, error) {
	if s.closed {
		return nil, ErrClosed
	}
	if doc, ok := s.autosave.Peek(storeID, pageType); ok {
		return doc, nil
	}
	doc, err := s.store.GetDraft(ctx, storeID, pageType)
	if err == nil {
		return doc, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	doc, err = s.seed(storeID, pageType)
	if err != nil {
		if errors.Is(err, defaults.ErrUnknownPageType) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, pageType)
		}
		return nil, err
	}
	if err := s.store.SaveDraft(ctx, doc); err != nil {
		return nil, err
	}
	s.logger.Info("draft seeded from default template",
		"store_id", storeID, "page_type", pageType)
	return doc, nil
}

// SaveDraft validates doc and queues it for debounced persistence.
func (s *Service) SaveDraft(ctx context.Context, doc *slot.Document) error {
	if err := doc.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return s.autosave.Queue(doc)
}

// mutate runs fn against the current draft and queues the result.
func (s *Service) mutate(ctx context.Context, storeID, pageType string, fn func(*slot.Document) error) (*slot.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.draftLocked(ctx, storeID, pageType)
	if err != nil {
		return nil, err
	}
	if err := fn(doc); err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidDocument, err)
	}
	if err := s.autosave.Queue(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// AddSlot adds sl to the page's draft.
func (s *Service) AddSlot(ctx context.Context, storeID, pageType string, sl *slot.Slot) (*slot.Document, error) {
	return s.mutate(ctx, storeID, pageType, func(doc *slot.Document) error {
		if sl.ID == "" {
			return fmt.Errorf("%w: slot id required", ErrInvalidDocument)
		}
		doc.Add(sl)
		return nil
	})
}

// UpdateSlot replaces the slot with sl.ID in the page's draft. Geometry is
// left to ResizeSlot and MoveSlot; this covers content, metadata, styles and
// view modes.
func (s *Service) UpdateSlot(ctx context.Context, storeID, pageType string, sl *slot.Slot) (*slot.Document, error) {
	return s.mutate(ctx, storeID, pageType, func(doc *slot.Document) error {
		cur := doc.Get(sl.ID)
		if cur == nil {
			return fmt.Errorf("%w: slot %s", ErrNotFound, sl.ID)
		}
		sl.ParentID = cur.ParentID
		sl.Position = cur.Position
		sl.ColSpan = cur.ColSpan
		sl.RowSpan = cur.RowSpan
		doc.Add(sl)
		return nil
	})
}

// DeleteSlot removes a slot and its descendants from the page's draft,
// returning the removed IDs.
func (s *Service) DeleteSlot(ctx context.Context, storeID, pageType, slotID string) ([]string, error) {
	var removed []string
	_, err := s.mutate(ctx, storeID, pageType, func(doc *slot.Document) error {
		if doc.Get(slotID) == nil {
			return fmt.Errorf("%w: slot %s", ErrNotFound, slotID)
		}
		removed = doc.Delete(slotID)
		return nil
	})
	return removed, err
}

// MoveSlot applies a drag-and-drop against the page's draft.
func (s *Service) MoveSlot(ctx context.Context, storeID, pageType, draggedID, targetID string, pos grid.DropPosition) (*slot.Document, error) {
	return s.mutate(ctx, storeID, pageType, func(doc *slot.Document) error {
		return grid.Drop(doc, draggedID, targetID, pos)
	})
}

// ResizeSlot sets the slot's spans, clamped to the grid. Spans <= 0 keep the
// current value. Siblings are never repositioned by a resize.
func (s *Service) ResizeSlot(ctx context.Context, storeID, pageType, slotID string, colSpan, rowSpan int) (*slot.Document, error) {
	return s.mutate(ctx, storeID, pageType, func(doc *slot.Document) error {
		sl := doc.Get(slotID)
		if sl == nil {
			return fmt.Errorf("%w: slot %s", ErrNotFound, slotID)
		}
		if colSpan > 0 {
			sl.ColSpan = grid.ClampColSpan(colSpan, sl.Position.Col)
		}
		if rowSpan > 0 {
			sl.RowSpan = grid.ClampRowSpan(rowSpan)
		}
		return nil
	})
}

// Publish flushes pending edits and snapshots the draft as the next
// published version.
func (s *Service) Publish(ctx context.Context, storeID, pageType, publishedBy string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrClosed
	}
	// Seed on first touch so publishing a never-edited page works.
	if _, err := s.draftLocked(ctx, storeID, pageType); err != nil {
		return 0, err
	}
	if err := s.autosave.FlushPage(ctx, storeID, pageType); err != nil {
		return 0, err
	}
	version, err := s.store.Publish(ctx, storeID, pageType, publishedBy)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	s.logEvent(ctx, storeID, pageType, observability.ActionPublished, version, publishedBy, true)
	s.logger.Info("layout published",
		"store_id", storeID, "page_type", pageType, "version", version)
	return version, nil
}

// Revert discards the draft, restoring the currently published document.
// Pending autosaves for the page are dropped, not flushed.
func (s *Service) Revert(ctx context.Context, storeID, pageType string) (*slot.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	pub, version, err := s.store.GetPublished(ctx, storeID, pageType)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrNoPublished
		}
		return nil, err
	}
	s.autosave.Discard(storeID, pageType)
	if err := s.store.SaveDraft(ctx, pub); err != nil {
		return nil, err
	}
	s.logEvent(ctx, storeID, pageType, observability.ActionReverted, version, "", true)
	return pub, nil
}

// RestoreVersion loads a historical published version into the draft. The
// published pointer does not move until the draft is published again.
func (s *Service) RestoreVersion(ctx context.Context, storeID, pageType string, version int) (*slot.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	doc, err := s.store.GetVersion(ctx, storeID, pageType, version)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, fmt.Errorf("%w: version %d", ErrNotFound, version)
		}
		return nil, err
	}
	s.autosave.Discard(storeID, pageType)
	if err := s.store.SaveDraft(ctx, doc); err != nil {
		return nil, err
	}
	s.logEvent(ctx, storeID, pageType, observability.ActionReverted, version, "", true)
	return doc, nil
}

// Reset replaces the draft with the default template for the page type.
func (s *Service) Reset(ctx context.Context, storeID, pageType string) (*slot.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	doc, err := s.seed(storeID, pageType)
	if err != nil {
		if errors.Is(err, defaults.ErrUnknownPageType) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, pageType)
		}
		return nil, err
	}
	s.autosave.Discard(storeID, pageType)
	if err := s.store.SaveDraft(ctx, doc); err != nil {
		return nil, err
	}
	s.logEvent(ctx, storeID, pageType, observability.ActionReset, 0, "", true)
	return doc, nil
}

// Status reports the page's lifecycle state. A page is "modified" when its
// draft differs structurally from the published document; timestamps and map
// ordering do not count as differences.
func (s *Service) Status(ctx context.Context, storeID, pageType string) (*Status, error) {
	s.mu.Lock()
	draft, err := s.draftLocked(ctx, storeID, pageType)
	s.mu.Unlock()
	if err != nil {
		return nil, err
	}

	st := &Status{StoreID: storeID, PageType: pageType}
	if ts, err := s.store.DraftUpdatedAt(ctx, storeID, pageType); err == nil {
		st.DraftUpdatedAt = ts
	}

	pub, version, err := s.store.GetPublished(ctx, storeID, pageType)
	if errors.Is(err, store.ErrNotFound) {
		st.State = StateUnpublished
		return st, nil
	}
	if err != nil {
		return nil, err
	}
	st.PublishedVersion = version
	if slot.Equal(draft, pub) {
		st.State = StatePublished
	} else {
		st.State = StateModified
	}
	return st, nil
}

// Versions lists published versions, newest first.
func (s *Service) Versions(ctx context.Context, storeID, pageType string, limit int) ([]VersionInfo, error) {
	return s.store.ListVersions(ctx, storeID, pageType, limit)
}

// Pages lists the page types the store has drafts for.
func (s *Service) Pages(ctx context.Context, storeID string) ([]string, error) {
	return s.store.ListPages(ctx, storeID)
}

// History returns recent lifecycle events for the page, newest first. Empty
// when no event logger is wired.
func (s *Service) History(ctx context.Context, storeID, pageType string, limit int) ([]observability.Event, error) {
	if s.events == nil {
		return nil, nil
	}
	return s.events.History(ctx, storeID, pageType, limit)
}

// Storefront returns the document the live storefront should render: the
// published version, or the default template when the page has never been
// published. The returned version is 0 for the default fallback.
func (s *Service) Storefront(ctx context.Context, storeID, pageType string) (*slot.Document, int, error) {
	doc, version, err := s.store.GetPublished(ctx, storeID, pageType)
	if err == nil {
		return doc, version, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, 0, err
	}
	doc, err = s.seed(storeID, pageType)
	if err != nil {
		if errors.Is(err, defaults.ErrUnknownPageType) {
			return nil, 0, fmt.Errorf("%w: %s", ErrNotFound, pageType)
		}
		return nil, 0, err
	}
	return doc, 0, nil
}

func (s *Service) logEvent(ctx context.Context, storeID, pageType, action string, version int, userID string, success bool) {
	if s.events == nil {
		return
	}
	s.events.LogEvent(ctx, observability.Event{
		StoreID:  storeID,
		PageType: pageType,
		Action:   action,
		Version:  version,
		UserID:   userID,
		Success:  success,
	})
}

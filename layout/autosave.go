package layout

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/lumaworks/slotline/layout/internal/store"
	"github.com/lumaworks/slotline/slot"
)

// Autosaver coalesces draft writes: every queued document restarts a per-page
// debounce timer, and only the latest document is persisted when the timer
// fires. A burst of edits produces one write.
type Autosaver struct {
	store    *store.Store
	debounce time.Duration
	logger   *slog.Logger
	onSave   func(doc *slot.Document)

	mu      sync.Mutex
	pending map[string]*pendingSave
	closed  bool
}

type pendingSave struct {
	doc   *slot.Document
	timer *time.Timer
}

// NewAutosaver creates an Autosaver. onSave, if non-nil, runs after each
// successful persist (the audit hook).
func NewAutosaver(st *store.Store, debounce time.Duration, logger *slog.Logger, onSave func(*slot.Document)) *Autosaver {
	if debounce <= 0 {
		debounce = 2 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Autosaver{
		store:    st,
		debounce: debounce,
		logger:   logger,
		onSave:   onSave,
		pending:  make(map[string]*pendingSave),
	}
}

func pageKey(storeID, pageType string) string {
	return storeID + "\x00" + pageType
}

// Queue schedules doc for persistence after the debounce window. A later
// Queue for the same page replaces the document and restarts the window.
func (a *Autosaver) Queue(doc *slot.Document) error {
	key := pageKey(doc.StoreID, doc.PageType)
	snapshot := doc.Clone()

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return ErrClosed
	}
	if p, ok := a.pending[key]; ok {
		p.doc = snapshot
		p.timer.Reset(a.debounce)
		return nil
	}
	p := &pendingSave{doc: snapshot}
	p.timer = time.AfterFunc(a.debounce, func() { a.fire(key) })
	a.pending[key] = p
	return nil
}

// Peek returns a copy of the pending (not yet persisted) document for the
// page, if any. Reads must see queued edits, not the stale stored draft.
func (a *Autosaver) Peek(storeID, pageType string) (*slot.Document, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	p, ok := a.pending[pageKey(storeID, pageType)]
	if !ok {
		return nil, false
	}
	return p.doc.Clone(), true
}

// Discard drops any pending save for the page. Used by revert and reset so a
// stale draft cannot overwrite the restored document.
func (a *Autosaver) Discard(storeID, pageType string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if p, ok := a.pending[pageKey(storeID, pageType)]; ok {
		p.timer.Stop()
		delete(a.pending, pageKey(storeID, pageType))
	}
}

// FlushPage persists any pending save for the page immediately.
func (a *Autosaver) FlushPage(ctx context.Context, storeID, pageType string) error {
	key := pageKey(storeID, pageType)
	a.mu.Lock()
	p, ok := a.pending[key]
	if ok {
		p.timer.Stop()
		delete(a.pending, key)
	}
	a.mu.Unlock()
	if !ok {
		return nil
	}
	return a.save(ctx, p.doc)
}

// Flush persists every pending save.
func (a *Autosaver) Flush(ctx context.Context) error {
	a.mu.Lock()
	docs := make([]*slot.Document, 0, len(a.pending))
	for key, p := range a.pending {
		p.timer.Stop()
		docs = append(docs, p.doc)
		delete(a.pending, key)
	}
	a.mu.Unlock()

	var firstErr error
	for _, doc := range docs {
		if err := a.save(ctx, doc); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Close flushes all pending saves and rejects further queues.
func (a *Autosaver) Close() error {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
	return a.Flush(context.Background())
}

func (a *Autosaver) fire(key string) {
	a.mu.Lock()
	p, ok := a.pending[key]
	if ok {
		delete(a.pending, key)
	}
	a.mu.Unlock()
	if !ok {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.save(ctx, p.doc); err != nil {
		a.logger.Error("autosave failed, retrying",
			"error", err, "store_id", p.doc.StoreID, "page_type", p.doc.PageType)
		a.requeue(key, p)
	}
}

// requeue restores a pending entry whose save failed, so the edit stays
// visible to Peek and the next window retries it. A newer entry queued in
// the meantime already carries the edit and wins.
func (a *Autosaver) requeue(key string, p *pendingSave) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.pending[key]; ok || a.closed {
		return
	}
	p.timer = time.AfterFunc(a.debounce, func() { a.fire(key) })
	a.pending[key] = p
}

func (a *Autosaver) save(ctx context.Context, doc *slot.Document) error {
	if err := a.store.SaveDraft(ctx, doc); err != nil {
		return err
	}
	a.logger.Debug("draft autosaved",
		"store_id", doc.StoreID, "page_type", doc.PageType, "slots", len(doc.Slots))
	if a.onSave != nil {
		a.onSave(doc)
	}
	return nil
}

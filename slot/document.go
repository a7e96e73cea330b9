package slot

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"
)

var (
	// ErrCycle means a slot's parent chain loops back onto itself.
	ErrCycle = errors.New("slot: cyclic parent reference")
	// ErrDanglingParent means a slot references a parent ID not present in
	// the document.
	ErrDanglingParent = errors.New("slot: dangling parent reference")
	// ErrNotFound means the requested slot ID is not in the document.
	ErrNotFound = errors.New("slot: not found")
)

// Meta carries document bookkeeping. Timestamps are milliseconds since epoch.
type Meta struct {
	Version      int   `json:"version"`
	Created      int64 `json:"created"`
	LastModified int64 `json:"last_modified"`
}

// Document is the persisted unit: the full slot tree plus metadata for one
// (store, page type) pair.
type Document struct {
	StoreID  string           `json:"store_id"`
	PageType string           `json:"page_type"`
	Slots    map[string]*Slot `json:"slots"`

	// CMSBlocks is the ordered list of CMS block position identifiers
	// interleaved with slot content by the cms_block component.
	CMSBlocks []string `json:"cms_blocks,omitempty"`

	Meta Meta `json:"metadata"`
}

// NewDocument creates an empty document for a (store, page type) pair.
func NewDocument(storeID, pageType string) *Document {
	now := time.Now().UnixMilli()
	return &Document{
		StoreID:  storeID,
		PageType: pageType,
		Slots:    map[string]*Slot{},
		Meta:     Meta{Version: 1, Created: now, LastModified: now},
	}
}

// Get returns the slot with the given ID, or nil when absent.
func (d *Document) Get(id string) *Slot {
	return d.Slots[id]
}

// Children returns the slots whose ParentID equals parentID (empty string for
// root level), sorted row-major: row ascending, then col ascending, then ID as
// the tiebreaker so the result never depends on map iteration order.
func (d *Document) Children(parentID string) []*Slot {
	var out []*Slot
	for _, s := range d.Slots {
		if s.ParentID == parentID {
			out = append(out, s)
		}
	}
	SortRowMajor(out)
	return out
}

// SortRowMajor orders slots by row, then col, then ID.
func SortRowMajor(slots []*Slot) {
	sort.Slice(slots, func(i, j int) bool {
		a, b := slots[i], slots[j]
		if a.Position.Row != b.Position.Row {
			return a.Position.Row < b.Position.Row
		}
		if a.Position.Col != b.Position.Col {
			return a.Position.Col < b.Position.Col
		}
		return a.ID < b.ID
	})
}

// Add inserts a slot, stamping LastModified.
func (d *Document) Add(s *Slot) {
	d.Slots[s.ID] = s
	d.touch()
}

// Delete removes the slot and every descendant (slots whose parent chain
// includes id). It returns the IDs actually removed. Deleting an unknown ID
// removes nothing.
func (d *Document) Delete(id string) []string {
	if _, ok := d.Slots[id]; !ok {
		return nil
	}

	doomed := map[string]bool{id: true}
	// Descendants are collected breadth-first; each pass sweeps the map for
	// children of already-doomed slots until the set stops growing.
	for {
		grew := false
		for _, s := range d.Slots {
			if doomed[s.ID] {
				continue
			}
			if doomed[s.ParentID] {
				doomed[s.ID] = true
				grew = true
			}
		}
		if !grew {
			break
		}
	}

	removed := make([]string, 0, len(doomed))
	for did := range doomed {
		delete(d.Slots, did)
		removed = append(removed, did)
	}
	sort.Strings(removed)
	d.touch()
	return removed
}

// Validate checks the structural invariants: every non-empty ParentID must
// reference an existing slot, and no parent chain may contain a cycle.
// Applied at the load/save boundary; the renderer itself trusts the document.
func (d *Document) Validate() error {
	for id, s := range d.Slots {
		if s.ID != id {
			return fmt.Errorf("slot: key %q does not match slot ID %q", id, s.ID)
		}
		if s.ParentID == "" {
			continue
		}
		if _, ok := d.Slots[s.ParentID]; !ok {
			return fmt.Errorf("%w: slot %s -> %s", ErrDanglingParent, id, s.ParentID)
		}
	}

	// Walk each parent chain with a visited set. Chains are short, so the
	// quadratic worst case is irrelevant at 12-column page scale.
	for id := range d.Slots {
		seen := map[string]bool{}
		cur := id
		for cur != "" {
			if seen[cur] {
				return fmt.Errorf("%w: via slot %s", ErrCycle, id)
			}
			seen[cur] = true
			s, ok := d.Slots[cur]
			if !ok {
				break
			}
			cur = s.ParentID
		}
	}
	return nil
}

// IsAncestor reports whether ancestorID appears in id's parent chain.
// A slot is not its own ancestor.
func (d *Document) IsAncestor(ancestorID, id string) bool {
	seen := map[string]bool{}
	s, ok := d.Slots[id]
	for ok && s.ParentID != "" && !seen[s.ParentID] {
		if s.ParentID == ancestorID {
			return true
		}
		seen[s.ParentID] = true
		s, ok = d.Slots[s.ParentID]
	}
	return false
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	out := &Document{
		StoreID:   d.StoreID,
		PageType:  d.PageType,
		Slots:     make(map[string]*Slot, len(d.Slots)),
		CMSBlocks: append([]string(nil), d.CMSBlocks...),
		Meta:      d.Meta,
	}
	for id, s := range d.Slots {
		out.Slots[id] = s.Clone()
	}
	return out
}

// Normalize returns a canonical JSON snapshot of the document's semantic
// content: slot map key order is irrelevant (encoding/json emits map keys
// sorted) and volatile metadata (timestamps, version) is excluded. Two
// documents with equal Normalize output are semantically the same layout.
func (d *Document) Normalize() []byte {
	shadow := struct {
		StoreID   string           `json:"store_id"`
		PageType  string           `json:"page_type"`
		Slots     map[string]*Slot `json:"slots"`
		CMSBlocks []string         `json:"cms_blocks,omitempty"`
	}{
		StoreID:   d.StoreID,
		PageType:  d.PageType,
		Slots:     d.Slots,
		CMSBlocks: d.CMSBlocks,
	}
	data, err := json.Marshal(shadow)
	if err != nil {
		panic(fmt.Sprintf("slot: normalize: %v", err))
	}
	return data
}

// Equal reports whether two documents are semantically equal, ignoring
// timestamps and version counters.
func Equal(a, b *Document) bool {
	if a == nil || b == nil {
		return a == b
	}
	return string(a.Normalize()) == string(b.Normalize())
}

func (d *Document) touch() {
	d.Meta.LastModified = time.Now().UnixMilli()
}

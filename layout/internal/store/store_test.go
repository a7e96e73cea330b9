package store

import (
	"context"
	"errors"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/lumaworks/slotline/dbopen"
	"github.com/lumaworks/slotline/slot"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	s := New(dbopen.OpenMemory(t))
	if err := s.Init(); err != nil {
		t.Fatalf("init schema: %v", err)
	}
	return s
}

func doc(t *testing.T, storeID string, colSpan int) *slot.Document {
	t.Helper()
	d := slot.NewDocument(storeID, slot.PageCategory)
	d.Add(&slot.Slot{ID: "root", Type: slot.TypeContainer,
		Position: slot.Position{Col: 1, Row: 1}, ColSpan: colSpan})
	return d
}

func TestDraftRoundTrip(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.GetDraft(ctx, "s1", slot.PageCategory); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing draft: err = %v", err)
	}

	if err := s.SaveDraft(ctx, doc(t, "s1", 12)); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := s.GetDraft(ctx, "s1", slot.PageCategory)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Slots["root"].ColSpan != 12 {
		t.Fatalf("round trip: %+v", got.Slots["root"])
	}

	// Upsert replaces the previous draft.
	if err := s.SaveDraft(ctx, doc(t, "s1", 6)); err != nil {
		t.Fatalf("save again: %v", err)
	}
	got, err = s.GetDraft(ctx, "s1", slot.PageCategory)
	if err != nil {
		t.Fatalf("get again: %v", err)
	}
	if got.Slots["root"].ColSpan != 6 {
		t.Fatalf("upsert did not replace: %+v", got.Slots["root"])
	}
}

func TestPublishAssignsSequentialVersions(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	if _, err := s.Publish(ctx, "s1", slot.PageCategory, "alex"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("publish without draft: err = %v", err)
	}

	if err := s.SaveDraft(ctx, doc(t, "s1", 12)); err != nil {
		t.Fatalf("save: %v", err)
	}
	v1, err := s.Publish(ctx, "s1", slot.PageCategory, "alex")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if v1 != 1 {
		t.Fatalf("first version = %d", v1)
	}

	if err := s.SaveDraft(ctx, doc(t, "s1", 6)); err != nil {
		t.Fatalf("save: %v", err)
	}
	v2, err := s.Publish(ctx, "s1", slot.PageCategory, "alex")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if v2 != 2 {
		t.Fatalf("second version = %d", v2)
	}

	pub, cur, err := s.GetPublished(ctx, "s1", slot.PageCategory)
	if err != nil {
		t.Fatalf("get published: %v", err)
	}
	if cur != 2 || pub.Slots["root"].ColSpan != 6 {
		t.Fatalf("published = v%d %+v", cur, pub.Slots["root"])
	}

	// Older versions stay readable.
	old, err := s.GetVersion(ctx, "s1", slot.PageCategory, 1)
	if err != nil {
		t.Fatalf("get v1: %v", err)
	}
	if old.Slots["root"].ColSpan != 12 {
		t.Fatalf("v1 changed: %+v", old.Slots["root"])
	}
}

func TestSetPublishedVersion(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.SaveDraft(ctx, doc(t, "s1", 12))
	s.Publish(ctx, "s1", slot.PageCategory, "")
	s.SaveDraft(ctx, doc(t, "s1", 6))
	s.Publish(ctx, "s1", slot.PageCategory, "")

	if err := s.SetPublishedVersion(ctx, "s1", slot.PageCategory, 1); err != nil {
		t.Fatalf("set published: %v", err)
	}
	_, cur, err := s.GetPublished(ctx, "s1", slot.PageCategory)
	if err != nil || cur != 1 {
		t.Fatalf("current = %d, err = %v", cur, err)
	}

	if err := s.SetPublishedVersion(ctx, "s1", slot.PageCategory, 99); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unknown version: err = %v", err)
	}
}

func TestListVersionsMarksCurrent(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.SaveDraft(ctx, doc(t, "s1", 12))
	s.Publish(ctx, "s1", slot.PageCategory, "alex")
	s.SaveDraft(ctx, doc(t, "s1", 6))
	s.Publish(ctx, "s1", slot.PageCategory, "sam")

	versions, err := s.ListVersions(ctx, "s1", slot.PageCategory, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("got %d versions", len(versions))
	}
	if versions[0].Version != 2 || !versions[0].Current || versions[0].CreatedBy != "sam" {
		t.Fatalf("newest: %+v", versions[0])
	}
	if versions[1].Current {
		t.Fatalf("v1 marked current: %+v", versions[1])
	}
}

func TestListPagesPerStore(t *testing.T) {
	s := testStore(t)
	ctx := context.Background()

	s.SaveDraft(ctx, doc(t, "s1", 12))
	d := slot.NewDocument("s1", slot.PageProduct)
	d.Add(&slot.Slot{ID: "root", Type: slot.TypeContainer,
		Position: slot.Position{Col: 1, Row: 1}, ColSpan: 12})
	s.SaveDraft(ctx, d)
	s.SaveDraft(ctx, doc(t, "s2", 12))

	pages, err := s.ListPages(ctx, "s1")
	if err != nil {
		t.Fatalf("list pages: %v", err)
	}
	if len(pages) != 2 || pages[0] != slot.PageCategory || pages[1] != slot.PageProduct {
		t.Fatalf("pages = %v", pages)
	}
}

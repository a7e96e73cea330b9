// Package store is the data access layer for layout drafts and published
// versions. It receives an already-opened *sql.DB and owns all SQL touching
// the layout tables.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lumaworks/slotline/slot"
)

// ErrNotFound is returned when no row matches the requested page or version.
var ErrNotFound = errors.New("store: not found")

// Store wraps the layout database.
type Store struct {
	DB *sql.DB
}

// New creates a Store from an already-opened database connection.
func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

// Init applies the layout schema.
func (s *Store) Init() error {
	_, err := s.DB.Exec(Schema)
	return err
}

// VersionInfo describes one published version.
type VersionInfo struct {
	Version   int    `json:"version"`
	CreatedAt int64  `json:"created_at"`
	CreatedBy string `json:"created_by,omitempty"`
	Current   bool   `json:"current"`
}

// GetDraft loads the working draft for a page. ErrNotFound when the page has
// never been seeded.
func (s *Store) GetDraft(ctx context.Context, storeID, pageType string) (*slot.Document, error) {
	var raw string
	err := s.DB.QueryRowContext(ctx,
		`SELECT draft_doc FROM layout_pages WHERE store_id = ? AND page_type = ?`,
		storeID, pageType).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get draft: %w", err)
	}
	return decodeDoc(raw)
}

// SaveDraft upserts the working draft.
func (s *Store) SaveDraft(ctx context.Context, doc *slot.Document) error {
	raw, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	now := time.Now().UnixMilli()
	_, err = s.DB.ExecContext(ctx, `
		INSERT INTO layout_pages (store_id, page_type, draft_doc, draft_updated_at, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(store_id, page_type) DO UPDATE SET
			draft_doc = excluded.draft_doc,
			draft_updated_at = excluded.draft_updated_at`,
		doc.StoreID, doc.PageType, string(raw), now, now)
	if err != nil {
		return fmt.Errorf("save draft: %w", err)
	}
	return nil
}

// PublishedVersion returns the published pointer, or 0 when the page has
// never been published. ErrNotFound when the page row is missing.
func (s *Store) PublishedVersion(ctx context.Context, storeID, pageType string) (int, error) {
	var v sql.NullInt64
	err := s.DB.QueryRowContext(ctx,
		`SELECT published_version FROM layout_pages WHERE store_id = ? AND page_type = ?`,
		storeID, pageType).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("published version: %w", err)
	}
	if !v.Valid {
		return 0, nil
	}
	return int(v.Int64), nil
}

// GetPublished loads the currently published document. ErrNotFound when the
// page is missing or has never been published.
func (s *Store) GetPublished(ctx context.Context, storeID, pageType string) (*slot.Document, int, error) {
	v, err := s.PublishedVersion(ctx, storeID, pageType)
	if err != nil {
		return nil, 0, err
	}
	if v == 0 {
		return nil, 0, ErrNotFound
	}
	doc, err := s.GetVersion(ctx, storeID, pageType, v)
	if err != nil {
		return nil, 0, err
	}
	return doc, v, nil
}

// GetVersion loads one published version.
func (s *Store) GetVersion(ctx context.Context, storeID, pageType string, version int) (*slot.Document, error) {
	var raw string
	err := s.DB.QueryRowContext(ctx,
		`SELECT doc FROM layout_versions WHERE store_id = ? AND page_type = ? AND version = ?`,
		storeID, pageType, version).Scan(&raw)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get version: %w", err)
	}
	return decodeDoc(raw)
}

// Publish snapshots the current draft as the next version and moves the
// published pointer to it in one transaction. Returns the new version.
func (s *Store) Publish(ctx context.Context, storeID, pageType, publishedBy string) (int, error) {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("publish: begin: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT draft_doc FROM layout_pages WHERE store_id = ? AND page_type = ?`,
		storeID, pageType).Scan(&raw)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("publish: read draft: %w", err)
	}

	var next int
	err = tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) + 1 FROM layout_versions
		 WHERE store_id = ? AND page_type = ?`,
		storeID, pageType).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("publish: next version: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO layout_versions (store_id, page_type, version, doc, created_at, created_by)
		VALUES (?, ?, ?, ?, ?, ?)`,
		storeID, pageType, next, raw, time.Now().UnixMilli(), publishedBy)
	if err != nil {
		return 0, fmt.Errorf("publish: insert version: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		UPDATE layout_pages SET published_version = ?
		WHERE store_id = ? AND page_type = ?`,
		next, storeID, pageType)
	if err != nil {
		return 0, fmt.Errorf("publish: move pointer: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("publish: commit: %w", err)
	}
	return next, nil
}

// SetPublishedVersion moves the published pointer to an existing version.
func (s *Store) SetPublishedVersion(ctx context.Context, storeID, pageType string, version int) error {
	var exists int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM layout_versions WHERE store_id = ? AND page_type = ? AND version = ?`,
		storeID, pageType, version).Scan(&exists)
	if err != nil {
		return fmt.Errorf("set published: %w", err)
	}
	if exists == 0 {
		return ErrNotFound
	}
	res, err := s.DB.ExecContext(ctx, `
		UPDATE layout_pages SET published_version = ?
		WHERE store_id = ? AND page_type = ?`,
		version, storeID, pageType)
	if err != nil {
		return fmt.Errorf("set published: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// ListVersions lists published versions, newest first.
func (s *Store) ListVersions(ctx context.Context, storeID, pageType string, limit int) ([]VersionInfo, error) {
	if limit <= 0 {
		limit = 20
	}
	current, err := s.PublishedVersion(ctx, storeID, pageType)
	if err != nil && err != ErrNotFound {
		return nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `
		SELECT version, created_at, created_by FROM layout_versions
		WHERE store_id = ? AND page_type = ?
		ORDER BY version DESC LIMIT ?`,
		storeID, pageType, limit)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var out []VersionInfo
	for rows.Next() {
		var v VersionInfo
		if err := rows.Scan(&v.Version, &v.CreatedAt, &v.CreatedBy); err != nil {
			return nil, err
		}
		v.Current = v.Version == current
		out = append(out, v)
	}
	return out, rows.Err()
}

// ListPages returns the page types a store has rows for, sorted.
func (s *Store) ListPages(ctx context.Context, storeID string) ([]string, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT page_type FROM layout_pages WHERE store_id = ? ORDER BY page_type`,
		storeID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var pt string
		if err := rows.Scan(&pt); err != nil {
			return nil, err
		}
		out = append(out, pt)
	}
	return out, rows.Err()
}

// DraftUpdatedAt returns the draft's last write timestamp in Unix millis.
func (s *Store) DraftUpdatedAt(ctx context.Context, storeID, pageType string) (int64, error) {
	var ts int64
	err := s.DB.QueryRowContext(ctx,
		`SELECT draft_updated_at FROM layout_pages WHERE store_id = ? AND page_type = ?`,
		storeID, pageType).Scan(&ts)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return ts, err
}

func decodeDoc(raw string) (*slot.Document, error) {
	var doc slot.Document
	if err := json.Unmarshal([]byte(raw), &doc); err != nil {
		return nil, fmt.Errorf("decode document: %w", err)
	}
	if doc.Slots == nil {
		doc.Slots = make(map[string]*slot.Slot)
	}
	return &doc, nil
}

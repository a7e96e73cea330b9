package store

// Schema is the layout persistence schema. One row per store×page holds the
// working draft; every publish appends an immutable row to layout_versions
// and moves the published pointer.
const Schema = `
CREATE TABLE IF NOT EXISTS layout_pages (
    store_id          TEXT NOT NULL,
    page_type         TEXT NOT NULL,
    draft_doc         TEXT NOT NULL,
    draft_updated_at  INTEGER NOT NULL,
    published_version INTEGER,
    created_at        INTEGER NOT NULL,
    PRIMARY KEY (store_id, page_type)
);

CREATE TABLE IF NOT EXISTS layout_versions (
    store_id   TEXT NOT NULL,
    page_type  TEXT NOT NULL,
    version    INTEGER NOT NULL,
    doc        TEXT NOT NULL,
    created_at INTEGER NOT NULL,
    created_by TEXT NOT NULL DEFAULT '',
    PRIMARY KEY (store_id, page_type, version)
);
CREATE INDEX IF NOT EXISTS idx_layout_versions_page
    ON layout_versions(store_id, page_type, version DESC);
`

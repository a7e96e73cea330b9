// Package observability records layout lifecycle events and HTTP request
// logs to SQLite.
//
// All writes are non-blocking from the caller's perspective: a failing
// observability store never blocks or fails the operation being recorded.
package observability

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/lumaworks/slotline/idgen"
)

// Schema contains the DDL for the observability tables. Apply with Init(db)
// or embed in your own schema management.
const Schema = `
CREATE TABLE IF NOT EXISTS layout_events (
    event_id TEXT PRIMARY KEY,
    store_id TEXT NOT NULL,
    page_type TEXT NOT NULL,
    action TEXT NOT NULL,
    version INTEGER NOT NULL DEFAULT 0,
    user_id TEXT,
    details TEXT,
    success INTEGER NOT NULL DEFAULT 1,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_layout_events_page
    ON layout_events(store_id, page_type, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_layout_events_action
    ON layout_events(action, created_at DESC);

CREATE TABLE IF NOT EXISTS http_request_logs (
    log_id TEXT PRIMARY KEY,
    method TEXT NOT NULL,
    path TEXT NOT NULL,
    status_code INTEGER,
    duration_ms INTEGER,
    ip_address TEXT,
    user_agent TEXT,
    created_at INTEGER NOT NULL DEFAULT (strftime('%s', 'now'))
);
CREATE INDEX IF NOT EXISTS idx_http_logs_time ON http_request_logs(created_at DESC);
`

// Init applies the observability schema to the given database.
func Init(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}

// Event is one layout lifecycle record: a draft save, publish, revert or
// reset against a specific page.
type Event struct {
	EventID   string `json:"event_id"`
	StoreID   string `json:"store_id"`
	PageType  string `json:"page_type"`
	Action    string `json:"action"`
	Version   int    `json:"version"`
	UserID    string `json:"user_id,omitempty"`
	Details   string `json:"details,omitempty"`
	Success   bool   `json:"success"`
	CreatedAt int64  `json:"created_at"`
}

// Actions recorded by the layout service.
const (
	ActionDraftSaved = "draft_saved"
	ActionPublished  = "published"
	ActionReverted   = "reverted"
	ActionReset      = "reset"
)

// EventLogger writes layout events and answers history queries.
type EventLogger struct {
	db     *sql.DB
	newID  idgen.Generator
	logger *slog.Logger
}

// EventLoggerOption configures an EventLogger.
type EventLoggerOption func(*EventLogger)

// WithEventIDGenerator sets a custom ID generator for event IDs.
func WithEventIDGenerator(gen idgen.Generator) EventLoggerOption {
	return func(l *EventLogger) { l.newID = gen }
}

// WithEventLoggerLogger sets the diagnostic logger.
func WithEventLoggerLogger(lg *slog.Logger) EventLoggerOption {
	return func(l *EventLogger) { l.logger = lg }
}

// NewEventLogger creates a logger backed by db. Init must have been applied.
func NewEventLogger(db *sql.DB, opts ...EventLoggerOption) *EventLogger {
	l := &EventLogger{
		db:     db,
		newID:  idgen.Prefixed("evt_", idgen.Default),
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// LogEvent records one lifecycle event. Errors are logged, not returned.
func (l *EventLogger) LogEvent(ctx context.Context, e Event) {
	if e.EventID == "" {
		e.EventID = l.newID()
	}
	if e.CreatedAt == 0 {
		e.CreatedAt = time.Now().Unix()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO layout_events (
			event_id, store_id, page_type, action, version,
			user_id, details, success, created_at
		) VALUES (?,?,?,?,?,?,?,?,?)`,
		e.EventID, e.StoreID, e.PageType, e.Action, e.Version,
		e.UserID, e.Details, e.Success, e.CreatedAt)
	if err != nil {
		l.logger.Error("observability: event log failed",
			"error", err, "action", e.Action, "store_id", e.StoreID)
	}
}

// History returns the most recent events for a page, newest first.
func (l *EventLogger) History(ctx context.Context, storeID, pageType string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := l.db.QueryContext(ctx, `
		SELECT event_id, store_id, page_type, action, version,
		       COALESCE(user_id, ''), COALESCE(details, ''), success, created_at
		FROM layout_events
		WHERE store_id = ? AND page_type = ?
		ORDER BY created_at DESC, event_id DESC
		LIMIT ?`, storeID, pageType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Event
	for rows.Next() {
		var e Event
		if err := rows.Scan(&e.EventID, &e.StoreID, &e.PageType, &e.Action,
			&e.Version, &e.UserID, &e.Details, &e.Success, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Cleanup deletes events and request logs older than retentionDays.
func Cleanup(ctx context.Context, db *sql.DB, retentionDays int) error {
	if retentionDays <= 0 {
		return nil
	}
	threshold := time.Now().AddDate(0, 0, -retentionDays).Unix()
	for _, table := range []string{"layout_events", "http_request_logs"} {
		if _, err := db.ExecContext(ctx,
			"DELETE FROM "+table+" WHERE created_at < ?", threshold); err != nil {
			return err
		}
	}
	return nil
}

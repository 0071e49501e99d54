// Package audit is the supplementary mutation history: an append-only log
// of committed Orchestrator mutations, persisted separately from the State
// Store's JSON-backed authoritative maps so it can be pruned or disabled
// without touching the entities nginx depends on.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/nubi-io/nubi/internal/model"
)

// Trail is a SQLite-backed append-only audit log (pure Go, no CGO).
type Trail struct {
	db *sql.DB
}

// Open opens or creates a SQLite database at path, creating the parent
// directory if necessary, and runs the schema migration.
func Open(ctx context.Context, path string) (*Trail, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create audit database directory %s: %w", dir, err)
		}
	}
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open audit sqlite: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite is single-writer

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit schema: %w", err)
	}
	return &Trail{db: db}, nil
}

// Close closes the underlying database connection.
func (t *Trail) Close() error {
	return t.db.Close()
}

// Record inserts one audit entry. It implements orchestrator.AuditRecorder.
func (t *Trail) Record(entry model.AuditEntry) error {
	_, err := t.db.ExecContext(context.Background(),
		`INSERT INTO audit_log (id, timestamp, action, entity_kind, entity_id, before_json, after_json)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Timestamp, entry.Action, entry.EntityKind, entry.EntityID, entry.BeforeJSON, entry.AfterJSON,
	)
	return err
}

// ListOptions filters a ListEntries call.
type ListOptions struct {
	EntityKind string
	EntityID   string
	Action     model.AuditAction
	Limit      int
	Offset     int
}

// ListEntries returns entries matching opts, newest first, alongside the
// total count ignoring Limit/Offset.
func (t *Trail) ListEntries(ctx context.Context, opts ListOptions) ([]model.AuditEntry, int64, error) {
	var conditions []string
	var args []any

	if opts.EntityKind != "" {
		conditions = append(conditions, "entity_kind = ?")
		args = append(args, opts.EntityKind)
	}
	if opts.EntityID != "" {
		conditions = append(conditions, "entity_id = ?")
		args = append(args, opts.EntityID)
	}
	if opts.Action != "" {
		conditions = append(conditions, "action = ?")
		args = append(args, opts.Action)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM audit_log %s", where)
	if err := t.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 50
	}

	query := fmt.Sprintf(
		"SELECT id, timestamp, action, entity_kind, entity_id, before_json, after_json FROM audit_log %s ORDER BY timestamp DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, limit, opts.Offset)

	rows, err := t.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var entries []model.AuditEntry
	for rows.Next() {
		var e model.AuditEntry
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Action, &e.EntityKind, &e.EntityID, &e.BeforeJSON, &e.AfterJSON); err != nil {
			return nil, 0, err
		}
		entries = append(entries, e)
	}
	return entries, total, rows.Err()
}

// GetEntry returns a single audit entry by id, or nil if not found.
func (t *Trail) GetEntry(ctx context.Context, id string) (*model.AuditEntry, error) {
	var e model.AuditEntry
	err := t.db.QueryRowContext(ctx,
		"SELECT id, timestamp, action, entity_kind, entity_id, before_json, after_json FROM audit_log WHERE id = ?",
		id,
	).Scan(&e.ID, &e.Timestamp, &e.Action, &e.EntityKind, &e.EntityID, &e.BeforeJSON, &e.AfterJSON)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return &e, err
}

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	id TEXT PRIMARY KEY,
	timestamp DATETIME NOT NULL,
	action TEXT NOT NULL,
	entity_kind TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	before_json TEXT NOT NULL DEFAULT '',
	after_json TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_audit_timestamp ON audit_log(timestamp);
CREATE INDEX IF NOT EXISTS idx_audit_entity ON audit_log(entity_kind, entity_id);
CREATE INDEX IF NOT EXISTS idx_audit_action ON audit_log(action);
`

// Package audit records every handled chat request in a SQLite table
// so operators can review what was asked, how it was classified and
// how long it took.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	_ "modernc.org/sqlite"

	"github.com/luigisaetta/oraculum/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS audit_log (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	conv_id        TEXT NOT NULL,
	request_text   TEXT NOT NULL,
	classification TEXT NOT NULL,
	cache_hit      INTEGER NOT NULL DEFAULT 0,
	status_code    INTEGER NOT NULL,
	latency_ms     INTEGER NOT NULL,
	created_at     TIMESTAMP NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_audit_conv ON audit_log(conv_id);
CREATE INDEX IF NOT EXISTS idx_audit_classification ON audit_log(classification);
CREATE INDEX IF NOT EXISTS idx_audit_created ON audit_log(created_at);
`

// Logger persists audit entries. A disabled logger accepts calls and
// drops them, so callers never need to branch on configuration.
type Logger struct {
	db      *sql.DB
	enabled bool
}

// New opens (or creates) the audit database at cfg.DBPath and applies
// the schema. When the audit trail is disabled it returns a no-op
// logger without touching the filesystem.
func New(cfg models.AuditConfig) (*Logger, error) {
	if !cfg.Enabled {
		return &Logger{enabled: false}, nil
	}
	db, err := sql.Open("sqlite", cfg.DBPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit db: %w", err)
	}
	return &Logger{db: db, enabled: true}, nil
}

// Enabled reports whether entries are actually persisted.
func (l *Logger) Enabled() bool { return l.enabled }

// Log inserts one entry. A zero CreatedAt is filled with the current
// time. Errors are returned to the caller; the server logs and drops
// them so audit failures never break a chat response.
func (l *Logger) Log(ctx context.Context, e models.AuditEntry) error {
	if !l.enabled {
		return nil
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	_, err := l.db.ExecContext(ctx, `
		INSERT INTO audit_log
			(conv_id, request_text, classification, cache_hit, status_code, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		e.ConvID, e.RequestText, e.Classification, boolToInt(e.CacheHit),
		e.StatusCode, e.LatencyMs, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

// LogAsync runs Log in a goroutine so the request path never waits on
// the audit database.
func (l *Logger) LogAsync(e models.AuditEntry) {
	if !l.enabled {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := l.Log(ctx, e); err != nil {
			log.Printf("audit: %v", err)
		}
	}()
}

// QueryOptions narrows the result of Recent. Zero values mean "no
// filter".
type QueryOptions struct {
	ConvID         string
	Classification string
	Limit          int
}

// Recent returns entries ordered newest first, optionally filtered by
// conversation or classification.
func (l *Logger) Recent(ctx context.Context, opts QueryOptions) ([]models.AuditEntry, error) {
	if !l.enabled {
		return nil, nil
	}
	query := `SELECT id, conv_id, request_text, classification, cache_hit, status_code, latency_ms, created_at
		FROM audit_log WHERE 1=1`
	var args []any
	if opts.ConvID != "" {
		query += " AND conv_id = ?"
		args = append(args, opts.ConvID)
	}
	if opts.Classification != "" {
		query += " AND classification = ?"
		args = append(args, opts.Classification)
	}
	query += " ORDER BY created_at DESC, id DESC"
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var out []models.AuditEntry
	for rows.Next() {
		var e models.AuditEntry
		var hit int
		if err := rows.Scan(&e.ID, &e.ConvID, &e.RequestText, &e.Classification,
			&hit, &e.StatusCode, &e.LatencyMs, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.CacheHit = hit != 0
		out = append(out, e)
	}
	return out, rows.Err()
}

// Close releases the database handle.
func (l *Logger) Close() error {
	if l.db == nil {
		return nil
	}
	return l.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Package store provides durable SQLite persistence for orgs, nodes,
// tasks, responses, HITL records, and event logs.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Store wraps the SQLite database. It is the single source of truth for
// task state; all cross-worker coordination goes through it.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) the database at dbPath and applies the schema.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open org db: %w", err)
	}
	if _, err := db.Exec(Schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	// Best-effort migration for databases created before the completion
	// dedup table was introduced (no-op on fresh databases).
	_, _ = db.Exec(`CREATE TABLE IF NOT EXISTS ai_task_completions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		parent_task_id TEXT NOT NULL,
		child_task_id TEXT NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (parent_task_id, child_task_id)
	)`)
	_, _ = db.Exec(`ALTER TABLE ai_tasks ADD COLUMN retry_count INTEGER DEFAULT 0`)
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the raw handle for maintenance commands.
func (s *Store) DB() *sql.DB { return s.db }

func marshalJSON(m map[string]any) string {
	if m == nil {
		return "{}"
	}
	data, err := json.Marshal(m)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func unmarshalJSON(s sql.NullString) map[string]any {
	if !s.Valid || s.String == "" {
		return nil
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(s.String), &m); err != nil {
		return nil
	}
	return m
}

func marshalStrings(list []string) string {
	if list == nil {
		list = []string{}
	}
	data, err := json.Marshal(list)
	if err != nil {
		return "[]"
	}
	return string(data)
}

func unmarshalStrings(s sql.NullString) []string {
	if !s.Valid || s.String == "" {
		return nil
	}
	var list []string
	if err := json.Unmarshal([]byte(s.String), &list); err != nil {
		return nil
	}
	return list
}

func timeValue(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	v := t.Time.UTC()
	return &v
}

func nullString(s sql.NullString) string {
	if !s.Valid {
		return ""
	}
	return s.String
}

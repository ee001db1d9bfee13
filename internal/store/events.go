package store

import (
	"database/sql"
	"fmt"

	"github.com/OrgWeave/OrgWeave/internal/org"
)

// SaveEvent appends an event log entry.
func (s *Store) SaveEvent(e *org.EventLog) error {
	_, err := s.db.Exec(`
		INSERT INTO ai_event_logs (event_id, org_id, event_type, source_node_id, target_node_id, task_id, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.OrgID, e.EventType,
		nullable(e.SourceNodeID), nullable(e.TargetNodeID), nullable(e.TaskID),
		marshalJSON(e.Payload), e.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save event %s: %w", e.EventID, err)
	}
	return nil
}

// GetEventLogs returns an org's events, newest first.
func (s *Store) GetEventLogs(orgID string, limit int) ([]*org.EventLog, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.Query(`
		SELECT event_id, org_id, event_type, source_node_id, target_node_id, task_id, payload, created_at
		FROM ai_event_logs WHERE org_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`, orgID, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []*org.EventLog
	for rows.Next() {
		var e org.EventLog
		var source, target, taskID, payload sql.NullString
		if err := rows.Scan(&e.EventID, &e.OrgID, &e.EventType, &source, &target, &taskID, &payload, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.SourceNodeID = nullString(source)
		e.TargetNodeID = nullString(target)
		e.TaskID = nullString(taskID)
		e.Payload = unmarshalJSON(payload)
		events = append(events, &e)
	}
	return events, rows.Err()
}

// GetOrgStats returns task counts by status, node count, and recent task
// error messages for an org.
func (s *Store) GetOrgStats(orgID string) (*org.OrgStats, error) {
	stats := &org.OrgStats{OrgID: orgID, TasksByStatus: map[string]int{}}

	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM ai_tasks WHERE org_id = ? GROUP BY status`, orgID)
	if err != nil {
		return nil, fmt.Errorf("org stats %s: %w", orgID, err)
	}
	defer rows.Close()
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("org stats %s: %w", orgID, err)
		}
		stats.TasksByStatus[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("org stats %s: %w", orgID, err)
	}

	if err := s.db.QueryRow(`SELECT COUNT(*) FROM ai_nodes WHERE org_id = ?`, orgID).Scan(&stats.NodeCount); err != nil {
		return nil, fmt.Errorf("org stats %s: %w", orgID, err)
	}

	errRows, err := s.db.Query(`SELECT error_message FROM ai_tasks
		WHERE org_id = ? AND error_message IS NOT NULL AND error_message != ''
		ORDER BY updated_at DESC LIMIT 10`, orgID)
	if err != nil {
		return nil, fmt.Errorf("org stats %s: %w", orgID, err)
	}
	defer errRows.Close()
	for errRows.Next() {
		var msg string
		if err := errRows.Scan(&msg); err != nil {
			return nil, fmt.Errorf("org stats %s: %w", orgID, err)
		}
		stats.RecentErrors = append(stats.RecentErrors, msg)
	}
	return stats, errRows.Err()
}

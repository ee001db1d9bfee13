package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OrgWeave/OrgWeave/internal/org"
)

const queueColumns = `item_id, org_id, node_id, task_id, review_type, content, status, created_at, expires_at`

// SaveQueueItem inserts or updates a HITL queue item.
func (s *Store) SaveQueueItem(item *org.QueueItem) error {
	var content any
	if item.Content != nil {
		data, err := json.Marshal(item.Content)
		if err != nil {
			return fmt.Errorf("save queue item %s: %w", item.ItemID, err)
		}
		content = string(data)
	}
	_, err := s.db.Exec(`
		INSERT INTO ai_hitl_queue (item_id, org_id, node_id, task_id, review_type, content, status, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(item_id) DO UPDATE SET
			content = excluded.content,
			status = excluded.status,
			expires_at = excluded.expires_at`,
		item.ItemID, item.OrgID, item.NodeID, item.TaskID, item.ReviewType,
		content, item.Status, item.CreatedAt.UTC(), item.ExpiresAt.UTC())
	if err != nil {
		return fmt.Errorf("save queue item %s: %w", item.ItemID, err)
	}
	return nil
}

// GetQueueItem loads a queue item by id.
func (s *Store) GetQueueItem(itemID string) (*org.QueueItem, error) {
	row := s.db.QueryRow(`SELECT `+queueColumns+` FROM ai_hitl_queue WHERE item_id = ?`, itemID)
	return scanQueueItem(row)
}

// GetPendingHITLForNodes returns pending queue items for the given nodes,
// oldest first.
func (s *Store) GetPendingHITLForNodes(nodeIDs []string) ([]*org.QueueItem, error) {
	if len(nodeIDs) == 0 {
		return nil, nil
	}
	placeholders := strings.Repeat("?,", len(nodeIDs))
	placeholders = placeholders[:len(placeholders)-1]
	args := make([]any, 0, len(nodeIDs))
	for _, id := range nodeIDs {
		args = append(args, id)
	}
	return s.queryQueueItems(`SELECT `+queueColumns+` FROM ai_hitl_queue
		WHERE node_id IN (`+placeholders+`) AND status = 'pending' ORDER BY created_at`, args...)
}

// GetExpiredHITL returns pending items whose expiry has passed.
func (s *Store) GetExpiredHITL(now time.Time) ([]*org.QueueItem, error) {
	return s.queryQueueItems(`SELECT `+queueColumns+` FROM ai_hitl_queue
		WHERE status = 'pending' AND expires_at < ? ORDER BY expires_at`, now.UTC())
}

// SaveAction appends an audit action.
func (s *Store) SaveAction(a *org.HITLAction) error {
	_, err := s.db.Exec(`
		INSERT INTO ai_hitl_actions (action_id, org_id, node_id, task_id, response_id, user_id, action_type,
			original_content, modified_content, reason, message, ip_address, user_agent, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ActionID, a.OrgID, nullable(a.NodeID), nullable(a.TaskID), nullable(a.ResponseID),
		a.UserID, a.ActionType,
		jsonOrNil(a.OriginalContent), jsonOrNil(a.ModifiedContent),
		nullable(a.Reason), nullable(a.Message), nullable(a.IPAddress), nullable(a.UserAgent),
		a.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("save action %s: %w", a.ActionID, err)
	}
	return nil
}

// GetActions returns audit actions filtered by any of org, node, and task,
// newest first.
func (s *Store) GetActions(orgID, nodeID, taskID string, limit int) ([]*org.HITLAction, error) {
	if limit <= 0 {
		limit = 100
	}
	query := `SELECT action_id, org_id, node_id, task_id, response_id, user_id, action_type,
		original_content, modified_content, reason, message, ip_address, user_agent, created_at
		FROM ai_hitl_actions WHERE 1=1`
	var args []any
	if orgID != "" {
		query += ` AND org_id = ?`
		args = append(args, orgID)
	}
	if nodeID != "" {
		query += ` AND node_id = ?`
		args = append(args, nodeID)
	}
	if taskID != "" {
		query += ` AND task_id = ?`
		args = append(args, taskID)
	}
	query += ` ORDER BY created_at DESC, id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query actions: %w", err)
	}
	defer rows.Close()

	var actions []*org.HITLAction
	for rows.Next() {
		var a org.HITLAction
		var nodeID, taskID, respID, original, modified, reason, message, ip, ua sql.NullString
		if err := rows.Scan(&a.ActionID, &a.OrgID, &nodeID, &taskID, &respID, &a.UserID, &a.ActionType,
			&original, &modified, &reason, &message, &ip, &ua, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan action: %w", err)
		}
		a.NodeID = nullString(nodeID)
		a.TaskID = nullString(taskID)
		a.ResponseID = nullString(respID)
		a.OriginalContent = unmarshalJSON(original)
		a.ModifiedContent = unmarshalJSON(modified)
		a.Reason = nullString(reason)
		a.Message = nullString(message)
		a.IPAddress = nullString(ip)
		a.UserAgent = nullString(ua)
		actions = append(actions, &a)
	}
	return actions, rows.Err()
}

func (s *Store) queryQueueItems(query string, args ...any) ([]*org.QueueItem, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query queue items: %w", err)
	}
	defer rows.Close()

	var items []*org.QueueItem
	for rows.Next() {
		item, err := scanQueueItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func scanQueueItem(row rowScanner) (*org.QueueItem, error) {
	var item org.QueueItem
	var content sql.NullString
	err := row.Scan(&item.ItemID, &item.OrgID, &item.NodeID, &item.TaskID, &item.ReviewType,
		&content, &item.Status, &item.CreatedAt, &item.ExpiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan queue item: %w", err)
	}
	if content.Valid && content.String != "" {
		var r org.Response
		if err := json.Unmarshal([]byte(content.String), &r); err == nil {
			item.Content = &r
		}
	}
	return &item, nil
}

func jsonOrNil(m map[string]any) any {
	if m == nil {
		return nil
	}
	return marshalJSON(m)
}

package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OrgWeave/OrgWeave/internal/org"
)

const taskColumns = `task_id, org_id, parent_task_id, assigned_node_id, title, description,
	input_data, output_data, context, status, delegation_strategy,
	expected_responses, received_responses, priority, deadline, started_at, completed_at,
	error_message, retry_count, created_at, updated_at`

// SaveTask inserts or updates a task.
func (s *Store) SaveTask(t *org.Task) error {
	t.UpdatedAt = time.Now().UTC()
	_, err := s.db.Exec(`
		INSERT INTO ai_tasks (task_id, org_id, parent_task_id, assigned_node_id, title, description,
			input_data, output_data, context, status, delegation_strategy,
			expected_responses, received_responses, priority, deadline, started_at, completed_at,
			error_message, retry_count, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(task_id) DO UPDATE SET
			assigned_node_id = excluded.assigned_node_id,
			title = excluded.title,
			description = excluded.description,
			input_data = excluded.input_data,
			output_data = excluded.output_data,
			context = excluded.context,
			status = excluded.status,
			delegation_strategy = excluded.delegation_strategy,
			expected_responses = excluded.expected_responses,
			received_responses = excluded.received_responses,
			priority = excluded.priority,
			deadline = excluded.deadline,
			started_at = excluded.started_at,
			completed_at = excluded.completed_at,
			error_message = excluded.error_message,
			retry_count = excluded.retry_count,
			updated_at = excluded.updated_at`,
		t.TaskID, t.OrgID, nullable(t.ParentTaskID), nullable(t.AssignedNodeID), t.Title, t.Description,
		marshalJSON(t.InputData), marshalJSON(t.OutputData), marshalJSON(t.Context),
		t.Status, nullable(t.DelegationStrategy),
		t.ExpectedResponses, t.ReceivedResponses, t.Priority,
		timeValue(t.Deadline), timeValue(t.StartedAt), timeValue(t.CompletedAt),
		nullable(t.ErrorMessage), t.RetryCount, t.CreatedAt.UTC(), t.UpdatedAt)
	if err != nil {
		return fmt.Errorf("save task %s: %w", t.TaskID, err)
	}
	return nil
}

// GetTask loads a task by id.
func (s *Store) GetTask(taskID string) (*org.Task, error) {
	row := s.db.QueryRow(`SELECT `+taskColumns+` FROM ai_tasks WHERE task_id = ?`, taskID)
	return scanTask(row)
}

// GetSubtasks returns the children of a task ordered by creation.
func (s *Store) GetSubtasks(taskID string) ([]*org.Task, error) {
	return s.queryTasks(`SELECT `+taskColumns+` FROM ai_tasks
		WHERE parent_task_id = ? ORDER BY created_at, id`, taskID)
}

// GetOrgTasks returns an org's tasks, optionally filtered by status.
func (s *Store) GetOrgTasks(orgID, status string) ([]*org.Task, error) {
	if status == "" {
		return s.queryTasks(`SELECT `+taskColumns+` FROM ai_tasks
			WHERE org_id = ? ORDER BY created_at, id`, orgID)
	}
	return s.queryTasks(`SELECT `+taskColumns+` FROM ai_tasks
		WHERE org_id = ? AND status = ? ORDER BY created_at, id`, orgID, status)
}

// GetOrgActiveTasks returns an org's non-terminal tasks.
func (s *Store) GetOrgActiveTasks(orgID string) ([]*org.Task, error) {
	statuses := []string{org.TaskStatusPending, org.TaskStatusInProgress, org.TaskStatusDelegated, org.TaskStatusWaiting}
	placeholders := strings.Repeat("?,", len(statuses))
	placeholders = placeholders[:len(placeholders)-1]
	args := []any{orgID}
	for _, st := range statuses {
		args = append(args, st)
	}
	return s.queryTasks(`SELECT `+taskColumns+` FROM ai_tasks
		WHERE org_id = ? AND status IN (`+placeholders+`) ORDER BY created_at, id`, args...)
}

// RecordChildCompletion records that a child task reported completion to
// its parent. Returns false when the pair was already recorded, which
// makes duplicate child-completion deliveries idempotent.
func (s *Store) RecordChildCompletion(parentTaskID, childTaskID string) (bool, error) {
	res, err := s.db.Exec(`INSERT OR IGNORE INTO ai_task_completions (parent_task_id, child_task_id)
		VALUES (?, ?)`, parentTaskID, childTaskID)
	if err != nil {
		return false, fmt.Errorf("record completion %s<-%s: %w", parentTaskID, childTaskID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record completion %s<-%s: %w", parentTaskID, childTaskID, err)
	}
	return n > 0, nil
}

// IncrementReceived bumps a parent's received_responses inside one
// transaction, guarded so the count can never pass expected_responses,
// and returns the fresh (received, expected) pair. The caller holds the
// per-parent lock, so observing received == expected here is the single
// aggregation trigger.
func (s *Store) IncrementReceived(parentTaskID string) (received, expected int, err error) {
	tx, err := s.db.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("increment received on %s: %w", parentTaskID, err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`UPDATE ai_tasks
		SET received_responses = received_responses + 1, updated_at = ?
		WHERE task_id = ? AND received_responses < expected_responses`,
		time.Now().UTC(), parentTaskID); err != nil {
		return 0, 0, fmt.Errorf("increment received on %s: %w", parentTaskID, err)
	}
	if err := tx.QueryRow(`SELECT received_responses, expected_responses FROM ai_tasks WHERE task_id = ?`,
		parentTaskID).Scan(&received, &expected); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, 0, ErrNotFound
		}
		return 0, 0, fmt.Errorf("increment received on %s: %w", parentTaskID, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("increment received on %s: %w", parentTaskID, err)
	}
	return received, expected, nil
}

func (s *Store) queryTasks(query string, args ...any) ([]*org.Task, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var tasks []*org.Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, rows.Err()
}

func scanTask(row rowScanner) (*org.Task, error) {
	var t org.Task
	var parent, node, desc, input, output, ctx, strategy, errMsg sql.NullString
	var deadline, started, completed sql.NullTime
	err := row.Scan(&t.TaskID, &t.OrgID, &parent, &node, &t.Title, &desc,
		&input, &output, &ctx, &t.Status, &strategy,
		&t.ExpectedResponses, &t.ReceivedResponses, &t.Priority,
		&deadline, &started, &completed, &errMsg, &t.RetryCount, &t.CreatedAt, &t.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan task: %w", err)
	}
	t.ParentTaskID = nullString(parent)
	t.AssignedNodeID = nullString(node)
	t.Description = nullString(desc)
	t.InputData = unmarshalJSON(input)
	t.OutputData = unmarshalJSON(output)
	t.Context = unmarshalJSON(ctx)
	t.DelegationStrategy = nullString(strategy)
	t.ErrorMessage = nullString(errMsg)
	t.Deadline = timePtr(deadline)
	t.StartedAt = timePtr(started)
	t.CompletedAt = timePtr(completed)
	return &t, nil
}

package engine

import (
	"fmt"

	"github.com/OrgWeave/OrgWeave/internal/org"
)

// TaskTree is the recursive view of a task, its responses, and its
// delegation subtree.
type TaskTree struct {
	Task      *org.Task       `json:"task"`
	NodeLabel string          `json:"node_label"`
	Responses []*org.Response `json:"responses"`
	Subtasks  []*TaskTree     `json:"subtasks,omitempty"`
}

// GetTaskTree loads the full delegation tree rooted at a task.
func (e *Engine) GetTaskTree(taskID string) (*TaskTree, error) {
	task, err := e.store.GetTask(taskID)
	if err != nil {
		return nil, fmt.Errorf("task tree %s: %w", taskID, err)
	}
	return e.buildTree(task)
}

func (e *Engine) buildTree(task *org.Task) (*TaskTree, error) {
	responses, err := e.store.GetTaskResponses(task.TaskID)
	if err != nil {
		return nil, fmt.Errorf("task tree %s: %w", task.TaskID, err)
	}
	label := "Unknown"
	if node, err := e.store.GetNode(task.AssignedNodeID); err == nil {
		label = node.RoleName
	}
	tree := &TaskTree{Task: task, NodeLabel: label, Responses: responses}

	subtasks, err := e.store.GetSubtasks(task.TaskID)
	if err != nil {
		return nil, fmt.Errorf("task tree %s: %w", task.TaskID, err)
	}
	for _, st := range subtasks {
		child, err := e.buildTree(st)
		if err != nil {
			return nil, err
		}
		tree.Subtasks = append(tree.Subtasks, child)
	}
	return tree, nil
}

// GetOrgActiveTasks returns an org's non-terminal tasks.
func (e *Engine) GetOrgActiveTasks(orgID string) ([]*org.Task, error) {
	return e.store.GetOrgActiveTasks(orgID)
}

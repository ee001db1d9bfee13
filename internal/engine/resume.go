package engine

import (
	"context"
	"fmt"

	"github.com/OrgWeave/OrgWeave/internal/org"
)

// Resume entry points invoked by the HITL manager after a human (or the
// timeout sweeper) decides a queue item. Each re-enters the state machine
// at the gate that suspended the task.

// ResumeTaskReceived continues a task suspended at the task_received
// gate. Approval admits the task; rejection fails it.
func (e *Engine) ResumeTaskReceived(ctx context.Context, item *org.QueueItem, approved bool, reason string) error {
	if !approved {
		return e.FailTask(ctx, item.TaskID, fmt.Sprintf("HITL rejected: %s", reason))
	}
	taskID := item.TaskID
	e.enqueue(func(ctx context.Context) {
		unlock := e.locks.lock(taskID)
		defer unlock()
		task, node, ok := e.loadTaskNode(taskID)
		if !ok || task.IsTerminal() || task.Status != org.TaskStatusPending {
			return
		}
		e.runAdmitted(ctx, task, node)
	})
	return nil
}

// ResumeDelegation continues a task suspended at the delegation_review
// gate. Approval (or an override carrying a substituted plan) delegates;
// rejection falls back to direct execution at the reviewing node.
func (e *Engine) ResumeDelegation(ctx context.Context, item *org.QueueItem, plan map[string]any, approved bool) error {
	taskID := item.TaskID
	e.enqueue(func(ctx context.Context) {
		unlock := e.locks.lock(taskID)
		defer unlock()
		task, node, ok := e.loadTaskNode(taskID)
		if !ok || task.IsTerminal() {
			return
		}

		if !approved {
			resp := e.executeDirectly(ctx, task, node)
			e.finalizeWithGate(ctx, task, node, resp, false)
			return
		}

		planMap := plan
		if planMap == nil && item.Content != nil {
			planMap = item.Content.Content
		}
		subordinates, err := e.store.GetChildNodes(node.NodeID)
		if err != nil || len(subordinates) == 0 {
			resp := e.executeDirectly(ctx, task, node)
			e.finalizeWithGate(ctx, task, node, resp, false)
			return
		}
		decoded := PlanFromMap(planMap)
		if len(decoded.Subtasks) == 0 {
			resp := e.executeDirectly(ctx, task, node)
			e.finalizeWithGate(ctx, task, node, resp, false)
			return
		}
		e.delegate(ctx, task, node, decoded, subordinates)
	})
	return nil
}

// ResumeResponseApproval continues a task suspended at the
// response_approval gate. Approval promotes the original candidate;
// an override promotes the already-appended human_override response;
// rejection fails the task.
func (e *Engine) ResumeResponseApproval(ctx context.Context, item *org.QueueItem, override *org.Response, approved bool, reason string) error {
	if !approved {
		return e.FailTask(ctx, item.TaskID, fmt.Sprintf("HITL rejected: %s", reason))
	}
	taskID := item.TaskID
	e.enqueue(func(ctx context.Context) {
		unlock := e.locks.lock(taskID)
		defer unlock()
		task, node, ok := e.loadTaskNode(taskID)
		if !ok || task.IsTerminal() {
			return
		}

		outcome := override
		if outcome == nil {
			outcome = item.Content
		}
		if outcome == nil {
			e.failTaskLocked(ctx, task, node, "HITL item has no candidate response")
			return
		}
		// Candidate and override responses were persisted before the
		// suspension, so finalize must not append them again.
		e.finalize(ctx, task, node, outcome, true)
	})
	return nil
}

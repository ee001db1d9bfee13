package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/OrgWeave/OrgWeave/internal/org"
	"github.com/OrgWeave/OrgWeave/internal/prompts"
	"github.com/OrgWeave/OrgWeave/internal/store"
)

// childComplete handles a child task reaching a terminal status. The
// per-parent lock serializes sibling completions so the aggregation
// trigger fires exactly once; duplicate deliveries for the same child are
// absorbed by the completion dedup table. Follow-up units run after the
// lock is released.
func (e *Engine) childComplete(ctx context.Context, parentTaskID string, child *org.Task) {
	var nextChildID string
	aggregateNow := false

	unlock := e.locks.lock(parentTaskID)
	parent, err := e.store.GetTask(parentTaskID)
	if err != nil {
		unlock()
		slog.Error("Parent task not found", "parent", parentTaskID, "error", err)
		return
	}
	if parent.IsTerminal() {
		// A late completion against a terminal parent is recorded but
		// never re-opens it.
		_, _ = e.store.RecordChildCompletion(parentTaskID, child.TaskID)
		unlock()
		e.logEvent(parent.OrgID, org.EventResponseRecv, map[string]any{
			"parent_task_id": parentTaskID,
			"subtask_id":     child.TaskID,
			"late":           true,
		}, "", "", parentTaskID)
		return
	}

	inserted, err := e.store.RecordChildCompletion(parentTaskID, child.TaskID)
	if err != nil {
		unlock()
		slog.Error("Completion dedup write failed", "parent", parentTaskID, "error", err)
		return
	}
	if !inserted {
		unlock()
		return
	}

	received, expected, err := e.store.IncrementReceived(parentTaskID)
	if err != nil {
		unlock()
		slog.Error("Received counter update failed", "parent", parentTaskID, "error", err)
		return
	}
	if received > expected {
		unlock()
		e.logEvent(parent.OrgID, org.EventInvariant, map[string]any{
			"parent_task_id": parentTaskID,
			"received":       received,
			"expected":       expected,
		}, "", "", parentTaskID)
		_ = e.FailTask(ctx, parentTaskID, fmt.Sprintf("response counter overflow: %d/%d", received, expected))
		return
	}

	if received >= expected && parent.Status == org.TaskStatusWaiting {
		aggregateNow = true
	} else if parent.DelegationStrategy == org.StrategySequential {
		if siblings, err := e.store.GetSubtasks(parentTaskID); err == nil {
			for _, sibling := range siblings {
				if sibling.Status == org.TaskStatusPending {
					nextChildID = sibling.TaskID
					break
				}
			}
		}
	}
	unlock()

	e.logEvent(parent.OrgID, org.EventResponseRecv, map[string]any{
		"parent_task_id": parentTaskID,
		"subtask_id":     child.TaskID,
		"received":       received,
		"expected":       expected,
	}, "", "", parentTaskID)

	if nextChildID != "" {
		id := nextChildID
		e.enqueue(func(ctx context.Context) { e.processTask(ctx, id) })
	}
	if aggregateNow {
		e.enqueue(func(ctx context.Context) { e.aggregate(ctx, parentTaskID) })
	}
}

// aggregate synthesizes all subordinate outcomes into the parent's
// summary response.
func (e *Engine) aggregate(ctx context.Context, taskID string) {
	unlock := e.locks.lock(taskID)
	defer unlock()

	task, node, ok := e.loadTaskNode(taskID)
	if !ok || task.Status != org.TaskStatusWaiting {
		return
	}

	subtasks, err := e.store.GetSubtasks(taskID)
	if err != nil {
		e.failTaskLocked(ctx, task, node, fmt.Sprintf("load subtasks: %v", err))
		return
	}

	var results []prompts.SubtaskResult
	failed := 0
	for _, st := range subtasks {
		if st.Status != org.TaskStatusCompleted {
			failed++
			results = append(results, prompts.SubtaskResult{
				SubtaskTitle: st.Title,
				AssignedNode: st.AssignedNodeID,
				Summary:      st.ErrorMessage,
				Failed:       true,
			})
			continue
		}
		responses, err := e.store.GetTaskResponses(st.TaskID)
		if err != nil {
			e.failTaskLocked(ctx, task, node, fmt.Sprintf("load responses: %v", err))
			return
		}
		outcome := store.OutcomeResponse(responses)
		result := prompts.SubtaskResult{SubtaskTitle: st.Title, AssignedNode: st.AssignedNodeID}
		if outcome != nil {
			result.Summary = outcome.Summary
			result.Response = outcome.Content
		}
		results = append(results, result)
	}

	content, summaryText := e.synthesize(ctx, task, node, results)
	if failed > 0 {
		content["partial_failure"] = fmt.Sprintf("%d of %d subtasks did not complete", failed, len(subtasks))
		summaryText = fmt.Sprintf("%s (partial: %d of %d subtasks failed)", summaryText, failed, len(subtasks))
	}

	resp := org.NewResponse(task.TaskID, node.NodeID, org.ResponseSummary, content, summaryText,
		fmt.Sprintf("Synthesized from %d subordinate responses", len(results)))
	e.finalizeWithGate(ctx, task, node, resp, false)
}

func (e *Engine) synthesize(ctx context.Context, task *org.Task, node *org.Node, results []prompts.SubtaskResult) (map[string]any, string) {
	if e.llm == nil {
		summaries := make([]any, 0, len(results))
		for _, r := range results {
			summaries = append(summaries, r.Summary)
		}
		return map[string]any{
			"subordinate_count":     len(results),
			"subordinate_summaries": summaries,
			"aggregated_findings":   "Aggregation completed without LLM",
		}, fmt.Sprintf("Aggregated %d subordinate responses", len(results))
	}

	prompt := e.prompts.AggregationPrompt(task, node, results)
	text, err := e.llm.Generate(ctx, prompt, e.prompts.RoleSystemPrompt(node), 0.3, 4000)
	if err != nil {
		slog.Warn("LLM aggregation failed, using minimal synthesis", "task", task.TaskID, "error", err)
		summaries := make([]any, 0, len(results))
		for _, r := range results {
			summaries = append(summaries, r.Summary)
		}
		return map[string]any{
			"error":                 err.Error(),
			"subordinate_count":     len(results),
			"subordinate_summaries": summaries,
		}, fmt.Sprintf("Aggregated %d subordinate responses", len(results))
	}

	content := prompts.ParseResponse(text)
	summaryText, _ := content["executive_summary"].(string)
	if summaryText == "" {
		summaryText, _ = content["summary"].(string)
	}
	if summaryText == "" {
		summaryText = "Summary generated"
	}
	return content, summaryText
}

// finalizeWithGate consults the response_approval gate, then completes
// the task. The caller holds the task lock.
func (e *Engine) finalizeWithGate(ctx context.Context, task *org.Task, node *org.Node, resp *org.Response, persisted bool) {
	if e.reviewer != nil && gateEnabled(node, org.ReviewResponseApproval) {
		if !persisted {
			if err := e.store.SaveResponse(resp); err != nil {
				e.failTaskLocked(ctx, task, node, fmt.Sprintf("save candidate response: %v", err))
				return
			}
		}
		if _, err := e.reviewer.QueueForReview(ctx, node, task, org.ReviewResponseApproval, resp); err != nil {
			slog.Warn("HITL queue failed, finalizing without review", "task", task.TaskID, "error", err)
			e.finalize(ctx, task, node, resp, true)
		}
		return
	}
	e.finalize(ctx, task, node, resp, persisted)
}

// finalize writes the outcome, completes the task, and propagates up the
// chain. The caller holds the task lock.
func (e *Engine) finalize(ctx context.Context, task *org.Task, node *org.Node, resp *org.Response, persisted bool) {
	if !persisted {
		if err := e.store.SaveResponse(resp); err != nil {
			e.failTaskLocked(ctx, task, node, fmt.Sprintf("save response: %v", err))
			return
		}
	}

	output := make(map[string]any, len(resp.Content)+1)
	for k, v := range resp.Content {
		output[k] = v
	}
	if _, ok := output["summary"]; !ok && resp.Summary != "" {
		output["summary"] = resp.Summary
	}

	now := time.Now().UTC()
	task.OutputData = output
	task.Status = org.TaskStatusCompleted
	task.CompletedAt = &now
	if err := e.store.SaveTask(task); err != nil {
		e.failTaskLocked(ctx, task, node, fmt.Sprintf("finalize failed: %v", err))
		return
	}
	if err := e.store.SetCurrentTask(node.NodeID, ""); err != nil {
		slog.Warn("Failed to clear current task on node", "node", node.NodeID, "error", err)
	}

	e.logEvent(task.OrgID, org.EventTaskCompleted, map[string]any{
		"task_id":     task.TaskID,
		"node_id":     node.NodeID,
		"response_id": resp.ResponseID,
	}, node.NodeID, "", task.TaskID)

	if task.ParentTaskID != "" {
		e.childComplete(ctx, task.ParentTaskID, task)
		return
	}
	if e.notifier != nil {
		e.notifier.TaskCompleted(ctx, task, node, resp)
	}
}

// failTaskLocked marks a task failed and propagates the terminal status.
// The caller holds the task lock.
func (e *Engine) failTaskLocked(ctx context.Context, task *org.Task, node *org.Node, message string) {
	task.Status = org.TaskStatusFailed
	task.ErrorMessage = message
	if err := e.store.SaveTask(task); err != nil {
		slog.Error("Failed to persist task failure", "task", task.TaskID, "error", err)
	}
	if node != nil {
		if err := e.store.SetCurrentTask(node.NodeID, ""); err != nil {
			slog.Warn("Failed to clear current task on node", "node", node.NodeID, "error", err)
		}
	}

	e.logEvent(task.OrgID, org.EventTaskFailed, map[string]any{
		"task_id": task.TaskID,
		"error":   message,
	}, task.AssignedNodeID, "", task.TaskID)

	if task.ParentTaskID != "" {
		e.childComplete(ctx, task.ParentTaskID, task)
		return
	}
	if e.notifier != nil && node != nil {
		e.notifier.TaskFailed(ctx, task, node)
	}
}

// FailTask marks a task failed from outside a transition (e.g. a HITL
// rejection).
func (e *Engine) FailTask(ctx context.Context, taskID, message string) error {
	unlock := e.locks.lock(taskID)
	defer unlock()

	task, err := e.store.GetTask(taskID)
	if err != nil {
		return fmt.Errorf("fail task %s: %w", taskID, err)
	}
	if task.IsTerminal() {
		return nil
	}
	node, _ := e.store.GetNode(task.AssignedNodeID)
	e.failTaskLocked(ctx, task, node, message)
	return nil
}

// CancelTask cancels a non-terminal task. In-flight children are not
// cancelled; their results are discarded when they report back to the
// already-terminal parent.
func (e *Engine) CancelTask(ctx context.Context, taskID, cancelledBy, reason string) error {
	unlock := e.locks.lock(taskID)

	task, err := e.store.GetTask(taskID)
	if err != nil {
		unlock()
		return fmt.Errorf("cancel task %s: %w", taskID, err)
	}
	if task.IsTerminal() {
		unlock()
		return fmt.Errorf("cancel task %s: already %s", taskID, task.Status)
	}
	task.Status = org.TaskStatusCancelled
	task.ErrorMessage = reason
	if err := e.store.SaveTask(task); err != nil {
		unlock()
		return fmt.Errorf("cancel task %s: %w", taskID, err)
	}
	unlock()

	e.logEvent(task.OrgID, org.EventTaskCancelled, map[string]any{
		"task_id":      task.TaskID,
		"cancelled_by": cancelledBy,
		"reason":       reason,
	}, "", "", task.TaskID)

	if task.ParentTaskID != "" {
		e.childComplete(ctx, task.ParentTaskID, task)
	}
	return nil
}

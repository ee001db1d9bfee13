package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/OrgWeave/OrgWeave/internal/org"
	"github.com/OrgWeave/OrgWeave/internal/prompts"
)

// SubmitTask admits a new root task into an org. The org must be active
// and the root node must not be paused.
func (e *Engine) SubmitTask(ctx context.Context, orgID, title, description string, input map[string]any, priority string, deadline *time.Time, submittedBy string) (*org.Task, error) {
	o, err := e.store.GetOrg(orgID)
	if err != nil {
		return nil, fmt.Errorf("submit task to %s: %w", orgID, err)
	}
	if o.Status != org.OrgStatusActive {
		return nil, fmt.Errorf("submit task to %s: %w (status %s)", orgID, ErrOrgNotActive, o.Status)
	}
	root, err := e.store.GetRootNode(orgID)
	if err != nil {
		return nil, fmt.Errorf("submit task to %s: %w", orgID, ErrNoRootNode)
	}
	if root.Status != org.NodeStatusActive {
		return nil, fmt.Errorf("submit task to %s: %w", orgID, ErrNodePaused)
	}

	task := org.NewTask(orgID, root.NodeID, "", title, description, input, priority)
	task.Deadline = deadline
	task.Context = map[string]any{
		"submitted_by": submittedBy,
		"submitted_at": time.Now().UTC().Format(time.RFC3339),
	}
	if err := e.store.SaveTask(task); err != nil {
		return nil, fmt.Errorf("submit task %q: %w", title, err)
	}

	e.logEvent(orgID, org.EventTaskSubmitted, map[string]any{
		"task_id":     task.TaskID,
		"title":       title,
		"assigned_to": root.RoleName,
	}, "", root.NodeID, task.TaskID)

	taskID := task.TaskID
	e.enqueue(func(ctx context.Context) { e.processTask(ctx, taskID) })
	return task, nil
}

// processTask is the entry transition for a pending task: consult the
// task_received gate, then admit and run.
func (e *Engine) processTask(ctx context.Context, taskID string) {
	unlock := e.locks.lock(taskID)
	defer unlock()

	task, node, ok := e.loadTaskNode(taskID)
	if !ok || task.IsTerminal() {
		return
	}

	if task.Status == org.TaskStatusPending && e.reviewer != nil && gateEnabled(node, org.ReviewTaskReceived) {
		if _, err := e.reviewer.QueueForReview(ctx, node, task, org.ReviewTaskReceived, nil); err != nil {
			slog.Warn("HITL queue failed, proceeding without review", "task", taskID, "error", err)
		} else {
			// Suspended; the HITL decision re-enters via ResumeTaskReceived.
			return
		}
	}

	e.runAdmitted(ctx, task, node)
}

// runAdmitted performs admit → analyze → delegate-or-execute. The caller
// holds the task lock.
func (e *Engine) runAdmitted(ctx context.Context, task *org.Task, node *org.Node) {
	now := time.Now().UTC()
	task.Status = org.TaskStatusInProgress
	task.StartedAt = &now
	if err := e.store.SaveTask(task); err != nil {
		e.failTaskLocked(ctx, task, node, fmt.Sprintf("admit failed: %v", err))
		return
	}
	if err := e.store.SetCurrentTask(node.NodeID, task.TaskID); err != nil {
		slog.Warn("Failed to set current task on node", "node", node.NodeID, "error", err)
	}

	e.logEvent(task.OrgID, org.EventTaskProcessing, map[string]any{
		"task_id": task.TaskID,
		"node_id": node.NodeID,
	}, node.NodeID, "", task.TaskID)

	subordinates, err := e.store.GetChildNodes(node.NodeID)
	if err != nil {
		e.failTaskLocked(ctx, task, node, fmt.Sprintf("load subordinates: %v", err))
		return
	}

	analysis := e.analyze(ctx, task, node, subordinates)
	plan, wantsDelegation := extractPlan(analysis, task, subordinates)

	if wantsDelegation && len(subordinates) > 0 {
		if e.reviewer != nil && gateEnabled(node, org.ReviewDelegation) {
			planResp := org.NewResponse(task.TaskID, node.NodeID, org.ResponseDelegationPlan,
				plan.asMap(), fmt.Sprintf("Proposed delegation to %d subordinates", len(plan.Subtasks)), "")
			if _, err := e.reviewer.QueueForReview(ctx, node, task, org.ReviewDelegation, planResp); err != nil {
				slog.Warn("HITL queue failed, proceeding without review", "task", task.TaskID, "error", err)
			} else {
				return
			}
		}
		e.delegate(ctx, task, node, plan, subordinates)
		return
	}

	resp := e.executeDirectly(ctx, task, node)
	e.finalizeWithGate(ctx, task, node, resp, false)
}

// analyze runs the analyze phase, degrading to the default plan (or to
// direct execution for leaf nodes) when the provider is missing or fails.
func (e *Engine) analyze(ctx context.Context, task *org.Task, node *org.Node, subordinates []*org.Node) map[string]any {
	if e.llm == nil {
		if node.RoleType == org.RoleAnalyst || len(subordinates) == 0 {
			return map[string]any{"needs_delegation": false}
		}
		return map[string]any{
			"needs_delegation": true,
			"delegation_plan":  defaultPlan(task, subordinates),
		}
	}

	prompt := e.prompts.AnalysisPrompt(task, node, subordinates)
	text, err := e.llm.Generate(ctx, prompt, prompts.SystemPrompt, 0.3, 2000)
	if err != nil {
		slog.Warn("LLM analysis failed, using default plan", "task", task.TaskID, "error", err)
		if len(subordinates) > 0 {
			return map[string]any{
				"needs_delegation": true,
				"delegation_plan":  defaultPlan(task, subordinates),
			}
		}
		return map[string]any{"needs_delegation": false}
	}
	return prompts.ParseResponse(text)
}

// executeDirectly completes the task at this node without delegation.
func (e *Engine) executeDirectly(ctx context.Context, task *org.Task, node *org.Node) *org.Response {
	if e.llm == nil {
		return org.NewResponse(task.TaskID, node.NodeID, org.ResponseAnalysis,
			map[string]any{
				"findings":        fmt.Sprintf("Task '%s' analyzed by %s", task.Title, node.RoleName),
				"recommendations": []any{"Further analysis recommended"},
				"status":          "completed_without_llm",
			},
			fmt.Sprintf("Analysis completed by %s", node.RoleName),
			"Completed without LLM - placeholder response")
	}

	prompt := e.prompts.ExecutionPrompt(task, node)
	text, err := e.llm.Generate(ctx, prompt, e.prompts.RoleSystemPrompt(node), 0.5, 3000)
	if err != nil {
		slog.Warn("LLM execution failed", "task", task.TaskID, "error", err)
		return org.NewResponse(task.TaskID, node.NodeID, org.ResponseAnalysis,
			map[string]any{"error": err.Error(), "partial_analysis": "Error during processing"},
			fmt.Sprintf("Error during analysis: %v", err), "")
	}

	content := prompts.ParseResponse(text)
	summary, _ := content["summary"].(string)
	if summary == "" {
		summary = fmt.Sprintf("Analysis by %s", node.RoleName)
	}
	reasoning, _ := content["reasoning"].(string)
	return org.NewResponse(task.TaskID, node.NodeID, org.ResponseAnalysis, content, summary, reasoning)
}

func (e *Engine) loadTaskNode(taskID string) (*org.Task, *org.Node, bool) {
	task, err := e.store.GetTask(taskID)
	if err != nil {
		slog.Error("Task not found for processing", "task", taskID, "error", err)
		return nil, nil, false
	}
	node, err := e.store.GetNode(task.AssignedNodeID)
	if err != nil {
		slog.Error("Assigned node not found", "task", taskID, "node", task.AssignedNodeID, "error", err)
		return nil, nil, false
	}
	return task, node, true
}

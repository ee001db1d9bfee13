package engine

import (
	"context"
	"fmt"

	"github.com/OrgWeave/OrgWeave/internal/org"
)

// Plan is a validated delegation plan.
type Plan struct {
	Strategy            string
	Subtasks            []PlanSubtask
	SummaryInstructions string
}

// PlanSubtask is one planned unit of delegated work.
type PlanSubtask struct {
	Title        string
	Description  string
	AssignedTo   string
	Priority     string
	Instructions string
	InputData    map[string]any
}

func (p Plan) asMap() map[string]any {
	subtasks := make([]any, 0, len(p.Subtasks))
	for _, st := range p.Subtasks {
		m := map[string]any{
			"title":       st.Title,
			"description": st.Description,
			"assigned_to": st.AssignedTo,
			"priority":    st.Priority,
		}
		if st.Instructions != "" {
			m["instructions"] = st.Instructions
		}
		subtasks = append(subtasks, m)
	}
	return map[string]any{
		"strategy":             p.Strategy,
		"subtasks":             subtasks,
		"summary_instructions": p.SummaryInstructions,
	}
}

// PlanFromMap decodes a delegation plan from parsed LLM output or a HITL
// override payload. Unknown fields are ignored.
func PlanFromMap(m map[string]any) Plan {
	plan := Plan{Strategy: org.StrategyParallel}
	if s, ok := m["strategy"].(string); ok && (s == org.StrategyParallel || s == org.StrategySequential) {
		plan.Strategy = s
	}
	if s, ok := m["summary_instructions"].(string); ok {
		plan.SummaryInstructions = s
	}
	raw, _ := m["subtasks"].([]any)
	for _, entry := range raw {
		sm, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		st := PlanSubtask{}
		st.Title, _ = sm["title"].(string)
		st.Description, _ = sm["description"].(string)
		st.AssignedTo, _ = sm["assigned_to"].(string)
		st.Priority, _ = sm["priority"].(string)
		st.Instructions, _ = sm["instructions"].(string)
		if input, ok := sm["input_data"].(map[string]any); ok {
			st.InputData = input
		}
		plan.Subtasks = append(plan.Subtasks, st)
	}
	return plan
}

// defaultPlan spreads the task across every direct subordinate in
// parallel. Used when the provider is unavailable or its output is
// ambiguous.
func defaultPlan(task *org.Task, subordinates []*org.Node) map[string]any {
	subtasks := make([]any, 0, len(subordinates))
	for i, sub := range subordinates {
		subtasks = append(subtasks, map[string]any{
			"title":       fmt.Sprintf("%s - Part %d", task.Title, i+1),
			"description": fmt.Sprintf("Analyze and provide findings for: %s", task.Description),
			"assigned_to": sub.NodeID,
			"priority":    task.Priority,
		})
	}
	return map[string]any{
		"strategy":             org.StrategyParallel,
		"subtasks":             subtasks,
		"summary_instructions": "Synthesize all subordinate responses into a comprehensive report.",
	}
}

// extractPlan interprets the analyze phase output. It returns the plan
// and whether the node should delegate. A node without subordinates never
// delegates; an explicit plan with zero subtasks coerces to direct
// execution; a delegation request without any plan falls back to the
// default plan.
func extractPlan(analysis map[string]any, task *org.Task, subordinates []*org.Node) (Plan, bool) {
	needs, _ := analysis["needs_delegation"].(bool)
	if !needs || len(subordinates) == 0 {
		return Plan{}, false
	}
	planMap, ok := analysis["delegation_plan"].(map[string]any)
	if !ok {
		return PlanFromMap(defaultPlan(task, subordinates)), true
	}
	plan := PlanFromMap(planMap)
	if len(plan.Subtasks) == 0 {
		return Plan{}, false
	}
	return plan, true
}

// delegate fans the task out to subordinates per the plan. The caller
// holds the task lock. Subtasks are created before expected_responses is
// set so a crash between the two writes resumes without undercounting.
func (e *Engine) delegate(ctx context.Context, task *org.Task, node *org.Node, plan Plan, subordinates []*org.Node) {
	children := make(map[string]*org.Node, len(subordinates))
	for _, sub := range subordinates {
		children[sub.NodeID] = sub
	}

	// Validate assignments: self-references are dropped, unknown ids are
	// remapped to the first direct child.
	var valid []PlanSubtask
	for _, st := range plan.Subtasks {
		if st.AssignedTo == node.NodeID {
			continue
		}
		if _, ok := children[st.AssignedTo]; !ok {
			st.AssignedTo = subordinates[0].NodeID
		}
		valid = append(valid, st)
	}
	if len(valid) == 0 {
		resp := e.executeDirectly(ctx, task, node)
		e.finalizeWithGate(ctx, task, node, resp, false)
		return
	}

	strategy := plan.Strategy
	if strategy == "" {
		strategy = org.StrategyParallel
	}
	task.Status = org.TaskStatusDelegated
	task.DelegationStrategy = strategy
	if err := e.store.SaveTask(task); err != nil {
		e.failTaskLocked(ctx, task, node, fmt.Sprintf("delegate failed: %v", err))
		return
	}

	planResp := org.NewResponse(task.TaskID, node.NodeID, org.ResponseDelegationPlan,
		plan.asMap(),
		fmt.Sprintf("Delegating to %d subordinates using %s strategy", len(valid), strategy), "")
	if err := e.store.SaveResponse(planResp); err != nil {
		e.failTaskLocked(ctx, task, node, fmt.Sprintf("save delegation plan: %v", err))
		return
	}

	var created []*org.Task
	for _, st := range valid {
		title := st.Title
		if title == "" {
			title = fmt.Sprintf("Subtask of %s", task.Title)
		}
		description := st.Description
		if description == "" {
			description = task.Description
		}
		input := st.InputData
		if input == nil {
			input = task.InputData
		}
		priority := st.Priority
		if priority != org.PriorityLow && priority != org.PriorityMedium &&
			priority != org.PriorityHigh && priority != org.PriorityUrgent {
			priority = task.Priority
		}
		subtask := org.NewTask(task.OrgID, st.AssignedTo, task.TaskID, title, description, input, priority)
		subtask.Context = map[string]any{
			"parent_task":  task.Title,
			"parent_node":  node.RoleName,
			"instructions": st.Instructions,
		}
		if plan.SummaryInstructions != "" {
			subtask.Context["summary_instructions"] = plan.SummaryInstructions
		}
		if err := e.store.SaveTask(subtask); err != nil {
			e.failTaskLocked(ctx, task, node, fmt.Sprintf("create subtask: %v", err))
			return
		}
		created = append(created, subtask)
	}

	task.ExpectedResponses = len(created)
	task.ReceivedResponses = 0
	task.Status = org.TaskStatusWaiting
	if err := e.store.SaveTask(task); err != nil {
		e.failTaskLocked(ctx, task, node, fmt.Sprintf("delegate failed: %v", err))
		return
	}

	subtaskIDs := make([]any, 0, len(created))
	for _, st := range created {
		subtaskIDs = append(subtaskIDs, st.TaskID)
	}
	e.logEvent(task.OrgID, org.EventTaskDelegated, map[string]any{
		"parent_task_id": task.TaskID,
		"subtask_ids":    subtaskIDs,
		"strategy":       strategy,
	}, node.NodeID, "", task.TaskID)

	if strategy == org.StrategySequential {
		first := created[0].TaskID
		e.enqueue(func(ctx context.Context) { e.processTask(ctx, first) })
		return
	}
	for _, st := range created {
		id := st.TaskID
		e.enqueue(func(ctx context.Context) { e.processTask(ctx, id) })
	}
}

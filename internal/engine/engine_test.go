package engine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/OrgWeave/OrgWeave/internal/bus"
	"github.com/OrgWeave/OrgWeave/internal/notify"
	"github.com/OrgWeave/OrgWeave/internal/org"
	"github.com/OrgWeave/OrgWeave/internal/store"
)

// fakeLLM routes prompts to canned responses. Without Start the engine
// runs inline, so every assertion below sees settled state.
type fakeLLM struct {
	handler func(prompt, system string) (string, error)
}

func (f *fakeLLM) Generate(_ context.Context, prompt, system string, _ float64, _ int) (string, error) {
	return f.handler(prompt, system)
}

func (f *fakeLLM) DefaultModel() string { return "fake" }

type sentMessage struct {
	Address string
	Subject string
	Body    string
}

type recordingChannel struct {
	mu   sync.Mutex
	name string
	sent []sentMessage
	fail error
}

func (c *recordingChannel) Name() string { return c.name }

func (c *recordingChannel) Send(_ context.Context, address, subject, body string) error {
	if c.fail != nil {
		return c.fail
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, sentMessage{address, subject, body})
	return nil
}

func (c *recordingChannel) messages() []sentMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]sentMessage(nil), c.sent...)
}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "engine.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func seedActiveOrg(t *testing.T, st *store.Store) *org.Org {
	t.Helper()
	o := org.NewOrg("Acme", "", "tester")
	o.Status = org.OrgStatusActive
	if err := st.SaveOrg(o); err != nil {
		t.Fatalf("save org: %v", err)
	}
	return o
}

func seedNode(t *testing.T, st *store.Store, orgID, parentID, role, roleType string) *org.Node {
	t.Helper()
	n := org.NewNode(orgID, parentID, role, roleType, "")
	n.Human.Email = strings.ToLower(strings.ReplaceAll(role, " ", ".")) + "@example.com"
	if err := st.SaveNode(n); err != nil {
		t.Fatalf("save node: %v", err)
	}
	return n
}

func countEvents(t *testing.T, st *store.Store, orgID, eventType string) int {
	t.Helper()
	events, err := st.GetEventLogs(orgID, 1000)
	if err != nil {
		t.Fatalf("get events: %v", err)
	}
	count := 0
	for _, ev := range events {
		if ev.EventType == eventType {
			count++
		}
	}
	return count
}

// S1: single node, no HITL, direct execution.
func TestSingleNodeDirectExecution(t *testing.T) {
	st := newTestStore(t)
	o := seedActiveOrg(t, st)
	seedNode(t, st, o.OrgID, "", "Executive", org.RoleExecutive)

	llm := &fakeLLM{handler: func(prompt, system string) (string, error) {
		if strings.Contains(prompt, "Analyze the following task and determine how to proceed") {
			return `{"needs_delegation": false}`, nil
		}
		return `{"summary": "S", "findings": {"summary": "S"}, "recommendations": []}`, nil
	}}

	email := &recordingChannel{name: org.ChannelEmail}
	eventBus := bus.New()
	notifier := notify.NewService(eventBus, email)
	eng := New(DefaultConfig(), st, eventBus, llm, notifier)

	task, err := eng.SubmitTask(context.Background(), o.OrgID, "Summarize 'X'", "Summarize document X", nil, org.PriorityMedium, nil, "tester")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	got, _ := st.GetTask(task.TaskID)
	if got.Status != org.TaskStatusCompleted {
		t.Fatalf("expected completed, got %s (%s)", got.Status, got.ErrorMessage)
	}
	if got.OutputData["summary"] != "S" {
		t.Fatalf("output summary: %v", got.OutputData)
	}

	responses, _ := st.GetTaskResponses(task.TaskID)
	if len(responses) != 1 || responses[0].ResponseType != org.ResponseAnalysis {
		t.Fatalf("expected one analysis response, got %+v", responses)
	}

	if countEvents(t, st, o.OrgID, org.EventTaskSubmitted) != 1 {
		t.Fatal("expected one TASK_SUBMITTED event")
	}
	if countEvents(t, st, o.OrgID, org.EventTaskCompleted) != 1 {
		t.Fatal("expected one TASK_COMPLETED event")
	}

	msgs := email.messages()
	if len(msgs) != 1 || !strings.Contains(msgs[0].Subject, "Summarize 'X'") {
		t.Fatalf("notifier not invoked with task title: %+v", msgs)
	}
}

// S2: one-level parallel delegation with full success.
func TestParallelDelegationFullSuccess(t *testing.T) {
	st := newTestStore(t)
	o := seedActiveOrg(t, st)
	root := seedNode(t, st, o.OrgID, "", "Executive", org.RoleExecutive)
	n2 := seedNode(t, st, o.OrgID, root.NodeID, "Market Analyst", org.RoleAnalyst)
	n3 := seedNode(t, st, o.OrgID, root.NodeID, "Data Analyst", org.RoleAnalyst)

	llm := &fakeLLM{handler: func(prompt, system string) (string, error) {
		switch {
		case strings.Contains(prompt, "Synthesize the following responses"):
			return `{"executive_summary": "A+B", "summary": "A+B"}`, nil
		case strings.Contains(prompt, "Analyze the following task") && strings.Contains(prompt, "Your direct reports"):
			return `{"needs_delegation": true, "reasoning": "split", "delegation_plan": {
				"strategy": "parallel",
				"subtasks": [
					{"title": "Market part", "description": "market", "assigned_to": "` + n2.NodeID + `", "priority": "medium"},
					{"title": "Data part", "description": "data", "assigned_to": "` + n3.NodeID + `", "priority": "medium"}
				],
				"summary_instructions": "combine"}}`, nil
		case strings.Contains(prompt, "Analyze the following task"):
			return `{"needs_delegation": false}`, nil
		case strings.Contains(prompt, "**Your Role:** Market Analyst"):
			return `{"summary": "A"}`, nil
		case strings.Contains(prompt, "**Your Role:** Data Analyst"):
			return `{"summary": "B"}`, nil
		}
		return "", errors.New("unexpected prompt")
	}}

	eng := New(DefaultConfig(), st, bus.New(), llm, nil)

	task, err := eng.SubmitTask(context.Background(), o.OrgID, "Quarterly study", "Study the quarter", nil, org.PriorityHigh, nil, "tester")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}

	parent, _ := st.GetTask(task.TaskID)
	if parent.Status != org.TaskStatusCompleted {
		t.Fatalf("parent status: %s (%s)", parent.Status, parent.ErrorMessage)
	}
	if parent.OutputData["summary"] != "A+B" {
		t.Fatalf("aggregated summary: %v", parent.OutputData)
	}
	if parent.ExpectedResponses != 2 || parent.ReceivedResponses != 2 {
		t.Fatalf("counters: %d/%d", parent.ReceivedResponses, parent.ExpectedResponses)
	}
	if parent.DelegationStrategy != org.StrategyParallel {
		t.Fatalf("strategy: %s", parent.DelegationStrategy)
	}

	subtasks, _ := st.GetSubtasks(task.TaskID)
	if len(subtasks) != 2 {
		t.Fatalf("expected 2 subtasks, got %d", len(subtasks))
	}

	total := 0
	for _, id := range []string{task.TaskID, subtasks[0].TaskID, subtasks[1].TaskID} {
		responses, _ := st.GetTaskResponses(id)
		total += len(responses)
	}
	if total != 4 {
		t.Fatalf("expected 4 responses total (plan + 2 analysis + summary), got %d", total)
	}

	if countEvents(t, st, o.OrgID, org.EventTaskDelegated) != 1 {
		t.Fatal("expected exactly one TASK_DELEGATED event")
	}
	if countEvents(t, st, o.OrgID, org.EventTaskCompleted) != 3 {
		t.Fatal("expected three TASK_COMPLETED events")
	}
}

// S3: sequential delegation where the first child fails; the parent
// aggregates over the survivor and completes with a partial annotation.
func TestSequentialDelegationPartialFailure(t *testing.T) {
	st := newTestStore(t)
	o := seedActiveOrg(t, st)
	root := seedNode(t, st, o.OrgID, "", "Executive", org.RoleExecutive)
	n2 := seedNode(t, st, o.OrgID, root.NodeID, "Market Analyst", org.RoleAnalyst)
	n3 := seedNode(t, st, o.OrgID, root.NodeID, "Data Analyst", org.RoleAnalyst)

	llm := &fakeLLM{handler: func(prompt, system string) (string, error) {
		switch {
		case strings.Contains(prompt, "Synthesize the following responses"):
			return `{"executive_summary": "only B", "summary": "only B"}`, nil
		case strings.Contains(prompt, "Analyze the following task"):
			return `{"needs_delegation": false}`, nil
		case strings.Contains(prompt, "**Your Role:** Data Analyst"):
			return `{"summary": "B"}`, nil
		}
		return "", errors.New("unexpected prompt")
	}}
	eng := New(DefaultConfig(), st, bus.New(), llm, nil)

	// Delegated state assembled directly: parent waiting on two pending
	// children under the sequential strategy.
	parent := org.NewTask(o.OrgID, root.NodeID, "", "Parent", "parent work", nil, org.PriorityMedium)
	parent.Status = org.TaskStatusWaiting
	parent.DelegationStrategy = org.StrategySequential
	parent.ExpectedResponses = 2
	if err := st.SaveTask(parent); err != nil {
		t.Fatalf("save parent: %v", err)
	}
	child1 := org.NewTask(o.OrgID, n2.NodeID, parent.TaskID, "First part", "first", nil, org.PriorityMedium)
	child2 := org.NewTask(o.OrgID, n3.NodeID, parent.TaskID, "Second part", "second", nil, org.PriorityMedium)
	for _, c := range []*org.Task{child1, child2} {
		if err := st.SaveTask(c); err != nil {
			t.Fatalf("save child: %v", err)
		}
	}

	// The first child fails; the sequential path admits the next sibling,
	// which completes and triggers aggregation.
	if err := eng.FailTask(context.Background(), child1.TaskID, "store write failed"); err != nil {
		t.Fatalf("fail child: %v", err)
	}

	got, _ := st.GetTask(parent.TaskID)
	if got.Status != org.TaskStatusCompleted {
		t.Fatalf("parent should complete despite child failure, got %s (%s)", got.Status, got.ErrorMessage)
	}
	if got.ReceivedResponses != 2 {
		t.Fatalf("both terminal children must count: %d", got.ReceivedResponses)
	}

	responses, _ := st.GetTaskResponses(parent.TaskID)
	outcome := store.OutcomeResponse(responses)
	if outcome == nil {
		t.Fatal("no outcome response")
	}
	partial, _ := outcome.Content["partial_failure"].(string)
	if !strings.Contains(partial, "1 of 2") {
		t.Fatalf("partial failure not annotated: %v", outcome.Content)
	}

	c2, _ := st.GetTask(child2.TaskID)
	if c2.Status != org.TaskStatusCompleted {
		t.Fatalf("second child should have run to completion, got %s", c2.Status)
	}
}

func TestSubmitGuards(t *testing.T) {
	st := newTestStore(t)

	draft := org.NewOrg("Draft Org", "", "tester")
	if err := st.SaveOrg(draft); err != nil {
		t.Fatalf("save org: %v", err)
	}
	seedNode(t, st, draft.OrgID, "", "Executive", org.RoleExecutive)

	eng := New(DefaultConfig(), st, bus.New(), nil, nil)

	if _, err := eng.SubmitTask(context.Background(), draft.OrgID, "T", "", nil, "", nil, "x"); !errors.Is(err, ErrOrgNotActive) {
		t.Fatalf("draft org should refuse tasks: %v", err)
	}

	active := seedActiveOrg(t, st)
	root := seedNode(t, st, active.OrgID, "", "Executive", org.RoleExecutive)
	if err := st.UpdateNodeStatus(root.NodeID, org.NodeStatusPaused); err != nil {
		t.Fatalf("pause node: %v", err)
	}
	if _, err := eng.SubmitTask(context.Background(), active.OrgID, "T", "", nil, "", nil, "x"); !errors.Is(err, ErrNodePaused) {
		t.Fatalf("paused root should refuse tasks: %v", err)
	}
}

func TestNoSubordinatesIgnoresNeedsDelegation(t *testing.T) {
	st := newTestStore(t)
	o := seedActiveOrg(t, st)
	seedNode(t, st, o.OrgID, "", "Solo Analyst", org.RoleAnalyst)

	llm := &fakeLLM{handler: func(prompt, system string) (string, error) {
		if strings.Contains(prompt, "Analyze the following task") {
			return `{"needs_delegation": true, "delegation_plan": {"strategy": "parallel", "subtasks": [{"title": "x", "assigned_to": "node-ghost"}]}}`, nil
		}
		return `{"summary": "direct"}`, nil
	}}
	eng := New(DefaultConfig(), st, bus.New(), llm, nil)

	task, err := eng.SubmitTask(context.Background(), o.OrgID, "T", "", nil, "", nil, "x")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	got, _ := st.GetTask(task.TaskID)
	if got.Status != org.TaskStatusCompleted {
		t.Fatalf("status: %s", got.Status)
	}
	if subs, _ := st.GetSubtasks(task.TaskID); len(subs) != 0 {
		t.Fatal("leaf node must not delegate")
	}
}

func TestZeroSubtasksCoercesDirectExecution(t *testing.T) {
	st := newTestStore(t)
	o := seedActiveOrg(t, st)
	root := seedNode(t, st, o.OrgID, "", "Executive", org.RoleExecutive)
	seedNode(t, st, o.OrgID, root.NodeID, "Analyst", org.RoleAnalyst)

	llm := &fakeLLM{handler: func(prompt, system string) (string, error) {
		if strings.Contains(prompt, "Analyze the following task") {
			return `{"needs_delegation": true, "delegation_plan": {"strategy": "parallel", "subtasks": []}}`, nil
		}
		return `{"summary": "direct"}`, nil
	}}
	eng := New(DefaultConfig(), st, bus.New(), llm, nil)

	task, _ := eng.SubmitTask(context.Background(), o.OrgID, "T", "", nil, "", nil, "x")
	got, _ := st.GetTask(task.TaskID)
	if got.Status != org.TaskStatusCompleted {
		t.Fatalf("status: %s", got.Status)
	}
	if subs, _ := st.GetSubtasks(task.TaskID); len(subs) != 0 {
		t.Fatal("empty plan must coerce to direct execution")
	}
}

func TestSelfAssignmentSkippedAndUnknownRemapped(t *testing.T) {
	st := newTestStore(t)
	o := seedActiveOrg(t, st)
	root := seedNode(t, st, o.OrgID, "", "Executive", org.RoleExecutive)
	child := seedNode(t, st, o.OrgID, root.NodeID, "Analyst", org.RoleAnalyst)

	llm := &fakeLLM{handler: func(prompt, system string) (string, error) {
		switch {
		case strings.Contains(prompt, "Synthesize the following responses"):
			return `{"executive_summary": "done", "summary": "done"}`, nil
		case strings.Contains(prompt, "Analyze the following task") && strings.Contains(prompt, "Your direct reports"):
			return `{"needs_delegation": true, "delegation_plan": {"strategy": "parallel", "subtasks": [
				{"title": "self", "assigned_to": "` + root.NodeID + `"},
				{"title": "ghost", "assigned_to": "node-ghost"}
			]}}`, nil
		case strings.Contains(prompt, "Analyze the following task"):
			return `{"needs_delegation": false}`, nil
		}
		return `{"summary": "leaf"}`, nil
	}}
	eng := New(DefaultConfig(), st, bus.New(), llm, nil)

	task, _ := eng.SubmitTask(context.Background(), o.OrgID, "T", "", nil, "", nil, "x")
	parent, _ := st.GetTask(task.TaskID)
	if parent.Status != org.TaskStatusCompleted {
		t.Fatalf("status: %s (%s)", parent.Status, parent.ErrorMessage)
	}
	subs, _ := st.GetSubtasks(task.TaskID)
	if len(subs) != 1 {
		t.Fatalf("self-assignment must be skipped, unknown remapped: %d subtasks", len(subs))
	}
	if subs[0].AssignedNodeID != child.NodeID {
		t.Fatalf("unknown id not remapped to first child: %s", subs[0].AssignedNodeID)
	}
	if parent.ExpectedResponses != 1 {
		t.Fatalf("skipped subtask counted: expected=%d", parent.ExpectedResponses)
	}
}

func TestNonJSONAnalysisForcesDirectExecution(t *testing.T) {
	st := newTestStore(t)
	o := seedActiveOrg(t, st)
	root := seedNode(t, st, o.OrgID, "", "Executive", org.RoleExecutive)
	seedNode(t, st, o.OrgID, root.NodeID, "Analyst", org.RoleAnalyst)

	llm := &fakeLLM{handler: func(prompt, system string) (string, error) {
		if strings.Contains(prompt, "Analyze the following task") {
			return "I would delegate this to my team, probably.", nil
		}
		return `{"summary": "fallback direct"}`, nil
	}}
	eng := New(DefaultConfig(), st, bus.New(), llm, nil)

	task, _ := eng.SubmitTask(context.Background(), o.OrgID, "T", "", nil, "", nil, "x")
	got, _ := st.GetTask(task.TaskID)
	if got.Status != org.TaskStatusCompleted {
		t.Fatalf("status: %s", got.Status)
	}
	if subs, _ := st.GetSubtasks(task.TaskID); len(subs) != 0 {
		t.Fatal("non-JSON output must not delegate")
	}
}

func TestLLMErrorDegradesToDefaultPlan(t *testing.T) {
	st := newTestStore(t)
	o := seedActiveOrg(t, st)
	root := seedNode(t, st, o.OrgID, "", "Executive", org.RoleExecutive)
	seedNode(t, st, o.OrgID, root.NodeID, "Analyst A", org.RoleAnalyst)
	seedNode(t, st, o.OrgID, root.NodeID, "Analyst B", org.RoleAnalyst)

	llm := &fakeLLM{handler: func(prompt, system string) (string, error) {
		switch {
		case strings.Contains(prompt, "Analyze the following task") && strings.Contains(prompt, "Your direct reports"):
			return "", errors.New("provider unavailable")
		case strings.Contains(prompt, "Analyze the following task"):
			return `{"needs_delegation": false}`, nil
		case strings.Contains(prompt, "Synthesize the following responses"):
			return `{"executive_summary": "combined", "summary": "combined"}`, nil
		}
		return `{"summary": "leaf"}`, nil
	}}
	eng := New(DefaultConfig(), st, bus.New(), llm, nil)

	task, _ := eng.SubmitTask(context.Background(), o.OrgID, "T", "desc", nil, "", nil, "x")
	got, _ := st.GetTask(task.TaskID)
	if got.Status != org.TaskStatusCompleted {
		t.Fatalf("LLM failure must degrade, not fail: %s (%s)", got.Status, got.ErrorMessage)
	}
	subs, _ := st.GetSubtasks(task.TaskID)
	if len(subs) != 2 {
		t.Fatalf("default plan should fan out to every child: %d", len(subs))
	}
}

func TestDuplicateChildCompletionIsIdempotent(t *testing.T) {
	st := newTestStore(t)
	o := seedActiveOrg(t, st)
	root := seedNode(t, st, o.OrgID, "", "Executive", org.RoleExecutive)
	child := seedNode(t, st, o.OrgID, root.NodeID, "Analyst", org.RoleAnalyst)

	parent := org.NewTask(o.OrgID, root.NodeID, "", "Parent", "", nil, "")
	parent.Status = org.TaskStatusWaiting
	parent.DelegationStrategy = org.StrategyParallel
	parent.ExpectedResponses = 2
	if err := st.SaveTask(parent); err != nil {
		t.Fatalf("save parent: %v", err)
	}
	sub := org.NewTask(o.OrgID, child.NodeID, parent.TaskID, "Sub", "", nil, "")
	sub.Status = org.TaskStatusCompleted
	if err := st.SaveTask(sub); err != nil {
		t.Fatalf("save sub: %v", err)
	}

	eng := New(DefaultConfig(), st, bus.New(), nil, nil)
	eng.childComplete(context.Background(), parent.TaskID, sub)
	eng.childComplete(context.Background(), parent.TaskID, sub)

	got, _ := st.GetTask(parent.TaskID)
	if got.ReceivedResponses != 1 {
		t.Fatalf("duplicate delivery double-counted: %d", got.ReceivedResponses)
	}
	if got.Status != org.TaskStatusWaiting {
		t.Fatalf("parent must keep waiting for the second child: %s", got.Status)
	}
}

func TestLateChildDoesNotReopenTerminalParent(t *testing.T) {
	st := newTestStore(t)
	o := seedActiveOrg(t, st)
	root := seedNode(t, st, o.OrgID, "", "Executive", org.RoleExecutive)
	child := seedNode(t, st, o.OrgID, root.NodeID, "Analyst", org.RoleAnalyst)

	parent := org.NewTask(o.OrgID, root.NodeID, "", "Parent", "", nil, "")
	parent.Status = org.TaskStatusCancelled
	if err := st.SaveTask(parent); err != nil {
		t.Fatalf("save parent: %v", err)
	}
	sub := org.NewTask(o.OrgID, child.NodeID, parent.TaskID, "Sub", "", nil, "")
	sub.Status = org.TaskStatusCompleted
	if err := st.SaveTask(sub); err != nil {
		t.Fatalf("save sub: %v", err)
	}

	eng := New(DefaultConfig(), st, bus.New(), nil, nil)
	eng.childComplete(context.Background(), parent.TaskID, sub)

	got, _ := st.GetTask(parent.TaskID)
	if got.Status != org.TaskStatusCancelled {
		t.Fatalf("terminal parent re-opened: %s", got.Status)
	}
	if got.ReceivedResponses != 0 {
		t.Fatalf("late completion must not count: %d", got.ReceivedResponses)
	}
}

func TestCancelTask(t *testing.T) {
	st := newTestStore(t)
	o := seedActiveOrg(t, st)
	root := seedNode(t, st, o.OrgID, "", "Executive", org.RoleExecutive)

	task := org.NewTask(o.OrgID, root.NodeID, "", "T", "", nil, "")
	task.Status = org.TaskStatusWaiting
	if err := st.SaveTask(task); err != nil {
		t.Fatalf("save task: %v", err)
	}

	eng := New(DefaultConfig(), st, bus.New(), nil, nil)
	if err := eng.CancelTask(context.Background(), task.TaskID, "admin", "no longer needed"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	got, _ := st.GetTask(task.TaskID)
	if got.Status != org.TaskStatusCancelled {
		t.Fatalf("status: %s", got.Status)
	}
	if err := eng.CancelTask(context.Background(), task.TaskID, "admin", "again"); err == nil {
		t.Fatal("cancelling a terminal task must error")
	}
}

func TestGetTaskTree(t *testing.T) {
	st := newTestStore(t)
	o := seedActiveOrg(t, st)
	root := seedNode(t, st, o.OrgID, "", "Executive", org.RoleExecutive)
	n2 := seedNode(t, st, o.OrgID, root.NodeID, "Market Analyst", org.RoleAnalyst)
	n3 := seedNode(t, st, o.OrgID, root.NodeID, "Data Analyst", org.RoleAnalyst)

	llm := &fakeLLM{handler: func(prompt, system string) (string, error) {
		switch {
		case strings.Contains(prompt, "Synthesize the following responses"):
			return `{"executive_summary": "A+B", "summary": "A+B"}`, nil
		case strings.Contains(prompt, "Analyze the following task") && strings.Contains(prompt, "Your direct reports"):
			return `{"needs_delegation": true, "delegation_plan": {"strategy": "parallel", "subtasks": [
				{"title": "a", "assigned_to": "` + n2.NodeID + `"},
				{"title": "b", "assigned_to": "` + n3.NodeID + `"}
			]}}`, nil
		case strings.Contains(prompt, "Analyze the following task"):
			return `{"needs_delegation": false}`, nil
		}
		return `{"summary": "leaf"}`, nil
	}}
	eng := New(DefaultConfig(), st, bus.New(), llm, nil)

	task, _ := eng.SubmitTask(context.Background(), o.OrgID, "T", "", nil, "", nil, "x")
	tree, err := eng.GetTaskTree(task.TaskID)
	if err != nil {
		t.Fatalf("tree: %v", err)
	}
	if tree.NodeLabel != "Executive" {
		t.Fatalf("root label: %s", tree.NodeLabel)
	}
	if len(tree.Subtasks) != 2 {
		t.Fatalf("tree width: %d", len(tree.Subtasks))
	}
	if len(tree.Responses) != 2 {
		t.Fatalf("root responses (plan + summary): %d", len(tree.Responses))
	}
	for _, sub := range tree.Subtasks {
		if len(sub.Responses) != 1 {
			t.Fatalf("leaf responses: %d", len(sub.Responses))
		}
	}
}

func TestEngineWithoutProviderCompletesWithPlaceholder(t *testing.T) {
	st := newTestStore(t)
	o := seedActiveOrg(t, st)
	seedNode(t, st, o.OrgID, "", "Solo", org.RoleAnalyst)

	eng := New(DefaultConfig(), st, bus.New(), nil, nil)
	task, err := eng.SubmitTask(context.Background(), o.OrgID, "T", "", nil, "", nil, "x")
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	got, _ := st.GetTask(task.TaskID)
	if got.Status != org.TaskStatusCompleted {
		t.Fatalf("status: %s", got.Status)
	}
	responses, _ := st.GetTaskResponses(task.TaskID)
	if len(responses) != 1 || responses[0].Content["status"] != "completed_without_llm" {
		t.Fatalf("placeholder response missing: %+v", responses)
	}
}

func TestResubmitProducesIndependentTrees(t *testing.T) {
	st := newTestStore(t)
	o := seedActiveOrg(t, st)
	seedNode(t, st, o.OrgID, "", "Solo", org.RoleAnalyst)

	eng := New(DefaultConfig(), st, bus.New(), nil, nil)
	first, err := eng.SubmitTask(context.Background(), o.OrgID, "Same title", "same work", nil, "", nil, "x")
	if err != nil {
		t.Fatalf("first submit: %v", err)
	}
	second, err := eng.SubmitTask(context.Background(), o.OrgID, "Same title", "same work", nil, "", nil, "x")
	if err != nil {
		t.Fatalf("second submit: %v", err)
	}
	if first.TaskID == second.TaskID {
		t.Fatal("resubmission must produce a distinct task id")
	}
	for _, id := range []string{first.TaskID, second.TaskID} {
		got, _ := st.GetTask(id)
		if got.Status != org.TaskStatusCompleted {
			t.Fatalf("task %s status: %s", id, got.Status)
		}
	}
}

func TestTaskTreeReloadPreservesTopology(t *testing.T) {
	st := newTestStore(t)
	o := seedActiveOrg(t, st)
	root := seedNode(t, st, o.OrgID, "", "Executive", org.RoleExecutive)
	n2 := seedNode(t, st, o.OrgID, root.NodeID, "Market Analyst", org.RoleAnalyst)
	n3 := seedNode(t, st, o.OrgID, root.NodeID, "Data Analyst", org.RoleAnalyst)

	llm := &fakeLLM{handler: func(prompt, system string) (string, error) {
		switch {
		case strings.Contains(prompt, "Synthesize the following responses"):
			return `{"executive_summary": "A+B", "summary": "A+B"}`, nil
		case strings.Contains(prompt, "Analyze the following task") && strings.Contains(prompt, "Your direct reports"):
			return `{"needs_delegation": true, "delegation_plan": {"strategy": "parallel", "subtasks": [
				{"title": "a", "assigned_to": "` + n2.NodeID + `"},
				{"title": "b", "assigned_to": "` + n3.NodeID + `"}
			]}}`, nil
		case strings.Contains(prompt, "Analyze the following task"):
			return `{"needs_delegation": false}`, nil
		}
		return `{"summary": "leaf"}`, nil
	}}
	eng := New(DefaultConfig(), st, bus.New(), llm, nil)

	task, _ := eng.SubmitTask(context.Background(), o.OrgID, "T", "", nil, "", nil, "x")
	tree, err := eng.GetTaskTree(task.TaskID)
	if err != nil {
		t.Fatalf("tree: %v", err)
	}

	// Reload the serialized tree into a fresh store.
	st2, err := store.Open(filepath.Join(t.TempDir(), "reload.db"))
	if err != nil {
		t.Fatalf("open fresh store: %v", err)
	}
	defer st2.Close()
	if err := st2.SaveOrg(o); err != nil {
		t.Fatalf("save org: %v", err)
	}
	for _, n := range []*org.Node{root, n2, n3} {
		if err := st2.SaveNode(n); err != nil {
			t.Fatalf("save node: %v", err)
		}
	}
	var load func(node *TaskTree)
	load = func(node *TaskTree) {
		if err := st2.SaveTask(node.Task); err != nil {
			t.Fatalf("save task: %v", err)
		}
		for _, r := range node.Responses {
			if err := st2.SaveResponse(r); err != nil {
				t.Fatalf("save response: %v", err)
			}
		}
		for _, sub := range node.Subtasks {
			load(sub)
		}
	}
	load(tree)

	eng2 := New(DefaultConfig(), st2, bus.New(), nil, nil)
	reloaded, err := eng2.GetTaskTree(task.TaskID)
	if err != nil {
		t.Fatalf("reloaded tree: %v", err)
	}
	if reloaded.Task.Status != org.TaskStatusCompleted {
		t.Fatalf("status lost on reload: %s", reloaded.Task.Status)
	}
	if len(reloaded.Subtasks) != len(tree.Subtasks) {
		t.Fatalf("topology lost: %d vs %d", len(reloaded.Subtasks), len(tree.Subtasks))
	}
	if len(reloaded.Responses) != len(tree.Responses) {
		t.Fatalf("responses lost: %d vs %d", len(reloaded.Responses), len(tree.Responses))
	}
	if reloaded.Task.DelegationStrategy != tree.Task.DelegationStrategy {
		t.Fatal("delegation strategy lost on reload")
	}
}

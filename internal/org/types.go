// Package org defines the AI organization entities: orgs, role nodes,
// tasks, responses, HITL records, and event logs.
package org

import (
	"time"

	"github.com/google/uuid"
)

// Org statuses.
const (
	OrgStatusDraft    = "draft"
	OrgStatusActive   = "active"
	OrgStatusPaused   = "paused"
	OrgStatusArchived = "archived"
)

// Node role types.
const (
	RoleExecutive   = "executive"
	RoleManager     = "manager"
	RoleAnalyst     = "analyst"
	RoleCoordinator = "coordinator"
)

// Node statuses.
const (
	NodeStatusActive = "active"
	NodeStatusPaused = "paused"
)

// Task statuses.
const (
	TaskStatusPending    = "pending"
	TaskStatusInProgress = "in_progress"
	TaskStatusDelegated  = "delegated"
	TaskStatusWaiting    = "waiting"
	TaskStatusCompleted  = "completed"
	TaskStatusFailed     = "failed"
	TaskStatusCancelled  = "cancelled"
)

// Task priorities.
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
	PriorityUrgent = "urgent"
)

// Delegation strategies.
const (
	StrategyParallel   = "parallel"
	StrategySequential = "sequential"
)

// Response types.
const (
	ResponseDelegationPlan = "delegation_plan"
	ResponseAnalysis       = "analysis"
	ResponseSummary        = "summary"
	ResponseHumanOverride  = "human_override"
)

// HITL review types.
const (
	ReviewTaskReceived     = "task_received"
	ReviewDelegation       = "delegation_review"
	ReviewResponseApproval = "response_approval"
)

// HITL queue item statuses.
const (
	QueuePending    = "pending"
	QueueApproved   = "approved"
	QueueRejected   = "rejected"
	QueueOverridden = "overridden"
	QueueTimeout    = "timeout"
)

// HITL action types.
const (
	ActionApprove  = "approve"
	ActionReject   = "reject"
	ActionOverride = "override"
	ActionMessage  = "message"
	ActionPause    = "pause"
	ActionResume   = "resume"
	ActionView     = "view"
)

// Notification channel names.
const (
	ChannelEmail = "email"
	ChannelChat  = "chat_channel"
)

// Event types published on the bus and written to the event log.
const (
	EventTaskSubmitted  = "TASK_SUBMITTED"
	EventTaskProcessing = "TASK_PROCESSING"
	EventTaskDelegated  = "TASK_DELEGATED"
	EventResponseRecv   = "RESPONSE_RECEIVED"
	EventTaskCompleted  = "TASK_COMPLETED"
	EventTaskFailed     = "TASK_FAILED"
	EventTaskCancelled  = "TASK_CANCELLED"
	EventHITLRequired   = "HITL_REQUIRED"
	EventHITLApproved   = "HITL_APPROVED"
	EventHITLRejected   = "HITL_REJECTED"
	EventHITLOverridden = "HITL_OVERRIDDEN"
	EventHITLTimeout    = "HITL_TIMEOUT"
	EventNodePaused     = "NODE_PAUSED"
	EventNodeResumed    = "NODE_RESUMED"
	EventNotifyFailed   = "NOTIFY_FAILED"
	EventInvariant      = "INVARIANT_VIOLATED"
)

// Org is an AI organization: a tree of role nodes handling tasks.
type Org struct {
	OrgID       string         `json:"org_id"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Status      string         `json:"status"`
	Config      map[string]any `json:"config,omitempty"`
	CreatedBy   string         `json:"created_by"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

// HumanMirror identifies the human behind a node for HITL and notifications.
type HumanMirror struct {
	Name    string `json:"name,omitempty"`
	Email   string `json:"email,omitempty"`
	TeamsID string `json:"teams_id,omitempty"`
	SlackID string `json:"slack_id,omitempty"`
}

// HITLConfig controls the human review gates for a node.
type HITLConfig struct {
	Enabled          bool `json:"enabled"`
	ApprovalRequired bool `json:"approval_required"`
	ReviewDelegation bool `json:"review_delegation"`
	TimeoutHours     int  `json:"timeout_hours"`
	AutoProceed      bool `json:"auto_proceed"`
}

// Node is one role-occupying entity in an Org. A node with an empty
// ParentNodeID is the org's root.
type Node struct {
	NodeID               string         `json:"node_id"`
	OrgID                string         `json:"org_id"`
	ParentNodeID         string         `json:"parent_node_id,omitempty"`
	RoleName             string         `json:"role_name"`
	RoleType             string         `json:"role_type"`
	Description          string         `json:"description,omitempty"`
	AgentID              string         `json:"agent_id,omitempty"`
	AgentConfig          map[string]any `json:"agent_config,omitempty"`
	Human                HumanMirror    `json:"human"`
	HITL                 HITLConfig     `json:"hitl"`
	NotificationChannels []string       `json:"notification_channels"`
	PositionX            int            `json:"position_x"`
	PositionY            int            `json:"position_y"`
	Status               string         `json:"status"`
	CurrentTaskID        string         `json:"current_task_id,omitempty"`
	CreatedAt            time.Time      `json:"created_at"`
	UpdatedAt            time.Time      `json:"updated_at"`
}

// IsRoot reports whether the node is its org's root.
func (n *Node) IsRoot() bool { return n.ParentNodeID == "" }

// Task is a unit of work assigned to a node. A task with an empty
// ParentTaskID is a root task submitted from outside the org.
type Task struct {
	TaskID             string         `json:"task_id"`
	OrgID              string         `json:"org_id"`
	ParentTaskID       string         `json:"parent_task_id,omitempty"`
	AssignedNodeID     string         `json:"assigned_node_id"`
	Title              string         `json:"title"`
	Description        string         `json:"description"`
	InputData          map[string]any `json:"input_data,omitempty"`
	OutputData         map[string]any `json:"output_data,omitempty"`
	Context            map[string]any `json:"context,omitempty"`
	Status             string         `json:"status"`
	DelegationStrategy string         `json:"delegation_strategy,omitempty"`
	ExpectedResponses  int            `json:"expected_responses"`
	ReceivedResponses  int            `json:"received_responses"`
	Priority           string         `json:"priority"`
	Deadline           *time.Time     `json:"deadline,omitempty"`
	StartedAt          *time.Time     `json:"started_at,omitempty"`
	CompletedAt        *time.Time     `json:"completed_at,omitempty"`
	ErrorMessage       string         `json:"error_message,omitempty"`
	RetryCount         int            `json:"retry_count"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

// IsTerminal reports whether the task has reached a terminal status.
func (t *Task) IsTerminal() bool {
	switch t.Status {
	case TaskStatusCompleted, TaskStatusFailed, TaskStatusCancelled:
		return true
	}
	return false
}

// Overdue reports whether the task's deadline has passed at the given time.
func (t *Task) Overdue(now time.Time) bool {
	return t.Deadline != nil && now.After(*t.Deadline)
}

// Response is an append-only record of AI or human output at a node.
type Response struct {
	ResponseID        string         `json:"response_id"`
	TaskID            string         `json:"task_id"`
	NodeID            string         `json:"node_id"`
	ResponseType      string         `json:"response_type"`
	Content           map[string]any `json:"content,omitempty"`
	Summary           string         `json:"summary,omitempty"`
	Reasoning         string         `json:"reasoning,omitempty"`
	ConfidenceScore   float64        `json:"confidence_score,omitempty"`
	QualityScore      float64        `json:"quality_score,omitempty"`
	IsHumanModified   bool           `json:"is_human_modified"`
	OriginalAIContent map[string]any `json:"original_ai_content,omitempty"`
	ModificationReason string        `json:"modification_reason,omitempty"`
	ModifiedBy        string         `json:"modified_by,omitempty"`
	ModifiedAt        *time.Time     `json:"modified_at,omitempty"`
	CreatedAt         time.Time      `json:"created_at"`
}

// HITLAction is the append-only audit record of a human decision.
type HITLAction struct {
	ActionID        string         `json:"action_id"`
	OrgID           string         `json:"org_id"`
	NodeID          string         `json:"node_id"`
	TaskID          string         `json:"task_id,omitempty"`
	ResponseID      string         `json:"response_id,omitempty"`
	UserID          string         `json:"user_id"`
	ActionType      string         `json:"action_type"`
	OriginalContent map[string]any `json:"original_content,omitempty"`
	ModifiedContent map[string]any `json:"modified_content,omitempty"`
	Reason          string         `json:"reason,omitempty"`
	Message         string         `json:"message,omitempty"`
	IPAddress       string         `json:"ip_address,omitempty"`
	UserAgent       string         `json:"user_agent,omitempty"`
	CreatedAt       time.Time      `json:"created_at"`
}

// QueueItem is a pending HITL review request.
type QueueItem struct {
	ItemID     string    `json:"item_id"`
	OrgID      string    `json:"org_id"`
	NodeID     string    `json:"node_id"`
	TaskID     string    `json:"task_id"`
	ReviewType string    `json:"review_type"`
	Content    *Response `json:"content,omitempty"`
	Status     string    `json:"status"`
	CreatedAt  time.Time `json:"created_at"`
	ExpiresAt  time.Time `json:"expires_at"`
}

// IsTerminal reports whether the queue item can no longer be acted on.
func (q *QueueItem) IsTerminal() bool { return q.Status != QueuePending }

// EventLog is one monitoring event derived from a state change.
type EventLog struct {
	EventID      string         `json:"event_id"`
	OrgID        string         `json:"org_id"`
	EventType    string         `json:"event_type"`
	SourceNodeID string         `json:"source_node_id,omitempty"`
	TargetNodeID string         `json:"target_node_id,omitempty"`
	TaskID       string         `json:"task_id,omitempty"`
	Payload      map[string]any `json:"payload,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

// OrgStats summarizes an org for dashboards.
type OrgStats struct {
	OrgID        string         `json:"org_id"`
	NodeCount    int            `json:"node_count"`
	TasksByStatus map[string]int `json:"tasks_by_status"`
	RecentErrors []string       `json:"recent_errors,omitempty"`
}

// NewOrg creates a draft org.
func NewOrg(name, description, createdBy string) *Org {
	now := time.Now().UTC()
	return &Org{
		OrgID:       "org-" + uuid.NewString(),
		Name:        name,
		Description: description,
		Status:      OrgStatusDraft,
		Config:      map[string]any{},
		CreatedBy:   createdBy,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// NewNode creates an active node in the given org. parentNodeID is empty
// for the root.
func NewNode(orgID, parentNodeID, roleName, roleType, description string) *Node {
	now := time.Now().UTC()
	return &Node{
		NodeID:               "node-" + uuid.NewString(),
		OrgID:                orgID,
		ParentNodeID:         parentNodeID,
		RoleName:             roleName,
		RoleType:             roleType,
		Description:          description,
		AgentConfig:          map[string]any{},
		HITL:                 HITLConfig{TimeoutHours: 24, AutoProceed: true},
		NotificationChannels: []string{ChannelEmail},
		Status:               NodeStatusActive,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
}

// NewTask creates a pending task assigned to a node.
func NewTask(orgID, assignedNodeID, parentTaskID, title, description string, input map[string]any, priority string) *Task {
	now := time.Now().UTC()
	if priority == "" {
		priority = PriorityMedium
	}
	return &Task{
		TaskID:         "task-" + uuid.NewString(),
		OrgID:          orgID,
		ParentTaskID:   parentTaskID,
		AssignedNodeID: assignedNodeID,
		Title:          title,
		Description:    description,
		InputData:      input,
		Context:        map[string]any{},
		Status:         TaskStatusPending,
		Priority:       priority,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NewResponse creates a response record for a task at a node.
func NewResponse(taskID, nodeID, responseType string, content map[string]any, summary, reasoning string) *Response {
	return &Response{
		ResponseID:   "resp-" + uuid.NewString(),
		TaskID:       taskID,
		NodeID:       nodeID,
		ResponseType: responseType,
		Content:      content,
		Summary:      summary,
		Reasoning:    reasoning,
		CreatedAt:    time.Now().UTC(),
	}
}

// NewAction creates an audit action record.
func NewAction(orgID, nodeID, taskID, userID, actionType string) *HITLAction {
	return &HITLAction{
		ActionID:   "act-" + uuid.NewString(),
		OrgID:      orgID,
		NodeID:     nodeID,
		TaskID:     taskID,
		UserID:     userID,
		ActionType: actionType,
		CreatedAt:  time.Now().UTC(),
	}
}

// NewQueueItem creates a pending HITL queue item expiring at the given time.
func NewQueueItem(orgID, nodeID, taskID, reviewType string, content *Response, expiresAt time.Time) *QueueItem {
	return &QueueItem{
		ItemID:     "hitl-" + uuid.NewString(),
		OrgID:      orgID,
		NodeID:     nodeID,
		TaskID:     taskID,
		ReviewType: reviewType,
		Content:    content,
		Status:     QueuePending,
		CreatedAt:  time.Now().UTC(),
		ExpiresAt:  expiresAt,
	}
}

// NewEvent creates an event log entry.
func NewEvent(orgID, eventType string, payload map[string]any) *EventLog {
	return &EventLog{
		EventID:   "evt-" + uuid.NewString(),
		OrgID:     orgID,
		EventType: eventType,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}
}

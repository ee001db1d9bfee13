// Package hitl manages human-in-the-loop review: queueing items at the
// engine's gates, processing human decisions, sweeping timeouts, and
// keeping the audit trail.
package hitl

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/OrgWeave/OrgWeave/internal/bus"
	"github.com/OrgWeave/OrgWeave/internal/notify"
	"github.com/OrgWeave/OrgWeave/internal/org"
	"github.com/OrgWeave/OrgWeave/internal/store"
)

// ErrNotPending is returned when acting on an item already decided. The
// first action to reach the pending→terminal transition wins; all later
// actions get this error and change nothing.
var ErrNotPending = errors.New("item is not pending")

// TaskResumer is the engine surface the manager resumes after a decision.
type TaskResumer interface {
	ResumeTaskReceived(ctx context.Context, item *org.QueueItem, approved bool, reason string) error
	ResumeDelegation(ctx context.Context, item *org.QueueItem, plan map[string]any, approved bool) error
	ResumeResponseApproval(ctx context.Context, item *org.QueueItem, override *org.Response, approved bool, reason string) error
}

// ActorContext carries the network fingerprint for the audit record.
type ActorContext struct {
	IPAddress string
	UserAgent string
}

// Manager serializes decisions per queue item and records one audit
// action per decision.
type Manager struct {
	store    *store.Store
	bus      *bus.Bus
	notifier *notify.Service
	resumer  TaskResumer
	now      func() time.Time

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewManager creates a HITL manager. The notifier may be nil.
func NewManager(st *store.Store, eventBus *bus.Bus, notifier *notify.Service) *Manager {
	return &Manager{
		store:    st,
		bus:      eventBus,
		notifier: notifier,
		now:      func() time.Time { return time.Now().UTC() },
		locks:    make(map[string]*sync.Mutex),
	}
}

// SetResumer attaches the task engine. Must be called before decisions
// are processed.
func (m *Manager) SetResumer(r TaskResumer) { m.resumer = r }

// SetClock overrides the wall clock (tests).
func (m *Manager) SetClock(now func() time.Time) { m.now = now }

// QueueForReview creates a pending queue item for a node's human mirror,
// alerts them, and emits HITL_REQUIRED. The item expires after the node's
// configured timeout.
func (m *Manager) QueueForReview(ctx context.Context, node *org.Node, task *org.Task, reviewType string, content *org.Response) (*org.QueueItem, error) {
	timeoutHours := node.HITL.TimeoutHours
	if timeoutHours <= 0 {
		timeoutHours = 24
	}
	expiresAt := m.now().Add(time.Duration(timeoutHours) * time.Hour)

	item := org.NewQueueItem(task.OrgID, node.NodeID, task.TaskID, reviewType, content, expiresAt)
	if err := m.store.SaveQueueItem(item); err != nil {
		return nil, fmt.Errorf("queue for review: %w", err)
	}

	slog.Info("Queued HITL review", "type", reviewType, "node", node.RoleName, "task", task.TaskID)
	m.publish(item.OrgID, org.EventHITLRequired, map[string]any{
		"item_id":     item.ItemID,
		"node_id":     node.NodeID,
		"task_id":     task.TaskID,
		"review_type": reviewType,
	}, item.TaskID)

	if m.notifier != nil {
		m.notifier.HITLPending(ctx, node, task, item)
	}
	return item, nil
}

// Approve accepts the AI content as-is and resumes the engine along the
// positive path.
func (m *Manager) Approve(ctx context.Context, itemID, userID, comment string, actor ActorContext) error {
	unlock := m.lockItem(itemID)
	defer unlock()

	item, err := m.store.GetQueueItem(itemID)
	if err != nil {
		return fmt.Errorf("approve %s: %w", itemID, err)
	}
	if item.IsTerminal() {
		return ErrNotPending
	}

	action := org.NewAction(item.OrgID, item.NodeID, item.TaskID, userID, org.ActionApprove)
	action.Message = comment
	action.IPAddress = actor.IPAddress
	action.UserAgent = actor.UserAgent
	if item.Content != nil {
		action.OriginalContent = item.Content.Content
		action.ResponseID = item.Content.ResponseID
	}
	if err := m.store.SaveAction(action); err != nil {
		return fmt.Errorf("approve %s: %w", itemID, err)
	}

	item.Status = org.QueueApproved
	if err := m.store.SaveQueueItem(item); err != nil {
		return fmt.Errorf("approve %s: %w", itemID, err)
	}

	slog.Info("HITL approved", "item", itemID, "user", userID)
	m.publish(item.OrgID, org.EventHITLApproved, map[string]any{
		"item_id":     item.ItemID,
		"node_id":     item.NodeID,
		"task_id":     item.TaskID,
		"review_type": item.ReviewType,
		"user":        userID,
	}, item.TaskID)

	return m.resume(ctx, item, nil, true, "")
}

// Reject declines the item. The engine policy per gate: a rejected
// task_received fails the task, a rejected delegation_review falls back
// to direct execution, a rejected response_approval fails the task.
func (m *Manager) Reject(ctx context.Context, itemID, userID, reason string, actor ActorContext) error {
	unlock := m.lockItem(itemID)
	defer unlock()

	item, err := m.store.GetQueueItem(itemID)
	if err != nil {
		return fmt.Errorf("reject %s: %w", itemID, err)
	}
	if item.IsTerminal() {
		return ErrNotPending
	}

	action := org.NewAction(item.OrgID, item.NodeID, item.TaskID, userID, org.ActionReject)
	action.Reason = reason
	action.IPAddress = actor.IPAddress
	action.UserAgent = actor.UserAgent
	if item.Content != nil {
		action.OriginalContent = item.Content.Content
	}
	if err := m.store.SaveAction(action); err != nil {
		return fmt.Errorf("reject %s: %w", itemID, err)
	}

	item.Status = org.QueueRejected
	if err := m.store.SaveQueueItem(item); err != nil {
		return fmt.Errorf("reject %s: %w", itemID, err)
	}

	slog.Info("HITL rejected", "item", itemID, "user", userID)
	m.publish(item.OrgID, org.EventHITLRejected, map[string]any{
		"item_id":     item.ItemID,
		"node_id":     item.NodeID,
		"task_id":     item.TaskID,
		"review_type": item.ReviewType,
		"reason":      reason,
	}, item.TaskID)

	return m.resume(ctx, item, nil, false, reason)
}

// Override replaces the AI content with human content. For a
// response_approval it appends a human_override response that becomes the
// task's outcome; for a delegation_review the substituted plan drives the
// delegation.
func (m *Manager) Override(ctx context.Context, itemID, userID string, newContent map[string]any, reason string, actor ActorContext) error {
	unlock := m.lockItem(itemID)
	defer unlock()

	item, err := m.store.GetQueueItem(itemID)
	if err != nil {
		return fmt.Errorf("override %s: %w", itemID, err)
	}
	if item.IsTerminal() {
		return ErrNotPending
	}

	var originalContent map[string]any
	if item.Content != nil {
		originalContent = item.Content.Content
	}

	var overrideResp *org.Response
	if item.ReviewType == org.ReviewResponseApproval {
		summary, _ := newContent["summary"].(string)
		if summary == "" {
			summary = "Human override"
		}
		overrideResp = org.NewResponse(item.TaskID, item.NodeID, org.ResponseHumanOverride,
			newContent, summary, fmt.Sprintf("Human override by %s: %s", userID, reason))
		modifiedAt := m.now()
		overrideResp.IsHumanModified = true
		overrideResp.OriginalAIContent = originalContent
		overrideResp.ModificationReason = reason
		overrideResp.ModifiedBy = userID
		overrideResp.ModifiedAt = &modifiedAt
		if err := m.store.SaveResponse(overrideResp); err != nil {
			return fmt.Errorf("override %s: %w", itemID, err)
		}
	}

	action := org.NewAction(item.OrgID, item.NodeID, item.TaskID, userID, org.ActionOverride)
	action.OriginalContent = originalContent
	action.ModifiedContent = newContent
	action.Reason = reason
	action.IPAddress = actor.IPAddress
	action.UserAgent = actor.UserAgent
	if overrideResp != nil {
		action.ResponseID = overrideResp.ResponseID
	}
	if err := m.store.SaveAction(action); err != nil {
		return fmt.Errorf("override %s: %w", itemID, err)
	}

	item.Status = org.QueueOverridden
	if overrideResp != nil {
		item.Content = overrideResp
	}
	if err := m.store.SaveQueueItem(item); err != nil {
		return fmt.Errorf("override %s: %w", itemID, err)
	}

	slog.Info("HITL override", "item", itemID, "user", userID)
	m.publish(item.OrgID, org.EventHITLOverridden, map[string]any{
		"item_id":     item.ItemID,
		"node_id":     item.NodeID,
		"task_id":     item.TaskID,
		"review_type": item.ReviewType,
		"user":        userID,
	}, item.TaskID)

	if m.resumer == nil {
		return nil
	}
	switch item.ReviewType {
	case org.ReviewDelegation:
		return m.resumer.ResumeDelegation(ctx, item, newContent, true)
	case org.ReviewResponseApproval:
		return m.resumer.ResumeResponseApproval(ctx, item, overrideResp, true, reason)
	default:
		return m.resumer.ResumeTaskReceived(ctx, item, true, reason)
	}
}

// AddMessage appends a note to the audit trail without changing the flow.
func (m *Manager) AddMessage(ctx context.Context, itemID, userID, message string, actor ActorContext) error {
	unlock := m.lockItem(itemID)
	defer unlock()

	item, err := m.store.GetQueueItem(itemID)
	if err != nil {
		return fmt.Errorf("add message %s: %w", itemID, err)
	}
	if item.IsTerminal() {
		return ErrNotPending
	}

	action := org.NewAction(item.OrgID, item.NodeID, item.TaskID, userID, org.ActionMessage)
	action.Message = message
	action.IPAddress = actor.IPAddress
	action.UserAgent = actor.UserAgent
	if err := m.store.SaveAction(action); err != nil {
		return fmt.Errorf("add message %s: %w", itemID, err)
	}
	return nil
}

// PauseNode stops a node from accepting new task assignments.
func (m *Manager) PauseNode(ctx context.Context, nodeID, userID, reason string) error {
	node, err := m.store.GetNode(nodeID)
	if err != nil {
		return fmt.Errorf("pause node %s: %w", nodeID, err)
	}
	if err := m.store.UpdateNodeStatus(nodeID, org.NodeStatusPaused); err != nil {
		return fmt.Errorf("pause node %s: %w", nodeID, err)
	}

	action := org.NewAction(node.OrgID, nodeID, "", userID, org.ActionPause)
	action.Reason = reason
	if err := m.store.SaveAction(action); err != nil {
		return fmt.Errorf("pause node %s: %w", nodeID, err)
	}

	slog.Info("Node paused", "node", nodeID, "user", userID)
	m.publish(node.OrgID, org.EventNodePaused, map[string]any{
		"node_id": nodeID,
		"user":    userID,
		"reason":  reason,
	}, "")
	return nil
}

// ResumeNode reactivates a paused node.
func (m *Manager) ResumeNode(ctx context.Context, nodeID, userID string) error {
	node, err := m.store.GetNode(nodeID)
	if err != nil {
		return fmt.Errorf("resume node %s: %w", nodeID, err)
	}
	if err := m.store.UpdateNodeStatus(nodeID, org.NodeStatusActive); err != nil {
		return fmt.Errorf("resume node %s: %w", nodeID, err)
	}

	action := org.NewAction(node.OrgID, nodeID, "", userID, org.ActionResume)
	if err := m.store.SaveAction(action); err != nil {
		return fmt.Errorf("resume node %s: %w", nodeID, err)
	}

	slog.Info("Node resumed", "node", nodeID, "user", userID)
	m.publish(node.OrgID, org.EventNodeResumed, map[string]any{
		"node_id": nodeID,
		"user":    userID,
	}, "")
	return nil
}

// History returns audit actions filtered by org, node, and task.
func (m *Manager) History(orgID, nodeID, taskID string, limit int) ([]*org.HITLAction, error) {
	return m.store.GetActions(orgID, nodeID, taskID, limit)
}

func (m *Manager) resume(ctx context.Context, item *org.QueueItem, override *org.Response, approved bool, reason string) error {
	if m.resumer == nil {
		return nil
	}
	switch item.ReviewType {
	case org.ReviewTaskReceived:
		return m.resumer.ResumeTaskReceived(ctx, item, approved, reason)
	case org.ReviewDelegation:
		return m.resumer.ResumeDelegation(ctx, item, nil, approved)
	case org.ReviewResponseApproval:
		return m.resumer.ResumeResponseApproval(ctx, item, override, approved, reason)
	}
	return fmt.Errorf("unknown review type %q", item.ReviewType)
}

func (m *Manager) publish(orgID, eventType string, payload map[string]any, taskID string) {
	ev := org.NewEvent(orgID, eventType, payload)
	ev.TaskID = taskID
	if err := m.store.SaveEvent(ev); err != nil {
		slog.Warn("Event log write failed", "type", eventType, "error", err)
	}
	if m.bus != nil {
		m.bus.Publish(bus.Topic(orgID), bus.Event{Type: eventType, Payload: payload})
	}
}

func (m *Manager) lockItem(itemID string) func() {
	m.mu.Lock()
	lock, ok := m.locks[itemID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[itemID] = lock
	}
	m.mu.Unlock()
	lock.Lock()
	return lock.Unlock
}

package hitl

import (
	"fmt"
	"time"

	"github.com/OrgWeave/OrgWeave/internal/org"
)

// PendingReview is a queue item enriched with dashboard context.
type PendingReview struct {
	Item          *org.QueueItem `json:"item"`
	OrgName       string         `json:"org_name"`
	RoleName      string         `json:"role_name"`
	RoleType      string         `json:"role_type"`
	TaskTitle     string         `json:"task_title"`
	TaskStatus    string         `json:"task_status"`
	TimeRemaining string         `json:"time_remaining"`
}

// PendingReviews returns all pending items for the nodes mirrored by the
// given human email, oldest first.
func (m *Manager) PendingReviews(userEmail string) ([]*PendingReview, error) {
	nodes, err := m.store.GetNodesByEmail(userEmail)
	if err != nil {
		return nil, fmt.Errorf("pending reviews for %s: %w", userEmail, err)
	}
	if len(nodes) == 0 {
		return nil, nil
	}
	nodeIDs := make([]string, 0, len(nodes))
	byID := make(map[string]*org.Node, len(nodes))
	for _, n := range nodes {
		nodeIDs = append(nodeIDs, n.NodeID)
		byID[n.NodeID] = n
	}

	items, err := m.store.GetPendingHITLForNodes(nodeIDs)
	if err != nil {
		return nil, fmt.Errorf("pending reviews for %s: %w", userEmail, err)
	}

	now := m.now()
	var reviews []*PendingReview
	for _, item := range items {
		review := &PendingReview{Item: item, TimeRemaining: timeRemaining(item, now)}
		if node := byID[item.NodeID]; node != nil {
			review.RoleName = node.RoleName
			review.RoleType = node.RoleType
		}
		if o, err := m.store.GetOrg(item.OrgID); err == nil {
			review.OrgName = o.Name
		}
		if task, err := m.store.GetTask(item.TaskID); err == nil {
			review.TaskTitle = task.Title
			review.TaskStatus = task.Status
		}
		reviews = append(reviews, review)
	}
	return reviews, nil
}

// GetItem returns a queue item by id.
func (m *Manager) GetItem(itemID string) (*org.QueueItem, error) {
	return m.store.GetQueueItem(itemID)
}

func timeRemaining(item *org.QueueItem, now time.Time) string {
	remaining := item.ExpiresAt.Sub(now)
	if remaining <= 0 {
		return "Expired"
	}
	hours := int(remaining.Hours())
	minutes := int(remaining.Minutes()) % 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes)
	}
	return fmt.Sprintf("%dm", minutes)
}

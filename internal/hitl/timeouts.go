package hitl

import (
	"context"
	"log/slog"
	"time"

	"github.com/OrgWeave/OrgWeave/internal/org"
)

// SystemTimeoutUser is the actor recorded for auto-approved timeouts.
const SystemTimeoutUser = "system_timeout"

// CheckTimeouts scans expired pending items. Items on auto_proceed nodes
// are approved as the system; the rest transition to timeout with an
// audit action. Returns the number of items processed. Re-running the
// sweep is a no-op for already-processed items.
func (m *Manager) CheckTimeouts(ctx context.Context, now time.Time) (int, error) {
	expired, err := m.store.GetExpiredHITL(now)
	if err != nil {
		return 0, err
	}

	processed := 0
	for _, item := range expired {
		node, err := m.store.GetNode(item.NodeID)
		if err != nil {
			slog.Warn("Expired HITL item has no node", "item", item.ItemID, "error", err)
			continue
		}

		if node.HITL.AutoProceed {
			slog.Info("Auto-approving expired HITL item", "item", item.ItemID)
			if err := m.Approve(ctx, item.ItemID, SystemTimeoutUser, "Auto-approved on timeout", ActorContext{}); err != nil {
				slog.Warn("Auto-approve failed", "item", item.ItemID, "error", err)
				continue
			}
			processed++
			continue
		}

		if err := m.markTimeout(item); err != nil {
			slog.Warn("Timeout transition failed", "item", item.ItemID, "error", err)
			continue
		}
		processed++
	}
	return processed, nil
}

func (m *Manager) markTimeout(item *org.QueueItem) error {
	unlock := m.lockItem(item.ItemID)
	defer unlock()

	fresh, err := m.store.GetQueueItem(item.ItemID)
	if err != nil {
		return err
	}
	if fresh.IsTerminal() {
		return nil
	}

	fresh.Status = org.QueueTimeout
	if err := m.store.SaveQueueItem(fresh); err != nil {
		return err
	}

	action := org.NewAction(fresh.OrgID, fresh.NodeID, fresh.TaskID, "system", org.ActionView)
	action.Message = "HITL timeout - manual intervention required"
	if err := m.store.SaveAction(action); err != nil {
		return err
	}

	m.publish(fresh.OrgID, org.EventHITLTimeout, map[string]any{
		"item_id":     fresh.ItemID,
		"node_id":     fresh.NodeID,
		"task_id":     fresh.TaskID,
		"review_type": fresh.ReviewType,
	}, fresh.TaskID)
	return nil
}

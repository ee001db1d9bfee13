// Package notify delivers terminal task results and HITL alerts to the
// humans mirrored by org nodes. Delivery is best-effort: failures are
// logged and published as NOTIFY_FAILED, never propagated to the engine.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/OrgWeave/OrgWeave/internal/bus"
	"github.com/OrgWeave/OrgWeave/internal/org"
)

// Channel is one delivery medium.
type Channel interface {
	// Name returns the channel name (e.g. "email").
	Name() string
	// Send delivers a message to an address on this channel.
	Send(ctx context.Context, address, subject, body string) error
}

// Config configures notification delivery.
type Config struct {
	Email EmailConfig `json:"email"`
	Slack SlackConfig `json:"slack"`
}

// Service fans notifications out through the configured channels.
type Service struct {
	channels map[string]Channel
	bus      *bus.Bus
}

// NewService creates a notifier over the given channels.
func NewService(eventBus *bus.Bus, channels ...Channel) *Service {
	m := make(map[string]Channel, len(channels))
	for _, c := range channels {
		m[c.Name()] = c
	}
	return &Service{channels: m, bus: eventBus}
}

// TaskCompleted notifies the node's human mirror that a root task reached
// its terminal result.
func (s *Service) TaskCompleted(ctx context.Context, task *org.Task, node *org.Node, outcome *org.Response) {
	subject := "AI Org Task Complete: " + task.Title
	if task.Overdue(time.Now().UTC()) {
		subject += " [overdue]"
	}
	body := formatCompletionBody(task, outcome)
	s.deliver(ctx, node, subject, body)
}

// TaskFailed notifies the node's human mirror that a root task failed.
func (s *Service) TaskFailed(ctx context.Context, task *org.Task, node *org.Node) {
	subject := "AI Org Task Failed: " + task.Title
	body := fmt.Sprintf(`AI Organization Task Failed

Task: %s
Status: Failed
Error: %s

---
This is an automated notification from OrgWeave.
`, task.Title, task.ErrorMessage)
	s.deliver(ctx, node, subject, body)
}

// HITLPending alerts the node's human mirror that a review is waiting.
func (s *Service) HITLPending(ctx context.Context, node *org.Node, task *org.Task, item *org.QueueItem) {
	subject := "HITL Review Required: " + task.Title
	body := fmt.Sprintf(`Human-in-the-Loop Review Required

Role: %s
Task: %s
Review Type: %s
Item: %s
Expires: %s

Please log in to the HITL dashboard to review and take action.

---
OrgWeave
`, node.RoleName, task.Title, item.ReviewType, item.ItemID, item.ExpiresAt.UTC().Format(time.RFC3339))
	s.deliver(ctx, node, subject, body)
}

func (s *Service) deliver(ctx context.Context, node *org.Node, subject, body string) {
	for _, name := range node.NotificationChannels {
		ch, ok := s.channels[name]
		if !ok {
			continue
		}
		address := s.addressFor(node, name)
		if strings.TrimSpace(address) == "" {
			continue
		}
		if err := ch.Send(ctx, address, subject, body); err != nil {
			slog.Warn("Notification delivery failed", "channel", name, "node", node.NodeID, "error", err)
			if s.bus != nil {
				s.bus.Publish(bus.Topic(node.OrgID), bus.Event{
					Type: org.EventNotifyFailed,
					Payload: map[string]any{
						"node_id": node.NodeID,
						"channel": name,
						"error":   err.Error(),
					},
				})
			}
		}
	}
}

func (s *Service) addressFor(node *org.Node, channel string) string {
	switch channel {
	case org.ChannelEmail:
		return node.Human.Email
	case org.ChannelChat:
		return node.Human.SlackID
	}
	return ""
}

func formatCompletionBody(task *org.Task, outcome *org.Response) string {
	summary := ""
	var content map[string]any
	if outcome != nil {
		summary = outcome.Summary
		content = outcome.Content
	}
	details, _ := json.MarshalIndent(content, "", "  ")
	completedAt := ""
	if task.CompletedAt != nil {
		completedAt = task.CompletedAt.UTC().Format(time.RFC3339)
	}
	return fmt.Sprintf(`AI Organization Task Completed

Task: %s
Status: Completed
Completed At: %s

Summary:
%s

Detailed Findings:
%s

---
This is an automated notification from OrgWeave.
`, task.Title, completedAt, summary, string(details))
}

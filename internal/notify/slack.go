package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
)

// SlackConfig configures the Slack chat channel.
type SlackConfig struct {
	Enabled  bool   `json:"enabled" envconfig:"SLACK_ENABLED"`
	BotToken string `json:"botToken" envconfig:"SLACK_BOT_TOKEN"`
}

// SlackChannel posts messages through the Slack Web API.
type SlackChannel struct {
	client *slack.Client
}

// NewSlackChannel creates a Slack channel from a bot token.
func NewSlackChannel(cfg SlackConfig) *SlackChannel {
	return &SlackChannel{client: slack.New(cfg.BotToken)}
}

// Name returns "chat_channel".
func (c *SlackChannel) Name() string { return "chat_channel" }

// Send posts the subject and body as one message to the given Slack
// channel or user id.
func (c *SlackChannel) Send(ctx context.Context, address, subject, body string) error {
	text := fmt.Sprintf("*%s*\n%s", subject, body)
	_, _, err := c.client.PostMessageContext(ctx, address,
		slack.MsgOptionText(text, false),
		slack.MsgOptionDisableLinkUnfurl(),
	)
	if err != nil {
		return fmt.Errorf("slack post to %s: %w", address, err)
	}
	return nil
}

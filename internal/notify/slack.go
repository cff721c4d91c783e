package notify

import (
	"context"
	"fmt"

	"github.com/slack-go/slack"
	"go.uber.org/zap"
)

// SlackAnnouncer posts scheduling announcements to a Slack channel. Outbound
// only; no event subscription.
type SlackAnnouncer struct {
	client  *slack.Client
	channel string
	logger  *zap.Logger
}

// NewSlackAnnouncer creates a Slack announcer. botToken is the Bot User
// OAuth Token (xoxb-...), channel the target channel ID or name.
func NewSlackAnnouncer(botToken, channel string, logger *zap.Logger) *SlackAnnouncer {
	return &SlackAnnouncer{
		client:  slack.New(botToken),
		channel: channel,
		logger:  logger,
	}
}

func (a *SlackAnnouncer) Platform() string { return "slack" }

// Announce posts the text to the configured channel.
func (a *SlackAnnouncer) Announce(_ context.Context, text string) error {
	_, _, err := a.client.PostMessage(a.channel, slack.MsgOptionText(text, false))
	if err != nil {
		return fmt.Errorf("slack post to %s: %w", a.channel, err)
	}
	return nil
}

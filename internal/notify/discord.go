package notify

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

// DiscordAnnouncer posts scheduling announcements to a Discord channel via
// the REST API; the gateway websocket is never opened.
type DiscordAnnouncer struct {
	session   *discordgo.Session
	channelID string
	logger    *zap.Logger
}

// NewDiscordAnnouncer creates a Discord announcer.
func NewDiscordAnnouncer(botToken, channelID string, logger *zap.Logger) (*DiscordAnnouncer, error) {
	session, err := discordgo.New("Bot " + botToken)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	return &DiscordAnnouncer{
		session:   session,
		channelID: channelID,
		logger:    logger,
	}, nil
}

func (a *DiscordAnnouncer) Platform() string { return "discord" }

// Announce posts the text to the configured channel.
func (a *DiscordAnnouncer) Announce(_ context.Context, text string) error {
	if _, err := a.session.ChannelMessageSend(a.channelID, text); err != nil {
		return fmt.Errorf("discord send to %s: %w", a.channelID, err)
	}
	return nil
}

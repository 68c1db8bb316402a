package notify

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// discordEmbedColor is the sidebar color of notification embeds.
const discordEmbedColor = 0x2f80ed

// DiscordSender delivers notifications via a Discord webhook.
type DiscordSender struct {
	session   *discordgo.Session
	webhookID string
	token     string
}

// NewDiscordSender creates a DiscordSender for a webhook URL of the form
// https://discord.com/api/webhooks/{id}/{token}.
func NewDiscordSender(webhookURL string) (*DiscordSender, error) {
	id, token, err := parseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}
	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	session.Client.Timeout = 10 * time.Second
	return &DiscordSender{session: session, webhookID: id, token: token}, nil
}

// Name returns "discord".
func (d *DiscordSender) Name() string {
	return "discord"
}

// Send posts the notification as a single embed.
func (d *DiscordSender) Send(ctx context.Context, title, message string) error {
	params := &discordgo.WebhookParams{
		Embeds: []*discordgo.MessageEmbed{{
			Title:       title,
			Description: message,
			Color:       discordEmbedColor,
			Timestamp:   time.Now().UTC().Format(time.RFC3339),
		}},
	}
	if _, err := d.session.WebhookExecute(d.webhookID, d.token, false, params, discordgo.WithContext(ctx)); err != nil {
		return fmt.Errorf("discord: execute webhook: %w", err)
	}
	return nil
}

func parseWebhookURL(raw string) (id, token string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("discord: parse webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("discord: webhook url %q has no /webhooks/{id}/{token} path", raw)
}

package notify

import (
	"context"
	"fmt"
	"net/http"
)

// Embed colours per listing event. Anything else is grey.
var discordColors = map[string]int{
	"bid_placed":       0x2ECC71,
	"swap_proposed":    0x3498DB,
	"listing_ended":    0xF1C40F,
	"payment_recorded": 0x1ABC9C,
	"dispute_opened":   0xE74C3C,
}

const discordDefaultColor = 0x95A5A6

type discordEmbed struct {
	Title       string         `json:"title"`
	Description string         `json:"description"`
	Color       int            `json:"color"`
	Footer      *discordFooter `json:"footer,omitempty"`
}

type discordFooter struct {
	Text string `json:"text"`
}

// DiscordSender delivers alerts as webhook embeds.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

// NewDiscordSender creates a DiscordSender for the given webhook URL.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     defaultClient(),
	}
}

// Send posts a as a single embed. Discord replies 204 on success.
func (d *DiscordSender) Send(ctx context.Context, a Alert) error {
	color, ok := discordColors[a.Event]
	if !ok {
		color = discordDefaultColor
	}
	embed := discordEmbed{Title: a.Title, Description: a.Body, Color: color}
	if a.Event != "" {
		embed.Footer = &discordFooter{Text: a.Event}
	}
	payload := map[string]any{
		"username": "Martelinho",
		"embeds":   []discordEmbed{embed},
	}
	if err := postJSON(ctx, d.client, d.webhookURL, payload); err != nil {
		return fmt.Errorf("discord: %w", err)
	}
	return nil
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}

package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// discordEventColor maps event classes to embed sidebar colors.
var discordEventColor = map[string]int{
	EventSignal:        0x2ECC71, // green
	EventImpactWarning: 0xE67E22, // orange
	EventArchiveSweep:  0x3498DB, // blue
	EventError:         0xE74C3C, // red
}

const discordDefaultColor = 0x95A5A6

// discordPayload is the webhook request body. Alerts are delivered as a
// single embed rather than flat content so the event class shows up as
// color and footer.
type discordPayload struct {
	Embeds []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string              `json:"title"`
	Description string              `json:"description"`
	Color       int                 `json:"color"`
	Timestamp   string              `json:"timestamp,omitempty"`
	Footer      *discordEmbedFooter `json:"footer,omitempty"`
}

type discordEmbedFooter struct {
	Text string `json:"text"`
}

// DiscordSender delivers alerts via a Discord webhook.
type DiscordSender struct {
	webhookURL string
	client     *http.Client
}

var _ Sender = (*DiscordSender)(nil)

// NewDiscordSender creates a DiscordSender for the given webhook URL. It uses a
// default HTTP client with a 10-second timeout.
func NewDiscordSender(webhookURL string) *DiscordSender {
	return &DiscordSender{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Send posts the alert to the webhook as an embed colored by its event
// class.
func (d *DiscordSender) Send(ctx context.Context, alert Alert) error {
	color, ok := discordEventColor[alert.Event]
	if !ok {
		color = discordDefaultColor
	}

	embed := discordEmbed{
		Title:       alert.Title,
		Description: alert.Body,
		Color:       color,
		Footer:      &discordEmbedFooter{Text: alert.Event},
	}
	if !alert.At.IsZero() {
		embed.Timestamp = alert.At.Format(time.RFC3339)
	}

	body, err := json.Marshal(discordPayload{Embeds: []discordEmbed{embed}})
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return fmt.Errorf("discord: send request: %w", err)
	}
	defer resp.Body.Close()

	// Discord returns 204 No Content on success.
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("discord: unexpected status %d: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// Name returns the sender identifier.
func (d *DiscordSender) Name() string {
	return "discord"
}

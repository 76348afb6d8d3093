package notification

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"confluence-screener/internal/signal"
)

// DiscordConfig holds the webhook for the Discord channel
type DiscordConfig struct {
	WebhookURL string `json:"webhook_url"`
	Enabled    bool   `json:"enabled"`
}

// DiscordNotifier delivers messages through a Discord webhook embed
type DiscordNotifier struct {
	cfg     DiscordConfig
	enabled bool
	client  *http.Client
}

// NewDiscordNotifier builds the channel; no webhook means disabled
func NewDiscordNotifier(cfg DiscordConfig) *DiscordNotifier {
	return &DiscordNotifier{
		cfg:     cfg,
		enabled: cfg.Enabled && cfg.WebhookURL != "",
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (d *DiscordNotifier) Name() string { return "discord" }

func (d *DiscordNotifier) Enabled() bool { return d.enabled }

// Send posts the message as a single embed
func (d *DiscordNotifier) Send(msg *Message) error {
	if !d.enabled {
		return nil
	}

	color := 0x2ECC71
	switch {
	case msg.Kind == KindError:
		color = 0xE74C3C
	case msg.Priority == signal.PriorityHigh:
		color = 0xF1C40F
	}

	embed := map[string]interface{}{
		"title":       msg.Title,
		"description": msg.Body,
		"color":       color,
		"timestamp":   msg.Timestamp.Format(time.RFC3339),
	}
	if msg.Symbol != "" {
		embed["fields"] = []map[string]interface{}{
			{"name": "Symbol", "value": msg.Symbol, "inline": true},
			{"name": "Score", "value": fmt.Sprintf("%.1f", msg.Score), "inline": true},
			{"name": "Priority", "value": string(msg.Priority), "inline": true},
		}
	}

	data, err := json.Marshal(map[string]interface{}{
		"embeds": []map[string]interface{}{embed},
	})
	if err != nil {
		return fmt.Errorf("marshal discord payload: %w", err)
	}

	resp, err := d.client.Post(d.cfg.WebhookURL, "application/json", bytes.NewBuffer(data))
	if err != nil {
		return fmt.Errorf("send discord message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		return fmt.Errorf("discord API returned status %d", resp.StatusCode)
	}
	return nil
}

// Package notify delivers follower change reports to a Discord-compatible
// webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"followers-monitor/internal/config"
	"followers-monitor/pkg/types"
)

const (
	ColorRed   = 15158332
	ColorGreen = 3066993
	ColorGrey  = 8359053

	ellipsis = "..."

	defaultMaxDescriptionLength = 4000
)

type Embed struct {
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Color       int    `json:"color"`
}

type Payload struct {
	Username  string  `json:"username"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Embeds    []Embed `json:"embeds"`
}

type Discord struct {
	webhookURL           string
	displayName          string
	avatarURL            string
	maxDescriptionLength int
	timeout              time.Duration
	client               *http.Client
	logger               *logrus.Logger
}

func NewDiscord(cfg config.NotifyConfig, logger *logrus.Logger) *Discord {
	maxLen := cfg.MaxDescriptionLength
	if maxLen <= 0 {
		maxLen = defaultMaxDescriptionLength
	}
	timeout := config.Duration(cfg.Timeout)
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &Discord{
		webhookURL:           cfg.WebhookURL,
		displayName:          cfg.DisplayName,
		avatarURL:            cfg.AvatarURL,
		maxDescriptionLength: maxLen,
		timeout:              timeout,
		client:               &http.Client{Timeout: timeout},
		logger:               logger,
	}
}

// Notify sends a report for changes. It skips silently when no webhook is
// configured or there is nothing to report, and it only logs delivery
// failures.
func (d *Discord) Notify(ctx context.Context, changes *types.Diff) {
	if d.webhookURL == "" {
		d.logger.Debug("Discord webhook URL not set. Skipping notification.")
		return
	}
	if changes.Empty() {
		d.logger.Debug("No changes to report to Discord.")
		return
	}

	if err := d.send(ctx, d.BuildPayload(changes)); err != nil {
		d.logger.Errorf("Error sending notification to Discord: %v", err)
		return
	}
	d.logger.Info("Successfully sent notification to Discord.")
}

// BuildPayload renders changes as webhook embeds.
func (d *Discord) BuildPayload(changes *types.Diff) Payload {
	var embeds []Embed

	if changes.RemovedCount > 0 {
		embeds = append(embeds, Embed{
			Title:       fmt.Sprintf("❌ %d Unfollowed", changes.RemovedCount),
			Description: d.formatUsers(changes.Removed),
			Color:       ColorRed,
		})
	}
	if changes.AddedCount > 0 {
		embeds = append(embeds, Embed{
			Title:       fmt.Sprintf("🎉 %d New Followers", changes.AddedCount),
			Description: d.formatUsers(changes.Added),
			Color:       ColorGreen,
		})
	}

	net := changes.NetChange()
	switch {
	case net > 0:
		embeds = append(embeds, Embed{Title: fmt.Sprintf("📈 Net Gain: +%d", net), Color: ColorGreen})
	case net < 0:
		embeds = append(embeds, Embed{Title: fmt.Sprintf("📉 Net Loss: %d", net), Color: ColorRed})
	default:
		embeds = append(embeds, Embed{Title: "➖ No Net Change", Color: ColorGrey})
	}

	return Payload{
		Username:  d.displayName,
		AvatarURL: d.avatarURL,
		Embeds:    embeds,
	}
}

func (d *Discord) formatUsers(users []types.FollowerRecord) string {
	lines := make([]string, 0, len(users))
	for _, u := range users {
		lines = append(lines, "• "+u.String())
	}
	return Truncate(strings.Join(lines, "\n"), d.maxDescriptionLength)
}

// Truncate cuts s to at most max characters, ending in "..." when cut. A
// negative max is treated as zero.
func Truncate(s string, max int) string {
	if max < 0 {
		max = 0
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	if max <= len(ellipsis) {
		return string(runes[:max])
	}
	return string(runes[:max-len(ellipsis)]) + ellipsis
}

func (d *Discord) send(ctx context.Context, payload Payload) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		preview, _ := io.ReadAll(io.LimitReader(resp.Body, 200))
		return fmt.Errorf("webhook returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(preview)))
	}
	return nil
}

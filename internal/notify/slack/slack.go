// Package slack pushes high-urgency complaint decisions to a Slack incoming
// webhook so the owning department sees them before the SLA clock runs down.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/railtriage/internal/triage"
)

const (
	maxTextLen  = 500
	httpTimeout = 10 * time.Second
)

// Notifier sends complaint decisions to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a Slack notifier. If webhookURL is empty, Notify is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Notify posts a triaged complaint to the configured Slack webhook. It
// implements triage.Notifier. With no webhook configured it returns nil
// immediately.
func (n *Notifier) Notify(ctx context.Context, rec *triage.Record) error {
	if n.webhookURL == "" {
		return nil
	}

	body, err := json.Marshal(buildMessage(rec))
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(rec *triage.Record) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(rec),
			{"type": "divider"},
			fieldsBlock(rec),
			textBlock(rec),
			{"type": "divider"},
			contextBlock(rec),
		},
	}
}

func headerBlock(rec *triage.Record) map[string]any {
	title := fmt.Sprintf("%s High-Urgency Complaint: %s",
		urgencyEmoji(rec.Decision.Urgency), rec.Decision.Category)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": title,
		},
	}
}

func fieldsBlock(rec *triage.Record) map[string]any {
	d := rec.Decision
	fields := []map[string]any{
		{"type": "mrkdwn", "text": fmt.Sprintf("*Department:* %s", d.Department)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Urgency:* %.2f", d.Urgency)},
		{"type": "mrkdwn", "text": fmt.Sprintf("*SLA deadline:* %s", d.SLADeadline.UTC().Format("2006-01-02 15:04 UTC"))},
		{"type": "mrkdwn", "text": fmt.Sprintf("*Location:* %s", rec.LocationToken)},
	}
	if !d.IsNewCluster {
		fields = append(fields, map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Recurring:* cluster %s", d.DuplicateOf),
		})
	}
	if d.Escalated {
		fields = append(fields, map[string]any{
			"type": "mrkdwn",
			"text": "*Escalated:* repetition threshold reached",
		})
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func textBlock(rec *triage.Record) map[string]any {
	text := truncate(rec.Text, maxTextLen)
	if text == "" {
		text = "_media-only complaint_"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Complaint*\n\n%s", text),
		},
	}
}

func contextBlock(rec *triage.Record) map[string]any {
	return map[string]any{
		"type": "context",
		"elements": []map[string]any{
			{
				"type": "mrkdwn",
				"text": fmt.Sprintf("railtriage • complaint %s • %s",
					rec.ID, rec.SubmittedAt.UTC().Format("2006-01-02 15:04 UTC")),
			},
		},
	}
}

func urgencyEmoji(urgency float64) string {
	switch {
	case urgency >= 0.8:
		return "\U0001f534" // red circle
	case urgency >= 0.5:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}

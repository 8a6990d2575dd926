package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// SlackNotifier delivers notices to Slack incoming webhooks. The webhook
// URL is per-principal and arrives on each notice as the endpoint.
type SlackNotifier struct {
	client *http.Client
}

// NewSlackNotifier creates a Slack webhook notifier.
func NewSlackNotifier() *SlackNotifier {
	return &SlackNotifier{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Name returns the backend name.
func (n *SlackNotifier) Name() string {
	return "slack"
}

// Validate checks the notifier configuration.
func (n *SlackNotifier) Validate(_ context.Context) error {
	if n.client == nil {
		return fmt.Errorf("http client is required")
	}
	return nil
}

// Send posts a Block Kit message to the principal's webhook URL.
func (n *SlackNotifier) Send(ctx context.Context, notice Notice) error {
	return notice.exposeSecret(func(secret string) error {
		body, err := json.Marshal(n.buildMessage(notice, secret))
		if err != nil {
			return fmt.Errorf("failed to marshal Slack message: %w", err)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, notice.Endpoint, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := n.client.Do(req)
		if err != nil {
			return fmt.Errorf("failed to send Slack notification: %w", err)
		}
		defer func() { _ = resp.Body.Close() }()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("slack returned status %d", resp.StatusCode)
		}

		return nil
	})
}

// buildMessage creates a Block Kit formatted Slack message.
func (n *SlackNotifier) buildMessage(notice Notice, secret string) map[string]interface{} {
	blocks := make([]map[string]interface{}, 0)

	title := ":key: New Access Key Pair"
	if notice.Kind == KindDeletion {
		title = ":wastebasket: Old Access Key Pair Deleted"
	}
	blocks = append(blocks, map[string]interface{}{
		"type": "header",
		"text": map[string]interface{}{
			"type":  "plain_text",
			"text":  title,
			"emoji": true,
		},
	})

	fields := []map[string]interface{}{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*User:*\n%s", notice.Principal),
		},
	}

	if notice.Kind == KindDeletion {
		fields = append(fields, map[string]interface{}{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Access Key:*\n`%s`", notice.OldKeyID),
		})
	} else {
		fields = append(fields,
			map[string]interface{}{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*Account:*\n%s (%s)", notice.Account.ID, notice.Account.Alias),
			},
			map[string]interface{}{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*Access Key:*\n`%s`", notice.NewKeyID),
			},
			map[string]interface{}{
				"type": "mrkdwn",
				"text": fmt.Sprintf("*Secret Access Key:*\n`%s`", secret),
			},
		)
	}

	blocks = append(blocks, map[string]interface{}{
		"type":   "section",
		"fields": fields,
	})

	if notice.Kind == KindRotation {
		if notice.Instructions != "" {
			blocks = append(blocks, map[string]interface{}{
				"type": "section",
				"text": map[string]interface{}{
					"type": "mrkdwn",
					"text": fmt.Sprintf("*Instruction:* %s", notice.Instructions),
				},
			})
		}
		blocks = append(blocks, map[string]interface{}{
			"type": "context",
			"elements": []map[string]interface{}{
				{
					"type": "mrkdwn",
					"text": fmt.Sprintf("Existing key pair `%s` will be deleted after %d days. Please update the new key pair wherever required.",
						notice.OldKeyID, notice.GraceDays),
				},
			},
		})
	}

	return map[string]interface{}{"blocks": blocks}
}

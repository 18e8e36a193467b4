package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/funnelcast/funnelcast/internal/database"
	"github.com/funnelcast/funnelcast/internal/email"
	"github.com/funnelcast/funnelcast/internal/player"
)

// Client sends Slack notifications via incoming webhooks.
type Client struct {
	db   database.DBTX
	http *http.Client
}

// New creates a Slack webhook client.
func New(db database.DBTX) *Client {
	return &Client{
		db:   db,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

type block struct {
	Type     string `json:"type"`
	Text     *text  `json:"text,omitempty"`
	Elements []text `json:"elements,omitempty"`
}

type text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type payload struct {
	Blocks []block `json:"blocks"`
}

func (c *Client) lookupWebhookURL(ctx context.Context, companyID string) (string, error) {
	var webhookURL string
	err := c.db.QueryRow(ctx,
		`SELECT slack_webhook_url FROM notification_preferences WHERE company_id = $1 AND slack_webhook_url IS NOT NULL`,
		companyID,
	).Scan(&webhookURL)
	if err != nil {
		return "", err
	}
	return webhookURL, nil
}

func (c *Client) postMessage(ctx context.Context, webhookURL string, p payload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("send slack message: %w", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}

	return nil
}

func (c *Client) SendLeadNotification(ctx context.Context, toEmail, toName string, sessionTitle string, lead player.Lead) error {
	webhookURL, err := c.lookupWebhookURL(ctx, lead.CompanyID)
	if err != nil {
		log.Printf("slack: no webhook for company %s: %v", lead.CompanyID, err)
		return nil
	}

	p := payload{
		Blocks: []block{
			{
				Type: "section",
				Text: &text{
					Type: "mrkdwn",
					Text: fmt.Sprintf(":tada: *New lead on %s*\nForm: %s", sessionTitle, lead.FormTitle),
				},
			},
			{
				Type: "section",
				Text: &text{
					Type: "mrkdwn",
					Text: email.FormatLeadFields(lead.Fields),
				},
			},
			{
				Type: "context",
				Elements: []text{
					{
						Type: "mrkdwn",
						Text: lead.JourneySummary,
					},
				},
			},
		},
	}

	if err := c.postMessage(ctx, webhookURL, p); err != nil {
		log.Printf("slack: failed to send lead notification: %v", err)
	}
	return nil
}

func (c *Client) SendSessionCompletedNotification(ctx context.Context, toEmail, toName, companyID, sessionTitle, solutionTitle, journeySummary string) error {
	webhookURL, err := c.lookupWebhookURL(ctx, companyID)
	if err != nil {
		log.Printf("slack: no webhook for company %s: %v", companyID, err)
		return nil
	}

	body := fmt.Sprintf(":checkered_flag: *Funnel completed: %s*", sessionTitle)
	if solutionTitle != "" {
		body += fmt.Sprintf("\nSolution reached: %s", solutionTitle)
	}

	p := payload{
		Blocks: []block{
			{
				Type: "section",
				Text: &text{
					Type: "mrkdwn",
					Text: body,
				},
			},
			{
				Type: "context",
				Elements: []text{
					{
						Type: "mrkdwn",
						Text: journeySummary,
					},
				},
			},
		},
	}

	if err := c.postMessage(ctx, webhookURL, p); err != nil {
		log.Printf("slack: failed to send completion notification: %v", err)
	}
	return nil
}

// SendTestMessage posts a test message directly to the given webhook URL without DB lookup.
func SendTestMessage(ctx context.Context, webhookURL string) error {
	p := payload{
		Blocks: []block{
			{
				Type: "section",
				Text: &text{
					Type: "mrkdwn",
					Text: ":white_check_mark: *FunnelCast is connected!*\nSlack notifications are working. You'll receive messages here when a viewer submits a form or completes a funnel.",
				},
			},
		},
	}

	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack test message: %w", err)
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}

	return nil
}

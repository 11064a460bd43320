package notifier

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/calm-green-owl/pulsewatch/internal/models"
)

// SlackConfig holds Slack webhook configuration.
type SlackConfig struct {
	WebhookURL string // Slack incoming webhook URL
	MaxRetries int    // Send attempts before giving up (default 3)
}

// Validate validates the Slack configuration.
func (c *SlackConfig) Validate() error {
	if c.WebhookURL == "" {
		return fmt.Errorf("webhook URL is required")
	}
	if !strings.HasPrefix(c.WebhookURL, "https://") {
		return fmt.Errorf("webhook URL must use HTTPS")
	}
	return nil
}

// SlackNotifier posts alerts to a Slack-style webhook.
type SlackNotifier struct {
	config     SlackConfig
	httpClient *http.Client
	baseDelay  time.Duration
}

// NewSlackNotifier creates a new Slack notifier. Each request attempt is
// bounded by a 10 second timeout.
func NewSlackNotifier(config SlackConfig) (*SlackNotifier, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid slack config: %w", err)
	}
	if config.MaxRetries <= 0 {
		config.MaxRetries = defaultMaxRetries
	}

	return &SlackNotifier{
		config: config,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseDelay: time.Second,
	}, nil
}

// Name returns the slack channel.
func (s *SlackNotifier) Name() models.Channel {
	return models.ChannelSlack
}

// Send posts the event payload to the webhook, retrying with exponential
// backoff. It returns a ChannelError once the retry budget is exhausted.
func (s *SlackNotifier) Send(ctx context.Context, ev *Event) error {
	payload := s.buildPayload(ev)

	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	err = retryWithDelay(ctx, s.config.MaxRetries, expBackoff(s.baseDelay), func() error {
		return s.post(ctx, jsonData)
	})
	if err != nil {
		return &ChannelError{Channel: models.ChannelSlack, Attempts: s.config.MaxRetries, Err: err}
	}
	return nil
}

// Close is a no-op for the Slack notifier.
func (s *SlackNotifier) Close() error {
	return nil
}

func (s *SlackNotifier) post(ctx context.Context, body []byte) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("slack API error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	return nil
}

// slackPayload is the webhook request body.
type slackPayload struct {
	Attachments []slackAttachment `json:"attachments"`
}

// slackAttachment is a colored message attachment.
type slackAttachment struct {
	Color     string       `json:"color"`
	Title     string       `json:"title"`
	Text      string       `json:"text"`
	Fields    []slackField `json:"fields"`
	Timestamp int64        `json:"ts"`
}

// slackField is one entry in the attachment field table.
type slackField struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

// buildPayload builds the webhook payload: a colored attachment with a title,
// the alert message, and a fixed field table.
func (s *SlackNotifier) buildPayload(ev *Event) slackPayload {
	h := ev.History

	color := severityColor(ev.Config.Severity)
	title := fmt.Sprintf("%s PulseWatch Alert: %s", severityEmoji(ev.Config.Severity), ev.Config.Name)
	if ev.Kind == EventResolved {
		color = severityColor(models.SeverityInfo)
		title = fmt.Sprintf("✅ Resolved: %s", ev.Config.Name)
	}

	return slackPayload{
		Attachments: []slackAttachment{
			{
				Color: color,
				Title: title,
				Text:  h.Message,
				Fields: []slackField{
					{Title: "Service", Value: ev.Config.ServiceName, Short: true},
					{Title: "Metric", Value: ev.Config.MetricType, Short: true},
					{Title: "Current Value", Value: fmt.Sprintf("%.2f", h.MetricValue), Short: true},
					{Title: "Threshold", Value: fmt.Sprintf("%s %.2f", ev.Config.Operator, h.ThresholdValue), Short: true},
				},
				Timestamp: ev.Timestamp.Unix(),
			},
		},
	}
}

// severityEmoji returns an emoji for the severity level.
func severityEmoji(severity models.Severity) string {
	switch severity {
	case models.SeverityCritical:
		return "\U0001F534" // red circle
	case models.SeverityWarning:
		return "\U0001F7E0" // orange circle
	case models.SeverityInfo:
		return "\U0001F7E2" // green circle
	default:
		return "⚪" // white circle
	}
}

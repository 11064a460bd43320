package notifier

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/calm-green-owl/pulsewatch/internal/models"
)

const (
	// maxSMSRecipients caps the recipient list; excess entries are dropped.
	maxSMSRecipients = 5
	// maxSMSLength caps the message body.
	maxSMSLength = 160
	// smsAttempts is the per-recipient retry budget.
	smsAttempts = 2
	// smsRetryDelay is the fixed delay between per-recipient attempts.
	smsRetryDelay = time.Second

	defaultSMSAPIBaseURL = "https://api.twilio.com"
)

// SMSConfig holds SMS provider configuration.
type SMSConfig struct {
	AccountSID string   // Provider account identifier
	AuthToken  string   // Provider API token
	FromNumber string   // Sending phone number
	Recipients []string // Recipient phone numbers (capped at 5)
	APIBaseURL string   // Provider API base URL (default Twilio)
}

// Configured reports whether provider credentials are present.
func (c *SMSConfig) Configured() bool {
	return c.AccountSID != "" && c.AuthToken != "" && c.FromNumber != ""
}

// DeliveryStatus records the outcome of one recipient's send.
type DeliveryStatus struct {
	Phone  string `json:"phone"`
	Status string `json:"status"` // "sent" or "failed"
	SID    string `json:"sid,omitempty"`
	Error  string `json:"error,omitempty"`
}

// SMSResult summarizes a send across all recipients. A partial failure is a
// normal outcome, reported here rather than as an error.
type SMSResult struct {
	Sent     int              `json:"sent"`
	Failed   int              `json:"failed"`
	Statuses []DeliveryStatus `json:"statuses"`
}

// SMSNotifier sends critical alerts as SMS messages. Non-critical severities
// are never sent; resolution notices are never sent.
type SMSNotifier struct {
	config     SMSConfig
	httpClient *http.Client
	retryDelay time.Duration
}

// NewSMSNotifier creates a new SMS notifier. A recipient list longer than
// five entries is truncated with a warning.
func NewSMSNotifier(config SMSConfig) *SMSNotifier {
	if len(config.Recipients) > maxSMSRecipients {
		log.Printf("warning: sms recipient list has %d entries, keeping first %d",
			len(config.Recipients), maxSMSRecipients)
		config.Recipients = config.Recipients[:maxSMSRecipients]
	}
	if config.APIBaseURL == "" {
		config.APIBaseURL = defaultSMSAPIBaseURL
	}

	return &SMSNotifier{
		config: config,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		retryDelay: smsRetryDelay,
	}
}

// Name returns the sms channel.
func (s *SMSNotifier) Name() models.Channel {
	return models.ChannelSMS
}

// Send implements Notifier. Policy no-ops (resolutions, non-critical
// severities) return ErrSkipped; an all-recipients failure is reported as a
// ChannelError so the dispatcher can count the channel as failed.
func (s *SMSNotifier) Send(ctx context.Context, ev *Event) error {
	if ev.Kind == EventResolved {
		return ErrSkipped
	}

	result, err := s.SendAlert(ctx, ev)
	if err != nil {
		return err
	}
	if len(result.Statuses) == 0 {
		return ErrSkipped
	}
	if result.Sent == 0 {
		return &ChannelError{
			Channel:  models.ChannelSMS,
			Attempts: smsAttempts,
			Err:      errors.New("all recipients failed"),
		}
	}
	return nil
}

// Close is a no-op for the SMS notifier.
func (s *SMSNotifier) Close() error {
	return nil
}

// SendAlert sends the alert to each recipient independently and returns the
// per-recipient outcomes. For non-critical severities it returns an empty
// result without contacting the provider. It returns ErrSMSNotConfigured
// when a send is attempted without credentials.
func (s *SMSNotifier) SendAlert(ctx context.Context, ev *Event) (*SMSResult, error) {
	result := &SMSResult{Statuses: []DeliveryStatus{}}

	if ev.Config.Severity != models.SeverityCritical {
		return result, nil
	}
	if len(s.config.Recipients) == 0 {
		return result, nil
	}
	if !s.config.Configured() {
		return nil, ErrSMSNotConfigured
	}

	recipients := s.config.Recipients
	if len(recipients) > maxSMSRecipients {
		log.Printf("warning: sms recipient list has %d entries, sending to first %d",
			len(recipients), maxSMSRecipients)
		recipients = recipients[:maxSMSRecipients]
	}

	body := buildSMSBody(ev)

	for _, phone := range recipients {
		status := DeliveryStatus{Phone: phone, Status: "failed"}

		sid, err := s.sendWithRetry(ctx, phone, body)
		if err != nil {
			status.Error = err.Error()
			result.Failed++
			log.Printf("warning: sms delivery to %s failed: %v", phone, err)
		} else {
			status.Status = "sent"
			status.SID = sid
			result.Sent++
		}

		result.Statuses = append(result.Statuses, status)
	}

	return result, nil
}

func (s *SMSNotifier) sendWithRetry(ctx context.Context, phone, body string) (string, error) {
	var sid string
	err := retryWithDelay(ctx, smsAttempts, fixedDelay(s.retryDelay), func() error {
		var err error
		sid, err = s.sendOne(ctx, phone, body)
		return err
	})
	return sid, err
}

func (s *SMSNotifier) sendOne(ctx context.Context, phone, body string) (string, error) {
	endpoint := fmt.Sprintf("%s/2010-04-01/Accounts/%s/Messages.json",
		strings.TrimRight(s.config.APIBaseURL, "/"), s.config.AccountSID)

	form := url.Values{}
	form.Set("To", phone)
	form.Set("From", s.config.FromNumber)
	form.Set("Body", body)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.SetBasicAuth(s.config.AccountSID, s.config.AuthToken)

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("sms provider error: status %d, body: %s", resp.StatusCode, string(respBody))
	}

	var msg struct {
		SID string `json:"sid"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&msg); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return msg.SID, nil
}

// buildSMSBody renders the 160-character message body. The structured form
// is preferred; when it does not fit, the generic alert message is truncated
// instead.
func buildSMSBody(ev *Event) string {
	h := ev.History
	structured := fmt.Sprintf("[CRITICAL] %s: %s %.1f %s %.1f",
		ev.Config.ServiceName, ev.Config.MetricType,
		h.MetricValue, ev.Config.Operator, h.ThresholdValue)

	if len(structured) <= maxSMSLength {
		return structured
	}
	return truncate(h.Message, maxSMSLength)
}

// truncate shortens a string to max length with a trailing ellipsis.
func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

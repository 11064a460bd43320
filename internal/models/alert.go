// Package models defines domain models for PulseWatch.
package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Severity represents alert severity level.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// ParseSeverity converts a string to Severity.
func ParseSeverity(s string) Severity {
	switch s {
	case "info", "INFO":
		return SeverityInfo
	case "warning", "WARNING":
		return SeverityWarning
	case "critical", "CRITICAL":
		return SeverityCritical
	default:
		return SeverityWarning
	}
}

// Valid reports whether the severity is a known level.
func (s Severity) Valid() bool {
	switch s {
	case SeverityInfo, SeverityWarning, SeverityCritical:
		return true
	}
	return false
}

// Operator is the comparison operator applied to (metric value, threshold).
type Operator string

const (
	OpGreater      Operator = ">"
	OpLess         Operator = "<"
	OpGreaterEqual Operator = ">="
	OpLessEqual    Operator = "<="
	OpEqual        Operator = "=="
)

// Valid reports whether the operator is one of the five supported comparisons.
func (o Operator) Valid() bool {
	switch o {
	case OpGreater, OpLess, OpGreaterEqual, OpLessEqual, OpEqual:
		return true
	}
	return false
}

// Channel identifies a notification delivery channel.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelSlack Channel = "slack"
	ChannelSMS   Channel = "sms"
)

// Valid reports whether the channel name is recognized.
func (c Channel) Valid() bool {
	switch c {
	case ChannelEmail, ChannelSlack, ChannelSMS:
		return true
	}
	return false
}

// ThresholdKind annotates what kind of quantity the threshold describes.
// It only affects how the alert message is rendered.
type ThresholdKind string

const (
	ThresholdPlain      ThresholdKind = ""
	ThresholdPercentage ThresholdKind = "percentage"
	ThresholdRate       ThresholdKind = "rate_of_change"
)

// MessageSuffix returns the hint appended to rendered alert messages.
func (k ThresholdKind) MessageSuffix() string {
	switch k {
	case ThresholdPercentage:
		return " (percentage threshold)"
	case ThresholdRate:
		return " (rate of change threshold)"
	default:
		return ""
	}
}

// AlertConfig is a persisted monitoring rule. It is created and mutated by
// configuration-management flows and read-only to the evaluator.
type AlertConfig struct {
	ID             string        `json:"id"`
	Name           string        `json:"name"`
	ServiceName    string        `json:"service_name"`
	MetricType     string        `json:"metric_type"`
	ThresholdValue float64       `json:"threshold_value"`
	Operator       Operator      `json:"comparison_operator"`
	Severity       Severity      `json:"severity"`
	ThresholdKind  ThresholdKind `json:"threshold_kind,omitempty"`

	// EvaluationWindow is the aggregation window passed to the metrics
	// provider on every evaluation.
	EvaluationWindow time.Duration `json:"evaluation_window"`

	// Channels lists the notification channels in delivery order.
	Channels []Channel `json:"notification_channels"`

	// Suppression window. When enabled and now falls inside
	// [SuppressionStart, SuppressionEnd], evaluation is skipped entirely.
	SuppressionEnabled bool       `json:"suppression_enabled"`
	SuppressionStart   *time.Time `json:"suppression_start,omitempty"`
	SuppressionEnd     *time.Time `json:"suppression_end,omitempty"`

	Enabled   bool      `json:"enabled"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewAlertConfig creates an enabled AlertConfig with a fresh ID and
// initialized timestamps.
func NewAlertConfig(name, service, metric string) *AlertConfig {
	now := time.Now().UTC()
	return &AlertConfig{
		ID:          uuid.NewString(),
		Name:        name,
		ServiceName: service,
		MetricType:  metric,
		Severity:    SeverityWarning,
		Enabled:     true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// SuppressedAt reports whether the config's suppression window covers t.
// Absent or nil bounds never suppress.
func (c *AlertConfig) SuppressedAt(t time.Time) bool {
	if !c.SuppressionEnabled || c.SuppressionStart == nil || c.SuppressionEnd == nil {
		return false
	}
	return !t.Before(*c.SuppressionStart) && !t.After(*c.SuppressionEnd)
}

// Validate checks the config for errors.
func (c *AlertConfig) Validate() error {
	if c.Name == "" {
		return fmt.Errorf("alert name is required")
	}
	if c.ServiceName == "" {
		return fmt.Errorf("service name is required for alert %q", c.Name)
	}
	if c.MetricType == "" {
		return fmt.Errorf("metric type is required for alert %q", c.Name)
	}
	if !c.Operator.Valid() {
		return fmt.Errorf("invalid operator %q for alert %q", c.Operator, c.Name)
	}
	if !c.Severity.Valid() {
		return fmt.Errorf("invalid severity %q for alert %q", c.Severity, c.Name)
	}
	if c.EvaluationWindow <= 0 {
		return fmt.Errorf("evaluation window must be positive for alert %q", c.Name)
	}
	for _, ch := range c.Channels {
		if !ch.Valid() {
			return fmt.Errorf("invalid notification channel %q for alert %q", ch, c.Name)
		}
	}
	if c.SuppressionEnabled && c.SuppressionStart != nil && c.SuppressionEnd != nil {
		if c.SuppressionEnd.Before(*c.SuppressionStart) {
			return fmt.Errorf("suppression window ends before it starts for alert %q", c.Name)
		}
	}
	return nil
}

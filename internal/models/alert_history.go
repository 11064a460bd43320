package models

import (
	"time"

	"github.com/google/uuid"
)

// ResolutionAuto marks a history row resolved by the evaluator itself.
const ResolutionAuto = "auto"

// AlertHistory records one breach-to-resolution episode for an alert config.
// A row with a nil ResolvedAt is the active alert for its config; the store
// guarantees at most one active row per config exists at a time.
type AlertHistory struct {
	ID          string    `json:"id"`
	ConfigID    string    `json:"alert_config_id"`
	ConfigName  string    `json:"alert_config_name"`
	ServiceName string    `json:"service_name"`
	MetricType  string    `json:"metric_type"`
	Severity    Severity  `json:"severity"`
	TriggeredAt time.Time `json:"triggered_at"`

	// ResolvedAt is nil while the breach is ongoing. It is set exactly once,
	// together with ResolutionMethod, when the condition clears.
	ResolvedAt       *time.Time `json:"resolved_at,omitempty"`
	ResolutionMethod string     `json:"resolution_method,omitempty"`

	// MetricValue and ThresholdValue are snapshots taken at trigger time.
	MetricValue    float64 `json:"metric_value"`
	ThresholdValue float64 `json:"threshold_value"`

	Message          string    `json:"message"`
	NotificationSent bool      `json:"notification_sent"`
	Channels         []Channel `json:"notification_channels"`
	CreatedAt        time.Time `json:"created_at"`
}

// NewAlertHistory creates an active (unresolved) history row for a breach of
// cfg observed with the given metric value.
func NewAlertHistory(cfg *AlertConfig, value float64, message string, at time.Time) *AlertHistory {
	channels := make([]Channel, len(cfg.Channels))
	copy(channels, cfg.Channels)

	return &AlertHistory{
		ID:             uuid.NewString(),
		ConfigID:       cfg.ID,
		ConfigName:     cfg.Name,
		ServiceName:    cfg.ServiceName,
		MetricType:     cfg.MetricType,
		Severity:       cfg.Severity,
		TriggeredAt:    at,
		MetricValue:    value,
		ThresholdValue: cfg.ThresholdValue,
		Message:        message,
		Channels:       channels,
		CreatedAt:      at,
	}
}

// Active reports whether the row represents an ongoing breach.
func (h *AlertHistory) Active() bool {
	return h.ResolvedAt == nil
}

// Duration returns the time between trigger and resolution, or the elapsed
// time since trigger for an active row.
func (h *AlertHistory) Duration(now time.Time) time.Duration {
	if h.ResolvedAt != nil {
		return h.ResolvedAt.Sub(h.TriggeredAt)
	}
	return now.Sub(h.TriggeredAt)
}

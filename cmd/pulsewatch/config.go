// Package main provides the PulseWatch daemon CLI.
package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the daemon configuration.
type Config struct {
	Database      DatabaseConfig      `yaml:"database"`
	Evaluation    EvaluationConfig    `yaml:"evaluation"`
	Source        SourceConfig        `yaml:"source"`
	Rules         RulesConfig         `yaml:"rules"`
	Metrics       MetricsConfig       `yaml:"metrics"`
	Retention     RetentionConfig     `yaml:"retention"`
	Notifications NotificationsConfig `yaml:"notifications"`
	Verbose       bool                `yaml:"-"` // set via CLI flag
}

// DatabaseConfig contains alert store settings.
type DatabaseConfig struct {
	Path string `yaml:"path"` // SQLite database file (default: pulsewatch.db)
}

// EvaluationConfig contains the evaluation loop settings.
type EvaluationConfig struct {
	Interval time.Duration `yaml:"interval"` // evaluation period (default: 60s)
	Workers  int           `yaml:"workers"`  // concurrent evaluations (default: 1 = sequential)
}

// SourceConfig points at the metrics provider.
type SourceConfig struct {
	URL string `yaml:"url"` // aggregation endpoint base URL
}

// RulesConfig points at the alert rules file.
type RulesConfig struct {
	File  string `yaml:"file"`  // YAML rules file (optional)
	Watch bool   `yaml:"watch"` // reload the file on change
}

// MetricsConfig contains the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Address string `yaml:"address"` // listen address (default: :9090)
}

// RetentionConfig controls history cleanup.
type RetentionConfig struct {
	MaxAge        time.Duration `yaml:"max_age"`        // delete resolved rows older than this (0 = keep forever)
	SweepInterval time.Duration `yaml:"sweep_interval"` // how often to sweep (default: 1h)
}

// NotificationsConfig configures the delivery channels. A channel with no
// section is not registered.
type NotificationsConfig struct {
	RatePerMinute int           `yaml:"rate_per_minute"` // global event cap (0 = unlimited)
	Email         *EmailChannel `yaml:"email,omitempty"`
	Slack         *SlackChannel `yaml:"slack,omitempty"`
	SMS           *SMSChannel   `yaml:"sms,omitempty"`
}

// EmailChannel holds SMTP settings.
type EmailChannel struct {
	Host         string   `yaml:"host"`
	Port         int      `yaml:"port"`
	Username     string   `yaml:"username,omitempty"`
	Password     string   `yaml:"password,omitempty"`
	From         string   `yaml:"from"`
	Recipients   []string `yaml:"recipients"`
	DashboardURL string   `yaml:"dashboard_url,omitempty"`
	MaxRetries   int      `yaml:"max_retries,omitempty"`
}

// SlackChannel holds webhook settings.
type SlackChannel struct {
	WebhookURL string `yaml:"webhook_url"`
	MaxRetries int    `yaml:"max_retries,omitempty"`
}

// SMSChannel holds SMS provider settings.
type SMSChannel struct {
	AccountSID string   `yaml:"account_sid"`
	AuthToken  string   `yaml:"auth_token"`
	FromNumber string   `yaml:"from_number"`
	Recipients []string `yaml:"recipients"`
}

// LoadConfig loads configuration from a YAML file. ${VAR} references in the
// file are expanded from the environment before parsing, so credentials can
// stay out of the file itself.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	expanded := os.Expand(string(data), os.Getenv)

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// DefaultConfig returns a configuration with default values.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.setDefaults()
	return cfg
}

// setDefaults sets default values for missing config fields.
func (c *Config) setDefaults() {
	if c.Database.Path == "" {
		c.Database.Path = "pulsewatch.db"
	}
	if c.Evaluation.Interval == 0 {
		c.Evaluation.Interval = 60 * time.Second
	}
	if c.Evaluation.Workers == 0 {
		c.Evaluation.Workers = 1
	}
	if c.Metrics.Address == "" {
		c.Metrics.Address = ":9090"
	}
	if c.Retention.SweepInterval == 0 {
		c.Retention.SweepInterval = time.Hour
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if c.Source.URL == "" {
		return fmt.Errorf("source.url is required")
	}
	if c.Evaluation.Interval < time.Second {
		return fmt.Errorf("evaluation.interval must be at least 1s")
	}
	if c.Evaluation.Workers < 1 {
		return fmt.Errorf("evaluation.workers must be positive")
	}
	if c.Notifications.Email != nil {
		e := c.Notifications.Email
		if e.Host == "" || e.Port == 0 {
			return fmt.Errorf("notifications.email.host and port are required")
		}
		if e.From == "" {
			return fmt.Errorf("notifications.email.from is required")
		}
		if len(e.Recipients) == 0 {
			return fmt.Errorf("notifications.email.recipients is required")
		}
	}
	if c.Notifications.Slack != nil && c.Notifications.Slack.WebhookURL == "" {
		return fmt.Errorf("notifications.slack.webhook_url is required")
	}
	return nil
}

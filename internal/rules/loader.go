// Package rules loads alert configurations from a YAML file and keeps the
// store in sync with it, so operators can manage rules without a dashboard.
package rules

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/calm-green-owl/pulsewatch/internal/models"
	"github.com/calm-green-owl/pulsewatch/internal/storage"
)

// Spec is one alert declaration in the rules file.
type Spec struct {
	Name      string   `yaml:"name"`
	Service   string   `yaml:"service"`
	Metric    string   `yaml:"metric"`
	Threshold float64  `yaml:"threshold"`
	Operator  string   `yaml:"operator"`
	Severity  string   `yaml:"severity,omitempty"`
	Kind      string   `yaml:"threshold_kind,omitempty"`
	Window    string   `yaml:"window"`
	Channels  []string `yaml:"notify,omitempty"`
	Enabled   *bool    `yaml:"enabled,omitempty"`

	Suppression *SuppressionSpec `yaml:"suppression,omitempty"`
}

// SuppressionSpec declares a suppression window.
type SuppressionSpec struct {
	Start time.Time `yaml:"start"`
	End   time.Time `yaml:"end"`
}

// File is the top-level rules file structure.
type File struct {
	Alerts []*Spec `yaml:"alerts"`
}

// LoadFile loads and validates alert configs from a YAML file.
func LoadFile(path string) ([]*models.AlertConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open rules file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load loads and validates alert configs from a reader.
func Load(r io.Reader) ([]*models.AlertConfig, error) {
	var file File
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("parse rules YAML: %w", err)
	}

	configs := make([]*models.AlertConfig, 0, len(file.Alerts))
	for i, spec := range file.Alerts {
		cfg, err := spec.toConfig()
		if err != nil {
			return nil, fmt.Errorf("invalid alert at index %d: %w", i, err)
		}
		configs = append(configs, cfg)
	}
	return configs, nil
}

func (s *Spec) toConfig() (*models.AlertConfig, error) {
	cfg := models.NewAlertConfig(s.Name, s.Service, s.Metric)
	cfg.ThresholdValue = s.Threshold
	cfg.Operator = models.Operator(s.Operator)
	cfg.ThresholdKind = models.ThresholdKind(s.Kind)
	if s.Severity != "" {
		cfg.Severity = models.ParseSeverity(s.Severity)
	}
	if s.Enabled != nil {
		cfg.Enabled = *s.Enabled
	}

	if s.Window != "" {
		window, err := time.ParseDuration(s.Window)
		if err != nil {
			return nil, fmt.Errorf("invalid window %q for alert %q: %w", s.Window, s.Name, err)
		}
		cfg.EvaluationWindow = window
	}

	for _, ch := range s.Channels {
		cfg.Channels = append(cfg.Channels, models.Channel(ch))
	}

	if s.Suppression != nil {
		start, end := s.Suppression.Start, s.Suppression.End
		cfg.SuppressionEnabled = true
		cfg.SuppressionStart = &start
		cfg.SuppressionEnd = &end
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Sync upserts the loaded configs into the store, keyed by alert name.
// Existing configs keep their ID (and therefore their alert history).
func Sync(ctx context.Context, repo storage.AlertConfigRepository, configs []*models.AlertConfig) error {
	for _, cfg := range configs {
		existing, err := repo.GetByName(ctx, cfg.Name)
		if err != nil {
			return fmt.Errorf("look up alert %q: %w", cfg.Name, err)
		}

		if existing == nil {
			if err := repo.Create(ctx, cfg); err != nil {
				return fmt.Errorf("create alert %q: %w", cfg.Name, err)
			}
			log.Printf("rules: created alert config %q", cfg.Name)
			continue
		}

		cfg.ID = existing.ID
		cfg.CreatedAt = existing.CreatedAt
		cfg.UpdatedAt = time.Now().UTC()
		if err := repo.Update(ctx, cfg); err != nil {
			return fmt.Errorf("update alert %q: %w", cfg.Name, err)
		}
	}
	return nil
}

// SyncFile loads the rules file and syncs it into the store.
func SyncFile(ctx context.Context, repo storage.AlertConfigRepository, path string) error {
	configs, err := LoadFile(path)
	if err != nil {
		return err
	}
	if err := Sync(ctx, repo, configs); err != nil {
		return err
	}
	log.Printf("rules: synced %d alert configs from %s", len(configs), path)
	return nil
}

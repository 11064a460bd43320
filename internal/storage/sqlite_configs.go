package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/calm-green-owl/pulsewatch/internal/models"
)

type sqliteConfigRepo struct {
	db *sql.DB
}

const configColumns = `id, name, service_name, metric_type, threshold_value,
	comparison_operator, severity, threshold_kind, evaluation_window_ns,
	channels_json, suppression_enabled, suppression_start, suppression_end,
	enabled, created_at, updated_at`

func (r *sqliteConfigRepo) Create(ctx context.Context, cfg *models.AlertConfig) error {
	channelsJSON, err := json.Marshal(cfg.Channels)
	if err != nil {
		return fmt.Errorf("marshal channels: %w", err)
	}

	query := `
		INSERT INTO alert_configs (` + configColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		cfg.ID, cfg.Name, cfg.ServiceName, cfg.MetricType, cfg.ThresholdValue,
		string(cfg.Operator), string(cfg.Severity), string(cfg.ThresholdKind),
		cfg.EvaluationWindow.Nanoseconds(), string(channelsJSON),
		boolToInt(cfg.SuppressionEnabled), nullTime(cfg.SuppressionStart), nullTime(cfg.SuppressionEnd),
		boolToInt(cfg.Enabled), cfg.CreatedAt, cfg.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert alert config: %w", err)
	}
	return nil
}

func (r *sqliteConfigRepo) GetByID(ctx context.Context, id string) (*models.AlertConfig, error) {
	query := `SELECT ` + configColumns + ` FROM alert_configs WHERE id = ?`
	return r.scanConfig(r.db.QueryRowContext(ctx, query, id))
}

func (r *sqliteConfigRepo) GetByName(ctx context.Context, name string) (*models.AlertConfig, error) {
	query := `SELECT ` + configColumns + ` FROM alert_configs WHERE name = ?`
	return r.scanConfig(r.db.QueryRowContext(ctx, query, name))
}

func (r *sqliteConfigRepo) Update(ctx context.Context, cfg *models.AlertConfig) error {
	channelsJSON, err := json.Marshal(cfg.Channels)
	if err != nil {
		return fmt.Errorf("marshal channels: %w", err)
	}

	query := `
		UPDATE alert_configs SET name = ?, service_name = ?, metric_type = ?,
			threshold_value = ?, comparison_operator = ?, severity = ?,
			threshold_kind = ?, evaluation_window_ns = ?, channels_json = ?,
			suppression_enabled = ?, suppression_start = ?, suppression_end = ?,
			enabled = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		cfg.Name, cfg.ServiceName, cfg.MetricType,
		cfg.ThresholdValue, string(cfg.Operator), string(cfg.Severity),
		string(cfg.ThresholdKind), cfg.EvaluationWindow.Nanoseconds(), string(channelsJSON),
		boolToInt(cfg.SuppressionEnabled), nullTime(cfg.SuppressionStart), nullTime(cfg.SuppressionEnd),
		boolToInt(cfg.Enabled), cfg.UpdatedAt,
		cfg.ID,
	)
	if err != nil {
		return fmt.Errorf("update alert config: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert config not found: %s", cfg.ID)
	}
	return nil
}

func (r *sqliteConfigRepo) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, "DELETE FROM alert_configs WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("delete alert config: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert config not found: %s", id)
	}
	return nil
}

func (r *sqliteConfigRepo) List(ctx context.Context) ([]*models.AlertConfig, error) {
	query := `SELECT ` + configColumns + ` FROM alert_configs ORDER BY name`
	return r.queryConfigs(ctx, query)
}

func (r *sqliteConfigRepo) ListEnabled(ctx context.Context) ([]*models.AlertConfig, error) {
	query := `SELECT ` + configColumns + ` FROM alert_configs WHERE enabled = 1 ORDER BY name`
	return r.queryConfigs(ctx, query)
}

func (r *sqliteConfigRepo) SetEnabled(ctx context.Context, id string, enabled bool) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE alert_configs SET enabled = ?, updated_at = ? WHERE id = ?",
		boolToInt(enabled), time.Now().UTC(), id,
	)
	if err != nil {
		return fmt.Errorf("set alert config enabled: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert config not found: %s", id)
	}
	return nil
}

func (r *sqliteConfigRepo) queryConfigs(ctx context.Context, query string, args ...interface{}) ([]*models.AlertConfig, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alert configs: %w", err)
	}
	defer rows.Close()

	var configs []*models.AlertConfig
	for rows.Next() {
		cfg, err := scanConfigFields(rows)
		if err != nil {
			return nil, err
		}
		configs = append(configs, cfg)
	}
	return configs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func (r *sqliteConfigRepo) scanConfig(row *sql.Row) (*models.AlertConfig, error) {
	cfg, err := scanConfigFields(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return cfg, err
}

func scanConfigFields(s scanner) (*models.AlertConfig, error) {
	cfg := &models.AlertConfig{}
	var operator, severity, kind, channelsJSON string
	var windowNS int64
	var suppressionEnabled, enabled int
	var suppressionStart, suppressionEnd sql.NullTime

	err := s.Scan(
		&cfg.ID, &cfg.Name, &cfg.ServiceName, &cfg.MetricType, &cfg.ThresholdValue,
		&operator, &severity, &kind, &windowNS,
		&channelsJSON, &suppressionEnabled, &suppressionStart, &suppressionEnd,
		&enabled, &cfg.CreatedAt, &cfg.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan alert config: %w", err)
	}

	cfg.Operator = models.Operator(operator)
	cfg.Severity = models.Severity(severity)
	cfg.ThresholdKind = models.ThresholdKind(kind)
	cfg.EvaluationWindow = time.Duration(windowNS)
	cfg.SuppressionEnabled = suppressionEnabled != 0
	cfg.Enabled = enabled != 0
	if suppressionStart.Valid {
		t := suppressionStart.Time
		cfg.SuppressionStart = &t
	}
	if suppressionEnd.Valid {
		t := suppressionEnd.Time
		cfg.SuppressionEnd = &t
	}

	if err := json.Unmarshal([]byte(channelsJSON), &cfg.Channels); err != nil {
		return nil, fmt.Errorf("unmarshal channels: %w", err)
	}

	return cfg, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

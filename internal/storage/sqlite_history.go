package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/calm-green-owl/pulsewatch/internal/models"
)

type sqliteHistoryRepo struct {
	db *sql.DB
}

const historyColumns = `id, alert_config_id, alert_config_name, service_name,
	metric_type, severity, triggered_at, resolved_at, resolution_method,
	metric_value, threshold_value, message, notification_sent, channels_json,
	created_at`

func (r *sqliteHistoryRepo) CreateActive(ctx context.Context, h *models.AlertHistory) error {
	channelsJSON, err := json.Marshal(h.Channels)
	if err != nil {
		return fmt.Errorf("marshal channels: %w", err)
	}

	query := `
		INSERT INTO alert_history (` + historyColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, NULL, NULL, ?, ?, ?, ?, ?, ?)
	`
	_, err = r.db.ExecContext(ctx, query,
		h.ID, h.ConfigID, h.ConfigName, h.ServiceName,
		h.MetricType, string(h.Severity), h.TriggeredAt,
		h.MetricValue, h.ThresholdValue, h.Message,
		boolToInt(h.NotificationSent), string(channelsJSON), h.CreatedAt,
	)
	if err != nil {
		// The partial unique index on (alert_config_id) WHERE resolved_at
		// IS NULL rejects a second active row for the same config.
		if isUniqueViolation(err) {
			return ErrActiveAlertExists
		}
		return fmt.Errorf("create alert history: %w", err)
	}
	return nil
}

func (r *sqliteHistoryRepo) GetActive(ctx context.Context, configID string) (*models.AlertHistory, error) {
	query := `SELECT ` + historyColumns + `
		FROM alert_history WHERE alert_config_id = ? AND resolved_at IS NULL`
	h, err := scanHistoryFields(r.db.QueryRowContext(ctx, query, configID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return h, err
}

func (r *sqliteHistoryRepo) MarkResolved(ctx context.Context, id string, at time.Time, method string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE alert_history SET resolved_at = ?, resolution_method = ? WHERE id = ? AND resolved_at IS NULL",
		at, method, id,
	)
	if err != nil {
		return fmt.Errorf("mark alert history resolved: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("active alert history not found: %s", id)
	}
	return nil
}

func (r *sqliteHistoryRepo) MarkNotified(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx,
		"UPDATE alert_history SET notification_sent = 1 WHERE id = ?", id,
	)
	if err != nil {
		return fmt.Errorf("mark alert history notified: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		return fmt.Errorf("alert history not found: %s", id)
	}
	return nil
}

func (r *sqliteHistoryRepo) List(ctx context.Context, limit, offset int) ([]*models.AlertHistory, int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alert_history").Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count alert history: %w", err)
	}

	query := `SELECT ` + historyColumns + `
		FROM alert_history ORDER BY created_at DESC LIMIT ? OFFSET ?`
	histories, err := r.queryHistories(ctx, query, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return histories, total, nil
}

func (r *sqliteHistoryRepo) ListByConfig(ctx context.Context, configID string, limit, offset int) ([]*models.AlertHistory, int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM alert_history WHERE alert_config_id = ?", configID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count alert history by config: %w", err)
	}

	query := `SELECT ` + historyColumns + `
		FROM alert_history WHERE alert_config_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?`
	histories, err := r.queryHistories(ctx, query, configID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	return histories, total, nil
}

func (r *sqliteHistoryRepo) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	// Active rows are kept regardless of age.
	result, err := r.db.ExecContext(ctx,
		"DELETE FROM alert_history WHERE created_at < ? AND resolved_at IS NOT NULL", before,
	)
	if err != nil {
		return 0, fmt.Errorf("delete alert history: %w", err)
	}
	return result.RowsAffected()
}

func (r *sqliteHistoryRepo) queryHistories(ctx context.Context, query string, args ...interface{}) ([]*models.AlertHistory, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query alert history: %w", err)
	}
	defer rows.Close()

	var histories []*models.AlertHistory
	for rows.Next() {
		h, err := scanHistoryFields(rows)
		if err != nil {
			return nil, err
		}
		histories = append(histories, h)
	}
	return histories, rows.Err()
}

func scanHistoryFields(s scanner) (*models.AlertHistory, error) {
	h := &models.AlertHistory{}
	var severity, channelsJSON string
	var resolvedAt sql.NullTime
	var resolutionMethod sql.NullString
	var notificationSent int

	err := s.Scan(
		&h.ID, &h.ConfigID, &h.ConfigName, &h.ServiceName,
		&h.MetricType, &severity, &h.TriggeredAt, &resolvedAt, &resolutionMethod,
		&h.MetricValue, &h.ThresholdValue, &h.Message, &notificationSent, &channelsJSON,
		&h.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("scan alert history: %w", err)
	}

	h.Severity = models.Severity(severity)
	h.ResolutionMethod = resolutionMethod.String
	h.NotificationSent = notificationSent != 0
	if resolvedAt.Valid {
		t := resolvedAt.Time
		h.ResolvedAt = &t
	}

	if err := json.Unmarshal([]byte(channelsJSON), &h.Channels); err != nil {
		return nil, fmt.Errorf("unmarshal channels: %w", err)
	}

	return h, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

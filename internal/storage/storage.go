// Package storage provides database storage interfaces and implementations.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/calm-green-owl/pulsewatch/internal/models"
)

// ErrActiveAlertExists is returned by CreateActive when the config already
// has an unresolved history row. Callers treat it as an idempotent
// re-trigger, not a failure.
var ErrActiveAlertExists = errors.New("active alert already exists for config")

// Store is the main interface for database operations.
type Store interface {
	// Open initializes the database connection.
	Open() error
	// Close closes the database connection.
	Close() error
	// Migrate runs database migrations.
	Migrate() error

	// Repository accessors
	Configs() AlertConfigRepository
	History() AlertHistoryRepository
}

// AlertConfigRepository defines operations for alert configuration management.
type AlertConfigRepository interface {
	Create(ctx context.Context, cfg *models.AlertConfig) error
	GetByID(ctx context.Context, id string) (*models.AlertConfig, error)
	GetByName(ctx context.Context, name string) (*models.AlertConfig, error)
	Update(ctx context.Context, cfg *models.AlertConfig) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*models.AlertConfig, error)
	ListEnabled(ctx context.Context) ([]*models.AlertConfig, error)
	SetEnabled(ctx context.Context, id string, enabled bool) error
}

// AlertHistoryRepository defines operations for alert history.
//
// CreateActive and MarkResolved are the only mutations the evaluator
// performs; the remaining methods serve hosts browsing history.
type AlertHistoryRepository interface {
	// CreateActive inserts a new unresolved history row. It returns
	// ErrActiveAlertExists if the config already has an active row.
	CreateActive(ctx context.Context, h *models.AlertHistory) error
	// GetActive returns the unresolved history row for a config, or nil
	// when the config is in the normal state.
	GetActive(ctx context.Context, configID string) (*models.AlertHistory, error)
	// MarkResolved sets resolved_at and resolution_method on an active row.
	MarkResolved(ctx context.Context, id string, at time.Time, method string) error
	// MarkNotified records that at least one notification channel succeeded.
	MarkNotified(ctx context.Context, id string) error

	List(ctx context.Context, limit, offset int) ([]*models.AlertHistory, int64, error)
	ListByConfig(ctx context.Context, configID string, limit, offset int) ([]*models.AlertHistory, int64, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

package storage

import (
	"database/sql"
	"fmt"
	"time"
)

// Migration represents a database migration.
type Migration struct {
	Version int
	Name    string
	Up      string
}

// migrations holds all database migrations in order.
var migrations = []Migration{
	{
		Version: 1,
		Name:    "initial_schema",
		Up: `
			-- Alert configurations table
			CREATE TABLE IF NOT EXISTS alert_configs (
				id TEXT PRIMARY KEY,
				name TEXT UNIQUE NOT NULL,
				service_name TEXT NOT NULL,
				metric_type TEXT NOT NULL,
				threshold_value REAL NOT NULL,
				comparison_operator TEXT NOT NULL,
				severity TEXT NOT NULL,
				threshold_kind TEXT NOT NULL DEFAULT '',
				evaluation_window_ns INTEGER NOT NULL,
				channels_json TEXT NOT NULL,
				suppression_enabled INTEGER NOT NULL DEFAULT 0,
				suppression_start DATETIME,
				suppression_end DATETIME,
				enabled INTEGER NOT NULL DEFAULT 1,
				created_at DATETIME NOT NULL,
				updated_at DATETIME NOT NULL
			);

			-- Alert history table
			CREATE TABLE IF NOT EXISTS alert_history (
				id TEXT PRIMARY KEY,
				alert_config_id TEXT NOT NULL,
				alert_config_name TEXT NOT NULL,
				service_name TEXT NOT NULL,
				metric_type TEXT NOT NULL,
				severity TEXT NOT NULL,
				triggered_at DATETIME NOT NULL,
				resolved_at DATETIME,
				resolution_method TEXT,
				metric_value REAL NOT NULL,
				threshold_value REAL NOT NULL,
				message TEXT NOT NULL,
				notification_sent INTEGER NOT NULL DEFAULT 0,
				channels_json TEXT NOT NULL,
				created_at DATETIME NOT NULL,
				FOREIGN KEY (alert_config_id) REFERENCES alert_configs(id) ON DELETE CASCADE
			);

			-- At most one unresolved history row per config. Concurrent
			-- evaluation passes hit this index instead of racing
			-- check-then-insert.
			CREATE UNIQUE INDEX IF NOT EXISTS idx_history_active
				ON alert_history(alert_config_id) WHERE resolved_at IS NULL;

			-- Indexes
			CREATE INDEX IF NOT EXISTS idx_configs_enabled ON alert_configs(enabled);
			CREATE INDEX IF NOT EXISTS idx_configs_service ON alert_configs(service_name);
			CREATE INDEX IF NOT EXISTS idx_history_config ON alert_history(alert_config_id);
			CREATE INDEX IF NOT EXISTS idx_history_created ON alert_history(created_at);
		`,
	},
}

// runMigrations applies all pending migrations.
func runMigrations(db *sql.DB) error {
	// Create migrations table if not exists
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at DATETIME NOT NULL
		)
	`)
	if err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	// Get current version
	var currentVersion int
	err = db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&currentVersion)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	// Apply pending migrations
	for _, m := range migrations {
		if m.Version <= currentVersion {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}

		if _, err := tx.Exec(
			"INSERT INTO schema_migrations (version, name, applied_at) VALUES (?, ?, ?)",
			m.Version, m.Name, time.Now().UTC(),
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

package postgresql

import (
	"context"
	"fmt"
	"log/slog"
)

// Migration is one forward schema change
type Migration struct {
	Version     int
	Description string
	Up          string
}

// Migrations are applied in order by EnsureSchema
var Migrations = []Migration{
	{
		Version:     1,
		Description: "Create reports table",
		Up: `
			CREATE TABLE IF NOT EXISTS reports (
				report_id UUID PRIMARY KEY,
				idempotency_key TEXT NOT NULL UNIQUE,
				status TEXT NOT NULL,
				params JSONB NOT NULL,
				result JSONB,
				error_message TEXT,
				worker_id TEXT,
				retry_count INT NOT NULL DEFAULT 0,
				max_retries INT NOT NULL DEFAULT 3,
				timeout_seconds INT NOT NULL DEFAULT 0,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				started_at TIMESTAMPTZ,
				completed_at TIMESTAMPTZ,
				last_heartbeat_at TIMESTAMPTZ
			)
		`,
	},
	{
		Version:     2,
		Description: "Index reports for status listing",
		Up: `
			CREATE INDEX IF NOT EXISTS idx_reports_status_created
			ON reports (status, created_at DESC, report_id DESC)
		`,
	},
}

// EnsureSchema applies every migration not yet recorded in schema_migrations
func (c *Client) EnsureSchema(ctx context.Context) error {
	if _, err := c.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INT PRIMARY KEY,
			description TEXT NOT NULL,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)
	`); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var applied []int
	if err := c.db.SelectContext(ctx, &applied, "SELECT version FROM schema_migrations"); err != nil {
		return fmt.Errorf("failed to query applied migrations: %w", err)
	}

	done := make(map[int]bool, len(applied))
	for _, v := range applied {
		done[v] = true
	}

	for _, m := range Migrations {
		if done[m.Version] {
			continue
		}

		tx, err := c.db.BeginTxx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx, m.Up); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to apply migration %d: %w", m.Version, err)
		}

		if _, err := tx.ExecContext(ctx,
			"INSERT INTO schema_migrations (version, description) VALUES ($1, $2)",
			m.Version, m.Description,
		); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}

		c.logger.Info("Applied migration",
			slog.Int("version", m.Version),
			slog.String("description", m.Description),
		)
	}

	return nil
}

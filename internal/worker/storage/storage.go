package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"github.com/cuongbtq/postings-report/internal/worker/domain"
)

// Storage handles all database operations for the worker
type Storage struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStorage creates a new Storage instance
func NewStorage(db *sqlx.DB, logger *slog.Logger) *Storage {
	return &Storage{
		db:     db,
		logger: logger,
	}
}

// ClaimReport moves a PENDING report to RUNNING for workerID.
// Returns domain.ErrReportAlreadyClaimed if the report is missing or not PENDING.
func (s *Storage) ClaimReport(ctx context.Context, reportID, workerID string) (*domain.Report, error) {
	query := `
		UPDATE reports
		SET status = $1,
		    worker_id = $2,
		    started_at = NOW(),
		    last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE report_id = $3
		  AND status = $4
		RETURNING report_id, params, retry_count, max_retries, timeout_seconds
	`

	var rep domain.Report
	err := s.db.QueryRowContext(ctx, query, domain.ReportStatusRunning, workerID, reportID, domain.ReportStatusPending).Scan(
		&rep.ReportID,
		&rep.Params,
		&rep.RetryCount,
		&rep.MaxRetries,
		&rep.TimeoutSeconds,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("Failed to claim report - already claimed or not found",
				slog.String("report_id", reportID),
				slog.String("worker_id", workerID),
			)
			return nil, domain.ErrReportAlreadyClaimed
		}
		return nil, fmt.Errorf("failed to claim report: %w", err)
	}

	rep.Status = domain.ReportStatusRunning
	rep.WorkerID = workerID

	s.logger.Info("Report claimed successfully",
		slog.String("report_id", reportID),
		slog.String("worker_id", workerID),
		slog.Int("retry_count", rep.RetryCount),
	)

	return &rep, nil
}

// CompleteReport stores the run summary and marks the report COMPLETED
func (s *Storage) CompleteReport(ctx context.Context, reportID string, result []byte) error {
	query := `
		UPDATE reports
		SET status = $1,
		    result = $2,
		    error_message = NULL,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE report_id = $3
	`

	return s.exec(ctx, "complete", reportID, query, domain.ReportStatusCompleted, string(result), reportID)
}

// FailReport marks the report FAILED for good
func (s *Storage) FailReport(ctx context.Context, reportID, errorMsg string) error {
	query := `
		UPDATE reports
		SET status = $1,
		    error_message = $2,
		    completed_at = NOW(),
		    updated_at = NOW()
		WHERE report_id = $3
	`

	return s.exec(ctx, "fail", reportID, query, domain.ReportStatusFailed, errorMsg, reportID)
}

// RetryReport returns a failed attempt to PENDING and counts it, so the
// requeued message can claim the report again
func (s *Storage) RetryReport(ctx context.Context, reportID, errorMsg string) error {
	query := `
		UPDATE reports
		SET status = $1,
		    error_message = $2,
		    retry_count = retry_count + 1,
		    worker_id = NULL,
		    updated_at = NOW()
		WHERE report_id = $3
	`

	return s.exec(ctx, "retry", reportID, query, domain.ReportStatusPending, errorMsg, reportID)
}

// ReleaseReport returns an interrupted report to PENDING without counting an attempt
func (s *Storage) ReleaseReport(ctx context.Context, reportID string) error {
	query := `
		UPDATE reports
		SET status = $1,
		    worker_id = NULL,
		    updated_at = NOW()
		WHERE report_id = $2
	`

	return s.exec(ctx, "release", reportID, query, domain.ReportStatusPending, reportID)
}

// UpdateHeartbeat updates the last_heartbeat_at timestamp for a running report
func (s *Storage) UpdateHeartbeat(ctx context.Context, reportID string) error {
	query := `
		UPDATE reports
		SET last_heartbeat_at = NOW(),
		    updated_at = NOW()
		WHERE report_id = $1 AND status = $2
	`

	result, err := s.db.ExecContext(ctx, query, reportID, domain.ReportStatusRunning)
	if err != nil {
		return fmt.Errorf("failed to update report heartbeat: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}

	if rowsAffected == 0 {
		s.logger.Warn("Report heartbeat update - no rows affected (report may not be running)",
			slog.String("report_id", reportID),
		)
	}

	return nil
}

func (s *Storage) exec(ctx context.Context, action, reportID, query string, args ...any) error {
	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to %s report: %w", action, err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return domain.ErrReportNotFound
	}

	s.logger.Info("Report status updated",
		slog.String("report_id", reportID),
		slog.String("action", action),
	)

	return nil
}

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/cuongbtq/postings-report/internal/api/domain"
	"github.com/cuongbtq/postings-report/internal/api/model"
)

// uniqueViolation is the Postgres SQLSTATE for a unique constraint failure
const uniqueViolation = "23505"

const reportColumns = `
	report_id, idempotency_key, status, params, result, error_message,
	retry_count, max_retries, created_at, updated_at, completed_at
`

type Storage struct {
	db *sqlx.DB
}

func NewStorage(db *sqlx.DB) *Storage {
	return &Storage{db: db}
}

// CreateReport inserts a new report. A reused idempotency key yields
// domain.ErrDuplicateIdempotencyKey.
func (s *Storage) CreateReport(ctx context.Context, report *model.Report) error {
	query := `
		INSERT INTO reports (
			report_id, idempotency_key, status, params,
			retry_count, max_retries, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4,
			$5, $6, $7, $8
		)
	`

	_, err := s.db.ExecContext(
		ctx,
		query,
		report.ReportID,
		report.IdempotencyKey,
		report.Status,
		report.Params,
		report.RetryCount,
		report.MaxRetries,
		report.CreatedAt,
		report.UpdatedAt,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
			return domain.ErrDuplicateIdempotencyKey
		}
		return fmt.Errorf("failed to create report: %w", err)
	}

	return nil
}

func (s *Storage) GetReportByID(ctx context.Context, reportID string) (*model.Report, error) {
	return s.getOne(ctx, "report_id", reportID)
}

func (s *Storage) GetReportByIdempotencyKey(ctx context.Context, key string) (*model.Report, error) {
	return s.getOne(ctx, "idempotency_key", key)
}

func (s *Storage) getOne(ctx context.Context, column, value string) (*model.Report, error) {
	var report model.Report
	query := fmt.Sprintf("SELECT %s FROM reports WHERE %s = $1", reportColumns, column)

	if err := s.db.GetContext(ctx, &report, query, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	return &report, nil
}

// MarkFailed records a report that never reached a worker
func (s *Storage) MarkFailed(ctx context.Context, reportID, errorMsg string) error {
	query := `
		UPDATE reports
		SET status = $1, error_message = $2, completed_at = NOW(), updated_at = NOW()
		WHERE report_id = $3
	`

	if _, err := s.db.ExecContext(ctx, query, domain.ReportStatusFailed, errorMsg, reportID); err != nil {
		return fmt.Errorf("failed to mark report failed: %w", err)
	}
	return nil
}

type ReportFilter struct {
	Status   string
	PageSize int
	Cursor   *ReportCursor
}

// ReportCursor points at the last row of the previous page
type ReportCursor struct {
	CreatedAt time.Time
	ReportID  string
}

// ListReports returns up to PageSize+1 rows, newest first. The extra row
// tells the caller whether another page exists.
func (s *Storage) ListReports(ctx context.Context, filter ReportFilter) ([]model.Report, error) {
	query := "SELECT " + reportColumns + " FROM reports WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, report_id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ReportID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, report_id DESC"
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var reports []model.Report
	if err := s.db.SelectContext(ctx, &reports, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}

	return reports, nil
}

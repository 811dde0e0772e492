package handler

import (
	"context"
	"log/slog"

	"github.com/cuongbtq/postings-report/internal/api/model"
	"github.com/cuongbtq/postings-report/internal/api/storage"
)

// ReportStore persists report requests
type ReportStore interface {
	CreateReport(ctx context.Context, report *model.Report) error
	GetReportByID(ctx context.Context, reportID string) (*model.Report, error)
	GetReportByIdempotencyKey(ctx context.Context, key string) (*model.Report, error)
	ListReports(ctx context.Context, filter storage.ReportFilter) ([]model.Report, error)
	MarkFailed(ctx context.Context, reportID, errorMsg string) error
}

// Publisher hands new reports to the worker queue
type Publisher interface {
	PublishJSON(ctx context.Context, v any) error
}

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger     *slog.Logger
	Store      ReportStore
	Publisher  Publisher
	MaxRetries int
}

// ReportHandler handles report-related HTTP requests
type ReportHandler struct {
	logger     *slog.Logger
	store      ReportStore
	publisher  Publisher
	maxRetries int
}

// NewReportHandler creates a new ReportHandler instance
func NewReportHandler(deps *Dependencies) *ReportHandler {
	return &ReportHandler{
		logger:     deps.Logger,
		store:      deps.Store,
		publisher:  deps.Publisher,
		maxRetries: deps.MaxRetries,
	}
}

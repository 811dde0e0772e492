package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/cuongbtq/postings-report/internal/api/domain"
	"github.com/cuongbtq/postings-report/internal/api/dto"
	"github.com/cuongbtq/postings-report/internal/api/model"
	"github.com/cuongbtq/postings-report/internal/api/storage"
	"github.com/cuongbtq/postings-report/internal/report"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CreateReport handles POST /api/v1/reports
// Stores a PENDING report and queues it for a worker. Repeating an
// idempotency key returns the report created the first time.
func (h *ReportHandler) CreateReport(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateReportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	params := report.Params{
		InputPath:   req.InputPath,
		Industry:    req.Industry,
		Companies:   req.Companies,
		BeforeMonth: req.BeforeMonth,
		AfterMonth:  req.AfterMonth,
	}
	if err := params.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 1. Check idempotency key
	if existing, ok := h.findExisting(c, req.IdempotencyKey); ok {
		c.JSON(http.StatusOK, toReportDTO(existing))
		return
	} else if c.IsAborted() {
		return
	}

	paramsJSON, err := json.Marshal(params)
	if err != nil {
		h.logger.Error("Failed to marshal params", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create report"})
		return
	}

	now := time.Now().UTC()
	rep := model.Report{
		ReportID:       uuid.New().String(),
		IdempotencyKey: req.IdempotencyKey,
		Status:         domain.ReportStatusPending,
		Params:         string(paramsJSON),
		MaxRetries:     h.maxRetries,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// 2. Create report record
	if err := h.store.CreateReport(ctx, &rep); err != nil {
		if errors.Is(err, domain.ErrDuplicateIdempotencyKey) {
			// Lost a race with a concurrent request using the same key
			if existing, ok := h.findExisting(c, req.IdempotencyKey); ok {
				c.JSON(http.StatusOK, toReportDTO(existing))
			}
			return
		}
		h.logger.Error("Failed to create report", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create report"})
		return
	}

	// 3. Publish to the worker queue
	if err := h.publisher.PublishJSON(ctx, dto.ReportMessage{ReportID: rep.ReportID}); err != nil {
		h.logger.Error("Failed to enqueue report",
			slog.String("report_id", rep.ReportID),
			slog.String("error", err.Error()),
		)

		// The row would otherwise stay PENDING forever
		markCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if markErr := h.store.MarkFailed(markCtx, rep.ReportID, "failed to enqueue report"); markErr != nil {
			h.logger.Error("Failed to mark report failed",
				slog.String("report_id", rep.ReportID),
				slog.String("error", markErr.Error()),
			)
		}

		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Failed to enqueue report"})
		return
	}

	h.logger.Info("Report queued",
		slog.String("report_id", rep.ReportID),
		slog.String("input_path", params.InputPath),
	)

	c.JSON(http.StatusAccepted, toReportDTO(&rep))
}

// findExisting looks a report up by idempotency key. On a store failure it
// writes a 500 and aborts the context.
func (h *ReportHandler) findExisting(c *gin.Context, key string) (*model.Report, bool) {
	existing, err := h.store.GetReportByIdempotencyKey(c.Request.Context(), key)
	switch {
	case err == nil:
		h.logger.Info("Idempotent replay", slog.String("report_id", existing.ReportID))
		return existing, true
	case errors.Is(err, domain.ErrReportNotFound):
		return nil, false
	default:
		h.logger.Error("Failed to check idempotency key", slog.String("error", err.Error()))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to create report"})
		return nil, false
	}
}

// GetReport handles GET /api/v1/reports/:report_id
func (h *ReportHandler) GetReport(c *gin.Context) {
	rep, ok := h.loadReport(c)
	if !ok {
		return
	}

	c.JSON(http.StatusOK, toReportDTO(rep))
}

// GetChart handles GET /api/v1/reports/:report_id/charts/:chart
// Serves one rendered PNG of a completed report.
func (h *ReportHandler) GetChart(c *gin.Context) {
	rep, ok := h.loadReport(c)
	if !ok {
		return
	}

	if rep.Status != domain.ReportStatusCompleted || !rep.Result.Valid {
		c.JSON(http.StatusConflict, gin.H{
			"error":  "report is not completed",
			"status": rep.Status,
		})
		return
	}

	var summary report.Summary
	if err := json.Unmarshal([]byte(rep.Result.String), &summary); err != nil {
		h.logger.Error("Failed to decode report result",
			slog.String("report_id", rep.ReportID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read report result"})
		return
	}

	// Only names listed in the summary are served
	path, found := summary.ChartPath(c.Param("chart"))
	if !found {
		c.JSON(http.StatusNotFound, gin.H{"error": "chart not found"})
		return
	}

	if _, err := os.Stat(path); err != nil {
		h.logger.Warn("Chart file missing",
			slog.String("report_id", rep.ReportID),
			slog.String("path", path),
		)
		c.JSON(http.StatusGone, gin.H{"error": "chart file is no longer available"})
		return
	}

	c.File(path)
}

// ListReports handles GET /api/v1/reports
// Lists reports newest first with optional status filter and cursor pagination
func (h *ReportHandler) ListReports(c *gin.Context) {
	var req dto.ListReportsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Warn("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}

	if req.Status != "" && !domain.ValidStatus(req.Status) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid status"})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeReportCursor(req.Cursor)
	if err != nil {
		h.logger.Warn("Invalid cursor", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cursor"})
		return
	}

	reports, err := h.store.ListReports(c.Request.Context(), storage.ReportFilter{
		Status:   req.Status,
		PageSize: req.PageSize,
		Cursor:   cursor,
	})
	if err != nil {
		h.logger.Error("Failed to list reports", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list reports"})
		return
	}

	hasMore := len(reports) > req.PageSize
	if hasMore {
		reports = reports[:req.PageSize]
	}

	resp := dto.ListReportsResponse{Reports: make([]dto.ReportDTO, len(reports))}
	for i := range reports {
		resp.Reports[i] = toReportDTO(&reports[i])
	}

	if hasMore {
		last := reports[len(reports)-1]
		resp.NextCursor = EncodeReportCursor(storage.ReportCursor{
			CreatedAt: last.CreatedAt,
			ReportID:  last.ReportID,
		})
	}

	c.JSON(http.StatusOK, resp)
}

// loadReport validates the report_id path param and fetches the report,
// writing the error response itself when it fails
func (h *ReportHandler) loadReport(c *gin.Context) (*model.Report, bool) {
	reportID := c.Param("report_id")
	if _, err := uuid.Parse(reportID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "report_id must be a valid UUID"})
		return nil, false
	}

	rep, err := h.store.GetReportByID(c.Request.Context(), reportID)
	if err != nil {
		if errors.Is(err, domain.ErrReportNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
			return nil, false
		}
		h.logger.Error("Failed to get report",
			slog.String("report_id", reportID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to get report"})
		return nil, false
	}

	return rep, true
}

func toReportDTO(r *model.Report) dto.ReportDTO {
	out := dto.ReportDTO{
		ReportID:       r.ReportID,
		IdempotencyKey: r.IdempotencyKey,
		Status:         r.Status,
		Params:         json.RawMessage(r.Params),
		RetryCount:     r.RetryCount,
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
		UpdatedAt:      r.UpdatedAt.Format(time.RFC3339),
	}
	if r.Result.Valid {
		out.Result = json.RawMessage(r.Result.String)
	}
	if r.ErrorMessage.Valid {
		out.Error = r.ErrorMessage.String
	}
	if r.CompletedAt.Valid {
		out.CompletedAt = r.CompletedAt.Time.Format(time.RFC3339)
	}
	return out
}

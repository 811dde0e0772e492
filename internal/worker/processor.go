package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/cuongbtq/postings-report/internal/dataset"
	"github.com/cuongbtq/postings-report/internal/report"
	"github.com/cuongbtq/postings-report/internal/worker/domain"
)

// statusUpdateTimeout bounds the final status write, which must outlive a canceled run
const statusUpdateTimeout = 10 * time.Second

// processReport processes a single report with timeout, heartbeat, and status updates
func (w *Worker) processReport(ctx context.Context, msg *domain.ReportMessage) error {
	w.logger.Info("Processing report",
		slog.String("report_id", msg.ReportID),
		slog.String("worker_id", w.workerID),
	)

	// Step 1: Claim report from database (PENDING → RUNNING)
	rep, err := w.storage.ClaimReport(ctx, msg.ReportID, w.workerID)
	if err != nil {
		if errors.Is(err, domain.ErrReportAlreadyClaimed) {
			w.logger.Warn("Report already claimed, skipping",
				slog.String("report_id", msg.ReportID),
			)
			return fmt.Errorf("report already claimed: %w", err)
		}
		// Database error - the row is still PENDING, try again later
		return domain.NewRetryableError(fmt.Errorf("failed to claim report: %w", err))
	}

	// Step 2: Parse report params
	params, err := decodeParams(rep.Params)
	if err != nil {
		w.logger.Error("Invalid report params",
			slog.String("report_id", rep.ReportID),
			slog.String("error", err.Error()),
		)
		w.finish(ctx, rep.ReportID, func(sctx context.Context) error {
			return w.storage.FailReport(sctx, rep.ReportID, err.Error())
		})
		return err
	}

	// Step 3: Create timeout context
	timeout := w.reportTimeout
	if rep.TimeoutSeconds > 0 {
		timeout = time.Duration(rep.TimeoutSeconds) * time.Second
	}

	runCtx := ctx
	if timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	// Step 4: Start heartbeat goroutine
	heartbeatDone := make(chan struct{})
	go w.sendHeartbeat(runCtx, rep.ReportID, heartbeatDone)
	defer close(heartbeatDone)

	// Step 5: Run the pipeline
	summary, err := w.runner.Run(runCtx, report.Request{
		InputPath: params.ResolveInput(w.dataDir),
		OutputDir: filepath.Join(w.outputDir, rep.ReportID),
		Options:   params.Apply(w.options),
	})
	if err != nil {
		return w.handleFailure(ctx, rep, err)
	}

	// Step 6: Store the summary
	result, err := json.Marshal(summary)
	if err != nil {
		return w.handleFailure(ctx, rep, fmt.Errorf("failed to marshal summary: %w", err))
	}

	var storeErr error
	w.finish(ctx, rep.ReportID, func(sctx context.Context) error {
		storeErr = w.storage.CompleteReport(sctx, rep.ReportID, result)
		return storeErr
	})
	if storeErr != nil {
		// Charts exist on disk; a retry regenerates them and stores the summary
		return w.handleFailure(ctx, rep, fmt.Errorf("failed to store summary: %w", storeErr))
	}

	w.logger.Info("Report completed",
		slog.String("report_id", rep.ReportID),
		slog.Int("charts", len(summary.Charts)),
		slog.String("duration", summary.Duration),
	)

	return nil
}

// handleFailure decides between retry and permanent failure after a run error
func (w *Worker) handleFailure(ctx context.Context, rep *domain.Report, runErr error) error {
	w.logger.Error("Report execution failed",
		slog.String("report_id", rep.ReportID),
		slog.Int("retry_count", rep.RetryCount),
		slog.String("error", runErr.Error()),
	)

	// Worker is shutting down: hand the report back without spending a retry
	if ctx.Err() != nil {
		w.finish(ctx, rep.ReportID, func(sctx context.Context) error {
			return w.storage.ReleaseReport(sctx, rep.ReportID)
		})
		return domain.NewRetryableError(fmt.Errorf("report interrupted: %w", runErr))
	}

	// A missing or malformed input file does not change by retrying
	if errors.Is(runErr, fs.ErrNotExist) || errors.Is(runErr, dataset.ErrMalformedCSV) {
		w.finish(ctx, rep.ReportID, func(sctx context.Context) error {
			return w.storage.FailReport(sctx, rep.ReportID, runErr.Error())
		})
		return fmt.Errorf("%w: %v", domain.ErrInvalidParams, runErr)
	}

	if rep.RetryCount < rep.MaxRetries {
		w.logger.Info("Report will be retried",
			slog.String("report_id", rep.ReportID),
			slog.Int("retry_count", rep.RetryCount),
			slog.Int("max_retries", rep.MaxRetries),
		)
		w.finish(ctx, rep.ReportID, func(sctx context.Context) error {
			return w.storage.RetryReport(sctx, rep.ReportID, runErr.Error())
		})
		return domain.NewRetryableError(fmt.Errorf("report execution failed: %w", runErr))
	}

	w.logger.Warn("Report exceeded max retries",
		slog.String("report_id", rep.ReportID),
		slog.Int("retry_count", rep.RetryCount),
		slog.Int("max_retries", rep.MaxRetries),
	)
	w.finish(ctx, rep.ReportID, func(sctx context.Context) error {
		return w.storage.FailReport(sctx, rep.ReportID, runErr.Error())
	})
	return fmt.Errorf("%w: %v", domain.ErrMaxRetriesExceeded, runErr)
}

// finish runs a status update on a context detached from worker shutdown
func (w *Worker) finish(ctx context.Context, reportID string, update func(context.Context) error) {
	sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), statusUpdateTimeout)
	defer cancel()

	if err := update(sctx); err != nil {
		w.logger.Error("Failed to update report status",
			slog.String("report_id", reportID),
			slog.String("error", err.Error()),
		)
	}
}

// sendHeartbeat periodically updates the report's heartbeat timestamp
func (w *Worker) sendHeartbeat(ctx context.Context, reportID string, done <-chan struct{}) {
	ticker := time.NewTicker(w.heartbeatInterval)
	defer ticker.Stop()

	w.logger.Debug("Report heartbeat started",
		slog.String("report_id", reportID),
	)

	for {
		select {
		case <-done:
			w.logger.Debug("Report heartbeat stopped",
				slog.String("report_id", reportID),
			)
			return

		case <-ctx.Done():
			w.logger.Debug("Report heartbeat stopped - context canceled",
				slog.String("report_id", reportID),
			)
			return

		case <-ticker.C:
			if err := w.storage.UpdateHeartbeat(ctx, reportID); err != nil {
				w.logger.Warn("Failed to update report heartbeat",
					slog.String("report_id", reportID),
					slog.String("error", err.Error()),
				)
			}
		}
	}
}

func decodeParams(raw string) (report.Params, error) {
	var params report.Params
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return params, fmt.Errorf("%w: %v", domain.ErrInvalidParams, err)
	}
	if err := params.Validate(); err != nil {
		return params, fmt.Errorf("%w: %v", domain.ErrInvalidParams, err)
	}
	return params, nil
}

package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/cuongbtq/postings-report/internal/worker/domain"
)

// spawnWorkerPool spawns N worker goroutines based on concurrency configuration
func (w *Worker) spawnWorkerPool(ctx context.Context) {
	w.logger.Info("Spawning worker pool",
		slog.Int("concurrency", w.concurrency),
		slog.String("worker_id", w.workerID),
	)

	for i := 0; i < w.concurrency; i++ {
		w.wg.Add(1)
		go w.workerLoop(ctx, i)
	}

	w.logger.Info("Worker pool spawned successfully",
		slog.Int("worker_count", w.concurrency),
	)
}

// workerLoop is the main processing loop for each worker goroutine
func (w *Worker) workerLoop(ctx context.Context, workerNum int) {
	defer w.wg.Done()

	workerName := fmt.Sprintf("%s-%d", w.workerID, workerNum)
	w.logger.Info("Worker goroutine started",
		slog.String("worker_name", workerName),
		slog.Int("worker_num", workerNum),
	)

	for {
		select {
		case <-w.stopChan:
			w.logger.Info("Worker goroutine stopping - stopChan closed",
				slog.String("worker_name", workerName),
			)
			return

		case <-ctx.Done():
			w.logger.Info("Worker goroutine stopping - context canceled",
				slog.String("worker_name", workerName),
			)
			return

		case msg := <-w.reportsChan:
			w.logger.Info("Worker received report",
				slog.String("worker_name", workerName),
				slog.String("report_id", msg.ReportID),
				slog.Uint64("delivery_tag", msg.DeliveryTag),
			)

			w.handleMessage(ctx, workerName, msg)
		}
	}
}

// handleMessage processes one report and settles its delivery
func (w *Worker) handleMessage(ctx context.Context, workerName string, msg *domain.ReportMessage) {
	err := w.processReport(ctx, msg)
	if err == nil {
		if ackErr := msg.Ack(); ackErr != nil {
			w.logger.Error("Failed to ACK message",
				slog.String("worker_name", workerName),
				slog.String("report_id", msg.ReportID),
				slog.String("error", ackErr.Error()),
			)
			return
		}
		w.logger.Info("Report completed successfully",
			slog.String("worker_name", workerName),
			slog.String("report_id", msg.ReportID),
		)
		return
	}

	w.logger.Error("Report processing failed",
		slog.String("worker_name", workerName),
		slog.String("report_id", msg.ReportID),
		slog.String("error", err.Error()),
	)

	requeue := shouldRequeue(err)
	if nackErr := msg.Nack(requeue); nackErr != nil {
		w.logger.Error("Failed to NACK message",
			slog.String("worker_name", workerName),
			slog.String("report_id", msg.ReportID),
			slog.String("error", nackErr.Error()),
		)
		return
	}

	w.logger.Info("Message NACKed",
		slog.String("worker_name", workerName),
		slog.String("report_id", msg.ReportID),
		slog.Bool("requeue", requeue),
	)
}

// shouldRequeue determines if a report should be requeued based on the error type
func shouldRequeue(err error) bool {
	// Another delivery already owns the report
	if errors.Is(err, domain.ErrReportAlreadyClaimed) {
		return false
	}

	if errors.Is(err, domain.ErrMaxRetriesExceeded) {
		return false
	}

	if errors.Is(err, domain.ErrInvalidParams) {
		return false
	}

	// Requeue for transient/retryable errors
	var retryableErr *domain.RetryableError
	if errors.As(err, &retryableErr) {
		return true
	}

	// Default: don't requeue for unknown errors
	return false
}

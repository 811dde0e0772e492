package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/cuongbtq/postings-report/internal/report"
	"github.com/cuongbtq/postings-report/internal/worker/domain"
)

// Store is the report persistence the worker needs
type Store interface {
	ClaimReport(ctx context.Context, reportID, workerID string) (*domain.Report, error)
	CompleteReport(ctx context.Context, reportID string, result []byte) error
	FailReport(ctx context.Context, reportID, errorMsg string) error
	RetryReport(ctx context.Context, reportID, errorMsg string) error
	ReleaseReport(ctx context.Context, reportID string) error
	UpdateHeartbeat(ctx context.Context, reportID string) error
}

// Runner executes one report
type Runner interface {
	Run(ctx context.Context, req report.Request) (*report.Summary, error)
}

// Broker delivers report messages
type Broker interface {
	Qos(prefetchCount int) error
	Consume(consumerTag string) (<-chan amqp.Delivery, error)
}

// Config holds worker configuration
type Config struct {
	Logger            *slog.Logger
	Store             Store
	Runner            Runner
	Broker            Broker
	WorkerID          string
	QueueName         string
	Concurrency       int
	PrefetchCount     int
	ReportTimeout     time.Duration
	HeartbeatInterval time.Duration

	// Options are the configured pipeline defaults; request params overlay them
	Options   report.Options
	DataDir   string
	OutputDir string
}

// Worker represents the background report worker
type Worker struct {
	logger            *slog.Logger
	storage           Store
	runner            Runner
	broker            Broker
	workerID          string
	queueName         string
	concurrency       int
	prefetchCount     int
	reportTimeout     time.Duration
	heartbeatInterval time.Duration
	options           report.Options
	dataDir           string
	outputDir         string

	reportsChan chan *domain.ReportMessage
	wg          sync.WaitGroup
	stopChan    chan struct{}
	stopOnce    sync.Once
}

// NewWorker creates a new worker instance
func NewWorker(cfg *Config) *Worker {
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}

	prefetch := cfg.PrefetchCount
	if prefetch <= 0 {
		prefetch = concurrency
	}

	heartbeat := cfg.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = 30 * time.Second
	}

	return &Worker{
		logger:            cfg.Logger,
		storage:           cfg.Store,
		runner:            cfg.Runner,
		broker:            cfg.Broker,
		workerID:          cfg.WorkerID,
		queueName:         cfg.QueueName,
		concurrency:       concurrency,
		prefetchCount:     prefetch,
		reportTimeout:     cfg.ReportTimeout,
		heartbeatInterval: heartbeat,
		options:           cfg.Options,
		dataDir:           cfg.DataDir,
		outputDir:         cfg.OutputDir,
		reportsChan:       make(chan *domain.ReportMessage),
		stopChan:          make(chan struct{}),
	}
}

// Start subscribes to the queue and processes reports until ctx is canceled
func (w *Worker) Start(ctx context.Context) error {
	w.logger.Info("Starting worker",
		slog.String("worker_id", w.workerID),
		slog.Int("concurrency", w.concurrency),
		slog.Duration("report_timeout", w.reportTimeout),
	)

	deliveries, err := w.setupConsumer(ctx)
	if err != nil {
		return err
	}

	w.spawnWorkerPool(ctx)

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		w.startMessageDispatcher(ctx, deliveries)
	}()

	<-ctx.Done()
	w.logger.Info("Worker context canceled, stopping...")

	return nil
}

// Stop gracefully stops the worker and waits for in-flight reports
func (w *Worker) Stop() {
	w.logger.Info("Stopping worker...")
	w.stopOnce.Do(func() { close(w.stopChan) })
	w.wg.Wait()
	w.logger.Info("Worker stopped")
}

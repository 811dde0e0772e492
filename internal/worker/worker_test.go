package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/postings-report/internal/dataset"
	"github.com/cuongbtq/postings-report/internal/report"
	"github.com/cuongbtq/postings-report/internal/worker/domain"
)

type fakeStore struct {
	mu         sync.Mutex
	reports    map[string]*domain.Report
	results    map[string][]byte
	failures   map[string]string
	retries    map[string]int
	released   map[string]bool
	claimErr   error
	heartbeats int
}

func newFakeStore(reports ...*domain.Report) *fakeStore {
	s := &fakeStore{
		reports:  map[string]*domain.Report{},
		results:  map[string][]byte{},
		failures: map[string]string{},
		retries:  map[string]int{},
		released: map[string]bool{},
	}
	for _, r := range reports {
		s.reports[r.ReportID] = r
	}
	return s
}

func (s *fakeStore) ClaimReport(_ context.Context, reportID, workerID string) (*domain.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.claimErr != nil {
		return nil, s.claimErr
	}
	r, ok := s.reports[reportID]
	if !ok || r.Status != domain.ReportStatusPending {
		return nil, domain.ErrReportAlreadyClaimed
	}
	r.Status = domain.ReportStatusRunning
	r.WorkerID = workerID
	cp := *r
	return &cp, nil
}

func (s *fakeStore) CompleteReport(_ context.Context, reportID string, result []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[reportID].Status = domain.ReportStatusCompleted
	s.results[reportID] = result
	return nil
}

func (s *fakeStore) FailReport(_ context.Context, reportID, errorMsg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[reportID].Status = domain.ReportStatusFailed
	s.failures[reportID] = errorMsg
	return nil
}

func (s *fakeStore) RetryReport(_ context.Context, reportID, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := s.reports[reportID]
	r.Status = domain.ReportStatusPending
	r.RetryCount++
	s.retries[reportID]++
	return nil
}

func (s *fakeStore) ReleaseReport(_ context.Context, reportID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reports[reportID].Status = domain.ReportStatusPending
	s.released[reportID] = true
	return nil
}

func (s *fakeStore) UpdateHeartbeat(context.Context, string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.heartbeats++
	return nil
}

func (s *fakeStore) status(reportID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reports[reportID].Status
}

type fakeRunner struct {
	mu       sync.Mutex
	requests []report.Request
	err      error
	wait     time.Duration
}

func (r *fakeRunner) Run(ctx context.Context, req report.Request) (*report.Summary, error) {
	r.mu.Lock()
	r.requests = append(r.requests, req)
	r.mu.Unlock()

	if r.wait > 0 {
		select {
		case <-time.After(r.wait):
		case <-ctx.Done():
			return nil, fmt.Errorf("report canceled: %w", ctx.Err())
		}
	}
	if r.err != nil {
		return nil, r.err
	}
	return &report.Summary{
		InputPath: req.InputPath,
		Industry:  req.Options.Industry,
		Charts:    []report.Chart{{Name: report.ChartStateCounts, Path: filepath.Join(req.OutputDir, report.ChartStateCounts)}},
		Duration:  "1ms",
	}, nil
}

type fakeAcker struct {
	mu      sync.Mutex
	acked   []uint64
	nacked  []uint64
	requeue []bool
}

func (a *fakeAcker) Ack(tag uint64, _ bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.acked = append(a.acked, tag)
	return nil
}

func (a *fakeAcker) Nack(tag uint64, _ bool, requeue bool) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.nacked = append(a.nacked, tag)
	a.requeue = append(a.requeue, requeue)
	return nil
}

func (a *fakeAcker) Reject(tag uint64, requeue bool) error {
	return a.Nack(tag, false, requeue)
}

func (a *fakeAcker) counts() (int, int) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.acked), len(a.nacked)
}

type fakeBroker struct {
	deliveries chan amqp.Delivery
	prefetch   int
}

func (b *fakeBroker) Qos(prefetchCount int) error {
	b.prefetch = prefetchCount
	return nil
}

func (b *fakeBroker) Consume(string) (<-chan amqp.Delivery, error) {
	return b.deliveries, nil
}

func pendingReport(params string, retryCount, maxRetries int) *domain.Report {
	return &domain.Report{
		ReportID:   uuid.NewString(),
		Params:     params,
		Status:     domain.ReportStatusPending,
		RetryCount: retryCount,
		MaxRetries: maxRetries,
	}
}

func newTestWorker(store Store, runner Runner, broker Broker) *Worker {
	opts := report.DefaultOptions()
	return NewWorker(&Config{
		Logger:            slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:             store,
		Runner:            runner,
		Broker:            broker,
		WorkerID:          "worker-test",
		Concurrency:       2,
		ReportTimeout:     time.Second,
		HeartbeatInterval: 10 * time.Millisecond,
		Options:           opts,
		DataDir:           "data",
		OutputDir:         "out",
	})
}

func TestProcessReport_Success(t *testing.T) {
	rep := pendingReport(`{"input_path":"lightcast/2024.csv","industry":"Finance and Insurance"}`, 0, 3)
	store := newFakeStore(rep)
	runner := &fakeRunner{}
	w := newTestWorker(store, runner, nil)

	err := w.processReport(context.Background(), &domain.ReportMessage{ReportID: rep.ReportID})
	require.NoError(t, err)

	require.Len(t, runner.requests, 1)
	req := runner.requests[0]
	assert.Equal(t, filepath.Join("data", "lightcast", "2024.csv"), req.InputPath)
	assert.Equal(t, filepath.Join("out", rep.ReportID), req.OutputDir)
	assert.Equal(t, "Finance and Insurance", req.Options.Industry)
	assert.Equal(t, report.DefaultOptions().TopSkills, req.Options.TopSkills)

	assert.Equal(t, domain.ReportStatusCompleted, store.status(rep.ReportID))

	var summary report.Summary
	require.NoError(t, json.Unmarshal(store.results[rep.ReportID], &summary))
	assert.Equal(t, "Finance and Insurance", summary.Industry)
	assert.Len(t, summary.Charts, 1)
}

func TestProcessReport_Failures(t *testing.T) {
	tests := []struct {
		name       string
		params     string
		retryCount int
		runErr     error
		wantErr    error
		requeue    bool
		wantStatus string
	}{
		{
			name:       "invalid params json",
			params:     `{"input_path":`,
			wantErr:    domain.ErrInvalidParams,
			wantStatus: domain.ReportStatusFailed,
		},
		{
			name:       "escaping input path",
			params:     `{"input_path":"../secret.csv"}`,
			wantErr:    domain.ErrInvalidParams,
			wantStatus: domain.ReportStatusFailed,
		},
		{
			name:       "missing input file",
			params:     `{"input_path":"x.csv"}`,
			runErr:     fmt.Errorf("failed to open dataset: %w", fs.ErrNotExist),
			wantErr:    domain.ErrInvalidParams,
			wantStatus: domain.ReportStatusFailed,
		},
		{
			name:       "malformed input file",
			params:     `{"input_path":"x.csv"}`,
			runErr:     fmt.Errorf("%w: missing header", dataset.ErrMalformedCSV),
			wantErr:    domain.ErrInvalidParams,
			wantStatus: domain.ReportStatusFailed,
		},
		{
			name:       "retry left",
			params:     `{"input_path":"x.csv"}`,
			retryCount: 1,
			runErr:     errors.New("disk full"),
			requeue:    true,
			wantStatus: domain.ReportStatusPending,
		},
		{
			name:       "retries exhausted",
			params:     `{"input_path":"x.csv"}`,
			retryCount: 3,
			runErr:     errors.New("disk full"),
			wantErr:    domain.ErrMaxRetriesExceeded,
			wantStatus: domain.ReportStatusFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := pendingReport(tt.params, tt.retryCount, 3)
			store := newFakeStore(rep)
			w := newTestWorker(store, &fakeRunner{err: tt.runErr}, nil)

			err := w.processReport(context.Background(), &domain.ReportMessage{ReportID: rep.ReportID})
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			}
			assert.Equal(t, tt.requeue, shouldRequeue(err))
			assert.Equal(t, tt.wantStatus, store.status(rep.ReportID))

			if tt.requeue {
				assert.Equal(t, 1, store.retries[rep.ReportID])
			}
		})
	}
}

func TestProcessReport_AlreadyClaimed(t *testing.T) {
	rep := pendingReport(`{"input_path":"x.csv"}`, 0, 3)
	rep.Status = domain.ReportStatusRunning
	runner := &fakeRunner{}
	w := newTestWorker(newFakeStore(rep), runner, nil)

	err := w.processReport(context.Background(), &domain.ReportMessage{ReportID: rep.ReportID})
	assert.ErrorIs(t, err, domain.ErrReportAlreadyClaimed)
	assert.False(t, shouldRequeue(err))
	assert.Empty(t, runner.requests)
}

func TestProcessReport_ClaimDatabaseError(t *testing.T) {
	rep := pendingReport(`{"input_path":"x.csv"}`, 0, 3)
	store := newFakeStore(rep)
	store.claimErr = errors.New("connection reset")
	w := newTestWorker(store, &fakeRunner{}, nil)

	err := w.processReport(context.Background(), &domain.ReportMessage{ReportID: rep.ReportID})
	require.Error(t, err)
	assert.True(t, shouldRequeue(err))
}

func TestProcessReport_ShutdownReleasesReport(t *testing.T) {
	rep := pendingReport(`{"input_path":"x.csv"}`, 0, 3)
	store := newFakeStore(rep)
	w := newTestWorker(store, &fakeRunner{wait: time.Minute}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	err := w.processReport(ctx, &domain.ReportMessage{ReportID: rep.ReportID})
	require.Error(t, err)
	assert.True(t, shouldRequeue(err))
	assert.True(t, store.released[rep.ReportID])
	assert.Zero(t, store.retries[rep.ReportID])
	assert.Equal(t, domain.ReportStatusPending, store.status(rep.ReportID))
}

func TestProcessReport_TimeoutCountsAsRetry(t *testing.T) {
	rep := pendingReport(`{"input_path":"x.csv"}`, 0, 3)
	rep.TimeoutSeconds = 0
	store := newFakeStore(rep)
	w := newTestWorker(store, &fakeRunner{wait: time.Minute}, nil)
	w.reportTimeout = 20 * time.Millisecond

	err := w.processReport(context.Background(), &domain.ReportMessage{ReportID: rep.ReportID})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, shouldRequeue(err))
	assert.Equal(t, 1, store.retries[rep.ReportID])
}

func TestDecodeMessage(t *testing.T) {
	acker := &fakeAcker{}
	id := uuid.NewString()

	msg, err := decodeMessage(amqp.Delivery{
		Acknowledger: acker,
		DeliveryTag:  7,
		Body:         []byte(`{"report_id":"` + id + `"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, id, msg.ReportID)
	assert.Equal(t, uint64(7), msg.DeliveryTag)

	require.NoError(t, msg.Ack())
	assert.Equal(t, []uint64{7}, acker.acked)

	_, err = decodeMessage(amqp.Delivery{Body: []byte(`not json`)})
	assert.Error(t, err)

	_, err = decodeMessage(amqp.Delivery{Body: []byte(`{"report_id":"abc"}`)})
	assert.Error(t, err)
}

func TestWorker_StartConsumesAndAcks(t *testing.T) {
	ok := pendingReport(`{"input_path":"x.csv"}`, 0, 3)
	bad := pendingReport(`{"input_path":"/etc/passwd"}`, 0, 3)
	store := newFakeStore(ok, bad)
	broker := &fakeBroker{deliveries: make(chan amqp.Delivery, 4)}
	acker := &fakeAcker{}

	w := newTestWorker(store, &fakeRunner{}, broker)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() { errCh <- w.Start(ctx) }()

	broker.deliveries <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 1, Body: []byte(`{"report_id":"` + ok.ReportID + `"}`)}
	broker.deliveries <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 2, Body: []byte(`{"report_id":"` + bad.ReportID + `"}`)}
	broker.deliveries <- amqp.Delivery{Acknowledger: acker, DeliveryTag: 3, Body: []byte(`garbage`)}

	require.Eventually(t, func() bool {
		acked, nacked := acker.counts()
		return acked == 1 && nacked == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-errCh)
	w.Stop()

	assert.Equal(t, 2, broker.prefetch)
	assert.Equal(t, []uint64{1}, acker.acked)
	assert.ElementsMatch(t, []bool{false, false}, acker.requeue)
	assert.Equal(t, domain.ReportStatusCompleted, store.status(ok.ReportID))
	assert.Equal(t, domain.ReportStatusFailed, store.status(bad.ReportID))
}

func TestWorker_RunsRealPipeline(t *testing.T) {
	dataDir := t.TempDir()
	outDir := t.TempDir()
	csv := "COMPANY_NAME,STATE_NAME,NAICS2_NAME,POSTED,SALARY_FROM,SALARY_TO,SKILLS_NAME\n" +
		"Acme,Texas,Retail Trade,2024-05-03,50000,70000,\"SQL, Python\"\n" +
		"Acme,Ohio,Retail Trade,2024-09-10,,,SQL\n"
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "postings.csv"), []byte(csv), 0o644))

	rep := pendingReport(`{"input_path":"postings.csv","companies":["Acme"]}`, 0, 3)
	store := newFakeStore(rep)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	w := NewWorker(&Config{
		Logger:    logger,
		Store:     store,
		Runner:    report.NewPipeline(logger),
		WorkerID:  "worker-test",
		Options:   report.DefaultOptions(),
		DataDir:   dataDir,
		OutputDir: outDir,
	})

	require.NoError(t, w.processReport(context.Background(), &domain.ReportMessage{ReportID: rep.ReportID}))

	var summary report.Summary
	require.NoError(t, json.Unmarshal(store.results[rep.ReportID], &summary))
	require.Len(t, summary.Charts, 5)
	for _, c := range summary.Charts {
		assert.FileExists(t, c.Path)
		assert.Equal(t, filepath.Join(outDir, rep.ReportID), filepath.Dir(c.Path))
	}
}

//go:build integration

package storage

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/postings-report/internal/testutil/pgtest"
	"github.com/cuongbtq/postings-report/internal/worker/domain"
)

func TestStorage_ReportLifecycle(t *testing.T) {
	client := pgtest.NewClient(t)
	db := client.GetDB()
	s := NewStorage(db, slog.New(slog.NewTextHandler(io.Discard, nil)))
	ctx := context.Background()

	insert := func(t *testing.T) string {
		id := uuid.NewString()
		_, err := db.ExecContext(ctx, `
			INSERT INTO reports (report_id, idempotency_key, status, params, max_retries)
			VALUES ($1, $2, $3, $4, 3)
		`, id, id, domain.ReportStatusPending, `{"input_path":"x.csv"}`)
		require.NoError(t, err)
		return id
	}

	status := func(t *testing.T, id string) (string, int) {
		var st string
		var retries int
		require.NoError(t, db.QueryRowContext(ctx,
			"SELECT status, retry_count FROM reports WHERE report_id = $1", id).Scan(&st, &retries))
		return st, retries
	}

	t.Run("Should claim a pending report once", func(t *testing.T) {
		id := insert(t)

		rep, err := s.ClaimReport(ctx, id, "worker-a")
		require.NoError(t, err)
		assert.Equal(t, 3, rep.MaxRetries)
		assert.JSONEq(t, `{"input_path":"x.csv"}`, rep.Params)

		_, err = s.ClaimReport(ctx, id, "worker-b")
		assert.ErrorIs(t, err, domain.ErrReportAlreadyClaimed)

		require.NoError(t, s.UpdateHeartbeat(ctx, id))
	})

	t.Run("Should return a retried report to pending", func(t *testing.T) {
		id := insert(t)
		_, err := s.ClaimReport(ctx, id, "worker-a")
		require.NoError(t, err)

		require.NoError(t, s.RetryReport(ctx, id, "disk full"))
		st, retries := status(t, id)
		assert.Equal(t, domain.ReportStatusPending, st)
		assert.Equal(t, 1, retries)

		// The requeued delivery can claim it again
		_, err = s.ClaimReport(ctx, id, "worker-b")
		require.NoError(t, err)

		require.NoError(t, s.ReleaseReport(ctx, id))
		st, retries = status(t, id)
		assert.Equal(t, domain.ReportStatusPending, st)
		assert.Equal(t, 1, retries)
	})

	t.Run("Should store the summary on completion", func(t *testing.T) {
		id := insert(t)
		_, err := s.ClaimReport(ctx, id, "worker-a")
		require.NoError(t, err)

		require.NoError(t, s.CompleteReport(ctx, id, []byte(`{"charts":[]}`)))
		st, _ := status(t, id)
		assert.Equal(t, domain.ReportStatusCompleted, st)
	})

	t.Run("Should fail a report", func(t *testing.T) {
		id := insert(t)
		require.NoError(t, s.FailReport(ctx, id, "max retries exceeded"))
		st, _ := status(t, id)
		assert.Equal(t, domain.ReportStatusFailed, st)

		assert.ErrorIs(t, s.FailReport(ctx, uuid.NewString(), "x"), domain.ErrReportNotFound)
	})
}

package model

import (
	"database/sql"
	"time"
)

type Report struct {
	ReportID       string         `db:"report_id"`
	IdempotencyKey string         `db:"idempotency_key"`
	Status         string         `db:"status"`
	Params         string         `db:"params"`
	Result         sql.NullString `db:"result"`
	ErrorMessage   sql.NullString `db:"error_message"`
	RetryCount     int            `db:"retry_count"`
	MaxRetries     int            `db:"max_retries"`
	CreatedAt      time.Time      `db:"created_at"`
	UpdatedAt      time.Time      `db:"updated_at"`
	CompletedAt    sql.NullTime   `db:"completed_at"`
}

package domain

import (
	"errors"
)

const (
	ReportStatusPending   = "PENDING"
	ReportStatusRunning   = "RUNNING"
	ReportStatusCompleted = "COMPLETED"
	ReportStatusFailed    = "FAILED"
)

var (
	ErrReportNotFound = errors.New("report not found")

	// ErrDuplicateIdempotencyKey is returned when a report with the same key exists
	ErrDuplicateIdempotencyKey = errors.New("idempotency key already used")
)

// ValidStatus reports whether s is a known report status
func ValidStatus(s string) bool {
	switch s {
	case ReportStatusPending, ReportStatusRunning, ReportStatusCompleted, ReportStatusFailed:
		return true
	}
	return false
}

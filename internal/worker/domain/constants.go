package domain

// Report status constants
const (
	ReportStatusPending   = "PENDING"
	ReportStatusRunning   = "RUNNING"
	ReportStatusCompleted = "COMPLETED"
	ReportStatusFailed    = "FAILED"
)

package dto

import "encoding/json"

type CreateReportRequest struct {
	IdempotencyKey string   `json:"idempotency_key" binding:"required"`
	InputPath      string   `json:"input_path" binding:"required"`
	Industry       string   `json:"industry"`
	Companies      []string `json:"companies"`
	BeforeMonth    string   `json:"before_month"`
	AfterMonth     string   `json:"after_month"`
}

type ListReportsRequest struct {
	Status   string `form:"status"`
	PageSize int    `form:"page_size"`
	Cursor   string `form:"cursor"`
}

type ListReportsResponse struct {
	Reports    []ReportDTO `json:"reports"`
	NextCursor string      `json:"next_cursor,omitempty"`
}

type ReportDTO struct {
	ReportID       string          `json:"report_id"`
	IdempotencyKey string          `json:"idempotency_key"`
	Status         string          `json:"status"`
	Params         json.RawMessage `json:"params"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          string          `json:"error,omitempty"`
	RetryCount     int             `json:"retry_count"`
	CreatedAt      string          `json:"created_at"`
	UpdatedAt      string          `json:"updated_at"`
	CompletedAt    string          `json:"completed_at,omitempty"`
}

// ReportMessage is the queue payload announcing a new report
type ReportMessage struct {
	ReportID string `json:"report_id"`
}

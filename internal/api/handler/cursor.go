package handler

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/cuongbtq/postings-report/internal/api/storage"
)

// DecodeReportCursor parses a cursor produced by EncodeReportCursor. An empty
// string means the first page.
func DecodeReportCursor(cursorStr string) (*storage.ReportCursor, error) {
	if cursorStr == "" {
		return nil, nil
	}

	decoded, err := base64.URLEncoding.DecodeString(cursorStr)
	if err != nil {
		return nil, fmt.Errorf("invalid cursor encoding: %w", err)
	}

	createdAt, reportID, ok := strings.Cut(string(decoded), "|")
	if !ok || reportID == "" {
		return nil, fmt.Errorf("invalid cursor format")
	}

	nanos, err := strconv.ParseInt(createdAt, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid created_at in cursor: %w", err)
	}

	return &storage.ReportCursor{
		CreatedAt: time.Unix(0, nanos).UTC(),
		ReportID:  reportID,
	}, nil
}

// EncodeReportCursor renders the position after cursor as an opaque token
func EncodeReportCursor(cursor storage.ReportCursor) string {
	cs := fmt.Sprintf("%d|%s", cursor.CreatedAt.UnixNano(), cursor.ReportID)
	return base64.URLEncoding.EncodeToString([]byte(cs))
}

package domain

import (
	"time"

	"github.com/google/uuid"
)

// ProcessingStatus is the terminal state of one processing attempt.
type ProcessingStatus string

const (
	StatusSuccess   ProcessingStatus = "success"
	StatusDuplicate ProcessingStatus = "duplicate"
	StatusError     ProcessingStatus = "error"
)

// Succeeded reports whether the status represents a completed attempt
// whose result is replayable.
func (s ProcessingStatus) Succeeded() bool {
	return s == StatusSuccess || s == StatusDuplicate
}

// ProcessingLogEntry is one append-only row in the processing log.
// EmailID is nil for attempts that failed before persistence, Result
// is nil for failed attempts.
type ProcessingLogEntry struct {
	ID          int64                 `json:"id" db:"id"`
	EmailID     *uuid.UUID            `json:"email_id,omitempty" db:"email_id"`
	AccountID   string                `json:"account_id" db:"account_id"`
	MessageID   string                `json:"message_id" db:"message_id"`
	Status      ProcessingStatus      `json:"status" db:"status"`
	ErrorDetail *string               `json:"error_detail,omitempty" db:"error_detail"`
	DurationMS  int64                 `json:"duration_ms" db:"duration_ms"`
	Result      *ClassificationResult `json:"result,omitempty" db:"-"`
	CreatedAt   time.Time             `json:"created_at" db:"created_at"`
}

// NewLogEntry builds a log row for a finished attempt.
func NewLogEntry(accountID, messageID string, status ProcessingStatus, took time.Duration) *ProcessingLogEntry {
	return &ProcessingLogEntry{
		AccountID:  accountID,
		MessageID:  messageID,
		Status:     status,
		DurationMS: took.Milliseconds(),
	}
}

// ProcessingStats aggregates the log for the stats endpoint.
type ProcessingStats struct {
	Total         int64   `json:"total" db:"total"`
	Success       int64   `json:"success" db:"success"`
	Duplicate     int64   `json:"duplicate" db:"duplicate"`
	Error         int64   `json:"error" db:"error"`
	AvgDurationMS float64 `json:"avg_duration_ms" db:"avg_duration_ms"`
}

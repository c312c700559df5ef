package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"pipeline_server/core/domain"
)

// =============================================================================
// Processing Log Adapter
// =============================================================================

// ProcessingLogAdapter implements out.ProcessingLog. The table is
// append-only; successful entries carry the serialized result so
// replays can answer without recomputing anything.
type ProcessingLogAdapter struct {
	db *sqlx.DB
}

// NewProcessingLogAdapter creates a new ProcessingLogAdapter.
func NewProcessingLogAdapter(db *sqlx.DB) *ProcessingLogAdapter {
	return &ProcessingLogAdapter{db: db}
}

// processingLogRow represents the database row.
type processingLogRow struct {
	ID          int64          `db:"id"`
	EmailID     uuid.NullUUID  `db:"email_id"`
	AccountID   string         `db:"account_id"`
	MessageID   string         `db:"message_id"`
	Status      string         `db:"status"`
	ErrorDetail sql.NullString `db:"error_detail"`
	DurationMS  int64          `db:"duration_ms"`
	Result      []byte         `db:"result"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (r *processingLogRow) toEntity() (*domain.ProcessingLogEntry, error) {
	entry := &domain.ProcessingLogEntry{
		ID:         r.ID,
		AccountID:  r.AccountID,
		MessageID:  r.MessageID,
		Status:     domain.ProcessingStatus(r.Status),
		DurationMS: r.DurationMS,
		CreatedAt:  r.CreatedAt,
	}
	if r.EmailID.Valid {
		id := r.EmailID.UUID
		entry.EmailID = &id
	}
	if r.ErrorDetail.Valid {
		detail := r.ErrorDetail.String
		entry.ErrorDetail = &detail
	}
	if len(r.Result) > 0 {
		var result domain.ClassificationResult
		if err := json.Unmarshal(r.Result, &result); err != nil {
			return nil, fmt.Errorf("failed to decode log result: %w", err)
		}
		entry.Result = &result
	}
	return entry, nil
}

// HasSucceeded returns the stored result of the latest successful
// attempt for (accountID, messageID), or nil if there was none.
func (a *ProcessingLogAdapter) HasSucceeded(ctx context.Context, accountID, messageID string) (*domain.ClassificationResult, error) {
	var raw []byte
	query := `
		SELECT result
		FROM processing_log
		WHERE account_id = $1 AND message_id = $2
		  AND status IN ('success', 'duplicate')
		  AND result IS NOT NULL
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	if err := a.db.GetContext(ctx, &raw, query, accountID, messageID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query processing log: %w", err)
	}

	var result domain.ClassificationResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to decode log result: %w", err)
	}
	return &result, nil
}

// Record appends one entry.
func (a *ProcessingLogAdapter) Record(ctx context.Context, entry *domain.ProcessingLogEntry) error {
	var result []byte
	if entry.Result != nil {
		var err error
		if result, err = json.Marshal(entry.Result); err != nil {
			return fmt.Errorf("failed to encode log result: %w", err)
		}
	}

	var emailID uuid.NullUUID
	if entry.EmailID != nil {
		emailID = uuid.NullUUID{UUID: *entry.EmailID, Valid: true}
	}
	var errorDetail sql.NullString
	if entry.ErrorDetail != nil {
		errorDetail = sql.NullString{String: *entry.ErrorDetail, Valid: true}
	}

	query := `
		INSERT INTO processing_log (email_id, account_id, message_id, status, error_detail, duration_ms, result)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id, created_at
	`
	err := a.db.QueryRowxContext(ctx, query,
		emailID, entry.AccountID, entry.MessageID, string(entry.Status),
		errorDetail, entry.DurationMS, result,
	).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert log entry: %w", err)
	}
	return nil
}

// List returns entries newest-first.
func (a *ProcessingLogAdapter) List(ctx context.Context, limit, offset int) ([]*domain.ProcessingLogEntry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var rows []processingLogRow
	query := `
		SELECT id, email_id, account_id, message_id, status, error_detail, duration_ms, result, created_at
		FROM processing_log
		ORDER BY created_at DESC, id DESC
		LIMIT $1 OFFSET $2
	`
	if err := a.db.SelectContext(ctx, &rows, query, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to list log entries: %w", err)
	}

	entries := make([]*domain.ProcessingLogEntry, 0, len(rows))
	for i := range rows {
		entry, err := rows[i].toEntity()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Stats aggregates the whole log.
func (a *ProcessingLogAdapter) Stats(ctx context.Context) (*domain.ProcessingStats, error) {
	var stats domain.ProcessingStats
	query := `
		SELECT
			count(*) AS total,
			count(*) FILTER (WHERE status = 'success') AS success,
			count(*) FILTER (WHERE status = 'duplicate') AS duplicate,
			count(*) FILTER (WHERE status = 'error') AS error,
			COALESCE(avg(duration_ms), 0) AS avg_duration_ms
		FROM processing_log
	`
	if err := a.db.GetContext(ctx, &stats, query); err != nil {
		return nil, fmt.Errorf("failed to aggregate processing log: %w", err)
	}
	return &stats, nil
}

// Package persistence provides database adapters implementing outbound ports.
package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"pipeline_server/adapter/out/index"
	"pipeline_server/core/domain"
	"pipeline_server/core/port/out"
)

// =============================================================================
// Email Adapter
// =============================================================================

// EmailAdapter implements out.EmailStore on Postgres. The embedding is
// a pgvector column on the emails row, so the email, its
// classification and its similarity entry commit or roll back as one.
type EmailAdapter struct {
	db *sqlx.DB
}

// NewEmailAdapter creates a new EmailAdapter.
func NewEmailAdapter(db *sqlx.DB) *EmailAdapter {
	return &EmailAdapter{db: db}
}

// emailRow represents the database row.
type emailRow struct {
	ID          uuid.UUID      `db:"id"`
	AccountID   string         `db:"account_id"`
	MessageID   string         `db:"message_id"`
	Subject     string         `db:"subject"`
	FromEmail   string         `db:"from_email"`
	SentAt      sql.NullTime   `db:"sent_at"`
	BodyText    string         `db:"body_text"`
	BodyHTML    sql.NullString `db:"body_html"`
	Attachments pq.StringArray `db:"attachments"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (r *emailRow) toEntity() *domain.Email {
	e := &domain.Email{
		ID:          r.ID,
		AccountID:   r.AccountID,
		MessageID:   r.MessageID,
		Subject:     r.Subject,
		FromEmail:   r.FromEmail,
		BodyText:    r.BodyText,
		Attachments: []string(r.Attachments),
		CreatedAt:   r.CreatedAt,
	}
	if r.SentAt.Valid {
		e.SentAt = r.SentAt.Time
	}
	if r.BodyHTML.Valid {
		html := r.BodyHTML.String
		e.BodyHTML = &html
	}
	return e
}

// classificationRow represents the database row.
type classificationRow struct {
	ID          int64     `db:"id"`
	EmailID     uuid.UUID `db:"email_id"`
	RequestType string    `db:"request_type"`
	Confidence  float64   `db:"confidence"`
	IsDuplicate bool      `db:"is_duplicate"`
	CreatedAt   time.Time `db:"created_at"`
}

func (r *classificationRow) toEntity() *domain.Classification {
	return &domain.Classification{
		ID:          r.ID,
		EmailID:     r.EmailID,
		RequestType: domain.RequestType(r.RequestType),
		Confidence:  r.Confidence,
		IsDuplicate: r.IsDuplicate,
		CreatedAt:   r.CreatedAt,
	}
}

// CreateClassified writes the email row (embedding included) and its
// classification in one transaction.
func (a *EmailAdapter) CreateClassified(ctx context.Context, email *domain.Email, cls *domain.Classification) error {
	tx, err := a.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var sentAt sql.NullTime
	if !email.SentAt.IsZero() {
		sentAt = sql.NullTime{Time: email.SentAt, Valid: true}
	}
	var bodyHTML sql.NullString
	if email.BodyHTML != nil {
		bodyHTML = sql.NullString{String: *email.BodyHTML, Valid: true}
	}
	var embedding interface{}
	if len(email.Embedding) > 0 {
		embedding = index.PgVector(email.Embedding)
	}

	query := `
		INSERT INTO emails (id, account_id, message_id, subject, from_email, sent_at, body_text, body_html, attachments, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::vector)
		RETURNING created_at
	`
	err = tx.QueryRowxContext(ctx, query,
		email.ID, email.AccountID, email.MessageID, email.Subject, email.FromEmail,
		sentAt, email.BodyText, bodyHTML, pq.Array(email.Attachments), embedding,
	).Scan(&email.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("email %s/%s: %w", email.AccountID, email.MessageID, ErrDuplicate)
		}
		return fmt.Errorf("failed to insert email: %w", err)
	}

	query = `
		INSERT INTO classifications (email_id, request_type, confidence, is_duplicate)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`
	err = tx.QueryRowxContext(ctx, query,
		cls.EmailID, string(cls.RequestType), cls.Confidence, cls.IsDuplicate,
	).Scan(&cls.ID, &cls.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert classification: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit: %w", err)
	}
	return nil
}

// GetByID loads one email without its embedding.
func (a *EmailAdapter) GetByID(ctx context.Context, id uuid.UUID) (*domain.Email, error) {
	var row emailRow
	query := `
		SELECT id, account_id, message_id, subject, from_email, sent_at, body_text, body_html, attachments, created_at
		FROM emails
		WHERE id = $1
	`
	if err := a.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("email %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get email: %w", err)
	}
	return row.toEntity(), nil
}

// GetEmbedding loads the stored embedding for one email.
func (a *EmailAdapter) GetEmbedding(ctx context.Context, id uuid.UUID) ([]float32, error) {
	var literal sql.NullString
	query := `SELECT embedding::text FROM emails WHERE id = $1`
	if err := a.db.GetContext(ctx, &literal, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("email %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get embedding: %w", err)
	}
	if !literal.Valid {
		return nil, fmt.Errorf("embedding for email %s: %w", id, ErrNotFound)
	}
	vec, err := index.ParsePgVector(literal.String)
	if err != nil {
		return nil, fmt.Errorf("failed to parse embedding: %w", err)
	}
	return vec, nil
}

// LatestClassification loads the most recent classification for an
// email.
func (a *EmailAdapter) LatestClassification(ctx context.Context, id uuid.UUID) (*domain.Classification, error) {
	var row classificationRow
	query := `
		SELECT id, email_id, request_type, confidence, is_duplicate, created_at
		FROM classifications
		WHERE email_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`
	if err := a.db.GetContext(ctx, &row, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("classification for email %s: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get classification: %w", err)
	}
	return row.toEntity(), nil
}

// ListEmbeddings pages through stored embeddings in insertion order.
func (a *EmailAdapter) ListEmbeddings(ctx context.Context, limit, offset int) ([]out.EmbeddingRecord, error) {
	if limit <= 0 {
		limit = 500
	}
	query := `
		SELECT id, embedding::text, created_at
		FROM emails
		WHERE embedding IS NOT NULL
		ORDER BY created_at ASC, id ASC
		LIMIT $1 OFFSET $2
	`
	rows, err := a.db.QueryxContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list embeddings: %w", err)
	}
	defer rows.Close()

	records := make([]out.EmbeddingRecord, 0, limit)
	for rows.Next() {
		var (
			rec     out.EmbeddingRecord
			literal string
		)
		if err := rows.Scan(&rec.EmailID, &literal, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan embedding row: %w", err)
		}
		if rec.Vector, err = index.ParsePgVector(literal); err != nil {
			return nil, fmt.Errorf("failed to parse embedding: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Delete removes the email row; classifications cascade and the
// embedding goes with the row.
func (a *EmailAdapter) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := a.db.ExecContext(ctx, `DELETE FROM emails WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete email: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("email %s: %w", id, ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

package out

import (
	"context"
	"time"

	"github.com/google/uuid"

	"pipeline_server/core/domain"
)

// EmbeddingRecord is one stored embedding, enough to rebuild an
// in-process index from storage.
type EmbeddingRecord struct {
	EmailID   uuid.UUID
	Vector    []float32
	CreatedAt time.Time
}

// EmailStore persists classified emails. The embedding lives on the
// email row, so CreateClassified writing the email, its classification
// and its similarity entry in one transaction is what makes the
// pipeline's persist step all-or-nothing.
type EmailStore interface {
	// CreateClassified writes the email (embedding included) and its
	// classification atomically. On error nothing is visible.
	CreateClassified(ctx context.Context, email *domain.Email, cls *domain.Classification) error

	// GetByID loads one email without its embedding.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Email, error)

	// GetEmbedding loads the stored embedding for one email.
	GetEmbedding(ctx context.Context, id uuid.UUID) ([]float32, error)

	// LatestClassification loads the most recent classification for
	// an email.
	LatestClassification(ctx context.Context, id uuid.UUID) (*domain.Classification, error)

	// ListEmbeddings pages through stored embeddings in insertion
	// order, for index rebuilds.
	ListEmbeddings(ctx context.Context, limit, offset int) ([]EmbeddingRecord, error)

	// Delete removes the email, its classifications and its
	// similarity entry in one transaction.
	Delete(ctx context.Context, id uuid.UUID) error
}

// ProcessingLog is the append-only record of processing attempts.
type ProcessingLog interface {
	// HasSucceeded returns the stored result of a prior successful
	// attempt for (accountID, messageID), or nil if none exists.
	HasSucceeded(ctx context.Context, accountID, messageID string) (*domain.ClassificationResult, error)

	// Record appends one entry. Entries are never updated or
	// deleted.
	Record(ctx context.Context, entry *domain.ProcessingLogEntry) error

	// List returns entries newest-first.
	List(ctx context.Context, limit, offset int) ([]*domain.ProcessingLogEntry, error)

	// Stats aggregates the whole log.
	Stats(ctx context.Context) (*domain.ProcessingStats, error)
}

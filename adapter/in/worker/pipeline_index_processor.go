package worker

import (
	"context"
	"fmt"
	"time"

	"pipeline_server/core/port/out"
	"pipeline_server/pkg/logger"
)

// IndexProcessor handles index.rebuild jobs: it re-hydrates the
// similarity index from the embeddings stored on the email rows.
// Needed after a restart when the memory backend is active, and
// harmless against pgvector where Insert backfills at most.
type IndexProcessor struct {
	store out.EmailStore
	index out.SimilarityIndex
}

func NewIndexProcessor(store out.EmailStore, index out.SimilarityIndex) *IndexProcessor {
	return &IndexProcessor{store: store, index: index}
}

func (p *IndexProcessor) ProcessRebuild(ctx context.Context, msg *Message) error {
	payload, err := ParsePayload[IndexRebuildPayload](msg)
	if err != nil {
		return fmt.Errorf("failed to parse index.rebuild payload: %w", err)
	}

	batchSize := payload.BatchSize
	if batchSize <= 0 {
		batchSize = 500
	}

	start := time.Now()
	total := 0
	for offset := 0; ; offset += batchSize {
		records, err := p.store.ListEmbeddings(ctx, batchSize, offset)
		if err != nil {
			return fmt.Errorf("failed to load embeddings at offset %d: %w", offset, err)
		}
		if len(records) == 0 {
			break
		}

		for _, rec := range records {
			if err := p.index.Insert(ctx, rec.EmailID, rec.Vector); err != nil {
				return fmt.Errorf("failed to index email %s: %w", rec.EmailID, err)
			}
		}
		total += len(records)

		if len(records) < batchSize {
			break
		}
	}

	size, _ := p.index.Len(ctx)
	logger.WithFields(map[string]any{
		"job_id":     msg.ID,
		"loaded":     total,
		"index_size": size,
	}).WithDuration(time.Since(start)).Info("similarity index rebuilt")
	return nil
}

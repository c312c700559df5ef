package out

import (
	"context"

	"pipeline_server/core/domain"
)

// ResultCache is a read-through cache in front of the processing log's
// success lookups. Misses and cache errors both surface as (nil, nil);
// the log stays the source of truth.
type ResultCache interface {
	Get(ctx context.Context, accountID, messageID string) (*domain.ClassificationResult, error)
	Set(ctx context.Context, accountID, messageID string, result *domain.ClassificationResult) error
}

// RawArchive keeps a best-effort copy of inbound emails as they
// arrived, before any pipeline processing touched them.
type RawArchive interface {
	Archive(ctx context.Context, in *domain.InboundEmail) error
}

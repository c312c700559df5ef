package out

import (
	"context"

	"pipeline_server/core/domain"
)

// JobProducer enqueues pipeline jobs for the worker fleet.
type JobProducer interface {
	// PublishEmailProcess enqueues one inbound email for async
	// processing and returns the broker's message ID.
	PublishEmailProcess(ctx context.Context, in *domain.InboundEmail) (string, error)

	// PublishIndexRebuild enqueues a rebuild of the in-process
	// similarity index from storage.
	PublishIndexRebuild(ctx context.Context, batchSize int) (string, error)
}

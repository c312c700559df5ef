package out

import (
	"context"

	"pipeline_server/core/domain"
)

// Embedder turns text into a fixed-dimension embedding vector.
type Embedder interface {
	// Embed returns the embedding for text. Vectors are not
	// guaranteed normalized; callers normalize before indexing.
	Embed(ctx context.Context, text string) ([]float32, error)

	// Dimension is the width of vectors this embedder produces.
	Dimension() int
}

// Classifier assigns a request type label with a confidence in [0,1].
type Classifier interface {
	Classify(ctx context.Context, text string) (domain.RequestType, float64, error)
}

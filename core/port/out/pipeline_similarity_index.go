package out

import (
	"context"

	"github.com/google/uuid"
)

// Neighbor is one index hit. Distance is cosine distance, so smaller
// means more similar.
type Neighbor struct {
	EmailID  uuid.UUID
	Distance float64
}

// SimilarityIndex stores unit vectors keyed by email ID and answers
// nearest-neighbor queries by cosine distance.
//
// Entries are write-once: Insert of an already-present ID is a no-op,
// updates do not exist. Removal only happens when the owning email is
// deleted.
type SimilarityIndex interface {
	// Insert adds a unit vector under id. A vector of the wrong
	// dimension returns a ConfigurationError.
	Insert(ctx context.Context, id uuid.UUID, vector []float32) error

	// Query returns up to k neighbors with distance <= maxDistance,
	// ordered by ascending distance; ties resolve by insertion
	// order. An empty index yields an empty result, not an error.
	Query(ctx context.Context, vector []float32, k int, maxDistance float64) ([]Neighbor, error)

	// Remove drops the entry for id. Removing an absent id is a
	// no-op.
	Remove(ctx context.Context, id uuid.UUID) error

	// Len reports the number of indexed entries.
	Len(ctx context.Context) (int, error)
}

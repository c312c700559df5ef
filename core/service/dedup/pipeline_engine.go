// Package dedup decides whether an email is a near-duplicate of one
// already stored, by querying the similarity index BEFORE the new
// email is inserted. An email can therefore never match itself.
package dedup

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"pipeline_server/core/domain"
	"pipeline_server/core/port/out"
)

// MaxMatches caps how many near-duplicates a verdict reports.
const MaxMatches = 5

// Engine wraps a similarity index with the duplicate decision rule.
type Engine struct {
	index      out.SimilarityIndex
	maxMatches int
}

func NewEngine(index out.SimilarityIndex) *Engine {
	return &Engine{index: index, maxMatches: MaxMatches}
}

// Insert adds a freshly persisted email to the index so later checks
// can see it. Vectors must already be unit length.
func (e *Engine) Insert(ctx context.Context, id uuid.UUID, vector []float32) error {
	return e.index.Insert(ctx, id, vector)
}

// Check queries the index for neighbors of vector and converts them
// into a verdict. threshold is minimum cosine similarity in (0,1];
// values outside that range fall back to the default. The verdict is
// duplicate when at least one stored email has similarity >= threshold.
func (e *Engine) Check(ctx context.Context, vector []float32, threshold float64) (*domain.DuplicateVerdict, error) {
	if threshold <= 0 || threshold > 1 {
		threshold = domain.DuplicateThreshold
	}

	// similarity = 1 - distance, so the similarity floor is a
	// distance ceiling.
	neighbors, err := e.index.Query(ctx, vector, e.maxMatches, 1-threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to query similarity index: %w", err)
	}

	verdict := &domain.DuplicateVerdict{Matches: make([]domain.SimilarEmail, 0, len(neighbors))}
	for _, n := range neighbors {
		verdict.Matches = append(verdict.Matches, domain.SimilarEmail{
			EmailID:    n.EmailID,
			Similarity: 1 - n.Distance,
		})
	}
	verdict.IsDuplicate = len(verdict.Matches) > 0
	return verdict, nil
}

// Similar is Check without the verdict semantics: it returns up to k
// stored emails with similarity >= threshold, excluding the given
// email ID. Used for lookups against an email that is already indexed
// and would otherwise match itself.
func (e *Engine) Similar(ctx context.Context, selfID string, vector []float32, k int, threshold float64) ([]domain.SimilarEmail, error) {
	if k <= 0 || k > 50 {
		k = e.maxMatches
	}
	if threshold <= 0 || threshold > 1 {
		threshold = domain.DuplicateThreshold
	}

	// One extra slot so dropping self still leaves k results.
	neighbors, err := e.index.Query(ctx, vector, k+1, 1-threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to query similarity index: %w", err)
	}

	matches := make([]domain.SimilarEmail, 0, k)
	for _, n := range neighbors {
		if n.EmailID.String() == selfID {
			continue
		}
		matches = append(matches, domain.SimilarEmail{EmailID: n.EmailID, Similarity: 1 - n.Distance})
		if len(matches) == k {
			break
		}
	}
	return matches, nil
}

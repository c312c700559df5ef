package index

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"

	"pipeline_server/core/domain"
)

// unit2 returns a 2-dim unit vector at the given angle in radians.
func unit2(angle float64) []float32 {
	return []float32{float32(math.Cos(angle)), float32(math.Sin(angle))}
}

func TestMemoryIndexQueryOrdering(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	// Angles from the query vector (angle 0) translate directly into
	// cosine distance, so ordering is predictable.
	far := uuid.New()
	near := uuid.New()
	mid := uuid.New()

	if err := idx.Insert(ctx, far, unit2(1.0)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := idx.Insert(ctx, near, unit2(0.1)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := idx.Insert(ctx, mid, unit2(0.5)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := idx.Query(ctx, unit2(0), 10, 2.0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}

	want := []uuid.UUID{near, mid, far}
	if len(got) != len(want) {
		t.Fatalf("got %d neighbors, want %d", len(got), len(want))
	}
	for i, id := range want {
		if got[i].EmailID != id {
			t.Errorf("position %d: got %s, want %s", i, got[i].EmailID, id)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].Distance < got[i-1].Distance {
			t.Errorf("distances not ascending at %d: %f < %f", i, got[i].Distance, got[i-1].Distance)
		}
	}
}

func TestMemoryIndexTiesByInsertionOrder(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	first := uuid.New()
	second := uuid.New()

	// Identical vectors, identical distance to any query.
	v := unit2(0.3)
	if err := idx.Insert(ctx, first, v); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := idx.Insert(ctx, second, v); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := idx.Query(ctx, unit2(0), 10, 2.0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d neighbors, want 2", len(got))
	}
	if got[0].EmailID != first || got[1].EmailID != second {
		t.Errorf("tie not broken by insertion order: got [%s, %s]", got[0].EmailID, got[1].EmailID)
	}
}

func TestMemoryIndexThresholdBoundary(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	id := uuid.New()
	if err := idx.Insert(ctx, id, unit2(0)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Exact match: distance 0 passes a maxDistance of 0.
	got, err := idx.Query(ctx, unit2(0), 5, 0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("identical vector at maxDistance 0: got %d hits, want 1", len(got))
	}

	// Orthogonal vector has distance 1 and must not pass 0.5.
	got, err = idx.Query(ctx, unit2(math.Pi/2), 5, 0.5)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("orthogonal vector passed maxDistance 0.5: %v", got)
	}
}

func TestMemoryIndexCapsResults(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	for i := 0; i < 8; i++ {
		if err := idx.Insert(ctx, uuid.New(), unit2(float64(i)*0.01)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := idx.Query(ctx, unit2(0), 3, 2.0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 3 {
		t.Errorf("got %d neighbors, want 3", len(got))
	}
}

func TestMemoryIndexEmptyAndZeroK(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	got, err := idx.Query(ctx, unit2(0), 5, 2.0)
	if err != nil {
		t.Fatalf("query on empty index: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("empty index returned %d neighbors", len(got))
	}

	if err := idx.Insert(ctx, uuid.New(), unit2(0)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	got, err = idx.Query(ctx, unit2(0), 0, 2.0)
	if err != nil {
		t.Fatalf("query with k=0: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("k=0 returned %d neighbors", len(got))
	}
}

func TestMemoryIndexDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(3)

	var cfgErr *domain.ConfigurationError

	err := idx.Insert(ctx, uuid.New(), []float32{1, 0})
	if !errors.As(err, &cfgErr) {
		t.Errorf("insert wrong dim: got %v, want ConfigurationError", err)
	}

	_, err = idx.Query(ctx, []float32{1, 0}, 5, 1.0)
	if !errors.As(err, &cfgErr) {
		t.Errorf("query wrong dim: got %v, want ConfigurationError", err)
	}
}

func TestMemoryIndexInsertIsWriteOnce(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	id := uuid.New()
	if err := idx.Insert(ctx, id, unit2(0)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	// Second insert with a different vector must not replace the first.
	if err := idx.Insert(ctx, id, unit2(1.0)); err != nil {
		t.Fatalf("reinsert: %v", err)
	}

	n, _ := idx.Len(ctx)
	if n != 1 {
		t.Fatalf("len = %d, want 1", n)
	}

	got, err := idx.Query(ctx, unit2(0), 1, 0.01)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 {
		t.Errorf("original vector lost after reinsert")
	}
}

func TestMemoryIndexRemove(t *testing.T) {
	ctx := context.Background()
	idx := NewMemoryIndex(2)

	a := uuid.New()
	b := uuid.New()
	if err := idx.Insert(ctx, a, unit2(0.1)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := idx.Insert(ctx, b, unit2(0.2)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	if err := idx.Remove(ctx, a); err != nil {
		t.Fatalf("remove: %v", err)
	}
	// Removing an absent id is a no-op.
	if err := idx.Remove(ctx, a); err != nil {
		t.Fatalf("remove absent: %v", err)
	}

	n, _ := idx.Len(ctx)
	if n != 1 {
		t.Fatalf("len = %d, want 1", n)
	}

	got, err := idx.Query(ctx, unit2(0), 5, 2.0)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(got) != 1 || got[0].EmailID != b {
		t.Errorf("query after remove: got %v, want only %s", got, b)
	}
}

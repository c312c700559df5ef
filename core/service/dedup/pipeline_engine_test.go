package dedup

import (
	"context"
	"math"
	"testing"

	"github.com/google/uuid"

	"pipeline_server/adapter/out/index"
)

// unit2 returns a 2-dim unit vector at the given angle in radians.
func unit2(angle float64) []float32 {
	return []float32{float32(math.Cos(angle)), float32(math.Sin(angle))}
}

func TestCheckEmptyIndex(t *testing.T) {
	engine := NewEngine(index.NewMemoryIndex(2))

	verdict, err := engine.Check(context.Background(), unit2(0), 0.9)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if verdict.IsDuplicate {
		t.Error("empty index produced a duplicate verdict")
	}
	if len(verdict.Matches) != 0 {
		t.Errorf("empty index produced %d matches", len(verdict.Matches))
	}
}

func TestCheckDetectsDuplicate(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemoryIndex(2)
	engine := NewEngine(idx)

	stored := uuid.New()
	if err := idx.Insert(ctx, stored, unit2(0)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Nearly identical vector: similarity close to 1.
	verdict, err := engine.Check(ctx, unit2(0.01), 0.9)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !verdict.IsDuplicate {
		t.Fatal("near-identical vector not flagged as duplicate")
	}
	if len(verdict.Matches) != 1 || verdict.Matches[0].EmailID != stored {
		t.Errorf("matches = %v, want [%s]", verdict.Matches, stored)
	}
	if verdict.Matches[0].Similarity < 0.9 {
		t.Errorf("similarity = %f, want >= 0.9", verdict.Matches[0].Similarity)
	}
}

func TestCheckThresholdMonotonicity(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemoryIndex(2)
	engine := NewEngine(idx)

	// Similarity cos(0.6) is roughly 0.825.
	if err := idx.Insert(ctx, uuid.New(), unit2(0.6)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	loose, err := engine.Check(ctx, unit2(0), 0.8)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !loose.IsDuplicate {
		t.Error("match below loose threshold not reported")
	}

	strict, err := engine.Check(ctx, unit2(0), 0.9)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if strict.IsDuplicate {
		t.Error("raising the threshold produced more duplicates, not fewer")
	}
}

func TestCheckCapsMatches(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemoryIndex(2)
	engine := NewEngine(idx)

	for i := 0; i < MaxMatches+3; i++ {
		if err := idx.Insert(ctx, uuid.New(), unit2(float64(i)*0.001)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	verdict, err := engine.Check(ctx, unit2(0), 0.9)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if len(verdict.Matches) != MaxMatches {
		t.Errorf("got %d matches, want cap of %d", len(verdict.Matches), MaxMatches)
	}
}

func TestCheckInvalidThresholdFallsBack(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemoryIndex(2)
	engine := NewEngine(idx)

	if err := idx.Insert(ctx, uuid.New(), unit2(0.01)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	// Threshold 0 falls back to the default rather than matching
	// everything.
	verdict, err := engine.Check(ctx, unit2(0), 0)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !verdict.IsDuplicate {
		t.Error("default threshold did not flag a near-identical vector")
	}

	far := index.NewMemoryIndex(2)
	engineFar := NewEngine(far)
	if err := far.Insert(ctx, uuid.New(), unit2(1.2)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	verdict, err = engineFar.Check(ctx, unit2(0), 0)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if verdict.IsDuplicate {
		t.Error("default threshold flagged a distant vector")
	}
}

func TestSimilarExcludesSelf(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemoryIndex(2)
	engine := NewEngine(idx)

	self := uuid.New()
	other := uuid.New()
	v := unit2(0)
	if err := idx.Insert(ctx, self, v); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := idx.Insert(ctx, other, v); err != nil {
		t.Fatalf("insert: %v", err)
	}

	matches, err := engine.Similar(ctx, self.String(), v, 5, 0.9)
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("got %d matches, want 1", len(matches))
	}
	if matches[0].EmailID != other {
		t.Errorf("match = %s, want %s", matches[0].EmailID, other)
	}
}

func TestSimilarKeepsKAfterDroppingSelf(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemoryIndex(2)
	engine := NewEngine(idx)

	self := uuid.New()
	if err := idx.Insert(ctx, self, unit2(0)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	others := make([]uuid.UUID, 3)
	for i := range others {
		others[i] = uuid.New()
		if err := idx.Insert(ctx, others[i], unit2(float64(i+1)*0.001)); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	matches, err := engine.Similar(ctx, self.String(), unit2(0), 3, 0.9)
	if err != nil {
		t.Fatalf("similar: %v", err)
	}
	if len(matches) != 3 {
		t.Errorf("got %d matches, want 3 despite self being nearest", len(matches))
	}
	for _, m := range matches {
		if m.EmailID == self {
			t.Error("self returned in similar matches")
		}
	}
}

func TestCheckSimilarityConversion(t *testing.T) {
	ctx := context.Background()
	idx := index.NewMemoryIndex(2)
	engine := NewEngine(idx)

	angle := 0.2
	if err := idx.Insert(ctx, uuid.New(), unit2(angle)); err != nil {
		t.Fatalf("insert: %v", err)
	}

	verdict, err := engine.Check(ctx, unit2(0), 0.9)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if !verdict.IsDuplicate {
		t.Fatal("expected duplicate")
	}

	want := math.Cos(angle)
	if math.Abs(verdict.Matches[0].Similarity-want) > 1e-4 {
		t.Errorf("similarity = %f, want %f", verdict.Matches[0].Similarity, want)
	}
}

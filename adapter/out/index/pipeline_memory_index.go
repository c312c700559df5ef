// Package index provides the similarity index backends: an in-process
// flat index and a pgvector-backed one. Both speak cosine distance
// over unit vectors.
package index

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"pipeline_server/core/domain"
	"pipeline_server/core/port/out"
)

type memEntry struct {
	id  uuid.UUID
	vec []float32
	seq uint64
}

// MemoryIndex is a flat in-process index: every query scans every
// entry. Exact, ordered, and fast enough for the corpus sizes this
// pipeline sees. State is process-local; rebuild from the email store
// on startup.
type MemoryIndex struct {
	mu      sync.RWMutex
	dim     int
	nextSeq uint64
	entries []memEntry
	byID    map[uuid.UUID]int
}

func NewMemoryIndex(dim int) *MemoryIndex {
	return &MemoryIndex{
		dim:  dim,
		byID: make(map[uuid.UUID]int),
	}
}

// Insert stores a normalized copy of vector under id. Entries are
// write-once: inserting an existing id is a no-op so replays cannot
// shift insertion order.
func (m *MemoryIndex) Insert(_ context.Context, id uuid.UUID, vector []float32) error {
	if len(vector) != m.dim {
		return domain.NewDimensionMismatch(m.dim, len(vector))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.byID[id]; ok {
		return nil
	}
	m.entries = append(m.entries, memEntry{
		id:  id,
		vec: domain.NormalizeVector(vector),
		seq: m.nextSeq,
	})
	m.byID[id] = len(m.entries) - 1
	m.nextSeq++
	return nil
}

// Query scans all entries and returns up to k with cosine distance
// <= maxDistance, ascending by distance, ties broken by insertion
// order.
func (m *MemoryIndex) Query(_ context.Context, vector []float32, k int, maxDistance float64) ([]out.Neighbor, error) {
	if len(vector) != m.dim {
		return nil, domain.NewDimensionMismatch(m.dim, len(vector))
	}
	if k <= 0 {
		return []out.Neighbor{}, nil
	}

	q := domain.NormalizeVector(vector)

	m.mu.RLock()
	defer m.mu.RUnlock()

	type hit struct {
		n   out.Neighbor
		seq uint64
	}
	hits := make([]hit, 0, k)
	for _, e := range m.entries {
		d := domain.CosineDistance(q, e.vec)
		if d > maxDistance {
			continue
		}
		hits = append(hits, hit{n: out.Neighbor{EmailID: e.id, Distance: d}, seq: e.seq})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].n.Distance != hits[j].n.Distance {
			return hits[i].n.Distance < hits[j].n.Distance
		}
		return hits[i].seq < hits[j].seq
	})

	if len(hits) > k {
		hits = hits[:k]
	}
	neighbors := make([]out.Neighbor, len(hits))
	for i, h := range hits {
		neighbors[i] = h.n
	}
	return neighbors, nil
}

// Remove drops the entry for id, preserving the insertion order of
// everything else.
func (m *MemoryIndex) Remove(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	pos, ok := m.byID[id]
	if !ok {
		return nil
	}
	m.entries = append(m.entries[:pos], m.entries[pos+1:]...)
	delete(m.byID, id)
	for i := pos; i < len(m.entries); i++ {
		m.byID[m.entries[i].id] = i
	}
	return nil
}

func (m *MemoryIndex) Len(_ context.Context) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries), nil
}

package internal

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// VectorIndex stores (vector, segment) pairs and answers k-nearest-neighbor
// queries by cosine similarity. Build semantics differ per backend: the
// snapshot index replaces its contents atomically, the annoy backend is
// build-once and returns ErrIndexAlreadyBuilt on a second build.
type VectorIndex interface {
	Build(ctx context.Context, entries []IndexEntry) error
	Query(ctx context.Context, query Embedding, k int) ([]ScoredSegment, error)
	Len() int
}

// ReplaceableIndex is the rebuild path for build-once backends: Replace
// installs a freshly built generation while queries keep hitting the old one
// until the swap.
type ReplaceableIndex interface {
	Replace(ctx context.Context, entries []IndexEntry) error
}

// SnapshotIndex is an exact cosine index over an immutable snapshot. Build
// assembles a fresh snapshot off to the side and swaps it in under the write
// lock, so a query sees either the old build or the new one, never a mix.
type SnapshotIndex struct {
	mu   sync.RWMutex
	snap *indexSnapshot
}

type indexSnapshot struct {
	entries   []IndexEntry // sorted by segment ID
	dimension int
	model     string
}

var _ VectorIndex = (*SnapshotIndex)(nil)

func NewSnapshotIndex() *SnapshotIndex {
	return &SnapshotIndex{}
}

// Build atomically replaces the index contents. All entries must share one
// model and dimension; a violation rejects the whole build and leaves any
// previous snapshot serving.
func (s *SnapshotIndex) Build(ctx context.Context, entries []IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(entries) == 0 {
		return fmt.Errorf("index build: no entries")
	}

	dimension := len(entries[0].Embedding.Vector)
	model := entries[0].Embedding.Model
	for _, entry := range entries {
		if len(entry.Embedding.Vector) != dimension {
			return fmt.Errorf("index build: segment %s has dimension %d, want %d",
				entry.Segment.ID, len(entry.Embedding.Vector), dimension)
		}
		if entry.Embedding.Model != model {
			return fmt.Errorf("index build: segment %s embedded with model %q, want %q",
				entry.Segment.ID, entry.Embedding.Model, model)
		}
	}

	sorted := make([]IndexEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Segment.ID < sorted[j].Segment.ID
	})

	snap := &indexSnapshot{
		entries:   sorted,
		dimension: dimension,
		model:     model,
	}

	s.mu.Lock()
	s.snap = snap
	s.mu.Unlock()
	return nil
}

// Query returns up to k entries by descending cosine similarity, ties broken
// by segment ID ascending. An empty index returns an empty result, never an
// error.
func (s *SnapshotIndex) Query(ctx context.Context, query Embedding, k int) ([]ScoredSegment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	snap := s.snap
	s.mu.RUnlock()

	if snap == nil || k <= 0 {
		return nil, nil
	}
	if len(query.Vector) != snap.dimension {
		return nil, fmt.Errorf("index query: dimension %d, want %d", len(query.Vector), snap.dimension)
	}
	if query.Model != "" && query.Model != snap.model {
		return nil, fmt.Errorf("index query: query embedded with model %q, index holds %q", query.Model, snap.model)
	}

	scored := make([]ScoredSegment, len(snap.entries))
	for i, entry := range snap.entries {
		scored[i] = ScoredSegment{
			Segment: entry.Segment,
			Score:   CosineSimilarity(query.Vector, entry.Embedding.Vector),
		}
	}

	// Entries are pre-sorted by segment ID, so a stable sort on score alone
	// keeps equal-score results in ID order.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if k < len(scored) {
		scored = scored[:k]
	}
	return scored, nil
}

func (s *SnapshotIndex) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.snap == nil {
		return 0
	}
	return len(s.snap.entries)
}

// CosineSimilarity is exact cosine over two equal-length vectors. Zero-norm
// input scores zero against everything.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

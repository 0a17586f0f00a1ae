package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/mariotoffia/goannoy/builder"
	"github.com/mariotoffia/goannoy/interfaces"
)

const (
	IndexFilename    = "index.ann"
	SegmentsFilename = "segments.json"
)

// AnnoyIndex is the approximate backend for corpora too large for an exact
// scan. Unlike SnapshotIndex it is build-once: a second Build returns
// ErrIndexAlreadyBuilt, and rebuilds go through Replace, which constructs a
// fresh annoy structure off to the side and swaps it in.
type AnnoyIndex struct {
	mu        sync.RWMutex
	idx       interfaces.AnnoyIndex[float32, uint32]
	segments  map[uint32]Segment
	dimension int
	model     string
	trees     int
	basePath  string
	built     bool
}

type annoyManifest struct {
	Segments  map[uint32]Segment `json:"segments"`
	Dimension int                `json:"dimension"`
	Model     string             `json:"model"`
}

var (
	_ VectorIndex      = (*AnnoyIndex)(nil)
	_ ReplaceableIndex = (*AnnoyIndex)(nil)
)

func newAnnoyStructure(dimension int) interfaces.AnnoyIndex[float32, uint32] {
	return builder.Index[float32, uint32]().
		AngularDistance(dimension).
		UseMultiWorkerPolicy().
		MmapIndexAllocator().
		Build()
}

func NewAnnoyIndex(basePath string, dimension, trees int) (*AnnoyIndex, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("annoy index: dimension must be configured for the annoy backend")
	}
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	return &AnnoyIndex{
		idx:       newAnnoyStructure(dimension),
		segments:  make(map[uint32]Segment),
		dimension: dimension,
		trees:     trees,
		basePath:  basePath,
	}, nil
}

// buildStructure assembles a fresh annoy structure from entries without
// touching whatever is currently serving.
func (a *AnnoyIndex) buildStructure(entries []IndexEntry) (interfaces.AnnoyIndex[float32, uint32], map[uint32]Segment, string, error) {
	if len(entries) == 0 {
		return nil, nil, "", fmt.Errorf("index build: no entries")
	}

	model := entries[0].Embedding.Model
	for _, entry := range entries {
		if len(entry.Embedding.Vector) != a.dimension {
			return nil, nil, "", fmt.Errorf("index build: segment %s has dimension %d, want %d",
				entry.Segment.ID, len(entry.Embedding.Vector), a.dimension)
		}
		if entry.Embedding.Model != model {
			return nil, nil, "", fmt.Errorf("index build: segment %s embedded with model %q, want %q",
				entry.Segment.ID, entry.Embedding.Model, model)
		}
	}

	// Insert in segment ID order so annoy item IDs are deterministic for a
	// given corpus.
	sorted := make([]IndexEntry, len(entries))
	copy(sorted, entries)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Segment.ID < sorted[j].Segment.ID
	})

	idx := newAnnoyStructure(a.dimension)
	segments := make(map[uint32]Segment, len(sorted))
	for i, entry := range sorted {
		id := uint32(i)
		idx.AddItem(id, entry.Embedding.Vector)
		segments[id] = entry.Segment
	}
	idx.Build(a.trees, -1)

	return idx, segments, model, nil
}

func (a *AnnoyIndex) Build(ctx context.Context, entries []IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	a.mu.RLock()
	built := a.built
	a.mu.RUnlock()
	if built {
		return ErrIndexAlreadyBuilt
	}

	idx, segments, model, err := a.buildStructure(entries)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.built {
		return ErrIndexAlreadyBuilt
	}
	a.idx = idx
	a.segments = segments
	a.model = model
	a.built = true
	return nil
}

// Replace installs a new generation built from scratch. The serving structure
// stays queryable the whole time; only the final pointer swap happens under
// the write lock.
func (a *AnnoyIndex) Replace(ctx context.Context, entries []IndexEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	idx, segments, model, err := a.buildStructure(entries)
	if err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.idx = idx
	a.segments = segments
	a.model = model
	a.built = true
	return nil
}

func (a *AnnoyIndex) Query(ctx context.Context, query Embedding, k int) ([]ScoredSegment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.built || k <= 0 {
		return nil, nil
	}
	if len(query.Vector) != a.dimension {
		return nil, fmt.Errorf("index query: dimension %d, want %d", len(query.Vector), a.dimension)
	}
	if query.Model != "" && a.model != "" && query.Model != a.model {
		return nil, fmt.Errorf("index query: query embedded with model %q, index holds %q", query.Model, a.model)
	}

	if k > len(a.segments) {
		k = len(a.segments)
	}

	searchCtx := a.idx.CreateContext()
	ids, distances := a.idx.GetNnsByVector(query.Vector, k, -1, searchCtx)

	results := make([]ScoredSegment, 0, len(ids))
	for i, id := range ids {
		segment, ok := a.segments[id]
		if !ok {
			continue
		}

		// Angular distance lives in [0,2]; fold it into the same 0-1
		// higher-is-better scale the exact index produces.
		var score float32
		if i < len(distances) {
			score = 1.0 - distances[i]/2.0
		}

		results = append(results, ScoredSegment{Segment: segment, Score: score})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Segment.ID < results[j].Segment.ID
	})

	return results, nil
}

func (a *AnnoyIndex) Len() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.segments)
}

// Save persists the annoy structure and the segment manifest next to it.
func (a *AnnoyIndex) Save() error {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if !a.built {
		return ErrIndexNotReady
	}

	if err := a.idx.Save(filepath.Join(a.basePath, IndexFilename)); err != nil {
		return fmt.Errorf("save index: %w", err)
	}

	manifest := annoyManifest{
		Segments:  a.segments,
		Dimension: a.dimension,
		Model:     a.model,
	}
	data, err := json.Marshal(manifest)
	if err != nil {
		return fmt.Errorf("marshal segments: %w", err)
	}
	if err := os.WriteFile(filepath.Join(a.basePath, SegmentsFilename), data, 0644); err != nil {
		return fmt.Errorf("write segments: %w", err)
	}
	return nil
}

// Load restores a previously saved index. A missing save is not an error;
// the index simply stays unbuilt.
func (a *AnnoyIndex) Load() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	data, err := os.ReadFile(filepath.Join(a.basePath, SegmentsFilename))
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read segments: %w", err)
	}

	var manifest annoyManifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		return fmt.Errorf("unmarshal segments: %w", err)
	}
	if manifest.Dimension != a.dimension {
		return fmt.Errorf("load index: saved dimension %d, configured %d", manifest.Dimension, a.dimension)
	}

	indexPath := filepath.Join(a.basePath, IndexFilename)
	if _, err := os.Stat(indexPath); os.IsNotExist(err) {
		return nil
	}
	if err := a.idx.Load(indexPath); err != nil {
		return fmt.Errorf("load index: %w", err)
	}

	a.segments = manifest.Segments
	a.model = manifest.Model
	a.built = true
	return nil
}

package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"
)

const indexerBatchSize = 32

// Indexer runs the build-time pipeline: load the corpus, chunk it, embed the
// segments through a bounded worker pool, and hand the entries to the index
// for an atomic swap. A failed rebuild leaves the previous index serving.
type Indexer struct {
	loader   *CorpusLoader
	chunker  *Chunker
	embedder Embedder
	index    VectorIndex
	workers  int
	logger   *slog.Logger

	mu       sync.Mutex // one rebuild at a time
	manifest map[string]string
	ready    atomic.Bool
}

func NewIndexer(loader *CorpusLoader, chunker *Chunker, embedder Embedder, index VectorIndex, workers int, logger *slog.Logger) *Indexer {
	if workers <= 0 {
		workers = 1
	}
	ix := &Indexer{
		loader:   loader,
		chunker:  chunker,
		embedder: embedder,
		index:    index,
		workers:  workers,
		logger:   logger,
	}

	// An index restored from disk can serve queries before the first rebuild
	// lands.
	if index.Len() > 0 {
		ix.ready.Store(true)
	}
	return ix
}

// Ready reports whether at least one build has completed successfully.
// Queries before that fail with ErrIndexNotReady instead of running against
// nothing.
func (ix *Indexer) Ready() bool {
	return ix.ready.Load()
}

// Rebuild runs one full pass over the corpus. An unchanged corpus is a
// logged no-op once the index is ready.
func (ix *Indexer) Rebuild(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	start := time.Now()

	docs, err := ix.loader.Load(ctx)
	if err != nil {
		return fmt.Errorf("load corpus: %w", err)
	}

	manifest := Manifest(docs)
	if ix.ready.Load() && SameManifest(ix.manifest, manifest) {
		ix.logger.Info("corpus unchanged, skipping rebuild")
		return nil
	}

	var segments []Segment
	for _, doc := range docs {
		segs, err := ix.chunker.Chunk(doc)
		if err != nil {
			return fmt.Errorf("chunk %s: %w", doc.ID, err)
		}
		segments = append(segments, segs...)
	}
	if len(segments) == 0 {
		return fmt.Errorf("%w: corpus produced no segments", ErrCorpusEmpty)
	}

	vectors, err := ix.embedAll(ctx, segments)
	if err != nil {
		return fmt.Errorf("embed segments: %w", err)
	}

	entries := make([]IndexEntry, len(segments))
	for i, segment := range segments {
		entries[i] = IndexEntry{
			Segment:   segment,
			Embedding: NewEmbedding(vectors[i], ix.embedder.Model()),
		}
	}

	if err := ix.buildOrReplace(ctx, entries); err != nil {
		return err
	}

	ix.manifest = manifest
	ix.ready.Store(true)
	ix.logger.Info("index built",
		"documents", len(docs),
		"segments", len(segments),
		"duration", time.Since(start))
	return nil
}

// buildOrReplace hands the entries to the index. A build-once backend that is
// already holding a generation gets a Replace instead, so rebuilds work the
// same against every backend.
func (ix *Indexer) buildOrReplace(ctx context.Context, entries []IndexEntry) error {
	err := ix.index.Build(ctx, entries)
	if err == nil {
		return nil
	}

	if replaceable, ok := ix.index.(ReplaceableIndex); ok && errors.Is(err, ErrIndexAlreadyBuilt) {
		if err := replaceable.Replace(ctx, entries); err != nil {
			return fmt.Errorf("replace index: %w", err)
		}
		return nil
	}
	return fmt.Errorf("build index: %w", err)
}

// embedAll embeds segment texts in batches across a bounded worker pool,
// preserving segment order. Remote rate limits are the reason for the bound.
func (ix *Indexer) embedAll(ctx context.Context, segments []Segment) ([][]float32, error) {
	vectors := make([][]float32, len(segments))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.workers)

	for start := 0; start < len(segments); start += indexerBatchSize {
		end := start + indexerBatchSize
		if end > len(segments) {
			end = len(segments)
		}

		g.Go(func() error {
			texts := make([]string, end-start)
			for i := start; i < end; i++ {
				texts[i-start] = segments[i].Text
			}

			vecs, err := ix.embedder.EmbedMany(gctx, texts)
			if err != nil {
				return err
			}
			for i, vec := range vecs {
				vectors[start+i] = vec
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return vectors, nil
}

// RunPeriodic rebuilds on a fixed interval until the context ends. Failures
// are logged and the stale index keeps serving; this loop never tears down a
// good index.
func (ix *Indexer) RunPeriodic(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := ix.Rebuild(ctx); err != nil {
				ix.logger.Error("scheduled rebuild failed, serving stale index", "error", err)
			}
		}
	}
}

package internal

import (
	"context"
	"errors"
	"testing"
)

func newTestIndexer(t *testing.T, dir string, embedder Embedder, index VectorIndex) *Indexer {
	t.Helper()
	loader := localLoader(dir, []string{".md", ".txt"})
	chunker := newTestChunker(t, 512, 64)
	return NewIndexer(loader, chunker, embedder, index, 2, testLogger())
}

func TestIndexerRebuildMakesIndexReady(t *testing.T) {
	dir := t.TempDir()
	writeCorpusFile(t, dir, "one.md", "The capital of France is Paris.")
	writeCorpusFile(t, dir, "two.md", "France is famous for cheese.")

	idx := NewSnapshotIndex()
	indexer := newTestIndexer(t, dir, &fakeEmbedder{dim: 3, vecFor: keywordVec}, idx)

	if indexer.Ready() {
		t.Error("expected index not ready before first build")
	}

	if err := indexer.Rebuild(context.Background()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}

	if !indexer.Ready() {
		t.Error("expected index ready after build")
	}
	if idx.Len() != 2 {
		t.Errorf("expected 2 entries, got %d", idx.Len())
	}
}

func TestIndexerSkipsUnchangedCorpus(t *testing.T) {
	dir := t.TempDir()
	writeCorpusFile(t, dir, "one.md", "stable content")

	embedder := &fakeEmbedder{dim: 3}
	indexer := newTestIndexer(t, dir, embedder, NewSnapshotIndex())

	if err := indexer.Rebuild(context.Background()); err != nil {
		t.Fatalf("first rebuild: %v", err)
	}
	calls := embedder.callCount()

	if err := indexer.Rebuild(context.Background()); err != nil {
		t.Fatalf("second rebuild: %v", err)
	}
	if embedder.callCount() != calls {
		t.Error("expected unchanged corpus to skip embedding entirely")
	}
}

func TestIndexerRebuildsOnContentChange(t *testing.T) {
	dir := t.TempDir()
	writeCorpusFile(t, dir, "one.md", "original content")

	embedder := &fakeEmbedder{dim: 3}
	indexer := newTestIndexer(t, dir, embedder, NewSnapshotIndex())

	if err := indexer.Rebuild(context.Background()); err != nil {
		t.Fatalf("first rebuild: %v", err)
	}
	calls := embedder.callCount()

	writeCorpusFile(t, dir, "one.md", "edited content")

	if err := indexer.Rebuild(context.Background()); err != nil {
		t.Fatalf("second rebuild: %v", err)
	}
	if embedder.callCount() <= calls {
		t.Error("expected changed corpus to trigger re-embedding")
	}
}

func TestIndexerKeepsStaleIndexOnFailure(t *testing.T) {
	dir := t.TempDir()
	writeCorpusFile(t, dir, "one.md", "good content")

	embedder := &fakeEmbedder{dim: 3}
	idx := NewSnapshotIndex()
	indexer := newTestIndexer(t, dir, embedder, idx)

	if err := indexer.Rebuild(context.Background()); err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	size := idx.Len()

	writeCorpusFile(t, dir, "one.md", "changed content")
	embedder.setFailures(1000, ErrEmbeddingService)

	err := indexer.Rebuild(context.Background())
	if !errors.Is(err, ErrEmbeddingService) {
		t.Fatalf("expected ErrEmbeddingService, got %v", err)
	}

	if !indexer.Ready() {
		t.Error("expected index to stay ready after failed rebuild")
	}
	if idx.Len() != size {
		t.Errorf("expected index size unchanged, got %d want %d", idx.Len(), size)
	}
}

func TestIndexerRebuildsBuildOnceBackend(t *testing.T) {
	dir := t.TempDir()
	writeCorpusFile(t, dir, "one.md", "first document")

	idx, err := NewAnnoyIndex(t.TempDir(), 3, 4)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	indexer := newTestIndexer(t, dir, &fakeEmbedder{dim: 3}, idx)

	if err := indexer.Rebuild(context.Background()); err != nil {
		t.Fatalf("first rebuild: %v", err)
	}
	if idx.Len() != 1 {
		t.Fatalf("expected 1 entry, got %d", idx.Len())
	}

	writeCorpusFile(t, dir, "two.md", "second document")

	// A second pass must land as a fresh generation, not ErrIndexAlreadyBuilt.
	if err := indexer.Rebuild(context.Background()); err != nil {
		t.Fatalf("second rebuild: %v", err)
	}
	if idx.Len() != 2 {
		t.Errorf("expected 2 entries after corpus change, got %d", idx.Len())
	}
}

func TestIndexerReadyWithRestoredIndex(t *testing.T) {
	base := t.TempDir()

	saved, err := NewAnnoyIndex(base, 3, 4)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	if err := saved.Build(context.Background(), annoyEntries()); err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := saved.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	restored, err := NewAnnoyIndex(base, 3, 4)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	if err := restored.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}

	dir := t.TempDir()
	writeCorpusFile(t, dir, "one.md", "some document")
	indexer := newTestIndexer(t, dir, &fakeEmbedder{dim: 3}, restored)

	if !indexer.Ready() {
		t.Error("expected a restored index to serve before the first rebuild")
	}
}

func TestIndexerEmptyCorpusFails(t *testing.T) {
	indexer := newTestIndexer(t, t.TempDir(), &fakeEmbedder{dim: 3}, NewSnapshotIndex())

	err := indexer.Rebuild(context.Background())
	if !errors.Is(err, ErrCorpusEmpty) {
		t.Fatalf("expected ErrCorpusEmpty, got %v", err)
	}
	if indexer.Ready() {
		t.Error("expected index not ready after failed build")
	}
}

func TestIndexerWhitespaceOnlyCorpusFails(t *testing.T) {
	dir := t.TempDir()
	writeCorpusFile(t, dir, "blank.md", "   \n\n  ")

	indexer := newTestIndexer(t, dir, &fakeEmbedder{dim: 3}, NewSnapshotIndex())

	err := indexer.Rebuild(context.Background())
	if !errors.Is(err, ErrCorpusEmpty) {
		t.Fatalf("expected ErrCorpusEmpty, got %v", err)
	}
}

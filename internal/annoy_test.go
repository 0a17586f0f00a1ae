package internal

import (
	"context"
	"errors"
	"testing"
)

func annoyEntries() []IndexEntry {
	return []IndexEntry{
		testEntry("one.md", 0, []float32{1, 0, 0}),
		testEntry("two.md", 0, []float32{0, 1, 0}),
		testEntry("three.md", 0, []float32{0, 0, 1}),
	}
}

func TestAnnoyIndexBuildAndQuery(t *testing.T) {
	idx, err := NewAnnoyIndex(t.TempDir(), 3, 4)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}

	ctx := context.Background()
	if err := idx.Build(ctx, annoyEntries()); err != nil {
		t.Fatalf("build: %v", err)
	}
	if idx.Len() != 3 {
		t.Errorf("expected 3 entries, got %d", idx.Len())
	}

	hits, err := idx.Query(ctx, NewEmbedding([]float32{1, 0.1, 0}, "test-model"), 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) == 0 {
		t.Fatal("expected at least 1 hit")
	}
	if hits[0].Segment.DocumentID != "one.md" {
		t.Errorf("expected one.md closest, got %q", hits[0].Segment.DocumentID)
	}
	for i := 1; i < len(hits); i++ {
		if hits[i].Score > hits[i-1].Score {
			t.Errorf("hits out of order at %d", i)
		}
	}
}

func TestAnnoyIndexBuildOnce(t *testing.T) {
	idx, err := NewAnnoyIndex(t.TempDir(), 3, 4)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}

	ctx := context.Background()
	if err := idx.Build(ctx, annoyEntries()); err != nil {
		t.Fatalf("build: %v", err)
	}

	err = idx.Build(ctx, annoyEntries())
	if !errors.Is(err, ErrIndexAlreadyBuilt) {
		t.Fatalf("expected ErrIndexAlreadyBuilt, got %v", err)
	}
}

func TestAnnoyIndexReplaceInstallsNewGeneration(t *testing.T) {
	idx, err := NewAnnoyIndex(t.TempDir(), 3, 4)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}

	ctx := context.Background()
	if err := idx.Build(ctx, annoyEntries()); err != nil {
		t.Fatalf("build: %v", err)
	}

	replacement := []IndexEntry{
		testEntry("four.md", 0, []float32{1, 0, 0}),
		testEntry("five.md", 0, []float32{0, 1, 0}),
	}
	if err := idx.Replace(ctx, replacement); err != nil {
		t.Fatalf("replace: %v", err)
	}

	if idx.Len() != 2 {
		t.Errorf("expected 2 entries after replace, got %d", idx.Len())
	}

	hits, err := idx.Query(ctx, NewEmbedding([]float32{1, 0.1, 0}, "test-model"), 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) != 1 || hits[0].Segment.DocumentID != "four.md" {
		t.Errorf("expected the new generation to serve, got %+v", hits)
	}
}

func TestAnnoyIndexReplaceKeepsOldGenerationOnFailure(t *testing.T) {
	idx, err := NewAnnoyIndex(t.TempDir(), 3, 4)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}

	ctx := context.Background()
	if err := idx.Build(ctx, annoyEntries()); err != nil {
		t.Fatalf("build: %v", err)
	}

	err = idx.Replace(ctx, []IndexEntry{testEntry("bad.md", 0, []float32{1, 0})})
	if err == nil {
		t.Fatal("expected replace error for wrong dimension")
	}
	if idx.Len() != 3 {
		t.Errorf("expected old generation intact, got %d entries", idx.Len())
	}
}

func TestAnnoyIndexQueryBeforeBuild(t *testing.T) {
	idx, err := NewAnnoyIndex(t.TempDir(), 3, 4)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}

	hits, err := idx.Query(context.Background(), NewEmbedding([]float32{1, 0, 0}, "test-model"), 2)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits before build, got %d", len(hits))
	}
}

func TestAnnoyIndexRejectsDimensionMismatch(t *testing.T) {
	idx, err := NewAnnoyIndex(t.TempDir(), 3, 4)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}

	ctx := context.Background()
	err = idx.Build(ctx, []IndexEntry{testEntry("a.md", 0, []float32{1, 0})})
	if err == nil {
		t.Error("expected build error for wrong dimension")
	}

	if err := idx.Build(ctx, annoyEntries()); err != nil {
		t.Fatalf("build: %v", err)
	}
	if _, err := idx.Query(ctx, NewEmbedding([]float32{1, 0}, "test-model"), 1); err == nil {
		t.Error("expected query error for wrong dimension")
	}
}

func TestAnnoyIndexRequiresDimension(t *testing.T) {
	if _, err := NewAnnoyIndex(t.TempDir(), 0, 4); err == nil {
		t.Fatal("expected error for unconfigured dimension")
	}
}

func TestAnnoyIndexSaveAndLoad(t *testing.T) {
	dir := t.TempDir()

	idx, err := NewAnnoyIndex(dir, 3, 4)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}

	ctx := context.Background()
	if err := idx.Build(ctx, annoyEntries()); err != nil {
		t.Fatalf("build: %v", err)
	}
	if err := idx.Save(); err != nil {
		t.Fatalf("save: %v", err)
	}

	restored, err := NewAnnoyIndex(dir, 3, 4)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}
	if err := restored.Load(); err != nil {
		t.Fatalf("load: %v", err)
	}
	if restored.Len() != 3 {
		t.Errorf("expected 3 entries after load, got %d", restored.Len())
	}

	hits, err := restored.Query(ctx, NewEmbedding([]float32{0, 1, 0.1}, "test-model"), 1)
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) != 1 || hits[0].Segment.DocumentID != "two.md" {
		t.Errorf("expected two.md from restored index, got %+v", hits)
	}
}

func TestAnnoyIndexSaveBeforeBuild(t *testing.T) {
	idx, err := NewAnnoyIndex(t.TempDir(), 3, 4)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}

	if err := idx.Save(); !errors.Is(err, ErrIndexNotReady) {
		t.Fatalf("expected ErrIndexNotReady, got %v", err)
	}
}

func TestAnnoyIndexLoadWithoutSave(t *testing.T) {
	idx, err := NewAnnoyIndex(t.TempDir(), 3, 4)
	if err != nil {
		t.Fatalf("new index: %v", err)
	}

	if err := idx.Load(); err != nil {
		t.Fatalf("expected missing save to be a no-op, got %v", err)
	}
	if idx.Len() != 0 {
		t.Errorf("expected empty index, got %d", idx.Len())
	}
}

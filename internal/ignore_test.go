package internal

import (
	"os"
	"path/filepath"
	"testing"
)

func newTestFilter(t *testing.T, dir, ignoreContent string, extensions []string) *CorpusFilter {
	t.Helper()

	if ignoreContent != "" {
		if err := os.WriteFile(filepath.Join(dir, IgnoreFilename), []byte(ignoreContent), 0644); err != nil {
			t.Fatalf("write ignore file: %v", err)
		}
	}

	filter, err := NewCorpusFilter(dir, extensions)
	if err != nil {
		t.Fatalf("new filter: %v", err)
	}
	return filter
}

func TestFilterExtensionAllowlist(t *testing.T) {
	dir := t.TempDir()
	filter := newTestFilter(t, dir, "", []string{".md", ".txt"})

	if !filter.Accept(filepath.Join(dir, "readme.md")) {
		t.Error("expected .md accepted")
	}
	if !filter.Accept(filepath.Join(dir, "README.MD")) {
		t.Error("expected extension match to be case insensitive")
	}
	if filter.Accept(filepath.Join(dir, "main.go")) {
		t.Error("expected .go rejected")
	}
	if filter.Accept(filepath.Join(dir, "Makefile")) {
		t.Error("expected extensionless file rejected")
	}
}

func TestFilterNoAllowlistAcceptsEverything(t *testing.T) {
	dir := t.TempDir()
	filter := newTestFilter(t, dir, "", nil)

	if !filter.Accept(filepath.Join(dir, "anything.xyz")) {
		t.Error("expected all extensions accepted without an allowlist")
	}
}

func TestFilterIgnorePatterns(t *testing.T) {
	dir := t.TempDir()
	filter := newTestFilter(t, dir, "# comment\n\ndrafts/\n*.tmp.md\nCHANGELOG.md\n", []string{".md"})

	if filter.Accept(filepath.Join(dir, "keep.md")) == false {
		t.Error("expected unmatched file accepted")
	}
	if filter.Accept(filepath.Join(dir, "notes.tmp.md")) {
		t.Error("expected glob pattern to exclude file")
	}
	if filter.Accept(filepath.Join(dir, "CHANGELOG.md")) {
		t.Error("expected exact pattern to exclude file")
	}
	if !filter.SkipDir(filepath.Join(dir, "drafts")) {
		t.Error("expected directory pattern to prune the walk")
	}
}

func TestFilterSkipsDotDirectories(t *testing.T) {
	dir := t.TempDir()
	filter := newTestFilter(t, dir, "", []string{".md"})

	if !filter.SkipDir(filepath.Join(dir, ".git")) {
		t.Error("expected dot directory pruned")
	}
	if filter.SkipDir(dir) {
		t.Error("expected corpus root never pruned")
	}
	if filter.SkipDir(filepath.Join(dir, "docs")) {
		t.Error("expected regular directory kept")
	}
}

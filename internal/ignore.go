package internal

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing/format/gitignore"
)

const IgnoreFilename = ".corpusignore"

// CorpusFilter decides which files in the corpus tree become documents.
// It combines an extension allowlist with gitignore-style patterns read
// from a .corpusignore file at the corpus root.
type CorpusFilter struct {
	patterns   []gitignore.Pattern
	extensions map[string]bool
	basePath   string
}

func NewCorpusFilter(basePath string, extensions []string) (*CorpusFilter, error) {
	f := &CorpusFilter{
		extensions: make(map[string]bool, len(extensions)),
		basePath:   basePath,
	}
	for _, ext := range extensions {
		f.extensions[strings.ToLower(ext)] = true
	}

	patterns, err := parseIgnoreFile(filepath.Join(basePath, IgnoreFilename))
	if err != nil && !os.IsNotExist(err) {
		return nil, err
	}
	f.patterns = patterns

	return f, nil
}

// Accept reports whether a file should be ingested.
func (f *CorpusFilter) Accept(path string) bool {
	if len(f.extensions) > 0 && !f.extensions[strings.ToLower(filepath.Ext(path))] {
		return false
	}
	return !f.matches(path, false)
}

// SkipDir reports whether an entire directory should be pruned from the walk.
func (f *CorpusFilter) SkipDir(path string) bool {
	base := filepath.Base(path)
	if strings.HasPrefix(base, ".") && path != f.basePath {
		return true
	}
	return f.matches(path, true)
}

func (f *CorpusFilter) matches(path string, isDir bool) bool {
	relPath, err := filepath.Rel(f.basePath, path)
	if err != nil {
		return false
	}

	parts := strings.Split(relPath, string(filepath.Separator))
	for _, p := range f.patterns {
		if p.Match(parts, isDir) == gitignore.Exclude {
			return true
		}
	}
	return false
}

func parseIgnoreFile(path string) ([]gitignore.Pattern, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var patterns []gitignore.Pattern
	scanner := bufio.NewScanner(file)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		patterns = append(patterns, gitignore.ParsePattern(line, nil))
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return patterns, nil
}

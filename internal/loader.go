package internal

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// CorpusLoader produces the documents an index build runs over. The corpus is
// either a git remote, cloned once into the working directory and pulled on
// every sync, or a plain local directory used as-is.
type CorpusLoader struct {
	url        string
	branch     string
	path       string
	extensions []string
	logger     *slog.Logger
}

func NewCorpusLoader(cfg CorpusConfig, workDir string, logger *slog.Logger) *CorpusLoader {
	path := cfg.Path
	if cfg.URL != "" {
		path = filepath.Join(workDir, "corpus")
	}

	return &CorpusLoader{
		url:        cfg.URL,
		branch:     cfg.Branch,
		path:       path,
		extensions: cfg.Extensions,
		logger:     logger,
	}
}

// Path returns the local corpus root. Useful for watching local corpora.
func (l *CorpusLoader) Path() string {
	return l.path
}

// Sync brings the local checkout up to date. Plain directory corpora have
// nothing to sync.
func (l *CorpusLoader) Sync(ctx context.Context) error {
	if l.url == "" {
		if _, err := os.Stat(l.path); err != nil {
			return fmt.Errorf("%w: stat corpus dir: %v", ErrSourceUnavailable, err)
		}
		return nil
	}

	if _, err := os.Stat(filepath.Join(l.path, ".git")); os.IsNotExist(err) {
		return l.clone(ctx)
	}
	return l.pull(ctx)
}

func (l *CorpusLoader) clone(ctx context.Context) error {
	l.logger.Info("cloning corpus", "url", l.url, "path", l.path)

	opts := &git.CloneOptions{URL: l.url}
	if l.branch != "" {
		opts.ReferenceName = plumbing.NewBranchReferenceName(l.branch)
		opts.SingleBranch = true
	}

	if _, err := git.PlainCloneContext(ctx, l.path, false, opts); err != nil {
		return fmt.Errorf("%w: clone %s: %v", ErrSourceUnavailable, l.url, err)
	}
	return nil
}

func (l *CorpusLoader) pull(ctx context.Context) error {
	l.logger.Info("pulling corpus", "path", l.path)

	repo, err := git.PlainOpen(l.path)
	if err != nil {
		return fmt.Errorf("%w: open checkout: %v", ErrSourceUnavailable, err)
	}

	worktree, err := repo.Worktree()
	if err != nil {
		return fmt.Errorf("%w: get worktree: %v", ErrSourceUnavailable, err)
	}

	err = worktree.PullContext(ctx, &git.PullOptions{RemoteName: "origin"})
	if err != nil && !errors.Is(err, git.NoErrAlreadyUpToDate) {
		return fmt.Errorf("%w: pull: %v", ErrSourceUnavailable, err)
	}
	return nil
}

// Load syncs the corpus and reads every accepted file as a document.
// Markdown files are flattened to plain text first. Documents come back
// sorted by ID; an empty corpus is an error, never a silently empty index.
func (l *CorpusLoader) Load(ctx context.Context) ([]Document, error) {
	if err := l.Sync(ctx); err != nil {
		return nil, err
	}

	filter, err := NewCorpusFilter(l.path, l.extensions)
	if err != nil {
		return nil, fmt.Errorf("corpus filter: %w", err)
	}

	var docs []Document
	err = filepath.Walk(l.path, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.IsDir() {
			if filter.SkipDir(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !filter.Accept(path) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}

		relPath, err := filepath.Rel(l.path, path)
		if err != nil {
			return err
		}

		text := string(content)
		if strings.EqualFold(filepath.Ext(path), ".md") {
			text = FlattenMarkdown(text)
		}

		docs = append(docs, Document{
			ID:         filepath.ToSlash(relPath),
			SourcePath: path,
			RawText:    text,
			Hash:       hashText(text),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: walk corpus: %v", ErrSourceUnavailable, err)
	}

	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: no files under %s", ErrCorpusEmpty, l.path)
	}

	l.logger.Info("corpus loaded", "documents", len(docs))
	return docs, nil
}

func hashText(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Manifest maps document IDs to content hashes, the dedup key for deciding
// whether a rebuild is worth running at all.
func Manifest(docs []Document) map[string]string {
	m := make(map[string]string, len(docs))
	for _, doc := range docs {
		m[doc.ID] = doc.Hash
	}
	return m
}

// SameManifest reports whether two manifests describe an identical corpus.
func SameManifest(a, b map[string]string) bool {
	if len(a) != len(b) {
		return false
	}
	for id, hash := range a {
		if b[id] != hash {
			return false
		}
	}
	return true
}

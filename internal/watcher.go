package internal

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// CorpusWatcher triggers a rebuild when files under a local corpus change.
// Events are debounced so a burst of writes produces one rebuild. Remote
// corpora rely on the periodic pull instead.
type CorpusWatcher struct {
	root     string
	indexer  *Indexer
	debounce time.Duration
	logger   *slog.Logger
}

func NewCorpusWatcher(root string, indexer *Indexer, debounce time.Duration, logger *slog.Logger) *CorpusWatcher {
	if debounce <= 0 {
		debounce = 500 * time.Millisecond
	}
	return &CorpusWatcher{
		root:     root,
		indexer:  indexer,
		debounce: debounce,
		logger:   logger,
	}
}

// Run blocks until the context ends.
func (w *CorpusWatcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := addWatchDirs(watcher, w.root); err != nil {
		return fmt.Errorf("add watch dirs: %w", err)
	}

	w.logger.Info("watching corpus", "path", w.root)

	timer := time.NewTimer(0)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !relevantEvent(event) {
				continue
			}
			if !pending {
				timer.Reset(w.debounce)
				pending = true
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("watch error", "error", err)
		case <-timer.C:
			pending = false
			if err := w.indexer.Rebuild(ctx); err != nil {
				w.logger.Error("watch rebuild failed, serving stale index", "error", err)
			}
		}
	}
}

func addWatchDirs(watcher *fsnotify.Watcher, root string) error {
	return filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if info.IsDir() {
			base := filepath.Base(path)
			if strings.HasPrefix(base, ".") && path != root {
				return filepath.SkipDir
			}
			return watcher.Add(path)
		}
		return nil
	})
}

func relevantEvent(event fsnotify.Event) bool {
	if strings.Contains(event.Name, string(filepath.Separator)+".") {
		return false
	}
	return event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) != 0
}

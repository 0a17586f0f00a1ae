package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/repoqa/repoqa/internal"
	"github.com/spf13/cobra"
)

// core bundles the build-time pipeline: everything needed to produce and
// hold an index, without touching the completion service.
type core struct {
	cfg      *internal.Config
	logger   *slog.Logger
	embedder internal.Embedder
	index    internal.VectorIndex
	indexer  *internal.Indexer
}

func newCore(cmd *cobra.Command) (*core, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := internal.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}

	logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), nil))

	if err := os.MkdirAll(cfg.WorkDir, 0755); err != nil {
		return nil, fmt.Errorf("create work dir: %w", err)
	}

	openaiEmbedder, err := internal.NewOpenAIEmbedder(cfg.Embedding, cfg.Index.Dimension)
	if err != nil {
		return nil, err
	}
	embedder := internal.NewRetryingEmbedder(openaiEmbedder, cfg.Retry, logger)

	chunker, err := internal.NewChunker(cfg.Chunker)
	if err != nil {
		return nil, err
	}

	loader := internal.NewCorpusLoader(cfg.Corpus, cfg.WorkDir, logger)

	index, err := newIndex(cfg)
	if err != nil {
		return nil, err
	}

	indexer := internal.NewIndexer(loader, chunker, embedder, index, cfg.Rebuild.Workers, logger)

	return &core{
		cfg:      cfg,
		logger:   logger,
		embedder: embedder,
		index:    index,
		indexer:  indexer,
	}, nil
}

func newIndex(cfg *internal.Config) (internal.VectorIndex, error) {
	switch cfg.Index.Backend {
	case "annoy":
		idx, err := internal.NewAnnoyIndex(filepath.Join(cfg.WorkDir, "index"), cfg.Index.Dimension, cfg.Index.Trees)
		if err != nil {
			return nil, err
		}
		// A previous `repoqa index` run may have persisted the index; restore
		// it so queries can be served before the first rebuild completes.
		if err := idx.Load(); err != nil {
			return nil, err
		}
		return idx, nil
	default:
		return internal.NewSnapshotIndex(), nil
	}
}

// newOrchestrator wires the query-time path on top of the core. This is the
// only place the completion service gets constructed.
func newOrchestrator(ctx context.Context, c *core) (*internal.Orchestrator, error) {
	provider, err := internal.NewFantasyProvider(ctx, c.cfg.LLM)
	if err != nil {
		return nil, err
	}

	generator, err := internal.NewGenerator(provider, c.cfg.Generator, c.cfg.LLM.Timeout, c.cfg.Retry, c.logger)
	if err != nil {
		return nil, err
	}

	retriever := internal.NewRetriever(c.embedder, c.index, c.indexer.Ready)
	return internal.NewOrchestrator(retriever, generator, c.cfg.Retrieval.TopK, c.logger), nil
}

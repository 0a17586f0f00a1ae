package main

import (
	"os/signal"
	"syscall"

	"github.com/repoqa/repoqa/internal"
	"github.com/spf13/cobra"
)

func NewServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the chat endpoint",
		Long:  `Build the index in the background and serve questions over HTTP. The index is rebuilt periodically; local corpora can additionally be watched for changes.`,
		Args:  cobra.NoArgs,
		RunE:  runServe,
	}
}

func runServe(cmd *cobra.Command, _ []string) error {
	c, err := newCore(cmd)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	orchestrator, err := newOrchestrator(ctx, c)
	if err != nil {
		return err
	}

	// Serve immediately; questions get a "not ready" answer until the
	// first build lands.
	go func() {
		if err := c.indexer.Rebuild(ctx); err != nil {
			c.logger.Error("initial build failed", "error", err)
		}
	}()

	go c.indexer.RunPeriodic(ctx, c.cfg.Rebuild.Interval)

	if c.cfg.Rebuild.Watch && c.cfg.Corpus.Path != "" {
		watcher := internal.NewCorpusWatcher(c.cfg.Corpus.Path, c.indexer, 0, c.logger)
		go func() {
			if err := watcher.Run(ctx); err != nil {
				c.logger.Error("corpus watcher stopped", "error", err)
			}
		}()
	}

	server := internal.NewServer(orchestrator, c.indexer.Ready, c.index.Len, c.logger)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen(c.cfg.Server.Addr)
	}()

	select {
	case <-ctx.Done():
		c.logger.Info("shutting down")
		return server.Shutdown()
	case err := <-errCh:
		return err
	}
}

package main

import (
	"fmt"

	"github.com/repoqa/repoqa/internal"
	"github.com/spf13/cobra"
)

func NewIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Build the vector index from the corpus",
		Long:  `Clone or update the corpus, chunk and embed every document, and build the vector index. With the annoy backend the index is also persisted to the working directory.`,
		Args:  cobra.NoArgs,
		RunE:  runIndex,
	}
}

func runIndex(cmd *cobra.Command, _ []string) error {
	c, err := newCore(cmd)
	if err != nil {
		return err
	}

	if err := c.indexer.Rebuild(cmd.Context()); err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}

	if annoy, ok := c.index.(*internal.AnnoyIndex); ok {
		if err := annoy.Save(); err != nil {
			return fmt.Errorf("save index: %w", err)
		}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "indexed %d segments\n", c.index.Len())
	return nil
}

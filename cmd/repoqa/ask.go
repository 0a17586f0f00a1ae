package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func NewAskCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Ask a single question against the corpus",
		Args:  cobra.ExactArgs(1),
		RunE:  runAsk,
	}
}

func runAsk(cmd *cobra.Command, args []string) error {
	c, err := newCore(cmd)
	if err != nil {
		return err
	}

	if err := c.indexer.Rebuild(cmd.Context()); err != nil {
		return fmt.Errorf("rebuild: %w", err)
	}

	orchestrator, err := newOrchestrator(cmd.Context(), c)
	if err != nil {
		return err
	}

	answer, err := orchestrator.Answer(cmd.Context(), "cli", args[0])
	if err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), answer)
	return nil
}

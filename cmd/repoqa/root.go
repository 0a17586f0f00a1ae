package main

import (
	"github.com/spf13/cobra"
)

func NewRootCmd(version string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "repoqa",
		Short:         "Grounded Q&A over a git-hosted document corpus",
		Long:          `repoqa indexes the documents of a git repository and answers questions about them with a hosted language model, grounded in retrieved passages.`,
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		Run: func(cmd *cobra.Command, _ []string) {
			_ = cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringP("config", "c", "repoqa.yaml", "Path to config file")

	rootCmd.AddCommand(
		NewIndexCmd(),
		NewAskCmd(),
		NewServeCmd(),
	)

	return rootCmd
}

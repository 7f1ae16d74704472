// Package cmd provides the paperdex CLI commands.
package cmd

import (
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/kailas-cloud/paperdex/internal/config"
	"github.com/kailas-cloud/paperdex/internal/version"
)

type rootOptions struct {
	env     string
	command string // running subcommand, names the logger
}

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "paperdex",
		Short: "Chunk, embed and search arXiv papers",
		Long: `paperdex splits academic papers into overlapping chunks, embeds them
and stores them in a Redis hybrid index (KNN + BM25).

Run 'paperdex serve' for the HTTP API, or use the index and search
commands directly against the same index.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			opts.command = cmd.Name()
			// .env is optional, real environment wins
			_ = godotenv.Load()
			if opts.env == "" {
				opts.env = config.GetEnv()
			}
			return nil
		},
	}
	cmd.SetVersionTemplate("paperdex {{.Version}} (" + version.Commit + ", " + version.Date + ")\n")

	cmd.PersistentFlags().StringVar(&opts.env, "env", "", "Config environment, config/<env>.yaml (default $ENV or local)")

	cmd.AddCommand(
		newServeCmd(opts),
		newIndexCmd(opts),
		newReindexCmd(opts),
		newSearchCmd(opts),
	)
	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute() //nolint:wrapcheck // cobra already printed the error
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nickh0112/insta-captions/internal/config"
)

func newResultCommand(ctx *commandContext) *cobra.Command {
	var outputDir string

	cmd := &cobra.Command{
		Use:   "result <job-id>",
		Short: "Download the transcript archive of a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := outputDir
			if dir == "" {
				cwd, err := os.Getwd()
				if err != nil {
					return fmt.Errorf("determine working directory: %w", err)
				}
				dir = cwd
			} else {
				expanded, err := config.ExpandPath(dir)
				if err != nil {
					return fmt.Errorf("resolve output directory: %w", err)
				}
				dir = expanded
			}
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create output directory: %w", err)
			}

			path, err := ctx.apiClient().Result(cmd.Context(), args[0], dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Saved %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVarP(&outputDir, "output", "o", "", "Directory to save the archive into")
	return cmd
}

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/nickh0112/insta-captions/internal/api"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var watch bool

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show the state and progress of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := args[0]
			apiClient := ctx.apiClient()
			out := cmd.OutOrStdout()

			for {
				status, err := apiClient.Status(cmd.Context(), jobID)
				if err != nil {
					return err
				}
				printStatus(out, status)
				if !watch || terminalState(status.State) {
					return nil
				}
				select {
				case <-cmd.Context().Done():
					return cmd.Context().Err()
				case <-time.After(2 * time.Second):
				}
			}
		},
	}

	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Poll until the job reaches a terminal state")
	return cmd
}

func printStatus(out io.Writer, status api.JobStatus) {
	fmt.Fprintf(out, "%s  %-10s %3.0f%%  %s\n", status.JobID, status.State, status.Progress*100, status.Message)
}

func terminalState(state string) bool {
	return state == "completed" || state == "failed"
}

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/nickh0112/insta-captions/internal/api"
)

func newJobsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "jobs",
		Short: "List all jobs known to the daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			all, err := ctx.apiClient().Jobs(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(all) == 0 {
				fmt.Fprintln(out, "No jobs")
				return nil
			}
			fmt.Fprintln(out, renderJobsTable(all))
			return nil
		},
	}
}

func renderJobsTable(all []api.JobStatus) string {
	headers := []string{"Job ID", "State", "Progress", "URLs", "Created", "Message"}
	rows := make([][]string, 0, len(all))
	for _, status := range all {
		rows = append(rows, []string{
			status.JobID,
			status.State,
			fmt.Sprintf("%3.0f%%", status.Progress*100),
			fmt.Sprintf("%d", len(status.URLs)),
			formatCreated(status.CreatedAt),
			truncateMessage(status.Message, 48),
		})
	}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignLeft, alignLeft}
	return renderTable(headers, rows, aligns)
}

func formatCreated(value string) string {
	parsed, err := time.Parse(time.RFC3339, value)
	if err != nil {
		return value
	}
	return parsed.Local().Format("2006-01-02 15:04")
}

func truncateMessage(message string, limit int) string {
	message = strings.TrimSpace(message)
	if len(message) <= limit {
		return message
	}
	return message[:limit-3] + "..."
}

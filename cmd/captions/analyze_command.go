package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nickh0112/insta-captions/internal/analysis"
	"github.com/nickh0112/insta-captions/internal/config"
)

func newAnalyzeCommand(ctx *commandContext) *cobra.Command {
	var reportPath string

	cmd := &cobra.Command{
		Use:         "analyze <transcript-dir>",
		Short:       "Mine transcripts for topics, questions, and content ideas",
		Args:        cobra.ExactArgs(1),
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := config.ExpandPath(args[0])
			if err != nil {
				return fmt.Errorf("resolve transcript directory: %w", err)
			}

			report, err := analysis.AnalyzeDir(dir)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Analyzed %d transcripts\n\n", report.TotalTranscripts)

			fmt.Fprintln(out, "Top topics:")
			for _, topic := range report.TopTopics {
				fmt.Fprintf(out, "  %-16s %d mentions\n", topic.Term, topic.Count)
			}

			if len(report.Questions) > 0 {
				fmt.Fprintln(out, "\nQuestions asked:")
				limit := len(report.Questions)
				if limit > 5 {
					limit = 5
				}
				for _, question := range report.Questions[:limit] {
					fmt.Fprintf(out, "  %s\n", question.Term)
				}
			}

			fmt.Fprintln(out, "\nKeywords:")
			limit := len(report.Keywords)
			if limit > 15 {
				limit = 15
			}
			for _, keyword := range report.Keywords[:limit] {
				fmt.Fprintf(out, "  %-16s %d mentions\n", keyword.Term, keyword.Count)
			}

			fmt.Fprintln(out, "\nContent ideas:")
			for i, idea := range report.Ideas {
				fmt.Fprintf(out, "  %d. %s\n", i+1, idea)
			}

			target := reportPath
			if target == "" {
				target = filepath.Join(dir, "content_analysis.json")
			}
			if err := analysis.WriteReport(report, target); err != nil {
				return err
			}
			fmt.Fprintf(out, "\nReport saved to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVar(&reportPath, "report", "", "Where to write the JSON report")
	return cmd
}

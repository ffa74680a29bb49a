package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var fromFile string

	cmd := &cobra.Command{
		Use:   "submit [url ...]",
		Short: "Submit reel URLs for transcript extraction",
		RunE: func(cmd *cobra.Command, args []string) error {
			urls := append([]string(nil), args...)
			if fromFile != "" {
				fileURLs, err := readURLFile(fromFile)
				if err != nil {
					return err
				}
				urls = append(urls, fileURLs...)
			}
			if len(urls) == 0 {
				return fmt.Errorf("no URLs given (pass them as arguments or use --file)")
			}

			resp, err := ctx.apiClient().Submit(cmd.Context(), urls)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, resp.Message)
			fmt.Fprintf(out, "Job ID: %s\n", resp.JobID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&fromFile, "file", "f", "", "Read URLs from a file, one per line")
	return cmd
}

func readURLFile(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open url file: %w", err)
	}
	defer file.Close()

	var urls []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		urls = append(urls, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read url file: %w", err)
	}
	return urls, nil
}

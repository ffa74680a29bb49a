package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/nickh0112/insta-captions/internal/client"
)

const (
	ansiGreen = "\x1b[32m"
	ansiRed   = "\x1b[31m"
	ansiReset = "\x1b[0m"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check daemon liveness and external tool availability",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			health, err := ctx.apiClient().Health(cmd.Context())
			if err != nil {
				if errors.Is(err, client.ErrDaemonUnavailable) {
					fmt.Fprintln(out, statusLabel(out, false), "daemon not reachable (is captionsd running?)")
					return nil
				}
				return err
			}

			fmt.Fprintln(out, statusLabel(out, health.Running), "daemon running")
			fmt.Fprintf(out, "Active jobs: %d\n", health.ActiveJobs)
			for _, dep := range health.Dependencies {
				detail := dep.Detail
				if !dep.Available {
					detail = "not found"
					if dep.Optional {
						detail = "not found (optional)"
					}
				}
				fmt.Fprintf(out, "%s %-10s %s\n", statusLabel(out, dep.Available || dep.Optional), dep.Name, detail)
			}
			return nil
		},
	}
}

func statusLabel(out io.Writer, ok bool) string {
	label, color := "[fail]", ansiRed
	if ok {
		label, color = "[ ok ]", ansiGreen
	}
	if !shouldColorize(out) {
		return label
	}
	return color + label + ansiReset
}

func shouldColorize(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

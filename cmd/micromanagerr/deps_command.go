package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"micromanagerr/internal/deps"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "deps",
		Short: "Check that the configured probe binaries are available",
		RunE: func(cmd *cobra.Command, args []string) error {
			statuses := deps.CheckBinaries(cmd.Context(), deps.RequiredBinaries(ctx.configValue()))
			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			printLines(out, renderSectionHeader("Dependencies", colorize)...)
			printLines(out, dependencyLines(statuses, colorize)...)
			if deps.MissingRequired(statuses) {
				return errors.New("required dependencies are missing")
			}
			return nil
		},
	}
}

func dependencyLines(statuses []deps.Status, colorize bool) []string {
	lines := make([]string, 0, len(statuses))
	for _, s := range statuses {
		kind, message := statusOK, "Ready (command: "+s.Command+")"
		if s.Version != "" {
			message = fmt.Sprintf("%s %s", s.Path, s.Version)
		}
		if !s.Available {
			kind, message = statusError, s.Detail
			if s.Optional {
				kind = statusWarn
				message += "; " + s.Description + " disabled"
			}
		}
		lines = append(lines, renderStatusLine(s.Name, kind, message, colorize))
	}
	return lines
}

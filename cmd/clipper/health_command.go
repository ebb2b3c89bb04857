package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Show queue and database diagnostics",
		RunE: func(cmd *cobra.Command, args []string) error {
			health, err := ctx.apiClient().Health(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)

			for _, line := range renderSectionHeader("Queue", colorize) {
				fmt.Fprintln(out, line)
			}
			fmt.Fprintln(out, renderStatusLine("Total", statusInfo, fmt.Sprint(health.Queue.Total), colorize))
			fmt.Fprintln(out, renderStatusLine("Queued", statusInfo, fmt.Sprint(health.Queue.Queued), colorize))
			fmt.Fprintln(out, renderStatusLine("Processing", statusInfo, fmt.Sprint(health.Queue.Processing), colorize))
			failedKind := statusOK
			if health.Queue.Failed > 0 {
				failedKind = statusWarn
			}
			fmt.Fprintln(out, renderStatusLine("Failed", failedKind, fmt.Sprint(health.Queue.Failed), colorize))
			fmt.Fprintln(out, renderStatusLine("Completed", statusInfo, fmt.Sprint(health.Queue.Completed), colorize))
			fmt.Fprintln(out, renderStatusLine("Cancelled", statusInfo, fmt.Sprint(health.Queue.Cancelled), colorize))

			for _, line := range renderSectionHeader("Database", colorize) {
				fmt.Fprintln(out, line)
			}
			db := health.Database
			fmt.Fprintln(out, renderStatusLine("Path", statusInfo, db.Path, colorize))
			fmt.Fprintln(out, renderStatusLine("Exists", boolKind(db.Exists), yesNo(db.Exists), colorize))
			fmt.Fprintln(out, renderStatusLine("Readable", boolKind(db.Readable), yesNo(db.Readable), colorize))
			fmt.Fprintln(out, renderStatusLine("Jobs table", boolKind(db.TableExists), yesNo(db.TableExists), colorize))
			fmt.Fprintln(out, renderStatusLine("Integrity check", boolKind(db.IntegrityCheck), yesNo(db.IntegrityCheck), colorize))
			fmt.Fprintln(out, renderStatusLine("Total jobs", statusInfo, fmt.Sprint(db.TotalJobs), colorize))
			if db.Error != "" {
				fmt.Fprintln(out, renderStatusLine("Error", statusError, db.Error, colorize))
			}
			return nil
		},
	}
}

func boolKind(ok bool) statusKind {
	if ok {
		return statusOK
	}
	return statusError
}

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"clipper/internal/api"
	"clipper/internal/queue"
)

func newSubmitCommand(ctx *commandContext) *cobra.Command {
	var audioPath string

	cmd := &cobra.Command{
		Use:   "submit <query>",
		Short: "Submit a new video assembly job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.TrimSpace(args[0])
			if query == "" {
				return fmt.Errorf("query must not be empty")
			}
			if strings.TrimSpace(audioPath) == "" {
				return fmt.Errorf("--audio is required")
			}

			job, err := ctx.apiClient().Submit(cmd.Context(), query, audioPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Submitted job %s\n", job.ID)
			fmt.Fprintf(out, "Query: %s\n", job.Query)
			fmt.Fprintf(out, "Status: %s\n", job.Status)
			return nil
		},
	}

	cmd.Flags().StringVarP(&audioPath, "audio", "a", "", "Path to the narration audio file")
	return cmd
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status [jobID]",
		Short: "Show daemon status or one job's detail",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				job, err := ctx.apiClient().GetJob(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				printJobDetail(cmd, job)
				return nil
			}

			status, err := ctx.apiClient().Status(cmd.Context())
			if err != nil {
				return err
			}
			printDaemonStatus(cmd, status)
			return nil
		},
	}
}

func printDaemonStatus(cmd *cobra.Command, status api.DaemonStatus) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Daemon", colorize) {
		fmt.Fprintln(out, line)
	}
	runningKind := statusError
	runningMessage := "not running"
	if status.Running {
		runningKind = statusOK
		runningMessage = fmt.Sprintf("pid %d", status.PID)
	}
	fmt.Fprintln(out, renderStatusLine("Daemon", runningKind, runningMessage, colorize))
	fmt.Fprintln(out, renderStatusLine("Job database", statusInfo, status.JobDBPath, colorize))

	for _, line := range renderSectionHeader("Queue", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprint(out, renderTable(
		[]string{"Total", "Queued", "Processing", "Failed", "Completed", "Cancelled"},
		[][]string{{
			fmt.Sprint(status.Queue.Total),
			fmt.Sprint(status.Queue.Queued),
			fmt.Sprint(status.Queue.Processing),
			fmt.Sprint(status.Queue.Failed),
			fmt.Sprint(status.Queue.Completed),
			fmt.Sprint(status.Queue.Cancelled),
		}},
		[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignRight, alignRight},
	))
	fmt.Fprintln(out)

	for _, line := range renderSectionHeader("Clip ledger", colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Approved clips", statusInfo, fmt.Sprint(status.Ledger.Approved), colorize))
	fmt.Fprintln(out, renderStatusLine("Rejected clips", statusInfo, fmt.Sprint(status.Ledger.Rejected), colorize))

	if len(status.Stages) > 0 {
		for _, line := range renderSectionHeader("Stages", colorize) {
			fmt.Fprintln(out, line)
		}
		for _, stageHealth := range status.Stages {
			kind := statusOK
			if !stageHealth.Ready {
				kind = statusError
			}
			fmt.Fprintln(out, renderStatusLine(stageHealth.Name, kind, stageHealth.Detail, colorize))
		}
	}
}

func printJobDetail(cmd *cobra.Command, job api.JobDetail) {
	out := cmd.OutOrStdout()
	colorize := shouldColorize(out)

	for _, line := range renderSectionHeader("Job "+job.ID, colorize) {
		fmt.Fprintln(out, line)
	}
	fmt.Fprintln(out, renderStatusLine("Query", statusInfo, job.Query, colorize))
	fmt.Fprintln(out, renderStatusLine("Status", jobStatusKind(job.Status), job.Status, colorize))
	fmt.Fprintln(out, renderStatusLine("Progress", statusInfo, fmt.Sprintf("%.0f%% %s", job.ProgressPercent, job.ProgressMessage), colorize))
	fmt.Fprintln(out, renderStatusLine("Audio", statusInfo, job.AudioPath, colorize))
	if job.FinalFile != "" {
		fmt.Fprintln(out, renderStatusLine("Final file", statusOK, job.FinalFile, colorize))
	}
	if job.Error != nil {
		fmt.Fprintln(out, renderStatusLine("Error", statusError, fmt.Sprintf("%s: %s", job.Error.Kind, job.Error.Message), colorize))
	}
	fmt.Fprintln(out, renderStatusLine("Created", statusInfo, job.CreatedAt.Local().Format(time.RFC3339), colorize))
	if job.CompletedAt != nil {
		fmt.Fprintln(out, renderStatusLine("Completed", statusInfo, job.CompletedAt.Local().Format(time.RFC3339), colorize))
	}

	if len(job.Stages) == 0 {
		return
	}
	rows := make([][]string, 0, len(job.Stages))
	for _, stageView := range job.Stages {
		duration := ""
		if stageView.DurationSeconds > 0 {
			duration = fmt.Sprintf("%.1fs", stageView.DurationSeconds)
		}
		detail := stageView.Error
		if detail == "" {
			detail = stageView.Warning
		}
		rows = append(rows, []string{stageView.Name, stageView.Status, duration, detail})
	}
	fmt.Fprint(out, renderTable(
		[]string{"Stage", "Status", "Duration", "Detail"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft},
	))
	fmt.Fprintln(out)
}

func jobStatusKind(status string) statusKind {
	switch queue.Status(status) {
	case queue.StatusCompleted:
		return statusOK
	case queue.StatusFailed:
		return statusError
	case queue.StatusCancelled:
		return statusWarn
	default:
		return statusInfo
	}
}

func newListCommand(ctx *commandContext) *cobra.Command {
	var listStatuses []string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, status := range listStatuses {
				if _, ok := queue.ParseStatus(status); !ok {
					return fmt.Errorf("unknown status %q", status)
				}
			}

			jobs, err := ctx.apiClient().ListJobs(cmd.Context(), listStatuses...)
			if err != nil {
				return err
			}
			if len(jobs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs found")
				return nil
			}

			rows := make([][]string, 0, len(jobs))
			for _, job := range jobs {
				rows = append(rows, []string{
					job.ID,
					truncate(job.Query, 40),
					job.Status,
					fmt.Sprintf("%.0f%%", job.ProgressPercent),
					job.CreatedAt.Local().Format("2006-01-02 15:04"),
				})
			}
			table := renderTable(
				[]string{"ID", "Query", "Status", "Progress", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			)
			fmt.Fprint(cmd.OutOrStdout(), table)
			fmt.Fprintln(cmd.OutOrStdout())
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&listStatuses, "status", "s", nil, "Filter by job status (repeatable)")
	return cmd
}

func newCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <jobID>",
		Short: "Request cancellation of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.apiClient().Cancel(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for job %s\n", args[0])
			return nil
		},
	}
}

func newRetryCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "retry [jobID...]",
		Short: "Retry failed jobs",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			count, err := ctx.apiClient().RetryFailed(cmd.Context(), args...)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Retried %d failed jobs\n", count)
			return nil
		},
	}
}

func newRemoveCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <jobID>",
		Short: "Remove a job record",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ctx.apiClient().Remove(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Removed job %s\n", args[0])
			return nil
		},
	}
}

func truncate(value string, max int) string {
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}

package main

import (
	"fmt"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/jackkerouac/aphrodite-sub000/internal/api"
	"github.com/jackkerouac/aphrodite-sub000/internal/engine"
	"github.com/jackkerouac/aphrodite-sub000/internal/jobs"
)

func newJobCommand(ctx *commandContext) *cobra.Command {
	jobCmd := &cobra.Command{
		Use:   "job",
		Short: "Submit and inspect badge jobs",
	}

	jobCmd.AddCommand(newJobSubmitCommand(ctx))
	jobCmd.AddCommand(newJobSingleCommand(ctx))
	jobCmd.AddCommand(newJobListCommand(ctx))
	jobCmd.AddCommand(newJobShowCommand(ctx))
	jobCmd.AddCommand(newJobCancelCommand(ctx))
	jobCmd.AddCommand(newJobWatchCommand(ctx))

	return jobCmd
}

func newJobSubmitCommand(ctx *commandContext) *cobra.Command {
	var items []string
	var libraries []string
	var badges []string
	var options []string
	var wait bool

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Submit a batch badge job over items or libraries",
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(items) == 0 && len(libraries) == 0 {
				return usageErrorf("nothing to do: pass --item and/or --library")
			}
			opts, err := parseKeyValues(options)
			if err != nil {
				return err
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}

			req := api.BatchRequest{
				Libraries:  libraries,
				BadgeTypes: badges,
				Options:    opts,
			}
			for _, id := range items {
				req.Items = append(req.Items, api.SubmitItem{ItemID: id})
			}

			job, err := client.SubmitBatch(cmd.Context(), req)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Submitted batch job %s (%d items, badges: %s)\n",
				job.ID, job.Progress.Total, formatBadgeTypes(job.BadgeTypes))
			if wait {
				return watchJob(cmd, client, job.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&items, "item", nil, "Catalog item ID to badge (repeatable)")
	cmd.Flags().StringSliceVar(&libraries, "library", nil, "Library ID to expand into items (repeatable)")
	cmd.Flags().StringSliceVar(&badges, "badge", nil, "Badge type to apply (repeatable; default all enabled)")
	cmd.Flags().StringArrayVar(&options, "option", nil, "Job option as key=value (repeatable)")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Stream progress until the job finishes")
	return cmd
}

func newJobSingleCommand(ctx *commandContext) *cobra.Command {
	var badges []string
	var options []string
	var wait bool

	cmd := &cobra.Command{
		Use:   "single <itemID>",
		Short: "Badge one catalog item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := parseKeyValues(options)
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			job, err := client.SubmitSingle(cmd.Context(), api.SingleRequest{
				ItemID:     args[0],
				BadgeTypes: badges,
				Options:    opts,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Submitted job %s for item %s\n", job.ID, args[0])
			if wait {
				return watchJob(cmd, client, job.ID)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&badges, "badge", nil, "Badge type to apply (repeatable; default all enabled)")
	cmd.Flags().StringArrayVar(&options, "option", nil, "Job option as key=value (repeatable)")
	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Stream progress until the job finishes")
	return cmd
}

func newJobListCommand(ctx *commandContext) *cobra.Command {
	var statuses []string
	var limit int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			listed, err := client.ListJobs(cmd.Context(), limit, statuses)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, api.JobListResponse{Jobs: listed})
			}
			if len(listed) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No jobs")
				return nil
			}
			rows := make([][]string, 0, len(listed))
			for _, job := range listed {
				rows = append(rows, []string{
					job.ID,
					job.Type,
					job.Status,
					formatProgress(job.Progress),
					job.CreatedAt,
				})
			}
			table := renderTable(
				[]string{"ID", "Type", "Status", "Progress", "Created"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignRight, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&statuses, "status", "s", nil, "Filter by job status (repeatable)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 50, "Maximum number of jobs to list")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newJobShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <jobID>",
		Short: "Show a job and its per-item outcomes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			detail, err := client.GetJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, detail)
			}

			out := cmd.OutOrStdout()
			job := detail.Job
			fmt.Fprintf(out, "Job:      %s\n", job.ID)
			fmt.Fprintf(out, "Type:     %s\n", job.Type)
			fmt.Fprintf(out, "Status:   %s\n", job.Status)
			fmt.Fprintf(out, "Badges:   %s\n", formatBadgeTypes(job.BadgeTypes))
			fmt.Fprintf(out, "Progress: %s\n", formatProgress(job.Progress))
			if job.ResultSummary != "" {
				fmt.Fprintf(out, "Summary:  %s\n", job.ResultSummary)
			}
			if job.ErrorMessage != "" {
				fmt.Fprintf(out, "Error:    %s\n", job.ErrorMessage)
			}
			if len(detail.Items) == 0 {
				return nil
			}

			rows := make([][]string, 0, len(detail.Items))
			for _, item := range detail.Items {
				rows = append(rows, []string{
					item.ItemID,
					item.Kind,
					item.Status,
					item.ErrorKind,
					truncate(item.ErrorMessage, 60),
					fmt.Sprint(item.Attempts),
				})
			}
			table := renderTable(
				[]string{"Item", "Kind", "Status", "Error Kind", "Error", "Attempts"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft, alignLeft, alignRight},
			)
			fmt.Fprintln(out, table)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newJobCancelCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <jobID>",
		Short: "Request cancellation of a running job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			cancelled, err := client.CancelJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if cancelled {
				fmt.Fprintf(cmd.OutOrStdout(), "Cancellation requested for job %s\n", args[0])
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s is already finished\n", args[0])
			}
			return nil
		},
	}
}

func newJobWatchCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <jobID>",
		Short: "Stream a job's progress until it finishes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			return watchJob(cmd, client, args[0])
		},
	}
}

// watchJob follows the event stream and reports the terminal outcome through
// the exit code: partial batches and failures are errors, not just text.
func watchJob(cmd *cobra.Command, client *apiClient, jobID string) error {
	out := cmd.OutOrStdout()
	interactive := isatty.IsTerminal(os.Stdout.Fd())

	var last engine.ProgressEvent
	err := client.WatchJob(cmd.Context(), jobID, func(event engine.ProgressEvent) error {
		last = event
		line := fmt.Sprintf("[%s] %d/%d done, %d failed, %d skipped",
			event.Event, event.Progress.Done, event.Progress.Total,
			event.Progress.Failed, event.Progress.Skipped)
		if event.ItemID != "" {
			line += " (item " + event.ItemID
			if event.Status != "" {
				line += ": " + event.Status
			}
			line += ")"
		}
		if interactive && !event.Terminal {
			fmt.Fprintf(out, "\r\033[K%s", line)
		} else {
			if interactive {
				fmt.Fprint(out, "\r\033[K")
			}
			fmt.Fprintln(out, line)
		}
		return nil
	})
	if err != nil {
		return err
	}

	switch jobs.Status(last.Status) {
	case jobs.StatusSucceeded:
		fmt.Fprintf(out, "Job %s succeeded\n", jobID)
		return nil
	case jobs.StatusPartial:
		return &partialBatchError{jobID: jobID, failed: last.Progress.Failed}
	case jobs.StatusFailed:
		return fmt.Errorf("job %s failed: %d of %d item(s) failed", jobID, last.Progress.Failed, last.Progress.Total)
	case jobs.StatusCancelled:
		fmt.Fprintf(out, "Job %s was cancelled\n", jobID)
		return nil
	default:
		return nil
	}
}

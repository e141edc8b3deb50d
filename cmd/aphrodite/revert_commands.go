package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRevertCommand(ctx *commandContext) *cobra.Command {
	var wait bool

	cmd := &cobra.Command{
		Use:   "revert <itemID> [itemID...]",
		Short: "Restore the original posters for the given items",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			job, err := client.SubmitRevert(cmd.Context(), args)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Submitted revert job %s (%d items)\n", job.ID, job.Progress.Total)
			if wait {
				return watchJob(cmd, client, job.ID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Stream progress until the job finishes")
	return cmd
}

func newRestoreAllCommand(ctx *commandContext) *cobra.Command {
	var wait bool
	var confirmed bool

	cmd := &cobra.Command{
		Use:   "restore-all",
		Short: "Restore original posters for every badged item",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !confirmed {
				return usageErrorf("restore-all touches every badged item; rerun with --yes to confirm")
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			job, err := client.RestoreAll(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Submitted restore job %s (%d items)\n", job.ID, job.Progress.Total)
			if wait {
				return watchJob(cmd, client, job.ID)
			}
			return nil
		},
	}

	cmd.Flags().BoolVarP(&wait, "wait", "w", false, "Stream progress until the job finishes")
	cmd.Flags().BoolVarP(&confirmed, "yes", "y", false, "Confirm the catalog-wide restore")
	return cmd
}

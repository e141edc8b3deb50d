package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon runtime status",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.Status(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Running:   %s\n", yesNo(status.Running))
			fmt.Fprintf(out, "PID:       %d\n", status.PID)
			fmt.Fprintf(out, "Version:   %s\n", status.Version)
			fmt.Fprintf(out, "Jobs DB:   %s\n", status.JobsDBPath)
			fmt.Fprintf(out, "Lock file: %s\n", status.LockFilePath)
			fmt.Fprintf(out, "Schedules: %d\n", status.Schedules)
			if len(status.JobCounts) > 0 {
				keys := make([]string, 0, len(status.JobCounts))
				for key := range status.JobCounts {
					keys = append(keys, key)
				}
				sort.Strings(keys)
				fmt.Fprintln(out, "Jobs:")
				for _, key := range keys {
					fmt.Fprintf(out, "  %s: %d\n", key, status.JobCounts[key])
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")
	return cmd
}

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Probe daemon dependencies",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			health, err := client.Health(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				if err := writeJSON(cmd, health); err != nil {
					return err
				}
			} else {
				rows := make([][]string, 0, len(health.Checks))
				for _, check := range health.Checks {
					state := "ok"
					if !check.Ready {
						state = "failing"
					}
					rows = append(rows, []string{check.Name, state, check.Detail})
				}
				table := renderTable(
					[]string{"Check", "State", "Detail"},
					rows,
					[]columnAlignment{alignLeft, alignLeft, alignLeft},
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
			}
			if !health.Healthy {
				return fmt.Errorf("daemon is unhealthy")
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackkerouac/aphrodite-sub000/internal/api"
)

func newScheduleCommand(ctx *commandContext) *cobra.Command {
	scheduleCmd := &cobra.Command{
		Use:   "schedule",
		Short: "Manage recurring badge jobs",
	}

	scheduleCmd.AddCommand(newScheduleListCommand(ctx))
	scheduleCmd.AddCommand(newScheduleCreateCommand(ctx))
	scheduleCmd.AddCommand(newScheduleDeleteCommand(ctx))
	scheduleCmd.AddCommand(newScheduleToggleCommand(ctx, "enable", true))
	scheduleCmd.AddCommand(newScheduleToggleCommand(ctx, "disable", false))

	return scheduleCmd
}

func newScheduleListCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List configured schedules",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			schedules, err := client.ListSchedules(cmd.Context())
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, api.ScheduleListResponse{Schedules: schedules})
			}
			if len(schedules) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No schedules")
				return nil
			}
			rows := make([][]string, 0, len(schedules))
			for _, schedule := range schedules {
				rows = append(rows, []string{
					fmt.Sprint(schedule.ID),
					schedule.Name,
					schedule.CronExpr,
					yesNo(schedule.Enabled),
					formatBadgeTypes(schedule.BadgeTypes),
					schedule.NextRunAt,
				})
			}
			table := renderTable(
				[]string{"ID", "Name", "Cron", "Enabled", "Badges", "Next Run"},
				rows,
				[]columnAlignment{alignRight, alignLeft, alignLeft, alignLeft, alignLeft, alignLeft},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newScheduleCreateCommand(ctx *commandContext) *cobra.Command {
	var cronExpr string
	var badges []string
	var targets []string
	var options []string
	var disabled bool

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a recurring badge job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if cronExpr == "" {
				return usageErrorf("--cron is required")
			}
			opts, err := parseKeyValues(options)
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			created, err := client.CreateSchedule(cmd.Context(), api.ScheduleRequest{
				Name:       args[0],
				CronExpr:   cronExpr,
				Enabled:    !disabled,
				BadgeTypes: badges,
				Options:    opts,
				Targets:    targets,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created schedule %d (%s, cron %q, enabled: %s)\n",
				created.ID, created.Name, created.CronExpr, yesNo(created.Enabled))
			return nil
		},
	}

	cmd.Flags().StringVar(&cronExpr, "cron", "", "Standard five-field cron expression")
	cmd.Flags().StringSliceVar(&badges, "badge", nil, "Badge type to apply (repeatable; default all enabled)")
	cmd.Flags().StringSliceVar(&targets, "library", nil, "Library ID to badge (repeatable; default whole catalog)")
	cmd.Flags().StringArrayVar(&options, "option", nil, "Job option as key=value (repeatable)")
	cmd.Flags().BoolVar(&disabled, "disabled", false, "Create the schedule without enabling it")
	return cmd
}

func newScheduleDeleteCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <scheduleID>",
		Short: "Delete a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseScheduleID(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.DeleteSchedule(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted schedule %d\n", id)
			return nil
		},
	}
}

func newScheduleToggleCommand(ctx *commandContext, verb string, enabled bool) *cobra.Command {
	return &cobra.Command{
		Use:   verb + " <scheduleID>",
		Short: verb + " a schedule",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseScheduleID(args[0])
			if err != nil {
				return err
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			schedule, err := client.SetScheduleEnabled(cmd.Context(), id, enabled)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Schedule %d (%s) enabled: %s\n",
				schedule.ID, schedule.Name, yesNo(schedule.Enabled))
			return nil
		},
	}
}

func parseScheduleID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, usageErrorf("invalid schedule id %q", arg)
	}
	return id, nil
}

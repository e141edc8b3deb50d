package main

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackkerouac/aphrodite-sub000/internal/logging"
)

func newLogsCommand(ctx *commandContext) *cobra.Command {
	var (
		limit  int
		follow bool
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "logs",
		Short: "Tail the daemon log",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			resp, err := client.Logs(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if asJSON && !follow {
				return writeJSON(cmd, resp)
			}
			out := cmd.OutOrStdout()
			for _, event := range resp.Events {
				fmt.Fprintln(out, formatLogEvent(event))
			}
			if !follow {
				return nil
			}

			return client.FollowLogs(cmd.Context(), resp.NextSeq, func(event logging.LogEvent) error {
				fmt.Fprintln(out, formatLogEvent(event))
				return nil
			})
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 100, "Number of recent events to show")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Keep streaming new events")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of text")
	return cmd
}

func formatLogEvent(event logging.LogEvent) string {
	var b strings.Builder
	b.WriteString(event.Timestamp.Local().Format("2006-01-02 15:04:05"))
	b.WriteString(" ")
	b.WriteString(fmt.Sprintf("%-5s", event.Level))
	if event.Component != "" {
		b.WriteString(" [")
		b.WriteString(event.Component)
		b.WriteString("]")
	}
	b.WriteString(" ")
	b.WriteString(event.Message)

	if event.JobID != "" {
		b.WriteString(" job=" + event.JobID)
	}
	if event.ItemID != "" {
		b.WriteString(" item=" + event.ItemID)
	}
	if len(event.Fields) > 0 {
		keys := make([]string, 0, len(event.Fields))
		for key := range event.Fields {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			b.WriteString(" " + key + "=" + event.Fields[key])
		}
	}
	return b.String()
}

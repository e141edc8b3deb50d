package main

import (
	"encoding/base64"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/jackkerouac/aphrodite-sub000/internal/api"
)

func newPosterCommand(ctx *commandContext) *cobra.Command {
	posterCmd := &cobra.Command{
		Use:   "poster",
		Short: "Discover and replace item posters",
	}

	posterCmd.AddCommand(newPosterSourcesCommand(ctx))
	posterCmd.AddCommand(newPosterReplaceCommand(ctx))
	posterCmd.AddCommand(newPosterCustomCommand(ctx))

	return posterCmd
}

func newPosterSourcesCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "sources <itemID>",
		Short: "List alternative poster candidates for an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.PosterSources(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, resp)
			}
			if len(resp.Sources) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No poster sources for item %s\n", args[0])
				return nil
			}
			rows := make([][]string, 0, len(resp.Sources))
			for _, source := range resp.Sources {
				rows = append(rows, []string{
					source.URL,
					fmt.Sprintf("%dx%d", source.Width, source.Height),
					source.Language,
					fmt.Sprintf("%.1f", source.VoteAverage),
				})
			}
			table := renderTable(
				[]string{"URL", "Size", "Language", "Votes"},
				rows,
				[]columnAlignment{alignLeft, alignRight, alignLeft, alignRight},
			)
			fmt.Fprintln(cmd.OutOrStdout(), table)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newPosterReplaceCommand(ctx *commandContext) *cobra.Command {
	var sourceURL string
	var applyBadges bool
	var badges []string

	cmd := &cobra.Command{
		Use:   "replace <itemID>",
		Short: "Replace an item's poster with a discovered source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if sourceURL == "" {
				return usageErrorf("--url is required")
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.ReplacePoster(cmd.Context(), args[0], api.ReplacePosterRequest{
				SourceURL:   sourceURL,
				ApplyBadges: applyBadges || len(badges) > 0,
				BadgeTypes:  badges,
			})
			if err != nil {
				return err
			}
			reportPosterAction(cmd, resp)
			return nil
		},
	}

	cmd.Flags().StringVar(&sourceURL, "url", "", "Source URL from `poster sources`")
	cmd.Flags().BoolVar(&applyBadges, "apply-badges", false, "Queue a badge job for the new poster")
	cmd.Flags().StringSliceVar(&badges, "badge", nil, "Badge type to apply (repeatable; implies --apply-badges)")
	return cmd
}

func newPosterCustomCommand(ctx *commandContext) *cobra.Command {
	var filePath string
	var applyBadges bool
	var badges []string

	cmd := &cobra.Command{
		Use:   "custom <itemID>",
		Short: "Upload a custom poster image for an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if filePath == "" {
				return usageErrorf("--file is required")
			}
			data, err := os.ReadFile(filePath)
			if err != nil {
				return fmt.Errorf("read poster file: %w", err)
			}
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.CustomPoster(cmd.Context(), args[0], api.CustomPosterRequest{
				ImageBase64: base64.StdEncoding.EncodeToString(data),
				ApplyBadges: applyBadges || len(badges) > 0,
				BadgeTypes:  badges,
			})
			if err != nil {
				return err
			}
			reportPosterAction(cmd, resp)
			return nil
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Path to the poster image")
	cmd.Flags().BoolVar(&applyBadges, "apply-badges", false, "Queue a badge job for the new poster")
	cmd.Flags().StringSliceVar(&badges, "badge", nil, "Badge type to apply (repeatable; implies --apply-badges)")
	return cmd
}

func reportPosterAction(cmd *cobra.Command, resp *api.PosterActionResponse) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Poster for item %s replaced\n", resp.ItemID)
	if resp.Job != nil {
		fmt.Fprintf(out, "Badge job %s queued\n", resp.Job.ID)
	}
}

package main

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jackkerouac/aphrodite-sub000/internal/api"
	"github.com/jackkerouac/aphrodite-sub000/internal/config"
	"github.com/jackkerouac/aphrodite-sub000/internal/settings"
)

func newConfigCommand(ctx *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand())
	configCmd.AddCommand(newConfigShowCommand(ctx))
	configCmd.AddCommand(newConfigSetCommand(ctx))

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string
	var overwrite bool

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			} else {
				expanded, err := config.ExpandPath(target)
				if err != nil {
					return fmt.Errorf("resolve config path: %w", err)
				}
				target = expanded
			}

			dir := filepath.Dir(target)
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("create config directory %q: %w", dir, err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if err != nil && !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.CreateSample(target); err != nil {
				return fmt.Errorf("create sample config: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Wrote sample configuration to %s\n", target)
			fmt.Fprintln(out, "Edit the file to set the catalog url and api_key before starting aphrodited.")
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Overwrite existing configuration if present")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "validate",
		Short:       "Validate the configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, path, exists, err := config.Load("")
			if err != nil {
				return &configError{err: err}
			}
			if err := cfg.EnsureDirectories(); err != nil {
				return &configError{err: fmt.Errorf("ensure directories: %w", err)}
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config path: %s\n", path)
			if !exists {
				fmt.Fprintln(out, "Config file did not exist; defaults were used")
			}
			fmt.Fprintln(out, "Configuration valid")
			return nil
		},
	}
}

func newConfigShowCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show <category>",
		Short: "Show one settings category from the daemon",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.ConfigCategory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd, resp)
			}
			printConfigCategory(cmd, resp)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit JSON instead of a table")
	return cmd
}

func newConfigSetCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <category> <key=value[:type]> [key=value[:type]...]",
		Short: "Write settings into one category",
		Long: "Write settings into one category. Each value may carry a type suffix\n" +
			"(string, integer, float, boolean, json); untyped values are strings.",
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			values := make(map[string]api.ConfigValue, len(args)-1)
			for _, pair := range args[1:] {
				key, value, found := strings.Cut(pair, "=")
				key = strings.TrimSpace(key)
				if !found || key == "" {
					return usageErrorf("invalid setting %q: expected key=value", pair)
				}
				values[key] = splitTypedValue(value)
			}

			client, err := ctx.client()
			if err != nil {
				return err
			}
			resp, err := client.UpdateConfig(cmd.Context(), args[0], values)
			if err != nil {
				return err
			}
			printConfigCategory(cmd, resp)
			return nil
		},
	}
	return cmd
}

// splitTypedValue peels a trailing ":type" suffix off a value when the suffix
// names a known setting type; anything else stays part of a string value.
func splitTypedValue(raw string) api.ConfigValue {
	if idx := strings.LastIndex(raw, ":"); idx >= 0 {
		if parsed, ok := settings.ParseValueType(raw[idx+1:]); ok {
			return api.ConfigValue{Value: raw[:idx], Type: string(parsed)}
		}
	}
	return api.ConfigValue{Value: raw, Type: string(settings.TypeString)}
}

func printConfigCategory(cmd *cobra.Command, resp *api.ConfigCategoryResponse) {
	keys := make([]string, 0, len(resp.Values))
	for key := range resp.Values {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	rows := make([][]string, 0, len(keys))
	for _, key := range keys {
		value := resp.Values[key]
		rows = append(rows, []string{key, value.Value, value.Type})
	}
	table := renderTable(
		[]string{"Key", "Value", "Type"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignLeft},
	)
	fmt.Fprintln(cmd.OutOrStdout(), table)
}

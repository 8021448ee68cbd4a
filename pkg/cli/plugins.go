package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/platinummonkey/hatch/pkg/plugins"
	"github.com/platinummonkey/hatch/pkg/reports"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newPluginsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Inspect the plugin catalog",
		Example: `  # List runnable plugins
  hatch plugins list

  # Show a plugin manifest
  hatch plugins info port-scan

  # Report manifests missing required keys
  hatch plugins validate`,
	}

	cmd.AddCommand(newPluginsListCommand(app))
	cmd.AddCommand(newPluginsInfoCommand(app))
	cmd.AddCommand(newPluginsValidateCommand(app))
	cmd.AddCommand(newPluginsWatchCommand(app))

	return cmd
}

func newPluginsListCommand(app *App) *cobra.Command {
	var all bool
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List discovered plugins",
		Long:  `List plugins under the plugin root. Plugins without an entrypoint are only shown with --all.`,
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := app.catalog().Discover(cmd.Context(), all)
			if err != nil {
				return err
			}
			app.observeCatalog(records)
			printPluginTable(app, records)
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Include plugins without an entrypoint")
	return cmd
}

func newPluginsInfoCommand(app *App) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "info <plugin>",
		Short: "Show a plugin manifest",
		Args:  exactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			record, err := app.catalog().Find(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if asJSON {
				data, err := reports.EncodeJSON(record)
				if err != nil {
					return err
				}
				_, err = app.Stdout.Write(data)
				return err
			}
			return printPluginInfo(app, record)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the plugin record as JSON")
	return cmd
}

func newPluginsValidateCommand(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check every manifest declares the required keys",
		Long: `Check every plugin manifest, runnable or not, for the required keys:
` + strings.Join(plugins.RequiredFields, ", ") + `.
Exits 1 when any manifest is incomplete.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := app.catalog().Discover(cmd.Context(), true)
			if err != nil {
				return err
			}
			invalid := app.observeCatalog(records)

			s := app.styles
			for _, record := range records {
				if record.ValidManifest {
					continue
				}
				fmt.Fprintf(app.Stdout, "%s %s: missing %s\n",
					s.Fail.Render("invalid"), record.Name, strings.Join(record.MissingFields, ", "))
			}
			if invalid > 0 {
				fmt.Fprintf(app.Stdout, "%d of %d manifests are incomplete\n", invalid, len(records))
				app.exitCode = ExitFailure
				return nil
			}
			fmt.Fprintf(app.Stdout, "%s %d manifests checked\n", s.OK.Render("valid"), len(records))
			return nil
		},
	}
}

func printPluginTable(app *App, records []*plugins.PluginRecord) {
	if len(records) == 0 {
		fmt.Fprintf(app.Stdout, "No plugins found in %s\n", app.cfg.PluginRoot)
		return
	}

	s := app.styles
	w := tabwriter.NewWriter(app.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tNETWORK POLICY\tRUNNABLE\tMANIFEST")
	for _, record := range records {
		manifest := s.Status(record.ValidManifest)
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			record.Name,
			orDash(record.Manifest.Version()),
			orDash(record.Manifest.NetworkPolicy()),
			s.YesNo(record.Runnable),
			manifest)
	}
	w.Flush()
}

func printPluginInfo(app *App, record *plugins.PluginRecord) error {
	s := app.styles
	out := app.Stdout

	fmt.Fprintf(out, "%s %s\n", s.Title.Render("plugin"), record.Name)
	fmt.Fprintf(out, "path:       %s\n", record.Path)
	fmt.Fprintf(out, "entrypoint: %s\n", record.Entrypoint)
	fmt.Fprintf(out, "runnable:   %s\n", s.YesNo(record.Runnable))
	fmt.Fprintf(out, "policy:     %s\n", s.Status(plugins.CheckPolicy(record.Manifest) == nil))
	if !record.ValidManifest {
		fmt.Fprintf(out, "missing:    %s\n", strings.Join(record.MissingFields, ", "))
	}

	fmt.Fprintln(out, s.Muted.Render("manifest:"))
	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(map[string]any(record.Manifest)); err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}
	return enc.Close()
}

// observeCatalog records catalog metrics and returns the number of invalid manifests
func (a *App) observeCatalog(records []*plugins.PluginRecord) int {
	invalid := 0
	for _, record := range records {
		if !record.ValidManifest {
			invalid++
		}
	}
	a.metrics.ObserveCatalog(len(records), invalid)
	return invalid
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}

func noArgs(cmd *cobra.Command, args []string) error {
	if err := cobra.NoArgs(cmd, args); err != nil {
		return usageError(err)
	}
	return nil
}

func exactArgs(n int) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := cobra.ExactArgs(n)(cmd, args); err != nil {
			return usageError(err)
		}
		return nil
	}
}

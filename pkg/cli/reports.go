package cli

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/platinummonkey/hatch/pkg/reports"
	"github.com/spf13/cobra"
)

const defaultListLimit = 30

func newReportsCommand(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reports",
		Short: "Browse run reports",
	}
	cmd.AddCommand(newReportsListCommand(app))
	cmd.AddCommand(newReportsLatestCommand(app))
	return cmd
}

func newReportsListCommand(app *App) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List report files, newest first",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if limit < 0 {
				return usageError(fmt.Errorf("--limit must not be negative"))
			}
			files, err := reports.ListReports(app.cfg.ReportDir, limit)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Fprintf(app.Stdout, "No reports in %s\n", app.cfg.ReportDir)
				return nil
			}

			w := tabwriter.NewWriter(app.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "MODIFIED\tSIZE\tNAME")
			for _, file := range files {
				fmt.Fprintf(w, "%s\t%d\t%s\n", file.ModTime.Local().Format(time.DateTime), file.Size, file.Name)
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", defaultListLimit, "Maximum number of files to list; 0 lists all")
	return cmd
}

func newReportsLatestCommand(app *App) *cobra.Command {
	var show bool
	cmd := &cobra.Command{
		Use:   "latest",
		Short: "Print the path of the most recent report file",
		Args:  noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			latest, err := reports.LatestReport(app.cfg.ReportDir)
			if err != nil {
				return err
			}
			if !show {
				fmt.Fprintln(app.Stdout, latest.Path)
				return nil
			}
			data, err := os.ReadFile(latest.Path)
			if err != nil {
				return fmt.Errorf("failed to read report: %w", err)
			}
			_, err = app.Stdout.Write(data)
			return err
		},
	}
	cmd.Flags().BoolVar(&show, "show", false, "Print the report contents instead of its path")
	return cmd
}

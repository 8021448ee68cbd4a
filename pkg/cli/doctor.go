package cli

import (
	"fmt"
	"strings"

	"github.com/platinummonkey/hatch/pkg/diagnostics"
	"github.com/spf13/cobra"
)

func newDoctorCommand(app *App) *cobra.Command {
	var noSave bool
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the host can run plugins",
		Long: `Check the interpreter, container tooling, report directory and plugin
manifests. The result is saved as {stamp}_diagnostics.json in the report
directory. Exits 1 when a required check fails; container checks only
inform.`,
		Args: noArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := app.cfg
			report, err := diagnostics.Collect(cmd.Context(), diagnostics.Options{
				Catalog:          app.catalog(),
				ReportDir:        cfg.ReportDir,
				Interpreter:      cfg.Direct.Interpreter,
				ContainerRuntime: cfg.Container.Runtime,
				Version:          Version,
				Ping:             app.ping,
				Logger:           app.log,
			})
			if err != nil {
				return err
			}
			printDiagnostics(app, report)

			if !noSave {
				path, err := diagnostics.Write(cfg.ReportDir, report)
				if err != nil {
					return err
				}
				fmt.Fprintf(app.Stdout, "%s %s\n", app.styles.Muted.Render("saved"), path)
			}
			if !report.OverallOK {
				app.exitCode = ExitFailure
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&noSave, "no-save", false, "Do not write the diagnostics report")
	return cmd
}

func printDiagnostics(app *App, report *diagnostics.Report) {
	s, out := app.styles, app.Stdout
	env := report.Environment

	fmt.Fprintf(out, "%s %s %s (%s, %s)\n", s.Title.Render("hatch doctor"),
		report.Project.Version, report.GeneratedAt, env.GoVersion, env.Platform)

	line := func(ok bool, name, detail string) {
		fmt.Fprintf(out, "  %-4s  %-24s %s\n", s.Status(ok), name, s.Muted.Render(detail))
	}
	line(report.Checks.InterpreterOK, "interpreter", firstNonEmpty(env.InterpreterPath, env.Interpreter, "entrypoint executed directly"))
	line(report.Checks.ReportDirWritable, "report directory", env.ReportDir)
	line(report.Checks.ManifestValidationOK, "manifests",
		fmt.Sprintf("%d plugins, %d runnable, %d invalid",
			report.Plugins.Total, report.Plugins.Runnable, len(report.Plugins.InvalidManifests)))
	line(report.Checks.ContainerRuntimeOK, "container runtime", firstNonEmpty(env.ContainerRuntimePath, env.ContainerRuntime))
	line(report.Checks.DockerDaemonOK, "docker daemon", env.DockerError)

	for _, invalid := range report.Plugins.InvalidManifests {
		fmt.Fprintf(out, "        %s: missing %s\n", invalid.Plugin, strings.Join(invalid.MissingManifestFields, ", "))
	}

	if report.OverallOK {
		fmt.Fprintln(out, s.OK.Render("ready"))
	} else {
		fmt.Fprintln(out, s.Fail.Render("not ready"))
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

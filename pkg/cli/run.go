package cli

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/platinummonkey/hatch/pkg/audit"
	"github.com/platinummonkey/hatch/pkg/lifecycle"
	"github.com/platinummonkey/hatch/pkg/orchestrator"
	"github.com/platinummonkey/hatch/pkg/runner"
	"github.com/spf13/cobra"
)

type runOptions struct {
	container bool
	timeout   time.Duration
	reportDir string
	env       map[string]string
	quiet     bool
}

func newRunCommand(app *App) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run <plugin> [phases...]",
		Short: "Run a plugin",
		Long: `Run the lifecycle phases of a plugin and write a report.

Phases are setup, run and cleanup, given as separate arguments or comma
separated. Unknown phases are ignored; with none left only run is executed.
The plugin must declare network_policy "local-only" in its manifest.`,
		Example: `  # Run the default phase
  hatch run port-scan

  # Run all phases inside a network-less container
  hatch run port-scan setup,run,cleanup --container`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) < 1 {
				return usageError(errors.New("requires a plugin name"))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runPlugin(cmd, app, opts, args)
		},
	}

	cmd.Flags().BoolVar(&opts.container, "container", false, "Run inside the container backend")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", 0, "Wall-clock limit for the run (default from config)")
	cmd.Flags().StringVar(&opts.reportDir, "report-dir", "", "Directory for the run report (default from config)")
	cmd.Flags().StringToStringVar(&opts.env, "env", nil, "Extra plugin environment as KEY=VALUE")
	cmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "Do not print the plugin output")

	return cmd
}

func runPlugin(cmd *cobra.Command, app *App, opts *runOptions, args []string) error {
	cfg := app.cfg

	kind := cfg.BackendKind()
	if opts.container {
		kind = runner.KindContainer
	}
	timeout := cfg.Backend.Timeout
	if opts.timeout > 0 {
		timeout = opts.timeout
	}

	var phases []string
	for _, arg := range args[1:] {
		phases = append(phases, lifecycle.ParsePhases(arg)...)
	}

	var auditLog audit.Logger
	if cfg.AuditLog != "" {
		fileLog, err := audit.NewFileLogger(audit.FileLoggerConfig{Path: cfg.AuditLog})
		if err != nil {
			return err
		}
		defer fileLog.Close()
		auditLog = fileLog
	}

	orch, err := orchestrator.New(orchestrator.Options{
		Catalog:   app.catalog(),
		ReportDir: cfg.ReportDir,
		Runner:    cfg.RunnerConfig(),
		Engine:    cfg.Container.Engine,
		Metrics:   app.metrics,
		Audit:     auditLog,
		Logger:    app.log,
	})
	if err != nil {
		return err
	}

	outcome, err := orch.Run(cmd.Context(), &orchestrator.RunRequest{
		PluginName: args[0],
		Phases:     phases,
		Kind:       kind,
		Timeout:    timeout,
		ReportDir:  opts.reportDir,
		Env:        opts.env,
	})
	if outcome != nil {
		printOutcome(app, outcome, opts.quiet)
		app.exitCode = outcome.ExitCode
	}
	return err
}

func printOutcome(app *App, outcome *orchestrator.RunOutcome, quiet bool) {
	out, s := app.Stdout, app.styles
	result := outcome.Result

	if !quiet {
		printStream(out, s, "stdout", result.Stdout)
		printStream(out, s, "stderr", result.Stderr)
	}

	status := s.OK.Render("finished")
	switch {
	case result.TimedOut:
		status = s.Fail.Render("timed out")
	case result.ReturnCode != 0:
		status = s.Fail.Render("failed")
	}
	fmt.Fprintf(out, "%s %s %s (phases %s, code %d, %.3fs, %s)\n",
		s.Title.Render("plugin"), outcome.Plugin.Name, status,
		strings.Join(outcome.Plan.Phases, ","), result.ReturnCode, result.DurationSec, result.Mode)

	if outcome.Report != nil {
		fmt.Fprintf(out, "%s %s\n", s.Muted.Render("report"), outcome.Report.JSONPath)
		fmt.Fprintf(out, "%s %s\n", s.Muted.Render("report"), outcome.Report.MarkdownPath)
	}
}

func printStream(out io.Writer, s Styles, name, text string) {
	if text == "" {
		return
	}
	fmt.Fprintf(out, "%s\n%s", s.Muted.Render("--- "+name+" ---"), text)
	if !strings.HasSuffix(text, "\n") {
		fmt.Fprintln(out)
	}
}

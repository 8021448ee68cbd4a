package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"runtime/debug"

	"github.com/platinummonkey/hatch/pkg/config"
	"github.com/platinummonkey/hatch/pkg/observability"
	"github.com/platinummonkey/hatch/pkg/plugins"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	Version   = "dev"     // Overridden by ldflags
	BuildTime = "unknown" // Overridden by ldflags
)

// skipSetup marks commands that run without loading configuration
const skipSetup = "hatch/skip-setup"

// globalOptions holds the persistent flags
type globalOptions struct {
	configFile  string
	projectRoot string
	pluginRoot  string
	logLevel    string
	logFormat   string
	metricsFile string
	noColor     bool
}

// App carries the state shared by every command of one invocation
type App struct {
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string

	opts     globalOptions
	cfg      *config.Config
	log      *logrus.Logger
	metrics  *observability.Metrics
	shutdown *observability.ShutdownManager
	styles   Styles
	exitCode int

	// ping replaces the Docker daemon probe in tests
	ping func(ctx context.Context) error
}

// NewApp creates an App writing to the process streams
func NewApp() *App {
	return &App{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Getenv: os.Getenv,
	}
}

// NewRootCommand builds the hatch command tree bound to app
func NewRootCommand(app *App) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "hatch",
		Short: "Hatch - run local security lab plugins safely",
		Long: `Hatch discovers lab plugins under a project directory, refuses any plugin
whose manifest does not declare a local-only network policy, runs the
requested lifecycle phases in a subprocess or a network-less container and
writes a JSON and Markdown report for every run.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !needsSetup(cmd) {
				return nil
			}
			return app.setup(cmd)
		},
	}

	rootCmd.SetVersionTemplate(versionText())
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return usageError(err)
	})

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&app.opts.configFile, "config", "", "Config file path (default is ./"+config.DefaultFile+" when present)")
	flags.StringVar(&app.opts.projectRoot, "project-root", "", "Project root; plugin and report paths are resolved against it")
	flags.StringVar(&app.opts.pluginRoot, "plugin-root", "", "Directory scanned for plugins")
	flags.StringVar(&app.opts.logLevel, "log-level", "", "Log level (trace, debug, info, warn, error)")
	flags.StringVar(&app.opts.logFormat, "log-format", "", "Log format (text, json)")
	flags.StringVar(&app.opts.metricsFile, "metrics-file", "", "Write Prometheus metrics to this file on exit")
	flags.BoolVar(&app.opts.noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(newRunCommand(app))
	rootCmd.AddCommand(newPluginsCommand(app))
	rootCmd.AddCommand(newReportsCommand(app))
	rootCmd.AddCommand(newDoctorCommand(app))
	rootCmd.AddCommand(newVersionCommand(app))

	return rootCmd
}

// Execute runs the command line and returns the process exit code
func (a *App) Execute(ctx context.Context, args []string) int {
	rootCmd := NewRootCommand(a)
	rootCmd.SetArgs(args)
	rootCmd.SetOut(a.Stdout)
	rootCmd.SetErr(a.Stderr)

	err := rootCmd.ExecuteContext(ctx)
	a.close(ctx)

	if err != nil {
		fmt.Fprintf(a.Stderr, "Error: %v\n", err)
		return ExitCode(err)
	}
	return a.exitCode
}

// Execute runs hatch with the process arguments and exits
func Execute() {
	ctx, stop := observability.SignalContext(context.Background())
	code := NewApp().Execute(ctx, os.Args[1:])
	stop()
	os.Exit(code)
}

func needsSetup(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if _, ok := c.Annotations[skipSetup]; ok {
			return false
		}
	}
	return cmd.Name() != "help"
}

// setup loads configuration, applies flag overrides and starts telemetry
func (a *App) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.opts.configFile)
	if err != nil {
		return err
	}
	a.applyOverrides(cmd, cfg)
	if err := cfg.Resolve(); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return usageError(fmt.Errorf("invalid configuration: %w", err))
	}
	a.cfg = cfg

	a.log = observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, a.Stderr)
	a.styles = NewStyles(a.opts.noColor || a.getenv("NO_COLOR") != "")
	a.metrics = observability.NewMetrics(nil)
	a.shutdown = observability.NewShutdownManager(a.log, observability.DefaultShutdownTimeout)

	metricsFile := cfg.Observability.MetricsFile
	a.shutdown.RegisterShutdownFunc(func(context.Context) error {
		return a.metrics.WriteTextfile(metricsFile)
	})

	providers, err := observability.InitOTel(cmd.Context(), cfg.OTelConfig(Version), a.log)
	if err != nil {
		// Tracing is optional; runs go ahead without it
		a.log.WithError(err).Warn("Failed to initialize OpenTelemetry")
	} else if providers != nil {
		a.shutdown.RegisterShutdownFunc(func(ctx context.Context) error {
			return observability.ShutdownOTel(ctx, providers, a.log)
		})
	}

	a.log.WithFields(logrus.Fields{
		"project_root": cfg.ProjectRoot,
		"plugin_root":  cfg.PluginRoot,
		"backend":      cfg.Backend.Kind,
	}).Debug("Configuration loaded")
	return nil
}

func (a *App) applyOverrides(cmd *cobra.Command, cfg *config.Config) {
	flags := cmd.Flags()
	if flags.Changed("project-root") {
		cfg.ProjectRoot = a.opts.projectRoot
	}
	if flags.Changed("plugin-root") {
		cfg.PluginRoot = a.opts.pluginRoot
	}
	if flags.Changed("log-level") {
		cfg.Observability.LogLevel = a.opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Observability.LogFormat = a.opts.logFormat
	}
	if flags.Changed("metrics-file") {
		cfg.Observability.MetricsFile = a.opts.metricsFile
	}
}

func (a *App) close(ctx context.Context) {
	if a.shutdown == nil {
		return
	}
	if err := a.shutdown.Shutdown(ctx); err != nil {
		a.log.WithError(err).Warn("Shutdown hooks failed")
	}
}

func (a *App) getenv(key string) string {
	if a.Getenv == nil {
		return os.Getenv(key)
	}
	return a.Getenv(key)
}

func (a *App) catalog() *plugins.Catalog {
	return plugins.NewCatalog(a.cfg.CatalogConfig(), a.log)
}

func versionText() string {
	return fmt.Sprintf("{{.Name}} version {{.Version}}\nBuild time: %s\nGo version: %s\nPlatform: %s/%s\n",
		BuildTime, goVersion(), runtime.GOOS, runtime.GOARCH)
}

// goVersion returns the Go version used to build the binary
func goVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok {
		return info.GoVersion
	}
	return runtime.Version()
}

package diagnostics

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"sort"
	"sync"
	"time"

	"github.com/platinummonkey/hatch/pkg/plugins"
	"github.com/platinummonkey/hatch/pkg/reports"
	"github.com/platinummonkey/hatch/pkg/runner/docker"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// ProjectName is recorded in every diagnostics report
const ProjectName = "hatch"

// pingTimeout bounds the Docker daemon probe
const pingTimeout = 3 * time.Second

// Options configures a diagnostics run
type Options struct {
	Catalog          *plugins.Catalog // Required
	ReportDir        string
	Interpreter      string // Direct backend interpreter; empty runs entrypoints directly
	ContainerRuntime string
	Version          string

	// Ping probes the Docker daemon. Nil uses the Docker Engine API.
	Ping func(ctx context.Context) error

	Logger *logrus.Logger
}

// Report is the outcome of one diagnostics run
type Report struct {
	GeneratedAt string      `json:"generated_at"`
	Project     Project     `json:"project"`
	Checks      Checks      `json:"checks"`
	Environment Environment `json:"environment"`
	Plugins     PluginStats `json:"plugins"`
	OverallOK   bool        `json:"overall_ok"`
}

// Project identifies the hatch build
type Project struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Checks holds the pass/fail result of each probe
type Checks struct {
	InterpreterOK        bool `json:"interpreter_ok"`
	ContainerRuntimeOK   bool `json:"container_runtime_available"`
	DockerDaemonOK       bool `json:"docker_daemon_reachable"`
	ReportDirWritable    bool `json:"report_dir_writable"`
	ManifestValidationOK bool `json:"manifest_validation_ok"`
}

// Environment records what the probes found
type Environment struct {
	GoVersion            string `json:"go_version"`
	Platform             string `json:"platform"`
	Interpreter          string `json:"interpreter"`
	InterpreterPath      string `json:"interpreter_path"`
	ContainerRuntime     string `json:"container_runtime"`
	ContainerRuntimePath string `json:"container_runtime_path"`
	DockerError          string `json:"docker_error,omitempty"`
	ReportDir            string `json:"report_dir"`
}

// PluginStats summarises the plugin catalog
type PluginStats struct {
	Total            int               `json:"total"`
	Runnable         int               `json:"runnable"`
	InvalidManifests []InvalidManifest `json:"invalid_manifests"`
}

// InvalidManifest lists the required keys a plugin manifest lacks
type InvalidManifest struct {
	Plugin                string   `json:"plugin"`
	MissingManifestFields []string `json:"missing_manifest_fields"`
}

// Collect runs every check concurrently. Checks record failures in the
// report; an error is returned only when the plugin catalog cannot be read.
// The run is healthy when the interpreter resolves, the report directory
// is writable and every manifest is complete. Container checks are
// informational.
func Collect(ctx context.Context, opts Options) (*Report, error) {
	if opts.Catalog == nil {
		return nil, fmt.Errorf("plugin catalog is required")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	log := opts.Logger
	if log == nil {
		log = logrus.New()
	}
	ping := opts.Ping
	if ping == nil {
		ping = docker.Ping
	}

	report := &Report{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339Nano),
		Project:     Project{Name: ProjectName, Version: opts.Version},
		Environment: Environment{
			GoVersion:        runtime.Version(),
			Platform:         runtime.GOOS + "/" + runtime.GOARCH,
			Interpreter:      opts.Interpreter,
			ContainerRuntime: opts.ContainerRuntime,
			ReportDir:        opts.ReportDir,
		},
		Plugins: PluginStats{InvalidManifests: []InvalidManifest{}},
	}

	var mu sync.Mutex // guards report
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		path, ok := checkInterpreter(opts.Interpreter)
		mu.Lock()
		report.Checks.InterpreterOK = ok
		report.Environment.InterpreterPath = path
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		path, err := exec.LookPath(opts.ContainerRuntime)
		mu.Lock()
		report.Checks.ContainerRuntimeOK = opts.ContainerRuntime != "" && err == nil
		report.Environment.ContainerRuntimePath = path
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		pctx, cancel := context.WithTimeout(gctx, pingTimeout)
		defer cancel()
		err := ping(pctx)
		mu.Lock()
		report.Checks.DockerDaemonOK = err == nil
		if err != nil {
			report.Environment.DockerError = err.Error()
		}
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		err := checkReportDir(opts.ReportDir)
		if err != nil {
			log.WithError(err).Debug("Report directory is not writable")
		}
		mu.Lock()
		report.Checks.ReportDirWritable = err == nil
		mu.Unlock()
		return nil
	})

	g.Go(func() error {
		records, err := opts.Catalog.Discover(gctx, true)
		if err != nil {
			return fmt.Errorf("failed to discover plugins: %w", err)
		}

		stats := PluginStats{Total: len(records), InvalidManifests: []InvalidManifest{}}
		for _, record := range records {
			if record.Runnable {
				stats.Runnable++
			}
			if !record.ValidManifest {
				stats.InvalidManifests = append(stats.InvalidManifests, InvalidManifest{
					Plugin:                record.Name,
					MissingManifestFields: record.MissingFields,
				})
			}
		}
		sort.Slice(stats.InvalidManifests, func(i, j int) bool {
			return stats.InvalidManifests[i].Plugin < stats.InvalidManifests[j].Plugin
		})

		mu.Lock()
		report.Plugins = stats
		report.Checks.ManifestValidationOK = len(stats.InvalidManifests) == 0
		mu.Unlock()
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	report.OverallOK = report.Checks.InterpreterOK &&
		report.Checks.ReportDirWritable &&
		report.Checks.ManifestValidationOK

	log.WithFields(logrus.Fields{
		"overall_ok":        report.OverallOK,
		"plugins":           report.Plugins.Total,
		"invalid_manifests": len(report.Plugins.InvalidManifests),
	}).Debug("Diagnostics collected")

	return report, nil
}

// Write stores report as {stamp}_diagnostics.json in dir and returns the path
func Write(dir string, report *Report) (string, error) {
	data, err := reports.EncodeJSON(report)
	if err != nil {
		return "", err
	}
	stamp := time.Now().UTC().Format(reports.StampLayout)
	return reports.WriteExclusive(dir, stamp+"_diagnostics", "json", data)
}

// checkInterpreter resolves the direct backend interpreter. An empty
// interpreter means entrypoints are executed themselves, which needs nothing.
func checkInterpreter(interpreter string) (string, bool) {
	if interpreter == "" {
		return "", true
	}
	path, err := exec.LookPath(interpreter)
	if err != nil {
		return "", false
	}
	return path, true
}

// checkReportDir creates dir if needed and writes then removes a probe file
func checkReportDir(dir string) error {
	if dir == "" {
		return fmt.Errorf("no report directory configured")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	probe, err := os.CreateTemp(dir, ".write_probe-*")
	if err != nil {
		return err
	}
	name := probe.Name()
	_, werr := probe.WriteString("ok")
	cerr := probe.Close()
	rerr := os.Remove(name)
	for _, err := range []error{werr, cerr, rerr} {
		if err != nil {
			return err
		}
	}
	return nil
}

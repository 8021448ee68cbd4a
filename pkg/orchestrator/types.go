package orchestrator

import (
	"time"

	"github.com/platinummonkey/hatch/pkg/lifecycle"
	"github.com/platinummonkey/hatch/pkg/plugins"
	"github.com/platinummonkey/hatch/pkg/reports"
	"github.com/platinummonkey/hatch/pkg/runner"
)

// DefaultReportDir is used when neither the request nor the options name one
const DefaultReportDir = "reports"

// RunRequest asks for one plugin run
type RunRequest struct {
	PluginName string
	Phases     []string          // Phase tokens, e.g. setup, run, cleanup
	Kind       runner.Kind       // Empty means direct
	Timeout    time.Duration     // Zero means runner.DefaultTimeout
	ReportDir  string            // Empty means the orchestrator default
	Env        map[string]string // Extra plugin environment
}

// RunOutcome is the result of a completed run
type RunOutcome struct {
	Plugin   *plugins.PluginRecord
	Plan     lifecycle.Plan
	Result   *runner.ExecutionResult
	Report   *reports.WriteResult
	ExitCode int // The plugin's return code; 0 on success
}

package reports

import (
	"errors"
	"time"
)

// StampLayout is the UTC basic timestamp prefixing every report filename
const StampLayout = "20060102T150405Z"

var (
	// ErrNoReports is returned when a report directory holds no reports
	ErrNoReports = errors.New("no reports found")

	// ErrReportCollision is returned when no free filename could be found
	ErrReportCollision = errors.New("report filename collision")
)

// Report is the persisted record of one plugin run
type Report struct {
	GeneratedAt string            `json:"generated_at"`
	RunID       string            `json:"run_id"`
	Plugin      PluginSnapshot    `json:"plugin"`
	Execution   ExecutionSnapshot `json:"execution"`
	Output      Output            `json:"output"`
}

// PluginSnapshot copies manifest values as declared; absent keys are null
type PluginSnapshot struct {
	Name          string `json:"name"`
	Version       any    `json:"version"`
	Author        any    `json:"author"`
	NetworkPolicy any    `json:"network_policy"`
}

// ExecutionSnapshot describes how the plugin was run and how it ended
type ExecutionSnapshot struct {
	Runner      string   `json:"runner"`
	Phases      []string `json:"phases"`
	ReturnCode  int      `json:"returncode"`
	TimedOut    bool     `json:"timed_out"`
	DurationSec float64  `json:"duration_sec"`
	Mode        string   `json:"mode"`
	Command     []string `json:"command"`
}

// Output is the captured plugin output
type Output struct {
	Stdout string `json:"stdout"`
	Stderr string `json:"stderr"`
}

// ReportFile is one file found in a report directory
type ReportFile struct {
	Path    string    `json:"path"`
	Name    string    `json:"name"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

package runner

import (
	"context"
	"time"
)

// Kind selects an execution backend
type Kind string

const (
	KindDirect    Kind = "direct"
	KindContainer Kind = "container"
)

// Sentinel return codes. Backends report these through ExecutionResult
// instead of returning an error.
const (
	ExitCodeTimeout       = 124
	ExitCodeRuntimeError  = 125
	ExitCodeNotExecutable = 126
	ExitCodeNotFound      = 127
	ExitCodeCancelled     = 130
)

// Environment contract shared with plugins
const (
	// SafeModeEnv must be "1" in the plugin environment; plugins refuse to act otherwise
	SafeModeEnv   = "HATCH_SAFE"
	SafeModeValue = "1"

	NoBytecodeEnv = "PYTHONDONTWRITEBYTECODE"
	ModulePathEnv = "PYTHONPATH"
)

// Defaults
const (
	DefaultTimeout              = 25 * time.Second
	DefaultInterpreter          = "python3"
	DefaultContainerRuntime     = "docker"
	DefaultContainerImage       = "hatch-sandbox:latest"
	DefaultContainerInterpreter = "python"
	DefaultContainerWorkdir     = "/app"
	DefaultTmpfsSize            = "64m"
)

// Backend executes one plugin entrypoint and waits for it to finish.
// Spawn failures and timeouts are reported in the result, never as errors;
// an error means the request itself was rejected before anything ran.
type Backend interface {
	// Execute runs the entrypoint once with the given arguments
	Execute(ctx context.Context, req *ExecutionRequest) (*ExecutionResult, error)

	// Mode names the mechanism used, recorded in reports
	Mode() string
}

// ExecutionRequest describes one invocation
type ExecutionRequest struct {
	Entrypoint string            // Path to the plugin entrypoint file
	Args       []string          // Arguments passed after the entrypoint
	Timeout    time.Duration     // Zero means DefaultTimeout
	Env        map[string]string // Extra environment for the plugin
}

// ExecutionResult is the outcome of one invocation
type ExecutionResult struct {
	Mode        string   `json:"mode"`
	ReturnCode  int      `json:"returncode"`
	Stdout      string   `json:"stdout"`
	Stderr      string   `json:"stderr"`
	TimedOut    bool     `json:"timed_out"`
	DurationSec float64  `json:"duration_sec"`
	Command     []string `json:"command"`
}

// Succeeded reports whether the plugin exited zero
func (r *ExecutionResult) Succeeded() bool {
	return r.ReturnCode == 0 && !r.TimedOut
}

// Config holds settings shared by all backends
type Config struct {
	ProjectRoot string
	Direct      DirectConfig
	Container   ContainerConfig
}

// DirectConfig configures the direct backend
type DirectConfig struct {
	// Interpreter runs the entrypoint. Empty executes the entrypoint itself.
	Interpreter string
}

// ContainerConfig configures container isolation
type ContainerConfig struct {
	Runtime     string // docker or podman, for the cli engine
	Image       string
	Interpreter string
	Workdir     string // Mount point of the project tree
	TmpfsSize   string
}

func (c ContainerConfig) withDefaults() ContainerConfig {
	if c.Runtime == "" {
		c.Runtime = DefaultContainerRuntime
	}
	if c.Image == "" {
		c.Image = DefaultContainerImage
	}
	if c.Interpreter == "" {
		c.Interpreter = DefaultContainerInterpreter
	}
	if c.Workdir == "" {
		c.Workdir = DefaultContainerWorkdir
	}
	if c.TmpfsSize == "" {
		c.TmpfsSize = DefaultTmpfsSize
	}
	return c
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	return d
}

package orchestrator

import (
	"errors"

	"github.com/platinummonkey/hatch/pkg/plugins"
)

var (
	// ErrPluginNotFound is returned when no discovered plugin has the requested name
	ErrPluginNotFound = plugins.ErrPluginNotFound

	// ErrPluginNotRunnable is returned when the plugin has no entrypoint file
	ErrPluginNotRunnable = errors.New("plugin is not runnable")

	// ErrPolicyRejected is returned when the manifest does not declare local-only networking
	ErrPolicyRejected = plugins.ErrPolicyRejected

	// ErrExecutionSetup is returned when the backend refuses the request before spawning
	ErrExecutionSetup = errors.New("execution setup failed")

	// ErrReportWrite is returned when the plugin ran but its report could not be written
	ErrReportWrite = errors.New("report write failed")
)

package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/platinummonkey/hatch/pkg/orchestrator"
)

// Process exit codes for errors raised by hatch itself. A plugin that ran
// exits hatch with its own return code.
const (
	ExitFailure = 1
	ExitUsage   = 2
)

// ErrUsage marks bad arguments, flags or configuration
var ErrUsage = errors.New("usage error")

func usageError(err error) error {
	return fmt.Errorf("%w: %w", ErrUsage, err)
}

// ExitCode maps an error to the process exit code. Refusals before a run
// (policy, unknown plugin, bad usage) exit 2; failures after it exit 1.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, ErrUsage),
		errors.Is(err, orchestrator.ErrPolicyRejected),
		errors.Is(err, orchestrator.ErrPluginNotFound),
		errors.Is(err, orchestrator.ErrPluginNotRunnable):
		return ExitUsage
	case strings.HasPrefix(err.Error(), "unknown command"):
		// cobra does not expose a typed error for this
		return ExitUsage
	default:
		return ExitFailure
	}
}

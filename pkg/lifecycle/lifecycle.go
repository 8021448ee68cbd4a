// Package lifecycle maps requested plugin phases to the argument list of a
// single entrypoint invocation.
//
// All requested phases travel in one call. The plugin interprets the flags in
// order setup, run, cleanup and stops at the first phase that fails, so the
// host must never split phases into separate invocations.
package lifecycle

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// Phase tokens
const (
	PhaseSetup   = "setup"
	PhaseRun     = "run"
	PhaseCleanup = "cleanup"
)

var phaseFlags = map[string]string{
	PhaseSetup:   "--setup",
	PhaseRun:     "--run",
	PhaseCleanup: "--cleanup",
}

// Plan is the recognised phases and the flags passed to the entrypoint
type Plan struct {
	Phases []string `json:"phases"`
	Args   []string `json:"args"`
}

// Flag returns the entrypoint flag for phase
func Flag(phase string) (string, bool) {
	flag, ok := phaseFlags[phase]
	return flag, ok
}

// ParsePhases splits a comma separated phase specification such as
// "setup,run,cleanup". Empty items are skipped; tokens are not validated.
func ParsePhases(spec string) []string {
	var tokens []string
	for _, part := range strings.Split(spec, ",") {
		if token := strings.TrimSpace(part); token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

// Dispatcher builds argument plans, warning about tokens it drops
type Dispatcher struct {
	log *logrus.Logger
}

// NewDispatcher creates a dispatcher logging to log
func NewDispatcher(log *logrus.Logger) *Dispatcher {
	if log == nil {
		log = logrus.New()
	}
	return &Dispatcher{log: log}
}

// BuildArgs keeps recognised tokens in request order and maps each to its
// flag. Unknown tokens are dropped with a warning. When nothing is left the
// plan is a single run phase.
func (d *Dispatcher) BuildArgs(tokens []string) Plan {
	var plan Plan
	for _, raw := range tokens {
		token := strings.ToLower(strings.TrimSpace(raw))
		flag, ok := phaseFlags[token]
		if !ok {
			d.log.Warnf("Ignoring unknown phase %q", raw)
			continue
		}
		plan.Phases = append(plan.Phases, token)
		plan.Args = append(plan.Args, flag)
	}

	if len(plan.Args) == 0 {
		return Plan{Phases: []string{PhaseRun}, Args: []string{phaseFlags[PhaseRun]}}
	}
	return plan
}

// BuildArgs builds a plan with a default dispatcher
func BuildArgs(tokens []string) Plan {
	return NewDispatcher(nil).BuildArgs(tokens)
}

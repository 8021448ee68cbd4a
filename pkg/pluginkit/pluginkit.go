// Package pluginkit is the plugin side of the hatch lifecycle contract, for
// plugins written in Go.
//
// hatch invokes a plugin entrypoint once with any of --setup, --run and
// --cleanup. Dispatch runs the matching hooks in that fixed order and stops
// at the first hook that fails:
//
//	func main() {
//		pluginkit.Main(pluginkit.Funcs{
//			RunFunc: func(ctx context.Context) int {
//				fmt.Println("hello from the sandbox")
//				return 0
//			},
//		})
//	}
package pluginkit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"
)

// Environment contract, mirrored from the host
const (
	SafeModeEnv   = "HATCH_SAFE"
	SafeModeValue = "1"
)

// Exit codes
const (
	ExitOK      = 0
	ExitRefused = 1
	ExitUsage   = 2
)

// Plugin implements the three lifecycle hooks. Each returns 0 on success.
type Plugin interface {
	Setup(ctx context.Context) int
	Run(ctx context.Context) int
	Cleanup(ctx context.Context) int
}

// Funcs adapts plain functions to Plugin. Nil hooks succeed.
type Funcs struct {
	SetupFunc   func(ctx context.Context) int
	RunFunc     func(ctx context.Context) int
	CleanupFunc func(ctx context.Context) int
}

func (f Funcs) Setup(ctx context.Context) int   { return call(ctx, f.SetupFunc) }
func (f Funcs) Run(ctx context.Context) int     { return call(ctx, f.RunFunc) }
func (f Funcs) Cleanup(ctx context.Context) int { return call(ctx, f.CleanupFunc) }

func call(ctx context.Context, fn func(context.Context) int) int {
	if fn == nil {
		return ExitOK
	}
	return fn(ctx)
}

// Phases are the lifecycle flags found on a command line
type Phases struct {
	Setup   bool
	Run     bool
	Cleanup bool
}

// ParseArgs reads the lifecycle flags from args. Unknown arguments are
// ignored. Without any lifecycle flag only the run phase is selected.
func ParseArgs(args []string) (Phases, error) {
	var p Phases

	fs := pflag.NewFlagSet("plugin", pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.BoolVar(&p.Setup, "setup", false, "Run setup hook")
	fs.BoolVar(&p.Run, "run", false, "Run main hook")
	fs.BoolVar(&p.Cleanup, "cleanup", false, "Run cleanup hook")

	if err := fs.Parse(args); err != nil {
		return Phases{}, err
	}

	if !p.Setup && !p.Run && !p.Cleanup {
		p.Run = true
	}
	return p, nil
}

// Dispatch runs the hooks selected by args in order setup, run, cleanup,
// skipping the rest once one returns nonzero. It refuses to run unless
// getenv reports the safety token set by the host, so a plugin started by
// hand does nothing.
func Dispatch(ctx context.Context, p Plugin, args []string, getenv func(string) string) int {
	return dispatch(ctx, p, args, getenv, os.Stderr)
}

func dispatch(ctx context.Context, p Plugin, args []string, getenv func(string) string, stderr io.Writer) int {
	if getenv == nil {
		getenv = os.Getenv
	}
	if getenv(SafeModeEnv) != SafeModeValue {
		fmt.Fprintf(stderr, "[hatch] Plugins must be run via the hatch sandbox (%s=%s)\n", SafeModeEnv, SafeModeValue)
		return ExitRefused
	}

	phases, err := ParseArgs(args)
	if errors.Is(err, pflag.ErrHelp) {
		fmt.Fprintln(stderr, "usage: plugin [--setup] [--run] [--cleanup]")
		return ExitOK
	}
	if err != nil {
		fmt.Fprintf(stderr, "[hatch] %v\n", err)
		return ExitUsage
	}

	code := ExitOK
	if phases.Setup {
		code = p.Setup(ctx)
	}
	if phases.Run && code == ExitOK {
		code = p.Run(ctx)
	}
	if phases.Cleanup && code == ExitOK {
		code = p.Cleanup(ctx)
	}
	return code
}

// Main dispatches with the process arguments and environment and exits
// with the resulting code. SIGINT and SIGTERM cancel the hook context.
func Main(p Plugin) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := Dispatch(ctx, p, os.Args[1:], os.Getenv)
	stop()
	os.Exit(code)
}

package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os/exec"
	"strings"
	"syscall"
	"time"
)

// waitDelay bounds how long Wait blocks on output pipes after the process
// group has been killed
const waitDelay = 2 * time.Second

const (
	timeoutNotice   = "\n[hatch] Plugin execution timed out."
	cancelledNotice = "\n[hatch] Plugin execution cancelled."
)

// process is one child invocation shared by the direct and cli container backends
type process struct {
	argv    []string
	env     []string
	dir     string
	timeout time.Duration
	mode    string

	// onKill runs after the child was killed on timeout or cancellation,
	// for cleanup the process group kill cannot reach
	onKill func()
}

// runProcess executes p and always returns a result. Missing executables,
// timeouts and cancellation are mapped to sentinel return codes.
func runProcess(ctx context.Context, p process) *ExecutionResult {
	result := &ExecutionResult{
		Mode:    p.mode,
		Command: p.argv,
	}

	start := time.Now()
	defer func() {
		result.DurationSec = DurationSeconds(time.Since(start))
	}()

	path, err := exec.LookPath(p.argv[0])
	if err != nil {
		applySpawnError(result, p.argv[0], err)
		return result
	}

	execCtx, cancel := context.WithTimeout(ctx, timeoutOrDefault(p.timeout))
	defer cancel()

	if ctx.Err() != nil {
		MarkInterrupted(result, execCtx.Err())
		return result
	}

	cmd := exec.CommandContext(execCtx, path, p.argv[1:]...)
	cmd.Dir = p.dir
	cmd.Env = p.env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	setProcessGroup(cmd)
	cmd.Cancel = func() error {
		return killProcessGroup(cmd)
	}
	cmd.WaitDelay = waitDelay

	if err := cmd.Start(); err != nil {
		applySpawnError(result, p.argv[0], err)
		return result
	}

	waitErr := cmd.Wait()

	// Background children left in the group must not outlive the call
	_ = killProcessGroup(cmd)

	result.Stdout = DecodeOutput(stdout.Bytes())
	result.Stderr = DecodeOutput(stderr.Bytes())

	if waitErr != nil && execCtx.Err() != nil {
		MarkInterrupted(result, execCtx.Err())
		if p.onKill != nil {
			p.onKill()
		}
		return result
	}

	result.ReturnCode = exitCode(cmd.ProcessState)
	if waitErr != nil {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			result.Stderr += fmt.Sprintf("\n[hatch] %v", waitErr)
		}
	}

	return result
}

// MarkInterrupted records a kill caused by cause: a deadline becomes a
// timeout (124), anything else a cancellation (130)
func MarkInterrupted(result *ExecutionResult, cause error) {
	if errors.Is(cause, context.DeadlineExceeded) {
		result.TimedOut = true
		result.ReturnCode = ExitCodeTimeout
		result.Stderr += timeoutNotice
		return
	}
	result.ReturnCode = ExitCodeCancelled
	result.Stderr += cancelledNotice
}

func applySpawnError(result *ExecutionResult, name string, err error) {
	if errors.Is(err, fs.ErrPermission) {
		result.ReturnCode = ExitCodeNotExecutable
		result.Stderr = fmt.Sprintf("[hatch] Executable not permitted: %s", name)
		return
	}
	if errors.Is(err, syscall.ENOEXEC) {
		result.ReturnCode = ExitCodeNotExecutable
		result.Stderr = fmt.Sprintf("[hatch] Executable format not recognised: %s", name)
		return
	}
	result.ReturnCode = ExitCodeNotFound
	result.Stderr = fmt.Sprintf("[hatch] Executable not found: %s", name)
}

// NotFoundResult is returned when the entrypoint file itself is missing
func NotFoundResult(mode string, argv []string, err error) *ExecutionResult {
	return &ExecutionResult{
		Mode:       mode,
		ReturnCode: ExitCodeNotFound,
		Stderr:     fmt.Sprintf("[hatch] %v", err),
		Command:    argv,
	}
}

// DecodeOutput converts captured bytes to text, replacing invalid UTF-8
func DecodeOutput(b []byte) string {
	return strings.ToValidUTF8(string(b), "\uFFFD")
}

// DurationSeconds converts d to seconds rounded to milliseconds
func DurationSeconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}

package docker

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/platinummonkey/hatch/pkg/runner"
	"github.com/sirupsen/logrus"
)

const (
	// EngineAPI selects this package through runner.New
	EngineAPI = "api"

	// ModeDockerAPI is recorded as the result mode
	ModeDockerAPI = "docker-api"

	cleanupTimeout = 30 * time.Second
)

func init() {
	runner.RegisterEngine(EngineAPI, func(cfg runner.Config, log *logrus.Logger) (runner.Backend, error) {
		return NewBackend(cfg, log)
	})
}

// Backend runs plugin entrypoints in containers through the Docker Engine
// API, with the same isolation the cli engine requests on the command line
type Backend struct {
	projectRoot string
	cfg         runner.ContainerConfig
	api         containerAPI
	log         *logrus.Logger
}

// NewBackend creates an api engine backend. The daemon is not contacted until
// the first Execute call.
func NewBackend(cfg runner.Config, log *logrus.Logger) (*Backend, error) {
	api, err := newSDKClient()
	if err != nil {
		return nil, err
	}
	return newBackend(cfg, api, log)
}

func newBackend(cfg runner.Config, api containerAPI, log *logrus.Logger) (*Backend, error) {
	if cfg.ProjectRoot == "" {
		return nil, runner.ErrProjectRootRequired
	}
	if log == nil {
		log = logrus.New()
	}

	root, err := filepath.Abs(cfg.ProjectRoot)
	if err != nil {
		return nil, err
	}

	return &Backend{
		projectRoot: root,
		cfg:         cfg.Container,
		api:         api,
		log:         log,
	}, nil
}

// Mode returns "docker-api"
func (b *Backend) Mode() string {
	return ModeDockerAPI
}

// Close releases the API client
func (b *Backend) Close() error {
	return b.api.Close()
}

// Execute runs the entrypoint in a new container and waits for it. Daemon
// and container setup failures are reported as ExitCodeNotFound results. The
// request timeout bounds the whole call, image pull included; on timeout the
// container is killed and ExitCodeTimeout is returned.
func (b *Backend) Execute(ctx context.Context, req *runner.ExecutionRequest) (*runner.ExecutionResult, error) {
	start := time.Now()

	plan, err := runner.PlanContainer(b.cfg, b.projectRoot, req)
	if err != nil {
		if errors.Is(err, runner.ErrEntrypointNotFound) {
			return runner.NotFoundResult(b.Mode(), []string{"docker", "run", req.Entrypoint}, err), nil
		}
		return nil, err
	}

	result := &runner.ExecutionResult{
		Mode:    b.Mode(),
		Command: plan.Argv("docker"),
	}
	defer func() {
		result.DurationSec = runner.DurationSeconds(time.Since(start))
	}()

	log := b.log.WithFields(logrus.Fields{
		"mode":      b.Mode(),
		"container": plan.Name,
		"image":     plan.Image,
	})

	// The timeout covers the image pull and container setup as well as the run
	execCtx, cancel := context.WithTimeout(ctx, timeoutOrDefault(req.Timeout))
	defer cancel()

	if err := b.api.Ping(execCtx); err != nil {
		setupFailed(execCtx, result, err)
		return result, nil
	}
	if err := b.api.EnsureImage(execCtx, plan.Image); err != nil {
		setupFailed(execCtx, result, err)
		return result, nil
	}

	id, err := b.api.Create(execCtx, plan)
	if err != nil {
		setupFailed(execCtx, result, err)
		return result, nil
	}
	defer func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		defer cancel()
		if err := b.api.Remove(cleanupCtx, id); err != nil {
			log.Warnf("Failed to remove container: %v", err)
		}
	}()

	if err := b.api.Start(execCtx, id); err != nil {
		setupFailed(execCtx, result, err)
		return result, nil
	}
	log.Debug("Started plugin container")

	status, waitErr := b.api.Wait(execCtx, id)

	interrupted := waitErr != nil && execCtx.Err() != nil
	if interrupted {
		killCtx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
		if err := b.api.Kill(killCtx, id); err != nil {
			log.Warnf("Failed to kill container: %v", err)
		}
		cancel()
	}

	logsCtx, cancelLogs := context.WithTimeout(context.Background(), cleanupTimeout)
	defer cancelLogs()
	stdout, stderr, err := b.api.Logs(logsCtx, id)
	if err != nil {
		log.Warnf("Failed to read container logs: %v", err)
	}
	result.Stdout = runner.DecodeOutput([]byte(stdout))
	result.Stderr = runner.DecodeOutput([]byte(stderr))

	switch {
	case interrupted:
		runner.MarkInterrupted(result, execCtx.Err())
	case waitErr != nil:
		result.ReturnCode = runner.ExitCodeRuntimeError
		result.Stderr += fmt.Sprintf("\n[hatch] %v", waitErr)
	default:
		result.ReturnCode = int(status)
	}

	return result, nil
}

// setupFailed records a failure before the plugin ran. A step cut short by
// the run's deadline or cancellation is reported like an interrupted run.
func setupFailed(execCtx context.Context, result *runner.ExecutionResult, err error) {
	if cause := execCtx.Err(); cause != nil {
		runner.MarkInterrupted(result, cause)
		return
	}
	result.ReturnCode = runner.ExitCodeNotFound
	result.Stderr = fmt.Sprintf("[hatch] %v", err)
}

func timeoutOrDefault(d time.Duration) time.Duration {
	if d <= 0 {
		return runner.DefaultTimeout
	}
	return d
}

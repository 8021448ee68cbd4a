package runner

import (
	"context"
	"errors"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
)

// ModeSubprocess is the Mode of the direct backend
const ModeSubprocess = "subprocess"

// DirectBackend runs the entrypoint as a child process of the host
type DirectBackend struct {
	projectRoot string
	interpreter string
	log         *logrus.Logger
}

// NewDirectBackend creates a direct backend rooted at cfg.ProjectRoot
func NewDirectBackend(cfg Config, log *logrus.Logger) (*DirectBackend, error) {
	if cfg.ProjectRoot == "" {
		return nil, ErrProjectRootRequired
	}
	if log == nil {
		log = logrus.New()
	}

	root, err := filepath.Abs(cfg.ProjectRoot)
	if err != nil {
		return nil, err
	}

	return &DirectBackend{
		projectRoot: root,
		interpreter: cfg.Direct.Interpreter,
		log:         log,
	}, nil
}

// Mode returns "subprocess"
func (b *DirectBackend) Mode() string {
	return ModeSubprocess
}

// Execute runs {interpreter} {entrypoint} {args...} with the working
// directory pinned to the project root and the safety token set
func (b *DirectBackend) Execute(ctx context.Context, req *ExecutionRequest) (*ExecutionResult, error) {
	args := defaultArgs(req.Args)

	entrypoint, _, err := ResolveEntrypoint(b.projectRoot, req.Entrypoint)
	if err != nil {
		if errors.Is(err, ErrEntrypointNotFound) {
			return NotFoundResult(b.Mode(), b.command(req.Entrypoint, args), err), nil
		}
		return nil, err
	}

	argv := b.command(entrypoint, args)
	b.log.WithFields(logrus.Fields{
		"mode":    b.Mode(),
		"command": argv,
		"timeout": timeoutOrDefault(req.Timeout),
	}).Debug("Executing plugin")

	return runProcess(ctx, process{
		argv:    argv,
		env:     SafeEnv(os.Environ(), b.projectRoot, req.Env),
		dir:     b.projectRoot,
		timeout: req.Timeout,
		mode:    b.Mode(),
	}), nil
}

func (b *DirectBackend) command(entrypoint string, args []string) []string {
	var argv []string
	if b.interpreter != "" {
		argv = append(argv, b.interpreter)
	}
	argv = append(argv, entrypoint)
	return append(argv, args...)
}

// defaultArgs mirrors the plugin-side default of a single run phase
func defaultArgs(args []string) []string {
	if len(args) == 0 {
		return []string{"--run"}
	}
	return append([]string(nil), args...)
}

package runner

import (
	"context"
	"errors"
	"os"
	"os/exec"
	"path"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// ContainerNamePrefix prefixes the name of every container started for a plugin
const ContainerNamePrefix = "hatch-"

// killTimeout bounds the best-effort container kill after a timeout
const killTimeout = 10 * time.Second

// Mount is a bind mount of a host directory into the container
type Mount struct {
	Source   string
	Target   string
	ReadOnly bool
}

// ContainerPlan is the engine-independent description of one isolated run:
// no network, read-only root filesystem, a size-capped scratch tmpfs and the
// project tree mounted read-only at the working directory.
type ContainerPlan struct {
	Name    string
	Image   string
	Cmd     []string
	Env     []string
	Mount   Mount
	Tmpfs   map[string]string
	Workdir string
}

// PlanContainer resolves the entrypoint under projectRoot and builds the
// container description for req
func PlanContainer(cfg ContainerConfig, projectRoot string, req *ExecutionRequest) (*ContainerPlan, error) {
	cfg = cfg.withDefaults()

	_, rel, err := ResolveEntrypoint(projectRoot, req.Entrypoint)
	if err != nil {
		return nil, err
	}

	root, err := realPath(projectRoot)
	if err != nil {
		return nil, err
	}

	env := []string{
		SafeModeEnv + "=" + SafeModeValue,
		NoBytecodeEnv + "=1",
	}
	for _, key := range sortedKeys(req.Env) {
		if key == SafeModeEnv || key == NoBytecodeEnv {
			continue
		}
		env = append(env, key+"="+req.Env[key])
	}

	cmd := []string{cfg.Interpreter, path.Clean(rel)}
	cmd = append(cmd, defaultArgs(req.Args)...)

	return &ContainerPlan{
		Name:    ContainerNamePrefix + uuid.New().String(),
		Image:   cfg.Image,
		Cmd:     cmd,
		Env:     env,
		Mount:   Mount{Source: filepath.ToSlash(root), Target: cfg.Workdir, ReadOnly: true},
		Tmpfs:   map[string]string{"/tmp": "rw,noexec,nosuid,size=" + cfg.TmpfsSize},
		Workdir: cfg.Workdir,
	}, nil
}

// Argv renders the plan as a docker/podman command line
func (p *ContainerPlan) Argv(runtime string) []string {
	argv := []string{
		runtime, "run", "--rm",
		"--name", p.Name,
		"--network", "none",
		"--read-only",
	}
	for _, target := range sortedKeys(p.Tmpfs) {
		argv = append(argv, "--tmpfs", target+":"+p.Tmpfs[target])
	}
	for _, kv := range p.Env {
		argv = append(argv, "-e", kv)
	}

	volume := p.Mount.Source + ":" + p.Mount.Target
	if p.Mount.ReadOnly {
		volume += ":ro"
	}
	argv = append(argv, "-v", volume, "-w", p.Workdir, p.Image)
	return append(argv, p.Cmd...)
}

// ContainerBackend runs the entrypoint inside a container by invoking the
// runtime binary (docker or podman)
type ContainerBackend struct {
	projectRoot string
	cfg         ContainerConfig
	log         *logrus.Logger
}

// NewContainerBackend creates a cli container backend
func NewContainerBackend(cfg Config, log *logrus.Logger) (*ContainerBackend, error) {
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

	return &ContainerBackend{
		projectRoot: root,
		cfg:         cfg.Container.withDefaults(),
		log:         log,
	}, nil
}

// Mode returns the runtime binary name
func (b *ContainerBackend) Mode() string {
	return filepath.Base(b.cfg.Runtime)
}

// Execute runs the entrypoint in a fresh container and waits for it. On
// timeout the runtime client is killed and the container is killed by name.
func (b *ContainerBackend) Execute(ctx context.Context, req *ExecutionRequest) (*ExecutionResult, error) {
	plan, err := PlanContainer(b.cfg, b.projectRoot, req)
	if err != nil {
		if errors.Is(err, ErrEntrypointNotFound) {
			argv := append([]string{b.cfg.Runtime, "run", b.cfg.Image, b.cfg.Interpreter, req.Entrypoint}, defaultArgs(req.Args)...)
			return NotFoundResult(b.Mode(), argv, err), nil
		}
		return nil, err
	}

	argv := plan.Argv(b.cfg.Runtime)
	log := b.log.WithFields(logrus.Fields{
		"mode":      b.Mode(),
		"container": plan.Name,
		"image":     plan.Image,
	})
	log.Debug("Starting plugin container")

	return runProcess(ctx, process{
		argv:    argv,
		env:     os.Environ(),
		timeout: req.Timeout,
		mode:    b.Mode(),
		onKill: func() {
			killCtx, cancel := context.WithTimeout(context.Background(), killTimeout)
			defer cancel()
			if err := exec.CommandContext(killCtx, b.cfg.Runtime, "kill", plan.Name).Run(); err != nil {
				log.Warnf("Failed to kill container %s: %v", plan.Name, err)
			}
		},
	}), nil
}

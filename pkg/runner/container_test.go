//go:build !windows

package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeRuntime stands in for docker: it echoes its arguments, optionally
// sleeps, and records the container name passed to "kill"
const fakeRuntime = `
if [ "$1" = "kill" ]; then
  echo "$2" > "$HATCH_FAKE_KILLED"
  exit 0
fi
echo "$@"
if [ -n "$HATCH_FAKE_SLEEP" ]; then
  sleep "$HATCH_FAKE_SLEEP"
fi
exit "${HATCH_FAKE_EXIT:-0}"
`

func TestPlanContainer(t *testing.T) {
	root := realTempDir(t)
	writeScript(t, root, "plugins/demo/plugin.py", "")

	plan, err := PlanContainer(ContainerConfig{}, root, &ExecutionRequest{
		Entrypoint: filepath.Join(root, "plugins", "demo", "plugin.py"),
		Args:       []string{"--setup", "--run"},
		Env:        map[string]string{"LAB": "1", SafeModeEnv: "0"},
	})
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(plan.Name, ContainerNamePrefix))
	assert.Equal(t, DefaultContainerImage, plan.Image)
	assert.Equal(t, []string{"python", "plugins/demo/plugin.py", "--setup", "--run"}, plan.Cmd)
	assert.Equal(t, []string{"HATCH_SAFE=1", "PYTHONDONTWRITEBYTECODE=1", "LAB=1"}, plan.Env)
	assert.Equal(t, Mount{Source: root, Target: "/app", ReadOnly: true}, plan.Mount)
	assert.Equal(t, map[string]string{"/tmp": "rw,noexec,nosuid,size=64m"}, plan.Tmpfs)

	argv := plan.Argv("docker")
	assert.Equal(t, []string{
		"docker", "run", "--rm",
		"--name", plan.Name,
		"--network", "none",
		"--read-only",
		"--tmpfs", "/tmp:rw,noexec,nosuid,size=64m",
		"-e", "HATCH_SAFE=1",
		"-e", "PYTHONDONTWRITEBYTECODE=1",
		"-e", "LAB=1",
		"-v", root + ":/app:ro",
		"-w", "/app",
		"hatch-sandbox:latest",
		"python", "plugins/demo/plugin.py", "--setup", "--run",
	}, argv)
}

func TestPlanContainer_UniqueNames(t *testing.T) {
	root := realTempDir(t)
	entry := writeScript(t, root, "p/plugin.py", "")

	a, err := PlanContainer(ContainerConfig{}, root, &ExecutionRequest{Entrypoint: entry})
	require.NoError(t, err)
	b, err := PlanContainer(ContainerConfig{}, root, &ExecutionRequest{Entrypoint: entry})
	require.NoError(t, err)
	assert.NotEqual(t, a.Name, b.Name)
}

func TestPlanContainer_RejectsEscape(t *testing.T) {
	root := realTempDir(t)
	outside := writeScript(t, realTempDir(t), "plugin.py", "")

	_, err := PlanContainer(ContainerConfig{}, root, &ExecutionRequest{Entrypoint: outside})
	assert.ErrorIs(t, err, ErrOutsideProjectRoot)
}

func newFakeContainer(t *testing.T, root string) *ContainerBackend {
	t.Helper()
	runtimeBin := writeScript(t, realTempDir(t), "bin/fake-docker", fakeRuntime)
	backend, err := NewContainerBackend(Config{
		ProjectRoot: root,
		Container:   ContainerConfig{Runtime: runtimeBin, Image: "lab:1"},
	}, testLogger())
	require.NoError(t, err)
	return backend
}

func TestContainerBackend_Execute(t *testing.T) {
	root := realTempDir(t)
	entry := writeScript(t, root, "plugins/demo/plugin.py", "")
	t.Setenv("HATCH_FAKE_EXIT", "4")

	backend := newFakeContainer(t, root)
	assert.Equal(t, "fake-docker", backend.Mode())

	result, err := backend.Execute(context.Background(), &ExecutionRequest{Entrypoint: entry})
	require.NoError(t, err)

	assert.Equal(t, 4, result.ReturnCode)
	assert.False(t, result.TimedOut)
	assert.Equal(t, "fake-docker", result.Mode)
	assert.Contains(t, result.Stdout, "run --rm --name hatch-")
	assert.Contains(t, result.Stdout, "--network none --read-only")
	assert.Contains(t, result.Stdout, "-v "+root+":/app:ro -w /app lab:1 python plugins/demo/plugin.py --run")
	assert.Equal(t, "run", result.Command[1])
}

func TestContainerBackend_TimeoutKillsContainer(t *testing.T) {
	root := realTempDir(t)
	entry := writeScript(t, root, "p/plugin.py", "")
	killed := filepath.Join(realTempDir(t), "killed")
	t.Setenv("HATCH_FAKE_KILLED", killed)
	t.Setenv("HATCH_FAKE_SLEEP", "30")

	result, err := newFakeContainer(t, root).Execute(context.Background(), &ExecutionRequest{
		Entrypoint: entry,
		Timeout:    500 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.True(t, result.TimedOut)
	assert.Equal(t, ExitCodeTimeout, result.ReturnCode)
	assert.Contains(t, result.Stderr, "timed out")

	data, err := os.ReadFile(killed)
	require.NoError(t, err)
	name := strings.TrimSpace(string(data))
	assert.True(t, strings.HasPrefix(name, ContainerNamePrefix))
	assert.Contains(t, result.Command, name)
}

func TestContainerBackend_MissingRuntime(t *testing.T) {
	root := realTempDir(t)
	entry := writeScript(t, root, "p/plugin.py", "")

	backend, err := NewContainerBackend(Config{
		ProjectRoot: root,
		Container:   ContainerConfig{Runtime: "hatch-no-such-runtime"},
	}, testLogger())
	require.NoError(t, err)

	result, err := backend.Execute(context.Background(), &ExecutionRequest{Entrypoint: entry})
	require.NoError(t, err)
	assert.Equal(t, ExitCodeNotFound, result.ReturnCode)
	assert.Contains(t, result.Stderr, "Executable not found: hatch-no-such-runtime")
}

func TestContainerBackend_MissingEntrypoint(t *testing.T) {
	root := realTempDir(t)

	result, err := newFakeContainer(t, root).Execute(context.Background(), &ExecutionRequest{
		Entrypoint: filepath.Join(root, "missing", "plugin.py"),
	})
	require.NoError(t, err)
	assert.Equal(t, ExitCodeNotFound, result.ReturnCode)
}

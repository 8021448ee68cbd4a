//go:build integration

package docker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/platinummonkey/hatch/pkg/runner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
)

func TestBackend_Integration(t *testing.T) {
	testcontainers.SkipIfProviderIsNotHealthy(t)

	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	entry := filepath.Join(root, "plugins", "probe", "plugin.sh")
	require.NoError(t, os.MkdirAll(filepath.Dir(entry), 0755))
	require.NoError(t, os.WriteFile(entry, []byte(`
echo "safe=$HATCH_SAFE args=$*"
touch /probe 2>/dev/null || echo "rootfs read-only"
touch /tmp/probe && echo "tmp writable"
`), 0644))

	backend, err := NewBackend(runner.Config{
		ProjectRoot: root,
		Container: runner.ContainerConfig{
			Image:       "alpine:3.20",
			Interpreter: "sh",
		},
	}, nil)
	require.NoError(t, err)
	defer backend.Close()

	ctx := context.Background()

	result, err := backend.Execute(ctx, &runner.ExecutionRequest{
		Entrypoint: entry,
		Args:       []string{"--run"},
		Timeout:    2 * time.Minute,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, result.ReturnCode, result.Stderr)
	assert.Contains(t, result.Stdout, "safe=1 args=--run")
	assert.Contains(t, result.Stdout, "rootfs read-only")
	assert.Contains(t, result.Stdout, "tmp writable")

	require.NoError(t, os.WriteFile(entry, []byte("sleep 60\n"), 0644))
	result, err = backend.Execute(ctx, &runner.ExecutionRequest{
		Entrypoint: entry,
		Timeout:    2 * time.Second,
	})
	require.NoError(t, err)
	assert.True(t, result.TimedOut)
	assert.Equal(t, runner.ExitCodeTimeout, result.ReturnCode)
}

package runner

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubBackend struct{}

func (stubBackend) Execute(context.Context, *ExecutionRequest) (*ExecutionResult, error) {
	return &ExecutionResult{Mode: "stub"}, nil
}

func (stubBackend) Mode() string { return "stub" }

func TestNew(t *testing.T) {
	cfg := Config{ProjectRoot: t.TempDir()}

	direct, err := New(KindDirect, "", cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &DirectBackend{}, direct)

	container, err := New(KindContainer, "", cfg, nil)
	require.NoError(t, err)
	assert.IsType(t, &ContainerBackend{}, container)
	assert.Equal(t, DefaultContainerRuntime, container.Mode())

	_, err = New("vm", "", cfg, nil)
	assert.ErrorIs(t, err, ErrUnknownKind)

	_, err = New(KindContainer, "nomad", cfg, nil)
	assert.ErrorIs(t, err, ErrUnknownKind)
}

func TestRegisterEngine(t *testing.T) {
	RegisterEngine("stub", func(Config, *logrus.Logger) (Backend, error) {
		return stubBackend{}, nil
	})
	t.Cleanup(func() {
		enginesMu.Lock()
		delete(engines, "stub")
		enginesMu.Unlock()
	})

	assert.Contains(t, Engines(), "stub")
	assert.Contains(t, Engines(), EngineCLI)

	backend, err := New(KindContainer, "stub", Config{ProjectRoot: "."}, nil)
	require.NoError(t, err)
	assert.Equal(t, "stub", backend.Mode())
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		input   string
		want    Kind
		wantErr bool
	}{
		{input: "direct", want: KindDirect},
		{input: "container", want: KindContainer},
		{input: "docker", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			kind, err := ParseKind(tt.input)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownKind)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, kind)
		})
	}
}

func TestSafeEnv(t *testing.T) {
	sep := string(os.PathListSeparator)
	env := SafeEnv(
		[]string{"HOME=/home/lab", "PYTHONPATH=/opt/lib", "HATCH_SAFE=0", "malformed"},
		"/srv/project",
		map[string]string{"LAB": "on"},
	)

	assert.Equal(t, []string{
		"HOME=/home/lab",
		"PYTHONPATH=/srv/project" + sep + "/opt/lib",
		"HATCH_SAFE=1",
		"LAB=on",
		"PYTHONDONTWRITEBYTECODE=1",
	}, env)
}

func TestSafeEnv_NoExistingModulePath(t *testing.T) {
	env := SafeEnv(nil, "/srv/project", nil)
	assert.Contains(t, env, "PYTHONPATH=/srv/project")
	assert.Contains(t, env, "HATCH_SAFE=1")
}

func TestResolveEntrypoint(t *testing.T) {
	root := t.TempDir()
	entry := filepath.Join(root, "plugins", "demo", "plugin.py")
	require.NoError(t, os.MkdirAll(filepath.Dir(entry), 0755))
	require.NoError(t, os.WriteFile(entry, nil, 0644))

	resolved, rel, err := ResolveEntrypoint(root, entry)
	require.NoError(t, err)
	assert.Equal(t, "plugins/demo/plugin.py", rel)
	assert.True(t, strings.HasSuffix(filepath.ToSlash(resolved), "/plugins/demo/plugin.py"))

	_, _, err = ResolveEntrypoint(root, filepath.Dir(entry))
	assert.ErrorIs(t, err, ErrEntrypointNotFound)

	_, _, err = ResolveEntrypoint("", entry)
	assert.ErrorIs(t, err, ErrProjectRootRequired)
}

func TestDecodeOutput(t *testing.T) {
	assert.Equal(t, "ok", DecodeOutput([]byte("ok")))
	assert.Equal(t, "a\uFFFDb", DecodeOutput([]byte{'a', 0xff, 0xfe, 'b'}))
}

func TestRoundSeconds(t *testing.T) {
	assert.Equal(t, 1.235, DurationSeconds(1234567890))
}

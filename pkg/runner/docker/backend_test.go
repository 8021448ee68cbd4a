package docker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/platinummonkey/hatch/pkg/runner"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAPI records calls made by the backend
type fakeAPI struct {
	mu sync.Mutex

	pingErr   error
	imageErr  error
	createErr error
	startErr  error
	waitErr   error
	hang      bool          // Wait blocks until ctx is done
	pullDelay time.Duration // EnsureImage blocks this long unless ctx is done first
	status    int64
	stdout    string
	stderr    string

	created *runner.ContainerPlan
	killed  []string
	removed []string
}

func (f *fakeAPI) Ping(context.Context) error                 { return f.pingErr }
func (f *fakeAPI) EnsureImage(ctx context.Context, _ string) error {
	if f.pullDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(f.pullDelay):
		}
	}
	return f.imageErr
}

func (f *fakeAPI) Create(_ context.Context, plan *runner.ContainerPlan) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = plan
	return "cid-" + plan.Name, nil
}

func (f *fakeAPI) Start(context.Context, string) error { return f.startErr }

func (f *fakeAPI) Wait(ctx context.Context, _ string) (int64, error) {
	if f.hang {
		<-ctx.Done()
		return 0, ctx.Err()
	}
	return f.status, f.waitErr
}

func (f *fakeAPI) Kill(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.killed = append(f.killed, id)
	return nil
}

func (f *fakeAPI) Logs(context.Context, string) (string, string, error) {
	return f.stdout, f.stderr, nil
}

func (f *fakeAPI) Remove(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, id)
	return nil
}

func (f *fakeAPI) Close() error { return nil }

func setupProject(t *testing.T) (string, string) {
	t.Helper()
	root, err := filepath.EvalSymlinks(t.TempDir())
	require.NoError(t, err)
	entry := filepath.Join(root, "plugins", "demo", "plugin.py")
	require.NoError(t, os.MkdirAll(filepath.Dir(entry), 0755))
	require.NoError(t, os.WriteFile(entry, []byte("print('hi')\n"), 0644))
	return root, entry
}

func newTestBackend(t *testing.T, root string, api *fakeAPI) *Backend {
	t.Helper()
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)
	backend, err := newBackend(runner.Config{ProjectRoot: root}, api, log)
	require.NoError(t, err)
	return backend
}

func TestBackend_Execute(t *testing.T) {
	root, entry := setupProject(t)
	api := &fakeAPI{status: 2, stdout: "out\n", stderr: "bad \xff byte\n"}
	backend := newTestBackend(t, root, api)

	result, err := backend.Execute(context.Background(), &runner.ExecutionRequest{
		Entrypoint: entry,
		Args:       []string{"--setup", "--run"},
	})
	require.NoError(t, err)

	assert.Equal(t, ModeDockerAPI, result.Mode)
	assert.Equal(t, 2, result.ReturnCode)
	assert.False(t, result.TimedOut)
	assert.Equal(t, "out\n", result.Stdout)
	assert.Equal(t, "bad \uFFFD byte\n", result.Stderr)

	require.NotNil(t, api.created)
	assert.Equal(t, []string{"python", "plugins/demo/plugin.py", "--setup", "--run"}, api.created.Cmd)
	assert.Equal(t, runner.Mount{Source: filepath.ToSlash(root), Target: "/app", ReadOnly: true}, api.created.Mount)
	assert.Equal(t, api.created.Argv("docker"), result.Command)
	assert.Equal(t, []string{"cid-" + api.created.Name}, api.removed)
	assert.Empty(t, api.killed)
}

func TestBackend_Timeout(t *testing.T) {
	root, entry := setupProject(t)
	api := &fakeAPI{hang: true, stdout: "partial\n"}
	backend := newTestBackend(t, root, api)

	result, err := backend.Execute(context.Background(), &runner.ExecutionRequest{
		Entrypoint: entry,
		Timeout:    100 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.True(t, result.TimedOut)
	assert.Equal(t, runner.ExitCodeTimeout, result.ReturnCode)
	assert.Equal(t, "partial\n", result.Stdout)
	assert.Contains(t, result.Stderr, "timed out")

	id := "cid-" + api.created.Name
	assert.Equal(t, []string{id}, api.killed)
	assert.Equal(t, []string{id}, api.removed)
}

func TestBackend_TimeoutDuringImagePull(t *testing.T) {
	root, entry := setupProject(t)
	api := &fakeAPI{pullDelay: 5 * time.Second}
	backend := newTestBackend(t, root, api)

	start := time.Now()
	result, err := backend.Execute(context.Background(), &runner.ExecutionRequest{
		Entrypoint: entry,
		Timeout:    200 * time.Millisecond,
	})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	assert.True(t, result.TimedOut)
	assert.Equal(t, runner.ExitCodeTimeout, result.ReturnCode)
	assert.Contains(t, result.Stderr, "timed out")
	assert.Nil(t, api.created)
	assert.Empty(t, api.removed)
}

func TestBackend_CancelledDuringSetup(t *testing.T) {
	root, entry := setupProject(t)
	api := &fakeAPI{pullDelay: 5 * time.Second}
	backend := newTestBackend(t, root, api)

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(50*time.Millisecond, cancel)

	result, err := backend.Execute(ctx, &runner.ExecutionRequest{Entrypoint: entry, Timeout: 10 * time.Second})
	require.NoError(t, err)
	assert.False(t, result.TimedOut)
	assert.Equal(t, runner.ExitCodeCancelled, result.ReturnCode)
}

func TestBackend_SetupFailures(t *testing.T) {
	boom := errors.New("boom")

	tests := []struct {
		name        string
		api         *fakeAPI
		wantRemoved bool
	}{
		{name: "daemon unreachable", api: &fakeAPI{pingErr: ErrDockerNotAvailable}},
		{name: "image missing", api: &fakeAPI{imageErr: ErrImagePullFailed}},
		{name: "create failed", api: &fakeAPI{createErr: boom}},
		{name: "start failed", api: &fakeAPI{startErr: boom}, wantRemoved: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root, entry := setupProject(t)
			backend := newTestBackend(t, root, tt.api)

			result, err := backend.Execute(context.Background(), &runner.ExecutionRequest{Entrypoint: entry})
			require.NoError(t, err)
			assert.Equal(t, runner.ExitCodeNotFound, result.ReturnCode)
			assert.NotEmpty(t, result.Stderr)
			assert.Equal(t, tt.wantRemoved, len(tt.api.removed) == 1)
		})
	}
}

func TestBackend_WaitFailure(t *testing.T) {
	root, entry := setupProject(t)
	api := &fakeAPI{waitErr: ErrContainerFailed}

	result, err := newTestBackend(t, root, api).Execute(context.Background(), &runner.ExecutionRequest{Entrypoint: entry})
	require.NoError(t, err)
	assert.Equal(t, runner.ExitCodeRuntimeError, result.ReturnCode)
	assert.Contains(t, result.Stderr, "container execution failed")
}

func TestBackend_MissingEntrypoint(t *testing.T) {
	root, _ := setupProject(t)
	api := &fakeAPI{}

	result, err := newTestBackend(t, root, api).Execute(context.Background(), &runner.ExecutionRequest{
		Entrypoint: filepath.Join(root, "plugins", "ghost", "plugin.py"),
	})
	require.NoError(t, err)
	assert.Equal(t, runner.ExitCodeNotFound, result.ReturnCode)
	assert.Nil(t, api.created)
}

func TestBackend_RejectsEscape(t *testing.T) {
	root, _ := setupProject(t)
	_, outside := setupProject(t)

	result, err := newTestBackend(t, root, &fakeAPI{}).Execute(context.Background(), &runner.ExecutionRequest{Entrypoint: outside})
	assert.ErrorIs(t, err, runner.ErrOutsideProjectRoot)
	assert.Nil(t, result)
}

func TestEngineRegistered(t *testing.T) {
	assert.Contains(t, runner.Engines(), EngineAPI)
}

func TestBindSpec(t *testing.T) {
	assert.Equal(t, "/srv:/app:ro", bindSpec(runner.Mount{Source: "/srv", Target: "/app", ReadOnly: true}))
	assert.Equal(t, "/srv:/app", bindSpec(runner.Mount{Source: "/srv", Target: "/app"}))
}

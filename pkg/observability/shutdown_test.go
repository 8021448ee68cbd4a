package observability

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewShutdownManager(t *testing.T) {
	tests := []struct {
		name            string
		timeout         time.Duration
		expectedTimeout time.Duration
	}{
		{name: "custom timeout", timeout: 3 * time.Second, expectedTimeout: 3 * time.Second},
		{name: "zero uses default", timeout: 0, expectedTimeout: DefaultShutdownTimeout},
		{name: "negative uses default", timeout: -time.Second, expectedTimeout: DefaultShutdownTimeout},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewShutdownManager(nil, tt.timeout)
			assert.Equal(t, tt.expectedTimeout, sm.shutdownTimeout)
			assert.NotNil(t, sm.logger)
		})
	}
}

func TestShutdownManager_RunsHooksInReverseOrder(t *testing.T) {
	sm := NewShutdownManager(NewDiscardLogger(), time.Second)

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		sm.RegisterShutdownFunc(func(context.Context) error {
			order = append(order, i)
			return nil
		})
	}

	assert.NoError(t, sm.Shutdown(context.Background()))
	assert.Equal(t, []int{2, 1, 0}, order)
}

func TestShutdownManager_RunsOnce(t *testing.T) {
	sm := NewShutdownManager(NewDiscardLogger(), time.Second)

	calls := 0
	sm.RegisterShutdownFunc(func(context.Context) error {
		calls++
		return nil
	})

	assert.NoError(t, sm.Shutdown(context.Background()))
	assert.NoError(t, sm.Shutdown(context.Background()))
	assert.Equal(t, 1, calls)
}

func TestShutdownManager_CollectsErrors(t *testing.T) {
	sm := NewShutdownManager(NewDiscardLogger(), time.Second)
	boom := errors.New("boom")

	ran := false
	sm.RegisterShutdownFunc(func(context.Context) error {
		ran = true
		return nil
	})
	sm.RegisterShutdownFunc(func(context.Context) error { return boom })

	err := sm.Shutdown(context.Background())
	assert.ErrorIs(t, err, boom)
	assert.True(t, ran, "a failing hook must not stop the others")
}

func TestShutdownManager_HooksSurviveCancelledParent(t *testing.T) {
	sm := NewShutdownManager(NewDiscardLogger(), time.Second)

	var hookErr error
	sm.RegisterShutdownFunc(func(ctx context.Context) error {
		hookErr = ctx.Err()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.NoError(t, sm.Shutdown(ctx))
	assert.NoError(t, hookErr)
}

func TestSignalContext(t *testing.T) {
	ctx, stop := SignalContext(context.Background())
	assert.NoError(t, ctx.Err())
	stop()
	assert.Error(t, ctx.Err())
}

package observability

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
)

// DefaultShutdownTimeout bounds the time spent in shutdown hooks
const DefaultShutdownTimeout = 10 * time.Second

// ShutdownFunc is a function to call during shutdown
type ShutdownFunc func(context.Context) error

// ShutdownManager runs registered hooks once, when the command finishes
// or is interrupted. Hooks flush telemetry and metric files.
type ShutdownManager struct {
	logger          *logrus.Logger
	shutdownFuncs   []ShutdownFunc
	shutdownTimeout time.Duration
	mu              sync.Mutex
	once            sync.Once
	err             error
}

// NewShutdownManager creates a new shutdown manager
func NewShutdownManager(logger *logrus.Logger, timeout time.Duration) *ShutdownManager {
	if logger == nil {
		logger = logrus.New()
	}
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	return &ShutdownManager{
		logger:          logger,
		shutdownTimeout: timeout,
	}
}

// RegisterShutdownFunc registers a function to call during shutdown
func (sm *ShutdownManager) RegisterShutdownFunc(fn ShutdownFunc) {
	sm.mu.Lock()
	defer sm.mu.Unlock()
	sm.shutdownFuncs = append(sm.shutdownFuncs, fn)
}

// Shutdown runs the hooks in reverse registration order. Later calls return
// the result of the first one.
func (sm *ShutdownManager) Shutdown(ctx context.Context) error {
	sm.once.Do(func() {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sm.shutdownTimeout)
		defer cancel()

		sm.mu.Lock()
		funcs := append([]ShutdownFunc(nil), sm.shutdownFuncs...)
		sm.mu.Unlock()

		var errs []error
		for i := len(funcs) - 1; i >= 0; i-- {
			if err := funcs[i](ctx); err != nil {
				sm.logger.WithError(err).Warnf("Shutdown function %d failed", i)
				errs = append(errs, err)
			}
		}
		if len(errs) > 0 {
			sm.err = fmt.Errorf("shutdown completed with %d errors: %w", len(errs), errors.Join(errs...))
		}
	})
	return sm.err
}

// SignalContext returns a context cancelled on SIGINT or SIGTERM. Cancelling
// it stops a running plugin, which is then reported as cancelled.
func SignalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}

package runner

import (
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

// EngineCLI drives containers through the runtime binary
const EngineCLI = "cli"

// EngineFactory builds a container backend for one engine
type EngineFactory func(cfg Config, log *logrus.Logger) (Backend, error)

var (
	enginesMu sync.RWMutex
	engines   = map[string]EngineFactory{
		EngineCLI: func(cfg Config, log *logrus.Logger) (Backend, error) {
			return NewContainerBackend(cfg, log)
		},
	}
)

// RegisterEngine makes a container engine available by name. It is meant to
// be called from an engine package's init function.
func RegisterEngine(name string, factory EngineFactory) {
	enginesMu.Lock()
	defer enginesMu.Unlock()
	engines[name] = factory
}

// Engines lists the registered container engines
func Engines() []string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()

	names := make([]string, 0, len(engines))
	for name := range engines {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New selects a backend by kind. Container backends are further selected by
// engine; an empty engine means EngineCLI.
func New(kind Kind, engine string, cfg Config, log *logrus.Logger) (Backend, error) {
	switch kind {
	case KindDirect:
		return NewDirectBackend(cfg, log)
	case KindContainer:
		if engine == "" {
			engine = EngineCLI
		}
		enginesMu.RLock()
		factory, ok := engines[engine]
		enginesMu.RUnlock()
		if !ok {
			return nil, fmt.Errorf("%w: container engine %q (registered: %v)", ErrUnknownKind, engine, Engines())
		}
		return factory(cfg, log)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, kind)
	}
}

// ParseKind converts a configuration value to a Kind
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindDirect, KindContainer:
		return Kind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

package core

import (
	"fmt"
	"sort"
	"sync"
	"time"
)

// Platform is process-wide engine state. It is initialised exactly once,
// before the first engine is created, and is never torn down: engines such
// as V8 only accept flags before their first isolate exists.
type Platform struct {
	once      sync.Once
	mu        sync.RWMutex
	factories map[string]RuntimeFactory
	flagInit  map[string]func(flags []string)
	flags     []string
	initAt    time.Time
}

var platform = &Platform{
	factories: make(map[string]RuntimeFactory),
	flagInit:  make(map[string]func([]string)),
}

// RegisterEngine makes a backend available under name. Backends call it
// from init.
func RegisterEngine(name string, factory RuntimeFactory, flagInit func(flags []string)) {
	platform.mu.Lock()
	defer platform.mu.Unlock()
	platform.factories[name] = factory
	if flagInit != nil {
		platform.flagInit[name] = flagInit
	}
}

// InitPlatform performs the one-time platform initialisation. Later calls
// are no-ops; their flags are ignored.
func InitPlatform(flags []string) {
	platform.once.Do(func() {
		platform.mu.Lock()
		defer platform.mu.Unlock()
		platform.flags = append([]string(nil), flags...)
		for _, fn := range platform.flagInit {
			fn(platform.flags)
		}
		platform.initAt = time.Now()
	})
}

// PlatformInitialized reports whether InitPlatform has run.
func PlatformInitialized() bool {
	platform.mu.RLock()
	defer platform.mu.RUnlock()
	return !platform.initAt.IsZero()
}

// Engines lists the registered backend names.
func Engines() []string {
	platform.mu.RLock()
	defer platform.mu.RUnlock()
	names := make([]string, 0, len(platform.factories))
	for name := range platform.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NewRuntime creates an engine instance for cfg.Engine.
func NewRuntime(cfg Config) (JSRuntime, error) {
	InitPlatform(cfg.EngineFlags)

	platform.mu.RLock()
	factory, ok := platform.factories[cfg.Engine]
	platform.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w %q (available: %v)", ErrUnknownEngine, cfg.Engine, Engines())
	}
	return factory(cfg)
}

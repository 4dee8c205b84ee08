package jsctx

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cryguy/jsctx/internal/core"
)

// Option configures a Context.
type Option func(*core.Config)

// WithEngine selects the engine by name (see Engines). The default is
// quickjs.
func WithEngine(name string) Option {
	return func(c *core.Config) { c.Engine = name }
}

// WithMemoryLimitMB caps the engine heap. Not every engine enforces it.
func WithMemoryLimitMB(mb int) Option {
	return func(c *core.Config) { c.MemoryLimitMB = mb }
}

// WithCallTimeout bounds one call, including draining. Zero disables the
// bound; the caller's context still applies.
func WithCallTimeout(d time.Duration) Option {
	return func(c *core.Config) { c.CallTimeout = d }
}

// WithMaxDrainIterations bounds the timers fired while waiting for one
// deferred result.
func WithMaxDrainIterations(n int) Option {
	return func(c *core.Config) { c.MaxDrainIterations = n }
}

// WithAutoAwait controls whether deferred results are driven to
// settlement. When off, a call returning a promise fails with a
// ConversionError.
func WithAutoAwait(on bool) Option {
	return func(c *core.Config) { c.AutoAwait = on }
}

// WithVirtualTime makes timers fire without sleeping: waiting for the next
// timer advances a private clock instead. Date.now and performance.now
// follow that clock.
func WithVirtualTime() Option {
	return func(c *core.Config) { c.VirtualTime = true }
}

// WithLoader selects how the source is prepared.
func WithLoader(l Loader) Option {
	return func(c *core.Config) { c.Loader = l }
}

// WithFilename names the source in diagnostics.
func WithFilename(name string) Option {
	return func(c *core.Config) { c.Filename = name }
}

// WithMaxLogEntries bounds the captured console buffer. Further lines are
// dropped until ClearLogs.
func WithMaxLogEntries(n int) Option {
	return func(c *core.Config) { c.MaxLogEntries = n }
}

// WithMaxLogMessageSize truncates captured console lines longer than n
// bytes.
func WithMaxLogMessageSize(n int) Option {
	return func(c *core.Config) { c.MaxLogMessageSize = n }
}

// WithLogger sets the host logger. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *core.Config) { c.Logger = l }
}

// WithConsoleMirror forwards captured console lines to the host logger as
// well.
func WithConsoleMirror() Option {
	return func(c *core.Config) { c.ConsoleMirror = true }
}

// WithRejectConcurrent makes a call fail with ErrBusy while another call is
// in flight, instead of waiting for it.
func WithRejectConcurrent() Option {
	return func(c *core.Config) { c.RejectConcurrent = true }
}

// WithEngineFlags passes flags to the engine platform. They only take
// effect if no engine has been created yet in this process.
func WithEngineFlags(flags ...string) Option {
	return func(c *core.Config) { c.EngineFlags = append(c.EngineFlags, flags...) }
}

func buildConfig(opts []Option) (core.Config, error) {
	cfg := core.DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	switch {
	case cfg.MemoryLimitMB < 0:
		return cfg, fmt.Errorf("jsctx: memory limit must not be negative, got %d", cfg.MemoryLimitMB)
	case cfg.CallTimeout < 0:
		return cfg, fmt.Errorf("jsctx: call timeout must not be negative, got %v", cfg.CallTimeout)
	case cfg.MaxDrainIterations <= 0:
		return cfg, fmt.Errorf("jsctx: max drain iterations must be positive, got %d", cfg.MaxDrainIterations)
	case cfg.MaxLogEntries < 0 || cfg.MaxLogMessageSize < 0:
		return cfg, fmt.Errorf("jsctx: log limits must not be negative")
	}
	return cfg, nil
}

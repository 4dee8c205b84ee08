package jsctx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/cryguy/jsctx/internal/bridge"
	"github.com/cryguy/jsctx/internal/core"
	"github.com/cryguy/jsctx/internal/eventloop"
	"github.com/cryguy/jsctx/internal/ops"
	"github.com/cryguy/jsctx/internal/transform"
)

// Context is a compiled source bound to its own engine instance. Calls on
// one Context are serialised; separate Contexts share nothing and may be
// used in parallel.
type Context struct {
	id     string
	cfg    core.Config
	log    *zap.Logger
	rt     core.JSRuntime
	bridge *bridge.Bridge
	loop   *eventloop.EventLoop
	sem    *semaphore.Weighted
	source string // prepared script, evaluated by the first call

	closed atomic.Bool
	alive  context.Context // canceled by Close
	stop   context.CancelCauseFunc

	mu      sync.Mutex // guards the fields below
	loaded  bool
	failure error // non-nil once the Context is unusable
	stats   Stats
}

// Compile prepares source for execution on a fresh engine. The source is
// parsed but not run; invalid source yields a *CompileError and no
// Context. An empty source is always accepted.
func Compile(source string, opts ...Option) (*Context, error) {
	cfg, err := buildConfig(opts)
	if err != nil {
		return nil, err
	}
	return compile(source, cfg)
}

// CompileFile reads path and compiles it. Unless WithLoader is given, the
// loader follows the extension: .ts and .cts are TypeScript, .mjs and .mts
// are ES modules.
func CompileFile(path string, opts ...Option) (*Context, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	base := []Option{WithLoader(transform.LoaderForPath(path)), WithFilename(path)}
	cfg, err := buildConfig(append(base, opts...))
	if err != nil {
		return nil, err
	}
	return compile(string(data), cfg)
}

func compile(source string, cfg core.Config) (*Context, error) {
	id := uuid.NewString()
	log := cfg.Logger.With(zap.String("context", id), zap.String("engine", cfg.Engine))

	prepared, err := transform.Prepare(source, cfg.Loader, cfg.Filename)
	if err != nil {
		log.Debug("compile rejected", zap.Error(err))
		return nil, err
	}

	rt, err := core.NewRuntime(cfg)
	if err != nil {
		return nil, err
	}

	var onLog func(core.LogEntry)
	if cfg.ConsoleMirror {
		onLog = ops.MirrorTo(log)
	}
	loopOpts := []eventloop.Option{eventloop.WithMaxIterations(cfg.MaxDrainIterations)}
	if cfg.VirtualTime {
		loopOpts = append(loopOpts, eventloop.WithVirtualTime())
	}

	c := &Context{
		id:     id,
		cfg:    cfg,
		log:    log,
		rt:     rt,
		bridge: bridge.New(cfg.MaxLogEntries, cfg.MaxLogMessageSize, onLog),
		loop:   eventloop.New(loopOpts...),
		sem:    semaphore.NewWeighted(1),
		source: prepared,
	}
	c.alive, c.stop = context.WithCancelCause(context.Background())

	if err := ops.Install(rt, ops.Deps{Bridge: c.bridge, Loop: c.loop, Logger: log}); err != nil {
		rt.Close()
		return nil, fmt.Errorf("installing operations: %w", err)
	}
	if err := c.check(); err != nil {
		rt.Close()
		log.Debug("compile rejected", zap.Error(err))
		return nil, err
	}

	log.Debug("compiled", zap.String("file", cfg.Filename), zap.Stringer("loader", cfg.Loader), zap.Int("bytes", len(prepared)))
	return c, nil
}

// check asks the engine itself to parse the prepared source as script text.
func (c *Context) check() error {
	if c.source == "" {
		return nil
	}
	err := c.rt.Compile(c.cfg.Filename, c.source)
	if err == nil {
		return nil
	}
	var ce *core.CompileError
	if !errors.As(err, &ce) {
		ce = core.ParseCompileError(err.Error())
		ce.Cause = err
	}
	ce.File = c.cfg.Filename
	return ce
}

// ID identifies the Context in host logs.
func (c *Context) ID() string { return c.id }

// Call invokes the global function name with args and returns its result.
// name may be a dotted path such as "api.math.add"; the function is then
// called with its owning object as this. A deferred result is driven to
// settlement first.
func (c *Context) Call(ctx context.Context, name string, args ...any) (any, error) {
	return c.run(ctx, "call", name, func(id uint64) (string, error) {
		if !ops.ValidName(name) {
			return "", &core.RuntimeError{Name: "TypeError", Message: fmt.Sprintf("%q is not a valid entry point name", name)}
		}
		wire, err := codecArgs(args)
		if err != nil {
			return "", err
		}
		return ops.InvokeScript(id, name, wire, c.cfg.AutoAwait), nil
	})
}

// Eval evaluates expr in global scope and returns its value, driving a
// deferred result to settlement like Call does.
func (c *Context) Eval(ctx context.Context, expr string) (any, error) {
	return c.run(ctx, "eval", "", func(id uint64) (string, error) {
		return ops.EvaluateScript(id, expr, c.cfg.AutoAwait), nil
	})
}

// Logs returns the captured console messages in order. The buffer survives
// calls until ClearLogs.
func (c *Context) Logs() []string { return c.bridge.Messages() }

// LogEntries is Logs with level and capture time.
func (c *Context) LogEntries() []LogEntry { return c.bridge.Logs() }

// ClearLogs empties the console buffer.
func (c *Context) ClearLogs() { c.bridge.ClearLogs() }

// GC asks the engine to collect garbage where it exposes a way to.
func (c *Context) GC(ctx context.Context) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := c.acquire(ctx); err != nil {
		return err
	}
	defer c.sem.Release(1)
	if c.closed.Load() {
		return ErrClosed
	}
	if err := c.usable(); err != nil {
		return err
	}
	return c.rt.Eval(ops.GCScript)
}

// Close releases the engine. A call in flight is interrupted, whether it is
// running script or waiting for a timer, and returns ErrClosed. Later calls
// return ErrClosed. Close is idempotent.
func (c *Context) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.stop(ErrClosed)
	if !c.sem.TryAcquire(1) {
		c.rt.Interrupt()
		if err := c.sem.Acquire(context.Background(), 1); err != nil {
			return err
		}
	}
	defer c.sem.Release(1)
	c.loop.Reset()
	c.log.Debug("closed")
	return c.rt.Close()
}

// callContext derives the context of one call from the caller's. It is
// canceled when the Context is closed.
func (c *Context) callContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)
	unlink := context.AfterFunc(c.alive, func() { cancel(context.Cause(c.alive)) })
	return ctx, func() {
		unlink()
		cancel(nil)
	}
}

// closedOr reports ErrClosed in place of err once Close has begun.
func (c *Context) closedOr(err error) error {
	if err != nil && c.closed.Load() && !errors.Is(err, ErrClosed) {
		return fmt.Errorf("%w: %w", ErrClosed, err)
	}
	return err
}

func (c *Context) acquire(ctx context.Context) error {
	if c.cfg.RejectConcurrent {
		if !c.sem.TryAcquire(1) {
			return ErrBusy
		}
		return nil
	}
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return &core.TimeoutError{Stage: "waiting for in-flight call", Cause: err}
	}
	return nil
}

// usable returns the reason the Context can no longer run script.
func (c *Context) usable() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.failure != nil {
		return fmt.Errorf("%w: %w", ErrUnusable, c.failure)
	}
	return nil
}

// poison marks the Context permanently unusable.
func (c *Context) poison(err error) {
	c.mu.Lock()
	if c.failure == nil {
		c.failure = err
	}
	c.mu.Unlock()
	c.log.Warn("context unusable", zap.Error(err))
}

package jsctx

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cryguy/jsctx/internal/codec"
	"github.com/cryguy/jsctx/internal/core"
	"github.com/cryguy/jsctx/internal/eventloop"
	"github.com/cryguy/jsctx/internal/ops"
)

// buildFunc renders the script that starts a call with the given id.
type buildFunc func(id uint64) (string, error)

func codecArgs(args []any) (string, error) {
	wire, err := codec.EncodeArgs(args)
	if err != nil {
		return "", err
	}
	return string(wire), nil
}

// run is the shared pipeline of Call and Eval: acquire the Context, count
// the call, evaluate the source on first use, start the call, drain until
// it settles, and decode the outcome.
func (c *Context) run(ctx context.Context, kind, name string, build buildFunc) (any, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	ctx, cancel := c.callContext(ctx)
	defer cancel()
	if err := c.acquire(ctx); err != nil {
		return nil, c.closedOr(err)
	}
	defer c.sem.Release(1)
	if c.closed.Load() {
		return nil, ErrClosed
	}

	c.mu.Lock()
	c.stats.Calls++
	c.mu.Unlock()

	if err := c.usable(); err != nil {
		return nil, err
	}

	if c.cfg.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.cfg.CallTimeout)
		defer cancel()
	}

	c.log.Debug("call started", zap.String("kind", kind), zap.Stringer("state", eventloop.Invoking))
	start := time.Now()
	v, state, iterations, err := c.execute(ctx, build)
	elapsed := time.Since(start)
	c.record(state, iterations, elapsed)

	fields := []zap.Field{
		zap.String("kind", kind),
		zap.Stringer("state", state),
		zap.Int("iterations", iterations),
		zap.Duration("elapsed", elapsed),
	}
	if name != "" {
		fields = append(fields, zap.String("name", name))
	}
	if err != nil {
		fields = append(fields, zap.Error(err))
	}
	c.log.Debug("call finished", fields...)
	return v, c.closedOr(err)
}

func (c *Context) execute(ctx context.Context, build buildFunc) (any, eventloop.State, int, error) {
	w := &watchdog{JSRuntime: c.rt, ctx: ctx}

	if err := c.ensureLoaded(w); err != nil {
		return nil, eventloop.Failed, 0, err
	}

	id := c.bridge.Begin()
	defer c.endCall(id)

	script, err := build(id)
	if err != nil {
		return nil, eventloop.Failed, 0, err
	}

	status, err := w.EvalString(script)
	if w.fired {
		return nil, eventloop.TimedOut, 0, c.interrupted("running script", ctx)
	}
	if err != nil {
		var te *core.TimeoutError
		if errors.As(err, &te) {
			return nil, eventloop.TimedOut, 0, err
		}
		return nil, eventloop.Failed, 0, core.AsRuntimeError(err)
	}

	iterations := 0
	if status == ops.StatusPending && !c.bridge.Ready(id) {
		res, err := c.loop.Await(ctx, w, func() bool { return c.bridge.Ready(id) })
		iterations = res.Iterations
		if w.fired {
			return nil, eventloop.TimedOut, iterations, c.interrupted("draining", ctx)
		}
		if err != nil {
			state := res.State
			var te *core.TimeoutError
			if errors.As(err, &te) {
				state = eventloop.TimedOut
				if te.Limit == 0 {
					te.Limit = c.cfg.CallTimeout
				}
			}
			return nil, state, iterations, err
		}
	}

	o, ok := c.bridge.Take(id)
	if !ok {
		return nil, eventloop.Failed, iterations, fmt.Errorf("call %d finished without a result", id)
	}
	v, err := ops.Resolve(o)
	if err != nil {
		return nil, eventloop.Failed, iterations, err
	}
	return v, eventloop.Settled, iterations, nil
}

// ensureLoaded evaluates the source on first use. A failure is permanent.
func (c *Context) ensureLoaded(w *watchdog) error {
	c.mu.Lock()
	loaded := c.loaded
	c.mu.Unlock()
	if loaded {
		return nil
	}

	err := w.Eval(c.source)
	if w.fired {
		return c.interrupted("evaluating source", w.ctx)
	}
	if err != nil {
		var te *core.TimeoutError
		if errors.As(err, &te) {
			// the deadline passed before the source ran; try again next call
			return err
		}
		re := core.AsRuntimeError(err)
		re.Terminal = true
		c.poison(re)
		return re
	}

	c.mu.Lock()
	c.loaded = true
	c.mu.Unlock()
	c.log.Debug("source evaluated")
	return nil
}

// interrupted builds the error for a watchdog interrupt and retires the
// Context: an engine stopped mid-frame is not trusted again.
func (c *Context) interrupted(stage string, ctx context.Context) error {
	err := &core.TimeoutError{Stage: stage, Limit: c.cfg.CallTimeout, Interrupted: true, Cause: ctx.Err()}
	c.poison(err)
	return err
}

// endCall releases the call's slot and discards every timer still pending,
// so nothing scheduled by this call can run during a later one.
func (c *Context) endCall(id uint64) {
	c.bridge.End(id)
	n := c.loop.Reset()
	if c.closed.Load() || c.usable() != nil {
		return
	}
	if err := c.rt.Eval(ops.ResetTimersJS); err != nil {
		c.log.Warn("resetting timers", zap.Error(err))
	}
	if n > 0 {
		c.mu.Lock()
		c.stats.DiscardedTimers += n
		c.mu.Unlock()
		c.log.Debug("discarded pending timers", zap.Int("count", n))
	}
}

func (c *Context) record(state eventloop.State, iterations int, elapsed time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stats.DrainIterations += iterations
	c.stats.TotalTime += elapsed
	switch state {
	case eventloop.TimedOut:
		c.stats.TimedOut++
	case eventloop.Failed:
		c.stats.Failed++
	}
}

// watchdog arms an interrupt around every engine entry made for one call.
// Time spent in Go, such as waiting for the next timer, is never
// interrupted.
type watchdog struct {
	core.JSRuntime
	ctx   context.Context
	fired bool
}

func (w *watchdog) enter(fn func() error) error {
	if err := w.ctx.Err(); err != nil {
		return &core.TimeoutError{Stage: "entering script", Cause: err}
	}
	stop := context.AfterFunc(w.ctx, w.JSRuntime.Interrupt)
	err := fn()
	if !stop() {
		w.fired = true
	}
	return err
}

func (w *watchdog) Eval(js string) error {
	return w.enter(func() error { return w.JSRuntime.Eval(js) })
}

func (w *watchdog) EvalString(js string) (string, error) {
	var s string
	err := w.enter(func() (err error) {
		s, err = w.JSRuntime.EvalString(js)
		return err
	})
	return s, err
}

func (w *watchdog) RunMicrotasks() error {
	return w.enter(w.JSRuntime.RunMicrotasks)
}

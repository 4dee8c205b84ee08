package ops

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryguy/jsctx/internal/bridge"
	"github.com/cryguy/jsctx/internal/codec"
	"github.com/cryguy/jsctx/internal/core"
	"github.com/cryguy/jsctx/internal/eventloop"

	_ "github.com/cryguy/jsctx/internal/gojaengine"
	_ "github.com/cryguy/jsctx/internal/quickjs"
)

var testEngines = []string{core.EngineQuickJS, core.EngineGoja}

type harness struct {
	rt   core.JSRuntime
	b    *bridge.Bridge
	loop *eventloop.EventLoop
}

func newHarness(t *testing.T, engine string) *harness {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.Engine = engine
	rt, err := core.NewRuntime(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })

	h := &harness{
		rt:   rt,
		b:    bridge.New(100, 1024, nil),
		loop: eventloop.New(eventloop.WithVirtualTime(), eventloop.WithMaxIterations(1000)),
	}
	require.NoError(t, Install(rt, Deps{Bridge: h.b, Loop: h.loop}))
	return h
}

func forEachEngine(t *testing.T, fn func(t *testing.T, h *harness)) {
	for _, engine := range testEngines {
		t.Run(engine, func(t *testing.T) {
			fn(t, newHarness(t, engine))
		})
	}
}

// settle runs script built for a fresh call id and drives it to its
// outcome.
func (h *harness) settle(t *testing.T, build func(id uint64) string) (any, error) {
	t.Helper()
	id := h.b.Begin()
	defer h.b.End(id)

	status, err := h.rt.EvalString(build(id))
	require.NoError(t, err)
	if status == StatusPending {
		if _, err := h.loop.Await(context.Background(), h.rt, func() bool { return h.b.Ready(id) }); err != nil {
			return nil, err
		}
	}
	o, ok := h.b.Take(id)
	require.True(t, ok, "call %d produced no outcome", id)
	return Resolve(o)
}

func (h *harness) call(t *testing.T, name string, args ...any) (any, error) {
	t.Helper()
	wire, err := codec.EncodeArgs(args)
	require.NoError(t, err)
	return h.settle(t, func(id uint64) string { return InvokeScript(id, name, string(wire), true) })
}

func (h *harness) eval(t *testing.T, expr string) (any, error) {
	t.Helper()
	return h.settle(t, func(id uint64) string { return EvaluateScript(id, expr, true) })
}

func TestInvokeSync(t *testing.T) {
	forEachEngine(t, func(t *testing.T, h *harness) {
		require.NoError(t, h.rt.Eval(`function add(a, b) { return a + b; }`))

		v, err := h.call(t, "add", 2, 3)
		require.NoError(t, err)
		assert.Equal(t, int64(5), v)

		v, err = h.call(t, "add", 2, "x")
		require.NoError(t, err)
		assert.Equal(t, "2x", v)
	})
}

func TestInvokeDottedUsesOwner(t *testing.T) {
	forEachEngine(t, func(t *testing.T, h *harness) {
		require.NoError(t, h.rt.Eval(`var api = { base: 10, math: { k: 2, mul: function(x) { return this.k * x; } } };`))

		v, err := h.call(t, "api.math.mul", 21)
		require.NoError(t, err)
		assert.Equal(t, int64(42), v)

		_, err = h.call(t, "api.nothing.mul")
		var re *core.RuntimeError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, "TypeError", re.Name)

		_, err = h.call(t, "api.base")
		require.ErrorAs(t, err, &re)
		assert.Equal(t, "TypeError", re.Name)
		assert.Contains(t, re.Message, "api.base is not a function")
	})
}

func TestInvokeMissingFunction(t *testing.T) {
	forEachEngine(t, func(t *testing.T, h *harness) {
		_, err := h.call(t, "missing")
		var re *core.RuntimeError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, "ReferenceError", re.Name)
		assert.Equal(t, "missing is not defined", re.Message)
	})
}

func TestInvokeThrow(t *testing.T) {
	forEachEngine(t, func(t *testing.T, h *harness) {
		require.NoError(t, h.rt.Eval(`
			function boom() { throw new RangeError('too far'); }
			function raw() { throw 'plain'; }
		`))

		_, err := h.call(t, "boom")
		var re *core.RuntimeError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, "RangeError", re.Name)
		assert.Equal(t, "too far", re.Message)

		_, err = h.call(t, "raw")
		require.ErrorAs(t, err, &re)
		assert.Equal(t, "", re.Name)
		assert.Equal(t, "plain", re.Message)
	})
}

func TestInvokeUnconvertibleResult(t *testing.T) {
	forEachEngine(t, func(t *testing.T, h *harness) {
		require.NoError(t, h.rt.Eval(`function fn() { return { nested: [1, function() {}] }; }`))

		_, err := h.call(t, "fn")
		var ce *core.ConversionError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, core.DirDecode, ce.Direction)
		assert.Equal(t, "result.nested[1]", ce.Path)
	})
}

func TestInvokeRoundTripsArguments(t *testing.T) {
	forEachEngine(t, func(t *testing.T, h *harness) {
		require.NoError(t, h.rt.Eval(`function echo(v) { return v; }`))

		in := codec.ObjectOf("z", int64(1), "a", []any{codec.Undefined, nil, "s", 1.5, true})
		v, err := h.call(t, "echo", in)
		require.NoError(t, err)
		assert.Equal(t, in, v)
	})
}

func TestDeferredResultSettlesThroughTimers(t *testing.T) {
	forEachEngine(t, func(t *testing.T, h *harness) {
		require.NoError(t, h.rt.Eval(`
			function later(v, ms) {
				return new Promise(function(resolve) { setTimeout(resolve, ms, v); });
			}
			async function fails() {
				await later(0, 5);
				throw new TypeError('async boom');
			}
		`))

		v, err := h.call(t, "later", "done", 1000)
		require.NoError(t, err)
		assert.Equal(t, "done", v)

		_, err = h.call(t, "fails")
		var re *core.RuntimeError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, "TypeError", re.Name)
		assert.Equal(t, "async boom", re.Message)
	})
}

func TestDeferredResultWithoutAutoAwait(t *testing.T) {
	forEachEngine(t, func(t *testing.T, h *harness) {
		_, err := h.settle(t, func(id uint64) string {
			return EvaluateScript(id, "Promise.resolve(1)", false)
		})
		var ce *core.ConversionError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, PendingReason, ce.Reason)
	})
}

func TestEvaluateDefinesGlobals(t *testing.T) {
	forEachEngine(t, func(t *testing.T, h *harness) {
		_, err := h.eval(t, "var counter = 41")
		require.NoError(t, err)
		v, err := h.eval(t, "counter + 1")
		require.NoError(t, err)
		assert.Equal(t, int64(42), v)

		_, err = h.eval(t, "(")
		var re *core.RuntimeError
		require.ErrorAs(t, err, &re)
		assert.Equal(t, "SyntaxError", re.Name)
	})
}

func TestConsoleCapture(t *testing.T) {
	forEachEngine(t, func(t *testing.T, h *harness) {
		require.NoError(t, h.rt.Eval(`
			console.log('a', 1, { x: [true] });
			console.warn(null, undefined);
			console.error(new Error('bad'));
			console.assert(true, 'hidden');
			console.assert(false, 'shown');
		`))

		assert.Equal(t, []string{
			`a 1 {"x":[true]}`,
			"null undefined",
			"Error: bad",
			"Assertion failed shown",
		}, h.b.Messages())

		logs := h.b.Logs()
		require.Len(t, logs, 4)
		assert.Equal(t, "log", logs[0].Level)
		assert.Equal(t, "warn", logs[1].Level)
		assert.Equal(t, "error", logs[2].Level)
		assert.Equal(t, "error", logs[3].Level)
	})
}

func TestBase64Globals(t *testing.T) {
	forEachEngine(t, func(t *testing.T, h *harness) {
		v, err := h.eval(t, "atob(btoa('hi there'))")
		require.NoError(t, err)
		assert.Equal(t, "hi there", v)

		v, err = h.eval(t, "(function() { try { btoa('€'); return 'no'; } catch (e) { return 'threw'; } })()")
		require.NoError(t, err)
		assert.Equal(t, "threw", v)
	})
}

func TestClockFollowsVirtualTime(t *testing.T) {
	forEachEngine(t, func(t *testing.T, h *harness) {
		before, err := h.eval(t, "performance.now()")
		require.NoError(t, err)

		v, err := h.eval(t, `
			(function() {
				var start = Date.now();
				return new Promise(function(resolve) {
					setTimeout(function() { resolve(Date.now() - start); }, 60000);
				});
			})()
		`)
		require.NoError(t, err)
		assert.Equal(t, int64(60000), v)

		after, err := h.eval(t, "performance.now()")
		require.NoError(t, err)
		assert.GreaterOrEqual(t, toFloat(after)-toFloat(before), float64(60000))
	})
}

func TestTimerCallbackErrorIsLogged(t *testing.T) {
	forEachEngine(t, func(t *testing.T, h *harness) {
		v, err := h.eval(t, `
			new Promise(function(resolve) {
				setTimeout(function() { throw new Error('in timer'); }, 1);
				setTimeout(function() { resolve('after'); }, 2);
			})
		`)
		require.NoError(t, err)
		assert.Equal(t, "after", v)
		assert.Equal(t, []string{"Uncaught (in timer callback) Error: in timer"}, h.b.Messages())
	})
}

func TestClearTimeoutAndInterval(t *testing.T) {
	forEachEngine(t, func(t *testing.T, h *harness) {
		v, err := h.eval(t, `
			new Promise(function(resolve) {
				var ticks = 0;
				var cancelled = setTimeout(function() { ticks += 100; }, 1);
				clearTimeout(cancelled);
				var iv = setInterval(function() {
					ticks++;
					if (ticks === 3) { clearInterval(iv); resolve(ticks); }
				}, 10);
			})
		`)
		require.NoError(t, err)
		assert.Equal(t, int64(3), v)
		assert.Equal(t, 0, h.loop.Pending())
	})
}

func TestQueueMicrotask(t *testing.T) {
	forEachEngine(t, func(t *testing.T, h *harness) {
		v, err := h.eval(t, `
			new Promise(function(resolve) {
				var order = [];
				queueMicrotask(function() { order.push('micro'); resolve(order); });
				order.push('sync');
			})
		`)
		require.NoError(t, err)
		assert.Equal(t, []any{"sync", "micro"}, v)
	})
}

func TestNoScheduledWork(t *testing.T) {
	forEachEngine(t, func(t *testing.T, h *harness) {
		_, err := h.eval(t, "new Promise(function() {})")
		assert.ErrorIs(t, err, core.ErrNoScheduledWork)
	})
}

func TestResetTimersDropsCallbacks(t *testing.T) {
	forEachEngine(t, func(t *testing.T, h *harness) {
		require.NoError(t, h.rt.Eval(`var fired = false; setTimeout(function() { fired = true; }, 1);`))
		assert.Equal(t, 1, h.loop.Pending())

		assert.Equal(t, 1, h.loop.Reset())
		require.NoError(t, h.rt.Eval(ResetTimersJS))
		require.NoError(t, h.rt.Eval(`__jsctx.fireTimer(1)`))

		v, err := h.eval(t, "fired")
		require.NoError(t, err)
		assert.Equal(t, false, v)
	})
}

func TestStaleSettlementDropped(t *testing.T) {
	forEachEngine(t, func(t *testing.T, h *harness) {
		old := h.b.Begin()
		h.b.End(old)
		id := h.b.Begin()
		defer h.b.End(id)

		require.NoError(t, h.rt.Eval(fmt.Sprintf(`__op_settle(%d, 'fulfilled', '["n",1]')`, old)))
		assert.False(t, h.b.Ready(id))
	})
}

func TestResolveStates(t *testing.T) {
	v, err := Resolve(bridge.Outcome{State: bridge.Fulfilled, Payload: `["s","ok"]`})
	require.NoError(t, err)
	assert.Equal(t, "ok", v)

	_, err = Resolve(bridge.Outcome{State: bridge.Rejected, Payload: "not json"})
	var re *core.RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "not json", re.Message)

	_, err = Resolve(bridge.Outcome{State: bridge.Unconvertible, Payload: `{"path":"result.x","reason":"r"}`})
	var ce *core.ConversionError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "result.x", ce.Path)
	assert.Equal(t, "r", ce.Reason)

	_, err = Resolve(bridge.Outcome{State: "other"})
	assert.Error(t, err)
}

func toFloat(v any) float64 {
	switch n := v.(type) {
	case int64:
		return float64(n)
	case float64:
		return n
	}
	return 0
}

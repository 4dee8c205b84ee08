package ops

import (
	"time"

	"github.com/cryguy/jsctx/internal/core"
)

// timersJS keeps the callbacks in __jsctx.timers; Go only tracks when each
// id is due.
const timersJS = `
(function() {
	__jsctx.timers = {};
	function schedule(fn, delay, args, repeat) {
		if (typeof fn !== 'function') return 0;
		delay = Number(delay);
		if (!(delay > 0)) delay = 0;
		var id = __op_timer_schedule(Math.min(Math.floor(delay), 2147483647), repeat);
		__jsctx.timers[id] = { fn: fn, args: args, interval: repeat };
		return id;
	}
	globalThis.setTimeout = function(fn, delay) {
		return schedule(fn, delay, Array.prototype.slice.call(arguments, 2), false);
	};
	globalThis.setInterval = function(fn, delay) {
		return schedule(fn, delay, Array.prototype.slice.call(arguments, 2), true);
	};
	globalThis.clearTimeout = globalThis.clearInterval = function(id) {
		if (typeof id !== 'number') return;
		__op_timer_cancel(id);
		delete __jsctx.timers[id];
	};
	__jsctx.fireTimer = function(id) {
		var entry = __jsctx.timers[id];
		if (!entry) return;
		if (!entry.interval) delete __jsctx.timers[id];
		try {
			entry.fn.apply(null, entry.args);
		} catch (e) {
			console.error('Uncaught (in timer callback)', e);
		}
	};
	__jsctx.resetTimers = function() {
		__jsctx.timers = {};
	};
})();
`

// SetupTimers registers Go-backed setTimeout/setInterval/clearTimeout/clearInterval.
func SetupTimers(rt core.JSRuntime, d Deps) error {
	el := d.Loop
	if err := rt.RegisterFunc("__op_timer_schedule", func(delayMs int, repeat bool) int {
		return el.Schedule(time.Duration(delayMs)*time.Millisecond, repeat)
	}); err != nil {
		return err
	}
	if err := rt.RegisterFunc("__op_timer_cancel", func(id int) {
		el.Cancel(id)
	}); err != nil {
		return err
	}
	return rt.Eval(timersJS)
}

// ResetTimersJS clears the script-side callback table. It pairs with
// EventLoop.Reset.
const ResetTimersJS = `__jsctx.resetTimers()`

package ops

import (
	"github.com/cryguy/jsctx/internal/core"
)

const clockJS = `
(function() {
	Date.now = function() { return __op_now(); };
	if (typeof globalThis.performance !== 'object' || globalThis.performance === null) {
		globalThis.performance = {};
	}
	globalThis.performance.now = function() { return __op_monotonic(); };
})();
`

// SetupClock routes Date.now and performance.now through the event loop's
// clock, so both follow virtual time when it is enabled.
func SetupClock(rt core.JSRuntime, d Deps) error {
	el := d.Loop
	if err := rt.RegisterFunc("__op_now", func() float64 {
		return float64(el.Now().UnixMilli())
	}); err != nil {
		return err
	}
	if err := rt.RegisterFunc("__op_monotonic", func() float64 {
		return el.Monotonic()
	}); err != nil {
		return err
	}
	return rt.Eval(clockJS)
}

package ops

import "github.com/cryguy/jsctx/internal/core"

const microtaskJS = `
if (typeof globalThis.queueMicrotask !== 'function') {
	globalThis.queueMicrotask = function(cb) {
		if (typeof cb !== 'function') throw new TypeError('queueMicrotask: callback is not a function');
		Promise.resolve().then(function() { cb(); });
	};
}
`

// SetupMicrotask adds queueMicrotask on engines that lack it.
func SetupMicrotask(rt core.JSRuntime, _ Deps) error {
	return rt.Eval(microtaskJS)
}

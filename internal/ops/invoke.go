package ops

import (
	"fmt"
	"regexp"

	"github.com/cryguy/jsctx/internal/core"
)

// Results of InvokeScript and EvaluateScript.
const (
	StatusSettled = "settled"
	StatusPending = "pending"
)

// PendingReason is the reason reported when a deferred result is returned
// with auto-await disabled.
const PendingReason = "pending deferred result cannot be decoded"

// namePattern accepts an identifier or a dotted path of identifiers.
var namePattern = regexp.MustCompile(`^[A-Za-z_$][A-Za-z0-9_$]*(\.[A-Za-z_$][A-Za-z0-9_$]*)*$`)

// ValidName reports whether name can be resolved as an entry point.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// invokeJS is the script half of Call and Eval. Every outcome goes through
// __op_settle; the return value only says whether that already happened.
const invokeJS = `
(function() {
	var J = __jsctx;
	var geval = globalThis.eval;

	function errorInfo(e) {
		var info = { name: '', message: '', stack: '' };
		try {
			if (e !== null && typeof e === 'object' && 'message' in e) {
				info.name = e.name === undefined ? 'Error' : String(e.name);
				info.message = String(e.message);
				info.stack = e.stack === undefined ? '' : String(e.stack);
			} else {
				info.message = J.describe(e);
			}
		} catch (inner) {
			info.message = 'unprintable thrown value';
		}
		return JSON.stringify(info);
	}

	function finish(id, v) {
		var wire;
		try {
			wire = J.encode(v, 'result');
		} catch (e) {
			if (e instanceof J.Unconvertible) {
				__op_settle(id, 'unconvertible', JSON.stringify({ path: e.path, reason: e.reason }));
			} else {
				__op_settle(id, 'rejected', errorInfo(e));
			}
			return;
		}
		__op_settle(id, 'fulfilled', wire);
	}

	function complete(id, r, autoAwait) {
		if (!J.isThenable(r)) {
			finish(id, r);
			return 'settled';
		}
		if (!autoAwait) {
			__op_settle(id, 'unconvertible', JSON.stringify({ path: 'result', reason: '` + PendingReason + `' }));
			return 'settled';
		}
		Promise.resolve(r).then(
			function(v) { finish(id, v); },
			function(e) { __op_settle(id, 'rejected', errorInfo(e)); }
		);
		return 'pending';
	}

	function resolve(name) {
		var parts = name.split('.');
		var head = parts[0];
		var cur = geval('typeof ' + head + ' === "undefined" ? undefined : ' + head);
		if (cur === undefined && parts.length === 1) {
			throw new ReferenceError(name + ' is not defined');
		}
		var self;
		for (var i = 1; i < parts.length; i++) {
			if (cur === null || cur === undefined) {
				throw new TypeError(parts.slice(0, i).join('.') + ' is ' + cur);
			}
			self = cur;
			cur = cur[parts[i]];
		}
		if (typeof cur !== 'function') {
			throw new TypeError(name + ' is not a function');
		}
		return { fn: cur, self: self };
	}

	J.errorInfo = errorInfo;

	J.invoke = function(id, name, argsWire, autoAwait) {
		var r;
		try {
			var target = resolve(name);
			r = target.fn.apply(target.self, J.decode(argsWire));
		} catch (e) {
			__op_settle(id, 'rejected', errorInfo(e));
			return 'settled';
		}
		return complete(id, r, autoAwait);
	};

	J.evaluate = function(id, expr, autoAwait) {
		var r;
		try {
			r = geval(expr);
		} catch (e) {
			__op_settle(id, 'rejected', errorInfo(e));
			return 'settled';
		}
		return complete(id, r, autoAwait);
	};

	J.gc = function() {
		if (typeof gc === 'function') gc();
	};
})();
`

// SetupInvoke installs __jsctx.invoke, __jsctx.evaluate and the helpers
// around them.
func SetupInvoke(rt core.JSRuntime, _ Deps) error {
	return rt.Eval(invokeJS)
}

// InvokeScript returns script that calls the entry point name for call id.
// argsWire must be an encoded argument array.
func InvokeScript(id uint64, name, argsWire string, autoAwait bool) string {
	return fmt.Sprintf("__jsctx.invoke(%d, %s, %s, %t)", id, Quote(name), Quote(argsWire), autoAwait)
}

// EvaluateScript returns script that evaluates expr globally for call id.
func EvaluateScript(id uint64, expr string, autoAwait bool) string {
	return fmt.Sprintf("__jsctx.evaluate(%d, %s, %t)", id, Quote(expr), autoAwait)
}

// GCScript asks the engine for a collection where it exposes one.
const GCScript = `__jsctx.gc()`

package ops

import (
	"go.uber.org/zap"

	"github.com/cryguy/jsctx/internal/core"
)

// consoleJS builds the console object on top of __op_log. Objects are
// rendered as JSON where possible so captured lines stay readable.
const consoleJS = `
(function() {
	function fmt(arg) {
		if (typeof arg === 'string') return arg;
		if (arg instanceof Error) return String(arg);
		if (typeof arg === 'object' && arg !== null) {
			try {
				var s = JSON.stringify(arg);
				if (s !== undefined) return s;
			} catch (e) {}
		}
		try { return String(arg); } catch (e) { return Object.prototype.toString.call(arg); }
	}
	var levels = ['log', 'info', 'warn', 'error', 'debug'];
	var con = {};
	for (var i = 0; i < levels.length; i++) {
		(function(lvl) {
			con[lvl] = function() {
				var parts = [];
				for (var j = 0; j < arguments.length; j++) parts.push(fmt(arguments[j]));
				__op_log(lvl, parts.join(' '));
			};
		})(levels[i]);
	}
	con.trace = con.debug;
	con.assert = function(cond) {
		if (cond) return;
		var parts = ['Assertion failed'];
		for (var j = 1; j < arguments.length; j++) parts.push(fmt(arguments[j]));
		__op_log('error', parts.join(' '));
	};
	globalThis.console = con;
	__jsctx.describe = fmt;
})();
`

// SetupConsole replaces globalThis.console with a version that appends to
// the bridge log buffer.
func SetupConsole(rt core.JSRuntime, d Deps) error {
	b := d.Bridge
	if err := rt.RegisterFunc("__op_log", func(level, message string) {
		b.AppendLog(level, message)
	}); err != nil {
		return err
	}
	return rt.Eval(consoleJS)
}

// MirrorTo returns a log hook that forwards captured console lines to l.
func MirrorTo(l *zap.Logger) func(core.LogEntry) {
	return func(e core.LogEntry) {
		switch e.Level {
		case "error":
			l.Error(e.Message, zap.String("source", "console"))
		case "warn":
			l.Warn(e.Message, zap.String("source", "console"))
		case "debug":
			l.Debug(e.Message, zap.String("source", "console"))
		default:
			l.Info(e.Message, zap.String("source", "console"))
		}
	}
}

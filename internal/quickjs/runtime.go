// Package quickjs is the default engine backend, built on the pure-Go
// transpilation of QuickJS.
package quickjs

import (
	"fmt"

	"modernc.org/libc"
	"modernc.org/quickjs"

	"github.com/cryguy/jsctx/internal/core"
)

func init() {
	core.RegisterEngine(core.EngineQuickJS, New, nil)
}

// qjsRuntime implements core.JSRuntime for the QuickJS engine.
type qjsRuntime struct {
	vm *quickjs.VM

	// cached from VM internals for the job pump; zero when extraction failed
	cRuntime uintptr
	tls      *libc.TLS
	pumpOK   bool
}

var _ core.JSRuntime = (*qjsRuntime)(nil)

// New creates a QuickJS VM honouring cfg.MemoryLimitMB.
func New(cfg core.Config) (core.JSRuntime, error) {
	vm, err := quickjs.NewVM()
	if err != nil {
		return nil, fmt.Errorf("creating QuickJS VM: %w", err)
	}
	if cfg.MemoryLimitMB > 0 {
		vm.SetMemoryLimit(uintptr(cfg.MemoryLimitMB) * 1024 * 1024)
	}
	r := &qjsRuntime{vm: vm}
	r.cRuntime, r.tls, r.pumpOK = extractRuntime(vm)
	if !r.pumpOK {
		vm.Close()
		return nil, fmt.Errorf("creating QuickJS VM: cannot reach the job queue of this quickjs version")
	}
	return r, nil
}

// Eval evaluates JavaScript and discards the result.
func (r *qjsRuntime) Eval(js string) (err error) {
	defer recoverTo(&err)
	v, err := r.vm.EvalValue(js, quickjs.EvalGlobal)
	if err != nil {
		return err
	}
	v.Free()
	return nil
}

// EvalString evaluates JavaScript and returns the result as a Go string.
func (r *qjsRuntime) EvalString(js string) (s string, err error) {
	defer recoverTo(&err)
	result, err := r.vm.Eval(js, quickjs.EvalGlobal)
	if err != nil {
		return "", err
	}
	switch v := result.(type) {
	case nil, quickjs.Undefined:
		return "", nil
	case string:
		return v, nil
	}
	return fmt.Sprint(result), nil
}

// Compile parses js in compile-only mode. The bytecode is discarded.
func (r *qjsRuntime) Compile(name, js string) (err error) {
	defer recoverTo(&err)
	if _, err := r.vm.Compile(js, quickjs.EvalGlobal); err != nil {
		ce := core.ParseCompileError(err.Error())
		ce.File = name
		ce.Cause = err
		return ce
	}
	return nil
}

// RegisterFunc registers a Go function as a global JavaScript function.
// Multi-value Go returns (T, error) are automatically unwrapped: on success
// returns T, on error throws a TypeError. This is necessary because the
// QuickJS Go wrapper returns multi-value results as JS arrays.
func (r *qjsRuntime) RegisterFunc(name string, fn any) error {
	rawName := "__raw_" + name
	if err := r.vm.RegisterFunc(rawName, fn, false); err != nil {
		return err
	}
	wrapJS := fmt.Sprintf(`(function() {
		var raw = globalThis[%q];
		globalThis[%q] = function() {
			var r = raw.apply(this, arguments);
			if (Array.isArray(r)) {
				if (r[1] !== null && r[1] !== undefined) throw new TypeError(String(r[1]));
				return r[0];
			}
			return r;
		};
		delete globalThis[%q];
	})()`, rawName, name, rawName)
	return r.Eval(wrapJS)
}

// RunMicrotasks pumps the QuickJS microtask queue.
func (r *qjsRuntime) RunMicrotasks() (err error) {
	defer recoverTo(&err)
	_, err = executePendingJobs(r.cRuntime, r.tls)
	return err
}

// Interrupt aborts the running script with an uncatchable error.
func (r *qjsRuntime) Interrupt() {
	r.vm.Interrupt()
}

func (r *qjsRuntime) Close() error {
	r.vm.Close()
	return nil
}

// recoverTo turns a panic inside the engine wrapper into an error. An
// interrupted VM may panic rather than return.
func recoverTo(err *error) {
	if p := recover(); p != nil {
		*err = fmt.Errorf("quickjs: %v", p)
	}
}

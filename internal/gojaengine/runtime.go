// Package gojaengine is the pure-Go engine backend built on goja.
package gojaengine

import (
	"errors"
	"fmt"
	"strings"

	"github.com/dop251/goja"

	"github.com/cryguy/jsctx/internal/core"
)

func init() {
	core.RegisterEngine(core.EngineGoja, New, nil)
}

// errInterrupted is the value handed to goja's Interrupt.
var errInterrupted = errors.New("script interrupted")

// gojaRuntime implements core.JSRuntime on a goja.Runtime.
type gojaRuntime struct {
	vm *goja.Runtime
}

var _ core.JSRuntime = (*gojaRuntime)(nil)

// New creates a goja runtime. goja has no heap limit, so cfg.MemoryLimitMB
// is not enforced by this backend.
func New(cfg core.Config) (core.JSRuntime, error) {
	vm := goja.New()
	return &gojaRuntime{vm: vm}, nil
}

// Eval evaluates JavaScript and discards the result. goja drains its job
// queue before RunString returns.
func (r *gojaRuntime) Eval(js string) error {
	_, err := r.vm.RunString(js)
	return convertError(err)
}

// EvalString evaluates JavaScript and returns the result as a Go string.
func (r *gojaRuntime) EvalString(js string) (string, error) {
	v, err := r.vm.RunString(js)
	if err != nil {
		return "", convertError(err)
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return "", nil
	}
	return v.String(), nil
}

// Compile parses js with goja's compiler without running it.
func (r *gojaRuntime) Compile(name, js string) error {
	_, err := goja.Compile(name, js, false)
	if err == nil {
		return nil
	}
	var se *goja.CompilerSyntaxError
	if errors.As(err, &se) {
		ce := &core.CompileError{Message: "SyntaxError: " + se.Message, File: name, Cause: err}
		if se.File != nil {
			pos := se.File.Position(se.Offset)
			ce.Line, ce.Column = pos.Line, pos.Column
		}
		return ce
	}
	ce := core.ParseCompileError(err.Error())
	ce.File = name
	ce.Cause = err
	return ce
}

// RegisterFunc registers a Go function as a global JavaScript function.
// goja converts arguments by reflection and throws a returned non-nil error
// into script.
func (r *gojaRuntime) RegisterFunc(name string, fn any) error {
	return r.vm.Set(name, fn)
}

// RunMicrotasks is a no-op: goja runs queued jobs at the end of every
// top-level RunString, including the one that fired a timer.
func (r *gojaRuntime) RunMicrotasks() error {
	return nil
}

// Interrupt stops the running script at the next instruction boundary.
func (r *gojaRuntime) Interrupt() {
	r.vm.Interrupt(errInterrupted)
}

func (r *gojaRuntime) Close() error {
	r.vm.ClearInterrupt()
	return nil
}

// convertError maps goja exceptions onto core.RuntimeError so the error name
// and message survive.
func convertError(err error) error {
	if err == nil {
		return nil
	}
	var interrupted *goja.InterruptedError
	if errors.As(err, &interrupted) {
		return fmt.Errorf("goja: %w", errInterrupted)
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		re := &core.RuntimeError{Message: ex.Error(), Cause: err}
		if obj, ok := ex.Value().(*goja.Object); ok {
			if name := obj.Get("name"); name != nil && !goja.IsUndefined(name) {
				re.Name = name.String()
			}
			if msg := obj.Get("message"); msg != nil && !goja.IsUndefined(msg) {
				re.Message = msg.String()
			}
			if stack := obj.Get("stack"); stack != nil && !goja.IsUndefined(stack) {
				re.Stack = stack.String()
			}
		} else if v := ex.Value(); v != nil {
			re.Message = v.String()
		}
		return re
	}
	var se *goja.CompilerSyntaxError
	if errors.As(err, &se) {
		return &core.RuntimeError{Name: "SyntaxError", Message: strings.TrimPrefix(se.Error(), "SyntaxError: "), Cause: err}
	}
	return err
}

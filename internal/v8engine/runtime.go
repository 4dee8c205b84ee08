//go:build v8

// Package v8engine is the V8 engine backend. It is only compiled with the
// v8 build tag since it needs cgo and the prebuilt V8 libraries.
package v8engine

import (
	"errors"
	"fmt"
	"math"
	"reflect"

	v8 "github.com/tommie/v8go"

	"github.com/cryguy/jsctx/internal/core"
)

func init() {
	core.RegisterEngine(core.EngineV8, New, setFlags)
}

// setFlags hands engine flags to V8. It runs once per process, before the
// first isolate is created.
func setFlags(flags []string) {
	if len(flags) > 0 {
		v8.SetFlags(flags...)
	}
}

// v8Runtime implements core.JSRuntime for the V8 engine.
type v8Runtime struct {
	iso *v8.Isolate
	ctx *v8.Context
}

var _ core.JSRuntime = (*v8Runtime)(nil)

// New creates an isolate and a context, honouring cfg.MemoryLimitMB.
func New(cfg core.Config) (core.JSRuntime, error) {
	var iso *v8.Isolate
	if cfg.MemoryLimitMB > 0 {
		heapSize := uint64(cfg.MemoryLimitMB) * 1024 * 1024
		iso = v8.NewIsolate(v8.WithResourceConstraints(heapSize/2, heapSize))
	} else {
		iso = v8.NewIsolate()
	}
	return &v8Runtime{iso: iso, ctx: v8.NewContext(iso)}, nil
}

// Eval evaluates JavaScript and discards the result.
func (r *v8Runtime) Eval(js string) error {
	_, err := r.ctx.RunScript(js, "eval.js")
	return convertError(err)
}

// EvalString evaluates JavaScript and returns the result as a Go string.
func (r *v8Runtime) EvalString(js string) (string, error) {
	val, err := r.ctx.RunScript(js, "eval_string.js")
	if err != nil {
		return "", convertError(err)
	}
	if val == nil || val.IsUndefined() || val.IsNull() {
		return "", nil
	}
	return val.String(), nil
}

// Compile builds an unbound script from js and throws it away.
func (r *v8Runtime) Compile(name, js string) error {
	_, err := r.iso.CompileUnboundScript(js, name, v8.CompileOptions{})
	if err == nil {
		return nil
	}
	text := err.Error()
	var jsErr *v8.JSError
	if errors.As(err, &jsErr) {
		text = jsErr.Message + "\n" + jsErr.Location
	}
	ce := core.ParseCompileError(text)
	ce.File = name
	ce.Cause = err
	return ce
}

// RegisterFunc registers a Go function as a global JavaScript function.
// Uses reflection to inspect the Go function's signature and creates a
// V8 FunctionTemplate that marshals arguments and return values.
//
// Supported Go function signatures:
//   - func(args...): no return, JS function returns undefined
//   - func(args...) T: single return, JS function returns T
//   - func(args...) (T, error): on success returns T, on error throws
//
// Supported argument types: string, int, float64, bool
// Supported return types: string, int, float64, bool
func (r *v8Runtime) RegisterFunc(name string, fn any) error {
	fnVal := reflect.ValueOf(fn)
	fnType := fnVal.Type()

	if fnType.Kind() != reflect.Func {
		return fmt.Errorf("RegisterFunc: expected function, got %T", fn)
	}

	tmpl := v8.NewFunctionTemplate(r.iso, func(info *v8.FunctionCallbackInfo) *v8.Value {
		args := info.Args()

		if len(args) < fnType.NumIn() {
			r.throw(fmt.Sprintf("%s requires at least %d argument(s), got %d", name, fnType.NumIn(), len(args)))
			return nil
		}

		goArgs := make([]reflect.Value, fnType.NumIn())
		for i := 0; i < fnType.NumIn(); i++ {
			goArgs[i] = jsToGoArg(args[i], fnType.In(i))
		}

		results := fnVal.Call(goArgs)

		switch fnType.NumOut() {
		case 0:
			return nil
		case 1:
			return goToJSValue(r.iso, results[0])
		case 2:
			if errVal := results[1]; !errVal.IsNil() {
				r.throw(errVal.Interface().(error).Error())
				return nil
			}
			return goToJSValue(r.iso, results[0])
		default:
			return nil
		}
	})

	return r.ctx.Global().Set(name, tmpl.GetFunction(r.ctx))
}

// throw raises a TypeError carrying msg in the calling script.
func (r *v8Runtime) throw(msg string) {
	errCtor, err := r.ctx.Global().Get("TypeError")
	if err == nil {
		if ctor, err := errCtor.AsFunction(); err == nil {
			jsMsg, _ := v8.NewValue(r.iso, msg)
			if ex, err := ctor.Call(v8.Undefined(r.iso), jsMsg); err == nil {
				r.iso.ThrowException(ex)
				return
			}
		}
	}
	jsMsg, _ := v8.NewValue(r.iso, msg)
	r.iso.ThrowException(jsMsg)
}

// RunMicrotasks pumps the V8 microtask queue.
func (r *v8Runtime) RunMicrotasks() error {
	r.ctx.PerformMicrotaskCheckpoint()
	return nil
}

// Interrupt terminates the running script. Safe from any goroutine.
func (r *v8Runtime) Interrupt() {
	r.iso.TerminateExecution()
}

func (r *v8Runtime) Close() error {
	r.ctx.Close()
	r.iso.Dispose()
	return nil
}

// jsToGoArg converts a V8 value to a Go reflect.Value of the expected type.
func jsToGoArg(val *v8.Value, targetType reflect.Type) reflect.Value {
	switch targetType.Kind() {
	case reflect.String:
		return reflect.ValueOf(val.String())
	case reflect.Int:
		return reflect.ValueOf(int(val.Integer()))
	case reflect.Int64:
		return reflect.ValueOf(val.Integer())
	case reflect.Float64:
		return reflect.ValueOf(val.Number())
	case reflect.Bool:
		return reflect.ValueOf(val.Boolean())
	default:
		return reflect.Zero(targetType)
	}
}

// goToJSValue converts a Go reflect.Value to a V8 value.
func goToJSValue(iso *v8.Isolate, val reflect.Value) *v8.Value {
	if !val.IsValid() {
		return nil
	}
	switch val.Kind() {
	case reflect.String:
		v, _ := v8.NewValue(iso, val.String())
		return v
	case reflect.Int, reflect.Int64, reflect.Int32:
		n := val.Int()
		if n >= math.MinInt32 && n <= math.MaxInt32 {
			v, _ := v8.NewValue(iso, int32(n))
			return v
		}
		v, _ := v8.NewValue(iso, float64(n))
		return v
	case reflect.Float64, reflect.Float32:
		v, _ := v8.NewValue(iso, val.Float())
		return v
	case reflect.Bool:
		v, _ := v8.NewValue(iso, val.Bool())
		return v
	default:
		return nil
	}
}

// convertError maps a V8 exception onto core.RuntimeError.
func convertError(err error) error {
	if err == nil {
		return nil
	}
	var jsErr *v8.JSError
	if errors.As(err, &jsErr) {
		re := core.ParseRuntimeError(jsErr.Message)
		re.Stack = jsErr.StackTrace
		re.Cause = err
		return re
	}
	return err
}

package core

// JSRuntime abstracts the JavaScript engine (QuickJS, goja or V8) behind the
// narrow command surface the execution context needs: evaluate source,
// expose host functions, and pump the microtask queue.
//
// A JSRuntime is owned by exactly one Context and is never used from two
// goroutines at the same time.
type JSRuntime interface {
	// Eval evaluates JavaScript source in global scope and discards the result.
	Eval(js string) error

	// EvalString evaluates JavaScript and returns the result as a Go string.
	// Undefined and null yield "".
	EvalString(js string) (string, error)

	// Compile parses js as global script text without running it. A syntax
	// error is reported as *CompileError; name labels the source.
	Compile(name, js string) error

	// RegisterFunc registers a Go function as a global JavaScript function.
	// Supported argument types: string, int, float64, bool. Supported
	// returns: none, T, or (T, error); a non-nil error is thrown into script.
	RegisterFunc(name string, fn any) error

	// RunMicrotasks pumps the microtask queue (Promise callbacks, etc.)
	// until it is empty. An error means a job was aborted by Interrupt or
	// the engine failed; exceptions inside jobs are not reported here.
	RunMicrotasks() error

	// Interrupt asks the engine to abort the currently running script. It is
	// safe to call from any goroutine.
	Interrupt()

	// Close releases the engine and everything allocated inside it.
	Close() error
}

// RuntimeFactory creates a fresh engine instance.
type RuntimeFactory func(cfg Config) (JSRuntime, error)

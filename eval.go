package jsctx

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/cryguy/jsctx/internal/transform"
)

var (
	defaultMu  sync.Mutex
	defaultCtx *Context
)

// sharedContext returns the process-wide Context used by Eval, creating it
// on first use or after it became unusable.
func sharedContext() (*Context, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultCtx != nil && !defaultCtx.closed.Load() && defaultCtx.usable() == nil {
		return defaultCtx, nil
	}
	c, err := Compile("", WithFilename("<eval>"))
	if err != nil {
		return nil, err
	}
	defaultCtx = c
	return c, nil
}

// Eval evaluates expr on a shared default Context. Globals defined by one
// Eval are visible to the next.
func Eval(ctx context.Context, expr string) (any, error) {
	c, err := sharedContext()
	if err != nil {
		return nil, err
	}
	return c.Eval(ctx, expr)
}

// EvalFile runs the file at path on a fresh Context and returns the value
// of its last expression statement. The loader follows the extension as in
// CompileFile.
func EvalFile(ctx context.Context, path string, opts ...Option) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	script, err := transform.Prepare(string(data), transform.LoaderForPath(path), path)
	if err != nil {
		return nil, err
	}
	c, err := Compile("", append([]Option{WithFilename(path)}, opts...)...)
	if err != nil {
		return nil, err
	}
	defer c.Close()
	return c.Eval(ctx, script)
}

// Decode converts a result into T by way of its JSON form. Objects keep no
// order in T unless T does; Undefined becomes null.
func Decode[T any](v any) (T, error) {
	var out T
	data, err := json.Marshal(v)
	if err != nil {
		return out, fmt.Errorf("decoding %T: %w", v, err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("decoding into %T: %w", out, err)
	}
	return out, nil
}

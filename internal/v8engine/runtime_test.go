//go:build v8

package v8engine

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryguy/jsctx/internal/core"
)

func newRuntime(t *testing.T) core.JSRuntime {
	t.Helper()
	cfg := core.DefaultConfig()
	cfg.Engine = core.EngineV8
	rt, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })
	return rt
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, core.Engines(), core.EngineV8)
}

func TestEvalString(t *testing.T) {
	rt := newRuntime(t)

	s, err := rt.EvalString(`'a' + 'b'`)
	require.NoError(t, err)
	assert.Equal(t, "ab", s)

	for _, src := range []string{`undefined`, `null`} {
		s, err = rt.EvalString(src)
		require.NoError(t, err)
		assert.Equal(t, "", s, src)
	}

	require.NoError(t, rt.Eval(`var kept = 'yes'`))
	s, err = rt.EvalString(`kept`)
	require.NoError(t, err)
	assert.Equal(t, "yes", s)
}

func TestCompileParsesScriptText(t *testing.T) {
	rt := newRuntime(t)
	require.NoError(t, rt.Compile("ok.js", `var compiled = 1;`))

	s, err := rt.EvalString(`typeof compiled`)
	require.NoError(t, err)
	assert.Equal(t, "undefined", s)

	err = rt.Compile("bad.js", "var a = 1;\nreturn a;")
	var ce *core.CompileError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "bad.js", ce.File)
	assert.Equal(t, 2, ce.Line)
	assert.Contains(t, ce.Message, "SyntaxError")
}

func TestThrowBecomesRuntimeError(t *testing.T) {
	rt := newRuntime(t)
	err := rt.Eval(`throw new RangeError('too far')`)
	var re *core.RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "RangeError", re.Name)
	assert.Equal(t, "too far", re.Message)
}

func TestRegisterFuncThrowsGoErrors(t *testing.T) {
	rt := newRuntime(t)
	require.NoError(t, rt.RegisterFunc("half", func(n int) (int, error) {
		if n%2 != 0 {
			return 0, errors.New("odd input")
		}
		return n / 2, nil
	}))

	s, err := rt.EvalString(`String(half(8))`)
	require.NoError(t, err)
	assert.Equal(t, "4", s)

	s, err = rt.EvalString(`(function() { try { half(3); return 'no'; } catch (e) { return e.name + ': ' + e.message; } })()`)
	require.NoError(t, err)
	assert.Equal(t, "TypeError: odd input", s)
}

func TestRunMicrotasksDrainsPromiseJobs(t *testing.T) {
	rt := newRuntime(t)
	require.NoError(t, rt.Eval(`var seen = 'no'; Promise.resolve().then(function() { seen = 'yes'; });`))
	require.NoError(t, rt.RunMicrotasks())

	s, err := rt.EvalString(`seen`)
	require.NoError(t, err)
	assert.Equal(t, "yes", s)
}

func TestInterruptStopsLoop(t *testing.T) {
	rt := newRuntime(t)
	timer := time.AfterFunc(50*time.Millisecond, rt.Interrupt)
	defer timer.Stop()

	done := make(chan error, 1)
	go func() { done <- rt.Eval(`while (true) {}`) }()

	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("interrupt did not stop the script")
	}
}

package gojaengine

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
	cfg.Engine = core.EngineGoja
	rt, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { rt.Close() })
	return rt
}

func TestRegistered(t *testing.T) {
	assert.Contains(t, core.Engines(), core.EngineGoja)
}

func TestEvalString(t *testing.T) {
	rt := newRuntime(t)

	s, err := rt.EvalString(`1 + 2`)
	require.NoError(t, err)
	assert.Equal(t, "3", s)

	s, err = rt.EvalString(`null`)
	require.NoError(t, err)
	assert.Equal(t, "", s)
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

	err := rt.Eval(`throw new RangeError('out of range')`)
	var re *core.RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "RangeError", re.Name)
	assert.Equal(t, "out of range", re.Message)

	err = rt.Eval(`throw 42`)
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "42", re.Message)
}

func TestSyntaxError(t *testing.T) {
	rt := newRuntime(t)
	err := rt.Eval(`function (`)
	var re *core.RuntimeError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, "SyntaxError", re.Name)
}

func TestRegisterFuncThrowsGoErrors(t *testing.T) {
	rt := newRuntime(t)
	require.NoError(t, rt.RegisterFunc("check", func(s string) (string, error) {
		if s == "" {
			return "", errors.New("empty input")
		}
		return s + "!", nil
	}))

	s, err := rt.EvalString(`check('hi')`)
	require.NoError(t, err)
	assert.Equal(t, "hi!", s)

	s, err = rt.EvalString(`(function() { try { check(''); return 'no'; } catch (e) { return 'threw'; } })()`)
	require.NoError(t, err)
	assert.Equal(t, "threw", s)
}

func TestMicrotasksRunWithEval(t *testing.T) {
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

	err := rt.Eval(`while (true) {}`)
	assert.ErrorIs(t, err, errInterrupted)
}

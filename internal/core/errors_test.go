package core

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseRuntimeError(t *testing.T) {
	cases := []struct {
		text    string
		name    string
		message string
		stack   string
	}{
		{"TypeError: x is not a function", "TypeError", "x is not a function", ""},
		{"ReferenceError: y is not defined\n    at <eval>:1:1\n", "ReferenceError", "y is not defined", "at <eval>:1:1"},
		{"InternalException:", "InternalException", "", ""},
		{"something odd happened", "", "something odd happened", ""},
		{"Uncaught: TypeError: nested", "", "Uncaught: TypeError: nested", ""},
	}
	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			re := ParseRuntimeError(tc.text)
			assert.Equal(t, tc.name, re.Name)
			assert.Equal(t, tc.message, re.Message)
			assert.Equal(t, tc.stack, re.Stack)
		})
	}
}

func TestAsRuntimeError(t *testing.T) {
	orig := &RuntimeError{Name: "RangeError", Message: "bad"}
	wrapped := errors.Join(errors.New("context"), orig)
	assert.Same(t, orig, AsRuntimeError(wrapped))

	plain := errors.New("SyntaxError: unexpected token")
	re := AsRuntimeError(plain)
	assert.Equal(t, "SyntaxError", re.Name)
	assert.Equal(t, "unexpected token", re.Message)
	assert.ErrorIs(t, re, plain)
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t, "compile error in app.js at 3:7: unexpected }",
		(&CompileError{Message: "unexpected }", File: "app.js", Line: 3, Column: 7}).Error())
	assert.Equal(t, "compile error: bad", (&CompileError{Message: "bad"}).Error())

	assert.Equal(t, "runtime error: TypeError: nope", (&RuntimeError{Name: "TypeError", Message: "nope"}).Error())
	assert.Equal(t, "runtime error: plain", (&RuntimeError{Message: "plain"}).Error())

	assert.Equal(t, "conversion error (encode) at args[0]: function values are not representable",
		(&ConversionError{Direction: DirEncode, Path: "args[0]", Reason: "function values are not representable"}).Error())

	te := &TimeoutError{Stage: "draining", Limit: time.Second, Iterations: 4, Cause: context.DeadlineExceeded}
	assert.Equal(t, "timeout while draining (limit: 1s) after 4 iterations: context deadline exceeded", te.Error())
	assert.ErrorIs(t, te, context.DeadlineExceeded)
}

func TestParseCompileError(t *testing.T) {
	ce := ParseCompileError("SyntaxError: Illegal return statement\napp.js:3:7")
	assert.Equal(t, "SyntaxError: Illegal return statement", ce.Message)
	assert.Equal(t, 3, ce.Line)
	assert.Equal(t, 7, ce.Column)

	ce = ParseCompileError("SyntaxError: return not in a function")
	assert.Equal(t, "SyntaxError: return not in a function", ce.Message)
	assert.Zero(t, ce.Line)
}

package core

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrClosed is returned by any operation on a closed Context.
	ErrClosed = errors.New("jsctx: context is closed")
	// ErrUnusable is returned by every call after the lazy evaluation of the
	// source failed or the engine was interrupted mid-script.
	ErrUnusable = errors.New("jsctx: context is unusable")
	// ErrBusy is returned when another call is in flight and the Context was
	// configured to reject rather than queue.
	ErrBusy = errors.New("jsctx: call already in flight")
	// ErrNoScheduledWork means a deferred result is pending but no timer is
	// left that could ever settle it.
	ErrNoScheduledWork = errors.New("deferred result can never settle: no remaining scheduled work")
	// ErrUnknownEngine is returned for an engine name with no compiled-in backend.
	ErrUnknownEngine = errors.New("jsctx: unknown engine")
)

// CompileError reports source text that could not be installed.
type CompileError struct {
	Message string
	File    string
	Line    int // 1-based, 0 when unknown
	Column  int // as reported by the engine or esbuild
	Cause   error
}

func (e *CompileError) Error() string {
	var b strings.Builder
	b.WriteString("compile error")
	if e.File != "" {
		b.WriteString(" in ")
		b.WriteString(e.File)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " at %d:%d", e.Line, e.Column)
	}
	b.WriteString(": ")
	b.WriteString(e.Message)
	return b.String()
}

func (e *CompileError) Unwrap() error { return e.Cause }

// RuntimeError reports an error raised by script, a missing entry point, or
// a failed lazy evaluation of the source.
type RuntimeError struct {
	Name     string // script-side error name, e.g. TypeError
	Message  string
	Stack    string
	Terminal bool // the Context can no longer be used
	Cause    error
}

func (e *RuntimeError) Error() string {
	if e.Name == "" {
		return "runtime error: " + e.Message
	}
	return "runtime error: " + e.Name + ": " + e.Message
}

func (e *RuntimeError) Unwrap() error { return e.Cause }

// Direction tells which way a failed conversion was going.
type Direction string

const (
	DirEncode Direction = "encode" // host to script
	DirDecode Direction = "decode" // script to host
)

// ConversionError reports a value outside the representable subset.
type ConversionError struct {
	Direction Direction
	Path      string
	Reason    string
}

func (e *ConversionError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("conversion error (%s): %s", e.Direction, e.Reason)
	}
	return fmt.Sprintf("conversion error (%s) at %s: %s", e.Direction, e.Path, e.Reason)
}

// TimeoutError reports a call that did not reach settlement in time.
type TimeoutError struct {
	Stage       string // draining, running script, waiting for in-flight call
	Limit       time.Duration
	Iterations  int
	Interrupted bool // the engine was interrupted mid-script
	Cause       error
}

func (e *TimeoutError) Error() string {
	var b strings.Builder
	b.WriteString("timeout while ")
	b.WriteString(e.Stage)
	if e.Limit > 0 {
		fmt.Fprintf(&b, " (limit: %v)", e.Limit)
	}
	if e.Iterations > 0 {
		fmt.Fprintf(&b, " after %d iterations", e.Iterations)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *TimeoutError) Unwrap() error { return e.Cause }

// errorNamePattern matches the "Name: message" form engines use when they
// render an exception as text.
var errorNamePattern = regexp.MustCompile(`^([A-Za-z_$][A-Za-z0-9_$]*(?:Error|Exception)): ?(.*)$`)

// ParseRuntimeError builds a RuntimeError from an engine's textual rendering
// of an exception. Only the first line is considered.
func ParseRuntimeError(text string) *RuntimeError {
	first, rest, _ := strings.Cut(text, "\n")
	re := &RuntimeError{Message: first}
	if m := errorNamePattern.FindStringSubmatch(first); m != nil {
		re.Name, re.Message = m[1], m[2]
	}
	re.Stack = strings.TrimSpace(rest)
	return re
}

// positionPattern matches a trailing "file:line:column" location.
var positionPattern = regexp.MustCompile(`:(\d+):(\d+)\)?$`)

// ParseCompileError builds a CompileError from an engine's textual
// rendering of a syntax error. A location such as "app.js:3:7" on any line
// fills Line and Column.
func ParseCompileError(text string) *CompileError {
	re := ParseRuntimeError(text)
	ce := &CompileError{Message: re.Message}
	if re.Name != "" {
		ce.Message = re.Name + ": " + re.Message
	}
	for _, line := range strings.Split(text, "\n") {
		if m := positionPattern.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			ce.Line, _ = strconv.Atoi(m[1])
			ce.Column, _ = strconv.Atoi(m[2])
			break
		}
	}
	return ce
}

// AsRuntimeError returns err as a RuntimeError, parsing its text when the
// engine did not produce one.
func AsRuntimeError(err error) *RuntimeError {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re
	}
	re = ParseRuntimeError(err.Error())
	re.Cause = err
	return re
}

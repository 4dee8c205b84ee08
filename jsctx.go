// Package jsctx compiles JavaScript once and calls into it many times.
//
// A Context owns one engine instance. Compile checks the source without
// running it; the first Call or Eval evaluates it in global scope. Promise
// results are driven to settlement before Call returns, running timers on a
// private event loop, so from the host's point of view every call is
// synchronous.
//
//	c, err := jsctx.Compile(`async function greet(name) { return "hi " + name }`)
//	if err != nil {
//		return err
//	}
//	defer c.Close()
//	v, err := c.Call(ctx, "greet", "bob") // "hi bob"
//
// Values cross the boundary in a fixed subset: nil, Undefined, bool, int64,
// float64, string, []any and *Object. Call accepts most Go values as
// arguments and converts them into that subset.
package jsctx

import (
	"github.com/cryguy/jsctx/internal/codec"
	"github.com/cryguy/jsctx/internal/core"
)

// Error types. Use errors.As to inspect them.
type (
	CompileError    = core.CompileError
	RuntimeError    = core.RuntimeError
	ConversionError = core.ConversionError
	TimeoutError    = core.TimeoutError
	Direction       = core.Direction
)

const (
	DirEncode = core.DirEncode
	DirDecode = core.DirDecode
)

var (
	ErrClosed          = core.ErrClosed
	ErrUnusable        = core.ErrUnusable
	ErrBusy            = core.ErrBusy
	ErrNoScheduledWork = core.ErrNoScheduledWork
	ErrUnknownEngine   = core.ErrUnknownEngine
)

// LogEntry is one captured console line.
type LogEntry = core.LogEntry

// Object is a script object with its key order preserved.
type Object = codec.Object

// Undefined is script undefined, distinct from nil (null).
var Undefined = codec.Undefined

// NewObject returns an empty Object.
func NewObject() *Object { return codec.NewObject() }

// ObjectOf builds an Object from alternating keys and values.
func ObjectOf(kv ...any) *Object { return codec.ObjectOf(kv...) }

// Loader selects how source text is prepared.
type Loader = core.Loader

const (
	LoaderJS     = core.LoaderJS
	LoaderTS     = core.LoaderTS
	LoaderModule = core.LoaderModule
)

// Engine names.
const (
	EngineQuickJS = core.EngineQuickJS
	EngineGoja    = core.EngineGoja
	EngineV8      = core.EngineV8
)

// Engines lists the engines compiled into this binary.
func Engines() []string { return core.Engines() }

// InitPlatform initialises process-wide engine state with flags. It is
// optional; the first Compile does it with the flags it was given. Only
// the first initialisation has any effect.
func InitPlatform(flags ...string) { core.InitPlatform(flags) }

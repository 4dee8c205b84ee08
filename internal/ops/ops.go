// Package ops is the fixed table of host operations installed into every
// engine. Each operation registers its Go half as a global __op_* function
// and evaluates the script half that exposes it under its usual name.
package ops

import (
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/cryguy/jsctx/internal/bridge"
	"github.com/cryguy/jsctx/internal/codec"
	"github.com/cryguy/jsctx/internal/core"
	"github.com/cryguy/jsctx/internal/eventloop"
)

// Deps is everything an operation may touch. Operations keep no state of
// their own.
type Deps struct {
	Bridge *bridge.Bridge
	Loop   *eventloop.EventLoop
	Logger *zap.Logger
}

// setupFunc configures one operation on a fresh engine.
type setupFunc func(rt core.JSRuntime, d Deps) error

// Operation is one entry of the table.
type Operation struct {
	Name  string
	Setup setupFunc
}

// Table lists the operations in installation order. The codec prelude comes
// first since the settle and invoke halves build on __jsctx.
var Table = []Operation{
	{Name: "codec", Setup: setupCodec},
	{Name: "console", Setup: SetupConsole},
	{Name: "base64", Setup: SetupEncoding},
	{Name: "clock", Setup: SetupClock},
	{Name: "timers", Setup: SetupTimers},
	{Name: "microtask", Setup: SetupMicrotask},
	{Name: "settle", Setup: SetupSettle},
	{Name: "invoke", Setup: SetupInvoke},
}

// Install runs every operation of the table against rt.
func Install(rt core.JSRuntime, d Deps) error {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	for _, op := range Table {
		if err := op.Setup(rt, d); err != nil {
			return fmt.Errorf("installing %s operation: %w", op.Name, err)
		}
	}
	return nil
}

// Names returns the operation names in installation order.
func Names() []string {
	names := make([]string, len(Table))
	for i, op := range Table {
		names[i] = op.Name
	}
	return names
}

func setupCodec(rt core.JSRuntime, _ Deps) error {
	return rt.Eval(codec.PreludeJS)
}

// Quote renders s as a JavaScript string literal.
func Quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}

package ops

import (
	"errors"

	"go.uber.org/zap"

	"github.com/cryguy/jsctx/internal/bridge"
	"github.com/cryguy/jsctx/internal/core"
)

// SetupSettle registers the result staging operation. Script hands it the
// call id it was started with, so a continuation belonging to a finished
// call is dropped instead of settling the current one.
func SetupSettle(rt core.JSRuntime, d Deps) error {
	b, log := d.Bridge, d.Logger
	return rt.RegisterFunc("__op_settle", func(id int, state, payload string) {
		err := b.Settle(uint64(id), bridge.Outcome{State: bridge.State(state), Payload: payload})
		switch {
		case err == nil:
		case errors.Is(err, bridge.ErrStaleCall):
			log.Debug("dropped settlement from finished call", zap.Int("call", id), zap.String("state", state))
		default:
			log.Warn("rejected settlement", zap.Int("call", id), zap.Error(err))
		}
	})
}

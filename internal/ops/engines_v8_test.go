//go:build v8

package ops

import (
	"github.com/cryguy/jsctx/internal/core"
	_ "github.com/cryguy/jsctx/internal/v8engine"
)

func init() {
	testEngines = append(testEngines, core.EngineV8)
}
